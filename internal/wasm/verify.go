package wasm

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// Verify instantiates a compiled module with wasmer and calls name with
// args, confirming the emitted bytecode actually loads and runs before the
// build orchestrator ships it. Grounded directly on the wasmer-go
// instantiate/lookup/call sequence used elsewhere in the example pack for
// sandboxed numeric WASM execution.
func Verify(wasmBytes []byte, name string, args ...interface{}) (interface{}, error) {
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)

	module, err := wasmer.NewModule(store, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("wasm module did not parse: %w", err)
	}

	instance, err := wasmer.NewInstance(module, wasmer.NewImportObject())
	if err != nil {
		return nil, fmt.Errorf("wasm instantiation failed: %w", err)
	}

	fn, err := instance.Exports.GetFunction(name)
	if err != nil {
		return nil, fmt.Errorf("wasm export %q not found: %w", name, err)
	}

	result, err := fn(args...)
	if err != nil {
		return nil, fmt.Errorf("wasm call %q failed: %w", name, err)
	}
	return result, nil
}
