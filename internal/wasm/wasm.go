// Package wasm compiles numerically-typed Tova functions directly to a
// WebAssembly binary module: LEB128-encoded sections, typed opcodes, no
// intermediate text format. Spec.md §4.5 restricts this path to functions
// whose parameters and return type are all Int/Float/Bool (mapped to i32/
// f64/i32) — anything else is a compilation error, not a silent fallback.
//
// There is no pack library that encodes WASM modules (only
// github.com/wasmerio/wasmer-go, which *executes* them — wired in
// verify.go as an optional post-emission sanity check). The binary format
// itself is a small, fully documented spec, so the encoder is hand-written
// the same way internal/compiler/sourcemap hand-writes its VLQ encoder.
package wasm

import (
	"math"
)

// ValType is a WebAssembly value type, restricted to the two this emitter
// supports.
type ValType byte

const (
	I32 ValType = 0x7f
	F64 ValType = 0x7c
)

// wasm binary format constants (https://webassembly.github.io/spec/core/binary).
const (
	magic   = "\x00asm"
	version = "\x01\x00\x00\x00"

	secType     = 0x01
	secFunction = 0x03
	secExport   = 0x07
	secCode     = 0x0a

	exportKindFunc = 0x00

	opBlock    = 0x02
	opLoop     = 0x03
	opIf       = 0x04
	opElse     = 0x05
	opEnd      = 0x0b
	opBr       = 0x0c
	opBrIf     = 0x0d
	opReturn   = 0x0f
	opCall     = 0x10
	opLocalGet = 0x20
	opLocalSet = 0x21
	opLocalTee = 0x22

	opI32Const = 0x41
	opF64Const = 0x44

	opI32Eqz = 0x45
	opI32Eq  = 0x46
	opI32Ne  = 0x47
	opI32LtS = 0x48
	opI32GtS = 0x4a
	opI32LeS = 0x4c
	opI32GeS = 0x4e

	opF64Eq = 0x61
	opF64Ne = 0x62
	opF64Lt = 0x63
	opF64Gt = 0x64
	opF64Le = 0x65
	opF64Ge = 0x66

	opI32Add  = 0x6a
	opI32Sub  = 0x6b
	opI32Mul  = 0x6c
	opI32DivS = 0x6d

	opI32And = 0x71
	opI32Or  = 0x72

	opF64Neg = 0x9a
	opF64Add = 0xa0
	opF64Sub = 0xa1
	opF64Mul = 0xa2
	opF64Div = 0xa3

	opF64ConvertI32S = 0xb7
)

// blockType encodes a WASM block/if/loop result type: empty (0x40), or a
// single value type byte (only single-result functions are supported).
func blockType(results []ValType) byte {
	if len(results) == 0 {
		return 0x40
	}
	return byte(results[0])
}

// uleb128 encodes an unsigned integer as unsigned LEB128, used for every
// section size, vector count, and index in the binary format.
func uleb128(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			break
		}
	}
	return out
}

// sleb128 encodes a signed integer as signed LEB128, used for i32.const
// operands.
func sleb128(n int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(n & 0x7f)
		n >>= 7
		signBitSet := b&0x40 != 0
		if (n == 0 && !signBitSet) || (n == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// f64Bytes encodes an IEEE-754 double in WASM's little-endian byte order,
// the operand format f64.const uses (not LEB128).
func f64Bytes(f float64) []byte {
	bits := math.Float64bits(f)
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(bits >> (8 * i))
	}
	return out
}

// vec length-prefixes items with a uleb128 count, the format every WASM
// binary vector (types, locals, exports, ...) uses.
func vec(items [][]byte) []byte {
	out := uleb128(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

// section wraps body with its section id and a uleb128 byte-length prefix.
func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint64(len(body)))...)
	out = append(out, body...)
	return out
}

func str(s string) []byte {
	out := uleb128(uint64(len(s)))
	return append(out, []byte(s)...)
}

// Bytes assembles the module's functions into a complete WASM binary: a
// type section (one func type per function, no dedup — redundant but
// valid), a function section mapping each function to its type, an
// export section naming every function, and a code section holding each
// function's locals-then-body.
func (m *Module) Bytes() []byte {
	var types, funcSec, exports, code [][]byte

	for i, f := range m.functions {
		params := make([]byte, len(f.params))
		for j, t := range f.params {
			params[j] = byte(t)
		}
		results := make([]byte, len(f.results))
		for j, t := range f.results {
			results[j] = byte(t)
		}
		funcType := append([]byte{0x60}, vec(byteVec(params))...)
		funcType = append(funcType, vec(byteVec(results))...)
		types = append(types, funcType)

		funcSec = append(funcSec, uleb128(uint64(i)))

		exports = append(exports, append(str(f.name), append([]byte{exportKindFunc}, uleb128(uint64(i))...)...))

		code = append(code, encodeFunctionBody(f))
	}

	out := []byte(magic + version)
	out = append(out, section(secType, vec(types))...)
	out = append(out, section(secFunction, vec(funcSec))...)
	out = append(out, section(secExport, vec(exports))...)
	out = append(out, section(secCode, vec(code))...)
	return out
}

func byteVec(bs []byte) [][]byte {
	out := make([][]byte, len(bs))
	for i, b := range bs {
		out[i] = []byte{b}
	}
	return out
}

// encodeFunctionBody renders one function's locals-declaration vector
// (each local gets its own count=1 group — simple, not maximally compact,
// but a valid encoding) followed by its instruction bytes, wrapped in a
// uleb128 byte-length prefix as the code section requires per entry.
func encodeFunctionBody(f compiledFunc) []byte {
	localGroups := make([][]byte, len(f.locals))
	for i, t := range f.locals {
		localGroups[i] = append(uleb128(1), byte(t))
	}
	body := vec(localGroups)
	body = append(body, f.code...)
	return append(uleb128(uint64(len(body))), body...)
}
