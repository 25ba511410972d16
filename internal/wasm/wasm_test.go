package wasm

import (
	"bytes"
	"testing"

	"github.com/tovalang/tova/internal/compiler/ast"
)

func TestBuildSimpleAddEmitsValidHeader(t *testing.T) {
	fn := &ast.FunctionDeclaration{
		Name:       "add",
		ReturnType: "Int",
		Params: []*ast.Param{
			{Name: "a", Type: "Int"},
			{Name: "b", Type: "Int"},
		},
		Body: []ast.Statement{
			&ast.ReturnStatement{Value: &ast.BinaryExpression{
				Left:     &ast.Identifier{Name: "a"},
				Operator: "+",
				Right:    &ast.Identifier{Name: "b"},
			}},
		},
	}

	mod, err := Build([]*ast.FunctionDeclaration{fn})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := mod.Bytes()

	if !bytes.Equal(out[:4], []byte(magic)) {
		t.Errorf("missing WASM magic header, got %v", out[:4])
	}
	if !bytes.Equal(out[4:8], []byte(version)) {
		t.Errorf("missing WASM version, got %v", out[4:8])
	}
}

func TestBuildRejectsNonNumericParam(t *testing.T) {
	fn := &ast.FunctionDeclaration{
		Name:       "greet",
		ReturnType: "Int",
		Params:     []*ast.Param{{Name: "name", Type: "String"}},
		Body:       []ast.Statement{&ast.ReturnStatement{Value: &ast.NumberLiteral{Value: "0"}}},
	}
	if _, err := Build([]*ast.FunctionDeclaration{fn}); err == nil {
		t.Error("expected an error for a String-typed parameter")
	}
}

func TestBuildRejectsAsyncFunction(t *testing.T) {
	fn := &ast.FunctionDeclaration{Name: "f", ReturnType: "Int", IsAsync: true}
	if _, err := Build([]*ast.FunctionDeclaration{fn}); err == nil {
		t.Error("expected an error for an async function")
	}
}

func TestCompileFunctionWithLocalAndWhileLoop(t *testing.T) {
	// fn sumTo(n: Int) -> Int { var total = 0; var i = 0; while i < n { total += i; i += 1 } return total }
	fn := &ast.FunctionDeclaration{
		Name:       "sumTo",
		ReturnType: "Int",
		Params:     []*ast.Param{{Name: "n", Type: "Int"}},
		Body: []ast.Statement{
			&ast.VarDeclaration{
				Targets: []ast.Expression{&ast.Identifier{Name: "total"}},
				Values:  []ast.Expression{&ast.NumberLiteral{Value: "0"}},
			},
			&ast.VarDeclaration{
				Targets: []ast.Expression{&ast.Identifier{Name: "i"}},
				Values:  []ast.Expression{&ast.NumberLiteral{Value: "0"}},
			},
			&ast.WhileStatement{
				Condition: &ast.BinaryExpression{
					Left:     &ast.Identifier{Name: "i"},
					Operator: "<",
					Right:    &ast.Identifier{Name: "n"},
				},
				Body: []ast.Statement{
					&ast.CompoundAssignment{Target: &ast.Identifier{Name: "total"}, Operator: "+=", Value: &ast.Identifier{Name: "i"}},
					&ast.CompoundAssignment{Target: &ast.Identifier{Name: "i"}, Operator: "+=", Value: &ast.NumberLiteral{Value: "1"}},
				},
			},
			&ast.ReturnStatement{Value: &ast.Identifier{Name: "total"}},
		},
	}

	cf, err := compileFunction(fn, map[string]ValType{"sumTo": I32}, map[string]uint32{"sumTo": 0})
	if err != nil {
		t.Fatalf("compileFunction: %v", err)
	}
	if len(cf.locals) != 2 {
		t.Fatalf("expected 2 locals (total, i), got %d", len(cf.locals))
	}
	for _, lt := range cf.locals {
		if lt != I32 {
			t.Errorf("expected inferred Int locals, got %v", lt)
		}
	}
	if len(cf.code) == 0 || cf.code[len(cf.code)-1] != opEnd {
		t.Error("function body should end with opEnd")
	}
}

func TestCompileFunctionPromotesIntToFloat(t *testing.T) {
	// fn avg(a: Int, b: Float) -> Float { return a + b }
	fn := &ast.FunctionDeclaration{
		Name:       "avg",
		ReturnType: "Float",
		Params: []*ast.Param{
			{Name: "a", Type: "Int"},
			{Name: "b", Type: "Float"},
		},
		Body: []ast.Statement{
			&ast.ReturnStatement{Value: &ast.BinaryExpression{
				Left:     &ast.Identifier{Name: "a"},
				Operator: "+",
				Right:    &ast.Identifier{Name: "b"},
			}},
		},
	}
	cf, err := compileFunction(fn, map[string]ValType{"avg": F64}, map[string]uint32{"avg": 0})
	if err != nil {
		t.Fatalf("compileFunction: %v", err)
	}
	if !bytes.Contains(cf.code, []byte{opF64ConvertI32S}) {
		t.Error("expected an f64.convert_i32_s conversion for the Int operand")
	}
}

func TestCompileFunctionRecursiveCall(t *testing.T) {
	// fn fib(n: Int) -> Int { if n < 2 { return n } return fib(n - 1) + fib(n - 2) }
	fn := &ast.FunctionDeclaration{
		Name:       "fib",
		ReturnType: "Int",
		Params:     []*ast.Param{{Name: "n", Type: "Int"}},
		Body: []ast.Statement{
			&ast.IfStatement{
				Condition: &ast.BinaryExpression{Left: &ast.Identifier{Name: "n"}, Operator: "<", Right: &ast.NumberLiteral{Value: "2"}},
				Consequent: []ast.Statement{
					&ast.ReturnStatement{Value: &ast.Identifier{Name: "n"}},
				},
			},
			&ast.ReturnStatement{Value: &ast.BinaryExpression{
				Left: &ast.CallExpression{
					Callee:    &ast.Identifier{Name: "fib"},
					Arguments: []ast.Expression{&ast.BinaryExpression{Left: &ast.Identifier{Name: "n"}, Operator: "-", Right: &ast.NumberLiteral{Value: "1"}}},
				},
				Operator: "+",
				Right: &ast.CallExpression{
					Callee:    &ast.Identifier{Name: "fib"},
					Arguments: []ast.Expression{&ast.BinaryExpression{Left: &ast.Identifier{Name: "n"}, Operator: "-", Right: &ast.NumberLiteral{Value: "2"}}},
				},
			}},
		},
	}
	funcTypes := map[string]ValType{"fib": I32}
	funcIndex := map[string]uint32{"fib": 0}
	cf, err := compileFunction(fn, funcTypes, funcIndex)
	if err != nil {
		t.Fatalf("compileFunction: %v", err)
	}
	callCount := bytes.Count(cf.code, []byte{opCall})
	if callCount != 2 {
		t.Errorf("expected 2 recursive calls emitted, got %d", callCount)
	}
}

func TestULEB128RoundTripsKnownValues(t *testing.T) {
	cases := map[uint64][]byte{
		0:   {0x00},
		127: {0x7f},
		128: {0x80, 0x01},
		300: {0xac, 0x02},
	}
	for in, want := range cases {
		got := uleb128(in)
		if !bytes.Equal(got, want) {
			t.Errorf("uleb128(%d) = %v, want %v", in, got, want)
		}
	}
}

func TestSLEB128HandlesNegatives(t *testing.T) {
	got := sleb128(-1)
	want := []byte{0x7f}
	if !bytes.Equal(got, want) {
		t.Errorf("sleb128(-1) = %v, want %v", got, want)
	}
}
