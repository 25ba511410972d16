package shared

import (
	"strings"
	"testing"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
)

func TestGenerateEmitsFunctionDeclaration(t *testing.T) {
	body := []ast.Statement{
		&ast.FunctionDeclaration{
			Name:     "double",
			Params:   []*ast.Param{{Name: "x"}},
			IsPublic: true,
			Body: []ast.Statement{
				&ast.ReturnStatement{Value: &ast.BinaryExpression{
					Left: &ast.Identifier{Name: "x"}, Operator: "*", Right: &ast.NumberLiteral{Value: "2"},
				}},
			},
		},
	}
	bag := diag.NewBag()
	out, usage, _ := Generate(body, bag, "shared.js", "shared.tova")
	if !strings.Contains(out, "export function double(x) {") {
		t.Errorf("Generate() output missing function decl, got:\n%s", out)
	}
	if usage.NeedsContainsHelper {
		t.Error("did not expect NeedsContainsHelper to be set")
	}
}

func TestHelperBundleOnlyEmitsUsedHelpers(t *testing.T) {
	body := []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.MembershipExpression{
			Value: &ast.Identifier{Name: "x"}, Collection: &ast.Identifier{Name: "xs"},
		}},
	}
	bag := diag.NewBag()
	_, usage, _ := Generate(body, bag, "shared.js", "shared.tova")

	bundle := HelperBundle(usage)
	if !strings.Contains(bundle, "function __contains") {
		t.Error("expected __contains helper to be emitted")
	}
	if strings.Contains(bundle, "__propagate") {
		t.Error("did not expect __propagate helper to be emitted")
	}
	if !NeedsAnyHelper(usage) {
		t.Error("NeedsAnyHelper should be true")
	}
}

func TestNullishCoalesceLowersToHelperAndTreatsNaNAsNil(t *testing.T) {
	body := []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.BinaryExpression{
			Left: &ast.Identifier{Name: "x"}, Operator: "??", Right: &ast.NumberLiteral{Value: "0"},
		}},
	}
	bag := diag.NewBag()
	out, usage, _ := Generate(body, bag, "shared.js", "shared.tova")
	if !strings.Contains(out, "__nullish(x, 0)") {
		t.Errorf("Generate() output missing __nullish call, got:\n%s", out)
	}
	bundle := HelperBundle(usage)
	if !strings.Contains(bundle, "Number.isNaN(value)") {
		t.Errorf("expected __nullish helper to treat NaN as nil, got:\n%s", bundle)
	}
}

func TestNeedsAnyHelperFalseWhenUnused(t *testing.T) {
	bag := diag.NewBag()
	_, usage, _ := Generate(nil, bag, "shared.js", "shared.tova")
	if NeedsAnyHelper(usage) {
		t.Error("expected NeedsAnyHelper to be false for an empty body")
	}
	if HelperBundle(usage) != "" {
		t.Error("expected empty helper bundle for an empty body")
	}
}
