package lower

import (
	"strings"
	"testing"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
)

func newTestLowerer() *Lowerer {
	return New(BaseTarget{}, diag.NewBag(), "out.js", "app.tova")
}

func TestLowerVarDeclaration(t *testing.T) {
	l := newTestLowerer()
	l.LowerStatement(&ast.VarDeclaration{
		Targets: []ast.Expression{&ast.Identifier{Name: "x"}},
		Values:  []ast.Expression{&ast.NumberLiteral{Value: "1"}},
	})
	if got := l.Output(); got != "let x = 1;\n" {
		t.Errorf("Output() = %q", got)
	}
}

func TestLowerBinaryExpression(t *testing.T) {
	l := newTestLowerer()
	got := l.LowerExpr(&ast.BinaryExpression{
		Left: &ast.Identifier{Name: "a"}, Operator: "==", Right: &ast.NumberLiteral{Value: "2"},
	})
	if got != "(a === 2)" {
		t.Errorf("LowerExpr() = %q, want %q", got, "(a === 2)")
	}
}

func TestLowerIfStatement(t *testing.T) {
	l := newTestLowerer()
	l.LowerStatement(&ast.IfStatement{
		Condition:  &ast.Identifier{Name: "ok"},
		Consequent: []ast.Statement{&ast.ReturnStatement{Value: &ast.BoolLiteral{Value: true}}},
		ElseBody:   []ast.Statement{&ast.ReturnStatement{Value: &ast.BoolLiteral{Value: false}}},
	})
	out := l.Output()
	for _, want := range []string{"if (ok) {", "return true;", "} else {", "return false;"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output() missing %q, got:\n%s", want, out)
		}
	}
}

func TestLowerPipeWithPlaceholder(t *testing.T) {
	l := newTestLowerer()
	got := l.LowerExpr(&ast.PipeExpression{
		Left: &ast.Identifier{Name: "xs"},
		Right: &ast.CallExpression{
			Callee:    &ast.Identifier{Name: "sortBy"},
			Arguments: []ast.Expression{&ast.PipePlaceholder{}, &ast.StringLiteral{Value: "name"}},
		},
	})
	if got != `sortBy(xs, "name")` {
		t.Errorf("lowerPipe() = %q", got)
	}
}

func TestLowerPipeWithoutPlaceholder(t *testing.T) {
	l := newTestLowerer()
	got := l.LowerExpr(&ast.PipeExpression{
		Left:  &ast.Identifier{Name: "xs"},
		Right: &ast.CallExpression{Callee: &ast.Identifier{Name: "unique"}},
	})
	if got != "unique(xs)" {
		t.Errorf("lowerPipe() = %q", got)
	}
}

func TestLowerMatchExpressionVariant(t *testing.T) {
	l := newTestLowerer()
	l.VariantFields["Ok"] = []string{"value"}
	m := &ast.MatchExpression{
		Subject: &ast.Identifier{Name: "result"},
		Arms: []*ast.MatchArm{
			{
				Pattern: &ast.VariantPattern{Name: "Ok", Fields: []ast.Pattern{&ast.BindingPattern{Name: "v"}}},
				Body:    []ast.Statement{&ast.ExpressionStatement{Expr: &ast.Identifier{Name: "v"}}},
			},
			{Pattern: &ast.WildcardPattern{}, Body: []ast.Statement{&ast.ExpressionStatement{Expr: &ast.NilLiteral{}}}},
		},
	}
	got := l.LowerExpr(m)
	for _, want := range []string{`.__tag === "Ok"`, "const v = __subject.value;", "no match arm satisfied"} {
		if !strings.Contains(got, want) {
			t.Errorf("lowerMatchExpr() missing %q, got:\n%s", want, got)
		}
	}
}

func TestLowerMatchExpressionBindingPatternGuardSeesBinding(t *testing.T) {
	l := newTestLowerer()
	m := &ast.MatchExpression{
		Subject: &ast.Identifier{Name: "n"},
		Arms: []*ast.MatchArm{
			{
				Pattern: &ast.BindingPattern{Name: "x"},
				Guard: &ast.BinaryExpression{
					Left: &ast.Identifier{Name: "x"}, Operator: ">", Right: &ast.NumberLiteral{Value: "0"},
				},
				Body: []ast.Statement{&ast.ExpressionStatement{Expr: &ast.Identifier{Name: "x"}}},
			},
			{Pattern: &ast.WildcardPattern{}, Body: []ast.Statement{&ast.ExpressionStatement{Expr: &ast.NilLiteral{}}}},
		},
	}
	got := l.LowerExpr(m)
	want := "((x) => ((x > 0)))(__subject)"
	if !strings.Contains(got, want) {
		t.Errorf("lowerMatchExpr() missing guard lambda %q, got:\n%s", want, got)
	}
}

func TestLowerRangeExpression(t *testing.T) {
	l := newTestLowerer()
	got := l.LowerExpr(&ast.RangeExpression{
		Start: &ast.NumberLiteral{Value: "0"}, End: &ast.NumberLiteral{Value: "5"}, Inclusive: false,
	})
	if !strings.Contains(got, "Array.from") {
		t.Errorf("lowerRange() = %q", got)
	}
}

func TestLowerStringTemplate(t *testing.T) {
	l := newTestLowerer()
	got := l.LowerExpr(&ast.StringLiteral{
		Parts: []ast.StringPart{
			{Text: "hello "},
			{IsExpr: true, Expr: &ast.Identifier{Name: "name"}},
		},
	})
	if got != "`hello ${name}`" {
		t.Errorf("lowerStringLiteral() = %q", got)
	}
}

func TestLowerPropagateSetsUsageFlag(t *testing.T) {
	l := newTestLowerer()
	got := l.LowerExpr(&ast.PropagateExpression{Value: &ast.Identifier{Name: "r"}})
	if got != "__propagate(r)" {
		t.Errorf("LowerExpr() = %q", got)
	}
	if !l.Usage.NeedsPropagateHelper {
		t.Error("expected NeedsPropagateHelper to be set")
	}
}

func TestLowerTypeDeclarationVariants(t *testing.T) {
	l := newTestLowerer()
	l.LowerStatement(&ast.TypeDeclaration{
		Name: "Status",
		Variants: []*ast.TypeVariant{
			{Name: "Active"},
			{Name: "Done", Fields: []*ast.StructField{{Name: "at", Type: "string"}}},
		},
	})
	out := l.Output()
	if !strings.Contains(out, `function Done(at) { return Object.freeze({ __tag: "Done", at }); }`) {
		t.Errorf("Output() missing frozen Done factory, got:\n%s", out)
	}
	if got := l.VariantFields["Done"]; len(got) != 1 || got[0] != "at" {
		t.Errorf("VariantFields[Done] = %v", got)
	}
}

func TestLowerTypeDeclarationStructShapeEmitsConstructor(t *testing.T) {
	l := newTestLowerer()
	l.LowerStatement(&ast.TypeDeclaration{
		Name: "Point",
		Variants: []*ast.TypeVariant{
			{Name: "Point", Fields: []*ast.StructField{{Name: "x", Type: "number"}, {Name: "y", Type: "number"}}},
		},
	})
	out := l.Output()
	if !strings.Contains(out, `function Point(x, y) { return Object.freeze({ x, y }); }`) {
		t.Errorf("Output() missing struct constructor, got:\n%s", out)
	}
	if got := l.VariantFields["Point"]; len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("VariantFields[Point] = %v", got)
	}
}

func TestLowerTypeDeclarationDeriveTraits(t *testing.T) {
	l := newTestLowerer()
	l.LowerStatement(&ast.TypeDeclaration{
		Name:   "Point",
		Derive: []string{"Eq", "Show", "JSON"},
		Variants: []*ast.TypeVariant{
			{Name: "Point", Fields: []*ast.StructField{{Name: "x", Type: "number"}}},
		},
	})
	out := l.Output()
	for _, want := range []string{
		"equals(__o) { return __o != null && this.x === __o.x; }",
		"toString() { return `Point(x: ${this.x})`; }",
		"toJSON() { return { x: this.x }; }",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output() missing %q, got:\n%s", want, out)
		}
	}
}
