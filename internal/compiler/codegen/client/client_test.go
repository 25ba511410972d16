package client

import (
	"strings"
	"testing"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
)

func TestGenerateStateDeclarationEmitsSignal(t *testing.T) {
	body := []ast.Statement{
		&ast.StateDeclaration{Name: "count", Value: &ast.NumberLiteral{Value: "0"}},
	}
	bag := diag.NewBag()
	res := Generate(body, nil, bag, "app.js", "app.tova")
	if !strings.Contains(res.Body, "const [count, setCount] = createSignal(0);") {
		t.Errorf("Body = %q", res.Body)
	}
}

func TestGenerateReadsSignalThroughGetter(t *testing.T) {
	body := []ast.Statement{
		&ast.StateDeclaration{Name: "count", Value: &ast.NumberLiteral{Value: "0"}},
		&ast.ExpressionStatement{Expr: &ast.BinaryExpression{
			Left: &ast.Identifier{Name: "count"}, Operator: "+",
			Right: &ast.NumberLiteral{Value: "1"},
		}},
	}
	bag := diag.NewBag()
	res := Generate(body, nil, bag, "app.js", "app.tova")
	if !strings.Contains(res.Body, "(count() + 1)") {
		t.Errorf("expected signal getter call, got:\n%s", res.Body)
	}
}

func TestGenerateWritesSignalThroughSetter(t *testing.T) {
	body := []ast.Statement{
		&ast.StateDeclaration{Name: "count", Value: &ast.NumberLiteral{Value: "0"}},
		&ast.Assignment{
			Targets: []ast.Expression{&ast.Identifier{Name: "count"}},
			Values:  []ast.Expression{&ast.NumberLiteral{Value: "5"}},
		},
	}
	bag := diag.NewBag()
	res := Generate(body, nil, bag, "app.js", "app.tova")
	if !strings.Contains(res.Body, "setCount(5);") {
		t.Errorf("expected signal setter call, got:\n%s", res.Body)
	}
}

func TestGenerateCompoundAssignmentOnSignalEmitsUpdater(t *testing.T) {
	body := []ast.Statement{
		&ast.StateDeclaration{Name: "count", Value: &ast.NumberLiteral{Value: "0"}},
		&ast.FunctionDeclaration{
			Name: "inc",
			Body: []ast.Statement{
				&ast.CompoundAssignment{
					Target:   &ast.Identifier{Name: "count"},
					Operator: "+",
					Value:    &ast.NumberLiteral{Value: "1"},
				},
			},
		},
	}
	bag := diag.NewBag()
	res := Generate(body, nil, bag, "app.js", "app.tova")
	if !strings.Contains(res.Body, "setCount(__p => __p + 1);") {
		t.Errorf("expected signal updater call, got:\n%s", res.Body)
	}
}

func TestGenerateComputedEmitsCreateComputed(t *testing.T) {
	body := []ast.Statement{
		&ast.ComputedDeclaration{Name: "double", Value: &ast.Identifier{Name: "count"}},
	}
	bag := diag.NewBag()
	res := Generate(body, nil, bag, "app.js", "app.tova")
	if !strings.Contains(res.Body, "const double = createComputed(() => count());") {
		t.Errorf("Body = %q", res.Body)
	}
}

func TestGenerateComponentDesugarsJSXAndScopesStyle(t *testing.T) {
	body := []ast.Statement{
		&ast.ComponentDeclaration{
			Name: "Counter",
			Body: []ast.Statement{
				&ast.ReturnStatement{Value: &ast.JSXElement{
					Tag: "div",
					Attributes: []ast.JSXAttribute{
						{Name: "class", Value: &ast.StringLiteral{Value: "box"}},
					},
				}},
			},
			Style: &ast.StyleBlock{Source: ".box { color: red; }", Scoped: true},
		},
	}
	bag := diag.NewBag()
	res := Generate(body, nil, bag, "app.js", "app.tova")

	if !strings.Contains(res.Body, `h("div"`) {
		t.Errorf("expected desugared h() call, got:\n%s", res.Body)
	}
	if !strings.Contains(res.Body, `"data-s"`) {
		t.Errorf("expected data-s scope prop, got:\n%s", res.Body)
	}
	if len(res.Styles) != 1 {
		t.Fatalf("len(Styles) = %d, want 1", len(res.Styles))
	}
	if !strings.Contains(res.Styles[0], `.box[data-s="`) {
		t.Errorf("expected scoped selector, got:\n%s", res.Styles[0])
	}
}

func TestGenerateComponentWithoutStyleReturnsNoCSS(t *testing.T) {
	body := []ast.Statement{
		&ast.ComponentDeclaration{Name: "Plain", Body: []ast.Statement{}},
	}
	bag := diag.NewBag()
	res := Generate(body, nil, bag, "app.js", "app.tova")
	if len(res.Styles) != 0 {
		t.Errorf("Styles = %v, want none", res.Styles)
	}
}

func TestGenerateEffectWithRPCWrapsInnerAsyncIIFE(t *testing.T) {
	body := []ast.Statement{
		&ast.StateDeclaration{Name: "users", Value: &ast.ArrayLiteral{}},
		&ast.EffectDeclaration{
			Body: []ast.Statement{
				&ast.Assignment{
					Targets: []ast.Expression{&ast.Identifier{Name: "users"}},
					Values: []ast.Expression{&ast.CallExpression{
						Callee: &ast.MemberExpression{Object: &ast.Identifier{Name: "server"}, Property: "get_users"},
					}},
				},
			},
		},
	}
	bag := diag.NewBag()
	rpc := map[string]bool{"get_users": true}
	res := Generate(body, rpc, bag, "app.js", "app.tova")
	want := "createEffect(() => {\n  (async () => {\n    setUsers(await server.get_users());\n  })();\n});"
	if !strings.Contains(strings.ReplaceAll(res.Body, "\r\n", "\n"), "(async () => {") ||
		!strings.Contains(res.Body, "setUsers(await server.get_users());") {
		t.Errorf("Body = %q, want something containing %q", res.Body, want)
	}
}

func TestGenerateAutoAwaitsRPCCallsInClientCode(t *testing.T) {
	body := []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.CallExpression{Callee: &ast.Identifier{Name: "fetchUser"}}},
	}
	bag := diag.NewBag()
	rpc := map[string]bool{"fetchUser": true}
	res := Generate(body, rpc, bag, "app.js", "app.tova")
	if !strings.Contains(res.Body, "await fetchUser()") {
		t.Errorf("expected auto-awaited call, got:\n%s", res.Body)
	}
}

func TestBuildRegistryCollectsAllFourNamespaces(t *testing.T) {
	body := []ast.Statement{
		&ast.StateDeclaration{Name: "a"},
		&ast.ComputedDeclaration{Name: "b"},
		&ast.ComponentDeclaration{Name: "C"},
		&ast.StoreDeclaration{Name: "d"},
	}
	r := BuildRegistry(body)
	if !r.StateNames["a"] || !r.ComputedNames["b"] || !r.ComponentNames["C"] || !r.StoreNames["d"] {
		t.Errorf("registry incomplete: %+v", r)
	}
	if !r.IsSignal("a") || !r.IsSignal("b") {
		t.Error("expected state and computed names to be signals")
	}
	if r.IsSignal("C") || r.IsSignal("d") {
		t.Error("component and store names must not read as signals")
	}
}

func TestScopeCSSPrefixesMultipleSelectors(t *testing.T) {
	out := scopeCSS(".a, .b { color: red; }", "deadbeef")
	if !strings.Contains(out, `.a[data-s="deadbeef"]`) || !strings.Contains(out, `.b[data-s="deadbeef"]`) {
		t.Errorf("scopeCSS() = %q", out)
	}
}
