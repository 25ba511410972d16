// Package client lowers a merged ClientBlock into reactive JS: state/
// computed/store declarations become signal calls, component bodies have
// their JSX desugared to `h()` calls before the shared lowering core ever
// sees them, and each component's <style scoped> block is rewritten with a
// per-component FNV-1a scope id.
package client

import (
	"fmt"
	"strings"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
	"github.com/tovalang/tova/internal/compiler/lower"
	"github.com/tovalang/tova/internal/compiler/sourcemap"
	"github.com/tovalang/tova/internal/compiler/util"
)

type target struct {
	reg      *Registry
	rpcNames map[string]bool
}

func (t *target) Name() string { return "client" }

func (t *target) ReadIdentifier(_ *lower.Lowerer, name string) (string, bool) {
	if t.reg.IsSignal(name) {
		return name + "()", true
	}
	return "", false
}

func (t *target) AssignIdentifier(_ *lower.Lowerer, name, value string) (string, bool) {
	if t.reg.StateNames[name] {
		return fmt.Sprintf("set%s(%s)", util.ToPascalCase(name), value), true
	}
	return "", false
}

func (t *target) AssignCompound(_ *lower.Lowerer, name, operator, value string) (string, bool) {
	if t.reg.StateNames[name] {
		return fmt.Sprintf("set%s(__p => __p %s %s)", util.ToPascalCase(name), operator, value), true
	}
	return "", false
}

func (t *target) AutoAwait(_ *lower.Lowerer, calleeName string) bool {
	return t.rpcNames[calleeName]
}

// Result holds everything Generate produced for one client block.
type Result struct {
	Body   string
	Styles []string
	Usage  *lower.Usage
	SM     *sourcemap.Builder
}

// Generate lowers a merged client block's body. rpcNames names exported
// server functions imported into this block, which are auto-awaited the
// same way codegen/server treats them.
func Generate(body []ast.Statement, rpcNames map[string]bool, bag *diag.Bag, outFile, sourceFile string) *Result {
	reg := BuildRegistry(body)
	t := &target{reg: reg, rpcNames: rpcNames}
	l := lower.New(t, bag, outFile, sourceFile)

	var styles []string

	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.StateDeclaration:
			lowerState(l, s)
		case *ast.ComputedDeclaration:
			lowerComputed(l, s)
		case *ast.EffectDeclaration:
			lowerEffect(l, s)
		case *ast.StoreDeclaration:
			lowerStore(l, s)
		case *ast.ComponentDeclaration:
			if css := lowerComponent(l, s); css != "" {
				styles = append(styles, css)
			}
		default:
			l.LowerStatement(stmt)
		}
	}

	return &Result{Body: l.Output(), Styles: styles, Usage: l.Usage, SM: l.SM}
}

func lowerState(l *lower.Lowerer, s *ast.StateDeclaration) {
	setter := "set" + util.ToPascalCase(s.Name)
	emitLine(l, fmt.Sprintf("const [%s, %s] = createSignal(%s);", s.Name, setter, l.LowerExpr(s.Value)))
}

func lowerComputed(l *lower.Lowerer, s *ast.ComputedDeclaration) {
	emitLine(l, fmt.Sprintf("const %s = createComputed(() => %s);", s.Name, l.LowerExpr(s.Value)))
}

// lowerEffect emits `createEffect(() => { ... })`. When the body contains
// an RPC call, the work runs inside an inner immediately-invoked async
// function so the effect's own registration stays synchronous (spec
// §4.3: "wrap the body in an inner immediately-invoked async function so
// the effect's registration remains synchronous while the work runs
// asynchronously").
func lowerEffect(l *lower.Lowerer, s *ast.EffectDeclaration) {
	emitLine(l, "createEffect(() => {")
	if l.ContainsRPC(s.Body) {
		emitLine(l, "(async () => {")
		l.LowerBlock(s.Body)
		emitLine(l, "})();")
	} else {
		l.LowerBlock(s.Body)
	}
	emitLine(l, "});")
}

func lowerStore(l *lower.Lowerer, s *ast.StoreDeclaration) {
	emitLine(l, fmt.Sprintf("const %s = createStore({", s.Name))
	l.LowerBlock(s.Body)
	emitLine(l, "});")
}

// lowerComponent desugars the component's JSX-bearing statements, emits it
// as a plain function, and returns its scoped CSS (rewritten with the
// component's scope id), or "" if it declared no style block.
func lowerComponent(l *lower.Lowerer, c *ast.ComponentDeclaration) string {
	scopeID := ""
	if c.Style != nil && c.Style.Scoped {
		scopeID = util.FNV1a8Hex(c.Name + ":" + c.Style.Source)
	}

	desugaredBody := desugarStatements(c.Body, scopeID)

	params := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		params = append(params, p.Name)
	}
	propsArg := "props"
	if len(params) == 0 {
		propsArg = ""
	}

	emitLine(l, fmt.Sprintf("export function %s(%s) {", c.Name, propsArg))
	if len(params) > 0 {
		l.Scope.Push()
		for _, p := range params {
			emitLine(l, fmt.Sprintf("  const { %s } = props;", p))
		}
		for _, stmt := range desugaredBody {
			l.LowerStatement(stmt)
		}
		l.Scope.Pop()
	} else {
		l.LowerBlock(desugaredBody)
	}
	emitLine(l, "}")

	if c.Style == nil {
		return ""
	}
	return scopeCSS(c.Style.Source, scopeID)
}

// scopeCSS prefixes every selector in source with a `[data-s="scopeID"]`
// attribute guard, the same effect as the data-s prop injected into every
// element h() call by jsx.go.
func scopeCSS(source, scopeID string) string {
	if scopeID == "" {
		return source
	}
	var b strings.Builder
	for _, rule := range strings.Split(source, "}") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		parts := strings.SplitN(rule, "{", 2)
		if len(parts) != 2 {
			b.WriteString(rule)
			b.WriteString("}\n")
			continue
		}
		selectors := strings.Split(parts[0], ",")
		for i, sel := range selectors {
			selectors[i] = strings.TrimSpace(sel) + fmt.Sprintf(`[data-s="%s"]`, scopeID)
		}
		fmt.Fprintf(&b, "%s {%s}\n", strings.Join(selectors, ", "), parts[1])
	}
	return b.String()
}

// emitLine writes a line through the Lowerer's own indentation, bypassing
// LowerStatement's per-node dispatch for the handful of client-only forms
// (signal declarations) that have no generic AST representation worth
// adding to the shared core.
func emitLine(l *lower.Lowerer, text string) {
	l.EmitRaw(text)
}
