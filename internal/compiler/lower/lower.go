// Package lower is the lowering core shared by every code generator: it
// walks a merged AST and emits JavaScript text into a strings.Builder,
// recording source-map entries and usage flags as it goes. Each target
// (shared/server/client/edge/cli/form) supplies a Target to customize
// identifier read/write and RPC auto-await; everything else lowers
// identically.
package lower

import (
	"fmt"
	"strings"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
	"github.com/tovalang/tova/internal/compiler/scope"
	"github.com/tovalang/tova/internal/compiler/sourcemap"
)

// Usage tracks which optional runtime helpers a generated file actually
// needs, so codegen can emit each helper's source only once used.
type Usage struct {
	NeedsContainsHelper bool
	NeedsPropagateHelper bool
	NeedsResultOption    bool
	NeedsNullishHelper   bool
	UsedBuiltins         map[string]bool
}

func newUsage() *Usage {
	return &Usage{UsedBuiltins: make(map[string]bool)}
}

func (u *Usage) builtin(name string) {
	u.UsedBuiltins[name] = true
}

// Lowerer holds the mutable state of a single lowering pass over one
// merged compilation unit's worth of statements, destined for one output
// file.
type Lowerer struct {
	buf    strings.Builder
	indent int

	outLine int
	outCol  int

	Target Target
	Scope  *scope.Tracker
	Usage  *Usage
	Bag    *diag.Bag
	SM     *sourcemap.Builder

	file string

	// VariantFields maps a tagged-sum variant name to its physical field
	// order, populated while lowering TypeDeclaration nodes, consulted by
	// pattern lowering so VariantPattern bindings line up positionally.
	VariantFields map[string][]string
}

// New returns a Lowerer for a single output file whose content is sourced
// from sourceFile, emitting for the given Target.
func New(target Target, bag *diag.Bag, outFile, sourceFile string) *Lowerer {
	return &Lowerer{
		Target:        target,
		Scope:         scope.New(),
		Usage:         newUsage(),
		Bag:           bag,
		SM:            sourcemap.New(outFile, sourceFile),
		file:          sourceFile,
		VariantFields: make(map[string][]string),
	}
}

// Output returns the JS text emitted so far.
func (l *Lowerer) Output() string { return l.buf.String() }

// EmitRaw writes one already-formatted line at the current indent level.
// Used by codegen packages for forms with no generic AST representation
// (client signal declarations, store bodies) that still need to share the
// Lowerer's indentation and line buffer.
func (l *Lowerer) EmitRaw(line string) { l.emitLine(line) }

// --- low-level emission, mirrors the teacher's emit/emitIndent pair ---

func (l *Lowerer) emitIndent() {
	l.write(strings.Repeat("  ", l.indent))
}

func (l *Lowerer) write(s string) {
	l.buf.WriteString(s)
	for _, r := range s {
		if r == '\n' {
			l.outLine++
			l.outCol = 0
		} else {
			l.outCol++
		}
	}
}

func (l *Lowerer) emitLine(s string) {
	l.emitIndent()
	l.write(s)
	l.write("\n")
}

// emitf is emitLine with Sprintf formatting.
func (l *Lowerer) emitf(format string, args ...any) {
	l.emitLine(fmt.Sprintf(format, args...))
}

// recordPos appends a source-map entry for pos at the emitter's current
// output position, before the corresponding text is produced.
func (l *Lowerer) recordPos(pos ast.Position) {
	l.SM.Record(pos.Line-1, pos.Column-1, l.outLine, l.outCol)
}

// LowerBlock lowers a statement list inside a fresh nested scope frame.
func (l *Lowerer) LowerBlock(body []ast.Statement) {
	l.Scope.Push()
	l.indent++
	for _, s := range body {
		l.LowerStatement(s)
	}
	l.indent--
	l.Scope.Pop()
}

// LowerStatement dispatches on the concrete statement type and emits JS.
// Node kinds not yet recognized fall through to an "unsupported" comment
// placeholder rather than panicking, matching the teacher's "unknown: %T"
// texture.
func (l *Lowerer) LowerStatement(stmt ast.Statement) {
	l.recordPos(stmt.Pos())
	switch s := stmt.(type) {
	case *ast.VarDeclaration:
		l.lowerVarDecl(s, "let")
	case *ast.Assignment:
		l.lowerAssignment(s)
	case *ast.LetDestructure:
		l.lowerLetDestructure(s)
	case *ast.CompoundAssignment:
		l.lowerCompoundAssignment(s)
	case *ast.FunctionDeclaration:
		l.lowerFunctionDecl(s)
	case *ast.ReturnStatement:
		if s.Value == nil {
			l.emitLine("return;")
		} else {
			l.emitf("return %s;", l.LowerExpr(s.Value))
		}
	case *ast.IfStatement:
		l.lowerIfStatement(s)
	case *ast.ForStatement:
		l.lowerForStatement(s)
	case *ast.WhileStatement:
		l.emitf("while (%s) {", l.LowerExpr(s.Condition))
		l.LowerBlock(s.Body)
		l.emitLine("}")
	case *ast.TryCatchStatement:
		l.emitLine("try {")
		l.LowerBlock(s.Try)
		catchAs := s.CatchAs
		if catchAs == "" {
			catchAs = "_err"
		}
		l.emitf("} catch (%s) {", catchAs)
		l.LowerBlock(s.Catch)
		l.emitLine("}")
	case *ast.GuardStatement:
		l.emitf("if (!(%s)) {", l.LowerExpr(s.Condition))
		l.LowerBlock(s.ElseBody)
		l.emitLine("}")
	case *ast.BlockStatement:
		l.emitLine("{")
		l.LowerBlock(s.Body)
		l.emitLine("}")
	case *ast.BreakStatement:
		l.emitLine("break;")
	case *ast.ContinueStatement:
		l.emitLine("continue;")
	case *ast.ExpressionStatement:
		if m, ok := s.Expr.(*ast.MatchExpression); ok {
			l.lowerMatchStatement(m)
		} else {
			l.emitf("%s;", l.LowerExpr(s.Expr))
		}
	case *ast.ImportDeclaration:
		l.lowerImport(s)
	case *ast.TypeDeclaration:
		l.lowerTypeDecl(s)
	case *ast.InterfaceDeclaration:
		// Interfaces are a compile-time-only construct; nothing to emit at
		// runtime beyond a documentation comment naming the contract.
		l.emitf("// interface %s (compile-time only, no runtime emission)", s.Name)
	default:
		l.emitf("/* unsupported: %T */", stmt)
	}
}

func (l *Lowerer) lowerTargetText(e ast.Expression) string {
	if id, ok := e.(*ast.Identifier); ok {
		return id.Name
	}
	return l.LowerExpr(e)
}

func (l *Lowerer) lowerVarDecl(v *ast.VarDeclaration, keyword string) {
	parts := make([]string, len(v.Targets))
	for i, target := range v.Targets {
		name := l.lowerTargetText(target)
		l.Scope.Declare(name)
		var value string
		if i < len(v.Values) {
			value = l.LowerExpr(v.Values[i])
		} else {
			value = "undefined"
		}
		parts[i] = fmt.Sprintf("%s = %s", name, value)
	}
	l.emitf("%s %s;", keyword, strings.Join(parts, ", "))
}

func (l *Lowerer) lowerAssignment(a *ast.Assignment) {
	for i, target := range a.Targets {
		var value string
		if i < len(a.Values) {
			value = l.LowerExpr(a.Values[i])
		}
		if id, ok := target.(*ast.Identifier); ok {
			if text, handled := l.Target.AssignIdentifier(l, id.Name, value); handled {
				l.emitf("%s;", text)
				continue
			}
		}
		l.emitf("%s = %s;", l.LowerExpr(target), value)
	}
}

// lowerCompoundAssignment emits `target op= value;` unchanged for a plain
// variable, or defers to the target's AssignCompound hook when the target
// names a reactive cell (client signals become
// `setX(__p => __p op value)`, spec §4.3).
func (l *Lowerer) lowerCompoundAssignment(s *ast.CompoundAssignment) {
	value := l.LowerExpr(s.Value)
	if id, ok := s.Target.(*ast.Identifier); ok {
		if text, handled := l.Target.AssignCompound(l, id.Name, s.Operator, value); handled {
			l.emitf("%s;", text)
			return
		}
	}
	l.emitf("%s %s= %s;", l.lowerTargetText(s.Target), s.Operator, value)
}

func (l *Lowerer) lowerLetDestructure(ld *ast.LetDestructure) {
	pattern := l.lowerDestructurePattern(ld.Pattern)
	l.emitf("const %s = %s;", pattern, l.LowerExpr(ld.Value))
}

func (l *Lowerer) lowerFunctionDecl(f *ast.FunctionDeclaration) {
	l.Scope.Declare(f.Name)
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = l.lowerParam(p)
	}
	asyncKw := ""
	if f.IsAsync || l.containsRPC(f.Body) {
		asyncKw = "async "
	}
	exportKw := ""
	if f.IsPublic {
		exportKw = "export "
	}
	l.emitf("%s%sfunction %s(%s) {", exportKw, asyncKw, f.Name, strings.Join(params, ", "))
	if containsPropagate(f.Body) {
		l.Scope.Push()
		l.indent++
		l.wrapPropagateBody(f.Body)
		l.indent--
		l.Scope.Pop()
	} else {
		l.LowerBlock(f.Body)
	}
	l.emitLine("}")
}

func (l *Lowerer) lowerParam(p *ast.Param) string {
	l.Scope.Declare(p.Name)
	if p.Default != nil {
		return fmt.Sprintf("%s = %s", p.Name, l.LowerExpr(p.Default))
	}
	return p.Name
}

func (l *Lowerer) lowerIfStatement(s *ast.IfStatement) {
	l.emitf("if (%s) {", l.LowerExpr(s.Condition))
	l.LowerBlock(s.Consequent)
	for _, alt := range s.Alternates {
		l.emitf("} else if (%s) {", l.LowerExpr(alt.Condition))
		l.LowerBlock(alt.Body)
	}
	if s.ElseBody != nil {
		l.emitLine("} else {")
		l.LowerBlock(s.ElseBody)
	}
	l.emitLine("}")
}

func (l *Lowerer) lowerForStatement(s *ast.ForStatement) {
	iterable := l.LowerExpr(s.Iterable)
	switch len(s.Variables) {
	case 1:
		l.emitf("for (const %s of %s) {", s.Variables[0], iterable)
	case 2:
		l.emitf("for (const [%s, %s] of %s) {", s.Variables[0], s.Variables[1], iterable)
	default:
		l.emitf("for (const _item of %s) {", iterable)
	}
	l.LowerBlock(s.Body)
	l.emitLine("}")
	if len(s.ElseBody) > 0 {
		l.emitf("if (%s.length === 0) {", iterable)
		l.LowerBlock(s.ElseBody)
		l.emitLine("}")
	}
}

func (l *Lowerer) lowerImport(i *ast.ImportDeclaration) {
	if len(i.Members) == 0 {
		l.emitf("import %q;", i.Path)
		return
	}
	l.emitf("import { %s } from %q;", strings.Join(i.Members, ", "), i.Path)
}

// lowerTypeDecl emits a factory function per variant for a tagged sum (each
// frozen and tagged with __tag), or a single frozen constructor for a
// struct type, and records each variant's field order for later pattern
// lowering. Either shape gets the helper methods named in t.Derive mixed
// into the returned object before it is frozen.
func (l *Lowerer) lowerTypeDecl(t *ast.TypeDeclaration) {
	if len(t.Variants) == 0 {
		return
	}
	if len(t.Variants) == 1 {
		l.lowerStructTypeDecl(t)
		return
	}
	for _, v := range t.Variants {
		names := fieldNames(v.Fields)
		l.VariantFields[v.Name] = names
		params := strings.Join(names, ", ")
		members := append(append([]string{}, names...), deriveMethods(t, v.Name, names)...)
		l.emitf("export function %s(%s) { return Object.freeze({ __tag: %q, %s }); }", v.Name, params, v.Name, strings.Join(members, ", "))
	}
}

// lowerStructTypeDecl emits the "struct types produce a single constructor"
// half of spec.md §4.1. A struct TypeDeclaration carries exactly one
// TypeVariant (its field list); the constructor is named after the type,
// not the variant, and the returned object carries no __tag.
func (l *Lowerer) lowerStructTypeDecl(t *ast.TypeDeclaration) {
	names := fieldNames(t.Variants[0].Fields)
	l.VariantFields[t.Name] = names
	params := strings.Join(names, ", ")
	members := append(append([]string{}, names...), deriveMethods(t, "", names)...)
	l.emitf("export function %s(%s) { return Object.freeze({ %s }); }", t.Name, params, strings.Join(members, ", "))
}

func fieldNames(fields []*ast.StructField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// deriveMethods renders the object-literal method shorthand for every
// trait named in t.Derive (spec.md §4.1 "Derived traits (Eq, Show, JSON)
// add the corresponding helper methods at declaration time"). tag is ""
// for a struct type and the variant name (for the __tag field) otherwise.
func deriveMethods(t *ast.TypeDeclaration, tag string, names []string) []string {
	var methods []string
	for _, d := range t.Derive {
		switch d {
		case "Eq":
			checks := make([]string, 0, len(names)+1)
			if tag != "" {
				checks = append(checks, "this.__tag === __o.__tag")
			}
			for _, n := range names {
				checks = append(checks, fmt.Sprintf("this.%s === __o.%s", n, n))
			}
			if len(checks) == 0 {
				checks = append(checks, "true")
			}
			methods = append(methods, fmt.Sprintf("equals(__o) { return __o != null && %s; }", strings.Join(checks, " && ")))
		case "Show":
			parts := make([]string, len(names))
			for i, n := range names {
				parts[i] = fmt.Sprintf("%s: ${this.%s}", n, n)
			}
			label := t.Name
			if tag != "" {
				label = tag
			}
			methods = append(methods, fmt.Sprintf("toString() { return `%s(%s)`; }", label, strings.Join(parts, ", ")))
		case "JSON":
			props := make([]string, 0, len(names)+1)
			if tag != "" {
				props = append(props, fmt.Sprintf("__tag: %q", tag))
			}
			for _, n := range names {
				props = append(props, fmt.Sprintf("%s: this.%s", n, n))
			}
			methods = append(methods, fmt.Sprintf("toJSON() { return { %s }; }", strings.Join(props, ", ")))
		}
	}
	return methods
}
