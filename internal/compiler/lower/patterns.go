package lower

import (
	"fmt"
	"strings"

	"github.com/tovalang/tova/internal/compiler/ast"
)

// lowerMatchExpr lowers a match expression to an IIFE containing an
// if/else-if chain over the subject, one arm per branch, falling through to
// a throw if no arm (including no wildcard) matches.
func (l *Lowerer) lowerMatchExpr(m *ast.MatchExpression) string {
	subjectVar := "__subject"
	subjectText := l.LowerExpr(m.Subject)

	var b strings.Builder
	b.WriteString("(() => {\n")
	fmt.Fprintf(&b, "  const %s = %s;\n", subjectVar, subjectText)
	for i, arm := range m.Arms {
		kw := "if"
		if i > 0 {
			kw = "else if"
		}
		cond, bindings := l.patternTest(arm.Pattern, subjectVar)
		if arm.Guard != nil {
			cond = fmt.Sprintf("(%s) && (%s)", cond, l.lowerGuard(arm.Guard, bindings))
		}
		fmt.Fprintf(&b, "  %s (%s) {\n", kw, cond)
		for _, decl := range bindings {
			fmt.Fprintf(&b, "    const %s = %s;\n", decl.name, decl.expr)
		}
		fmt.Fprintf(&b, "    return %s;\n", l.lowerExprBlockAsValue(arm.Body))
		b.WriteString("  }\n")
	}
	b.WriteString("  throw new Error(\"no match arm satisfied\");\n")
	b.WriteString("})()")
	return b.String()
}

// lowerMatchStatement lowers a match used as a statement: same shape, but
// each arm's body runs as statements (not collapsed to a single value) and
// there is no trailing "no arm matched" throw expression result to return.
func (l *Lowerer) lowerMatchStatement(m *ast.MatchExpression) {
	subjectVar := "__subject"
	l.emitf("{")
	l.indent++
	l.emitf("const %s = %s;", subjectVar, l.LowerExpr(m.Subject))
	for i, arm := range m.Arms {
		kw := "if"
		if i > 0 {
			kw = "else if"
		}
		cond, bindings := l.patternTest(arm.Pattern, subjectVar)
		if arm.Guard != nil {
			cond = fmt.Sprintf("(%s) && (%s)", cond, l.lowerGuard(arm.Guard, bindings))
		}
		l.emitf("%s (%s) {", kw, cond)
		l.Scope.Push()
		l.indent++
		for _, decl := range bindings {
			l.emitf("const %s = %s;", decl.name, decl.expr)
			l.Scope.Declare(decl.name)
		}
		for _, st := range arm.Body {
			l.LowerStatement(st)
		}
		l.indent--
		l.Scope.Pop()
		l.emitf("}")
	}
	l.indent--
	l.emitf("}")
}

type binding struct {
	name string
	expr string
}

// lowerGuard renders a match arm's guard expression. spec.md §4.1: "For a
// binding pattern with a guard, the binding must occur before the guard
// evaluates (accomplished by wrapping the guard in a lambda that receives
// the binding)." When the arm introduced any bindings, the guard is
// evaluated by an immediately-invoked lambda whose parameters are the
// bound names, called with the expressions that read them out of the
// subject — so the guard text can reference the binding by name before the
// surrounding `if` block's own `const` declarations exist.
func (l *Lowerer) lowerGuard(guard ast.Expression, bindings []binding) string {
	guardText := l.LowerExpr(guard)
	if len(bindings) == 0 {
		return guardText
	}
	names := make([]string, len(bindings))
	args := make([]string, len(bindings))
	for i, bnd := range bindings {
		names[i] = bnd.name
		args[i] = bnd.expr
	}
	return fmt.Sprintf("((%s) => (%s))(%s)", strings.Join(names, ", "), guardText, strings.Join(args, ", "))
}

// patternTest returns a boolean JS expression testing whether subject
// (already evaluated into the JS variable named subjectVar) matches p, and
// the list of bindings the match introduces (name -> JS expression reading
// the bound value out of subjectVar).
func (l *Lowerer) patternTest(p ast.Pattern, subjectVar string) (string, []binding) {
	switch pat := p.(type) {
	case *ast.WildcardPattern:
		return "true", nil
	case *ast.BindingPattern:
		return "true", []binding{{pat.Name, subjectVar}}
	case *ast.LiteralPattern:
		return fmt.Sprintf("(%s === %s)", subjectVar, l.LowerExpr(pat.Value)), nil
	case *ast.RangePattern:
		op := "<"
		if pat.Inclusive {
			op = "<="
		}
		return fmt.Sprintf("(%s >= %s && %s %s %s)", subjectVar, l.LowerExpr(pat.Start), subjectVar, op, l.LowerExpr(pat.End)), nil
	case *ast.VariantPattern:
		return l.patternTestVariant(pat, subjectVar)
	case *ast.ArrayPattern:
		return l.patternTestArray(pat, subjectVar)
	case *ast.ObjectPattern:
		return l.patternTestObject(pat, subjectVar)
	case *ast.StringConcatPattern:
		cond := fmt.Sprintf("(typeof %s === \"string\" && %s.startsWith(%q))", subjectVar, subjectVar, pat.Prefix)
		rest := fmt.Sprintf("%s.slice(%d)", subjectVar, len(pat.Prefix))
		if pat.Rest == "" {
			return cond, nil
		}
		return cond, []binding{{pat.Rest, rest}}
	default:
		return fmt.Sprintf("/* unsupported pattern: %T */ false", p), nil
	}
}

func (l *Lowerer) patternTestVariant(pat *ast.VariantPattern, subjectVar string) (string, []binding) {
	cond := fmt.Sprintf("(%s && %s.__tag === %q)", subjectVar, subjectVar, pat.Name)
	fields := l.VariantFields[pat.Name]
	var bindings []binding
	var subConds []string
	for i, fieldPat := range pat.Fields {
		fieldName := fmt.Sprintf("_%d", i)
		if i < len(fields) {
			fieldName = fields[i]
		}
		access := fmt.Sprintf("%s.%s", subjectVar, fieldName)
		sub, subBindings := l.patternTest(fieldPat, access)
		if sub != "true" {
			subConds = append(subConds, sub)
		}
		bindings = append(bindings, subBindings...)
	}
	if len(subConds) > 0 {
		cond = fmt.Sprintf("(%s && %s)", cond, strings.Join(subConds, " && "))
	}
	return cond, bindings
}

func (l *Lowerer) patternTestArray(pat *ast.ArrayPattern, subjectVar string) (string, []binding) {
	cond := fmt.Sprintf("Array.isArray(%s)", subjectVar)
	if pat.Rest == "" {
		cond = fmt.Sprintf("(%s && %s.length === %d)", cond, subjectVar, len(pat.Elements))
	} else {
		cond = fmt.Sprintf("(%s && %s.length >= %d)", cond, subjectVar, len(pat.Elements))
	}
	var bindings []binding
	var subConds []string
	for i, el := range pat.Elements {
		access := fmt.Sprintf("%s[%d]", subjectVar, i)
		sub, subBindings := l.patternTest(el, access)
		if sub != "true" {
			subConds = append(subConds, sub)
		}
		bindings = append(bindings, subBindings...)
	}
	if pat.Rest != "" {
		bindings = append(bindings, binding{pat.Rest, fmt.Sprintf("%s.slice(%d)", subjectVar, len(pat.Elements))})
	}
	if len(subConds) > 0 {
		cond = fmt.Sprintf("(%s && %s)", cond, strings.Join(subConds, " && "))
	}
	return cond, bindings
}

func (l *Lowerer) patternTestObject(pat *ast.ObjectPattern, subjectVar string) (string, []binding) {
	cond := fmt.Sprintf("(%s !== null && typeof %s === \"object\")", subjectVar, subjectVar)
	var bindings []binding
	var subConds []string
	for key, fieldPat := range pat.Fields {
		access := fmt.Sprintf("%s.%s", subjectVar, key)
		sub, subBindings := l.patternTest(fieldPat, access)
		if sub != "true" {
			subConds = append(subConds, sub)
		}
		bindings = append(bindings, subBindings...)
	}
	if len(subConds) > 0 {
		cond = fmt.Sprintf("(%s && %s)", cond, strings.Join(subConds, " && "))
	}
	return cond, bindings
}

// lowerDestructurePattern renders p as JS destructuring-assignment target
// syntax, used by LetDestructure (where there's no "no match" possibility
// to guard against — the shape is assumed to hold).
func (l *Lowerer) lowerDestructurePattern(p ast.Pattern) string {
	switch pat := p.(type) {
	case *ast.BindingPattern:
		l.Scope.Declare(pat.Name)
		return pat.Name
	case *ast.ArrayPattern:
		parts := make([]string, len(pat.Elements))
		for i, el := range pat.Elements {
			parts[i] = l.lowerDestructurePattern(el)
		}
		if pat.Rest != "" {
			l.Scope.Declare(pat.Rest)
			parts = append(parts, "..."+pat.Rest)
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
	case *ast.ObjectPattern:
		parts := make([]string, 0, len(pat.Fields))
		for key, fieldPat := range pat.Fields {
			parts = append(parts, fmt.Sprintf("%s: %s", key, l.lowerDestructurePattern(fieldPat)))
		}
		return fmt.Sprintf("{ %s }", strings.Join(parts, ", "))
	case *ast.WildcardPattern:
		return "__ignored"
	default:
		return fmt.Sprintf("/* unsupported destructure pattern: %T */", p)
	}
}
