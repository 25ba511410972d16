package lower

import (
	"fmt"
	"strings"

	"github.com/tovalang/tova/internal/compiler/ast"
)

// LowerExpr lowers expr to a single JS expression string. It never emits
// directly to the buffer — statement-level callers decide how the text is
// used (assigned, returned, wrapped in a call, ...).
func (l *Lowerer) LowerExpr(expr ast.Expression) string {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return e.Value
	case *ast.StringLiteral:
		return l.lowerStringLiteral(e)
	case *ast.BoolLiteral:
		if e.Value {
			return "true"
		}
		return "false"
	case *ast.NilLiteral:
		return "null"
	case *ast.Identifier:
		if e.Name == "None" {
			l.Usage.NeedsResultOption = true
		}
		if text, handled := l.Target.ReadIdentifier(l, e.Name); handled {
			return text
		}
		return e.Name
	case *ast.BinaryExpression:
		if e.Operator == "??" {
			l.Usage.NeedsNullishHelper = true
			return fmt.Sprintf("__nullish(%s, %s)", l.LowerExpr(e.Left), l.LowerExpr(e.Right))
		}
		return fmt.Sprintf("(%s %s %s)", l.LowerExpr(e.Left), jsOperator(e.Operator), l.LowerExpr(e.Right))
	case *ast.UnaryExpression:
		return fmt.Sprintf("(%s%s)", jsOperator(e.Operator), l.LowerExpr(e.Operand))
	case *ast.LogicalExpression:
		op := "&&"
		if e.Operator == "or" {
			op = "||"
		}
		return fmt.Sprintf("(%s %s %s)", l.LowerExpr(e.Left), op, l.LowerExpr(e.Right))
	case *ast.ChainedComparison:
		return l.lowerChainedComparison(e)
	case *ast.MembershipExpression:
		return l.lowerMembership(e)
	case *ast.CallExpression:
		return l.lowerCall(e)
	case *ast.NamedArgument:
		// Named arguments are resolved against the callee's parameter list
		// by lowerCall; evaluated bare, they still produce their value.
		return l.LowerExpr(e.Value)
	case *ast.MemberExpression:
		if e.Computed {
			return fmt.Sprintf("%s[%s]", l.LowerExpr(e.Object), e.Property)
		}
		return fmt.Sprintf("%s.%s", l.LowerExpr(e.Object), e.Property)
	case *ast.OptionalChain:
		if e.Computed {
			return fmt.Sprintf("%s?.[%s]", l.LowerExpr(e.Object), e.Property)
		}
		return fmt.Sprintf("%s?.%s", l.LowerExpr(e.Object), e.Property)
	case *ast.PipeExpression:
		return l.lowerPipe(e)
	case *ast.PipePlaceholder:
		return "_"
	case *ast.LambdaExpression:
		return l.lowerLambda(e)
	case *ast.MatchExpression:
		return l.lowerMatchExpr(e)
	case *ast.IfExpression:
		return l.lowerIfExpr(e)
	case *ast.ArrayLiteral:
		return l.lowerArrayLiteral(e)
	case *ast.ObjectLiteral:
		return l.lowerObjectLiteral(e)
	case *ast.ListComprehension:
		return l.lowerListComprehension(e)
	case *ast.DictComprehension:
		return l.lowerDictComprehension(e)
	case *ast.RangeExpression:
		return l.lowerRange(e)
	case *ast.SliceExpression:
		return l.lowerSlice(e)
	case *ast.SpreadExpression:
		return fmt.Sprintf("...%s", l.LowerExpr(e.Value))
	case *ast.PropagateExpression:
		l.Usage.NeedsPropagateHelper = true
		return fmt.Sprintf("__propagate(%s)", l.LowerExpr(e.Value))
	case *ast.AwaitExpression:
		return fmt.Sprintf("(await %s)", l.LowerExpr(e.Value))
	case *ast.JSXElement, *ast.JSXFragment:
		// JSX lowering is client-specific (codegen/client owns it); the
		// shared core only needs to not choke when walking a client AST
		// that embeds template expressions in non-template position.
		return "/* jsx */"
	default:
		return fmt.Sprintf("/* unsupported: %T */", expr)
	}
}

func (l *Lowerer) lowerStringLiteral(s *ast.StringLiteral) string {
	if len(s.Parts) == 0 {
		return fmt.Sprintf("%q", s.Value)
	}
	var b strings.Builder
	b.WriteByte('`')
	for _, p := range s.Parts {
		if p.IsExpr {
			b.WriteString("${")
			b.WriteString(l.LowerExpr(p.Expr))
			b.WriteString("}")
		} else {
			b.WriteString(strings.ReplaceAll(p.Text, "`", "\\`"))
		}
	}
	b.WriteByte('`')
	return b.String()
}

func jsOperator(op string) string {
	switch op {
	case "==":
		return "==="
	case "!=":
		return "!=="
	default:
		return op
	}
}

func (l *Lowerer) lowerChainedComparison(c *ast.ChainedComparison) string {
	parts := make([]string, 0, len(c.Operators))
	for i, op := range c.Operators {
		parts = append(parts, fmt.Sprintf("(%s %s %s)", l.LowerExpr(c.Operands[i]), jsOperator(op), l.LowerExpr(c.Operands[i+1])))
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, " && "))
}

func (l *Lowerer) lowerMembership(m *ast.MembershipExpression) string {
	l.Usage.NeedsContainsHelper = true
	text := fmt.Sprintf("__contains(%s, %s)", l.LowerExpr(m.Collection), l.LowerExpr(m.Value))
	if m.Negated {
		return fmt.Sprintf("(!%s)", text)
	}
	return text
}

func (l *Lowerer) lowerCall(c *ast.CallExpression) string {
	args := make([]string, 0, len(c.Arguments))
	for _, a := range c.Arguments {
		args = append(args, l.LowerExpr(a))
	}
	text := fmt.Sprintf("%s(%s)", l.LowerExpr(c.Callee), strings.Join(args, ", "))

	if id, ok := c.Callee.(*ast.Identifier); ok {
		switch id.Name {
		case "Ok", "Err", "Some":
			l.Usage.NeedsResultOption = true
		}
		if l.Target.AutoAwait(l, id.Name) {
			return fmt.Sprintf("(await %s)", text)
		}
	}
	// spec.md §4.3: "A server call is any CallExpression whose callee is a
	// member expression on the identifier `server`."
	if m, ok := c.Callee.(*ast.MemberExpression); ok {
		if obj, ok := m.Object.(*ast.Identifier); ok && obj.Name == "server" {
			if l.Target.AutoAwait(l, m.Property) {
				return fmt.Sprintf("(await %s)", text)
			}
		}
	}
	return text
}

func (l *Lowerer) lowerLambda(lam *ast.LambdaExpression) string {
	params := make([]string, len(lam.Params))
	for i, p := range lam.Params {
		params[i] = l.lowerParam(p)
	}
	asyncKw := ""
	if lam.IsAsync || l.containsRPC(lam.Body) {
		asyncKw = "async "
	}
	savedBuf, savedLine, savedCol := l.buf, l.outLine, l.outCol
	l.buf = strings.Builder{}
	l.emitLine("{")
	if containsPropagate(lam.Body) {
		l.Scope.Push()
		l.indent++
		l.wrapPropagateBody(lam.Body)
		l.indent--
		l.Scope.Pop()
	} else {
		l.LowerBlock(lam.Body)
	}
	l.emitLine("}")
	bodyText := l.buf.String()
	l.buf, l.outLine, l.outCol = savedBuf, savedLine, savedCol

	return fmt.Sprintf("%s(%s) => %s", asyncKw, strings.Join(params, ", "), strings.TrimRight(bodyText, "\n"))
}

func (l *Lowerer) lowerIfExpr(e *ast.IfExpression) string {
	thenText := l.lowerExprBlockAsValue(e.Then)
	elseText := l.lowerExprBlockAsValue(e.Else)
	return fmt.Sprintf("(%s ? %s : %s)", l.LowerExpr(e.Condition), thenText, elseText)
}

// lowerExprBlockAsValue renders a statement list used in expression
// position (IfExpression arms, match arm bodies) as a single value: the
// last ExpressionStatement's expression, or `undefined` if empty.
func (l *Lowerer) lowerExprBlockAsValue(body []ast.Statement) string {
	if len(body) == 0 {
		return "undefined"
	}
	last := body[len(body)-1]
	if es, ok := last.(*ast.ExpressionStatement); ok {
		return l.LowerExpr(es.Expr)
	}
	if rs, ok := last.(*ast.ReturnStatement); ok && rs.Value != nil {
		return l.LowerExpr(rs.Value)
	}
	return "undefined"
}

func (l *Lowerer) lowerArrayLiteral(a *ast.ArrayLiteral) string {
	parts := make([]string, len(a.Elements))
	for i, el := range a.Elements {
		parts[i] = l.LowerExpr(el)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}

func (l *Lowerer) lowerObjectLiteral(o *ast.ObjectLiteral) string {
	parts := make([]string, len(o.Properties))
	for i, p := range o.Properties {
		parts[i] = fmt.Sprintf("%s: %s", p.Key, l.LowerExpr(p.Value))
	}
	return fmt.Sprintf("{ %s }", strings.Join(parts, ", "))
}

func (l *Lowerer) lowerListComprehension(c *ast.ListComprehension) string {
	l.Scope.Push()
	l.Scope.Declare(c.Variable)
	body := fmt.Sprintf("%s.map(%s => %s)", l.LowerExpr(c.Iterable), c.Variable, l.LowerExpr(c.Expr))
	if c.Cond != nil {
		body = fmt.Sprintf("%s.filter(%s => %s).map(%s => %s)", l.LowerExpr(c.Iterable), c.Variable, l.LowerExpr(c.Cond), c.Variable, l.LowerExpr(c.Expr))
	}
	l.Scope.Pop()
	return body
}

func (l *Lowerer) lowerDictComprehension(c *ast.DictComprehension) string {
	l.Scope.Push()
	l.Scope.Declare(c.Variable)
	source := l.LowerExpr(c.Iterable)
	if c.Cond != nil {
		source = fmt.Sprintf("%s.filter(%s => %s)", source, c.Variable, l.LowerExpr(c.Cond))
	}
	entry := fmt.Sprintf("[%s, %s]", l.LowerExpr(c.KeyExpr), l.LowerExpr(c.ValueExpr))
	l.Scope.Pop()
	return fmt.Sprintf("Object.fromEntries(%s.map(%s => %s))", source, c.Variable, entry)
}

func (l *Lowerer) lowerRange(r *ast.RangeExpression) string {
	end := l.LowerExpr(r.End)
	if r.Inclusive {
		end = fmt.Sprintf("(%s + 1)", end)
	}
	return fmt.Sprintf("Array.from({ length: %s - %s }, (_, __i) => %s + __i)", end, l.LowerExpr(r.Start), l.LowerExpr(r.Start))
}

func (l *Lowerer) lowerSlice(s *ast.SliceExpression) string {
	start := "undefined"
	if s.Start != nil {
		start = l.LowerExpr(s.Start)
	}
	end := "undefined"
	if s.End != nil {
		end = l.LowerExpr(s.End)
	}
	if s.Step != nil {
		l.Usage.builtin("__sliceStep")
		return fmt.Sprintf("__sliceStep(%s, %s, %s, %s)", l.LowerExpr(s.Object), start, end, l.LowerExpr(s.Step))
	}
	return fmt.Sprintf("%s.slice(%s, %s)", l.LowerExpr(s.Object), start, end)
}

// lowerPipe lowers `left |> right`: if right's arguments contain a
// PipePlaceholder, left substitutes for it; otherwise left becomes the
// call's first argument. `left |> .method(args)` (a call whose callee is a
// MemberExpression with no Object) is lowered as `left.method(args)`, and a
// bare `.method` with no call as `left.method()`.
func (l *Lowerer) lowerPipe(p *ast.PipeExpression) string {
	leftText := l.LowerExpr(p.Left)

	if m, ok := p.Right.(*ast.MemberExpression); ok && m.Object == nil {
		return fmt.Sprintf("%s.%s()", leftText, m.Property)
	}
	call, isCall := p.Right.(*ast.CallExpression)
	if !isCall {
		return fmt.Sprintf("%s(%s)", l.LowerExpr(p.Right), leftText)
	}
	if m, ok := call.Callee.(*ast.MemberExpression); ok && m.Object == nil {
		margs := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			margs[i] = l.LowerExpr(a)
		}
		return fmt.Sprintf("%s.%s(%s)", leftText, m.Property, strings.Join(margs, ", "))
	}

	hasPlaceholder := false
	args := make([]string, len(call.Arguments))
	for i, a := range call.Arguments {
		if _, ok := a.(*ast.PipePlaceholder); ok {
			args[i] = leftText
			hasPlaceholder = true
			continue
		}
		args[i] = l.LowerExpr(a)
	}
	if !hasPlaceholder {
		args = append([]string{leftText}, args...)
	}
	return fmt.Sprintf("%s(%s)", l.LowerExpr(call.Callee), strings.Join(args, ", "))
}
