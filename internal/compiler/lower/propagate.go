package lower

import "github.com/tovalang/tova/internal/compiler/ast"

// containsPropagate reports whether body contains a PropagateExpression
// without crossing into a nested function or lambda body (spec.md §4.1:
// "not crossing nested function or lambda boundaries"). A function whose
// own body contains one gets its body wrapped in the propagate try/catch;
// a `?` inside a lambda nested in that body only affects the lambda.
func containsPropagate(body []ast.Statement) bool {
	for _, s := range body {
		if stmtContainsPropagate(s) {
			return true
		}
	}
	return false
}

func stmtContainsPropagate(s ast.Statement) bool {
	switch st := s.(type) {
	case *ast.ExpressionStatement:
		return exprContainsPropagate(st.Expr)
	case *ast.ReturnStatement:
		return st.Value != nil && exprContainsPropagate(st.Value)
	case *ast.Assignment:
		for _, v := range st.Values {
			if exprContainsPropagate(v) {
				return true
			}
		}
		return false
	case *ast.VarDeclaration:
		for _, v := range st.Values {
			if exprContainsPropagate(v) {
				return true
			}
		}
		return false
	case *ast.LetDestructure:
		return exprContainsPropagate(st.Value)
	case *ast.CompoundAssignment:
		return exprContainsPropagate(st.Value)
	case *ast.IfStatement:
		if exprContainsPropagate(st.Condition) || containsPropagate(st.Consequent) || containsPropagate(st.ElseBody) {
			return true
		}
		for _, alt := range st.Alternates {
			if exprContainsPropagate(alt.Condition) || containsPropagate(alt.Body) {
				return true
			}
		}
		return false
	case *ast.ForStatement:
		return exprContainsPropagate(st.Iterable) || containsPropagate(st.Body) || containsPropagate(st.ElseBody)
	case *ast.WhileStatement:
		return exprContainsPropagate(st.Condition) || containsPropagate(st.Body)
	case *ast.TryCatchStatement:
		return containsPropagate(st.Try) || containsPropagate(st.Catch)
	case *ast.GuardStatement:
		return exprContainsPropagate(st.Condition) || containsPropagate(st.ElseBody)
	case *ast.BlockStatement:
		return containsPropagate(st.Body)
	// FunctionDeclaration and any lambda embedded in an expression are
	// boundaries: a nested function's own `?` is handled when that
	// function is itself lowered, not by the enclosing one.
	default:
		return false
	}
}

func exprContainsPropagate(e ast.Expression) bool {
	switch ex := e.(type) {
	case *ast.PropagateExpression:
		return true
	case *ast.BinaryExpression:
		return exprContainsPropagate(ex.Left) || exprContainsPropagate(ex.Right)
	case *ast.UnaryExpression:
		return exprContainsPropagate(ex.Operand)
	case *ast.LogicalExpression:
		return exprContainsPropagate(ex.Left) || exprContainsPropagate(ex.Right)
	case *ast.ChainedComparison:
		for _, o := range ex.Operands {
			if exprContainsPropagate(o) {
				return true
			}
		}
		return false
	case *ast.MembershipExpression:
		return exprContainsPropagate(ex.Value) || exprContainsPropagate(ex.Collection)
	case *ast.CallExpression:
		if exprContainsPropagate(ex.Callee) {
			return true
		}
		for _, a := range ex.Arguments {
			if exprContainsPropagate(a) {
				return true
			}
		}
		return false
	case *ast.MemberExpression:
		return exprContainsPropagate(ex.Object)
	case *ast.OptionalChain:
		return exprContainsPropagate(ex.Object)
	case *ast.PipeExpression:
		return exprContainsPropagate(ex.Left) || exprContainsPropagate(ex.Right)
	case *ast.IfExpression:
		return exprContainsPropagate(ex.Condition) || containsPropagate(ex.Then) || containsPropagate(ex.Else)
	case *ast.ArrayLiteral:
		for _, el := range ex.Elements {
			if exprContainsPropagate(el) {
				return true
			}
		}
		return false
	case *ast.ObjectLiteral:
		for _, p := range ex.Properties {
			if exprContainsPropagate(p.Value) {
				return true
			}
		}
		return false
	case *ast.SpreadExpression:
		return exprContainsPropagate(ex.Value)
	case *ast.AwaitExpression:
		return exprContainsPropagate(ex.Value)
	case *ast.NamedArgument:
		return exprContainsPropagate(ex.Value)
	default:
		return false
	}
}

// wrapPropagateBody renders body's lowered statements inside a try/catch
// that unwraps the propagate sentinel and returns its carried Result/
// Option, matching lowerStatement's established emit-via-Lowerer style.
func (l *Lowerer) wrapPropagateBody(body []ast.Statement) {
	l.Usage.NeedsPropagateHelper = true
	l.emitLine("try {")
	l.LowerBlock(body)
	l.emitLine("} catch (__e) {")
	l.indent++
	l.emitLine("return __unwrapPropagated(__e);")
	l.indent--
	l.emitLine("}")
}
