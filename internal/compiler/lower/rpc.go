package lower

import "github.com/tovalang/tova/internal/compiler/ast"

// containsRPC reports whether body contains a call the active target
// auto-awaits (spec.md §4.3: a server call is any CallExpression whose
// callee the target recognizes, e.g. `server.<name>(...)` on the client
// target) without crossing into a nested function or lambda body. A
// function/lambda/effect whose own body contains one is marked async even
// when the author didn't write `async` explicitly.
func (l *Lowerer) containsRPC(body []ast.Statement) bool {
	for _, s := range body {
		if l.stmtContainsRPC(s) {
			return true
		}
	}
	return false
}

// ContainsRPC is the exported form of containsRPC, for codegen packages
// (e.g. codegen/client's EffectDeclaration lowering) that need the same
// check outside a function/lambda body.
func (l *Lowerer) ContainsRPC(body []ast.Statement) bool {
	return l.containsRPC(body)
}

func (l *Lowerer) stmtContainsRPC(s ast.Statement) bool {
	switch st := s.(type) {
	case *ast.ExpressionStatement:
		return l.exprContainsRPC(st.Expr)
	case *ast.ReturnStatement:
		return st.Value != nil && l.exprContainsRPC(st.Value)
	case *ast.Assignment:
		for _, v := range st.Values {
			if l.exprContainsRPC(v) {
				return true
			}
		}
		return false
	case *ast.VarDeclaration:
		for _, v := range st.Values {
			if l.exprContainsRPC(v) {
				return true
			}
		}
		return false
	case *ast.LetDestructure:
		return l.exprContainsRPC(st.Value)
	case *ast.CompoundAssignment:
		return l.exprContainsRPC(st.Value)
	case *ast.IfStatement:
		if l.exprContainsRPC(st.Condition) || l.containsRPC(st.Consequent) || l.containsRPC(st.ElseBody) {
			return true
		}
		for _, alt := range st.Alternates {
			if l.exprContainsRPC(alt.Condition) || l.containsRPC(alt.Body) {
				return true
			}
		}
		return false
	case *ast.ForStatement:
		return l.exprContainsRPC(st.Iterable) || l.containsRPC(st.Body) || l.containsRPC(st.ElseBody)
	case *ast.WhileStatement:
		return l.exprContainsRPC(st.Condition) || l.containsRPC(st.Body)
	case *ast.TryCatchStatement:
		return l.containsRPC(st.Try) || l.containsRPC(st.Catch)
	case *ast.GuardStatement:
		return l.exprContainsRPC(st.Condition) || l.containsRPC(st.ElseBody)
	case *ast.BlockStatement:
		return l.containsRPC(st.Body)
	// A nested FunctionDeclaration is its own boundary, same as propagate.
	default:
		return false
	}
}

func (l *Lowerer) exprContainsRPC(e ast.Expression) bool {
	switch ex := e.(type) {
	case *ast.CallExpression:
		if id, ok := ex.Callee.(*ast.Identifier); ok && l.Target.AutoAwait(l, id.Name) {
			return true
		}
		if m, ok := ex.Callee.(*ast.MemberExpression); ok {
			if obj, ok := m.Object.(*ast.Identifier); ok && obj.Name == "server" && l.Target.AutoAwait(l, m.Property) {
				return true
			}
		}
		if l.exprContainsRPC(ex.Callee) {
			return true
		}
		for _, a := range ex.Arguments {
			if l.exprContainsRPC(a) {
				return true
			}
		}
		return false
	case *ast.BinaryExpression:
		return l.exprContainsRPC(ex.Left) || l.exprContainsRPC(ex.Right)
	case *ast.UnaryExpression:
		return l.exprContainsRPC(ex.Operand)
	case *ast.LogicalExpression:
		return l.exprContainsRPC(ex.Left) || l.exprContainsRPC(ex.Right)
	case *ast.ChainedComparison:
		for _, o := range ex.Operands {
			if l.exprContainsRPC(o) {
				return true
			}
		}
		return false
	case *ast.MembershipExpression:
		return l.exprContainsRPC(ex.Value) || l.exprContainsRPC(ex.Collection)
	case *ast.MemberExpression:
		return l.exprContainsRPC(ex.Object)
	case *ast.OptionalChain:
		return l.exprContainsRPC(ex.Object)
	case *ast.PipeExpression:
		return l.exprContainsRPC(ex.Left) || l.exprContainsRPC(ex.Right)
	case *ast.PropagateExpression:
		return l.exprContainsRPC(ex.Value)
	case *ast.AwaitExpression:
		return l.exprContainsRPC(ex.Value)
	case *ast.IfExpression:
		return l.exprContainsRPC(ex.Condition) || l.containsRPC(ex.Then) || l.containsRPC(ex.Else)
	case *ast.ArrayLiteral:
		for _, el := range ex.Elements {
			if l.exprContainsRPC(el) {
				return true
			}
		}
		return false
	case *ast.ObjectLiteral:
		for _, p := range ex.Properties {
			if l.exprContainsRPC(p.Value) {
				return true
			}
		}
		return false
	case *ast.SpreadExpression:
		return l.exprContainsRPC(ex.Value)
	case *ast.NamedArgument:
		return l.exprContainsRPC(ex.Value)
	default:
		return false
	}
}
