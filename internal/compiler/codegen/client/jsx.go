package client

import (
	"fmt"

	"github.com/tovalang/tova/internal/compiler/ast"
)

// desugarChild rewrites a JSXChild into a plain Expression built from `h()`
// calls, array literals and lambdas, so the generic lowering core (which
// knows nothing about JSX) can emit it unmodified. scopeID, when non-empty,
// is attached to every element as a "data-s" prop for CSS scoping.
func desugarChild(c ast.JSXChild, scopeID string) ast.Expression {
	switch n := c.(type) {
	case *ast.JSXText:
		return &ast.StringLiteral{Value: n.Text}
	case *ast.JSXExpressionChild:
		return desugarExpr(n.Expr, scopeID)
	case *ast.JSXElement:
		return desugarElement(n, scopeID)
	case *ast.JSXFragment:
		children := make([]ast.Expression, len(n.Children))
		for i, ch := range n.Children {
			children[i] = desugarChild(ch, scopeID)
		}
		return &ast.ArrayLiteral{Elements: children}
	case *ast.JSXFor:
		lambdaBody := []ast.Statement{&ast.ReturnStatement{Value: desugarChild(n.Body, scopeID)}}
		callee := &ast.MemberExpression{Object: n.Iterable, Property: "map"}
		return &ast.CallExpression{
			Callee: callee,
			Arguments: []ast.Expression{
				&ast.LambdaExpression{Params: []*ast.Param{{Name: n.Variable}}, Body: lambdaBody},
			},
		}
	case *ast.JSXIf:
		return desugarJSXIf(n, scopeID)
	case *ast.JSXMatch:
		return desugarJSXMatch(n, scopeID)
	default:
		return &ast.StringLiteral{Value: fmt.Sprintf("/* unsupported jsx child: %T */", c)}
	}
}

func desugarElement(e *ast.JSXElement, scopeID string) ast.Expression {
	props := make([]ast.ObjectProperty, 0, len(e.Attributes)+1)
	for _, attr := range e.Attributes {
		value := attr.Value
		if value == nil {
			value = &ast.BoolLiteral{Value: true}
		}
		props = append(props, ast.ObjectProperty{Key: propKey(attr.Name), Value: desugarExpr(value, scopeID)})
	}
	if scopeID != "" {
		props = append(props, ast.ObjectProperty{Key: `"data-s"`, Value: &ast.StringLiteral{Value: scopeID}})
	}

	children := make([]ast.Expression, len(e.Children))
	for i, ch := range e.Children {
		children[i] = desugarChild(ch, scopeID)
	}

	args := []ast.Expression{
		&ast.StringLiteral{Value: e.Tag},
		&ast.ObjectLiteral{Properties: props},
	}
	args = append(args, children...)

	return &ast.CallExpression{Callee: &ast.Identifier{Name: "h"}, Arguments: args}
}

// propKey renders a JSX attribute name as an object-literal key. A plain
// name is written bare; a directive name (bind:value, class:active,
// use:action, transition:fade) isn't a valid bare identifier, so it's
// quoted.
func propKey(name string) string {
	for _, r := range name {
		if r == ':' || r == '-' {
			return fmt.Sprintf("%q", name)
		}
	}
	return name
}

func desugarJSXIf(n *ast.JSXIf, scopeID string) ast.Expression {
	elseExpr := ast.Expression(&ast.NilLiteral{})
	if n.Else != nil {
		elseExpr = desugarChild(n.Else, scopeID)
	}
	for i := len(n.Elifs) - 1; i >= 0; i-- {
		arm := n.Elifs[i]
		elseExpr = &ast.IfExpression{
			Condition: arm.Condition,
			Then:      []ast.Statement{&ast.ReturnStatement{Value: desugarChild(arm.Body, scopeID)}},
			Else:      []ast.Statement{&ast.ReturnStatement{Value: elseExpr}},
		}
	}
	return &ast.IfExpression{
		Condition: n.Condition,
		Then:      []ast.Statement{&ast.ReturnStatement{Value: desugarChild(n.Then, scopeID)}},
		Else:      []ast.Statement{&ast.ReturnStatement{Value: elseExpr}},
	}
}

func desugarJSXMatch(n *ast.JSXMatch, scopeID string) ast.Expression {
	arms := make([]*ast.MatchArm, len(n.Arms))
	for i, a := range n.Arms {
		arms[i] = &ast.MatchArm{
			Pattern: a.Pattern,
			Guard:   a.Guard,
			Body:    []ast.Statement{&ast.ReturnStatement{Value: desugarChild(a.Body, scopeID)}},
		}
	}
	return &ast.MatchExpression{Subject: n.Subject, Arms: arms}
}

// desugarExpr recursively rewrites JSX nodes nested anywhere inside an
// otherwise ordinary expression tree; every other node is walked shallowly
// so a JSX element three levels deep in a conditional still gets desugared.
func desugarExpr(e ast.Expression, scopeID string) ast.Expression {
	switch n := e.(type) {
	case *ast.JSXElement:
		return desugarElement(n, scopeID)
	case *ast.JSXFragment:
		return desugarChild(n, scopeID)
	case *ast.BinaryExpression:
		return &ast.BinaryExpression{Left: desugarExpr(n.Left, scopeID), Operator: n.Operator, Right: desugarExpr(n.Right, scopeID)}
	case *ast.LogicalExpression:
		return &ast.LogicalExpression{Left: desugarExpr(n.Left, scopeID), Operator: n.Operator, Right: desugarExpr(n.Right, scopeID)}
	case *ast.UnaryExpression:
		return &ast.UnaryExpression{Operator: n.Operator, Operand: desugarExpr(n.Operand, scopeID)}
	case *ast.CallExpression:
		args := make([]ast.Expression, len(n.Arguments))
		for i, a := range n.Arguments {
			args[i] = desugarExpr(a, scopeID)
		}
		return &ast.CallExpression{Callee: desugarExpr(n.Callee, scopeID), Arguments: args}
	case *ast.ArrayLiteral:
		els := make([]ast.Expression, len(n.Elements))
		for i, el := range n.Elements {
			els[i] = desugarExpr(el, scopeID)
		}
		return &ast.ArrayLiteral{Elements: els}
	case *ast.ObjectLiteral:
		props := make([]ast.ObjectProperty, len(n.Properties))
		for i, p := range n.Properties {
			props[i] = ast.ObjectProperty{Key: p.Key, Value: desugarExpr(p.Value, scopeID)}
		}
		return &ast.ObjectLiteral{Properties: props}
	case *ast.IfExpression:
		return &ast.IfExpression{
			Condition: desugarExpr(n.Condition, scopeID),
			Then:      desugarStatements(n.Then, scopeID),
			Else:      desugarStatements(n.Else, scopeID),
		}
	default:
		return e
	}
}

// desugarStatements applies desugarExpr to the expression-bearing fields of
// each statement in body, recursing into nested bodies.
func desugarStatements(body []ast.Statement, scopeID string) []ast.Statement {
	out := make([]ast.Statement, len(body))
	for i, stmt := range body {
		out[i] = desugarStatement(stmt, scopeID)
	}
	return out
}

func desugarStatement(stmt ast.Statement, scopeID string) ast.Statement {
	switch s := stmt.(type) {
	case *ast.ReturnStatement:
		if s.Value == nil {
			return s
		}
		return &ast.ReturnStatement{Value: desugarExpr(s.Value, scopeID)}
	case *ast.ExpressionStatement:
		return &ast.ExpressionStatement{Expr: desugarExpr(s.Expr, scopeID)}
	case *ast.VarDeclaration:
		values := make([]ast.Expression, len(s.Values))
		for i, v := range s.Values {
			values[i] = desugarExpr(v, scopeID)
		}
		return &ast.VarDeclaration{Targets: s.Targets, Values: values}
	case *ast.IfStatement:
		alts := make([]*ast.ElseIf, len(s.Alternates))
		for i, a := range s.Alternates {
			alts[i] = &ast.ElseIf{Condition: desugarExpr(a.Condition, scopeID), Body: desugarStatements(a.Body, scopeID)}
		}
		return &ast.IfStatement{
			Condition:  desugarExpr(s.Condition, scopeID),
			Consequent: desugarStatements(s.Consequent, scopeID),
			Alternates: alts,
			ElseBody:   desugarStatements(s.ElseBody, scopeID),
		}
	default:
		return stmt
	}
}
