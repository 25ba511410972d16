package wasm

import (
	"fmt"

	"github.com/tovalang/tova/internal/compiler/ast"
)

// Module is a fully assembled in-memory WASM module, ready for Bytes().
type Module struct {
	functions []compiledFunc
}

type compiledFunc struct {
	name    string
	params  []ValType
	results []ValType
	locals  []ValType // declared after params, in index order
	code    []byte    // function body, opEnd-terminated, no size prefix yet
}

// localVar tracks one local's WASM index and inferred value type.
type localVar struct {
	index uint32
	typ   ValType
}

// compiler holds the per-function state needed to walk its body and emit
// bytecode: each identifier's slot, the running code buffer, and the
// structured-control-flow label stack break/continue consult.
type compiler struct {
	fn        *ast.FunctionDeclaration
	funcTypes map[string]ValType // other numeric functions' return types, for call inference
	funcIndex map[string]uint32  // function name -> WASM function index, for call emission
	locals    map[string]localVar
	nextLocal uint32
	code      []byte
	depth     uint32 // current block/loop/if nesting depth
	loops     []loopLabels
}

type loopLabels struct {
	breakDepth    uint32 // depth of the enclosing block a `break` targets
	continueDepth uint32 // depth of the enclosing loop a `continue` targets
}

// Build compiles every function in funcs that is numeric-only (every param
// and the return type map to Int/Float/Bool) into a Module. Functions using
// any other type, or any construct this emitter doesn't model (spec.md
// §4.5 lists calls, recursion, literals, identifiers, binary arithmetic
// with promotion, unary ops, if as statement and expression, while,
// var-with-inference, auto-declaring assignment, and return), report a
// compile error rather than silently degrading.
func Build(funcs []*ast.FunctionDeclaration) (*Module, error) {
	funcTypes := map[string]ValType{}
	funcIndex := map[string]uint32{}
	for i, f := range funcs {
		rt, err := valType(f.ReturnType)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
		funcTypes[f.Name] = rt
		funcIndex[f.Name] = uint32(i)
	}

	m := &Module{}
	for _, f := range funcs {
		cf, err := compileFunction(f, funcTypes, funcIndex)
		if err != nil {
			return nil, err
		}
		m.functions = append(m.functions, *cf)
	}
	return m, nil
}

func valType(name string) (ValType, error) {
	switch name {
	case "Int", "Bool":
		return I32, nil
	case "Float":
		return F64, nil
	default:
		return 0, fmt.Errorf("unsupported type %q for WASM compilation", name)
	}
}

func compileFunction(f *ast.FunctionDeclaration, funcTypes map[string]ValType, funcIndex map[string]uint32) (*compiledFunc, error) {
	if f.IsAsync {
		return nil, fmt.Errorf("function %s: async functions cannot compile to WASM", f.Name)
	}

	c := &compiler{fn: f, funcTypes: funcTypes, funcIndex: funcIndex, locals: map[string]localVar{}}

	params := make([]ValType, len(f.Params))
	for i, p := range f.Params {
		t, err := valType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("function %s, param %s: %w", f.Name, p.Name, err)
		}
		params[i] = t
		c.locals[p.Name] = localVar{index: uint32(i), typ: t}
	}
	c.nextLocal = uint32(len(params))

	results, err := valType(f.ReturnType)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", f.Name, err)
	}

	if err := c.collectLocals(f.Body); err != nil {
		return nil, err
	}

	if err := c.compileBody(f.Body); err != nil {
		return nil, err
	}
	c.emit(opEnd)

	localTypes := make([]ValType, c.nextLocal-uint32(len(params)))
	for _, lv := range c.locals {
		if lv.index >= uint32(len(params)) {
			localTypes[lv.index-uint32(len(params))] = lv.typ
		}
	}

	return &compiledFunc{
		name:    f.Name,
		params:  params,
		results: []ValType{results},
		locals:  localTypes,
		code:    c.code,
	}, nil
}

// collectLocals walks the body once to discover every variable a
// VarDeclaration or auto-declaring Assignment introduces, assigning it a
// local slot and an inferred type before any code is emitted (WASM
// requires every local declared up front).
func (c *compiler) collectLocals(body []ast.Statement) error {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.VarDeclaration:
			for i, target := range s.Targets {
				name, ok := target.(*ast.Identifier)
				if !ok {
					return fmt.Errorf("function %s: only simple identifier declarations compile to WASM", c.fn.Name)
				}
				if _, exists := c.locals[name.Name]; exists {
					continue
				}
				var val ast.Expression
				if i < len(s.Values) {
					val = s.Values[i]
				}
				c.declareLocal(name.Name, c.inferType(val))
			}
		case *ast.Assignment:
			for i, target := range s.Targets {
				name, ok := target.(*ast.Identifier)
				if !ok {
					return fmt.Errorf("function %s: only simple identifier assignment compiles to WASM", c.fn.Name)
				}
				if _, exists := c.locals[name.Name]; exists {
					continue
				}
				var val ast.Expression
				if i < len(s.Values) {
					val = s.Values[i]
				}
				c.declareLocal(name.Name, c.inferType(val))
			}
		case *ast.IfStatement:
			if err := c.collectLocals(s.Consequent); err != nil {
				return err
			}
			for _, ei := range s.Alternates {
				if err := c.collectLocals(ei.Body); err != nil {
					return err
				}
			}
			if err := c.collectLocals(s.ElseBody); err != nil {
				return err
			}
		case *ast.WhileStatement:
			if err := c.collectLocals(s.Body); err != nil {
				return err
			}
		case *ast.BlockStatement:
			if err := c.collectLocals(s.Body); err != nil {
				return err
			}
		case *ast.CompoundAssignment, *ast.ReturnStatement, *ast.ExpressionStatement,
			*ast.BreakStatement, *ast.ContinueStatement:
			// no new bindings
		default:
			return fmt.Errorf("function %s: statement %T does not compile to WASM", c.fn.Name, s)
		}
	}
	return nil
}

func (c *compiler) declareLocal(name string, t ValType) {
	c.locals[name] = localVar{index: c.nextLocal, typ: t}
	c.nextLocal++
}

// inferType statically infers a numeric expression's WASM value type.
// Float is the default for anything ambiguous, matching spec.md's
// numeric-promotion rule that mixed Int/Float arithmetic widens to Float.
func (c *compiler) inferType(expr ast.Expression) ValType {
	switch e := expr.(type) {
	case nil:
		return F64
	case *ast.NumberLiteral:
		for _, ch := range e.Value {
			if ch == '.' {
				return F64
			}
		}
		return I32
	case *ast.BoolLiteral:
		return I32
	case *ast.Identifier:
		if lv, ok := c.locals[e.Name]; ok {
			return lv.typ
		}
		return I32
	case *ast.UnaryExpression:
		if e.Operator == "!" {
			return I32
		}
		return c.inferType(e.Operand)
	case *ast.BinaryExpression:
		switch e.Operator {
		case "==", "!=", "<", ">", "<=", ">=":
			return I32
		default:
			if c.inferType(e.Left) == F64 || c.inferType(e.Right) == F64 {
				return F64
			}
			return I32
		}
	case *ast.LogicalExpression, *ast.ChainedComparison:
		return I32
	case *ast.CallExpression:
		if callee, ok := e.Callee.(*ast.Identifier); ok {
			if t, ok := c.funcTypes[callee.Name]; ok {
				return t
			}
		}
		return I32
	case *ast.IfExpression:
		if v := lastExprValue(e.Then); v != nil {
			return c.inferType(v)
		}
		return F64
	default:
		return F64
	}
}

func lastExprValue(body []ast.Statement) ast.Expression {
	if len(body) == 0 {
		return nil
	}
	if es, ok := body[len(body)-1].(*ast.ExpressionStatement); ok {
		return es.Expr
	}
	return nil
}

func (c *compiler) emit(b ...byte) { c.code = append(c.code, b...) }

func (c *compiler) compileBody(body []ast.Statement) error {
	for _, stmt := range body {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.VarDeclaration:
		return c.compileAssignStmt(s.Targets, s.Values)
	case *ast.Assignment:
		return c.compileAssignStmt(s.Targets, s.Values)
	case *ast.CompoundAssignment:
		return c.compileCompoundAssign(s)
	case *ast.ReturnStatement:
		if s.Value != nil {
			if err := c.compileExpr(s.Value); err != nil {
				return err
			}
		}
		c.emit(opReturn)
		return nil
	case *ast.ExpressionStatement:
		if err := c.compileExpr(s.Expr); err != nil {
			return err
		}
		c.emit(0x1a) // drop: statement-position expressions don't keep their value
		return nil
	case *ast.IfStatement:
		return c.compileIfStatement(s)
	case *ast.WhileStatement:
		return c.compileWhile(s)
	case *ast.BlockStatement:
		return c.compileBody(s.Body)
	case *ast.BreakStatement:
		if len(c.loops) == 0 {
			return fmt.Errorf("function %s: break outside a loop", c.fn.Name)
		}
		lbl := c.loops[len(c.loops)-1]
		c.emit(opBr)
		c.emit(uleb128(uint64(c.depth-1-lbl.breakDepth))...)
		return nil
	case *ast.ContinueStatement:
		if len(c.loops) == 0 {
			return fmt.Errorf("function %s: continue outside a loop", c.fn.Name)
		}
		lbl := c.loops[len(c.loops)-1]
		c.emit(opBr)
		c.emit(uleb128(uint64(c.depth-1-lbl.continueDepth))...)
		return nil
	default:
		return fmt.Errorf("function %s: statement %T does not compile to WASM", c.fn.Name, stmt)
	}
}

func (c *compiler) compileAssignStmt(targets, values []ast.Expression) error {
	for i, target := range targets {
		name, ok := target.(*ast.Identifier)
		if !ok {
			return fmt.Errorf("function %s: only simple identifier targets compile to WASM", c.fn.Name)
		}
		lv, ok := c.locals[name.Name]
		if !ok {
			return fmt.Errorf("function %s: unresolved local %q", c.fn.Name, name.Name)
		}
		if i < len(values) {
			if err := c.compileExpr(values[i]); err != nil {
				return err
			}
		} else {
			c.emitZero(lv.typ)
		}
		c.emit(opLocalSet)
		c.emit(uleb128(uint64(lv.index))...)
	}
	return nil
}

func (c *compiler) compileCompoundAssign(s *ast.CompoundAssignment) error {
	name, ok := s.Target.(*ast.Identifier)
	if !ok {
		return fmt.Errorf("function %s: only simple identifier targets compile to WASM", c.fn.Name)
	}
	lv, ok := c.locals[name.Name]
	if !ok {
		return fmt.Errorf("function %s: unresolved local %q", c.fn.Name, name.Name)
	}
	op := s.Operator[:len(s.Operator)-1] // "+=" -> "+"
	bin := &ast.BinaryExpression{Left: s.Target, Operator: op, Right: s.Value}
	if err := c.compileExpr(bin); err != nil {
		return err
	}
	c.emit(opLocalSet)
	c.emit(uleb128(uint64(lv.index))...)
	return nil
}

func (c *compiler) emitZero(t ValType) {
	if t == F64 {
		c.emit(opF64Const)
		c.emit(f64Bytes(0)...)
	} else {
		c.emit(opI32Const)
		c.emit(sleb128(0)...)
	}
}

// compileIfStatement renders `if cond { consequent } elif ... { } else { }`
// as nested WASM if/else blocks, right-folding the elif chain into the
// else arm.
func (c *compiler) compileIfStatement(s *ast.IfStatement) error {
	if err := c.compileExpr(s.Condition); err != nil {
		return err
	}
	c.emit(opIf, blockType(nil))
	c.depth++
	if err := c.compileBody(s.Consequent); err != nil {
		return err
	}

	hasElse := len(s.Alternates) > 0 || len(s.ElseBody) > 0
	if hasElse {
		c.emit(opElse)
		if len(s.Alternates) > 0 {
			next := s.Alternates[0]
			rest := &ast.IfStatement{Condition: next.Condition, Consequent: next.Body,
				Alternates: s.Alternates[1:], ElseBody: s.ElseBody}
			if err := c.compileIfStatement(rest); err != nil {
				return err
			}
		} else if err := c.compileBody(s.ElseBody); err != nil {
			return err
		}
	}
	c.emit(opEnd)
	c.depth--
	return nil
}

// compileWhile renders `while cond { body }` as block { loop { br_if-exit;
// body; br-continue } }, the standard structured-control encoding of an
// unbounded loop in WASM.
func (c *compiler) compileWhile(s *ast.WhileStatement) error {
	c.emit(opBlock, blockType(nil))
	c.depth++
	blockDepth := c.depth - 1

	c.emit(opLoop, blockType(nil))
	c.depth++
	loopDepth := c.depth - 1

	c.loops = append(c.loops, loopLabels{breakDepth: blockDepth, continueDepth: loopDepth})

	if err := c.compileExpr(s.Condition); err != nil {
		return err
	}
	c.emit(opI32Eqz)
	c.emit(opBrIf)
	c.emit(uleb128(uint64(c.depth-1-blockDepth))...)

	if err := c.compileBody(s.Body); err != nil {
		return err
	}

	c.emit(opBr)
	c.emit(uleb128(uint64(c.depth-1-loopDepth))...)

	c.emit(opEnd) // loop
	c.depth--
	c.emit(opEnd) // block
	c.depth--
	c.loops = c.loops[:len(c.loops)-1]
	return nil
}

func (c *compiler) compileExpr(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		if c.inferType(e) == F64 {
			c.emit(opF64Const)
			c.emit(f64Bytes(parseFloat(e.Value))...)
		} else {
			c.emit(opI32Const)
			c.emit(sleb128(parseInt(e.Value))...)
		}
		return nil
	case *ast.BoolLiteral:
		c.emit(opI32Const)
		if e.Value {
			c.emit(sleb128(1)...)
		} else {
			c.emit(sleb128(0)...)
		}
		return nil
	case *ast.Identifier:
		lv, ok := c.locals[e.Name]
		if !ok {
			return fmt.Errorf("function %s: unresolved identifier %q", c.fn.Name, e.Name)
		}
		c.emit(opLocalGet)
		c.emit(uleb128(uint64(lv.index))...)
		return nil
	case *ast.UnaryExpression:
		return c.compileUnary(e)
	case *ast.BinaryExpression:
		return c.compileBinary(e)
	case *ast.ChainedComparison:
		return c.compileChained(e)
	case *ast.LogicalExpression:
		return c.compileLogical(e)
	case *ast.CallExpression:
		return c.compileCall(e)
	case *ast.IfExpression:
		return c.compileIfExpr(e)
	default:
		return fmt.Errorf("function %s: expression %T does not compile to WASM", c.fn.Name, expr)
	}
}

func (c *compiler) compileUnary(e *ast.UnaryExpression) error {
	switch e.Operator {
	case "-":
		if c.inferType(e.Operand) == F64 {
			if err := c.compileExpr(e.Operand); err != nil {
				return err
			}
			c.emit(opF64Neg)
			return nil
		}
		// i32 has no neg opcode: emit 0 - x.
		c.emit(opI32Const)
		c.emit(sleb128(0)...)
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		c.emit(opI32Sub)
		return nil
	case "!":
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		c.emit(opI32Eqz)
		return nil
	case "+":
		return c.compileExpr(e.Operand)
	default:
		return fmt.Errorf("function %s: unsupported unary operator %q", c.fn.Name, e.Operator)
	}
}

func (c *compiler) compileBinary(e *ast.BinaryExpression) error {
	leftF := c.inferType(e.Left) == F64
	rightF := c.inferType(e.Right) == F64
	useFloat := leftF || rightF

	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if useFloat && !leftF {
		c.emit(opF64ConvertI32S)
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	if useFloat && !rightF {
		c.emit(opF64ConvertI32S)
	}

	if useFloat {
		switch e.Operator {
		case "+":
			c.emit(opF64Add)
		case "-":
			c.emit(opF64Sub)
		case "*":
			c.emit(opF64Mul)
		case "/":
			c.emit(opF64Div)
		case "==":
			c.emit(opF64Eq)
		case "!=":
			c.emit(opF64Ne)
		case "<":
			c.emit(opF64Lt)
		case ">":
			c.emit(opF64Gt)
		case "<=":
			c.emit(opF64Le)
		case ">=":
			c.emit(opF64Ge)
		default:
			return fmt.Errorf("function %s: unsupported operator %q on Float", c.fn.Name, e.Operator)
		}
		return nil
	}

	switch e.Operator {
	case "+":
		c.emit(opI32Add)
	case "-":
		c.emit(opI32Sub)
	case "*":
		c.emit(opI32Mul)
	case "/":
		c.emit(opI32DivS)
	case "%":
		c.emit(0x6f) // i32.rem_s
	case "==":
		c.emit(opI32Eq)
	case "!=":
		c.emit(opI32Ne)
	case "<":
		c.emit(opI32LtS)
	case ">":
		c.emit(opI32GtS)
	case "<=":
		c.emit(opI32LeS)
	case ">=":
		c.emit(opI32GeS)
	default:
		return fmt.Errorf("function %s: unsupported operator %q on Int", c.fn.Name, e.Operator)
	}
	return nil
}

// compileChained lowers `a < b <= c` to `(a < b) and (b <= c)`. No scratch
// local is used: an inner operand such as b is compiled once for each
// comparison it takes part in.
func (c *compiler) compileChained(e *ast.ChainedComparison) error {
	if len(e.Operands) < 2 {
		return fmt.Errorf("function %s: malformed chained comparison", c.fn.Name)
	}
	bin := &ast.BinaryExpression{Left: e.Operands[0], Operator: e.Operators[0], Right: e.Operands[1]}
	var result ast.Expression = bin
	for i := 1; i < len(e.Operators); i++ {
		next := &ast.BinaryExpression{Left: e.Operands[i], Operator: e.Operators[i], Right: e.Operands[i+1]}
		result = &ast.LogicalExpression{Left: result, Operator: "and", Right: next}
	}
	return c.compileExpr(result)
}

// compileLogical renders short-circuiting and/or as a WASM if/else so the
// right operand is only evaluated when needed.
func (c *compiler) compileLogical(e *ast.LogicalExpression) error {
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	switch e.Operator {
	case "and":
		c.emit(opIf, byte(I32))
		c.depth++
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.emit(opElse)
		c.emit(opI32Const)
		c.emit(sleb128(0)...)
		c.emit(opEnd)
		c.depth--
		return nil
	case "or":
		c.emit(opIf, byte(I32))
		c.depth++
		c.emit(opI32Const)
		c.emit(sleb128(1)...)
		c.emit(opElse)
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.emit(opEnd)
		c.depth--
		return nil
	default:
		return fmt.Errorf("function %s: unsupported logical operator %q", c.fn.Name, e.Operator)
	}
}

func (c *compiler) compileCall(e *ast.CallExpression) error {
	callee, ok := e.Callee.(*ast.Identifier)
	if !ok {
		return fmt.Errorf("function %s: only direct calls to named functions compile to WASM", c.fn.Name)
	}
	idx, known := c.funcIndex[callee.Name]
	if !known {
		return fmt.Errorf("function %s: call to unresolved function %q", c.fn.Name, callee.Name)
	}
	for _, arg := range e.Arguments {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	c.emit(opCall)
	c.emit(uleb128(uint64(idx))...)
	return nil
}

// compileIfExpr renders an if-used-as-value: both arms must leave exactly
// one value of the expression's inferred type on the stack.
func (c *compiler) compileIfExpr(e *ast.IfExpression) error {
	resultType := c.inferType(e)
	if err := c.compileExpr(e.Condition); err != nil {
		return err
	}
	c.emit(opIf, byte(resultType))
	c.depth++
	if err := c.compileValueBody(e.Then); err != nil {
		return err
	}
	c.emit(opElse)
	if err := c.compileValueBody(e.Else); err != nil {
		return err
	}
	c.emit(opEnd)
	c.depth--
	return nil
}

// compileValueBody runs every statement but the last for effect, then
// leaves the last statement's expression value on the stack (it must be
// an ExpressionStatement — the tail-expression convention If-as-expression
// arms use).
func (c *compiler) compileValueBody(body []ast.Statement) error {
	if len(body) == 0 {
		return fmt.Errorf("function %s: if-expression arm produces no value", c.fn.Name)
	}
	for _, stmt := range body[:len(body)-1] {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	last, ok := body[len(body)-1].(*ast.ExpressionStatement)
	if !ok {
		return fmt.Errorf("function %s: if-expression arm must end in an expression", c.fn.Name)
	}
	return c.compileExpr(last.Expr)
}

func parseFloat(s string) float64 {
	var f float64
	var sign float64 = 1
	i := 0
	if i < len(s) && s[i] == '-' {
		sign = -1
		i++
	}
	intPart, frac, scale := 0.0, 0.0, 1.0
	seenDot := false
	for ; i < len(s); i++ {
		ch := s[i]
		if ch == '.' {
			seenDot = true
			continue
		}
		if ch < '0' || ch > '9' {
			continue
		}
		d := float64(ch - '0')
		if !seenDot {
			intPart = intPart*10 + d
		} else {
			scale *= 10
			frac += d / scale
		}
	}
	f = sign * (intPart + frac)
	return f
}

func parseInt(s string) int64 {
	var n int64
	var sign int64 = 1
	i := 0
	if i < len(s) && s[i] == '-' {
		sign = -1
		i++
	}
	for ; i < len(s); i++ {
		ch := s[i]
		if ch < '0' || ch > '9' {
			continue
		}
		n = n*10 + int64(ch-'0')
	}
	return sign * n
}
