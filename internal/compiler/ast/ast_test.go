package ast

import "testing"

func TestPositions(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want Position
	}{
		{"Identifier", &Identifier{base: base{Line: 3, Column: 7}, Name: "x"}, Position{3, 7}},
		{"BinaryExpression", &BinaryExpression{base: base{Line: 1, Column: 1}, Operator: "+"}, Position{1, 1}},
		{"IfStatement", &IfStatement{base: base{Line: 10, Column: 2}}, Position{10, 2}},
		{"ReturnStatement", &ReturnStatement{base: base{Line: 5, Column: 1}}, Position{5, 1}},
		{"WildcardPattern", &WildcardPattern{patternBase{base{Line: 2, Column: 4}}}, Position{2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.Pos(); got != tt.want {
				t.Errorf("Pos() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStatementNodeMarkers(t *testing.T) {
	// Every Statement variant must compile against the Statement interface;
	// this is a compile-time check exercised at test time.
	var stmts = []Statement{
		&Assignment{},
		&VarDeclaration{},
		&LetDestructure{},
		&FunctionDeclaration{},
		&ImportDeclaration{},
		&IfStatement{},
		&ForStatement{},
		&WhileStatement{},
		&TryCatchStatement{},
		&ReturnStatement{},
		&BlockStatement{},
		&CompoundAssignment{},
		&GuardStatement{},
		&InterfaceDeclaration{},
		&BreakStatement{},
		&ContinueStatement{},
		&ExpressionStatement{},
		&TypeDeclaration{},
		&StateDeclaration{},
		&ComputedDeclaration{},
		&EffectDeclaration{},
		&StoreDeclaration{},
		&ComponentDeclaration{},
		&RouteDeclaration{},
		&DiscoverDeclaration{},
		&SharedBlock{},
		&ServerBlock{},
		&ClientBlock{},
		&DataBlock{},
		&SecurityBlock{},
		&CliBlock{},
		&EdgeBlock{},
		&FormDeclaration{},
		&DeployBlock{},
		&TestBlock{},
	}
	if len(stmts) == 0 {
		t.Fatal("expected at least one statement variant")
	}
}

func TestExpressionNodeMarkers(t *testing.T) {
	var exprs = []Expression{
		&NumberLiteral{},
		&StringLiteral{},
		&BoolLiteral{},
		&NilLiteral{},
		&Identifier{},
		&BinaryExpression{},
		&UnaryExpression{},
		&LogicalExpression{},
		&ChainedComparison{},
		&MembershipExpression{},
		&NamedArgument{},
		&CallExpression{},
		&MemberExpression{},
		&OptionalChain{},
		&PipeExpression{},
		&PipePlaceholder{},
		&LambdaExpression{},
		&MatchExpression{},
		&IfExpression{},
		&ArrayLiteral{},
		&ObjectLiteral{},
		&ListComprehension{},
		&DictComprehension{},
		&RangeExpression{},
		&SliceExpression{},
		&SpreadExpression{},
		&PropagateExpression{},
		&AwaitExpression{},
		&JSXElement{},
		&JSXFragment{},
	}
	if len(exprs) == 0 {
		t.Fatal("expected at least one expression variant")
	}
}

func TestPatternNodeMarkers(t *testing.T) {
	var pats = []Pattern{
		&LiteralPattern{},
		&RangePattern{},
		&VariantPattern{},
		&ArrayPattern{},
		&ObjectPattern{},
		&StringConcatPattern{},
		&WildcardPattern{},
		&BindingPattern{},
	}
	if len(pats) == 0 {
		t.Fatal("expected at least one pattern variant")
	}
}

func TestMatchExpressionArms(t *testing.T) {
	m := &MatchExpression{
		Subject: &Identifier{Name: "status"},
		Arms: []*MatchArm{
			{
				Pattern: &VariantPattern{Name: "Ok", Fields: []Pattern{&BindingPattern{Name: "v"}}},
				Body:    []Statement{&ReturnStatement{Value: &Identifier{Name: "v"}}},
			},
			{Pattern: &WildcardPattern{}, Body: []Statement{&ReturnStatement{}}},
		},
	}
	if len(m.Arms) != 2 {
		t.Fatalf("expected 2 arms, got %d", len(m.Arms))
	}
	vp, ok := m.Arms[0].Pattern.(*VariantPattern)
	if !ok {
		t.Fatalf("arm 0 pattern = %T, want *VariantPattern", m.Arms[0].Pattern)
	}
	if vp.Name != "Ok" {
		t.Errorf("variant name = %q, want %q", vp.Name, "Ok")
	}
}

func TestTypeDeclarationVariants(t *testing.T) {
	td := &TypeDeclaration{
		Name: "Status",
		Variants: []*TypeVariant{
			{Name: "Active"},
			{Name: "Done", Fields: []*StructField{{Name: "at", Type: "string"}}},
		},
	}
	if len(td.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(td.Variants))
	}
	if td.Variants[1].Fields[0].Name != "at" {
		t.Errorf("field name = %q, want %q", td.Variants[1].Fields[0].Name, "at")
	}
}
