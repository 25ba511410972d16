package build

import (
	"strings"
	"testing"

	"github.com/tovalang/tova/internal/compiler/ast"
)

func TestCompileDirectoryEmptyDirectoryProducesNoFiles(t *testing.T) {
	orch := New(nil)
	files := []*ast.File{{Path: "app/empty.tova"}}
	rep, err := orch.CompileDirectory("app", files)
	if err != nil {
		t.Fatalf("CompileDirectory() error = %v", err)
	}
	if len(rep.Files) != 0 {
		t.Errorf("Files = %v, want none", rep.Files)
	}
}

func TestCompileDirectorySharedOnlyProducesSingleFile(t *testing.T) {
	orch := New(nil)
	files := []*ast.File{{
		Path: "app/main.tova",
		Blocks: []ast.Statement{
			&ast.SharedBlock{Body: []ast.Statement{
				&ast.FunctionDeclaration{Name: "add", IsPublic: true, Params: []*ast.Param{{Name: "a"}, {Name: "b"}},
					Body: []ast.Statement{&ast.ReturnStatement{Value: &ast.BinaryExpression{
						Left: &ast.Identifier{Name: "a"}, Operator: "+", Right: &ast.Identifier{Name: "b"},
					}}}},
			}},
		},
	}}

	rep, err := orch.CompileDirectory("app", files)
	if err != nil {
		t.Fatalf("CompileDirectory() error = %v", err)
	}
	if len(rep.Files) != 2 {
		t.Fatalf("Files = %v, want exactly [app.shared.js, app.shared.js.map]", rep.Files)
	}
	if rep.Files[0].Name != "app.shared.js" {
		t.Errorf("Files[0].Name = %q", rep.Files[0].Name)
	}
	if !strings.Contains(string(rep.Files[0].Content), "function add(a, b)") {
		t.Errorf("shared output missing function: %s", rep.Files[0].Content)
	}
	if !strings.Contains(string(rep.Files[0].Content), "//# sourceMappingURL=app.shared.js.map") {
		t.Errorf("shared output missing sourceMappingURL trailer: %s", rep.Files[0].Content)
	}
}

func TestCompileDirectoryDuplicateDeclarationAborts(t *testing.T) {
	orch := New(nil)
	files := []*ast.File{
		{Path: "app/a.tova", Blocks: []ast.Statement{
			&ast.SharedBlock{Body: []ast.Statement{&ast.StateDeclaration{Name: "count", Value: &ast.NumberLiteral{Value: "0"}}}},
		}},
		{Path: "app/b.tova", Blocks: []ast.Statement{
			&ast.SharedBlock{Body: []ast.Statement{&ast.StateDeclaration{Name: "count", Value: &ast.NumberLiteral{Value: "1"}}}},
		}},
	}

	_, err := orch.CompileDirectory("app", files)
	if err == nil {
		t.Fatal("expected an error for duplicate declaration across files")
	}
	if !strings.Contains(err.Error(), "duplicate state") {
		t.Errorf("error = %v, want mention of duplicate state", err)
	}
}

func TestCompileDirectoryServerBlockGetsDefaultPort(t *testing.T) {
	orch := New(nil)
	files := []*ast.File{{
		Path: "app/main.tova",
		Blocks: []ast.Statement{
			&ast.ServerBlock{Body: []ast.Statement{
				&ast.FunctionDeclaration{Name: "greet", IsPublic: true, IsAsync: true, Body: []ast.Statement{}},
			}},
		},
	}}

	rep, err := orch.CompileDirectory("app", files)
	if err != nil {
		t.Fatalf("CompileDirectory() error = %v", err)
	}
	var server string
	for _, f := range rep.Files {
		if f.Name == "app.server.js" {
			server = string(f.Content)
		}
	}
	if server == "" {
		t.Fatal("expected app.server.js in output")
	}
	if !strings.Contains(server, "process.env.PORT ?? 3000") {
		t.Errorf("server output missing default port wiring: %s", server)
	}
	if !strings.Contains(server, `\/rpc\/greet$`) {
		t.Errorf("server output missing synthesized RPC route: %s", server)
	}
}

func TestCompileDirectoryNamedServerBlocksGetDistinctPorts(t *testing.T) {
	orch := New(nil)
	files := []*ast.File{{
		Path: "app/main.tova",
		Blocks: []ast.Statement{
			&ast.ServerBlock{Name: "api", Body: []ast.Statement{}},
			&ast.ServerBlock{Name: "admin", Body: []ast.Statement{}},
		},
	}}

	rep, err := orch.CompileDirectory("app", files)
	if err != nil {
		t.Fatalf("CompileDirectory() error = %v", err)
	}
	var admin, api string
	for _, f := range rep.Files {
		switch f.Name {
		case "app.server.admin.js":
			admin = string(f.Content)
		case "app.server.api.js":
			api = string(f.Content)
		}
	}
	if !strings.Contains(admin, "PORT_ADMIN ?? 3000") {
		t.Errorf("admin server = %s, want PORT_ADMIN default 3000", admin)
	}
	if !strings.Contains(api, "PORT_API ?? 3001") {
		t.Errorf("api server = %s, want PORT_API default 3001", api)
	}
}

func TestCompileDirectoryDataTypeAvailableToClientPatternMatch(t *testing.T) {
	orch := New(nil)
	files := []*ast.File{{
		Path: "app/main.tova",
		Blocks: []ast.Statement{
			&ast.DataBlock{Body: []ast.Statement{
				&ast.TypeDeclaration{Name: "Shape", Variants: []*ast.TypeVariant{
					{Name: "Circle", Fields: []*ast.StructField{{Name: "r"}}},
					{Name: "Rectangle", Fields: []*ast.StructField{{Name: "w"}, {Name: "h"}}},
				}},
			}},
			&ast.ClientBlock{Body: []ast.Statement{
				&ast.StateDeclaration{Name: "area", Value: &ast.NumberLiteral{Value: "0"}},
			}},
		},
	}}

	rep, err := orch.CompileDirectory("app", files)
	if err != nil {
		t.Fatalf("CompileDirectory() error = %v", err)
	}
	var client string
	for _, f := range rep.Files {
		if f.Name == "app.client.js" {
			client = string(f.Content)
		}
	}
	if !strings.Contains(client, "Circle") {
		t.Errorf("client output missing data-block type constructor: %s", client)
	}
}

func TestCompileTreeGroupsByDirectory(t *testing.T) {
	orch := New(nil)
	files := []*ast.File{
		{Path: "a/one.tova", Blocks: []ast.Statement{&ast.SharedBlock{Body: []ast.Statement{
			&ast.StateDeclaration{Name: "x", Value: &ast.NumberLiteral{Value: "1"}},
		}}}},
		{Path: "b/one.tova", Blocks: []ast.Statement{&ast.SharedBlock{Body: []ast.Statement{
			&ast.StateDeclaration{Name: "y", Value: &ast.NumberLiteral{Value: "2"}},
		}}}},
	}

	reports, err := orch.CompileTree(files)
	if err != nil {
		t.Fatalf("CompileTree() error = %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	if reports[0].Dir != "a" || reports[1].Dir != "b" {
		t.Errorf("reports out of order: %s, %s", reports[0].Dir, reports[1].Dir)
	}
}

func TestCompileDirectoryCliOutputIsExecutableWithShebang(t *testing.T) {
	orch := New(nil)
	files := []*ast.File{{
		Path: "app/main.tova",
		Blocks: []ast.Statement{
			&ast.CliBlock{Body: []ast.Statement{
				&ast.CliConfig{Name: "greet", Version: "1.0.0"},
				&ast.FunctionDeclaration{Name: "greet", Params: []*ast.Param{{Name: "name", Type: "String"}}, Body: []ast.Statement{}},
			}},
		},
	}}

	rep, err := orch.CompileDirectory("app", files)
	if err != nil {
		t.Fatalf("CompileDirectory() error = %v", err)
	}
	var found bool
	for _, f := range rep.Files {
		if f.Name == "app.cli.js" {
			found = true
			if f.Mode != 0755 {
				t.Errorf("cli file mode = %v, want 0755", f.Mode)
			}
			if !strings.HasPrefix(string(f.Content), "#!/usr/bin/env node\n") {
				t.Errorf("cli file missing shebang: %s", f.Content)
			}
		}
	}
	if !found {
		t.Fatal("expected app.cli.js in output")
	}
}
