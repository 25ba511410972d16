package build

import (
	"strings"
	"testing"

	"github.com/tovalang/tova/internal/compiler/ast"
)

func TestCompileDirectoryProductionBundlesHashesAndEmitsIndexHTML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Production = true
	orch := New(cfg)

	files := []*ast.File{{
		Path: "app/main.tova",
		Blocks: []ast.Statement{
			&ast.ClientBlock{Body: []ast.Statement{
				&ast.StateDeclaration{Name: "count", Value: &ast.NumberLiteral{Value: "0"}},
			}},
		},
	}}

	rep, err := orch.CompileDirectory("app", files)
	if err != nil {
		t.Fatalf("CompileDirectory() error = %v", err)
	}

	var bundle, index string
	var bundleName string
	for _, f := range rep.Files {
		switch {
		case f.Name == "index.html":
			index = string(f.Content)
		case strings.HasPrefix(f.Name, "app.client.") && strings.HasSuffix(f.Name, ".js"):
			bundle = string(f.Content)
			bundleName = f.Name
		}
	}

	if bundle == "" {
		t.Fatal("expected a hashed client bundle in production output")
	}
	if bundleName == "app.client.js" {
		t.Errorf("bundle name %q was not hashed", bundleName)
	}
	if !strings.Contains(bundle, "/* tova runtime inlined here */") {
		t.Errorf("production client bundle missing inlined runtime marker: %s", bundle)
	}
	if index == "" {
		t.Fatal("expected index.html referencing the client bundle")
	}
	if !strings.Contains(index, bundleName) {
		t.Errorf("index.html = %s, want reference to %s", index, bundleName)
	}

	var hasMap bool
	for _, f := range rep.Files {
		if f.Name == bundleName+".map" {
			hasMap = true
		}
	}
	if !hasMap {
		t.Errorf("expected sidecar %s.map alongside hashed bundle", bundleName)
	}
}

func TestCompileDirectoryProductionMinifiesClientBundle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Production = true
	cfg.Minify = true
	orch := New(cfg)

	files := []*ast.File{{
		Path: "app/main.tova",
		Blocks: []ast.Statement{
			&ast.ClientBlock{Body: []ast.Statement{
				&ast.StateDeclaration{Name: "count", Value: &ast.NumberLiteral{Value: "0"}},
			}},
		},
	}}

	rep, err := orch.CompileDirectory("app", files)
	if err != nil {
		t.Fatalf("CompileDirectory() error = %v", err)
	}
	for _, f := range rep.Files {
		if strings.HasPrefix(f.Name, "app.client.") && strings.HasSuffix(f.Name, ".js") {
			for _, line := range strings.Split(string(f.Content), "\n") {
				if strings.TrimRight(line, " \t") != line {
					t.Errorf("minified bundle has trailing whitespace on line %q", line)
				}
			}
		}
	}
}

func TestKindOfClassifiesByNamingConvention(t *testing.T) {
	cases := map[string]string{
		"app.shared.js":        "shared",
		"app.server.js":        "server",
		"app.server.admin.js":  "server",
		"app.client.js":        "client",
		"app.edge.js":          "edge",
		"app.cli.js":           "cli",
		"app.form.js":          "form",
		"app.shared.js.map":    "",
		"wrangler.toml":        "",
		"index.html":           "",
	}
	for name, want := range cases {
		if got := kindOf(name); got != want {
			t.Errorf("kindOf(%q) = %q, want %q", name, got, want)
		}
	}
}
