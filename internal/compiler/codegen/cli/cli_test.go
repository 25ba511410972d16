package cli

import (
	"strings"
	"testing"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
)

func TestGenerateCollectsCliConfig(t *testing.T) {
	body := []ast.Statement{
		&ast.CliConfig{Name: "gitstat", Version: "1.2.0", Description: "summarize a repo"},
	}
	bag := diag.NewBag()
	res := Generate(body, bag, "cli.js", "cli.tova")
	if res.Config.Name != "gitstat" || res.Config.Version != "1.2.0" {
		t.Errorf("Config = %+v", res.Config)
	}
}

func TestGenerateEmitsHelpPrinterPerCommand(t *testing.T) {
	body := []ast.Statement{
		&ast.CliConfig{Name: "gitstat"},
		&ast.FunctionDeclaration{Name: "summary", Params: []*ast.Param{
			{Name: "path", Type: "String"},
		}},
	}
	bag := diag.NewBag()
	res := Generate(body, bag, "cli.js", "cli.tova")
	if !strings.Contains(res.Body, "function __help_summary() {") {
		t.Errorf("Body missing help printer:\n%s", res.Body)
	}
	if !strings.Contains(res.Body, "Usage: summary <path>") {
		t.Errorf("Body missing usage line:\n%s", res.Body)
	}
}

func TestGenerateSingleCommandDispatchesDirectly(t *testing.T) {
	body := []ast.Statement{
		&ast.CliConfig{Name: "gitstat"},
		&ast.FunctionDeclaration{Name: "summary", Params: nil},
	}
	bag := diag.NewBag()
	res := Generate(body, bag, "cli.js", "cli.tova")
	if !strings.Contains(res.Body, `__runCommand("summary", argv)`) {
		t.Errorf("Body missing single-command dispatch:\n%s", res.Body)
	}
}

func TestGenerateMultiCommandDispatchesBySubcommand(t *testing.T) {
	body := []ast.Statement{
		&ast.CliConfig{Name: "gitstat"},
		&ast.FunctionDeclaration{Name: "summary", Params: nil},
		&ast.FunctionDeclaration{Name: "blame", Params: nil},
	}
	bag := diag.NewBag()
	res := Generate(body, bag, "cli.js", "cli.tova")
	if !strings.Contains(res.Body, "const sub = argv[0];") {
		t.Errorf("Body missing subcommand dispatch:\n%s", res.Body)
	}
}

func TestGenerateEmitsCoercionForTypedFlags(t *testing.T) {
	body := []ast.Statement{
		&ast.CliConfig{Name: "gitstat"},
		&ast.FunctionDeclaration{Name: "summary", Params: []*ast.Param{
			{Name: "--limit", Type: "Int", Default: &ast.NumberLiteral{Value: "10"}},
			{Name: "--verbose", Type: "Bool", Default: &ast.BoolLiteral{Value: false}},
		}},
	}
	bag := diag.NewBag()
	res := Generate(body, bag, "cli.js", "cli.tova")
	for _, want := range []string{`type: "Int"`, `flag: true`, "__coerce"} {
		if !strings.Contains(res.Body, want) {
			t.Errorf("Body missing %q:\n%s", want, res.Body)
		}
	}
}

func TestGenerateWarnsOnMissingName(t *testing.T) {
	body := []ast.Statement{
		&ast.FunctionDeclaration{Name: "summary"},
	}
	bag := diag.NewBag()
	Generate(body, bag, "cli.js", "cli.tova")
	found := false
	for _, d := range bag.Diagnostics {
		if strings.Contains(d.Message, "missing required cli config key") {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning about missing cli config name")
	}
}

func TestGenerateWarnsOnDuplicateCommand(t *testing.T) {
	body := []ast.Statement{
		&ast.CliConfig{Name: "gitstat"},
		&ast.FunctionDeclaration{Name: "summary"},
		&ast.FunctionDeclaration{Name: "summary"},
	}
	bag := diag.NewBag()
	Generate(body, bag, "cli.js", "cli.tova")
	found := false
	for _, d := range bag.Diagnostics {
		if strings.Contains(d.Message, "duplicate cli command") {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning about duplicate cli command")
	}
}
