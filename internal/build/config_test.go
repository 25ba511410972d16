package build

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.OutDir != "." || cfg.EdgeTarget != "cloudflare" || cfg.Production {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadConfigParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tova.config.toml")
	contents := `
out_dir = "dist"
production = true
minify = true
edge_target = "deno"
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.OutDir != "dist" {
		t.Errorf("OutDir = %q, want dist", cfg.OutDir)
	}
	if !cfg.Production || !cfg.Minify {
		t.Errorf("Production/Minify = %v/%v, want true/true", cfg.Production, cfg.Minify)
	}
	if cfg.EdgeTarget != "deno" {
		t.Errorf("EdgeTarget = %q, want deno", cfg.EdgeTarget)
	}
}

func TestLoadConfigEmptyFieldsFallBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tova.config.toml")
	if err := os.WriteFile(path, []byte("minify = true\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.OutDir != "." {
		t.Errorf("OutDir = %q, want default \".\"", cfg.OutDir)
	}
	if cfg.EdgeTarget != "cloudflare" {
		t.Errorf("EdgeTarget = %q, want default \"cloudflare\"", cfg.EdgeTarget)
	}
	if !cfg.Minify {
		t.Error("Minify should still be true from the file")
	}
}
