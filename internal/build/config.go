// Package build implements the orchestrator (spec.md §4.6): it groups
// .tova files by directory, merges and lowers each directory's blocks
// through the per-target code generators, writes the resulting files,
// and in production mode bundles, hashes, and inlines them. Grounded on
// the teacher's cmd/gmx/{main,build}.go read-compile-write shape,
// generalized from "one file in, one Go binary out" to "one directory
// in, N JS files out".
package build

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the orchestrator's production-mode settings, optionally loaded
// from a tova.config.toml next to the compiled directory (SPEC_FULL.md §10
// "Config"). Zero value is development mode: no minify, no bundling, no
// inlining, one file written per block.
type Config struct {
	OutDir        string `toml:"out_dir"`
	Production    bool   `toml:"production"`
	Minify        bool   `toml:"minify"`
	InlineRuntime bool   `toml:"inline_runtime"`
	VerifyWasm    bool   `toml:"verify_wasm"`
	EdgeTarget    string `toml:"edge_target"` // "cloudflare" (default), "deno", "vercel", "lambda", "bun", or "all"
}

// DefaultConfig is used when no tova.config.toml is present.
func DefaultConfig() *Config {
	return &Config{OutDir: ".", EdgeTarget: "cloudflare"}
}

// LoadConfig reads and parses a tova.config.toml at path. A missing file is
// not an error — the orchestrator falls back to DefaultConfig().
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "."
	}
	if cfg.EdgeTarget == "" {
		cfg.EdgeTarget = "cloudflare"
	}
	return cfg, nil
}
