package build

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/codegen/cli"
	"github.com/tovalang/tova/internal/compiler/codegen/client"
	"github.com/tovalang/tova/internal/compiler/codegen/edge"
	"github.com/tovalang/tova/internal/compiler/codegen/form"
	"github.com/tovalang/tova/internal/compiler/codegen/security"
	"github.com/tovalang/tova/internal/compiler/codegen/server"
	"github.com/tovalang/tova/internal/compiler/codegen/shared"
	"github.com/tovalang/tova/internal/compiler/diag"
	"github.com/tovalang/tova/internal/compiler/merge"
	"github.com/tovalang/tova/internal/compiler/sourcemap"
)

// OutputFile is one file the orchestrator produced.
type OutputFile struct {
	Name    string
	Content []byte
	Mode    os.FileMode
}

// DirReport is the outcome of compiling a single directory.
type DirReport struct {
	Dir   string
	Files []OutputFile
	Bag   *diag.Bag
}

// Orchestrator groups .tova files by directory, merges and lowers each
// directory through the per-target code generators, and writes the
// resulting files. Grounded on cmd/gmx/{main,build}.go's
// read-compile-write shape (teacher), generalized to many output files per
// compilation unit and a production post-processing pass (spec.md §4.6).
type Orchestrator struct {
	Config *Config
	Log    *logrus.Logger
}

// New returns an Orchestrator using cfg (DefaultConfig() if nil), logging
// structured per-directory build progress with logrus the way the
// grafana-k6 pack entry does for its own multi-file build steps.
func New(cfg *Config) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Orchestrator{Config: cfg, Log: log}
}

// CompileTree groups files by directory (spec.md §4.6 step 1) and compiles
// the directories in sorted order. The first directory whose build fails
// stops the walk: its error is returned together with the reports of the
// directories compiled before it.
func (o *Orchestrator) CompileTree(files []*ast.File) ([]*DirReport, error) {
	groups := merge.GroupByDirectory(files)
	dirs := make([]string, 0, len(groups))
	for d := range groups {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	reports := make([]*DirReport, 0, len(dirs))
	for _, d := range dirs {
		rep, err := o.CompileDirectory(d, groups[d])
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// untag strips the originating-file tag from a Tagged slice, for code
// generators that only need plain statement order.
func untag(items []merge.Tagged) []ast.Statement {
	out := make([]ast.Statement, len(items))
	for i, t := range items {
		out[i] = t.Stmt
	}
	return out
}

// dataTypeDecls extracts the TypeDeclaration statements out of a
// directory's merged `data` block. Every per-target Lowerer is its own
// instance (spec.md §3 "Lifecycles"), so a type declared in `data` must be
// relowered into each target's body for that target's own VariantFields
// table and pattern-match lowering to see it — the Data block's purpose
// ("shared across targets") is satisfied by duplication, not a cross-file
// import the generators don't model.
func dataTypeDecls(data []merge.Tagged) []ast.Statement {
	var out []ast.Statement
	for _, t := range data {
		if _, ok := t.Stmt.(*ast.TypeDeclaration); ok {
			out = append(out, t.Stmt)
		}
	}
	return out
}

func withDataTypes(dataTypes []ast.Statement, body []ast.Statement) []ast.Statement {
	if len(dataTypes) == 0 {
		return body
	}
	out := make([]ast.Statement, 0, len(dataTypes)+len(body))
	out = append(out, dataTypes...)
	out = append(out, body...)
	return out
}

// typeDeclIndex builds a name -> declaration lookup over a directory's data
// types, consulted by codegen/form and codegen/server to inherit a declared
// type's per-field validators (spec.md §4.5 "Full-stack validator reuse").
func typeDeclIndex(dataTypes []ast.Statement) map[string]*ast.TypeDeclaration {
	index := make(map[string]*ast.TypeDeclaration, len(dataTypes))
	for _, stmt := range dataTypes {
		if t, ok := stmt.(*ast.TypeDeclaration); ok {
			index[t.Name] = t
		}
	}
	return index
}

// sortedNames returns a block-name map's keys with the default ("") block
// first, the rest lexically ordered after it — matching spec.md §5's
// "server blocks in lexical order" guarantee.
func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CompileDirectory merges dir's files into one Unit and routes each
// populated block kind through its code generator, in the deterministic
// order spec.md §5 requires: shared, server*, client*, edge*, cli, form.
func (o *Orchestrator) CompileDirectory(dir string, files []*ast.File) (*DirReport, error) {
	bag := diag.NewBag()
	unit := merge.MergeDirectory(dir, files, bag)
	if bag.HasErrors() {
		return &DirReport{Dir: dir, Bag: bag}, fmt.Errorf("compiling %s:\n%s", dir, bag.String())
	}

	base := filepath.Base(dir)
	dataTypes := dataTypeDecls(unit.Data)
	types := typeDeclIndex(dataTypes)

	var secCfg *security.Config
	if len(unit.Security) > 0 {
		secCfg = security.BuildConfig(withDataTypes(dataTypes, untag(unit.Security)), bag)
	}

	rpcNames := collectAllRPCNames(unit)

	rep := &DirReport{Dir: dir, Bag: bag}

	// 1. shared (+ data block type constructors)
	sharedBody := withDataTypes(dataTypes, untag(unit.Shared))
	if len(sharedBody) > 0 {
		outFile := base + ".shared.js"
		srcFile := sourceFileFor(unit.Shared, dir)
		code, usage, sm := shared.Generate(sharedBody, bag, outFile, srcFile)
		content := code
		if shared.NeedsAnyHelper(usage) {
			content += "\n" + shared.HelperBundle(usage)
		}
		o.addFileWithMap(rep, outFile, content, sm)
	}

	// 2. server blocks, default first then lexical order
	serverNames := sortedNames(unit.Server)
	namedIdx := 0
	for _, name := range serverNames {
		body := withDataTypes(dataTypes, untag(unit.Server[name]))
		outFile := serverOutFile(base, name)
		srcFile := sourceFileFor(unit.Server[name], dir)
		res := server.Generate(body, secCfg, types, bag, outFile, srcFile)

		portEnv, defaultPort := server.PortEnvVar(name, namedIdx)
		if name != "" {
			namedIdx++
		}

		var content strings.Builder
		content.WriteString(res.Body)
		if shared.NeedsAnyHelper(res.Usage) {
			content.WriteString("\n")
			content.WriteString(shared.HelperBundle(res.Usage))
		}
		for _, p := range res.Peers {
			content.WriteString("\n")
			content.WriteString(server.DiscoverClientJS(p))
		}
		content.WriteString("\n")
		content.WriteString(server.DispatcherJS(res.Routes, portEnv, defaultPort, res.CorsOrigins))

		o.addFileWithMap(rep, outFile, content.String(), res.SM)
	}

	// 3. client blocks, default first then lexical order
	clientNames := sortedNames(unit.Client)
	for _, name := range clientNames {
		body := withDataTypes(dataTypes, untag(unit.Client[name]))
		outFile := clientOutFile(base, name)
		srcFile := sourceFileFor(unit.Client[name], dir)
		res := client.Generate(body, rpcNames, bag, outFile, srcFile)

		var content strings.Builder
		content.WriteString(res.Body)
		if shared.NeedsAnyHelper(res.Usage) {
			content.WriteString("\n")
			content.WriteString(shared.HelperBundle(res.Usage))
		}
		for _, css := range res.Styles {
			content.WriteString("\n/* scoped style */\n")
			content.WriteString(css)
		}
		o.addFileWithMap(rep, outFile, content.String(), res.SM)
	}

	// 4. edge blocks, default first then lexical order
	edgeNames := sortedNames(unit.Edge)
	for _, name := range edgeNames {
		body := withDataTypes(dataTypes, untag(unit.Edge[name]))
		outFile := edgeOutFile(base, name)
		srcFile := sourceFileFor(unit.Edge[name], dir)
		cfg, usage := edge.BuildConfig(body, secCfg, bag, outFile, srcFile)

		targets := o.edgeTargets()
		for _, tgt := range targets {
			content := edge.Emit(cfg, tgt)
			if shared.NeedsAnyHelper(usage) {
				content += "\n" + shared.HelperBundle(usage)
			}
			fname := outFile
			if len(targets) > 1 {
				fname = strings.TrimSuffix(outFile, ".js") + "." + string(tgt) + ".js"
			}
			rep.Files = append(rep.Files, OutputFile{Name: fname, Content: []byte(content), Mode: 0644})

			if tgt == edge.Cloudflare {
				manifest := BuildManifest(cfg, base, fname)
				data, err := manifest.Encode()
				if err == nil {
					rep.Files = append(rep.Files, OutputFile{Name: "wrangler.toml", Content: data, Mode: 0644})
				}
			}
		}
	}

	// 5. cli
	if len(unit.CLI) > 0 {
		body := withDataTypes(dataTypes, untag(unit.CLI))
		outFile := base + ".cli.js"
		srcFile := sourceFileFor(unit.CLI, dir)
		res := cli.Generate(body, bag, outFile, srcFile)
		content := "#!/usr/bin/env node\n" + res.Body
		if shared.NeedsAnyHelper(res.Usage) {
			content += "\n" + shared.HelperBundle(res.Usage)
		}
		o.addFileWithMap(rep, outFile, content, res.SM)
		for i, f := range rep.Files {
			if f.Name == outFile {
				rep.Files[i].Mode = 0755
			}
		}
	}

	// 6. form
	if len(unit.Forms) > 0 {
		outFile := base + ".form.js"
		res := form.Generate(unit.Forms, types, bag, outFile, dir)
		content := res.Body
		if shared.NeedsAnyHelper(res.Usage) {
			content += "\n" + shared.HelperBundle(res.Usage)
		}
		o.addFileWithMap(rep, outFile, content, res.SM)
	}

	if o.Config.Production {
		o.postProcess(rep)
	}

	o.logSummary(rep)
	return rep, nil
}

func serverOutFile(base, name string) string {
	if name == "" {
		return base + ".server.js"
	}
	return base + ".server." + name + ".js"
}

func clientOutFile(base, name string) string {
	if name == "" {
		return base + ".client.js"
	}
	return base + ".client." + name + ".js"
}

func edgeOutFile(base, name string) string {
	if name == "" {
		return base + ".edge.js"
	}
	return base + ".edge." + name + ".js"
}

func sourceFileFor(items []merge.Tagged, dir string) string {
	if len(items) == 0 {
		return dir
	}
	return items[0].File
}

// collectAllRPCNames gathers every exported function name across
// every server block in the unit, so client lowering can auto-await
// `server.<name>(...)` calls regardless of which named server block
// declared it (spec.md §4.3 "RPC detection").
func collectAllRPCNames(u *merge.Unit) map[string]bool {
	names := make(map[string]bool)
	for _, items := range u.Server {
		for _, t := range items {
			if f, ok := t.Stmt.(*ast.FunctionDeclaration); ok && f.IsPublic {
				names[f.Name] = true
			}
		}
	}
	return names
}

func (o *Orchestrator) edgeTargets() []edge.Target {
	switch o.Config.EdgeTarget {
	case "all":
		return []edge.Target{edge.Cloudflare, edge.Deno, edge.Vercel, edge.Lambda, edge.Bun}
	case "deno":
		return []edge.Target{edge.Deno}
	case "vercel":
		return []edge.Target{edge.Vercel}
	case "lambda":
		return []edge.Target{edge.Lambda}
	case "bun":
		return []edge.Target{edge.Bun}
	default:
		return []edge.Target{edge.Cloudflare}
	}
}

// addFileWithMap appends content to rep, plus the encoded source-map
// sidecar (spec.md §4.6 step 7, §6) and a trailing
// "//# sourceMappingURL=" comment referencing it.
func (o *Orchestrator) addFileWithMap(rep *DirReport, name, content string, sm *sourcemap.Builder) {
	mapName := name + ".map"
	full := content + "\n//# sourceMappingURL=" + filepath.Base(mapName) + "\n"
	rep.Files = append(rep.Files, OutputFile{Name: name, Content: []byte(full), Mode: 0644})

	if sm == nil {
		return
	}
	sm.File = name
	if data, err := sm.JSON(); err == nil {
		rep.Files = append(rep.Files, OutputFile{Name: mapName, Content: data, Mode: 0644})
	}
}

// Write flushes rep.Files to disk under o.Config.OutDir, via a
// temp-directory-then-rename so a failed or partially-built directory
// never leaves stale output in place (spec.md §5 "Cancellation"). The temp
// directory is named with a uuid suffix for collision-freedom across
// concurrent builds of different directories.
func (o *Orchestrator) Write(rep *DirReport) error {
	outDir := filepath.Join(o.Config.OutDir, rep.Dir)
	if err := os.MkdirAll(filepath.Dir(outDir), 0755); err != nil {
		return err
	}

	tmpDir := outDir + ".tova-build-" + uuid.New().String()
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	for _, f := range rep.Files {
		path := filepath.Join(tmpDir, f.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		mode := f.Mode
		if mode == 0 {
			mode = 0644
		}
		if err := os.WriteFile(path, f.Content, mode); err != nil {
			return err
		}
	}

	_ = os.RemoveAll(outDir)
	return os.Rename(tmpDir, outDir)
}

func (o *Orchestrator) logSummary(rep *DirReport) {
	entry := o.Log.WithField("dir", rep.Dir).WithField("files", len(rep.Files))
	for _, diagnostic := range rep.Bag.Diagnostics {
		if diagnostic.Severity == diag.Warning {
			entry.Warn(diagnostic.Error())
		}
	}
	var total int
	for _, f := range rep.Files {
		total += len(f.Content)
	}
	entry.WithField("bytes", total).Info("build complete")
}

// contentHash returns the first 12 hex characters of f's SHA-256 digest
// (spec.md §4.6 step 6).
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:12]
}
