// Package merge groups parsed .tova files by directory, concatenates
// same-type same-name blocks into one compilation unit per directory, and
// resolves shared-module imports across directories.
package merge

import (
	"path/filepath"
	"sort"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
)

// Tagged pairs a statement with the file it came from, so duplicate and
// scope diagnostics can report both locations precisely.
type Tagged struct {
	Stmt ast.Statement
	File string
}

// Unit is the merged compilation unit for one directory: every block kind
// flattened across the directory's files, in file-then-declaration order.
type Unit struct {
	Dir      string
	Shared   []Tagged
	Server   map[string][]Tagged // keyed by block label, "" = default
	Client   map[string][]Tagged
	Data     []Tagged
	Security []Tagged
	CLI      []Tagged
	Edge     map[string][]Tagged
	Forms    []*ast.FormDeclaration
	Deploy   []Tagged
	Test     []Tagged
}

func newUnit(dir string) *Unit {
	return &Unit{
		Dir:    dir,
		Server: make(map[string][]Tagged),
		Client: make(map[string][]Tagged),
		Edge:   make(map[string][]Tagged),
	}
}

// GroupByDirectory buckets files by their containing directory, so each
// directory can be merged independently.
func GroupByDirectory(files []*ast.File) map[string][]*ast.File {
	groups := make(map[string][]*ast.File)
	for _, f := range files {
		dir := filepath.Dir(f.Path)
		groups[dir] = append(groups[dir], f)
	}
	return groups
}

// sortedFiles returns files in deterministic filesystem-sorted order, since
// merge order affects duplicate-declaration reporting and the numeric
// suffix assigned to clashing shared-module names.
func sortedFiles(files []*ast.File) []*ast.File {
	out := append([]*ast.File{}, files...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// MergeDirectory concatenates same-type, same-name blocks in files (all
// from the same directory) into one Unit, and records a fatal diagnostic
// for every duplicate top-level declaration found across the merged blocks.
func MergeDirectory(dir string, files []*ast.File, bag *diag.Bag) *Unit {
	u := newUnit(dir)
	for _, f := range sortedFiles(files) {
		for _, blk := range f.Blocks {
			appendBlock(u, blk, f.Path)
		}
	}
	checkDuplicates(u, bag)
	return u
}

func tagAll(body []ast.Statement, file string) []Tagged {
	out := make([]Tagged, len(body))
	for i, s := range body {
		out[i] = Tagged{Stmt: s, File: file}
	}
	return out
}

func appendBlock(u *Unit, blk ast.Statement, file string) {
	switch b := blk.(type) {
	case *ast.SharedBlock:
		u.Shared = append(u.Shared, tagAll(b.Body, file)...)
	case *ast.ServerBlock:
		u.Server[b.Name] = append(u.Server[b.Name], tagAll(b.Body, file)...)
	case *ast.ClientBlock:
		u.Client[b.Name] = append(u.Client[b.Name], tagAll(b.Body, file)...)
	case *ast.DataBlock:
		u.Data = append(u.Data, tagAll(b.Body, file)...)
	case *ast.SecurityBlock:
		u.Security = append(u.Security, tagAll(b.Body, file)...)
	case *ast.CliBlock:
		u.CLI = append(u.CLI, tagAll(b.Body, file)...)
	case *ast.EdgeBlock:
		u.Edge[b.Name] = append(u.Edge[b.Name], tagAll(b.Body, file)...)
	case *ast.FormDeclaration:
		u.Forms = append(u.Forms, b)
	case *ast.DeployBlock:
		u.Deploy = append(u.Deploy, tagAll(b.Body, file)...)
	case *ast.TestBlock:
		u.Test = append(u.Test, tagAll(b.Body, file)...)
	}
}

// declKey identifies a single named top-level declaration for duplicate
// checking: its namespace ("component", "state", "function", "route",
// "type", "store") plus its name.
type declKey struct {
	namespace string
	name      string
}

// declName returns the namespace/name pair for stmt, or ok=false if stmt
// isn't a kind of declaration duplicate-checking cares about.
func declName(stmt ast.Statement) (declKey, bool) {
	switch s := stmt.(type) {
	case *ast.ComponentDeclaration:
		return declKey{"component", s.Name}, true
	case *ast.StateDeclaration:
		return declKey{"state", s.Name}, true
	case *ast.FunctionDeclaration:
		return declKey{"function", s.Name}, true
	case *ast.RouteDeclaration:
		return declKey{"route", s.Method + " " + s.Path}, true
	case *ast.TypeDeclaration:
		return declKey{"type", s.Name}, true
	case *ast.StoreDeclaration:
		return declKey{"store", s.Name}, true
	case *ast.FormDeclaration:
		return declKey{"form", s.Name}, true
	}
	return declKey{}, false
}

// checkDuplicates walks every merged block body and reports a fatal
// diagnostic, with both locations, the first time a name recurs within its
// namespace.
func checkDuplicates(u *Unit, bag *diag.Bag) {
	seen := make(map[declKey]Tagged)
	check := func(items []Tagged) {
		for _, t := range items {
			key, ok := declName(t.Stmt)
			if !ok {
				continue
			}
			if prev, dup := seen[key]; dup {
				pos := t.Stmt.Pos()
				bag.Errorf(diag.Position{File: t.File, Line: pos.Line, Column: pos.Column}, "merge",
					"duplicate %s %q, first declared at %s:%d:%d",
					key.namespace, key.name, prev.File, prev.Stmt.Pos().Line, prev.Stmt.Pos().Column)
				continue
			}
			seen[key] = t
		}
	}
	check(u.Shared)
	for _, items := range u.Server {
		check(items)
	}
	for _, items := range u.Client {
		check(items)
	}
	check(u.Data)
	check(u.Security)
	check(u.CLI)
	for _, items := range u.Edge {
		check(items)
	}
	check(u.Deploy)
	check(u.Test)
	for _, f := range u.Forms {
		check([]Tagged{{Stmt: f, File: u.Dir}})
	}
}
