package merge

import (
	"fmt"
	"sort"

	"github.com/tovalang/tova/internal/compiler/diag"
)

// Resolver resolves "shared module" imports across directories: a
// directory's ImportDeclaration paths name other directories whose Unit.Shared
// statements should become visible to it. Cycle detection mirrors the
// teacher resolver's loading-map technique.
type Resolver struct {
	units   map[string]*Unit // directory -> merged unit
	loading map[string]bool
	flat    map[string]string // flattened shared-module name -> owning directory
	bag     *diag.Bag
}

// NewResolver builds a Resolver over an already-merged set of directories.
func NewResolver(units map[string]*Unit, bag *diag.Bag) *Resolver {
	return &Resolver{
		units:   units,
		loading: make(map[string]bool),
		flat:    make(map[string]string),
		bag:     bag,
	}
}

// ResolveAll assigns a flattened, collision-free output name to every
// directory's shared module and checks for import cycles between them.
// Directories are visited in filesystem-sorted order so clash suffixes are
// deterministic (spec decision: numeric suffix in first-encountered order).
func (r *Resolver) ResolveAll(deps map[string][]string) map[string]string {
	dirs := make([]string, 0, len(r.units))
	for d := range r.units {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	names := make(map[string]string, len(dirs))
	for _, d := range dirs {
		names[d] = r.flattenName(d)
	}

	for _, d := range dirs {
		r.checkCycle(d, deps, map[string]bool{})
	}
	return names
}

// flattenName assigns dir a unique flattened shared-module name, appending
// a numeric suffix ("-2", "-3", ...) the second and later time a given base
// name is claimed.
func (r *Resolver) flattenName(dir string) string {
	base := baseName(dir)
	name := base
	suffix := 1
	for {
		owner, taken := r.flat[name]
		if !taken {
			r.flat[name] = dir
			return name
		}
		if owner == dir {
			return name
		}
		suffix++
		name = fmt.Sprintf("%s-%d", base, suffix)
		if suffix == 2 {
			r.bag.Warnf(diag.Position{}, "merge",
				"shared module name %q from %s collides with %s; renamed to %s", base, dir, owner, name)
		}
	}
}

// checkCycle walks deps[dir] depth-first, flagging a fatal diagnostic the
// first time it revisits a directory already on the current path.
func (r *Resolver) checkCycle(dir string, deps map[string][]string, onPath map[string]bool) {
	if onPath[dir] {
		r.bag.Errorf(diag.Position{}, "merge", "circular shared-module import involving %s", dir)
		return
	}
	onPath[dir] = true
	defer delete(onPath, dir)

	for _, next := range deps[dir] {
		r.checkCycle(next, deps, onPath)
	}
}

func baseName(dir string) string {
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			return dir[i+1:]
		}
	}
	return dir
}
