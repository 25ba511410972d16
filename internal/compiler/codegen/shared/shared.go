// Package shared lowers a SharedBlock's statements into JS usable from
// every other target, and emits the small runtime helper bundle other
// generators conditionally include: string-prototype extensions, a
// membership test, a propagate unwrapper, and Result/Option factories.
// Grounded on the teacher's gen_helpers.go: helpers are only emitted when
// the corresponding usage flag was set during lowering.
package shared

import (
	"strings"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
	"github.com/tovalang/tova/internal/compiler/lower"
	"github.com/tovalang/tova/internal/compiler/sourcemap"
)

// Generate lowers body (a merged SharedBlock's statements) and returns the
// JS text, the usage flags accumulated along the way (so callers can
// append the right helper bundle), and the recorded source-map builder
// (spec.md §4.6 step 7).
func Generate(body []ast.Statement, bag *diag.Bag, outFile, sourceFile string) (string, *lower.Usage, *sourcemap.Builder) {
	l := lower.New(lower.BaseTarget{}, bag, outFile, sourceFile)
	for _, stmt := range body {
		l.LowerStatement(stmt)
	}
	return l.Output(), l.Usage, l.SM
}

// HelperBundle renders the subset of the shared runtime helpers that usage
// indicates were actually used, each gated behind its own flag the same way
// gen_helpers.go gates UUID/email/scoped helpers on annotation usage.
func HelperBundle(usage *lower.Usage) string {
	var b strings.Builder

	if usage.NeedsContainsHelper {
		b.WriteString("function __contains(collection, value) {\n")
		b.WriteString("  if (Array.isArray(collection)) return collection.includes(value);\n")
		b.WriteString("  if (collection instanceof Set) return collection.has(value);\n")
		b.WriteString("  if (typeof collection === \"string\") return collection.includes(value);\n")
		b.WriteString("  if (collection && typeof collection === \"object\") return value in collection;\n")
		b.WriteString("  return false;\n")
		b.WriteString("}\n\n")
	}

	if usage.NeedsPropagateHelper {
		// Marker field name (`__lux_propagate`) per the glossary's "Propagate
		// sentinel" entry; the enclosing function's try/catch (lower.go's
		// PropagateExpression wrapping) unwinds on this, not on the class.
		b.WriteString("function __propagate(result) {\n")
		b.WriteString("  if (result && result.__tag === \"Err\") throw { __lux_propagate: true, result };\n")
		b.WriteString("  if (result && result.__tag === \"None\") throw { __lux_propagate: true, result };\n")
		b.WriteString("  if (result && result.__tag === \"Ok\") return result.value;\n")
		b.WriteString("  if (result && result.__tag === \"Some\") return result.value;\n")
		b.WriteString("  return result;\n")
		b.WriteString("}\n")
		b.WriteString("function __unwrapPropagated(err) {\n")
		b.WriteString("  if (err && err.__lux_propagate) return err.result;\n")
		b.WriteString("  throw err;\n")
		b.WriteString("}\n\n")
	}

	if usage.NeedsResultOption {
		b.WriteString(resultOptionSource)
	}

	if usage.NeedsNullishHelper {
		// spec.md §4.1: "`??` ... must treat NaN as nil (so `NaN ?? 0`
		// yields 0), not only null/undefined".
		b.WriteString("function __nullish(value, fallback) {\n")
		b.WriteString("  if (value === null || value === undefined) return fallback;\n")
		b.WriteString("  if (typeof value === \"number\" && Number.isNaN(value)) return fallback;\n")
		b.WriteString("  return value;\n")
		b.WriteString("}\n\n")
	}

	if usage.UsedBuiltins["__sliceStep"] {
		b.WriteString("function __sliceStep(arr, start, end, step) {\n")
		b.WriteString("  const out = [];\n")
		b.WriteString("  const len = arr.length;\n")
		b.WriteString("  const s = start ?? 0, e = end ?? len;\n")
		b.WriteString("  for (let i = s; step > 0 ? i < e : i > e; i += step) out.push(arr[i]);\n")
		b.WriteString("  return out;\n")
		b.WriteString("}\n\n")
	}

	if usage.UsedBuiltins["strings"] {
		b.WriteString(stringPrototypeSource)
	}

	for _, name := range stdlibOrder {
		if usage.UsedBuiltins[name] {
			b.WriteString(stdlibSource[name])
		}
	}

	return b.String()
}

// resultOptionSource is the factory set for Ok/Err/Some/None: each produces
// a frozen, __tag-carrying record with the chain methods spec.md §4.2
// lists (map/flatMap/unwrap/unwrapOr/expect/isOk.../or/and/mapErr/filter).
// Built directly against the documented Result chain laws (spec.md §8): no
// pack library ships a Rust-shaped Result/Option for JS targets.
const resultOptionSource = `function Ok(value) {
  return Object.freeze({
    __tag: "Ok", value,
    isOk: () => true, isErr: () => false,
    map: (f) => Ok(f(value)), mapErr: () => Ok(value),
    flatMap: (f) => f(value), and: (r) => r, or: () => Ok(value),
    unwrap: () => value, unwrapOr: () => value, expect: () => value,
    filter: (pred, onFail) => (pred(value) ? Ok(value) : Err(onFail(value))),
  });
}
function Err(error) {
  return Object.freeze({
    __tag: "Err", error,
    isOk: () => false, isErr: () => true,
    map: () => Err(error), mapErr: (f) => Err(f(error)),
    flatMap: () => Err(error), and: () => Err(error), or: (r) => r,
    unwrap: () => { throw new Error("called unwrap on an Err: " + String(error)); },
    unwrapOr: (d) => d,
    expect: (msg) => { throw new Error(msg + ": " + String(error)); },
    filter: () => Err(error),
  });
}
function Some(value) {
  return Object.freeze({
    __tag: "Some", value,
    isSome: () => true, isNone: () => false,
    map: (f) => Some(f(value)), flatMap: (f) => f(value),
    and: (o) => o, or: () => Some(value),
    unwrap: () => value, unwrapOr: () => value, expect: () => value,
    filter: (pred) => (pred(value) ? Some(value) : None),
  });
}
const None = Object.freeze({
  __tag: "None",
  isSome: () => false, isNone: () => true,
  map: () => None, flatMap: () => None,
  and: () => None, or: (o) => o,
  unwrap: () => { throw new Error("called unwrap on a None value"); },
  unwrapOr: (d) => d,
  expect: (msg) => { throw new Error(msg); },
  filter: () => None,
});

`

// stringPrototypeSource installs the string-prototype extensions spec.md
// §4.2 names (upper/lower/contains/starts_with/ends_with/chars/words/
// lines/capitalize/title_case/snake_case/camel_case). Grounded on the
// teacher's habit of generating small prototype-extension blocks for
// source-language builtins with no direct JS equivalent.
const stringPrototypeSource = `Object.assign(String.prototype, {
  upper() { return this.toUpperCase(); },
  lower() { return this.toLowerCase(); },
  contains(sub) { return this.includes(sub); },
  starts_with(prefix) { return this.startsWith(prefix); },
  ends_with(suffix) { return this.endsWith(suffix); },
  chars() { return Array.from(this); },
  words() { return this.trim().split(/\s+/).filter(Boolean); },
  lines() { return this.split("\n"); },
  capitalize() { return this.length ? this[0].toUpperCase() + this.slice(1) : this.toString(); },
  title_case() {
    return this.toLowerCase().replace(/(^|[\s_-])([a-z])/g, (_, sep, c) => sep + c.toUpperCase());
  },
  snake_case() {
    return this.replace(/([a-z0-9])([A-Z])/g, "$1_$2").replace(/[\s-]+/g, "_").toLowerCase();
  },
  camel_case() {
    const snake = this.snake_case ? this.snake_case() : this.toString();
    return snake.replace(/_([a-z0-9])/g, (_, c) => c.toUpperCase());
  },
});

`

// stdlibOrder fixes a deterministic emission order for the tree-shaken
// stdlib builtins subset (spec.md §4.2's name list), independent of Go map
// iteration order.
var stdlibOrder = []string{
	"print", "len", "range", "enumerate", "sum", "sorted", "reversed", "zip",
	"min", "max", "filter", "map", "find", "any", "all", "flat_map", "reduce",
	"unique", "group_by", "chunk", "flatten", "take", "drop", "first", "last",
	"count", "partition", "sleep",
}

// stdlibSource holds one standalone function per builtin in stdlibOrder;
// only the ones a program actually referenced (usage.UsedBuiltins) make it
// into an emitted file.
var stdlibSource = map[string]string{
	"print":     "function print(...args) { console.log(...args); }\n\n",
	"len":       "function len(x) { return x == null ? 0 : (x.length ?? x.size ?? Object.keys(x).length); }\n\n",
	"range":     "function range(start, end, step = 1) { if (end === undefined) { end = start; start = 0; } const out = []; for (let i = start; step > 0 ? i < end : i > end; i += step) out.push(i); return out; }\n\n",
	"enumerate": "function enumerate(xs) { return xs.map((v, i) => [i, v]); }\n\n",
	"sum":       "function sum(xs) { return xs.reduce((a, b) => a + b, 0); }\n\n",
	"sorted":    "function sorted(xs, key) { const out = [...xs]; out.sort(key ? (a, b) => (key(a) > key(b) ? 1 : -1) : undefined); return out; }\n\n",
	"reversed":  "function reversed(xs) { return [...xs].reverse(); }\n\n",
	"zip":       "function zip(...lists) { const n = Math.min(...lists.map((l) => l.length)); const out = []; for (let i = 0; i < n; i++) out.push(lists.map((l) => l[i])); return out; }\n\n",
	"min":       "function min(xs, key) { return xs.reduce((a, b) => ((key ? key(a) : a) <= (key ? key(b) : b) ? a : b)); }\n\n",
	"max":       "function max(xs, key) { return xs.reduce((a, b) => ((key ? key(a) : a) >= (key ? key(b) : b) ? a : b)); }\n\n",
	"filter":    "function filter(xs, pred) { return xs.filter(pred); }\n\n",
	"map":       "function map(xs, f) { return xs.map(f); }\n\n",
	"find":      "function find(xs, pred) { return xs.find(pred); }\n\n",
	"any":       "function any(xs, pred) { return xs.some(pred ?? Boolean); }\n\n",
	"all":       "function all(xs, pred) { return xs.every(pred ?? Boolean); }\n\n",
	"flat_map":  "function flat_map(xs, f) { return xs.flatMap(f); }\n\n",
	"reduce":    "function reduce(xs, f, init) { return init === undefined ? xs.reduce(f) : xs.reduce(f, init); }\n\n",
	"unique":    "function unique(xs) { return [...new Set(xs)]; }\n\n",
	"group_by":  "function group_by(xs, f) { const out = {}; for (const x of xs) { const k = f(x); (out[k] ??= []).push(x); } return out; }\n\n",
	"chunk":     "function chunk(xs, size) { const out = []; for (let i = 0; i < xs.length; i += size) out.push(xs.slice(i, i + size)); return out; }\n\n",
	"flatten":   "function flatten(xs) { return xs.flat(Infinity); }\n\n",
	"take":      "function take(xs, n) { return xs.slice(0, n); }\n\n",
	"drop":      "function drop(xs, n) { return xs.slice(n); }\n\n",
	"first":     "function first(xs) { return xs[0]; }\n\n",
	"last":      "function last(xs) { return xs[xs.length - 1]; }\n\n",
	"count":     "function count(xs, pred) { return pred ? xs.filter(pred).length : xs.length; }\n\n",
	"partition": "function partition(xs, pred) { const yes = [], no = []; for (const x of xs) (pred(x) ? yes : no).push(x); return [yes, no]; }\n\n",
	"sleep":     "function sleep(ms) { return new Promise((resolve) => setTimeout(resolve, ms)); }\n\n",
}

// NeedsAnyHelper reports whether HelperBundle would emit anything, used by
// callers to decide whether to append the helper bundle at all.
func NeedsAnyHelper(usage *lower.Usage) bool {
	return usage.NeedsContainsHelper || usage.NeedsPropagateHelper || usage.NeedsResultOption || usage.NeedsNullishHelper || len(usage.UsedBuiltins) > 0
}
