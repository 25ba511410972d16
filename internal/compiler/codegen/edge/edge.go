// Package edge lowers a merged edge block into five adapter variants —
// Cloudflare Workers, Deno Deploy, Vercel Edge, AWS Lambda, and Bun — from
// one shared Config (routes, bindings, env/secrets, cron schedules, queue
// consumers, middlewares, health check, CORS, error handler). Grounded on
// the teacher's gen_main.go conditional-entrypoint-assembly texture,
// generalized from "one Go binary, one set of imports" to "one Config, N
// textually distinct JS entrypoints" since every target shares the same
// route table and middleware chain but reads bindings from a different
// runtime surface (`env` parameter vs. `process.env` vs. `Deno.openKv()`).
package edge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/codegen/security"
	"github.com/tovalang/tova/internal/compiler/diag"
	"github.com/tovalang/tova/internal/compiler/lower"
)

// Target names one of the five emission variants.
type Target string

const (
	Cloudflare Target = "cloudflare"
	Deno       Target = "deno"
	Vercel     Target = "vercel"
	Lambda     Target = "lambda"
	Bun        Target = "bun"
)

// Route is one compiled edge route table entry.
type Route struct {
	Method     string
	Path       string
	ParamNames []string
	Regex      string
	HandlerJS  string
}

// Binding is a declared KV/SQL/storage/queue binding.
type Binding struct {
	Kind string // "kv", "sql", "storage", "queue"
	Name string
}

// EnvVar is a declared env or secret value.
type EnvVar struct {
	Name     string
	Default  string // JS expression text, empty if none
	IsSecret bool
}

// Cron is one `cron "schedule" => handler` declaration.
type Cron struct {
	Schedule  string
	HandlerJS string
}

// QueueConsumer is one `queue "name" => handler` declaration.
type QueueConsumer struct {
	Queue     string
	HandlerJS string
}

// HealthCheck is the configured health-check endpoint.
type HealthCheck struct {
	Path        string
	CheckMemory bool
}

// Middleware is a named middleware function, composed right-to-left
// around the route dispatcher.
type Middleware struct {
	Name string
	Body string // lowered JS statements
}

// Config is everything BuildConfig collects from a merged edge block,
// shared by all five EmitXxx functions.
type Config struct {
	Routes      []Route
	Bindings    []Binding
	EnvVars     []EnvVar
	Crons       []Cron
	Queues      []QueueConsumer
	Health      *HealthCheck
	CorsOrigins []string
	Middlewares []Middleware
	OnErrorJS   string // lowered JS statements, empty if none declared
	Security    *security.Config
}

// BuildConfig lowers a merged edge block's body into a Config. Security is
// optional — nil when no security block is active for this compilation
// unit.
func BuildConfig(body []ast.Statement, sec *security.Config, bag *diag.Bag, outFile, sourceFile string) (*Config, *lower.Usage) {
	l := lower.New(lower.BaseTarget{}, bag, outFile, sourceFile)
	cfg := &Config{Security: sec}

	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.RouteDeclaration:
			cfg.Routes = append(cfg.Routes, compileEdgeRoute(l, s))
		case *ast.BindingDecl:
			cfg.Bindings = append(cfg.Bindings, Binding{Kind: s.Kind, Name: s.Name})
		case *ast.EnvDecl:
			def := ""
			if s.Default != nil {
				def = l.LowerExpr(s.Default)
			}
			cfg.EnvVars = append(cfg.EnvVars, EnvVar{Name: s.Name, Default: def, IsSecret: s.IsSecret})
		case *ast.CronDecl:
			cfg.Crons = append(cfg.Crons, Cron{Schedule: s.Schedule, HandlerJS: l.LowerExpr(s.Handler)})
		case *ast.QueueConsumerDecl:
			cfg.Queues = append(cfg.Queues, QueueConsumer{Queue: s.Queue, HandlerJS: l.LowerExpr(s.Handler)})
		case *ast.HealthCheckDecl:
			cfg.Health = &HealthCheck{Path: s.Path, CheckMemory: s.CheckMemory}
		case *ast.CorsDecl:
			cfg.CorsOrigins = append(cfg.CorsOrigins, s.Origins...)
		case *ast.MiddlewareDecl:
			cfg.Middlewares = append(cfg.Middlewares, Middleware{Name: s.Name, Body: lowerStandaloneBlock(l, s.Body)})
		case *ast.OnErrorDecl:
			cfg.OnErrorJS = lowerStandaloneBlock(l, s.Body)
		case *ast.FunctionDeclaration:
			l.LowerStatement(stmt)
			if s.IsPublic {
				cfg.Routes = append(cfg.Routes, Route{
					Method:    "POST",
					Path:      "/rpc/" + s.Name,
					Regex:     "^\\/rpc\\/" + s.Name + "$",
					HandlerJS: s.Name,
				})
			}
		default:
			l.LowerStatement(stmt)
		}
	}

	return cfg, l.Usage
}

// lowerStandaloneBlock lowers body as an isolated statement list and
// returns the resulting JS text, independent of the Lowerer's main output
// buffer (used for middleware/on_error bodies which are collected, not
// emitted inline).
func lowerStandaloneBlock(l *lower.Lowerer, body []ast.Statement) string {
	sub := lower.New(lower.BaseTarget{}, l.Bag, "", "")
	sub.LowerBlock(body)
	return sub.Output()
}

// compileEdgeRoute compiles path to a JS RegExp source per spec.md §4.4:
// `:name` segments become a capture group and contribute a param name,
// `*`/`*name` become a catch-all capture group, other regex-special
// characters are escaped, the whole is anchored.
func compileEdgeRoute(l *lower.Lowerer, r *ast.RouteDeclaration) Route {
	segments := strings.Split(strings.Trim(r.Path, "/"), "/")
	var params []string
	var pattern strings.Builder
	pattern.WriteString("^")
	for _, seg := range segments {
		pattern.WriteString("\\/")
		switch {
		case strings.HasPrefix(seg, ":"):
			name := strings.TrimPrefix(seg, ":")
			params = append(params, name)
			pattern.WriteString("([^/]+)")
		case seg == "*":
			params = append(params, "wildcard")
			pattern.WriteString("(.*)")
		case strings.HasPrefix(seg, "*"):
			params = append(params, strings.TrimPrefix(seg, "*"))
			pattern.WriteString("(.*)")
		case seg != "":
			pattern.WriteString(regexEscape(seg))
		}
	}
	pattern.WriteString("$")

	return Route{
		Method:     strings.ToUpper(r.Method),
		Path:       r.Path,
		ParamNames: params,
		Regex:      pattern.String(),
		HandlerJS:  l.LowerExpr(r.Handler),
	}
}

func regexEscape(s string) string {
	const special = ".*+?^${}()|[]\\"
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// matchRouteSource is the shared `matchRoute` function every target calls:
// walks the route table and returns the first matching {handler, params}.
const matchRouteSource = `function matchRoute(method, path, routes) {
  for (const route of routes) {
    if (route.method !== method) continue;
    const m = route.regex.exec(path);
    if (!m) continue;
    const params = {};
    route.params.forEach((name, i) => { params[name] = m[i + 1]; });
    return { handler: route.handler, params };
  }
  return null;
}
`

func routeTableSource(routes []Route, handlerRefs func(Route) string) string {
	var b strings.Builder
	b.WriteString("const __routes = [\n")
	for _, r := range routes {
		fmt.Fprintf(&b, "  { method: %q, regex: /%s/, params: %s, handler: %s },\n",
			r.Method, r.Regex, jsStringArray(r.ParamNames), handlerRefs(r))
	}
	b.WriteString("];\n")
	return b.String()
}

func jsStringArray(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// middlewareChainSource emits each middleware as `__mw_<name>` and a
// `__composed` entrypoint composing them right-to-left around dispatch.
func middlewareChainSource(mws []Middleware, dispatchCall string) string {
	var b strings.Builder
	for _, mw := range mws {
		fmt.Fprintf(&b, "async function __mw_%s(req, next) {\n%s  return await next(req);\n}\n", mw.Name, reindent(mw.Body))
	}
	chain := dispatchCall
	for i := len(mws) - 1; i >= 0; i-- {
		chain = fmt.Sprintf("((r) => __mw_%s(r, (rr) => %s))", mws[i].Name, strings.ReplaceAll(chain, "(r)", "(rr)"))
	}
	fmt.Fprintf(&b, "const __composed = (req) => %s(req);\n", chain)
	return b.String()
}

func reindent(body string) string {
	if body == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, ln := range lines {
		lines[i] = "  " + ln
	}
	return strings.Join(lines, "\n") + "\n"
}

// catchBlockSource renders the uniform try/catch around dispatch: a
// declared on_error handler runs first, falling back to a 500 JSON
// response; CORS headers merge into error responses when CORS is active.
func catchBlockSource(onError string, corsActive bool) string {
	var b strings.Builder
	b.WriteString("  } catch (err) {\n")
	if onError != "" {
		b.WriteString(reindent(onError))
	}
	if corsActive {
		b.WriteString("    return new Response(JSON.stringify({ error: String(err && err.message || err) }), { status: 500, headers: { \"Content-Type\": \"application/json\", ...__corsHeaders(req.headers.get(\"origin\")) } });\n")
	} else {
		b.WriteString("    return new Response(JSON.stringify({ error: String(err && err.message || err) }), { status: 500, headers: { \"Content-Type\": \"application/json\" } });\n")
	}
	b.WriteString("  }\n")
	return b.String()
}

// securityPreamble renders the auth/role/protect/sanitize helpers this
// target needs, when a security Config is active.
func securityPreamble(cfg *Config) string {
	if cfg.Security == nil {
		return ""
	}
	return security.RuntimeJS(cfg.Security)
}

func corsPreamble(cfg *Config) string {
	return security.CorsHeadersJS(cfg.CorsOrigins)
}

func envBindingLines(envVars []EnvVar, source string) string {
	var b strings.Builder
	sorted := append([]EnvVar{}, envVars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, e := range sorted {
		ref := fmt.Sprintf("%s.%s", source, e.Name)
		if e.IsSecret || e.Default == "" {
			fmt.Fprintf(&b, "const %s = %s;\n", e.Name, ref)
		} else {
			fmt.Fprintf(&b, "const %s = %s ?? %s;\n", e.Name, ref, e.Default)
		}
	}
	return b.String()
}
