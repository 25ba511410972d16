// Package server lowers a merged ServerBlock into a Bun.serve entry point:
// a route table compiled from RouteDeclaration nodes, an RPC dispatcher for
// exported functions called from other servers, and a discover/
// circuit-breaker client stub per DiscoverDeclaration. Grounded on the
// teacher's gen_handlers.go (request-handling texture) and gen_main.go
// (entrypoint assembly, conditional service wiring).
package server

import (
	"fmt"
	"strings"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/codegen/security"
	"github.com/tovalang/tova/internal/compiler/diag"
	"github.com/tovalang/tova/internal/compiler/lower"
	"github.com/tovalang/tova/internal/compiler/sourcemap"
)

// target customizes lowering for server code: calls to one of this block's
// exported async functions (collectRPCNames) are automatically awaited.
type target struct {
	rpcNames map[string]bool
}

func (t *target) Name() string { return "server" }

func (t *target) ReadIdentifier(*lower.Lowerer, string) (string, bool) { return "", false }

func (t *target) AssignIdentifier(*lower.Lowerer, string, string) (string, bool) { return "", false }

func (t *target) AssignCompound(*lower.Lowerer, string, string, string) (string, bool) {
	return "", false
}

func (t *target) AutoAwait(_ *lower.Lowerer, calleeName string) bool {
	return t.rpcNames[calleeName]
}

// Route is one compiled route table entry.
type Route struct {
	Method     string
	Path       string
	ParamNames []string
	Regex      string // JS RegExp source, capture group per path param
	HandlerJS  string
}

// Peer is a discovered peer service, lowered to a circuit-breaker-wrapped
// fetch client.
type Peer struct {
	Name string
	URL  string
}

// Result holds everything Generate produced for one server block.
type Result struct {
	Body        string
	Routes      []Route
	Peers       []Peer
	Usage       *lower.Usage
	CorsOrigins []string // merged inline+security-block CORS allow-list, empty = wildcard
	SM          *sourcemap.Builder
}

// Generate lowers a merged server block's body into Result. Every exported
// function gets an automatically synthesized RPC endpoint at
// POST /rpc/<name> (spec.md §4.2) in addition to any explicit
// RouteDeclaration. sec is the directory's security block config (nil if
// none); an inline `auth {}`/`cors {}` declared directly in this server
// block overrides it per SPEC_FULL.md §12 Q1. types is the directory's
// data-block type index, consulted by rpcEndpoint to inherit a declared
// parameter type's per-field validators (spec.md §4.5 "Full-stack
// validator reuse").
func Generate(body []ast.Statement, sec *security.Config, types map[string]*ast.TypeDeclaration, bag *diag.Bag, outFile, sourceFile string) *Result {
	t := &target{rpcNames: collectRPCNames(body)}
	l := lower.New(t, bag, outFile, sourceFile)

	var routes []Route
	var peers []Peer
	var inline security.InlineOverrides

	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.RouteDeclaration:
			routes = append(routes, compileRoute(l, s))
		case *ast.DiscoverDeclaration:
			peers = append(peers, Peer{Name: s.Peer, URL: l.LowerExpr(s.URL)})
		case *ast.FunctionDeclaration:
			l.LowerStatement(stmt)
			if s.IsPublic {
				routes = append(routes, rpcEndpoint(s, types))
			}
		case *ast.AuthDecl:
			inline.HasAuth = true
			if s.Secret != nil {
				inline.AuthSecret = l.LowerExpr(s.Secret)
			}
		case *ast.CorsDecl:
			inline.HasCORS = true
			inline.CorsOrigins = s.Origins
		default:
			l.LowerStatement(stmt)
		}
	}

	base := sec
	if base == nil {
		base = &security.Config{}
	}
	merged := security.MergeInline(base, inline)

	return &Result{Body: l.Output(), Routes: routes, Peers: peers, Usage: l.Usage, CorsOrigins: merged.CorsOrigins, SM: l.SM}
}

// rpcEndpoint synthesizes the POST /rpc/<name> route for an exported
// function: the handler reads positional args from body.__args when
// present, otherwise reads each parameter by name from the body root, runs
// type-annotation validation first, and responds { result } on success or
// a 400 validation-failed body on a check failure. types resolves a
// parameter's declared type name to its data-block declaration so a
// struct-shaped type's per-field validators run alongside the bare typeof
// check (spec.md §4.5 "Full-stack validator reuse").
func rpcEndpoint(f *ast.FunctionDeclaration, types map[string]*ast.TypeDeclaration) Route {
	var b strings.Builder
	b.WriteString("async (req, params) => {\n")
	b.WriteString("  const body = await req.json().catch(() => ({}));\n")
	b.WriteString("  const __positional = Array.isArray(body.__args);\n")
	for i, p := range f.Params {
		if p.Name == "" || strings.HasPrefix(p.Name, "--") {
			continue
		}
		fmt.Fprintf(&b, "  const %s = __positional ? body.__args[%d] : body[%q];\n", p.Name, i, p.Name)
	}
	var checks []string
	for _, p := range f.Params {
		if p.Name == "" || strings.HasPrefix(p.Name, "--") || p.Type == "" {
			continue
		}
		checks = append(checks, validationCheck(p))
		checks = append(checks, typeFieldChecks(p, types)...)
	}
	if len(checks) > 0 {
		b.WriteString("  const __errors = [];\n")
		for _, c := range checks {
			b.WriteString("  " + c + "\n")
		}
		b.WriteString("  if (__errors.length > 0) {\n")
		b.WriteString("    return new Response(JSON.stringify({ error: \"Validation failed\", details: __errors }), { status: 400, headers: { \"Content-Type\": \"application/json\" } });\n")
		b.WriteString("  }\n")
	}
	args := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		if p.Name == "" || strings.HasPrefix(p.Name, "--") {
			continue
		}
		args = append(args, p.Name)
	}
	awaitKw := ""
	if f.IsAsync {
		awaitKw = "await "
	}
	fmt.Fprintf(&b, "  const result = %s%s(%s);\n", awaitKw, f.Name, strings.Join(args, ", "))
	b.WriteString("  return new Response(JSON.stringify({ result }), { headers: { \"Content-Type\": \"application/json\" } });\n")
	b.WriteString("}")

	return Route{
		Method:    "POST",
		Path:      "/rpc/" + f.Name,
		Regex:     "^\\/rpc\\/" + f.Name + "$",
		HandlerJS: b.String(),
	}
}

// validationCheck renders one pre-dispatch JS validation statement for a
// typed RPC parameter, pushing a {field, message} entry into __errors on
// failure.
func validationCheck(p *ast.Param) string {
	switch p.Type {
	case "Int", "Float":
		return fmt.Sprintf("if (typeof %s !== \"number\") __errors.push({ field: %q, message: %q });",
			p.Name, p.Name, "expected "+p.Type)
	case "Bool":
		return fmt.Sprintf("if (typeof %s !== \"boolean\") __errors.push({ field: %q, message: \"expected Bool\" });", p.Name, p.Name)
	case "String":
		return fmt.Sprintf("if (typeof %s !== \"string\") __errors.push({ field: %q, message: \"expected String\" });", p.Name, p.Name)
	default:
		return fmt.Sprintf("if (%s === undefined) __errors.push({ field: %q, message: \"missing required field\" });", p.Name, p.Name)
	}
}

// typeFieldChecks renders one push-to-__errors check per validator declared
// on each field of p's named struct type (spec.md §4.5 "Full-stack
// validator reuse": server RPC validation inherits a declared parameter
// type's per-field validators the same way codegen/form does for "form
// name: TypeName"). Returns nil for a built-in type name, an unknown type
// name, or a variant-sum type with no fixed field set.
func typeFieldChecks(p *ast.Param, types map[string]*ast.TypeDeclaration) []string {
	decl, ok := types[p.Type]
	if !ok || len(decl.Variants) != 1 {
		return nil
	}
	var checks []string
	for _, field := range decl.Variants[0].Fields {
		access := fmt.Sprintf("%s?.%s", p.Name, field.Name)
		label := p.Name + "." + field.Name
		for _, v := range field.Validators {
			if line := typeValidatorCheck(v, access, label); line != "" {
				checks = append(checks, line)
			}
		}
	}
	return checks
}

// typeValidatorCheck mirrors codegen/form's validatorCheck for a single
// struct field's validator rule, rendered in the push-to-__errors idiom
// rpcEndpoint's other checks use. "matches" and "validate" are form-only:
// a matches check needs a sibling field's signal and validate needs a
// client-side function value, neither of which an RPC body carries.
func typeValidatorCheck(v *ast.Validator, access, label string) string {
	arg := func(i int) string {
		if i < len(v.Args) {
			return v.Args[i]
		}
		return ""
	}
	push := func(msg string) string {
		return fmt.Sprintf("__errors.push({ field: %q, message: %q });", label, msg)
	}
	switch v.Name {
	case "required":
		return fmt.Sprintf("if (%s === \"\" || %s === null || %s === undefined) %s", access, access, access, push("This field is required"))
	case "minLength":
		return fmt.Sprintf("if (String(%s).length < %s) %s", access, arg(0), push("Must be at least "+arg(0)+" characters"))
	case "maxLength":
		return fmt.Sprintf("if (String(%s).length > %s) %s", access, arg(0), push("Must be at most "+arg(0)+" characters"))
	case "min":
		return fmt.Sprintf("if (Number(%s) < %s) %s", access, arg(0), push("Must be at least "+arg(0)))
	case "max":
		return fmt.Sprintf("if (Number(%s) > %s) %s", access, arg(0), push("Must be at most "+arg(0)))
	case "pattern":
		return fmt.Sprintf("if (!/%s/.test(String(%s))) %s", arg(0), access, push("Invalid format"))
	case "email":
		return fmt.Sprintf(`if (!/^[^\s@]+@[^\s@]+\.[^\s@]+$/.test(String(%s))) %s`, access, push("Invalid email address"))
	default:
		return ""
	}
}

// collectRPCNames gathers every exported async function name, which auto-
// await treats as an RPC boundary (spec §4.2: automatic async propagation
// across RPC calls).
func collectRPCNames(body []ast.Statement) map[string]bool {
	names := make(map[string]bool)
	for _, stmt := range body {
		if f, ok := stmt.(*ast.FunctionDeclaration); ok && f.IsPublic && f.IsAsync {
			names[f.Name] = true
		}
	}
	return names
}

// compileRoute turns a RouteDeclaration's path ("/users/:id") into a JS
// RegExp source with one capture group per :param segment.
func compileRoute(l *lower.Lowerer, r *ast.RouteDeclaration) Route {
	segments := strings.Split(strings.Trim(r.Path, "/"), "/")
	var params []string
	var pattern strings.Builder
	pattern.WriteString("^")
	for _, seg := range segments {
		pattern.WriteString("\\/")
		if strings.HasPrefix(seg, ":") {
			name := strings.TrimPrefix(seg, ":")
			params = append(params, name)
			pattern.WriteString("([^/]+)")
		} else if seg != "" {
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
	special := ".*+?^${}()|[]\\"
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PortEnvVar returns the PORT environment variable name and default port
// for a server block named name at position index (0-based) among its
// directory's named server blocks (spec.md §4.2/§6: "PORT for the default
// server (3000), PORT_<NAME> for each named server, defaulting to 3000 for
// the first block and incrementing for subsequent named blocks").
func PortEnvVar(name string, index int) (envVar string, defaultPort int) {
	if name == "" {
		return "PORT", 3000
	}
	return "PORT_" + strings.ToUpper(name), 3000 + index
}

// DispatcherJS renders the Bun.serve route-matching dispatcher for routes:
// CORS headers on every response, OPTIONS preflight, and a uniform 500 JSON
// catch around handler exceptions (spec.md §4.2). corsOrigins is wildcard
// ("*") when empty, origin-echo allow-list otherwise (spec.md §6) —
// rendered by codegen/security.CorsHeadersJS so server and edge share one
// CORS-policy implementation (SPEC_FULL.md §12 Q1).
func DispatcherJS(routes []Route, portEnvVar string, defaultPort int, corsOrigins []string) string {
	var b strings.Builder
	b.WriteString("const __routes = [\n")
	for _, r := range routes {
		fmt.Fprintf(&b, "  { method: %q, regex: /%s/, params: %s, handler: %s },\n",
			r.Method, r.Regex, jsStringArray(r.ParamNames), r.HandlerJS)
	}
	b.WriteString("];\n\n")
	b.WriteString(security.CorsHeadersJS(corsOrigins))
	b.WriteString("\n")
	b.WriteString("async function __dispatch(req) {\n")
	b.WriteString("  const __origin = req.headers.get(\"Origin\");\n")
	b.WriteString("  if (req.method === \"OPTIONS\") return new Response(null, { status: 204, headers: __corsHeaders(__origin) });\n")
	b.WriteString("  const url = new URL(req.url);\n")
	b.WriteString("  try {\n")
	b.WriteString("    for (const route of __routes) {\n")
	b.WriteString("      if (route.method !== req.method) continue;\n")
	b.WriteString("      const m = route.regex.exec(url.pathname);\n")
	b.WriteString("      if (!m) continue;\n")
	b.WriteString("      const params = {};\n")
	b.WriteString("      route.params.forEach((name, i) => { params[name] = m[i + 1]; });\n")
	b.WriteString("      const res = await route.handler(req, params);\n")
	b.WriteString("      for (const [k, v] of Object.entries(__corsHeaders(__origin))) res.headers.set(k, v);\n")
	b.WriteString("      return res;\n")
	b.WriteString("    }\n")
	b.WriteString("    return new Response(\"not found\", { status: 404, headers: __corsHeaders(__origin) });\n")
	b.WriteString("  } catch (err) {\n")
	b.WriteString("    return new Response(JSON.stringify({ error: String(err && err.message || err) }), { status: 500, headers: { \"Content-Type\": \"application/json\", ...__corsHeaders(__origin) } });\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "Bun.serve({ port: Number(process.env.%s ?? %d), fetch: __dispatch });\n", portEnvVar, defaultPort)
	return b.String()
}

func jsStringArray(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// DiscoverClientJS renders the circuit-breaker-wrapped, retrying RPC proxy
// for a `discover "peer" at URL` declaration (spec.md §4.2): a Proxy object
// whose every property access becomes a POST to baseUrl + "/rpc/" + name
// with a {__args} positional body, the peer's PORT_<NAME> env var
// overriding its declared base URL, wrapped in a CLOSED/OPEN/HALF-OPEN
// breaker (threshold 5, 30000ms reset, 10000ms per-call timeout) and up to
// 2 retries with 100/200/400ms backoff (spec.md §4.2, §5).
func DiscoverClientJS(p Peer) string {
	envVar, _ := PortEnvVar(p.Name, 0)
	var b strings.Builder
	fmt.Fprintf(&b, "const __%sBreaker = { state: \"closed\", failures: 0, openedAt: 0 };\n", p.Name)
	fmt.Fprintf(&b, "const __%sBase = process.env.%s ?? %s;\n", p.Name, envVar, p.URL)
	fmt.Fprintf(&b, "async function __%sCall(name, args) {\n", p.Name)
	fmt.Fprintf(&b, "  const breaker = __%sBreaker;\n", p.Name)
	b.WriteString("  const now = Date.now();\n")
	b.WriteString("  if (breaker.state === \"open\") {\n")
	b.WriteString("    if (now - breaker.openedAt < 30000) {\n")
	fmt.Fprintf(&b, "      throw new Error(\"%s circuit open\");\n", p.Name)
	b.WriteString("    }\n")
	b.WriteString("    breaker.state = \"half-open\";\n")
	b.WriteString("  }\n")
	b.WriteString("  const delays = [0, 100, 200, 400];\n")
	b.WriteString("  let lastErr;\n")
	b.WriteString("  for (const delay of delays) {\n")
	b.WriteString("    if (delay > 0) await new Promise((r) => setTimeout(r, delay));\n")
	b.WriteString("    try {\n")
	b.WriteString("      const controller = new AbortController();\n")
	b.WriteString("      const timer = setTimeout(() => controller.abort(), 10000);\n")
	fmt.Fprintf(&b, "      const res = await fetch(__%sBase + \"/rpc/\" + name, { method: \"POST\", body: JSON.stringify({ __args: args }), signal: controller.signal });\n", p.Name)
	b.WriteString("      clearTimeout(timer);\n")
	b.WriteString("      if (!res.ok) throw new Error(\"upstream error \" + res.status);\n")
	b.WriteString("      breaker.state = \"closed\"; breaker.failures = 0;\n")
	b.WriteString("      return (await res.json()).result;\n")
	b.WriteString("    } catch (err) {\n")
	b.WriteString("      lastErr = err;\n")
	b.WriteString("      breaker.failures += 1;\n")
	b.WriteString("      if (breaker.failures >= 5) { breaker.state = \"open\"; breaker.openedAt = Date.now(); break; }\n")
	b.WriteString("    }\n")
	b.WriteString("  }\n")
	b.WriteString("  throw lastErr;\n")
	b.WriteString("}\n")
	fmt.Fprintf(&b, "const %s = new Proxy({}, { get: (_, name) => (...args) => __%sCall(name, args) });\n\n", p.Name, p.Name)
	return b.String()
}
