package edge

import (
	"fmt"
	"sort"
	"strings"
)

// Emit renders the full JS module for one of the five targets.
func Emit(cfg *Config, target Target) string {
	switch target {
	case Cloudflare:
		return emitCloudflare(cfg)
	case Deno:
		return emitDeno(cfg)
	case Vercel:
		return emitVercel(cfg)
	case Lambda:
		return emitLambda(cfg)
	case Bun:
		return emitBun(cfg)
	default:
		return fmt.Sprintf("/* unknown edge target: %s */", target)
	}
}

func routesWithHealth(cfg *Config) []Route {
	routes := cfg.Routes
	if cfg.Health != nil {
		routes = append([]Route{{
			Method: "GET",
			Path:   cfg.Health.Path,
			Regex:  "^" + strings.ReplaceAll(cfg.Health.Path, "/", "\\/") + "$",
			HandlerJS: healthHandlerExpr(cfg.Health),
		}}, routes...)
	}
	return routes
}

func healthHandlerExpr(h *HealthCheck) string {
	body := `{ status: "ok"`
	if h.CheckMemory {
		body = `{ status: "ok", checks: { memory: true }`
	}
	body += `, timestamp: Date.now() }`
	return fmt.Sprintf(`async () => new Response(JSON.stringify(%s), { headers: { "Content-Type": "application/json" } })`, body)
}

// --- Cloudflare Workers ---
//
// Bindings are module-level `let`s, (re)initialized from `env` on every
// fetch/scheduled/queue invocation. Env vars read `?? default`; secrets
// have no default.

func emitCloudflare(cfg *Config) string {
	var b strings.Builder
	b.WriteString(securityPreamble(cfg))
	b.WriteString(corsPreamble(cfg))
	b.WriteString(matchRouteSource)
	b.WriteString(routeTableSource(routesWithHealth(cfg), func(r Route) string { return r.HandlerJS }))
	for _, mw := range cfg.Middlewares {
		fmt.Fprintf(&b, "async function __mw_%s(req, next) {\n%s  return await next(req);\n}\n", mw.Name, reindent(mw.Body))
	}
	bindingDecls := make([]string, 0, len(cfg.Bindings))
	for _, bind := range cfg.Bindings {
		bindingDecls = append(bindingDecls, fmt.Sprintf("  let %s = env.%s;\n", bind.Name, bind.Name))
	}
	sort.Strings(bindingDecls)

	b.WriteString("async function __handleRequest(req, env) {\n")
	for _, d := range bindingDecls {
		b.WriteString(d)
	}
	b.WriteString(envBindingLinesIndented(cfg.EnvVars, "env"))
	b.WriteString("  const url = new URL(req.url);\n")
	b.WriteString("  if (req.method === \"OPTIONS\") return new Response(null, { status: 204, headers: __corsHeaders(req.headers.get(\"origin\")) });\n")
	b.WriteString("  try {\n")
	b.WriteString("    const match = matchRoute(req.method, url.pathname, __routes);\n")
	b.WriteString("    if (!match) return new Response(\"not found\", { status: 404, headers: __corsHeaders(req.headers.get(\"origin\")) });\n")
	b.WriteString("    const res = await match.handler(req, match.params);\n")
	b.WriteString("    for (const [k, v] of Object.entries(__corsHeaders(req.headers.get(\"origin\")))) res.headers.set(k, v);\n")
	b.WriteString("    return res;\n")
	b.WriteString(catchBlockSource(cfg.OnErrorJS, true))
	b.WriteString("}\n\n")

	b.WriteString("export default {\n")
	b.WriteString("  async fetch(req, env, ctx) { return __handleRequest(req, env); },\n")
	for _, c := range cfg.Crons {
		fmt.Fprintf(&b, "  async scheduled(event, env, ctx) { ctx.waitUntil((%s)(event, env)); },\n", c.HandlerJS)
	}
	for _, q := range cfg.Queues {
		fmt.Fprintf(&b, "  async queue(batch, env, ctx) { for (const msg of batch.messages) { await (%s)(msg, env); } },\n", q.HandlerJS)
	}
	b.WriteString("};\n")
	return b.String()
}

// --- Deno Deploy ---
//
// KV uses Deno.openKv(); SQL/storage/queue are stub nulls. Cron uses
// Deno.cron.

func emitDeno(cfg *Config) string {
	var b strings.Builder
	b.WriteString(securityPreamble(cfg))
	b.WriteString(corsPreamble(cfg))
	b.WriteString(matchRouteSource)
	b.WriteString(routeTableSource(routesWithHealth(cfg), func(r Route) string { return r.HandlerJS }))
	for _, mw := range cfg.Middlewares {
		fmt.Fprintf(&b, "async function __mw_%s(req, next) {\n%s  return await next(req);\n}\n", mw.Name, reindent(mw.Body))
	}
	for _, bind := range cfg.Bindings {
		switch bind.Kind {
		case "kv":
			fmt.Fprintf(&b, "const %s = await Deno.openKv();\n", bind.Name)
		default:
			fmt.Fprintf(&b, "const %s = null;\n", bind.Name)
		}
	}
	b.WriteString(envBindingLines(cfg.EnvVars, "Deno.env.toObject()"))

	b.WriteString("async function __handleRequest(req) {\n")
	b.WriteString("  const url = new URL(req.url);\n")
	b.WriteString("  if (req.method === \"OPTIONS\") return new Response(null, { status: 204, headers: __corsHeaders(req.headers.get(\"origin\")) });\n")
	b.WriteString("  try {\n")
	b.WriteString("    const match = matchRoute(req.method, url.pathname, __routes);\n")
	b.WriteString("    if (!match) return new Response(\"not found\", { status: 404, headers: __corsHeaders(req.headers.get(\"origin\")) });\n")
	b.WriteString("    const res = await match.handler(req, match.params);\n")
	b.WriteString("    for (const [k, v] of Object.entries(__corsHeaders(req.headers.get(\"origin\")))) res.headers.set(k, v);\n")
	b.WriteString("    return res;\n")
	b.WriteString(catchBlockSource(cfg.OnErrorJS, true))
	b.WriteString("}\n\n")
	for _, c := range cfg.Crons {
		fmt.Fprintf(&b, "Deno.cron(%q, %q, async () => { await (%s)(); });\n", c.Schedule, c.Schedule, c.HandlerJS)
	}
	b.WriteString("Deno.serve(__handleRequest);\n")
	return b.String()
}

// --- Vercel Edge ---
//
// KV/SQL/storage/queue are stubs; env/secret read from process.env.

func emitVercel(cfg *Config) string {
	return emitProcessEnvTarget(cfg, "export const config = { runtime: \"edge\" };\n\nexport default async function handler(req) {\n", true)
}

// --- AWS Lambda ---
//
// Same process.env surface as Vercel; the entrypoint is a Lambda-shaped
// `exports.handler` instead of a `fetch`-style default export.

func emitLambda(cfg *Config) string {
	return emitProcessEnvTarget(cfg, "exports.handler = async function (event) {\n  const req = new Request(event.rawPath ?? \"/\", { method: event.requestContext?.http?.method ?? \"GET\" });\n", false)
}

// --- Bun ---
//
// SQL uses `bun:sqlite`; other bindings stub; env/secret from process.env.

func emitBun(cfg *Config) string {
	var b strings.Builder
	hasSQL := false
	for _, bind := range cfg.Bindings {
		if bind.Kind == "sql" {
			hasSQL = true
		}
	}
	if hasSQL {
		b.WriteString("import { Database } from \"bun:sqlite\";\n")
	}
	b.WriteString(emitProcessEnvTarget(cfg, "", true))
	return b.String()
}

// emitProcessEnvTarget renders the shared process.env-reading body used by
// Vercel, Lambda, and Bun, parameterized by the entrypoint header
// (`header`) and whether it's a fetch-style default export (`fetchStyle`).
func emitProcessEnvTarget(cfg *Config, header string, fetchStyle bool) string {
	var b strings.Builder
	b.WriteString(securityPreamble(cfg))
	b.WriteString(corsPreamble(cfg))
	b.WriteString(matchRouteSource)
	b.WriteString(routeTableSource(routesWithHealth(cfg), func(r Route) string { return r.HandlerJS }))
	for _, mw := range cfg.Middlewares {
		fmt.Fprintf(&b, "async function __mw_%s(req, next) {\n%s  return await next(req);\n}\n", mw.Name, reindent(mw.Body))
	}
	for _, bind := range cfg.Bindings {
		fmt.Fprintf(&b, "const %s = null;\n", bind.Name)
	}
	b.WriteString(envBindingLines(cfg.EnvVars, "process.env"))

	if header == "" {
		header = "export default async function handler(req) {\n"
	}
	b.WriteString(header)
	b.WriteString("  const url = new URL(req.url);\n")
	b.WriteString("  if (req.method === \"OPTIONS\") return new Response(null, { status: 204, headers: __corsHeaders(req.headers.get(\"origin\")) });\n")
	b.WriteString("  try {\n")
	b.WriteString("    const match = matchRoute(req.method, url.pathname, __routes);\n")
	b.WriteString("    if (!match) return new Response(\"not found\", { status: 404, headers: __corsHeaders(req.headers.get(\"origin\")) });\n")
	b.WriteString("    const res = await match.handler(req, match.params);\n")
	if fetchStyle {
		b.WriteString("    for (const [k, v] of Object.entries(__corsHeaders(req.headers.get(\"origin\")))) res.headers.set(k, v);\n")
		b.WriteString("    return res;\n")
	} else {
		b.WriteString("    return res;\n")
	}
	b.WriteString(catchBlockSource(cfg.OnErrorJS, true))
	b.WriteString("}\n")
	return b.String()
}

func envBindingLinesIndented(envVars []EnvVar, source string) string {
	raw := envBindingLines(envVars, source)
	if raw == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	for i, ln := range lines {
		lines[i] = "  " + ln
	}
	return strings.Join(lines, "\n") + "\n"
}
