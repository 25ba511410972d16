// Package security lowers a merged security block into the runtime JS
// every server and edge target shares: JWT verification (HS256 only, via
// the Web Crypto API), a role check, a glob-based protect-pattern matcher,
// a per-response auto-sanitization dispatcher keyed by `__type`/`__tag`,
// and a CSP header generator. Grounded on the teacher's gen_*.go emission
// style (plain strings.Builder assembly, one function per concern) since
// the teacher has no auth/security analogue of its own to generalize from
// directly — the shape is inherited from codegen/server and codegen/edge's
// already-established "one JS function per concern" texture.
package security

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
)

// Config is the fully merged security posture for one compilation unit:
// the `security {}` block's settings, struct-merged against any inline
// `server { auth {} cors {} }` overrides per the "inline wins" precedence
// decision (see merge.go).
type Config struct {
	AuthSecret      string // JS expression text reading the secret, e.g. `process.env.JWT_SECRET`
	Roles           []string
	Protections     []Protection
	Sensitive       []SensitiveField
	CSP             map[string]string
	CorsOrigins     []string
	HasAuth         bool
	HasCSP          bool
}

// Protection is one `protect { pattern => role }` entry.
type Protection struct {
	Pattern string
	Role    string
}

// SensitiveField is one `sensitive { Type.field => role }` entry: field
// `Field` of records tagged `Type` is stripped unless the caller holds
// `Role`.
type SensitiveField struct {
	Type  string
	Field string
	Role  string
}

// BuildConfig merges the declarations of a `security {}` block (already
// block-merged by internal/compiler/merge) into a Config, collecting
// analyzer warnings per spec.md §7.
func BuildConfig(body []ast.Statement, bag *diag.Bag) *Config {
	cfg := &Config{CSP: map[string]string{}}
	knownRoles := map[string]bool{}

	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.AuthDecl:
			cfg.HasAuth = true
			if lit, ok := s.Secret.(*ast.StringLiteral); ok {
				if lit.Value != "" && !strings.Contains(lit.Value, "env") {
					bag.Warnf(pos(s), "codegen/security", "hardcoded auth secret")
				}
				cfg.AuthSecret = fmt.Sprintf("%q", lit.Value)
			} else if s.Secret != nil {
				cfg.AuthSecret = exprText(s.Secret)
			}
		case *ast.RoleDecl:
			if knownRoles[s.Name] {
				bag.Warnf(pos(s), "codegen/security", "duplicate role %q", s.Name)
			}
			knownRoles[s.Name] = true
		case *ast.ProtectDecl:
			cfg.Protections = append(cfg.Protections, Protection{Pattern: s.Pattern, Role: s.Role})
		case *ast.SensitiveDecl:
			cfg.Sensitive = append(cfg.Sensitive, SensitiveField{Type: s.Type, Field: s.Field, Role: s.Role})
		case *ast.CSPDecl:
			cfg.HasCSP = true
			for k, v := range s.Directives {
				cfg.CSP[k] = v
			}
		case *ast.CorsDecl:
			cfg.CorsOrigins = append(cfg.CorsOrigins, s.Origins...)
		}
	}

	for _, p := range cfg.Protections {
		if !knownRoles[p.Role] {
			bag.Warnf(diag.Position{}, "codegen/security", "protect references undefined role %q", p.Role)
		}
	}
	for _, f := range cfg.Sensitive {
		if !knownRoles[f.Role] {
			bag.Warnf(diag.Position{}, "codegen/security", "sensitive references undefined role %q", f.Role)
		}
	}
	if len(cfg.Protections) > 0 && !cfg.HasAuth {
		bag.Warnf(diag.Position{}, "codegen/security", "protect declared without auth")
	}
	for _, o := range cfg.CorsOrigins {
		if o == "*" {
			bag.Warnf(diag.Position{}, "codegen/security", "CORS wildcard origin")
		}
	}

	return cfg
}

func pos(n ast.Node) diag.Position {
	p := n.Pos()
	return diag.Position{Line: p.Line, Column: p.Column}
}

func exprText(e ast.Expression) string {
	if id, ok := e.(*ast.Identifier); ok {
		return id.Name
	}
	if m, ok := e.(*ast.MemberExpression); ok {
		return exprText(m.Object) + "." + m.Property
	}
	return "undefined"
}

// RuntimeJS renders every helper function this Config needs: JWT verify,
// role check, protect matcher, sanitizer, CSP header. Each is only emitted
// when the corresponding feature is actually configured, matching the
// "only inject helpers that were used" discipline from the shared helper
// bundle (spec.md §4.1's "Helper injection").
func RuntimeJS(cfg *Config) string {
	var b strings.Builder
	if cfg.HasAuth {
		b.WriteString(verifyJWTSource)
		b.WriteString("\n")
		b.WriteString(roleCheckSource)
		b.WriteString("\n")
	}
	if len(cfg.Protections) > 0 {
		b.WriteString(protectMatcherSource(cfg.Protections))
		b.WriteString("\n")
	}
	if len(cfg.Sensitive) > 0 {
		b.WriteString(sanitizerSource(cfg.Sensitive))
		b.WriteString("\n")
	}
	if cfg.HasCSP {
		b.WriteString(cspHeaderSource(cfg.CSP))
		b.WriteString("\n")
	}
	return b.String()
}

// verifyJWTSource implements HS256-only JWT verification against the Web
// Crypto API; tokens declaring `alg: none` or any algorithm other than
// HS256 are rejected (spec.md §4.4).
const verifyJWTSource = `async function __verifyJWT(token, secret) {
  const parts = token.split(".");
  if (parts.length !== 3) return null;
  const [headerB64, payloadB64, sigB64] = parts;
  let header;
  try {
    header = JSON.parse(atob(headerB64.replace(/-/g, "+").replace(/_/g, "/")));
  } catch {
    return null;
  }
  if (header.alg !== "HS256") return null;
  const key = await crypto.subtle.importKey(
    "raw",
    new TextEncoder().encode(secret),
    { name: "HMAC", hash: "SHA-256" },
    false,
    ["verify"]
  );
  const sig = Uint8Array.from(atob(sigB64.replace(/-/g, "+").replace(/_/g, "/")), (c) => c.charCodeAt(0));
  const data = new TextEncoder().encode(headerB64 + "." + payloadB64);
  const valid = await crypto.subtle.verify("HMAC", key, sig, data);
  if (!valid) return null;
  try {
    return JSON.parse(atob(payloadB64.replace(/-/g, "+").replace(/_/g, "/")));
  } catch {
    return null;
  }
}
`

const roleCheckSource = `function __hasRole(claims, role) {
  if (!claims) return false;
  const roles = claims.roles ?? (claims.role ? [claims.role] : []);
  return roles.includes(role);
}
`

// protectMatcherSource compiles every `protect` pattern's glob syntax
// (`*` → `[^/]*`, `**` → `.*`, other regex specials escaped) into a single
// lookup table consulted by the dispatcher before a route handler runs.
func protectMatcherSource(prots []Protection) string {
	sort.Slice(prots, func(i, j int) bool { return prots[i].Pattern < prots[j].Pattern })
	var entries strings.Builder
	for i, p := range prots {
		if i > 0 {
			entries.WriteString(", ")
		}
		fmt.Fprintf(&entries, "{ re: %s, role: %q }", globToRegexLiteral(p.Pattern), p.Role)
	}
	return fmt.Sprintf(`const __protections = [%s];
function __protectionFor(path) {
  for (const p of __protections) {
    if (p.re.test(path)) return p.role;
  }
  return null;
}
`, entries.String())
}

// globToRegexLiteral renders pattern as a JS regex literal: `**` becomes
// `.*`, a lone `*` becomes `[^/]*`, and every other regex-special
// character is escaped.
func globToRegexLiteral(pattern string) string {
	var out strings.Builder
	out.WriteString("/^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '*' {
			if i+1 < len(runes) && runes[i+1] == '*' {
				out.WriteString(".*")
				i++
				continue
			}
			out.WriteString("[^/]*")
			continue
		}
		if strings.ContainsRune(`.+?^${}()|[]\`, runes[i]) {
			out.WriteByte('\\')
		}
		out.WriteRune(runes[i])
	}
	out.WriteString("$/")
	return out.String()
}

// sanitizerSource emits a dispatcher that strips configured fields from a
// tagged record unless the caller's claims carry the required role,
// dispatching by the record's `__type` (struct shape tag) or `__tag`
// (variant discriminant), per spec.md §4.4.
func sanitizerSource(fields []SensitiveField) string {
	byType := map[string][]SensitiveField{}
	for _, f := range fields {
		byType[f.Type] = append(byType[f.Type], f)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var cases strings.Builder
	for _, t := range types {
		fmt.Fprintf(&cases, "    case %q:\n", t)
		for _, f := range byType[t] {
			fmt.Fprintf(&cases, "      if (!__hasRole(claims, %q)) delete out.%s;\n", f.Role, f.Field)
		}
		cases.WriteString("      break;\n")
	}

	return fmt.Sprintf(`function __sanitize(value, claims) {
  if (value === null || typeof value !== "object") return value;
  if (Array.isArray(value)) return value.map((v) => __sanitize(v, claims));
  const out = { ...value };
  switch (out.__type ?? out.__tag) {
%s  }
  return out;
}
`, cases.String())
}

// cspHeaderSource renders a single Content-Security-Policy header string
// builder from a directive map, sorted for deterministic output.
func cspHeaderSource(directives map[string]string) string {
	keys := make([]string, 0, len(directives))
	for k := range directives {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %s", k, directives[k])
	}
	joined := strings.Join(parts, "; ")
	return fmt.Sprintf(`function __cspHeader() {
  return %q;
}
`, joined)
}

// CorsHeadersJS renders the CORS helper: wildcard headers when no origins
// are configured, or an origin-echo helper that allow-lists explicit
// values (spec.md §4.4).
func CorsHeadersJS(origins []string) string {
	if len(origins) == 0 {
		return `function __corsHeaders() {
  return { "Access-Control-Allow-Origin": "*", "Access-Control-Allow-Methods": "GET, POST, OPTIONS", "Access-Control-Allow-Headers": "Content-Type, Authorization" };
}
`
	}
	sort.Strings(origins)
	quoted := make([]string, len(origins))
	for i, o := range origins {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	return fmt.Sprintf(`const __allowedOrigins = [%s];
function __corsHeaders(requestOrigin) {
  const headers = { "Access-Control-Allow-Methods": "GET, POST, OPTIONS", "Access-Control-Allow-Headers": "Content-Type, Authorization" };
  if (requestOrigin && __allowedOrigins.includes(requestOrigin)) {
    headers["Access-Control-Allow-Origin"] = requestOrigin;
  }
  return headers;
}
`, strings.Join(quoted, ", "))
}

// TokenInjectorJS renders the client-side helper that attaches the bearer
// token to every outgoing RPC fetch, used by codegen/client when a
// security block is active for the compilation unit.
const TokenInjectorJS = `function __withAuthHeader(init) {
  const token = typeof localStorage !== "undefined" ? localStorage.getItem("__token") : null;
  if (!token) return init;
  return { ...init, headers: { ...(init.headers ?? {}), Authorization: "Bearer " + token } };
}
`
