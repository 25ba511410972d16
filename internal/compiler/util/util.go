// Package util holds the small naming and hashing helpers shared across
// every code generator: case conversion and the scope-id hash used to
// namespace component CSS.
package util

import (
	"hash/fnv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// ToPascalCase convertit snake_case et camelCase en PascalCase.
// Gère les cas spéciaux : "id" → "ID", "user_id" → "UserID".
func ToPascalCase(s string) string {
	if s == "" {
		return s
	}
	switch s {
	case "id":
		return "ID"
	case "userId":
		return "UserID"
	case "tenantId":
		return "TenantID"
	}
	if strings.Contains(s, "_") {
		parts := strings.Split(s, "_")
		for i, part := range parts {
			if part != "" {
				parts[i] = Capitalize(part)
			}
		}
		return strings.Join(parts, "")
	}
	return Capitalize(s)
}

// ToCamelCase converts snake_case or PascalCase to camelCase, the spelling
// Tova's generated client/server JS uses for local bindings.
func ToCamelCase(s string) string {
	pascal := ToPascalCase(s)
	if pascal == "" {
		return pascal
	}
	if pascal == "ID" {
		return "id"
	}
	return strings.ToLower(pascal[:1]) + pascal[1:]
}

// ToSnakeCase converts camelCase or PascalCase to snake_case, used when
// emitting wire-format JSON keys that must match a Tova field's declared
// name regardless of the binding's in-code casing.
func ToSnakeCase(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if prevLower || (nextLower && runes[i-1] != '_') {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TitleCase applies Unicode-aware title casing, used for user-facing form
// labels synthesized from field names ("first_name" -> "First Name").
func TitleCase(s string) string {
	spaced := strings.ReplaceAll(ToSnakeCase(s), "_", " ")
	return titleCaser.String(spaced)
}

// Capitalize met en majuscule la première lettre. "id" → "ID" (cas spécial).
func Capitalize(s string) string {
	if s == "" {
		return ""
	}
	if strings.ToLower(s) == "id" {
		return "ID"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ReceiverName retourne la première lettre en minuscule d'un nom de type.
func ReceiverName(name string) string {
	if name == "" {
		return ""
	}
	return strings.ToLower(name[:1])
}

const (
	fnvOffset32 uint32 = 0x811c9dc5
	fnvPrime32  uint32 = 0x01000193
)

// FNV1a8Hex hashes s with 32-bit FNV-1a and returns the low 8 hex digits,
// used as the CSS scope id attached to a component's elements and style
// rules so sibling components never collide.
func FNV1a8Hex(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	sum := h.Sum32()
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[sum&0xf]
		sum >>= 4
	}
	return string(buf)
}
