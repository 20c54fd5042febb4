// Package naming converts identifiers between the casing conventions of the
// library and the two host environments.
package naming

import (
	"strings"
	"unicode"
)

// abbreviations are lowered as a single word. Longer entries come first so
// "HTTPS" wins over "HTTP".
var abbreviations = []struct{ upper, lower string }{
	{"HTTPS", "https"}, {"HTTP", "http"}, {"JSON", "json"}, {"UUID", "uuid"},
	{"URL", "url"}, {"URI", "uri"}, {"XML", "xml"}, {"UTF", "utf"},
	{"TCP", "tcp"}, {"UDP", "udp"}, {"TLS", "tls"}, {"SSL", "ssl"},
	{"API", "api"}, {"SQL", "sql"}, {"DNS", "dns"}, {"FFI", "ffi"},
	{"JNI", "jni"}, {"ID", "id"}, {"IP", "ip"},
}

// SnakeCase converts PascalCase to snake_case.
// "DemoTrait" → "demo_trait", "HTTPClient" → "http_client".
func SnakeCase(s string) string {
	for _, a := range abbreviations {
		s = strings.ReplaceAll(s, a.upper, "_"+a.lower+"_")
	}
	var result []rune
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				if unicode.IsLower(prev) || unicode.IsDigit(prev) {
					result = append(result, '_')
				}
			}
			result = append(result, unicode.ToLower(r))
		} else {
			result = append(result, r)
		}
	}
	out := strings.Trim(string(result), "_")
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return out
}

// PascalCase converts a snake_case name to PascalCase.
// "on_value" → "OnValue", "to_s" → "ToS", "DemoTrait" stays as is.
func PascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "")
}

// CamelCase converts a snake_case name to camelCase.
func CamelCase(s string) string {
	p := PascalCase(s)
	if p == "" {
		return p
	}
	return strings.ToLower(p[:1]) + p[1:]
}

// JNIMangle escapes a Java class or method name component for use in a JNI
// native symbol: "_" becomes "_1" and "." becomes "_".
func JNIMangle(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '_':
			b.WriteString("_1")
		case r == '.' || r == '/':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
