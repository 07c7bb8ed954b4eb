// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"strings"
)

type (
	// Param is a clause attribute (key=value) or directive (key:=value).
	Param struct {
		Key   string
		Value string
	}

	// Clause is one comma-separated element of a module header value, e.g.
	// `javax.servlet;version="[2.5,4.0)";resolution:=optional`.
	Clause struct {
		Paths      []string
		Attributes []Param
		Directives []Param
	}
)

// ParseClauses splits a header value into clauses. Commas and semicolons
// inside double quotes do not separate clauses or parameters, and quotes are
// removed from parameter values.
func ParseClauses(value string) []Clause {
	var clauses []Clause
	for _, raw := range splitUnquoted(value, ',') {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		var c Clause
		for _, part := range splitUnquoted(raw, ';') {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if k, v, ok := cutUnquoted(part, ":="); ok {
				c.Directives = append(c.Directives, Param{Key: strings.TrimSpace(k), Value: unquote(strings.TrimSpace(v))})
				continue
			}
			if k, v, ok := cutUnquoted(part, "="); ok {
				c.Attributes = append(c.Attributes, Param{Key: strings.TrimSpace(k), Value: unquote(strings.TrimSpace(v))})
				continue
			}
			c.Paths = append(c.Paths, unquote(part))
		}
		if len(c.Paths) > 0 {
			clauses = append(clauses, c)
		}
	}
	return clauses
}

// FormatClauses joins clauses back into a header value.
func FormatClauses(clauses []Clause) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ",")
}

// String encodes the clause, quoting parameter values that need it.
func (c Clause) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(c.Paths, ";"))
	for _, a := range c.Attributes {
		sb.WriteString(";")
		sb.WriteString(a.Key)
		sb.WriteString("=")
		sb.WriteString(quoteIfNeeded(a.Value))
	}
	for _, d := range c.Directives {
		sb.WriteString(";")
		sb.WriteString(d.Key)
		sb.WriteString(":=")
		sb.WriteString(quoteIfNeeded(d.Value))
	}
	return sb.String()
}

// Attribute returns the named attribute value.
func (c Clause) Attribute(key string) (string, bool) {
	return lookupParam(c.Attributes, key)
}

// Directive returns the named directive value.
func (c Clause) Directive(key string) (string, bool) {
	return lookupParam(c.Directives, key)
}

func lookupParam(params []Param, key string) (string, bool) {
	for _, p := range params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

func splitUnquoted(s string, sep byte) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func cutUnquoted(s, sep string) (before, after string, found bool) {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes && strings.HasPrefix(s[i:], sep) {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func quoteIfNeeded(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_', c == '/':
		default:
			return `"` + s + `"`
		}
	}
	return s
}
