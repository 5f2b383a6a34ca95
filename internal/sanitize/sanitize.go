// Package sanitize renders request data for logs: control characters are
// escaped, long values truncated and credentials redacted.
package sanitize

import (
	"net/url"
	"sort"
	"strings"
	"unicode"
)

const (
	// MaxLogStringLength is the maximum length for logged strings.
	MaxLogStringLength = 500

	// Redacted replaces secret values.
	Redacted = "[REDACTED]"
)

// sensitiveHeaders are never logged verbatim. Keys are compared case-insensitively.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
}

// sensitiveParams are query parameter fragments whose values are masked.
var sensitiveParams = []string{"token", "key", "secret", "password", "signature"}

// String escapes control characters (including newlines) and truncates
// very long strings with a "..." suffix.
func String(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(min(len(s)+16, MaxLogStringLength+16))

	for i, r := range s {
		if i >= MaxLogStringLength {
			b.WriteString("...")
			break
		}

		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if unicode.IsControl(r) {
				b.WriteString(`\x`)
				b.WriteByte(hexChar(byte(r) >> 4))
				b.WriteByte(hexChar(byte(r) & 0x0f))
			} else {
				b.WriteRune(r)
			}
		}
	}

	return b.String()
}

// URL renders a URL without its password and with secret-looking query
// parameters masked.
func URL(u *url.URL) string {
	if u == nil {
		return ""
	}

	c := *u
	if q := c.Query(); len(q) > 0 {
		changed := false
		for name := range q {
			if isSensitiveParam(name) {
				q.Set(name, Redacted)
				changed = true
			}
		}
		if changed {
			c.RawQuery = q.Encode()
		}
	}

	return String(c.Redacted())
}

// RawURL is URL for unparsed input. Unparseable input is escaped as-is.
func RawURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return String(raw)
	}
	return URL(u)
}

// Headers returns a loggable copy of a header map with credentials redacted.
func Headers(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[strings.ToLower(k)] {
			out[k] = Redacted
			continue
		}
		out[k] = String(v)
	}
	return out
}

// HeaderNames lists header keys in sorted order.
func HeaderNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Error sanitizes an error message for safe logging.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitiveParams {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func hexChar(b byte) byte {
	if b < 10 {
		return '0' + b
	}
	return 'a' + b - 10
}
