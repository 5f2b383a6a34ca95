// Package uri normalizes request targets and derives the origin used to key
// pooled connections.
package uri

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Schemes understood by the client.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// MalformedURIError reports a target that cannot be used for a request.
type MalformedURIError struct {
	Input  string
	Reason string
	Err    error
}

func (e *MalformedURIError) Error() string {
	msg := fmt.Sprintf("malformed URI %q: %s", e.Input, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedURIError) Unwrap() error {
	return e.Err
}

// Origin identifies a connection target.
type Origin struct {
	Scheme string
	Host   string
	Port   int
}

// String renders the origin as scheme://host:port, always with the port.
func (o Origin) String() string {
	return o.Scheme + "://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Secure reports whether the origin uses TLS.
func (o Origin) Secure() bool {
	return o.Scheme == SchemeHTTPS
}

// DefaultPort returns the well-known port for a scheme, or 0 if unknown.
func DefaultPort(scheme string) int {
	switch scheme {
	case SchemeHTTP:
		return 80
	case SchemeHTTPS:
		return 443
	}
	return 0
}

// Parse accepts a string, *url.URL, url.URL or fmt.Stringer and returns a
// private copy of the absolute http(s) URL it names.
func Parse(target any) (*url.URL, error) {
	var raw string
	switch v := target.(type) {
	case string:
		raw = v
	case *url.URL:
		if v == nil {
			return nil, &MalformedURIError{Input: "<nil>", Reason: "nil URL"}
		}
		return validate(v.String(), cloneURL(v))
	case url.URL:
		return validate(v.String(), cloneURL(&v))
	case fmt.Stringer:
		raw = v.String()
	default:
		return nil, &MalformedURIError{Input: fmt.Sprint(target), Reason: fmt.Sprintf("unsupported type %T", target)}
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, &MalformedURIError{Input: raw, Reason: "parse failed", Err: err}
	}
	return validate(raw, u)
}

func validate(input string, u *url.URL) (*url.URL, error) {
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != SchemeHTTP && u.Scheme != SchemeHTTPS {
		return nil, &MalformedURIError{Input: input, Reason: "scheme must be http or https"}
	}
	if u.Hostname() == "" {
		return nil, &MalformedURIError{Input: input, Reason: "missing host"}
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, &MalformedURIError{Input: input, Reason: "invalid port " + p}
		}
	}
	return u, nil
}

func cloneURL(u *url.URL) *url.URL {
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}

// OriginOf extracts the (scheme, host, port) triple of an absolute URL,
// filling in the scheme's default port.
func OriginOf(u *url.URL) Origin {
	port := DefaultPort(u.Scheme)
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return Origin{
		Scheme: u.Scheme,
		Host:   strings.ToLower(u.Hostname()),
		Port:   port,
	}
}
