// Package connection binds one configured HTTP transport to a single origin.
package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/nethippie/hippie/internal/httpclient"
	"github.com/nethippie/hippie/internal/request"
	"github.com/nethippie/hippie/internal/response"
	"github.com/nethippie/hippie/internal/uri"
)

// ErrOriginMismatch is returned by Run for a request addressed elsewhere.
var ErrOriginMismatch = errors.New("request origin does not match connection")

// Connection executes exchanges against one (scheme, host, port) origin.
// Its transport settings are fixed at construction. A Connection is safe for
// concurrent use.
type Connection struct {
	origin uri.Origin
	client *http.Client
}

// New configures a Connection for origin. TLS settings in cfg are applied
// only when the origin is https; a nil cfg.TLS on an https origin verifies
// the peer with the system roots.
func New(origin uri.Origin, cfg *httpclient.Config) (*Connection, error) {
	if origin.Scheme != uri.SchemeHTTP && origin.Scheme != uri.SchemeHTTPS {
		return nil, &uri.MalformedURIError{Input: origin.String(), Reason: "scheme must be http or https"}
	}
	if origin.Port == 0 {
		origin.Port = uri.DefaultPort(origin.Scheme)
	}

	var local httpclient.Config
	if cfg != nil {
		local = *cfg
	}

	if origin.Secure() {
		if local.TLS == nil {
			local.TLS = &httpclient.TLSConfig{}
		}
	} else {
		local.TLS = nil
	}

	client, err := httpclient.New(&local)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", origin, err)
	}

	return &Connection{origin: origin, client: client}, nil
}

// Origin returns the origin this Connection is bound to.
func (c *Connection) Origin() uri.Origin {
	return c.origin
}

// TLSConfig returns the client TLS settings, or nil for plain HTTP.
func (c *Connection) TLSConfig() *tls.Config {
	return httpclient.TLSClientConfig(c.client)
}

// Run sends req and reads the full response. It neither retries nor follows
// redirects, and transport errors are returned as produced.
func (c *Connection) Run(ctx context.Context, req *request.Request) (*response.Response, error) {
	if got := uri.OriginOf(req.URL); got != c.origin {
		return nil, fmt.Errorf("%w: %s is not %s", ErrOriginMismatch, got, c.origin)
	}

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	return response.New(resp)
}

// BuildURL resolves path against the origin. Values starting with "http"
// are taken as absolute and returned unchanged. The port is omitted when it
// is the scheme's default.
func (c *Connection) BuildURL(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	host := c.origin.Host
	if c.origin.Port != uri.DefaultPort(c.origin.Scheme) {
		host = net.JoinHostPort(host, strconv.Itoa(c.origin.Port))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	return c.origin.Scheme + "://" + host + path
}

// Close releases idle sockets. In-flight exchanges are not interrupted.
func (c *Connection) Close() {
	c.client.CloseIdleConnections()
}
