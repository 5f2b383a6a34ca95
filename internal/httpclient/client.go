// Package httpclient builds the configured *http.Client that backs a single
// pooled connection.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nethippie/hippie/internal/security"
)

// Default configuration values
const (
	DefaultReadTimeout         = 10 * time.Second
	DefaultOpenTimeout         = 10 * time.Second
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultKeepAlive           = 30 * time.Second
)

// Config holds transport configuration options.
type Config struct {
	// ReadTimeout bounds every individual socket read and write (default: 10s)
	ReadTimeout time.Duration

	// OpenTimeout bounds TCP connect and the TLS handshake (default: 10s)
	OpenTimeout time.Duration

	// MaxIdleConnsPerHost controls the maximum idle connections per host (default: 10)
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle keep-alive connections stay open
	// (default: 90s). ReadTimeout does not apply between exchanges.
	IdleConnTimeout time.Duration

	// TLS is applied only when non-nil. Plain-HTTP connections leave it unset.
	TLS *TLSConfig

	// BlockPrivateNetworks refuses sockets to loopback, private and
	// link-local addresses after DNS resolution.
	BlockPrivateNetworks bool

	// Debug logs every exchange at debug level through Logger.
	Debug  bool
	Logger *zap.Logger

	// Transport replaces the built *http.Transport. Timeouts and TLS settings
	// are then the caller's responsibility; Debug logging still applies.
	Transport http.RoundTripper
}

// New creates an HTTP client with the given configuration.
// If cfg is nil, default values are used. The returned client never follows
// redirects on its own; callers inspect 3xx responses themselves.
func New(cfg *Config) (*http.Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	rt := cfg.Transport
	if rt == nil {
		transport, err := NewTransport(cfg)
		if err != nil {
			return nil, err
		}
		rt = &idleTransport{next: transport}
	}

	if cfg.Debug && cfg.Logger != nil {
		rt = &debugTransport{next: rt, logger: cfg.Logger}
	}

	return &http.Client{
		Transport: rt,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// NewTransport builds the *http.Transport described by cfg.
func NewTransport(cfg *Config) (*http.Transport, error) {
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = DefaultOpenTimeout
	}

	maxIdleConns := cfg.MaxIdleConnsPerHost
	if maxIdleConns <= 0 {
		maxIdleConns = DefaultMaxIdleConnsPerHost
	}

	idleConnTimeout := cfg.IdleConnTimeout
	if idleConnTimeout <= 0 {
		idleConnTimeout = DefaultIdleConnTimeout
	}

	netDialer := &net.Dialer{
		Timeout:   openTimeout,
		KeepAlive: DefaultKeepAlive,
	}
	if cfg.BlockPrivateNetworks {
		netDialer.Control = security.DialControl
	}
	dialer := &deadlineDialer{dialer: netDialer, readTimeout: readTimeout}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: openTimeout,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     idleConnTimeout,
	}

	if cfg.TLS != nil {
		tlsConfig, err := cfg.TLS.Build()
		if err != nil {
			return nil, fmt.Errorf("configure TLS: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
	}

	return transport, nil
}

// BaseTransport returns the *http.Transport underneath a client built by New,
// or nil when it uses a custom transport.
func BaseTransport(c *http.Client) *http.Transport {
	rt := c.Transport
	if d, ok := rt.(*debugTransport); ok {
		rt = d.next
	}
	if i, ok := rt.(*idleTransport); ok {
		return i.next
	}
	return nil
}

// TLSClientConfig exposes the TLS settings of a client built by New, or nil
// when it uses a custom transport or plain HTTP.
func TLSClientConfig(c *http.Client) *tls.Config {
	if t := BaseTransport(c); t != nil {
		return t.TLSClientConfig
	}
	return nil
}
