// Package hippie is a JSON-first HTTP client. It keeps one connection per
// origin, serializes structured bodies according to Content-Type, follows
// redirects up to a configured limit, and retries transient network
// failures with jittered exponential backoff.
//
// There is no package-level default client: callers build a Client with New
// or NewFromFile and pass it to whatever needs it.
package hippie

import (
	"crypto/x509"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nethippie/hippie/internal/audit"
	"github.com/nethippie/hippie/internal/auth"
	"github.com/nethippie/hippie/internal/client"
	"github.com/nethippie/hippie/internal/config"
	"github.com/nethippie/hippie/internal/httpclient"
	"github.com/nethippie/hippie/internal/mapper"
	"github.com/nethippie/hippie/internal/request"
	"github.com/nethippie/hippie/internal/response"
	"github.com/nethippie/hippie/internal/retry"
	"github.com/nethippie/hippie/internal/security"
	"github.com/nethippie/hippie/internal/uri"
)

type (
	// Client sends requests through a pool of per-origin connections.
	Client = client.Client
	// Request is a built request as passed to a Handler.
	Request = request.Request
	// Response is a fully read HTTP response.
	Response = response.Response
	// Handler runs after a call with the request and the final response.
	Handler = client.Handler
	// Mapper serializes request bodies according to their headers.
	Mapper = mapper.Mapper
	// MapperFunc adapts a function to Mapper.
	MapperFunc = mapper.Func
	// VerifyMode selects how server certificates are checked.
	VerifyMode = httpclient.VerifyMode

	// AuditLogger receives audit events; see WithAudit.
	AuditLogger = audit.Logger
	// AuditEvent is one audit record.
	AuditEvent = audit.Event

	// SerializationError reports a body the Mapper could not encode.
	SerializationError = mapper.SerializationError
	// MalformedURIError reports a target that is not an absolute http(s) URI.
	MalformedURIError = uri.MalformedURIError
	// BlockedHostError reports a target refused by WithBlockPrivateNetworks.
	BlockedHostError = security.BlockedHostError
)

const (
	// VerifyPeer checks the server chain and hostname.
	VerifyPeer = httpclient.VerifyPeer
	// VerifyNone accepts any server certificate.
	VerifyNone = httpclient.VerifyNone
)

// Version of the library, also reported in the default User-Agent.
const Version = client.Version

// AuthorizationHeader is the header BasicAuth and BearerAuth values belong in.
const AuthorizationHeader = auth.Header

var (
	// ErrInvalidMethod is returned for methods other than GET, POST, PUT, PATCH and DELETE.
	ErrInvalidMethod = request.ErrInvalidMethod

	// ErrBlockedHost matches errors from a client built WithBlockPrivateNetworks.
	ErrBlockedHost = security.ErrBlockedHost
)

// Option adjusts the configuration a Client is built from.
type Option func(*client.Config)

// New returns a Client with the defaults (JSON Accept/Content-Type, 10s
// timeouts, peer verification, no redirects) adjusted by opts.
func New(opts ...Option) (*Client, error) {
	cfg := client.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return client.New(cfg)
}

// NewFromFile builds a Client from a TOML or YAML configuration file. A
// missing file yields the defaults. Options are applied after the file.
func NewFromFile(path string, logger *zap.Logger, opts ...Option) (*Client, error) {
	fileCfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg, err := fileCfg.ToClientConfig(logger)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return client.New(cfg)
}

// WithHeader sets one default header. Names are case-sensitive.
func WithHeader(name, value string) Option {
	return func(c *client.Config) {
		c.DefaultHeaders = request.MergeHeaders(c.DefaultHeaders, map[string]string{name: value})
	}
}

// WithHeaders replaces the default header set entirely.
func WithHeaders(headers map[string]string) Option {
	return func(c *client.Config) {
		c.DefaultHeaders = request.MergeHeaders(nil, headers)
	}
}

// WithTimeouts sets the read and open (connect plus TLS handshake) timeouts.
// Zero keeps the default.
func WithTimeouts(read, open time.Duration) Option {
	return func(c *client.Config) {
		c.ReadTimeout = read
		c.OpenTimeout = open
	}
}

// WithVerifyMode sets server certificate verification.
func WithVerifyMode(mode VerifyMode) Option {
	return func(c *client.Config) { c.VerifyMode = mode }
}

// WithRootCAs sets the pool used to verify servers instead of the system roots.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *client.Config) { c.RootCAs = pool }
}

// WithClientCertificate enables mutual TLS. cert and key are PEM; passphrase
// decrypts a legacy encrypted key and may be empty.
func WithClientCertificate(cert, key []byte, passphrase string) Option {
	return func(c *client.Config) {
		c.ClientCert = cert
		c.ClientKey = key
		c.KeyPassphrase = passphrase
	}
}

// WithFollowRedirects sets how many redirect hops the verb methods follow.
func WithFollowRedirects(limit int) Option {
	return func(c *client.Config) { c.FollowRedirects = limit }
}

// WithLogger sets the logger for retry warnings and debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(c *client.Config) { c.Logger = logger }
}

// WithDebug logs every exchange at debug level with credentials redacted.
func WithDebug(enabled bool) Option {
	return func(c *client.Config) { c.Debug = enabled }
}

// WithMapper replaces the JSON body mapper.
func WithMapper(m Mapper) Option {
	return func(c *client.Config) { c.Mapper = m }
}

// WithTransport replaces the network transport, mostly useful in tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *client.Config) { c.Transport = rt }
}

// WithMaxConnections caps the pool; the least recently used connection is
// closed when a new origin would exceed it. Zero means unbounded.
func WithMaxConnections(n int) Option {
	return func(c *client.Config) { c.MaxConnections = n }
}

// WithRateLimit limits outbound requests to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *client.Config) {
		c.RateLimit = rps
		c.RateBurst = burst
	}
}

// WithRequestIDHeader stamps each request with the call's request ID under name.
func WithRequestIDHeader(name string) Option {
	return func(c *client.Config) { c.RequestIDHeader = name }
}

// WithRegisterer registers the client's Prometheus collectors with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *client.Config) { c.Registerer = reg }
}

// WithRetryBackoff overrides the delay before retry attempt n (0-based).
func WithRetryBackoff(backoff func(attempt int) time.Duration) Option {
	return func(c *client.Config) { c.RetryBackoff = backoff }
}

// WithBlockPrivateNetworks refuses loopback, private and link-local targets,
// including redirect hops and hostnames that resolve there.
func WithBlockPrivateNetworks(enabled bool) Option {
	return func(c *client.Config) { c.BlockPrivateNetworks = enabled }
}

// WithAudit sends one event per exchange, redirect hop and retry to logger.
// The caller owns logger and closes it after the Client is done.
func WithAudit(logger AuditLogger) Option {
	return func(c *client.Config) { c.Audit = logger }
}

// NewAuditFile opens a rotating JSON-lines audit log at path.
func NewAuditFile(path string) (AuditLogger, error) {
	return audit.NewJSONWriter(audit.JSONWriterConfig{Path: path})
}

// BasicAuth returns an Authorization value for HTTP basic authentication.
func BasicAuth(username, password string) string {
	return auth.BasicAuth(username, password)
}

// BearerAuth returns an Authorization value carrying a bearer token.
func BearerAuth(token string) string {
	return auth.BearerAuth(token)
}

// IsTransient reports whether err is a network failure WithRetry retries.
func IsTransient(err error) bool {
	return retry.IsTransient(err)
}

// NonRetryable marks err so WithRetry returns it without retrying.
func NonRetryable(err error) error {
	return retry.NonRetryable(err)
}
