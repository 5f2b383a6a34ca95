// Package client implements the pooled, redirect-following HTTP client.
package client

import (
	"context"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nethippie/hippie/internal/audit"
	"github.com/nethippie/hippie/internal/connection"
	"github.com/nethippie/hippie/internal/httpclient"
	"github.com/nethippie/hippie/internal/mapper"
	"github.com/nethippie/hippie/internal/metrics"
	"github.com/nethippie/hippie/internal/ratelimit"
	"github.com/nethippie/hippie/internal/request"
	"github.com/nethippie/hippie/internal/requestid"
	"github.com/nethippie/hippie/internal/response"
	"github.com/nethippie/hippie/internal/retry"
	"github.com/nethippie/hippie/internal/sanitize"
	"github.com/nethippie/hippie/internal/security"
	"github.com/nethippie/hippie/internal/uri"
)

// Version is reported in the default User-Agent.
const Version = "0.4.0"

// DefaultUserAgent is sent unless overridden.
const DefaultUserAgent = "hippie/" + Version

// Handler receives the request as built and the final response of a call.
type Handler func(*request.Request, *response.Response) error

// Config is read once by New. Changing it afterwards has no effect.
type Config struct {
	// DefaultHeaders are sent with every request. Nil means DefaultHeaders().
	DefaultHeaders map[string]string

	ReadTimeout time.Duration
	OpenTimeout time.Duration

	VerifyMode httpclient.VerifyMode
	RootCAs    *x509.CertPool

	// ClientCert and ClientKey are PEM data; mutual TLS needs both.
	ClientCert    []byte
	ClientKey     []byte
	KeyPassphrase string

	// FollowRedirects is the number of 3xx hops followed per call. 0 disables.
	FollowRedirects int

	Logger *zap.Logger
	Debug  bool

	// Mapper serializes request bodies. Nil means the JSON mapper.
	Mapper mapper.Mapper

	// Transport replaces the network transport of every Connection.
	Transport http.RoundTripper

	// MaxConnections caps the pool with LRU eviction. 0 means unbounded.
	MaxConnections int

	// RateLimit is requests per second across the client. 0 means unlimited.
	RateLimit float64
	RateBurst int

	// RequestIDHeader, when set, carries the call's request ID on every hop.
	RequestIDHeader string

	// Registerer receives the client's collectors. Nil keeps them private.
	Registerer prometheus.Registerer

	// BlockPrivateNetworks refuses targets on loopback, private and
	// link-local networks, including redirect hops and names resolving there.
	BlockPrivateNetworks bool

	// Audit receives one event per exchange, redirect hop and retry. Nil disables it.
	Audit audit.Logger

	// RetryBackoff overrides the WithRetry delay schedule.
	RetryBackoff func(attempt int) time.Duration
}

// DefaultHeaders returns a fresh copy of the JSON default headers.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
		"User-Agent":   DefaultUserAgent,
	}
}

// DefaultConfig returns a Config with every documented default filled in.
func DefaultConfig() Config {
	return Config{
		DefaultHeaders: DefaultHeaders(),
		ReadTimeout:    httpclient.DefaultReadTimeout,
		OpenTimeout:    httpclient.DefaultOpenTimeout,
		VerifyMode:     httpclient.VerifyPeer,
		Mapper:         mapper.Default(),
	}
}

// Client sends requests through a pool of per-origin Connections.
// It is safe for concurrent use.
type Client struct {
	cfg       Config
	logger    *zap.Logger
	builder   *request.Builder
	transport httpclient.Config
	pool      *pool
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultHeaders == nil {
		cfg.DefaultHeaders = DefaultHeaders()
	} else {
		cfg.DefaultHeaders = request.MergeHeaders(nil, cfg.DefaultHeaders)
	}
	if cfg.Mapper == nil {
		cfg.Mapper = mapper.Default()
	}
	if cfg.Audit == nil {
		cfg.Audit = &audit.NoopLogger{}
	}
	if cfg.FollowRedirects < 0 {
		cfg.FollowRedirects = 0
	}
	if cfg.MaxConnections < 0 {
		cfg.MaxConnections = 0
	}

	tlsCfg := &httpclient.TLSConfig{
		VerifyMode:    cfg.VerifyMode,
		ClientCert:    cfg.ClientCert,
		ClientKey:     cfg.ClientKey,
		KeyPassphrase: cfg.KeyPassphrase,
		RootCAs:       cfg.RootCAs,
	}

	switch {
	case tlsCfg.HasClientCertificate():
		if _, err := httpclient.LoadKeyPair(cfg.ClientCert, cfg.ClientKey, cfg.KeyPassphrase); err != nil {
			return nil, err
		}
	case len(cfg.ClientCert) > 0 || len(cfg.ClientKey) > 0:
		cfg.Logger.Warn("Client certificate and key must both be set; mutual TLS disabled",
			zap.Bool("hasCert", len(cfg.ClientCert) > 0),
			zap.Bool("hasKey", len(cfg.ClientKey) > 0))
	}

	m := metrics.New(cfg.Registerer)

	p, err := newPool(cfg.MaxConnections, m.SetConnections)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return &Client{
		cfg:     cfg,
		logger:  cfg.Logger,
		builder: &request.Builder{Defaults: cfg.DefaultHeaders, Mapper: cfg.Mapper},
		transport: httpclient.Config{
			ReadTimeout: cfg.ReadTimeout,
			OpenTimeout: cfg.OpenTimeout,
			TLS:         tlsCfg,
			Debug:       cfg.Debug,
			Logger:      cfg.Logger,
			Transport:   cfg.Transport,

			BlockPrivateNetworks: cfg.BlockPrivateNetworks,
		},
		pool:    p,
		limiter: ratelimit.New(cfg.RateLimit, cfg.RateBurst),
		metrics: m,
	}, nil
}

// Metrics returns the client's collectors.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// FollowRedirects returns the redirect limit applied by the verb methods.
func (c *Client) FollowRedirects() int {
	return c.cfg.FollowRedirects
}

// DefaultHeaders returns a copy of the headers sent with every request.
func (c *Client) DefaultHeaders() map[string]string {
	return request.MergeHeaders(nil, c.cfg.DefaultHeaders)
}

// PoolSize reports how many Connections are held.
func (c *Client) PoolSize() int {
	return c.pool.len()
}

// ConnectionFor returns the pooled Connection for target's origin, creating
// it on first use.
func (c *Client) ConnectionFor(target any) (*connection.Connection, error) {
	u, err := uri.Parse(target)
	if err != nil {
		return nil, err
	}
	return c.connection(u)
}

func (c *Client) connection(u *url.URL) (*connection.Connection, error) {
	return c.pool.get(uri.OriginOf(u), func(origin uri.Origin) (*connection.Connection, error) {
		c.logger.Debug("Opening connection", zap.String("origin", origin.String()))
		return connection.New(origin, &c.transport)
	})
}

// Close releases idle sockets of every pooled Connection and empties the
// pool. The Client stays usable; later calls open new Connections.
func (c *Client) Close() {
	c.pool.closeAll()
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, target any, headers map[string]string, body any, handlers ...Handler) (*response.Response, error) {
	return c.Do(ctx, http.MethodGet, target, headers, body, handlers...)
}

// Post issues a POST.
func (c *Client) Post(ctx context.Context, target any, headers map[string]string, body any, handlers ...Handler) (*response.Response, error) {
	return c.Do(ctx, http.MethodPost, target, headers, body, handlers...)
}

// Put issues a PUT.
func (c *Client) Put(ctx context.Context, target any, headers map[string]string, body any, handlers ...Handler) (*response.Response, error) {
	return c.Do(ctx, http.MethodPut, target, headers, body, handlers...)
}

// Patch issues a PATCH.
func (c *Client) Patch(ctx context.Context, target any, headers map[string]string, body any, handlers ...Handler) (*response.Response, error) {
	return c.Do(ctx, http.MethodPatch, target, headers, body, handlers...)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, target any, headers map[string]string, body any, handlers ...Handler) (*response.Response, error) {
	return c.Do(ctx, http.MethodDelete, target, headers, body, handlers...)
}

// Do builds a request and executes it with the configured redirect limit.
// Handlers run in order with the built request and the final response; the
// first handler error is returned together with the response.
func (c *Client) Do(ctx context.Context, method string, target any, headers map[string]string, body any, handlers ...Handler) (*response.Response, error) {
	req, err := c.builder.Build(method, target, headers, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.Execute(ctx, req, c.cfg.FollowRedirects)
	if err != nil {
		return nil, err
	}

	for _, h := range handlers {
		if h == nil {
			continue
		}
		if err := h(req, resp); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// Execute runs req on its origin's Connection. While the response is a
// redirect with a Location and redirectLimit is positive, the Location is
// resolved against the current Connection and fetched with a fresh GET
// carrying only the default headers. When the limit runs out the redirect
// response itself is returned.
func (c *Client) Execute(ctx context.Context, req *request.Request, redirectLimit int) (*response.Response, error) {
	ctx, logger := c.scope(ctx)

	for {
		if err := c.checkTarget(ctx, req, logger); err != nil {
			return nil, err
		}

		conn, err := c.connection(req.URL)
		if err != nil {
			return nil, err
		}

		resp, err := c.run(ctx, conn, req, logger)
		if err != nil {
			return nil, err
		}

		location := resp.Location()
		if !resp.IsRedirect() || redirectLimit <= 0 || location == "" {
			return resp, nil
		}

		next, err := c.builder.Build(http.MethodGet, conn.BuildURL(location), nil, nil)
		if err != nil {
			return nil, err
		}

		logger.Debug("Following redirect",
			zap.Int("status", resp.StatusCode),
			zap.String("from", sanitize.URL(req.URL)),
			zap.String("to", sanitize.URL(next.URL)),
			zap.Int("remaining", redirectLimit-1))
		c.metrics.RecordRedirect()
		c.cfg.Audit.Log(audit.NewRedirectFollowedEvent(requestid.FromContext(ctx),
			sanitize.URL(req.URL), sanitize.URL(next.URL), resp.StatusCode))

		req = next
		redirectLimit--
	}
}

// WithRetry runs op until it succeeds, fails with a non-transient error, or
// maxRetries retries are spent. Errors are returned unchanged.
func (c *Client) WithRetry(ctx context.Context, maxRetries int, op func(context.Context) (*response.Response, error)) (*response.Response, error) {
	ctx, logger := c.scope(ctx)

	return retry.Do(ctx, retry.Config{
		MaxRetries: maxRetries,
		Backoff:    c.cfg.RetryBackoff,
		Logger:     logger,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			kind := retry.Classify(err).String()
			c.metrics.RecordRetry(kind)
			c.cfg.Audit.Log(audit.NewRetryScheduledEvent(requestid.FromContext(ctx),
				attempt+1, delay, kind, sanitize.Error(err)))
		},
	}, func() (*response.Response, error) {
		return op(ctx)
	})
}

// run performs one exchange: rate limiting, request-ID stamping and metrics.
func (c *Client) run(ctx context.Context, conn *connection.Connection, req *request.Request, logger *zap.Logger) (*response.Response, error) {
	if c.limiter.Enabled() {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		c.metrics.ObserveRateLimitWait(time.Since(waitStart))
	}

	if h := c.cfg.RequestIDHeader; h != "" {
		if _, set := req.Header[h]; !set {
			stamped := *req
			stamped.Header = request.MergeHeaders(req.Header, map[string]string{h: requestid.FromContext(ctx)})
			req = &stamped
		}
	}

	start := time.Now()
	resp, err := conn.Run(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		kind := retry.Classify(err)
		c.metrics.RecordError(req.Method, kind.String(), elapsed)
		c.cfg.Audit.Log(audit.NewRequestFailedEvent(requestid.FromContext(ctx), req.Method,
			sanitize.URL(req.URL), kind.String(), sanitize.Error(err), elapsed))
		logger.Debug("Request failed",
			zap.String("method", req.Method),
			zap.String("url", sanitize.URL(req.URL)),
			zap.String("kind", kind.String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	c.metrics.RecordRequest(req.Method, resp.StatusCode, elapsed)
	c.cfg.Audit.Log(audit.NewRequestCompleteEvent(requestid.FromContext(ctx), req.Method,
		sanitize.URL(req.URL), resp.StatusCode, len(resp.Body), elapsed))
	return resp, nil
}

// checkTarget applies the private network guard to one hop.
func (c *Client) checkTarget(ctx context.Context, req *request.Request, logger *zap.Logger) error {
	if !c.cfg.BlockPrivateNetworks {
		return nil
	}
	err := security.CheckURL(req.URL)
	if err == nil {
		return nil
	}
	logger.Warn("Refusing request to private network host",
		zap.String("method", req.Method),
		zap.String("url", sanitize.URL(req.URL)))
	c.cfg.Audit.Log(audit.NewHostBlockedEvent(requestid.FromContext(ctx), req.Method, sanitize.URL(req.URL)))
	return err
}

// scope makes sure ctx carries a request ID and returns a logger tagged with it.
func (c *Client) scope(ctx context.Context) (context.Context, *zap.Logger) {
	ctx = requestid.Ensure(ctx, c.logger)
	if logger := requestid.LoggerFromContext(ctx, nil); logger != nil {
		return ctx, logger
	}

	// ID supplied without a logger
	logger := c.logger.With(zap.String("requestID", requestid.FromContext(ctx)))
	return requestid.WithLogger(ctx, logger), logger
}
