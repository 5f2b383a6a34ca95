package httpclient

import (
	"net/http"
	"time"

	"github.com/nethippie/hippie/internal/sanitize"
	"go.uber.org/zap"
)

// debugTransport writes one line per request and one per response.
type debugTransport struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func (t *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	headers := make(map[string]string, len(req.Header))
	for k, v := range req.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	t.logger.Debug("HTTP request",
		zap.String("method", req.Method),
		zap.String("url", sanitize.URL(req.URL)),
		zap.Any("headers", sanitize.Headers(headers)),
		zap.Int64("contentLength", req.ContentLength))

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debug("HTTP request failed",
			zap.String("method", req.Method),
			zap.String("url", sanitize.URL(req.URL)),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", sanitize.Error(err)))
		return nil, err
	}

	t.logger.Debug("HTTP response",
		zap.String("method", req.Method),
		zap.String("url", sanitize.URL(req.URL)),
		zap.Int("status", resp.StatusCode),
		zap.Int64("contentLength", resp.ContentLength),
		zap.Duration("elapsed", time.Since(start)))

	return resp, nil
}
