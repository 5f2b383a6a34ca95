package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

// deadlineDialer hands out connections whose read deadline is pushed forward
// on every read and write while an exchange is in flight, so ReadTimeout
// bounds each socket operation rather than the whole exchange. Between
// exchanges the deadline is cleared and IdleConnTimeout governs the socket.
type deadlineDialer struct {
	dialer      *net.Dialer
	readTimeout time.Duration
}

func (d *deadlineDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return &deadlineConn{Conn: conn, timeout: d.readTimeout}, nil
}

type deadlineConn struct {
	net.Conn
	timeout time.Duration

	mu sync.Mutex
	// armed is set by a write and cleared once the response has been consumed.
	armed bool
	// writes changes on every write, so a late idle call cannot disarm the
	// next exchange on the same socket.
	writes uint64
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	var err error
	if c.armed {
		err = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	deadline := time.Now().Add(c.timeout)

	c.mu.Lock()
	c.armed = true
	c.writes++
	// also reaches the transport's pending background read
	err := c.Conn.SetReadDeadline(deadline)
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if err := c.Conn.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

func (c *deadlineConn) writeCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// idle clears the read deadline unless the socket was written to after
// writes was observed.
func (c *deadlineConn) idle(writes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writes != writes {
		return
	}
	c.armed = false
	_ = c.Conn.SetReadDeadline(time.Time{})
}

func asDeadlineConn(conn net.Conn) *deadlineConn {
	if tc, ok := conn.(*tls.Conn); ok {
		conn = tc.NetConn()
	}
	dc, _ := conn.(*deadlineConn)
	return dc
}

// idleTransport notes which socket carried each exchange and disarms its
// read deadline when the response body is closed.
type idleTransport struct {
	next *http.Transport
}

func (t *idleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var conn *deadlineConn
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			conn = asDeadlineConn(info.Conn)
		},
	}

	resp, err := t.next.RoundTrip(req.WithContext(httptrace.WithClientTrace(req.Context(), trace)))
	if err != nil || conn == nil {
		return resp, err
	}

	resp.Body = &idleBody{ReadCloser: resp.Body, conn: conn, writes: conn.writeCount()}
	return resp, nil
}

type idleBody struct {
	io.ReadCloser
	conn   *deadlineConn
	writes uint64
	once   sync.Once
}

func (b *idleBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() { b.conn.idle(b.writes) })
	return err
}
