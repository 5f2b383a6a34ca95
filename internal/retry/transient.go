package retry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"strings"
	"syscall"
)

// ErrProtocol marks a response that violated HTTP framing.
var ErrProtocol = errors.New("protocol error")

// Kind names a class of transport failure.
type Kind int

const (
	// KindPermanent covers every error outside the transient set.
	KindPermanent Kind = iota
	KindEOF
	KindConnectionRefused
	KindConnectionReset
	KindHostUnreachable
	KindInvalidArgument
	KindOpenTimeout
	KindReadTimeout
	KindTimeout
	KindProtocol
	KindTLS
	KindDNS
)

var kindNames = [...]string{
	KindPermanent:         "permanent",
	KindEOF:               "eof",
	KindConnectionRefused: "connection_refused",
	KindConnectionReset:   "connection_reset",
	KindHostUnreachable:   "host_unreachable",
	KindInvalidArgument:   "invalid_argument",
	KindOpenTimeout:       "open_timeout",
	KindReadTimeout:       "read_timeout",
	KindTimeout:           "timeout",
	KindProtocol:          "protocol",
	KindTLS:               "tls",
	KindDNS:               "dns",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Transient reports whether k is retryable.
func (k Kind) Transient() bool {
	return k != KindPermanent && k >= 0 && int(k) < len(kindNames)
}

// IsTransient reports whether err belongs to the retryable set.
func IsTransient(err error) bool {
	return Classify(err).Transient()
}

// Classify maps err onto a Kind. Cancellation and anything unrecognised
// are KindPermanent.
func Classify(err error) Kind {
	if err == nil || errors.Is(err, context.Canceled) {
		return KindPermanent
	}

	var nonRetryable *NonRetryableError
	if errors.As(err, &nonRetryable) {
		return KindPermanent
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}

	if isTLS(err) {
		return KindTLS
	}

	if isProtocol(err) {
		return KindProtocol
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return KindConnectionReset
	case errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return KindHostUnreachable
	case errors.Is(err, syscall.EINVAL):
		return KindInvalidArgument
	}

	if kind, ok := classifyTimeout(err); ok {
		return kind
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), "server closed idle connection") {
		return KindEOF
	}

	return KindPermanent
}

func classifyTimeout(err error) (Kind, bool) {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Timeout() {
		switch opErr.Op {
		case "dial":
			return KindOpenTimeout, true
		case "read":
			return KindReadTimeout, true
		}
		return KindTimeout, true
	}

	if strings.Contains(err.Error(), "TLS handshake timeout") {
		return KindOpenTimeout, true
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}

	return KindPermanent, false
}

func isTLS(err error) bool {
	var (
		recordErr    tls.RecordHeaderError
		verifyErr    *tls.CertificateVerificationError
		alertErr     tls.AlertError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)

	switch {
	case errors.As(err, &recordErr),
		errors.As(err, &verifyErr),
		errors.As(err, &alertErr),
		errors.As(err, &authorityErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return true
	}

	return strings.Contains(err.Error(), "tls: ")
}

func isProtocol(err error) bool {
	if errors.Is(err, ErrProtocol) {
		return true
	}

	var protoErr textproto.ProtocolError
	if errors.As(err, &protoErr) {
		return true
	}

	return strings.Contains(err.Error(), "malformed HTTP")
}
