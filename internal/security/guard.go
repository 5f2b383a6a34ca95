// Package security keeps outbound requests away from loopback, private and
// link-local networks when the caller asks for it.
package security

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
)

// ErrBlockedHost matches every BlockedHostError.
var ErrBlockedHost = errors.New("blocked host")

// BlockedHostError reports a target on a private or local network.
type BlockedHostError struct {
	Host string
}

func (e *BlockedHostError) Error() string {
	return "host " + e.Host + " is on a private or local network"
}

func (e *BlockedHostError) Is(target error) bool {
	return target == ErrBlockedHost
}

// blockedHostnamePatterns are names that resolve to local or metadata services.
// A trailing "." marks a prefix; anything else matches exactly or as a suffix.
var blockedHostnamePatterns = []string{
	"localhost",
	"metadata.", // metadata.google.internal and friends
}

// CheckURL returns a *BlockedHostError when u names a blocked host. Hostnames
// that only resolve to private addresses are caught later by DialControl.
func CheckURL(u *url.URL) error {
	if u == nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	if host != "" && IsBlockedHostname(host) {
		return &BlockedHostError{Host: host}
	}
	return nil
}

// IsBlockedIP reports loopback, private, link-local and unspecified addresses.
func IsBlockedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// IsBlockedHostname checks a host without port, accepting IP literals in
// dotted, hex, octal and integer forms.
func IsBlockedHostname(host string) bool {
	lower := strings.ToLower(host)

	if ip := parseIPPermissive(lower); ip != nil {
		return IsBlockedIP(ip)
	}

	for _, pattern := range blockedHostnamePatterns {
		if strings.HasSuffix(pattern, ".") {
			if strings.HasPrefix(lower, pattern) {
				return true
			}
			continue
		}
		if lower == pattern || strings.HasSuffix(lower, "."+pattern) {
			return true
		}
	}
	return false
}

// DialControl is a net.Dialer Control hook that refuses sockets to blocked
// addresses after DNS resolution, so a public name pointing at 10.0.0.1 is
// stopped too.
func DialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	if IsBlockedIP(net.ParseIP(host)) {
		return &BlockedHostError{Host: host}
	}
	return nil
}

// parseIPPermissive parses IP literals including encodings net.ParseIP
// rejects but system resolvers accept:
//   - Hex: 0x7f000001
//   - Octal: 0177.0.0.01
//   - Decimal integer: 2130706433
//   - Mixed dotted: 0x7f.0.0.1
func parseIPPermissive(host string) net.IP {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}
	if strings.Contains(host, ":") {
		return nil
	}

	if !strings.Contains(host, ".") {
		num, ok := parseUint(host, 32)
		if !ok {
			return nil
		}
		return net.IPv4(byte(num>>24), byte(num>>16), byte(num>>8), byte(num))
	}

	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return nil
	}
	var octets [4]byte
	for i, part := range parts {
		v, ok := parseUint(part, 8)
		if !ok {
			return nil
		}
		octets[i] = byte(v)
	}
	return net.IPv4(octets[0], octets[1], octets[2], octets[3])
}

// parseUint reads a decimal, 0x-hex or 0-octal number of at most bits bits.
func parseUint(s string, bits int) (uint64, bool) {
	base := 10
	switch {
	case s == "":
		return 0, false
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	case strings.HasPrefix(s, "0") && len(s) > 1:
		s, base = s[1:], 8
	}
	v, err := strconv.ParseUint(s, base, bits)
	return v, err == nil
}
