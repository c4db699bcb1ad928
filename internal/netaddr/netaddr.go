// Package netaddr validates and classifies IP address literals found in logs.
package netaddr

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ErrInvalidAddress is returned for text that is not an IP literal.
var ErrInvalidAddress = errors.New("invalid ip address")

// Parse parses an IP literal, accepting an optional port ("1.2.3.4:5000",
// "[::1]:5000") and an IPv6 zone. The zone is dropped so the same host always
// yields the same canonical text.
func Parse(text string) (netip.Addr, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().WithZone("").Unmap(), nil
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.WithZone("").Unmap(), nil
	}
	// Bare IPv6 in brackets without a port.
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		if addr, err := netip.ParseAddr(s[1 : len(s)-1]); err == nil {
			return addr.WithZone("").Unmap(), nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, text)
}

// Canonical returns the canonical text of an IP literal.
func Canonical(text string) (string, error) {
	addr, err := Parse(text)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// IsPrivate reports whether addr is not publicly routable: RFC 1918 and
// RFC 4193 ranges, loopback, link-local and the unspecified address.
func IsPrivate(addr netip.Addr) bool {
	return addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified()
}
