package v1

import (
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// proxyIPHeaders are consulted in order after X-Forwarded-For. Each carries a
// single client address.
var proxyIPHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

// getClientIP resolves the visitor's public address from proxy headers,
// falling back to the socket address. Private and loopback addresses are
// skipped so a reverse proxy in front of the server never becomes the
// visitor.
func getClientIP(c *fiber.Ctx) string {
	if ip := pickPublicIP(strings.Split(c.Get("X-Forwarded-For"), ",")); ip != "" {
		return ip
	}

	for _, header := range proxyIPHeaders {
		if value := c.Get(header); value != "" {
			if ip := pickPublicIP([]string{value}); ip != "" {
				return ip
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if ip := pickPublicIP(forwardedForValues(forwarded)); ip != "" {
			return ip
		}
	}

	if ip := pickPublicIP([]string{c.Context().RemoteAddr().String(), c.IP()}); ip != "" {
		return ip
	}

	// Everything resolved to private space; typical for local development
	// behind no proxy.
	slog.Default().Info("Fallback to loopback IP for request",
		slog.String("path", c.Path()))
	return "127.0.0.1"
}

// pickPublicIP returns the first public IPv4 among the candidates, or the
// first public IPv6 when no IPv4 is present.
func pickPublicIP(values []string) string {
	var v6Fallback string

	for _, raw := range values {
		addr, ok := parseAddr(raw)
		if !ok || !isPublicAddr(addr) {
			continue
		}

		if addr.Is4() {
			return addr.String()
		}
		if v6Fallback == "" {
			v6Fallback = addr.String()
		}
	}

	return v6Fallback
}

// parseAddr turns one header value into an address. Depending on the proxy,
// values arrive quoted, bracketed, with a port, or with a zone identifier.
func parseAddr(raw string) (netip.Addr, bool) {
	clean := strings.Trim(strings.TrimSpace(raw), `"`)
	if clean == "" {
		return netip.Addr{}, false
	}

	// Zone identifiers (fe80::1%eth0) never survive a proxy hop anyway.
	if percent := strings.IndexByte(clean, '%'); percent != -1 {
		clean = clean[:percent]
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		return addrPort.Addr().Unmap(), true
	}

	bare := strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(bare); err == nil {
		return addr.Unmap(), true
	}

	if host, _, err := net.SplitHostPort(clean); err == nil {
		return parseAddr(host)
	}

	return netip.Addr{}, false
}

// isPublicAddr reports whether addr is a routable visitor address: not
// loopback, not RFC 1918/4193 private space, not link-local, not
// unspecified.
func isPublicAddr(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsUnspecified()
}

// forwardedForValues extracts the for= entries from an RFC 7239 Forwarded
// header, preserving their order.
func forwardedForValues(header string) []string {
	var values []string

	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
				values = append(values, part[4:])
			}
		}
	}

	return values
}
