package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownOrigin is used when no address can be determined for a request
const UnknownOrigin = "unknown"

// IPConfig holds configuration for origin extraction
type IPConfig struct {
	TrustForwardedFor bool     // Honor the first X-Forwarded-For entry
	TrustedProxies    []string // Optional CIDR ranges; when set, only these peers may supply X-Forwarded-For
}

// ExtractOrigin returns the normalized network origin of the request.
//
// Flow:
//  1. If forwarded-for is trusted (and the peer is a trusted proxy when a list
//     is configured), use the first X-Forwarded-For entry
//  2. Fall back to RemoteAddr
//
// A nil config only trusts RemoteAddr.
func ExtractOrigin(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && config.TrustForwardedFor {
		if len(config.TrustedProxies) == 0 || isTrustedProxy(remoteIP, config.TrustedProxies) {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first := strings.TrimSpace(strings.Split(xff, ",")[0])
				if first != "" {
					return NormalizeOrigin(first)
				}
			}
		}
	}

	return NormalizeOrigin(remoteIP)
}

// NormalizeOrigin maps equivalent spellings of an address to a single key so
// that failure counts cannot be fragmented across them. IPv6 loopback becomes
// 127.0.0.1 and IPv4-mapped IPv6 addresses lose their ::ffff: prefix.
// A port or brackets around an address are dropped. Values that do not parse
// as an address are kept verbatim.
func NormalizeOrigin(origin string) string {
	origin = stripPort(strings.TrimSpace(origin))
	if origin == "" {
		return UnknownOrigin
	}

	if origin == "::1" {
		return "127.0.0.1"
	}
	if len(origin) > 7 && strings.EqualFold(origin[:7], "::ffff:") {
		origin = origin[7:]
	}

	addr, err := netip.ParseAddr(origin)
	if err != nil {
		return origin
	}
	addr = addr.Unmap()
	if addr == netip.IPv6Loopback() {
		return "127.0.0.1"
	}
	return addr.String()
}

// stripPort turns "9.9.9.9:1234", "[::1]:80" and "[2001:db8::1]" into the bare
// address. Anything whose host part is not an address is returned unchanged.
func stripPort(origin string) string {
	host := origin
	if h, _, err := net.SplitHostPort(origin); err == nil {
		host = h
	} else if strings.HasPrefix(origin, "[") && strings.HasSuffix(origin, "]") {
		host = origin[1 : len(origin)-1]
	}

	if _, err := netip.ParseAddr(host); err != nil {
		return origin
	}
	return host
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		// RemoteAddr may include port: "ip:port"
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return UnknownOrigin
}

// isTrustedProxy checks if an IP address is within any of the trusted proxy CIDR ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	// IPv6 loopback peers match a 127.0.0.1 entry
	if clientIP.IsLoopback() && ip != "127.0.0.1" {
		return isTrustedProxy("127.0.0.1", trustedProxies)
	}

	return false
}
