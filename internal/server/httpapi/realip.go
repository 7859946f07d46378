package httpapi

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// trustedRealIP replaces RemoteAddr with the client address reported by a
// trusted reverse proxy. Headers from any other peer are ignored.
//
// X-Forwarded-For is walked from the right, skipping hops that are trusted
// proxies themselves; the first untrusted hop is the client. X-Real-IP is
// used when X-Forwarded-For is absent.
func trustedRealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) > 0 {
				if peer, ok := parseIP(clientIP(r)); ok && isTrusted(trusted, peer) {
					if ip, ok := forwardedClient(r, trusted); ok {
						r.RemoteAddr = net.JoinHostPort(ip.String(), "0")
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(r *http.Request, trusted []netip.Prefix) (netip.Addr, bool) {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hops = append(hops, h)
			}
		}
	}
	for i := len(hops) - 1; i >= 0; i-- {
		ip, ok := parseIP(hops[i])
		if !ok {
			// a malformed hop ends the chain we can vouch for
			return netip.Addr{}, false
		}
		if !isTrusted(trusted, ip) {
			return ip, true
		}
	}
	if len(hops) > 0 {
		return netip.Addr{}, false
	}
	return parseIP(r.Header.Get("X-Real-IP"))
}

func parseIP(s string) (netip.Addr, bool) {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func isTrusted(trusted []netip.Prefix, ip netip.Addr) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
