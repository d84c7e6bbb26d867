package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	h "bawabamail/internal/delivery/http/helpers"
	"bawabamail/internal/domain"
)

// RateLimit rejects requests with 429 once the client IP exceeds the limiter's quota.
// Limiter errors let the request through.
func RateLimit(limiter domain.RateLimiter, trusted []netip.Prefix, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), ClientIP(r, trusted))
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				h.WriteJSONError(w, http.StatusTooManyRequests, h.ErrCodeRateLimited, domain.ErrRateLimited.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the address of the client behind any trusted proxies. Forwarding headers
// are read only when the direct peer is in trusted. X-Forwarded-For is walked from the right
// and the first hop outside trusted wins.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	remote := remoteHost(r.RemoteAddr)
	peer, err := netip.ParseAddr(remote)
	if err != nil || !isTrusted(peer, trusted) {
		return remote
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			client = addr.String()
			if !isTrusted(addr, trusted) {
				break
			}
		}
		if client != "" {
			return client
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return remote
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
