package web

import (
	"errors"
	"net"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/ratelimit"
)

// ipLimit counts the request against the client ip and against the client ip on this route.
func (e1 *external) ipLimit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checks := make([]ratelimit.Check, 0, 2)
			id := clientID(r, e1.services.TrustedProxies)
			if e1.services.IpLimit != nil {
				checks = append(checks, ratelimit.Check{Limiter: e1.services.IpLimit, Entity: id})
			}
			if e1.services.IpRouteLimit != nil {
				checks = append(checks, ratelimit.Check{Limiter: e1.services.IpRouteLimit, Entity: id + ":" + route})
			}
			if len(checks) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			result, err := ratelimit.Compose(checks...).CheckLimit(r.Context())
			if err != nil {
				log.WithError(err).Error("ip rate limit")
				writeError(w, e1.services.ErrorMessage, http.StatusInternalServerError, err)
				return
			}
			if !result.Allowed {
				writeError(w, e1.services.ErrorMessage, http.StatusTooManyRequests, errors.New(http.StatusText(http.StatusTooManyRequests)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientID keys on the connection address. Forwarding headers are read only when that
// address is a trusted proxy; then the rightmost untrusted X-Forwarded-For hop is the client.
func clientID(r *http.Request, trusted []*net.IPNet) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remote = host
	}
	if !isTrusted(net.ParseIP(remote), trusted) {
		return remote
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		client := ""
		for i := len(hops) - 1; 0 <= i; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				break
			}
			client = ip.String()
			if !isTrusted(ip, trusted) {
				break
			}
		}
		if 0 < len(client) {
			return client
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return remote
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
