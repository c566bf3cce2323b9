package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/BlockBoard/BB-Backend/internal/httputil"
	"golang.org/x/time/rate"
)

// RateLimit enforces a per-client request budget: limit events per window
// with the given burst. Clients are keyed by remote IP. Rejected requests
// get a 429 envelope with a Retry-After header.
func RateLimit(window time.Duration, max int) func(http.Handler) http.Handler {
	limiters := clientLimiters{
		limit: rate.Every(window / time.Duration(max)),
		burst: max,
		byIP:  make(map[string]*rate.Limiter),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.get(clientIP(r)).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				httputil.Write(w, http.StatusTooManyRequests, httputil.Response{
					Success: false,
					Message: "You are sending requests too quickly. Slow down.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type clientLimiters struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	byIP  map[string]*rate.Limiter
}

func (c *clientLimiters) get(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.byIP[ip]
	if !ok {
		lim = rate.NewLimiter(c.limit, c.burst)
		c.byIP[ip] = lim
	}
	return lim
}

func clientIP(r *http.Request) string {
	// Honor the proxy header set by the hosting platform.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
