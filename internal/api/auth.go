package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"unispace/internal/config"

	"golang.org/x/time/rate"
)

// HTTPAuth checks the API key header against the configured clients and
// rate-limits each client independently.
type HTTPAuth struct {
	enabled   bool
	header    string
	clients   map[string]config.APIClientKey
	rps       float64
	burst     int
	limiters  sync.Map // key -> *rate.Limiter
	anonymous *rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	auth := &HTTPAuth{
		enabled: cfg.Auth.Enabled,
		header:  cfg.Auth.HeaderAPIKey,
		clients: make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys)),
		rps:     cfg.RateLimit.RPS,
		burst:   cfg.RateLimit.Burst,
	}
	if auth.header == "" {
		auth.header = "x-api-key"
	}
	if auth.rps <= 0 {
		auth.rps = 10
	}
	if auth.burst <= 0 {
		auth.burst = 20
	}
	for _, key := range cfg.Auth.APIKeys {
		auth.clients[key.Key] = key
	}
	auth.anonymous = rate.NewLimiter(rate.Limit(auth.rps), auth.burst)
	return auth
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if !a.enabled {
			if !a.anonymous.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		client, ok := a.lookup(r.Header.Get(a.header))
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		if !a.limiter(client.Key).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if !hasPermission(client.Permissions, requiredPermission(r)) {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) lookup(presented string) (config.APIClientKey, bool) {
	if presented == "" {
		return config.APIClientKey{}, false
	}
	for key, client := range a.clients {
		if subtle.ConstantTimeCompare([]byte(key), []byte(presented)) == 1 {
			return client, true
		}
	}
	return config.APIClientKey{}, false
}

func (a *HTTPAuth) limiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(a.rps), a.burst)
	actual, _ := a.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}

// requiredPermission maps a request to the coarse permission it needs.
// Reads need "read", state changes need "write", administrative
// operations need "admin".
func requiredPermission(r *http.Request) string {
	if r.Method == http.MethodGet {
		return "read"
	}
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/approve"),
		strings.HasSuffix(path, "/reject"),
		strings.HasSuffix(path, "/status"),
		strings.HasSuffix(path, "/sweep"),
		path == "/api/v1/facilities":
		return "admin"
	default:
		return "write"
	}
}

func hasPermission(granted []string, required string) bool {
	for _, p := range granted {
		if p == required || p == "*" {
			return true
		}
		if p == "admin" && required == "write" {
			return true
		}
	}
	return false
}
