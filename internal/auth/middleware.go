// Package auth guards the HTTP endpoints of the server.
package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sha1n/iconclass-mcp/internal/config"
)

// DefaultExcludedPaths bypass authentication: liveness probes and metric scrapes.
var DefaultExcludedPaths = []string{"/health", "/metrics"}

// Middleware wraps an http.Handler with authentication
type Middleware func(http.Handler) http.Handler

// NewMiddleware creates an authentication middleware for settings. Requests
// to excluded paths are never challenged; DefaultExcludedPaths applies when
// none are given.
func NewMiddleware(settings config.AuthSettings, excluded ...string) (Middleware, error) {
	if len(excluded) == 0 {
		excluded = DefaultExcludedPaths
	}

	var check func(*http.Request) bool
	var challenge string
	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler { return next }, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		check = basicAuthCheck(settings.Basic)
		challenge = `Basic realm="iconclass-mcp"`
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		check = apiKeyCheck(settings.APIKeys)
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}

	skip := make(map[string]bool, len(excluded))
	for _, p := range excluded {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] || check(r) {
				next.ServeHTTP(w, r)
				return
			}
			slog.DebugContext(r.Context(), "Rejected unauthenticated request",
				"path", r.URL.Path, "remote", r.RemoteAddr, "auth_type", settings.Type)
			if challenge != "" {
				w.Header().Set("WWW-Authenticate", challenge)
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}, nil
}

func basicAuthCheck(settings config.BasicAuthSettings) func(*http.Request) bool {
	return func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(settings.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(settings.Password)) == 1
		return ok && userMatch && passMatch
	}
}

// apiKeyCheck accepts a key from the X-API-Key header or a bearer token.
func apiKeyCheck(apiKeys []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		key := requestAPIKey(r)
		if key == "" {
			return false
		}
		valid := false
		for _, k := range apiKeys {
			// no early exit, every key is compared
			if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 {
				valid = true
			}
		}
		return valid
	}
}

func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
