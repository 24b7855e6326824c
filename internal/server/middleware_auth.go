package server

import (
	"net/http"
	"strings"

	"watchcord/internal/auth"
)

// requireToken guards the API with the admin token whose argon2id hash
// lives in settings. An empty stored hash leaves the API open, which is
// the bootstrap state for loopback-only deployments.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash, err := s.store.GetAPITokenHash()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal")
			return
		}
		if hash == "" {
			next.ServeHTTP(w, r)
			return
		}

		if token := bearerToken(r); token != "" {
			ok, err := auth.VerifyToken(token, hash)
			if err == nil && ok {
				next.ServeHTTP(w, r)
				return
			}
		}

		if !authFailLimiter.allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "too many failed attempts")
			return
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="watchcord"`)
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

// bearerToken pulls the token from the Authorization header, falling
// back to a token query parameter for websocket clients that cannot set
// headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
