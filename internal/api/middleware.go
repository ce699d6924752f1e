// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"crypto/subtle"
	"net/http"
)

// requireToken enforces the static API token read from the configured
// header. A missing header is 401 and a mismatch 403. With no token
// configured every request passes — development mode.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		configured := s.cfg.API.StaticToken
		if configured == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := s.cfg.API.TokenHeader
		if header == "" {
			header = "X-API-Token"
		}
		token := r.Header.Get(header)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication token missing"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(configured)) != 1 {
			s.logger.Warn("rejected request with invalid token", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid or expired token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleAuthVerify lets clients test their token without side effects.
func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "token valid"})
}
