// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/netvigil/netvigil/internal/store"
)

// handleListOrphans lists incidents whose device_id is no longer in the
// inventory.
func (s *Server) handleListOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := s.store.ListOrphanIncidents()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if orphans == nil {
		orphans = []store.Incident{}
	}
	deviceIDs, err := s.store.DeviceIDs()
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orphan_count":       len(orphans),
		"registered_devices": len(deviceIDs),
		"orphans":            orphans,
	})
}

// handlePurgeOrphans removes orphan incidents. The caller must present
// the configured admin token and an explicit confirm=yes.
func (s *Server) handlePurgeOrphans(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}

	if configured := s.cfg.API.StaticToken; configured != "" {
		provided := strings.TrimSpace(r.FormValue("admin_token"))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
			s.logger.Warn("orphan purge blocked: invalid admin token", "remote", r.RemoteAddr)
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid admin token"})
			return
		}
	}

	if r.FormValue("confirm") != "yes" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "confirmation required: pass confirm=yes"})
		return
	}

	deleted, err := s.store.PurgeOrphanIncidents()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("orphan incidents purged", "deleted", deleted, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "status": "ok"})
}
