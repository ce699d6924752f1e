// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/remediation"
)

func incidentIDFrom(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errors.New(errors.KindValidation, "invalid incident id")
	}
	return id, nil
}

// ensureIncident verifies the incident exists before touching its
// remediation pipeline.
func (s *Server) ensureIncident(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := incidentIDFrom(r)
	if err != nil {
		s.writeError(w, err)
		return 0, false
	}
	if _, err := s.store.GetIncident(id); err != nil {
		s.writeError(w, err)
		return 0, false
	}
	return id, true
}

// handleRemediationSuggest returns a remediation proposal for an
// incident.
func (s *Server) handleRemediationSuggest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ensureIncident(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, remediation.Suggest(id))
}

// handleRemediationApprove records approval of a remediation plan.
func (s *Server) handleRemediationApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ensureIncident(w, r)
	if !ok {
		return
	}

	var body struct {
		ApprovedBy string `json:"approved_by"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	if body.ApprovedBy == "" {
		body.ApprovedBy = "system"
	}

	approval, err := remediation.Approve(id, body.ApprovedBy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approval)
}

// handleRemediationExecute runs (or dry-runs) an approved remediation.
func (s *Server) handleRemediationExecute(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ensureIncident(w, r)
	if !ok {
		return
	}

	body := struct {
		DryRun *bool `json:"dry_run"`
	}{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	dryRun := true
	if body.DryRun != nil {
		dryRun = *body.DryRun
	}

	writeJSON(w, http.StatusAccepted, remediation.Execute(id, dryRun))
}

// handleRemediationStatus reports the pipeline state.
func (s *Server) handleRemediationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ensureIncident(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, remediation.Status(id))
}
