// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/store"
)

const incidentPageSize = 25

// handleListIncidents serves the filtered, paginated incident list.
func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if raw := q.Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}

	filter := store.IncidentFilter{
		Customer:    q.Get("customer"),
		DeviceID:    q.Get("device_id"),
		Vendor:      q.Get("vendor"),
		Severity:    q.Get("severity"),
		MinSeverity: q.Get("min_severity"),
		Status:      q.Get("status"),
		StartDate:   q.Get("start_date"),
		EndDate:     q.Get("end_date"),
		Sort:        q.Get("sort"),
		Page:        page,
		PageSize:    incidentPageSize,
	}

	incidents, total, err := s.store.ListIncidents(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if incidents == nil {
		incidents = []store.Incident{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"total":     total,
		"page":      page,
		"page_size": incidentPageSize,
		"has_next":  page*incidentPageSize < total,
		"has_prev":  page > 1,
		"sort":      filter.Sort,
	})
}

// handleGetIncident serves one incident with its payload decoded.
func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, errors.New(errors.KindValidation, "invalid incident id"))
		return
	}

	incident, err := s.store.GetIncident(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var payload any
	if err := json.Unmarshal(incident.Payload, &payload); err != nil {
		payload = string(incident.Payload)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          incident.ID,
		"timestamp":   incident.Timestamp,
		"customer_id": incident.CustomerID,
		"device_id":   incident.DeviceID,
		"severity":    incident.Severity,
		"category":    incident.Category,
		"description": incident.Description,
		"status":      incident.Status,
		"payload":     payload,
	})
}
