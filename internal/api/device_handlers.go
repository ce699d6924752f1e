// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/netvigil/netvigil/internal/discovery"
	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/store"
	"github.com/netvigil/netvigil/internal/vault"
)

// handleListDevices returns the inventory enriched with status.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")
	vendor := r.URL.Query().Get("vendor")

	views, err := s.devices.List(r.Context(), customer, vendor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "total": len(views)})
}

// handleGetDevice returns one device's consolidated state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	view, err := s.devices.Get(r.Context(), deviceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleDiscover runs an nmap sweep over a customer network.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindValidation, "invalid form"))
		return
	}
	network := strings.TrimSpace(r.FormValue("network"))
	if network == "" {
		s.writeError(w, errors.New(errors.KindValidation,
			"network range required in CIDR form, e.g. 192.168.88.0/24"))
		return
	}

	opts := discovery.Options{
		PortsFast:      formBool(r, "ports_fast"),
		PortsExtended:  formBool(r, "ports_extended"),
		OSDetection:    formBool(r, "os_detection"),
		ServiceVersion: formBool(r, "service_version"),
	}

	if s.metrics != nil {
		s.metrics.DiscoveryRequests.Inc()
	}
	result, err := discovery.Run(r.Context(), network, opts, 2*time.Minute)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleOnboard creates the inventory row and the vault record as one
// unit: a credential failure rolls the inventory row back.
func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindValidation, "invalid form"))
		return
	}

	customer := strings.TrimSpace(r.FormValue("customer"))
	device := strings.TrimSpace(r.FormValue("device"))
	vendor := strings.TrimSpace(r.FormValue("vendor"))
	host := strings.TrimSpace(r.FormValue("host"))
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	token := strings.TrimSpace(r.FormValue("token"))
	snmpCommunity := strings.TrimSpace(r.FormValue("snmp_community"))

	port := 22
	if raw := strings.TrimSpace(r.FormValue("port")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, errors.Errorf(errors.KindValidation, "invalid port %q", raw))
			return
		}
		port = parsed
	}

	if customer == "" || device == "" || username == "" || password == "" {
		s.writeError(w, errors.New(errors.KindValidation,
			"customer, device, username and password are required"))
		return
	}

	dev := store.Device{
		CustomerID: customer,
		DeviceID:   device,
		Vendor:     vendor,
		Host:       host,
		Port:       port,
	}
	if err := s.store.CreateDevice(dev); err != nil {
		s.writeError(w, err)
		return
	}

	cred := vault.Credential{
		Host:          host,
		Username:      username,
		Password:      password,
		Port:          port,
		Token:         token,
		SNMPCommunity: snmpCommunity,
	}
	if err := s.vault.Save(customer, device, cred); err != nil {
		// Roll the inventory row back so the two stores stay consistent.
		if delErr := s.store.DeleteDevice(customer, device); delErr != nil {
			s.logger.Error("onboarding rollback failed", "customer", customer, "device", device, "error", delErr)
		}
		s.writeError(w, err)
		return
	}

	baselineMsg := "baseline capture skipped"
	if s.auditor != nil {
		_, baselineMsg = s.auditor.CaptureInitialBaseline(r.Context(), dev, cred)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":          true,
		"customer_id": customer,
		"device_id":   device,
		"baseline":    baselineMsg,
	})
}

// handleToggleActive flips the inventory active flag.
func (s *Server) handleToggleActive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindValidation, "invalid form"))
		return
	}
	customer := strings.TrimSpace(r.FormValue("customer_id"))
	device := strings.TrimSpace(r.FormValue("device_id"))
	if customer == "" || device == "" {
		s.writeError(w, errors.New(errors.KindValidation, "customer_id and device_id are required"))
		return
	}
	active := r.FormValue("active") != "0"

	if err := s.store.SetDeviceActive(customer, device, active); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "active": active})
}

func formBool(r *http.Request, field string) bool {
	switch strings.ToLower(r.FormValue(field)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
