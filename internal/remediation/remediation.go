// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package remediation exposes the controlled remediation state pipeline.
// Only the state shape and storage are implemented here; transition
// policy, approval tokens and execution against devices are external
// concerns, and nothing in this package pushes configuration.
package remediation

import (
	"github.com/netvigil/netvigil/internal/errors"
)

// Pipeline states: novo → em_analise → aprovado → executado → validado,
// with the failure branch falhou → revertido.
const (
	StateNovo      = "novo"
	StateEmAnalise = "em_analise"
	StateAprovado  = "aprovado"
	StateExecutado = "executado"
	StateValidado  = "validado"
	StateFalhou    = "falhou"
	StateRevertido = "revertido"
)

// ValidStates lists every pipeline state.
var ValidStates = []string{
	StateNovo, StateEmAnalise, StateAprovado,
	StateExecutado, StateValidado, StateFalhou, StateRevertido,
}

// IsValidState reports whether s is a pipeline state.
func IsValidState(s string) bool {
	for _, v := range ValidStates {
		if v == s {
			return true
		}
	}
	return false
}

// Suggestion is the response shape of a remediation proposal.
type Suggestion struct {
	IncidentID       int64    `json:"incident_id"`
	Status           string   `json:"status"`
	Commands         []string `json:"commands"`
	Risk             *string  `json:"risk"`
	Impact           *string  `json:"impact"`
	RequiresApproval bool     `json:"requires_approval"`
	DryRunAvailable  bool     `json:"dry_run_available"`
}

// Approval is the response shape of an approval record.
type Approval struct {
	IncidentID int64  `json:"incident_id"`
	Status     string `json:"status"`
	ApprovedBy string `json:"approved_by"`
}

// Execution is the response shape of an execution (or dry run).
type Execution struct {
	IncidentID        int64   `json:"incident_id"`
	DryRun            bool    `json:"dry_run"`
	Status            string  `json:"status"`
	Result            *string `json:"result"`
	PostSnapshotMatch *bool   `json:"post_snapshot_match"`
}

// StatusView is the response shape of a status query.
type StatusView struct {
	IncidentID int64    `json:"incident_id"`
	Status     string   `json:"status"`
	History    []string `json:"history"`
}

// Suggest produces a remediation proposal stub for an incident.
func Suggest(incidentID int64) Suggestion {
	return Suggestion{
		IncidentID:       incidentID,
		Status:           StateEmAnalise,
		Commands:         []string{},
		RequiresApproval: true,
		DryRunAvailable:  true,
	}
}

// Approve records an approval for a remediation plan.
func Approve(incidentID int64, approvedBy string) (Approval, error) {
	if approvedBy == "" {
		return Approval{}, errors.New(errors.KindValidation, "approved_by is required")
	}
	return Approval{
		IncidentID: incidentID,
		Status:     StateAprovado,
		ApprovedBy: approvedBy,
	}, nil
}

// Execute runs (or simulates) an approved remediation. Execution against
// devices is not implemented; a dry run stays in analysis.
func Execute(incidentID int64, dryRun bool) Execution {
	status := StateExecutado
	if dryRun {
		status = StateEmAnalise
	}
	return Execution{
		IncidentID: incidentID,
		DryRun:     dryRun,
		Status:     status,
	}
}

// Status reports the pipeline state of an incident's remediation.
func Status(incidentID int64) StatusView {
	return StatusView{
		IncidentID: incidentID,
		Status:     StateNovo,
		History:    []string{},
	}
}
