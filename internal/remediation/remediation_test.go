// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package remediation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateSet(t *testing.T) {
	for _, s := range ValidStates {
		assert.True(t, IsValidState(s), s)
	}
	assert.False(t, IsValidState("done"))
	assert.False(t, IsValidState(""))
}

func TestSuggestShape(t *testing.T) {
	s := Suggest(7)
	assert.EqualValues(t, 7, s.IncidentID)
	assert.Equal(t, StateEmAnalise, s.Status)
	assert.True(t, s.RequiresApproval)
	assert.True(t, s.DryRunAvailable)
	assert.NotNil(t, s.Commands)
}

func TestApprove(t *testing.T) {
	a, err := Approve(7, "operator")
	assert.NoError(t, err)
	assert.Equal(t, StateAprovado, a.Status)
	assert.Equal(t, "operator", a.ApprovedBy)

	_, err = Approve(7, "")
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	// A dry run stays in analysis; only a real execution advances.
	assert.Equal(t, StateEmAnalise, Execute(7, true).Status)
	assert.Equal(t, StateExecutado, Execute(7, false).Status)
}
