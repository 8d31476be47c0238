package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideViolation(t *testing.T) {
	cases := []struct {
		name        string
		violations  int
		awaySeconds int64
		wantAction  ViolationAction
		wantMinutes int
	}{
		{"first short absence warns", 0, 30, ViolationWarning, 0},
		{"warning boundary at 120s", 0, 120, ViolationWarning, 0},
		{"first absence over 120s penalizes", 0, 121, ViolationPenalty, 10},
		{"repeat short absence costs 5 minutes", 1, 30, ViolationPenalty, 5},
		{"under 60s boundary", 1, 59, ViolationPenalty, 5},
		{"60s to 5min costs 10 minutes", 1, 60, ViolationPenalty, 10},
		{"5min to 10min costs 15 minutes", 2, 400, ViolationPenalty, 15},
		{"10 minutes away forces submit", 0, 600, ViolationAutoSubmit, 0},
		{"long absence forces submit regardless of count", 1, 700, ViolationAutoSubmit, 0},
		{"sixth violation forces submit", 5, 30, ViolationAutoSubmit, 0},
		{"fifth violation still only penalizes", 4, 30, ViolationPenalty, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := decideViolation(tc.violations, tc.awaySeconds)
			assert.Equal(t, tc.wantAction, d.action)
			assert.Equal(t, tc.wantMinutes, d.penaltyMinutes)
		})
	}
}
