package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeKeys(points ...float64) []model.QuestionKey {
	keys := make([]model.QuestionKey, len(points))
	for i, p := range points {
		keys[i] = model.QuestionKey{
			ID:               uuid.New(),
			Point:            p,
			CorrectOptionIDs: []uuid.UUID{uuid.New()},
		}
	}
	return keys
}

func TestReplayScore(t *testing.T) {
	keys := makeKeys(25, 25, 25, 25)

	// Two correct, one wrong, one unanswered.
	wrong := uuid.New()
	selections := map[uuid.UUID]*uuid.UUID{
		keys[0].ID: &keys[0].CorrectOptionIDs[0],
		keys[1].ID: &keys[1].CorrectOptionIDs[0],
		keys[2].ID: &wrong,
	}

	total, correct := replayScore(keys, selections)
	assert.Equal(t, 50.0, total)
	assert.Equal(t, 2, correct)
}

func TestReplayScore_NilSelectionNeverScores(t *testing.T) {
	keys := makeKeys(10)
	selections := map[uuid.UUID]*uuid.UUID{keys[0].ID: nil}

	total, correct := replayScore(keys, selections)
	assert.Equal(t, 0.0, total)
	assert.Equal(t, 0, correct)
}

func TestReplayScore_QuestionWithoutCorrectOption(t *testing.T) {
	key := model.QuestionKey{ID: uuid.New(), Point: 50}
	sel := uuid.New()

	total, correct := replayScore([]model.QuestionKey{key}, map[uuid.UUID]*uuid.UUID{key.ID: &sel})
	assert.Equal(t, 0.0, total)
	assert.Equal(t, 0, correct)
}

func TestRoundScore(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{25.0, 25.0},
		{33.333333, 33.33},
		{66.666667, 66.67},
		{99.999999, 100.0},
		{0.0, 0.0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, roundScore(tc.in), "roundScore(%v)", tc.in)
	}
}

func TestProcessSubmission_SkipsAlreadySubmitted(t *testing.T) {
	s := &ScoringService{now: time.Now}
	attemptedAt := time.Now()
	attempt := &model.Attempt{
		Status:      model.AttemptStatusFinished,
		Score:       85.5,
		AttemptedAt: &attemptedAt,
	}

	result, err := s.ProcessSubmission(context.Background(), nil, attempt)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, ReasonAlreadySubmitted, result.Reason)
	assert.Equal(t, 85.5, result.Score)
}

func TestProcessSubmission_SkipsNeverStarted(t *testing.T) {
	s := &ScoringService{now: time.Now}
	attempt := &model.Attempt{Status: model.AttemptStatusNotStarted}

	result, err := s.ProcessSubmission(context.Background(), nil, attempt)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, ReasonNotStarted, result.Reason)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", formatDuration(0))
	assert.Equal(t, "02:05", formatDuration(125_000))
	assert.Equal(t, "01:02:03", formatDuration(3_723_000))
	assert.Equal(t, "", formatDuration(-1))
}
