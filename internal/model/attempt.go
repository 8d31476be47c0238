package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates quiz attempt states. The values are stored
// verbatim, so they must not change without a migration.
type AttemptStatus string

const (
	AttemptStatusNotStarted   AttemptStatus = "belum-mengerjakan"
	AttemptStatusInProgress   AttemptStatus = "sedang-mengerjakan"
	AttemptStatusFinished     AttemptStatus = "selesai"
	AttemptStatusNotAttempted AttemptStatus = "tidak-mengerjakan"
)

// Attempt is one student's timed engagement with one quiz. Exactly one
// row exists per (student, quiz).
//
// EndTime is the hard deadline; strict-mode penalties move it earlier.
// WorkStartedAt marks when the student actually opened the quiz content
// (distinct from row creation). AttemptedAt is set exactly once, at final
// submission: it is non-nil iff Status is AttemptStatusFinished.
type Attempt struct {
	ID             uuid.UUID     `json:"id"`
	StudentID      int           `json:"student_id"`
	QuizID         uuid.UUID     `json:"quiz_id"`
	Status         AttemptStatus `json:"status"`
	Score          float64       `json:"score"`
	ViolationCount int           `json:"violation_count"`
	StartTime      *time.Time    `json:"start_time,omitempty"`
	EndTime        time.Time     `json:"end_time"`
	WorkStartedAt  *time.Time    `json:"work_started_at,omitempty"`
	AttemptedAt    *time.Time    `json:"attempted_at,omitempty"`
}

// Finished reports whether the attempt has been finally submitted.
func (a *Attempt) Finished() bool {
	return a.AttemptedAt != nil
}

// TempAnswer is a provisional answer selection, replaced on re-save and
// deleted wholesale once the attempt finalizes.
type TempAnswer struct {
	AttemptID  uuid.UUID  `json:"attempt_id"`
	QuestionID uuid.UUID  `json:"question_id"`
	OptionID   *uuid.UUID `json:"option_id"`
}

// FinalAnswer is the immutable record of a submitted selection, written
// exactly once per question at submission time. OptionID is nil when the
// question was left unanswered.
type FinalAnswer struct {
	AttemptID  uuid.UUID  `json:"attempt_id"`
	QuestionID uuid.UUID  `json:"question_id"`
	OptionID   *uuid.UUID `json:"option_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SaveTempAnswerRequest is the payload for upserting a temp answer.
type SaveTempAnswerRequest struct {
	QuestionID uuid.UUID  `json:"question_id" binding:"required"`
	OptionID   *uuid.UUID `json:"option_id"`
}

// SubmitAttemptRequest is the payload for a manual final submit.
type SubmitAttemptRequest struct {
	Force bool `json:"force"`
}

// ReportViolationRequest is the payload for a strict-mode tab-away
// report. Timestamps are RFC3339 strings or Unix milliseconds.
type ReportViolationRequest struct {
	AwayStart string `json:"away_start" binding:"required"`
	AwayEnd   string `json:"away_end" binding:"required"`
}
