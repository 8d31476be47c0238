package model

import "time"

// Student represents a learner account.
//
// StreakCount, LastSubmissionDate, Level and PurePoint are materialized
// gamification fields. They have a single writer (the gamification engine,
// running inside the scoring transaction) and are reconciled by the
// recalculation engine; they must not be edited directly.
type Student struct {
	UserID             int        `json:"user_id"`
	Username           string     `json:"username"`
	Name               string     `json:"name"`
	PasswordHash       string     `json:"-"`
	ClassID            int        `json:"class_id"`
	StreakCount        int        `json:"streak_count"`
	LastSubmissionDate *time.Time `json:"last_submission_date,omitempty"`
	Level              int        `json:"level"`
	PurePoint          float64    `json:"pure_point"`
}

// StudentLoginRequest is the payload for student login.
type StudentLoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}
