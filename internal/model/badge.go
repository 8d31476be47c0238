package model

import "time"

// Badge names awarded by the gamification engine. The rows themselves
// live in the badges table (see cmd/seed-badges).
const (
	BadgeFirstTry       = "First Try"
	BadgePerfectScore   = "Perfect Score"
	BadgeFastThinker    = "Fast Thinker"
	BadgeActiveLearner  = "Active Learner"
	BadgeConsistency    = "Consistency is Key"
	BadgeThirtyDays     = "30 Days in a Row"
	BadgeTopRank1       = "Top Rank 1"
	BadgeTopRank2       = "Top Rank 2"
	BadgeTopRank3       = "Top Rank 3"
)

// Badge is a named achievement, awardable repeatedly.
type Badge struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	PointValue  float64 `json:"point_value"`
}

// StudentBadge tracks how many times a student holds a badge. Repeat
// awards increment Quantity rather than duplicating rows.
type StudentBadge struct {
	StudentID int `json:"student_id"`
	BadgeID   int `json:"badge_id"`
	Quantity  int `json:"quantity"`
}

// PointsSourceKind tags a ledger entry with the kind of event that
// produced it. Together with SourceRef it forms a structured reference,
// so entries can be found and updated without parsing strings.
type PointsSourceKind string

const (
	PointsSourceQuiz       PointsSourceKind = "quiz"
	PointsSourceRecalcQuiz PointsSourceKind = "recalc_quiz"
	PointsSourceBadge      PointsSourceKind = "badge"
)

// PointsLogEntry is one append-only ledger row. The ledger is the
// auditable basis for a student's total score and the weekly leaderboard.
type PointsLogEntry struct {
	ID         int64            `json:"id"`
	StudentID  int              `json:"student_id"`
	Points     float64          `json:"points"`
	SourceKind PointsSourceKind `json:"source_kind"`
	SourceRef  string           `json:"source_ref"`
	CreatedAt  time.Time        `json:"created_at"`
}
