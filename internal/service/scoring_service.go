package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/lentera-edu/lentera-backend/internal/repository"
	"github.com/rs/zerolog"
)

// Skip reasons returned in SubmissionResult. These are outcomes, not
// errors: the sweep and handlers branch on them without rolling back.
const (
	ReasonAlreadySubmitted = "already_submitted"
	ReasonNotStarted       = "attempt_not_started"
)

// SubmissionResult is the outcome of running the scoring engine on an
// attempt. When Skipped is set, nothing was mutated.
type SubmissionResult struct {
	Skipped        bool           `json:"skipped"`
	Reason         string         `json:"reason,omitempty"`
	Score          float64        `json:"score"`
	TotalQuestions int            `json:"total_questions"`
	CorrectCount   int            `json:"correct_count"`
	Duration       string         `json:"duration,omitempty"`
	DurationMillis int64          `json:"duration_ms"`
	EarnedBadges   []BadgeAward   `json:"earned_badges,omitempty"`
	LevelUp        *LevelUpInfo   `json:"level_up,omitempty"`
	Streak         int            `json:"streak,omitempty"`
}

// ScoringService finalizes attempts: it grades temp answers, writes the
// permanent answer record, and triggers gamification, all inside the
// caller-supplied transaction, so score and rewards commit together or
// not at all.
type ScoringService struct {
	attemptRepo  *repository.AttemptRepository
	tempRepo     *repository.TempAnswerRepository
	finalRepo    *repository.FinalAnswerRepository
	quizRepo     *repository.QuizRepository
	gamification *GamificationService
	log          zerolog.Logger
	now          func() time.Time
}

// NewScoringService creates a new ScoringService.
func NewScoringService(
	attemptRepo *repository.AttemptRepository,
	tempRepo *repository.TempAnswerRepository,
	finalRepo *repository.FinalAnswerRepository,
	quizRepo *repository.QuizRepository,
	gamification *GamificationService,
	log zerolog.Logger,
) *ScoringService {
	return &ScoringService{
		attemptRepo:  attemptRepo,
		tempRepo:     tempRepo,
		finalRepo:    finalRepo,
		quizRepo:     quizRepo,
		gamification: gamification,
		log:          log.With().Str("component", "scoring_service").Logger(),
		now:          time.Now,
	}
}

// ProcessSubmission grades an attempt inside tx. The attempt must have
// been fetched under a row lock in the same transaction. Idempotent:
// an already-submitted or never-started attempt yields a skip result.
//
// Questions deleted mid-attempt simply no longer appear in the grading
// keys; temp answers referencing them are ignored.
func (s *ScoringService) ProcessSubmission(ctx context.Context, tx pgx.Tx, attempt *model.Attempt) (*SubmissionResult, error) {
	if attempt.Finished() {
		return &SubmissionResult{Skipped: true, Reason: ReasonAlreadySubmitted, Score: attempt.Score}, nil
	}
	if attempt.StartTime == nil {
		return &SubmissionResult{Skipped: true, Reason: ReasonNotStarted}, nil
	}

	keys, err := s.quizRepo.WithTx(tx).GetQuestionKeys(ctx, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("get question keys: %w", err)
	}

	selections, err := s.tempRepo.WithTx(tx).MapSelections(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("get temp answers: %w", err)
	}

	total, correct := replayScore(keys, selections)
	score := roundScore(total)

	// Every question gets a final answer row, answered or not. This is the
	// permanent record of what the student chose, independent of later
	// content edits.
	finalRepo := s.finalRepo.WithTx(tx)
	for _, key := range keys {
		fa := &model.FinalAnswer{
			AttemptID:  attempt.ID,
			QuestionID: key.ID,
			OptionID:   selections[key.ID],
		}
		if err := finalRepo.Insert(ctx, fa); err != nil {
			return nil, fmt.Errorf("insert final answer: %w", err)
		}
	}

	attemptedAt := s.now()
	if err := s.attemptRepo.WithTx(tx).Finalize(ctx, attempt.ID, score, attemptedAt); err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	if err := s.tempRepo.WithTx(tx).DeleteByAttempt(ctx, attempt.ID); err != nil {
		return nil, fmt.Errorf("purge temp answers: %w", err)
	}

	attempt.Status = model.AttemptStatusFinished
	attempt.Score = score
	attempt.AttemptedAt = &attemptedAt

	var tookMs int64
	if attempt.WorkStartedAt != nil {
		tookMs = attemptedAt.Sub(*attempt.WorkStartedAt).Milliseconds()
	}

	rewards, err := s.gamification.ApplyAfterScore(ctx, tx, attempt.StudentID, attempt.QuizID, score, tookMs)
	if err != nil {
		return nil, fmt.Errorf("gamification: %w", err)
	}

	return &SubmissionResult{
		Score:          score,
		TotalQuestions: len(keys),
		CorrectCount:   correct,
		Duration:       formatDuration(tookMs),
		DurationMillis: tookMs,
		EarnedBadges:   rewards.EarnedBadges,
		LevelUp:        rewards.LevelUp,
		Streak:         rewards.Streak,
	}, nil
}

// replayScore grades a set of selections against the grading keys.
// Shared by submission-time scoring and the recalculation replay, so the
// two can never drift.
func replayScore(keys []model.QuestionKey, selections map[uuid.UUID]*uuid.UUID) (total float64, correct int) {
	for _, key := range keys {
		sel := selections[key.ID]
		if sel == nil {
			continue
		}
		if key.IsCorrectOption(*sel) {
			total += key.Point
			correct++
		}
	}
	return total, correct
}

// roundScore rounds to 2 decimal places, half away from zero.
func roundScore(x float64) float64 {
	return math.Round(x*100) / 100
}

// formatDuration renders elapsed milliseconds as MM:SS, or HH:MM:SS past
// an hour. Negative input yields an empty string.
func formatDuration(ms int64) string {
	if ms < 0 {
		return ""
	}
	totalSeconds := ms / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
