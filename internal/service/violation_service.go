package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/config"
	"github.com/lentera-edu/lentera-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrInvalidInterval = errors.New("away interval is empty or reversed")
	ErrNotAttemptOwner = errors.New("attempt does not belong to this student")
)

// Maximum violations before forced submission.
const maxViolations = 5

// ViolationAction is what the anti-cheat engine decided to do about one
// away report.
type ViolationAction string

const (
	ViolationIgnored    ViolationAction = "ignored"
	ViolationSkipped    ViolationAction = "skipped"
	ViolationWarning    ViolationAction = "warning"
	ViolationPenalty    ViolationAction = "penalty"
	ViolationAutoSubmit ViolationAction = "auto_submit"
)

// ViolationOutcome is the full result of processing one away report.
// Fields beyond Action are populated per action: MinutesReduced and
// NewEndTime for penalties, Submission for auto-submits.
type ViolationOutcome struct {
	Action         ViolationAction   `json:"action"`
	Message        string            `json:"message"`
	AwaySeconds    int64             `json:"away_seconds"`
	ViolationCount int               `json:"violation_count"`
	MinutesReduced int               `json:"minutes_reduced,omitempty"`
	NewEndTime     *time.Time        `json:"new_end_time,omitempty"`
	Submission     *SubmissionResult `json:"submission,omitempty"`
}

// ViolationService applies the anti-cheat rules to away-from-page
// reports. Each report locks its attempt row, so concurrent reports on
// the same attempt serialize and every escalation sees the true counter.
type ViolationService struct {
	pool        *pgxpool.Pool
	attemptRepo *repository.AttemptRepository
	quizRepo    *repository.QuizRepository
	scoring     *ScoringService
	rdb         *redis.Client
	log         zerolog.Logger
	now         func() time.Time
}

// NewViolationService creates a new ViolationService.
func NewViolationService(
	pool *pgxpool.Pool,
	attemptRepo *repository.AttemptRepository,
	quizRepo *repository.QuizRepository,
	scoring *ScoringService,
	rdb *redis.Client,
	log zerolog.Logger,
) *ViolationService {
	return &ViolationService{
		pool:        pool,
		attemptRepo: attemptRepo,
		quizRepo:    quizRepo,
		scoring:     scoring,
		rdb:         rdb,
		log:         log.With().Str("component", "violation_service").Logger(),
		now:         time.Now,
	}
}

// Report processes one away-from-page interval for an attempt. Reports
// on non-strict quizzes are acknowledged but ignored; reports on already
// finished attempts are skipped without effect.
func (s *ViolationService) Report(ctx context.Context, attemptID uuid.UUID, studentID int, awayStart, awayEnd time.Time) (*ViolationOutcome, error) {
	if !awayEnd.After(awayStart) {
		return nil, ErrInvalidInterval
	}
	awaySeconds := int64(awayEnd.Sub(awayStart).Seconds())

	var outcome *ViolationOutcome
	err := repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		attemptRepo := s.attemptRepo.WithTx(tx)

		attempt, err := attemptRepo.GetByIDForUpdate(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.StudentID != studentID {
			return ErrNotAttemptOwner
		}

		quiz, err := s.quizRepo.WithTx(tx).GetByID(ctx, attempt.QuizID)
		if err != nil {
			return fmt.Errorf("get quiz: %w", err)
		}
		if !quiz.Strict {
			outcome = &ViolationOutcome{
				Action:         ViolationIgnored,
				Message:        "Kuis ini tidak menggunakan mode ketat",
				AwaySeconds:    awaySeconds,
				ViolationCount: attempt.ViolationCount,
			}
			return nil
		}

		if attempt.Finished() {
			outcome = &ViolationOutcome{
				Action:         ViolationSkipped,
				Message:        "Kuis sudah dikumpulkan",
				AwaySeconds:    awaySeconds,
				ViolationCount: attempt.ViolationCount,
			}
			return nil
		}

		// No clock running means nothing to penalize and nothing to
		// auto-submit, the attempt has no deadline yet.
		if attempt.StartTime == nil {
			outcome = &ViolationOutcome{
				Action:         ViolationSkipped,
				Message:        "Kuis belum dimulai",
				AwaySeconds:    awaySeconds,
				ViolationCount: attempt.ViolationCount,
			}
			return nil
		}

		decision := decideViolation(attempt.ViolationCount, awaySeconds)
		newCount := attempt.ViolationCount + 1
		now := s.now()

		// A penalty that would push the deadline into the past is an
		// auto-submit in disguise.
		var newEnd time.Time
		if decision.action == ViolationPenalty {
			newEnd = attempt.EndTime.Add(-time.Duration(decision.penaltyMinutes) * time.Minute)
			if !newEnd.After(now) {
				decision.action = ViolationAutoSubmit
			}
		}

		switch decision.action {
		case ViolationWarning:
			if err := attemptRepo.SetViolationCount(ctx, attempt.ID, newCount); err != nil {
				return fmt.Errorf("set violation count: %w", err)
			}
			outcome = &ViolationOutcome{
				Action:         ViolationWarning,
				Message:        "Peringatan: Anda terdeteksi meninggalkan halaman kuis. Pelanggaran berikutnya akan mengurangi waktu pengerjaan.",
				AwaySeconds:    awaySeconds,
				ViolationCount: newCount,
			}

		case ViolationPenalty:
			if err := attemptRepo.ApplyPenalty(ctx, attempt.ID, newCount, newEnd); err != nil {
				return fmt.Errorf("apply penalty: %w", err)
			}
			outcome = &ViolationOutcome{
				Action:         ViolationPenalty,
				Message:        fmt.Sprintf("Waktu pengerjaan Anda dikurangi %d menit karena meninggalkan halaman kuis.", decision.penaltyMinutes),
				AwaySeconds:    awaySeconds,
				ViolationCount: newCount,
				MinutesReduced: decision.penaltyMinutes,
				NewEndTime:     &newEnd,
			}

		case ViolationAutoSubmit:
			result, err := s.scoring.ProcessSubmission(ctx, tx, attempt)
			if err != nil {
				return fmt.Errorf("auto submit: %w", err)
			}
			if err := attemptRepo.SetViolationCount(ctx, attempt.ID, newCount); err != nil {
				return fmt.Errorf("set violation count: %w", err)
			}
			outcome = &ViolationOutcome{
				Action:         ViolationAutoSubmit,
				Message:        "Batas pelanggaran terlampaui. Kuis Anda dikumpulkan secara otomatis.",
				AwaySeconds:    awaySeconds,
				ViolationCount: newCount,
				Submission:     result,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, attemptID, outcome)
	return outcome, nil
}

// publishEvent pushes the outcome to the attempt's live event channel.
// Publish failures only lose a UI update, never the violation itself.
func (s *ViolationService) publishEvent(ctx context.Context, attemptID uuid.UUID, outcome *ViolationOutcome) {
	payload, err := json.Marshal(map[string]any{
		"type":    "violation",
		"outcome": outcome,
	})
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.AttemptEventChannel(attemptID.String()), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("publish violation event")
	}
}

type violationDecision struct {
	action         ViolationAction
	penaltyMinutes int
}

// decideViolation maps the current violation count and the away duration
// to an action. First short absence warns; longer absences cost 5, 10 or
// 15 minutes; 10 minutes away or a sixth violation force submission.
func decideViolation(violations int, awaySeconds int64) violationDecision {
	if violations == 0 && awaySeconds <= 120 {
		return violationDecision{action: ViolationWarning}
	}

	d := violationDecision{action: ViolationPenalty}
	switch {
	case awaySeconds < 60:
		d.penaltyMinutes = 5
	case awaySeconds < 300:
		d.penaltyMinutes = 10
	case awaySeconds < 600:
		d.penaltyMinutes = 15
	default:
		d = violationDecision{action: ViolationAutoSubmit}
	}

	if violations+1 > maxViolations {
		d = violationDecision{action: ViolationAutoSubmit}
	}
	return d
}
