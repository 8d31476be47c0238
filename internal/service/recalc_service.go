package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/lentera-edu/lentera-backend/internal/repository"
	"github.com/rs/zerolog"
)

// Scores closer than this are considered unchanged by a recalculation.
const scoreEpsilon = 0.001

// RecalcService replays final answers against the current answer keys
// after a structural quiz edit, rewriting attempt scores, the cached
// pure points and the ledger. Final answers themselves are never
// touched: they are the permanent record being replayed.
type RecalcService struct {
	attemptRepo *repository.AttemptRepository
	finalRepo   *repository.FinalAnswerRepository
	quizRepo    *repository.QuizRepository
	studentRepo *repository.StudentRepository
	pointsRepo  *repository.PointsLogRepository
	log         zerolog.Logger
}

// NewRecalcService creates a new RecalcService.
func NewRecalcService(
	attemptRepo *repository.AttemptRepository,
	finalRepo *repository.FinalAnswerRepository,
	quizRepo *repository.QuizRepository,
	studentRepo *repository.StudentRepository,
	pointsRepo *repository.PointsLogRepository,
	log zerolog.Logger,
) *RecalcService {
	return &RecalcService{
		attemptRepo: attemptRepo,
		finalRepo:   finalRepo,
		quizRepo:    quizRepo,
		studentRepo: studentRepo,
		pointsRepo:  pointsRepo,
		log:         log.With().Str("component", "recalc_service").Logger(),
	}
}

// Recalculate replays every finished attempt on a quiz inside tx.
// Runs in the same transaction as the content edit that triggered it,
// so readers never see edited questions with stale scores. Returns the
// number of attempts whose score actually changed.
func (s *RecalcService) Recalculate(ctx context.Context, tx pgx.Tx, quizID uuid.UUID) (int, error) {
	attemptRepo := s.attemptRepo.WithTx(tx)
	finalRepo := s.finalRepo.WithTx(tx)
	studentRepo := s.studentRepo.WithTx(tx)
	pointsRepo := s.pointsRepo.WithTx(tx)

	keys, err := s.quizRepo.WithTx(tx).GetQuestionKeys(ctx, quizID)
	if err != nil {
		return 0, fmt.Errorf("get question keys: %w", err)
	}

	attempts, err := attemptRepo.ListByQuiz(ctx, quizID)
	if err != nil {
		return 0, fmt.Errorf("list attempts: %w", err)
	}

	changed := 0
	touchedStudents := make(map[int]bool)

	for _, attempt := range attempts {
		if !attempt.Finished() {
			continue
		}

		selections, err := finalRepo.MapSelections(ctx, attempt.ID)
		if err != nil {
			return 0, fmt.Errorf("map final answers: %w", err)
		}

		total, _ := replayScore(keys, selections)
		newScore := roundScore(total)
		if math.Abs(newScore-attempt.Score) <= scoreEpsilon {
			continue
		}

		if err := attemptRepo.UpdateScore(ctx, attempt.ID, newScore); err != nil {
			return 0, fmt.Errorf("update attempt score: %w", err)
		}
		changed++
		touchedStudents[attempt.StudentID] = true

		if err := s.retagLedger(ctx, pointsRepo, attempt.StudentID, quizID, newScore); err != nil {
			return 0, err
		}

		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Int("student_id", attempt.StudentID).
			Float64("old_score", attempt.Score).
			Float64("new_score", newScore).
			Msg("attempt score recalculated")
	}

	// Cached pure points are rebuilt from scratch for every affected
	// student rather than adjusted by deltas.
	for studentID := range touchedStudents {
		total, err := attemptRepo.SumAllScores(ctx, studentID)
		if err != nil {
			return 0, fmt.Errorf("sum scores: %w", err)
		}
		if err := studentRepo.SetPurePoint(ctx, studentID, total); err != nil {
			return 0, fmt.Errorf("rebuild pure points: %w", err)
		}
	}

	return changed, nil
}

// retagLedger updates the student's ledger entry for this quiz in place,
// marking it as recalculated. A missing entry is logged and tolerated;
// it means the attempt predates the ledger.
func (s *RecalcService) retagLedger(ctx context.Context, pointsRepo *repository.PointsLogRepository, studentID int, quizID uuid.UUID, newScore float64) error {
	entry, err := pointsRepo.GetQuizEntry(ctx, studentID, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.log.Warn().
				Int("student_id", studentID).
				Str("quiz_id", quizID.String()).
				Msg("no ledger entry to retag")
			return nil
		}
		return fmt.Errorf("get ledger entry: %w", err)
	}
	if err := pointsRepo.Retag(ctx, entry.ID, newScore, model.PointsSourceRecalcQuiz); err != nil {
		return fmt.Errorf("retag ledger entry: %w", err)
	}
	return nil
}
