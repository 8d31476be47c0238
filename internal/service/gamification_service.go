package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/lentera-edu/lentera-backend/internal/repository"
	"github.com/rs/zerolog"
)

// BadgeAward describes one badge granted during a scoring event.
type BadgeAward struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Points      float64 `json:"points"`
	Quantity    int     `json:"quantity"`
}

// LevelUpInfo is returned when a scoring event pushed the student over a
// level threshold.
type LevelUpInfo struct {
	PreviousLevel int    `json:"previous_level"`
	NewLevel      int    `json:"new_level"`
	Message       string `json:"message"`
}

// RewardSummary aggregates everything gamification produced for one
// finished attempt.
type RewardSummary struct {
	EarnedBadges []BadgeAward
	LevelUp      *LevelUpInfo
	Streak       int
}

// GamificationService is the single writer of the materialized
// gamification fields on students (streak_count, last_submission_date,
// level, pure_point) and of the points ledger. All attempt-triggered
// mutations run inside the scoring transaction.
type GamificationService struct {
	pool        *pgxpool.Pool
	attemptRepo *repository.AttemptRepository
	studentRepo *repository.StudentRepository
	badgeRepo   *repository.BadgeRepository
	pointsRepo  *repository.PointsLogRepository
	log         zerolog.Logger
	now         func() time.Time
}

// NewGamificationService creates a new GamificationService.
func NewGamificationService(
	pool *pgxpool.Pool,
	attemptRepo *repository.AttemptRepository,
	studentRepo *repository.StudentRepository,
	badgeRepo *repository.BadgeRepository,
	pointsRepo *repository.PointsLogRepository,
	log zerolog.Logger,
) *GamificationService {
	return &GamificationService{
		pool:        pool,
		attemptRepo: attemptRepo,
		studentRepo: studentRepo,
		badgeRepo:   badgeRepo,
		pointsRepo:  pointsRepo,
		log:         log.With().Str("component", "gamification_service").Logger(),
		now:         time.Now,
	}
}

// ApplyAfterScore runs the full post-scoring pipeline inside tx: badge
// checks, streak update, ledger entries, pure-point refresh and level
// check. Must be called exactly once per finished attempt.
func (s *GamificationService) ApplyAfterScore(ctx context.Context, tx pgx.Tx, studentID int, quizID uuid.UUID, score float64, tookMs int64) (*RewardSummary, error) {
	attemptRepo := s.attemptRepo.WithTx(tx)
	studentRepo := s.studentRepo.WithTx(tx)
	badgeRepo := s.badgeRepo.WithTx(tx)
	pointsRepo := s.pointsRepo.WithTx(tx)

	summary := &RewardSummary{}

	award := func(name string) error {
		a, err := s.awardBadge(ctx, badgeRepo, pointsRepo, studentID, name)
		if err != nil {
			return err
		}
		if a != nil {
			summary.EarnedBadges = append(summary.EarnedBadges, *a)
		}
		return nil
	}

	finished, err := attemptRepo.CountFinishedByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("count finished attempts: %w", err)
	}
	if finished == 1 {
		if err := award(model.BadgeFirstTry); err != nil {
			return nil, err
		}
	}

	if score == 100 {
		if err := award(model.BadgePerfectScore); err != nil {
			return nil, err
		}
	}

	if score >= 80 && tookMs > 0 && tookMs < 5*60*1000 {
		if err := award(model.BadgeFastThinker); err != nil {
			return nil, err
		}
	}

	distinct, err := attemptRepo.CountDistinctFinishedQuizzes(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("count distinct quizzes: %w", err)
	}
	if distinct == 10 {
		if err := award(model.BadgeActiveLearner); err != nil {
			return nil, err
		}
	}

	student, err := studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	today := s.now()
	streak := nextStreak(student.StreakCount, student.LastSubmissionDate, today)
	if err := studentRepo.UpdateStreak(ctx, studentID, streak, &today); err != nil {
		return nil, fmt.Errorf("update streak: %w", err)
	}
	summary.Streak = streak

	// Streak badges fire exactly on the milestone day, never after it.
	switch streak {
	case 7:
		if err := award(model.BadgeConsistency); err != nil {
			return nil, err
		}
	case 30:
		if err := award(model.BadgeThirtyDays); err != nil {
			return nil, err
		}
	}

	entry := &model.PointsLogEntry{
		StudentID:  studentID,
		Points:     score,
		SourceKind: model.PointsSourceQuiz,
		SourceRef:  quizID.String(),
	}
	if err := pointsRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append quiz ledger entry: %w", err)
	}

	purePoints, err := attemptRepo.SumFinishedScores(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("sum pure points: %w", err)
	}
	if err := studentRepo.SetPurePoint(ctx, studentID, purePoints); err != nil {
		return nil, fmt.Errorf("refresh pure points: %w", err)
	}

	badgePoints, err := badgeRepo.SumBadgePoints(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("sum badge points: %w", err)
	}

	newLevel := computeLevel(purePoints, badgePoints)
	if newLevel > student.Level {
		if err := studentRepo.UpdateLevel(ctx, studentID, newLevel); err != nil {
			return nil, fmt.Errorf("update level: %w", err)
		}
		summary.LevelUp = &LevelUpInfo{
			PreviousLevel: student.Level,
			NewLevel:      newLevel,
			Message:       fmt.Sprintf("Selamat! Kamu naik ke level %d", newLevel),
		}
	}

	return summary, nil
}

// awardBadge grants one more of the named badge and appends the ledger
// entry for its point value. A badge missing from the catalog is logged
// and skipped rather than failing the submission.
func (s *GamificationService) awardBadge(ctx context.Context, badgeRepo *repository.BadgeRepository, pointsRepo *repository.PointsLogRepository, studentID int, name string) (*BadgeAward, error) {
	badge, err := badgeRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.log.Warn().Str("badge", name).Msg("badge not in catalog, skipping award")
			return nil, nil
		}
		return nil, fmt.Errorf("get badge %q: %w", name, err)
	}

	quantity, err := badgeRepo.IncrementHolding(ctx, studentID, badge.ID)
	if err != nil {
		return nil, fmt.Errorf("increment badge holding: %w", err)
	}

	entry := &model.PointsLogEntry{
		StudentID:  studentID,
		Points:     badge.PointValue,
		SourceKind: model.PointsSourceBadge,
		SourceRef:  badge.Name,
	}
	if err := pointsRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append badge ledger entry: %w", err)
	}

	return &BadgeAward{
		Name:        badge.Name,
		Description: badge.Description,
		Points:      badge.PointValue,
		Quantity:    quantity,
	}, nil
}

// AwardWeeklyTopRanks grants Top Rank 1-3 to the highest ledger totals
// over the week so far, Monday's midnight through the end of the current
// day. Runs from the weekly leaderboard worker.
func (s *GamificationService) AwardWeeklyTopRanks(ctx context.Context) error {
	from, to := weekWindow(s.now())

	rankBadges := [3]string{model.BadgeTopRank1, model.BadgeTopRank2, model.BadgeTopRank3}

	return repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		pointsRepo := s.pointsRepo.WithTx(tx)
		badgeRepo := s.badgeRepo.WithTx(tx)

		ranks, err := pointsRepo.TopStudents(ctx, from, to, 3)
		if err != nil {
			return fmt.Errorf("weekly top students: %w", err)
		}

		for i, rank := range ranks {
			a, err := s.awardBadge(ctx, badgeRepo, pointsRepo, rank.StudentID, rankBadges[i])
			if err != nil {
				return err
			}
			if a != nil {
				s.log.Info().
					Int("student_id", rank.StudentID).
					Str("badge", a.Name).
					Float64("weekly_points", rank.TotalPoints).
					Msg("weekly top rank awarded")
			}
		}
		return nil
	})
}

// ResetLapsedStreaks zeroes every streak whose last submission is more
// than one calendar day old. Runs from the nightly streak worker.
func (s *GamificationService) ResetLapsedStreaks(ctx context.Context) error {
	students, err := s.studentRepo.ListWithActiveStreaks(ctx)
	if err != nil {
		return fmt.Errorf("list active streaks: %w", err)
	}

	today := s.now()
	reset := 0
	for _, st := range students {
		if st.LastSubmissionDate == nil {
			continue
		}
		if daysBetween(*st.LastSubmissionDate, today) > 1 {
			if err := s.studentRepo.ClearStreak(ctx, st.UserID); err != nil {
				s.log.Error().Err(err).Int("student_id", st.UserID).Msg("clear lapsed streak")
				continue
			}
			reset++
		}
	}
	if reset > 0 {
		s.log.Info().Int("count", reset).Msg("lapsed streaks reset")
	}
	return nil
}

// nextStreak computes the streak counter after a submission today.
// Same-day resubmission keeps the counter, a submission exactly one
// calendar day after the last extends it, anything older restarts at 1.
func nextStreak(current int, last *time.Time, today time.Time) int {
	if last == nil {
		return 1
	}
	switch daysBetween(*last, today) {
	case 0:
		if current == 0 {
			return 1
		}
		return current
	case 1:
		return current + 1
	default:
		return 1
	}
}

// computeLevel derives a level from total points, one level per 1000.
func computeLevel(purePoints, badgePoints float64) int {
	return int(math.Floor((purePoints+badgePoints)/1000)) + 1
}

// daysBetween counts whole calendar days from a to b, ignoring clock time.
func daysBetween(a, b time.Time) int {
	return int(startOfDay(b).Sub(startOfDay(a)).Hours() / 24)
}

// weekWindow is the Top Rank award window for a run at now: the most
// recent Monday's midnight through the end of the current day.
func weekWindow(now time.Time) (time.Time, time.Time) {
	daysBack := (int(now.Weekday()) - int(time.Monday) + 7) % 7
	return startOfDay(now.AddDate(0, 0, -daysBack)), endOfDay(now)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
