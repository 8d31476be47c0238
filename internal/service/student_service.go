package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/lentera-edu/lentera-backend/internal/repository"
)

// ProgressSummary is a student's gamification snapshot: points, level,
// streak and held badges.
type ProgressSummary struct {
	StudentID   int                       `json:"student_id"`
	Name        string                    `json:"name"`
	Level       int                       `json:"level"`
	PurePoints  float64                   `json:"pure_points"`
	BadgePoints float64                   `json:"badge_points"`
	TotalPoints float64                   `json:"total_points"`
	StreakCount int                       `json:"streak_count"`
	Badges      []repository.BadgeHolding `json:"badges"`
}

// LeaderboardEntry is one row of the weekly leaderboard.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	StudentID   int     `json:"student_id"`
	Name        string  `json:"name"`
	TotalPoints float64 `json:"total_points"`
}

// StudentService handles student lookups and the progress views.
type StudentService struct {
	pool        *pgxpool.Pool
	studentRepo *repository.StudentRepository
	badgeRepo   *repository.BadgeRepository
	pointsRepo  *repository.PointsLogRepository
	now         func() time.Time
}

// NewStudentService creates a new StudentService.
func NewStudentService(
	pool *pgxpool.Pool,
	studentRepo *repository.StudentRepository,
	badgeRepo *repository.BadgeRepository,
	pointsRepo *repository.PointsLogRepository,
) *StudentService {
	return &StudentService{
		pool:        pool,
		studentRepo: studentRepo,
		badgeRepo:   badgeRepo,
		pointsRepo:  pointsRepo,
		now:         time.Now,
	}
}

// GetByUsername retrieves a student by their login username.
func (s *StudentService) GetByUsername(ctx context.Context, username string) (*model.Student, error) {
	return s.studentRepo.GetByUsername(ctx, username)
}

// GetByID retrieves a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id int) (*model.Student, error) {
	return s.studentRepo.GetByID(ctx, id)
}

// GetProgress assembles the student's gamification snapshot.
func (s *StudentService) GetProgress(ctx context.Context, studentID int) (*ProgressSummary, error) {
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	badges, err := s.badgeRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if badges == nil {
		badges = []repository.BadgeHolding{}
	}

	badgePoints, err := s.badgeRepo.SumBadgePoints(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return &ProgressSummary{
		StudentID:   student.UserID,
		Name:        student.Name,
		Level:       student.Level,
		PurePoints:  student.PurePoint,
		BadgePoints: badgePoints,
		TotalPoints: student.PurePoint + badgePoints,
		StreakCount: student.StreakCount,
		Badges:      badges,
	}, nil
}

// RevokeBadge removes a student's holding of one badge and its ledger
// entries. This is the only path that takes badges away; deleting an
// attempt never does. The level is not lowered, levels only go up.
func (s *StudentService) RevokeBadge(ctx context.Context, studentID, badgeID int) error {
	return repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		badge, err := s.badgeRepo.WithTx(tx).GetByID(ctx, badgeID)
		if err != nil {
			return err
		}
		if err := s.badgeRepo.WithTx(tx).DeleteHolding(ctx, studentID, badgeID); err != nil {
			return err
		}
		return s.pointsRepo.WithTx(tx).DeleteBadgeEntries(ctx, studentID, badge.Name)
	})
}

// GetWeeklyLeaderboard ranks students by ledger points over the trailing
// seven days.
func (s *StudentService) GetWeeklyLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}

	now := s.now()
	from := startOfDay(now.AddDate(0, 0, -6))
	to := endOfDay(now)

	ranks, err := s.pointsRepo.TopStudents(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(ranks))
	for i, rank := range ranks {
		entry := LeaderboardEntry{
			Rank:        i + 1,
			StudentID:   rank.StudentID,
			TotalPoints: rank.TotalPoints,
		}
		if student, err := s.studentRepo.GetByID(ctx, rank.StudentID); err == nil {
			entry.Name = student.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
