package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
)

// WeeklyRank is one leaderboard row over a points window.
type WeeklyRank struct {
	StudentID   int     `json:"student_id"`
	TotalPoints float64 `json:"total_points"`
}

// PointsLogRepository handles the append-only points ledger.
type PointsLogRepository struct {
	db Querier
}

// NewPointsLogRepository creates a new PointsLogRepository.
func NewPointsLogRepository(pool *pgxpool.Pool) *PointsLogRepository {
	return &PointsLogRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PointsLogRepository) WithTx(tx pgx.Tx) *PointsLogRepository {
	return &PointsLogRepository{db: tx}
}

// Append writes one ledger entry.
func (r *PointsLogRepository) Append(ctx context.Context, e *model.PointsLogEntry) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO points_log (student_id, points, source_kind, source_ref)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.StudentID, e.Points, e.SourceKind, e.SourceRef).Scan(&e.ID, &e.CreatedAt)
}

// GetQuizEntry finds the ledger entry for a student's quiz result,
// whether or not a previous recalculation already retagged it.
func (r *PointsLogRepository) GetQuizEntry(ctx context.Context, studentID int, quizID uuid.UUID) (*model.PointsLogEntry, error) {
	e := &model.PointsLogEntry{}
	err := r.db.QueryRow(ctx,
		`SELECT id, student_id, points, source_kind, source_ref, created_at
		 FROM points_log
		 WHERE student_id = $1 AND source_ref = $2 AND source_kind IN ($3, $4)`,
		studentID, quizID.String(), model.PointsSourceQuiz, model.PointsSourceRecalcQuiz).
		Scan(&e.ID, &e.StudentID, &e.Points, &e.SourceKind, &e.SourceRef, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Retag updates an existing entry in place. Recalculation rewrites the
// points and flips the kind to recalc_quiz rather than appending a
// duplicate entry.
func (r *PointsLogRepository) Retag(ctx context.Context, id int64, points float64, kind model.PointsSourceKind) error {
	_, err := r.db.Exec(ctx,
		`UPDATE points_log SET points = $1, source_kind = $2 WHERE id = $3`, points, kind, id)
	return err
}

// DeleteQuizEntries removes a student's ledger entries for one quiz,
// covering both the original and recalculated tags (reversal rule).
func (r *PointsLogRepository) DeleteQuizEntries(ctx context.Context, studentID int, quizID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM points_log
		 WHERE student_id = $1 AND source_ref = $2 AND source_kind IN ($3, $4)`,
		studentID, quizID.String(), model.PointsSourceQuiz, model.PointsSourceRecalcQuiz)
	return err
}

// DeleteBadgeEntries removes a student's ledger entries for one badge,
// the counterpart of explicit badge revocation.
func (r *PointsLogRepository) DeleteBadgeEntries(ctx context.Context, studentID int, badgeName string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM points_log
		 WHERE student_id = $1 AND source_ref = $2 AND source_kind = $3`,
		studentID, badgeName, model.PointsSourceBadge)
	return err
}

// TopStudents returns the highest-scoring students over a window,
// ordered by summed points (weekly leaderboard).
func (r *PointsLogRepository) TopStudents(ctx context.Context, from, to time.Time, limit int) ([]WeeklyRank, error) {
	rows, err := r.db.Query(ctx,
		`SELECT student_id, SUM(points) AS total_points
		 FROM points_log
		 WHERE created_at BETWEEN $1 AND $2
		 GROUP BY student_id
		 ORDER BY total_points DESC
		 LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranks []WeeklyRank
	for rows.Next() {
		var wr WeeklyRank
		if err := rows.Scan(&wr.StudentID, &wr.TotalPoints); err != nil {
			return nil, err
		}
		ranks = append(ranks, wr)
	}
	return ranks, rows.Err()
}
