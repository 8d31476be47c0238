package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
)

const attemptColumns = `id, student_id, quiz_id, status, score, violation_count,
	start_time, end_time, work_started_at, attempted_at`

// AttemptRepository handles quiz attempt data access.
type AttemptRepository struct {
	db Querier
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AttemptRepository) WithTx(tx pgx.Tx) *AttemptRepository {
	return &AttemptRepository{db: tx}
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.StudentID, &a.QuizID, &a.Status, &a.Score,
		&a.ViolationCount, &a.StartTime, &a.EndTime, &a.WorkStartedAt, &a.AttemptedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id))
}

// GetByIDForUpdate retrieves an attempt under a row lock. Must run inside
// a transaction; concurrent violation reports, submits and the sweep
// serialize on this lock.
func (r *AttemptRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1 FOR UPDATE`, id))
}

// GetByQuizAndStudent retrieves the single attempt for a (student, quiz) pair.
func (r *AttemptRepository) GetByQuizAndStudent(ctx context.Context, quizID uuid.UUID, studentID int) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE quiz_id = $1 AND student_id = $2`, quizID, studentID))
}

// Create inserts a new not-started attempt. The unique constraint on
// (student_id, quiz_id) makes concurrent creates collapse to one row;
// pgx.ErrNoRows signals the row already existed.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO quiz_attempts (student_id, quiz_id, status, score, violation_count, end_time)
		 VALUES ($1, $2, $3, 0, 0, $4)
		 ON CONFLICT (student_id, quiz_id) DO NOTHING
		 RETURNING id`,
		a.StudentID, a.QuizID, model.AttemptStatusNotStarted, a.EndTime,
	).Scan(&a.ID)
}

// MarkStarted records the first content fetch: start_time, the
// work-started marker and the computed deadline.
func (r *AttemptRepository) MarkStarted(ctx context.Context, id uuid.UUID, startTime, endTime time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status = $1, start_time = $2, work_started_at = $2, end_time = $3
		 WHERE id = $4`,
		model.AttemptStatusInProgress, startTime, endTime, id)
	return err
}

// ApplyPenalty persists a shortened deadline and the bumped violation count.
func (r *AttemptRepository) ApplyPenalty(ctx context.Context, id uuid.UUID, violationCount int, newEndTime time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts SET violation_count = $1, end_time = $2 WHERE id = $3`,
		violationCount, newEndTime, id)
	return err
}

// SetViolationCount updates only the violation counter (warning path).
func (r *AttemptRepository) SetViolationCount(ctx context.Context, id uuid.UUID, violationCount int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts SET violation_count = $1 WHERE id = $2`, violationCount, id)
	return err
}

// Finalize marks the attempt finished with its final score. attempted_at
// is set here and nowhere else.
func (r *AttemptRepository) Finalize(ctx context.Context, id uuid.UUID, score float64, attemptedAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts SET status = $1, score = $2, attempted_at = $3 WHERE id = $4`,
		model.AttemptStatusFinished, score, attemptedAt, id)
	return err
}

// MarkNotAttempted marks an attempt whose window closed without the
// student ever opening it.
func (r *AttemptRepository) MarkNotAttempted(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts SET status = $1 WHERE id = $2`,
		model.AttemptStatusNotAttempted, id)
	return err
}

// ResetToPristine zeroes a deleted attempt back to an untouched state.
// Used by the admin reversal path.
func (r *AttemptRepository) ResetToPristine(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status = $1, score = 0, violation_count = 0,
		     start_time = NULL, work_started_at = NULL, attempted_at = NULL
		 WHERE id = $2`,
		model.AttemptStatusNotAttempted, id)
	return err
}

// UpdateScore rewrites only the stored score (recalculation path).
func (r *AttemptRepository) UpdateScore(ctx context.Context, id uuid.UUID, score float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts SET score = $1 WHERE id = $2`, score, id)
	return err
}

// ListExpiredIDs returns IDs of attempts whose deadline has passed and
// that were never finally submitted. The sweep locks each one
// individually before acting on it.
func (r *AttemptRepository) ListExpiredIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM quiz_attempts
		 WHERE attempted_at IS NULL AND end_time <= $1 AND status IN ($2, $3)`,
		now, model.AttemptStatusNotStarted, model.AttemptStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByQuiz retrieves all attempts on a quiz (recalculation input).
func (r *AttemptRepository) ListByQuiz(ctx context.Context, quizID uuid.UUID) ([]model.Attempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE quiz_id = $1`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// ListFinishedByStudent retrieves a student's finished attempts, newest first.
func (r *AttemptRepository) ListFinishedByStudent(ctx context.Context, studentID int) ([]model.Attempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE student_id = $1 AND status = $2
		 ORDER BY attempted_at DESC`, studentID, model.AttemptStatusFinished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func collectAttempts(rows pgx.Rows) ([]model.Attempt, error) {
	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.StudentID, &a.QuizID, &a.Status, &a.Score,
			&a.ViolationCount, &a.StartTime, &a.EndTime, &a.WorkStartedAt, &a.AttemptedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CountFinishedByStudent counts a student's finished attempts.
func (r *AttemptRepository) CountFinishedByStudent(ctx context.Context, studentID int) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE student_id = $1 AND status = $2`,
		studentID, model.AttemptStatusFinished).Scan(&n)
	return n, err
}

// CountDistinctFinishedQuizzes counts distinct quizzes the student finished.
func (r *AttemptRepository) CountDistinctFinishedQuizzes(ctx context.Context, studentID int) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT quiz_id) FROM quiz_attempts WHERE student_id = $1 AND status = $2`,
		studentID, model.AttemptStatusFinished).Scan(&n)
	return n, err
}

// SumFinishedScores sums the scores of a student's finished attempts
// (the pure-point component of leveling).
func (r *AttemptRepository) SumFinishedScores(ctx context.Context, studentID int) (float64, error) {
	var sum float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(score), 0) FROM quiz_attempts WHERE student_id = $1 AND status = $2`,
		studentID, model.AttemptStatusFinished).Scan(&sum)
	return sum, err
}

// SumAllScores sums the scores of all of a student's attempts. The
// recalculation engine rebuilds pure_point from this.
func (r *AttemptRepository) SumAllScores(ctx context.Context, studentID int) (float64, error) {
	var sum float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(score), 0) FROM quiz_attempts WHERE student_id = $1`,
		studentID).Scan(&sum)
	return sum, err
}
