package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
)

const studentColumns = `user_id, username, name, password_hash, class_id,
	streak_count, last_submission_date, level, pure_point`

// StudentRepository handles student data access.
type StudentRepository struct {
	db Querier
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *StudentRepository) WithTx(tx pgx.Tx) *StudentRepository {
	return &StudentRepository{db: tx}
}

func scanStudent(row pgx.Row) (*model.Student, error) {
	s := &model.Student{}
	err := row.Scan(&s.UserID, &s.Username, &s.Name, &s.PasswordHash, &s.ClassID,
		&s.StreakCount, &s.LastSubmissionDate, &s.Level, &s.PurePoint)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a student by user ID.
func (r *StudentRepository) GetByID(ctx context.Context, userID int) (*model.Student, error) {
	return scanStudent(r.db.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE user_id = $1`, userID))
}

// GetByUsername retrieves a student by login username.
func (r *StudentRepository) GetByUsername(ctx context.Context, username string) (*model.Student, error) {
	return scanStudent(r.db.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE username = $1`, username))
}

// ListIDsByClass returns the user IDs of all students in a class.
func (r *StudentRepository) ListIDsByClass(ctx context.Context, classID int) ([]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM students WHERE class_id = $1`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateStreak persists a new streak count and last submission date.
func (r *StudentRepository) UpdateStreak(ctx context.Context, userID, streak int, lastDate *time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE students SET streak_count = $1, last_submission_date = $2 WHERE user_id = $3`,
		streak, lastDate, userID)
	return err
}

// UpdateLevel persists a new level. Levels only ever increase.
func (r *StudentRepository) UpdateLevel(ctx context.Context, userID, level int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE students SET level = $1 WHERE user_id = $2`, level, userID)
	return err
}

// SetPurePoint overwrites the cached pure-point total (recalculation).
func (r *StudentRepository) SetPurePoint(ctx context.Context, userID int, points float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE students SET pure_point = $1 WHERE user_id = $2`, points, userID)
	return err
}

// AddPurePoint adjusts the cached pure-point total by a signed delta
// (attempt deletion reversal uses a negative delta).
func (r *StudentRepository) AddPurePoint(ctx context.Context, userID int, delta float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE students SET pure_point = pure_point + $1 WHERE user_id = $2`, delta, userID)
	return err
}

// ListWithActiveStreaks returns students whose streak may need the
// nightly lapse check.
func (r *StudentRepository) ListWithActiveStreaks(ctx context.Context) ([]model.Student, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+studentColumns+` FROM students
		 WHERE streak_count > 0 AND last_submission_date IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.UserID, &s.Username, &s.Name, &s.PasswordHash, &s.ClassID,
			&s.StreakCount, &s.LastSubmissionDate, &s.Level, &s.PurePoint); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// ClearStreak zeroes a lapsed streak (nightly sweep).
func (r *StudentRepository) ClearStreak(ctx context.Context, userID int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE students SET streak_count = 0, last_submission_date = NULL WHERE user_id = $1`, userID)
	return err
}
