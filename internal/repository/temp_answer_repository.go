package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
)

// TempAnswerRepository handles provisional answer storage. Rows live only
// until the attempt finalizes.
type TempAnswerRepository struct {
	db Querier
}

// NewTempAnswerRepository creates a new TempAnswerRepository.
func NewTempAnswerRepository(pool *pgxpool.Pool) *TempAnswerRepository {
	return &TempAnswerRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TempAnswerRepository) WithTx(tx pgx.Tx) *TempAnswerRepository {
	return &TempAnswerRepository{db: tx}
}

// Upsert saves a selection, replacing any prior one for the same
// (attempt, question). Idempotent per question, so no attempt-level lock.
func (r *TempAnswerRepository) Upsert(ctx context.Context, ta *model.TempAnswer) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO temp_answers (attempt_id, question_id, option_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET option_id = EXCLUDED.option_id`,
		ta.AttemptID, ta.QuestionID, ta.OptionID)
	return err
}

// ListByAttempt retrieves all provisional answers for an attempt.
func (r *TempAnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.TempAnswer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT attempt_id, question_id, option_id
		 FROM temp_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.TempAnswer
	for rows.Next() {
		var ta model.TempAnswer
		if err := rows.Scan(&ta.AttemptID, &ta.QuestionID, &ta.OptionID); err != nil {
			return nil, err
		}
		answers = append(answers, ta)
	}
	return answers, rows.Err()
}

// MapSelections returns question → selected option for an attempt.
func (r *TempAnswerRepository) MapSelections(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]*uuid.UUID, error) {
	answers, err := r.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	selections := make(map[uuid.UUID]*uuid.UUID, len(answers))
	for i := range answers {
		selections[answers[i].QuestionID] = answers[i].OptionID
	}
	return selections, nil
}

// DeleteByAttempt purges all provisional answers for an attempt.
func (r *TempAnswerRepository) DeleteByAttempt(ctx context.Context, attemptID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM temp_answers WHERE attempt_id = $1`, attemptID)
	return err
}
