package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
)

// FinalAnswerRepository handles the permanent record of submitted
// selections. Rows are written once at submission and never updated.
type FinalAnswerRepository struct {
	db Querier
}

// NewFinalAnswerRepository creates a new FinalAnswerRepository.
func NewFinalAnswerRepository(pool *pgxpool.Pool) *FinalAnswerRepository {
	return &FinalAnswerRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *FinalAnswerRepository) WithTx(tx pgx.Tx) *FinalAnswerRepository {
	return &FinalAnswerRepository{db: tx}
}

// Insert writes one final answer row.
func (r *FinalAnswerRepository) Insert(ctx context.Context, fa *model.FinalAnswer) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO final_answers (attempt_id, question_id, option_id)
		 VALUES ($1, $2, $3)`,
		fa.AttemptID, fa.QuestionID, fa.OptionID)
	return err
}

// ListByAttempt retrieves all final answers for an attempt.
func (r *FinalAnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.FinalAnswer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT attempt_id, question_id, option_id, created_at
		 FROM final_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.FinalAnswer
	for rows.Next() {
		var fa model.FinalAnswer
		if err := rows.Scan(&fa.AttemptID, &fa.QuestionID, &fa.OptionID, &fa.CreatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, fa)
	}
	return answers, rows.Err()
}

// MapSelections returns question → selected option for an attempt,
// used when replaying answers during recalculation.
func (r *FinalAnswerRepository) MapSelections(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]*uuid.UUID, error) {
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

// DeleteByAttempt removes an attempt's final answers (admin reversal path).
func (r *FinalAnswerRepository) DeleteByAttempt(ctx context.Context, attemptID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM final_answers WHERE attempt_id = $1`, attemptID)
	return err
}
