package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
)

// QuizRepository handles quiz, question and option data access.
type QuizRepository struct {
	db Querier
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *QuizRepository) WithTx(tx pgx.Tx) *QuizRepository {
	return &QuizRepository{db: tx}
}

const quizColumns = `id, class_id, title, description, duration_minutes, strict, start_at, end_at, is_active`

func scanQuiz(row pgx.Row) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := row.Scan(&q.ID, &q.ClassID, &q.Title, &q.Description,
		&q.DurationMinutes, &q.Strict, &q.Start, &q.End, &q.IsActive)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetByID retrieves a quiz by ID.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	return scanQuiz(r.db.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
}

// GetActiveForClass retrieves a quiz only if it is active and assigned to
// the given class.
func (r *QuizRepository) GetActiveForClass(ctx context.Context, id uuid.UUID, classID int) (*model.Quiz, error) {
	return scanQuiz(r.db.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes
		 WHERE id = $1 AND class_id = $2 AND is_active = TRUE`, id, classID))
}

// Update rewrites a quiz's own fields (not its questions).
func (r *QuizRepository) Update(ctx context.Context, q *model.Quiz) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quizzes
		 SET title = $1, description = $2, duration_minutes = $3, strict = $4,
		     start_at = $5, end_at = $6
		 WHERE id = $7`,
		q.Title, q.Description, q.DurationMinutes, q.Strict, q.Start, q.End, q.ID)
	return err
}

// ActivateInWindow flips quizzes to active whose schedule window contains now.
func (r *QuizRepository) ActivateInWindow(ctx context.Context, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quizzes SET is_active = TRUE
		 WHERE is_active = FALSE AND start_at <= $1 AND end_at >= $1`, now)
	return err
}

// DeactivateEnded flips quizzes to inactive once their window has closed.
func (r *QuizRepository) DeactivateEnded(ctx context.Context, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quizzes SET is_active = FALSE
		 WHERE is_active = TRUE AND end_at <= $1`, now)
	return err
}

// ListActive retrieves all currently active quizzes (sweep provisioning).
func (r *QuizRepository) ListActive(ctx context.Context) ([]model.Quiz, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE is_active = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		var q model.Quiz
		if err := rows.Scan(&q.ID, &q.ClassID, &q.Title, &q.Description,
			&q.DurationMinutes, &q.Strict, &q.Start, &q.End, &q.IsActive); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// ─── Questions ───────────────────────────────────────────────────────

// ListQuestions retrieves all questions of a quiz.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]model.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, quiz_id, text, point FROM questions WHERE quiz_id = $1 ORDER BY created_at`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &q.Point); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateQuestion inserts a question and fills in its generated ID.
func (r *QuizRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO questions (quiz_id, text, point) VALUES ($1, $2, $3) RETURNING id`,
		q.QuizID, q.Text, q.Point).Scan(&q.ID)
}

// UpdateQuestion rewrites a question's text and point value.
func (r *QuizRepository) UpdateQuestion(ctx context.Context, q *model.Question) error {
	_, err := r.db.Exec(ctx,
		`UPDATE questions SET text = $1, point = $2 WHERE id = $3`, q.Text, q.Point, q.ID)
	return err
}

// DeleteQuestion removes a question; its options cascade.
func (r *QuizRepository) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	return err
}

// ─── Options ─────────────────────────────────────────────────────────

// GetOption retrieves a single option (scoring correctness check).
func (r *QuizRepository) GetOption(ctx context.Context, id uuid.UUID) (*model.Option, error) {
	o := &model.Option{}
	err := r.db.QueryRow(ctx,
		`SELECT id, question_id, text, is_correct FROM options WHERE id = $1`, id).
		Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOptionsByQuiz retrieves all options of all questions of a quiz.
func (r *QuizRepository) ListOptionsByQuiz(ctx context.Context, quizID uuid.UUID) ([]model.Option, error) {
	rows, err := r.db.Query(ctx,
		`SELECT o.id, o.question_id, o.text, o.is_correct
		 FROM options o
		 JOIN questions q ON q.id = o.question_id
		 WHERE q.quiz_id = $1
		 ORDER BY o.created_at`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []model.Option
	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// CreateOption inserts an option and fills in its generated ID.
func (r *QuizRepository) CreateOption(ctx context.Context, o *model.Option) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO options (question_id, text, is_correct) VALUES ($1, $2, $3) RETURNING id`,
		o.QuestionID, o.Text, o.IsCorrect).Scan(&o.ID)
}

// UpdateOption rewrites an option's text and correctness flag.
func (r *QuizRepository) UpdateOption(ctx context.Context, o *model.Option) error {
	_, err := r.db.Exec(ctx,
		`UPDATE options SET text = $1, is_correct = $2 WHERE id = $3`, o.Text, o.IsCorrect, o.ID)
	return err
}

// DeleteOption removes an option.
func (r *QuizRepository) DeleteOption(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM options WHERE id = $1`, id)
	return err
}

// GetQuestionKeys builds the grading view of a quiz: every question with
// its point value and currently-correct option set. Questions without a
// correct option still appear (they simply can never score).
func (r *QuizRepository) GetQuestionKeys(ctx context.Context, quizID uuid.UUID) ([]model.QuestionKey, error) {
	rows, err := r.db.Query(ctx,
		`SELECT q.id, q.point, o.id
		 FROM questions q
		 LEFT JOIN options o ON o.question_id = q.id AND o.is_correct = TRUE
		 WHERE q.quiz_id = $1
		 ORDER BY q.created_at`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.QuestionKey
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var qid uuid.UUID
		var point float64
		var optID *uuid.UUID
		if err := rows.Scan(&qid, &point, &optID); err != nil {
			return nil, err
		}
		i, ok := index[qid]
		if !ok {
			i = len(keys)
			index[qid] = i
			keys = append(keys, model.QuestionKey{ID: qid, Point: point})
		}
		if optID != nil {
			keys[i].CorrectOptionIDs = append(keys[i].CorrectOptionIDs, *optID)
		}
	}
	return keys, rows.Err()
}
