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
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/lentera-edu/lentera-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrQuizNotAvailable   = errors.New("quiz is not active or not assigned to this class")
	ErrAttemptFinished    = errors.New("attempt has already been submitted")
	ErrAttemptNotFinished = errors.New("attempt has not been submitted")
)

// ReviewOption is one answer choice in a finished-attempt review,
// correctness revealed.
type ReviewOption struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	IsCorrect bool      `json:"is_correct"`
}

// ReviewQuestion pairs a question with the student's submitted selection.
type ReviewQuestion struct {
	ID               uuid.UUID      `json:"id"`
	Text             string         `json:"text"`
	Point            float64        `json:"point"`
	Options          []ReviewOption `json:"options"`
	SelectedOptionID *uuid.UUID     `json:"selected_option_id"`
	IsCorrect        bool           `json:"is_correct"`
}

// AttemptReview is a finished attempt with its full answer breakdown.
// CorrectCount is evaluated against the current answer keys, so it can
// differ from the stored score after a content edit.
type AttemptReview struct {
	Attempt      model.Attempt    `json:"attempt"`
	QuizTitle    string           `json:"quiz_title"`
	Duration     string           `json:"duration"`
	CorrectCount int              `json:"correct_count"`
	Questions    []ReviewQuestion `json:"questions"`
}

// AttemptService owns the attempt lifecycle: provisioning, starting,
// provisional answers, submission and the admin reversal path.
type AttemptService struct {
	pool        *pgxpool.Pool
	attemptRepo *repository.AttemptRepository
	tempRepo    *repository.TempAnswerRepository
	finalRepo   *repository.FinalAnswerRepository
	quizRepo    *repository.QuizRepository
	studentRepo *repository.StudentRepository
	pointsRepo  *repository.PointsLogRepository
	scoring     *ScoringService
	rdb         *redis.Client
	log         zerolog.Logger
	now         func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	pool *pgxpool.Pool,
	attemptRepo *repository.AttemptRepository,
	tempRepo *repository.TempAnswerRepository,
	finalRepo *repository.FinalAnswerRepository,
	quizRepo *repository.QuizRepository,
	studentRepo *repository.StudentRepository,
	pointsRepo *repository.PointsLogRepository,
	scoring *ScoringService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		pool:        pool,
		attemptRepo: attemptRepo,
		tempRepo:    tempRepo,
		finalRepo:   finalRepo,
		quizRepo:    quizRepo,
		studentRepo: studentRepo,
		pointsRepo:  pointsRepo,
		scoring:     scoring,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
	}
}

// Start finds or creates the student's attempt on an active quiz. The
// clock does not start here; it starts on the first content fetch.
func (s *AttemptService) Start(ctx context.Context, quizID uuid.UUID, studentID, classID int) (*model.Attempt, error) {
	quiz, err := s.quizRepo.GetActiveForClass(ctx, quizID, classID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotAvailable
		}
		return nil, err
	}

	attempt := &model.Attempt{StudentID: studentID, QuizID: quizID, EndTime: quiz.End}
	err = s.attemptRepo.Create(ctx, attempt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		// Lost the race or the sweep already provisioned the row.
		attempt, err = s.attemptRepo.GetByQuizAndStudent(ctx, quizID, studentID)
		if err != nil {
			return nil, err
		}
	} else {
		attempt.Status = model.AttemptStatusNotStarted
	}

	if attempt.Finished() {
		return nil, ErrAttemptFinished
	}
	return attempt, nil
}

// Get retrieves an attempt with an ownership check.
func (s *AttemptService) Get(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}
	return attempt, nil
}

// OpenPaper returns the attempt together with its quiz for the content
// fetch. The first open starts the clock: start_time is set and the
// deadline becomes quiz end or start plus duration, whichever is sooner.
func (s *AttemptService) OpenPaper(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Attempt, *model.Quiz, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != studentID {
		return nil, nil, ErrNotAttemptOwner
	}
	if attempt.Finished() {
		return nil, nil, ErrAttemptFinished
	}

	quiz, err := s.quizRepo.GetByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, nil, err
	}

	if attempt.StartTime == nil {
		startTime := s.now()
		endTime := startTime.Add(time.Duration(quiz.DurationMinutes) * time.Minute)
		if quiz.End.Before(endTime) {
			endTime = quiz.End
		}
		if err := s.attemptRepo.MarkStarted(ctx, attempt.ID, startTime, endTime); err != nil {
			return nil, nil, err
		}
		attempt.Status = model.AttemptStatusInProgress
		attempt.StartTime = &startTime
		attempt.WorkStartedAt = &startTime
		attempt.EndTime = endTime
	}

	return attempt, quiz, nil
}

// SaveTempAnswer upserts one provisional selection. A nil option clears
// the question.
func (s *AttemptService) SaveTempAnswer(ctx context.Context, attemptID uuid.UUID, studentID int, req *model.SaveTempAnswerRequest) error {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.StudentID != studentID {
		return ErrNotAttemptOwner
	}
	if attempt.Finished() {
		return ErrAttemptFinished
	}

	return s.tempRepo.Upsert(ctx, &model.TempAnswer{
		AttemptID:  attemptID,
		QuestionID: req.QuestionID,
		OptionID:   req.OptionID,
	})
}

// GetTempAnswers returns the attempt's current provisional selections,
// used to restore the sheet after a reload.
func (s *AttemptService) GetTempAnswers(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Attempt, []model.TempAnswer, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != studentID {
		return nil, nil, ErrNotAttemptOwner
	}

	answers, err := s.tempRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, answers, nil
}

// Submit finalizes the attempt through the scoring engine. A repeat
// submit is rejected unless force is set, in which case the engine's
// idempotency turns it into a skip result.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, studentID int, force bool) (*SubmissionResult, error) {
	var result *SubmissionResult
	err := repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		attempt, err := s.attemptRepo.WithTx(tx).GetByIDForUpdate(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.StudentID != studentID {
			return ErrNotAttemptOwner
		}
		if attempt.Finished() && !force {
			return ErrAttemptFinished
		}

		result, err = s.scoring.ProcessSubmission(ctx, tx, attempt)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !result.Skipped {
		s.publishFinished(ctx, attemptID, result)
	}
	return result, nil
}

// FinalizeExpired closes out every attempt whose deadline has passed:
// opened ones run through scoring, never-opened ones are marked not
// attempted. Called by the sweep worker. Returns how many were closed.
func (s *AttemptService) FinalizeExpired(ctx context.Context) (int, error) {
	ids, err := s.attemptRepo.ListExpiredIDs(ctx, s.now())
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		err := repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
			attempt, err := s.attemptRepo.WithTx(tx).GetByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if attempt.Finished() {
				return nil
			}
			if attempt.StartTime == nil {
				return s.attemptRepo.WithTx(tx).MarkNotAttempted(ctx, attempt.ID)
			}
			_, err = s.scoring.ProcessSubmission(ctx, tx, attempt)
			return err
		})
		if err != nil {
			s.log.Error().Err(err).Str("attempt_id", id.String()).Msg("finalize expired attempt")
			continue
		}
		closed++
	}
	return closed, nil
}

// ProvisionAttempts creates missing attempt rows for every student whose
// class has an active quiz, so the sweep can later mark the quiz as not
// attempted for students who never opened it.
func (s *AttemptService) ProvisionAttempts(ctx context.Context) error {
	quizzes, err := s.quizRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, quiz := range quizzes {
		studentIDs, err := s.studentRepo.ListIDsByClass(ctx, quiz.ClassID)
		if err != nil {
			return err
		}
		for _, studentID := range studentIDs {
			attempt := &model.Attempt{StudentID: studentID, QuizID: quiz.ID, EndTime: quiz.End}
			if err := s.attemptRepo.Create(ctx, attempt); err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("provision attempt quiz=%s student=%d: %w", quiz.ID, studentID, err)
			}
		}
	}
	return nil
}

// Review builds the answer breakdown for all of a student's finished
// attempts. Correctness is evaluated against the current keys; the
// stored score is reported as-is.
func (s *AttemptService) Review(ctx context.Context, studentID int) ([]AttemptReview, error) {
	attempts, err := s.attemptRepo.ListFinishedByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	reviews := make([]AttemptReview, 0, len(attempts))
	for _, attempt := range attempts {
		review, err := s.buildReview(ctx, attempt)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *review)
	}
	return reviews, nil
}

func (s *AttemptService) buildReview(ctx context.Context, attempt model.Attempt) (*AttemptReview, error) {
	quiz, err := s.quizRepo.GetByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.quizRepo.ListQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	options, err := s.quizRepo.ListOptionsByQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	selections, err := s.finalRepo.MapSelections(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	optionsByQuestion := make(map[uuid.UUID][]ReviewOption)
	correctByQuestion := make(map[uuid.UUID]map[uuid.UUID]bool)
	for _, o := range options {
		optionsByQuestion[o.QuestionID] = append(optionsByQuestion[o.QuestionID], ReviewOption{
			ID:        o.ID,
			Text:      o.Text,
			IsCorrect: o.IsCorrect,
		})
		if o.IsCorrect {
			if correctByQuestion[o.QuestionID] == nil {
				correctByQuestion[o.QuestionID] = make(map[uuid.UUID]bool)
			}
			correctByQuestion[o.QuestionID][o.ID] = true
		}
	}

	review := &AttemptReview{
		Attempt:   attempt,
		QuizTitle: quiz.Title,
	}
	if attempt.WorkStartedAt != nil && attempt.AttemptedAt != nil {
		review.Duration = formatDuration(attempt.AttemptedAt.Sub(*attempt.WorkStartedAt).Milliseconds())
	}

	for _, q := range questions {
		rq := ReviewQuestion{
			ID:               q.ID,
			Text:             q.Text,
			Point:            q.Point,
			Options:          optionsByQuestion[q.ID],
			SelectedOptionID: selections[q.ID],
		}
		if rq.SelectedOptionID != nil && correctByQuestion[q.ID][*rq.SelectedOptionID] {
			rq.IsCorrect = true
			review.CorrectCount++
		}
		review.Questions = append(review.Questions, rq)
	}
	return review, nil
}

// Delete reverses a finished attempt: final answers and quiz ledger
// entries are removed, the cached pure points drop by the stored score
// and the attempt row resets. Badges earned from the attempt are kept.
func (s *AttemptService) Delete(ctx context.Context, quizID uuid.UUID, studentID int) error {
	return repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		attemptRepo := s.attemptRepo.WithTx(tx)

		attempt, err := attemptRepo.GetByQuizAndStudent(ctx, quizID, studentID)
		if err != nil {
			return err
		}
		attempt, err = attemptRepo.GetByIDForUpdate(ctx, attempt.ID)
		if err != nil {
			return err
		}
		if !attempt.Finished() {
			return ErrAttemptNotFinished
		}

		if err := s.finalRepo.WithTx(tx).DeleteByAttempt(ctx, attempt.ID); err != nil {
			return fmt.Errorf("delete final answers: %w", err)
		}
		if err := s.pointsRepo.WithTx(tx).DeleteQuizEntries(ctx, studentID, quizID); err != nil {
			return fmt.Errorf("delete ledger entries: %w", err)
		}
		if err := s.studentRepo.WithTx(tx).AddPurePoint(ctx, studentID, -attempt.Score); err != nil {
			return fmt.Errorf("reverse pure points: %w", err)
		}
		if err := attemptRepo.ResetToPristine(ctx, attempt.ID); err != nil {
			return fmt.Errorf("reset attempt: %w", err)
		}
		return nil
	})
}

// publishFinished pushes a completion event to the attempt's live
// channel so an open stream can close cleanly.
func (s *AttemptService) publishFinished(ctx context.Context, attemptID uuid.UUID, result *SubmissionResult) {
	payload, err := json.Marshal(map[string]any{
		"type":   "finished",
		"result": result,
	})
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.AttemptEventChannel(attemptID.String()), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("publish finished event")
	}
}
