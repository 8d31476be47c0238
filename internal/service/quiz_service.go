package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
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
	ErrQuestionNotInQuiz   = errors.New("question does not belong to this quiz")
	ErrOptionNotInQuestion = errors.New("option does not belong to this question")
)

const quizPayloadTTL = time.Hour

// UpdateQuizResult reports what an admin edit ended up doing.
type UpdateQuizResult struct {
	Structural           bool `json:"structural"`
	RecalculatedAttempts int  `json:"recalculated_attempts"`
}

// QuizService serves the student-facing quiz payload through a Redis
// read-through cache and applies admin content edits, triggering score
// recalculation when an edit changes grading.
type QuizService struct {
	pool        *pgxpool.Pool
	quizRepo    *repository.QuizRepository
	attemptRepo *repository.AttemptRepository
	recalc      *RecalcService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	pool *pgxpool.Pool,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	recalc *RecalcService,
	rdb *redis.Client,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		pool:        pool,
		quizRepo:    quizRepo,
		attemptRepo: attemptRepo,
		recalc:      recalc,
		rdb:         rdb,
		log:         log.With().Str("component", "quiz_service").Logger(),
	}
}

// GetByID retrieves a quiz by its UUID.
func (s *QuizService) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	return s.quizRepo.GetByID(ctx, id)
}

// GetPayload returns the student-facing payload for a quiz, shuffled per
// call. Cache miss falls through to PostgreSQL and warms the cache.
func (s *QuizService) GetPayload(ctx context.Context, quizID uuid.UUID) (*model.QuizPayload, error) {
	key := config.CacheKey.QuizPayloadKey(quizID.String())

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var payload model.QuizPayload
		if err := json.Unmarshal(data, &payload); err == nil {
			shufflePayload(&payload)
			return &payload, nil
		}
		// Corrupt cache entry. Rebuild below.
		s.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("payload cache read failed, falling back to db")
	}

	payload, err := s.buildPayload(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(payload); err == nil {
		if err := s.rdb.Set(ctx, key, raw, quizPayloadTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("warm payload cache")
		}
	}

	shufflePayload(payload)
	return payload, nil
}

func (s *QuizService) buildPayload(ctx context.Context, quizID uuid.UUID) (*model.QuizPayload, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.quizRepo.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	options, err := s.quizRepo.ListOptionsByQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	optionsByQuestion := make(map[uuid.UUID][]model.PayloadOption)
	for _, o := range options {
		optionsByQuestion[o.QuestionID] = append(optionsByQuestion[o.QuestionID], model.PayloadOption{
			ID:   o.ID,
			Text: o.Text,
		})
	}

	payload := &model.QuizPayload{
		QuizID:          quiz.ID,
		Title:           quiz.Title,
		Description:     quiz.Description,
		DurationMinutes: quiz.DurationMinutes,
		Strict:          quiz.Strict,
	}
	for _, q := range questions {
		payload.Questions = append(payload.Questions, model.PayloadQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Point:   q.Point,
			Options: optionsByQuestion[q.ID],
		})
	}
	return payload, nil
}

// shufflePayload randomizes question and option order in place. Runs on
// every fetch so two students never see the same ordering.
func shufflePayload(p *model.QuizPayload) {
	rand.Shuffle(len(p.Questions), func(i, j int) {
		p.Questions[i], p.Questions[j] = p.Questions[j], p.Questions[i]
	})
	for qi := range p.Questions {
		opts := p.Questions[qi].Options
		rand.Shuffle(len(opts), func(i, j int) {
			opts[i], opts[j] = opts[j], opts[i]
		})
	}
}

// Update applies an admin content edit as one transaction. Entries with
// an ID update existing rows, entries without one create rows, and rows
// absent from the payload are deleted. If anything that affects grading
// changed (questions or options added or removed, point values,
// correctness flags), every finished attempt is recalculated in the same
// transaction. Text-only edits never trigger recalculation.
func (s *QuizService) Update(ctx context.Context, quizID uuid.UUID, req *model.UpdateQuizRequest) (*UpdateQuizResult, error) {
	result := &UpdateQuizResult{}

	err := repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		quizRepo := s.quizRepo.WithTx(tx)

		quiz, err := quizRepo.GetByID(ctx, quizID)
		if err != nil {
			return err
		}

		quiz.Title = req.Title
		quiz.Description = req.Description
		quiz.DurationMinutes = req.DurationMinutes
		quiz.Strict = req.Strict
		quiz.Start = req.Start
		quiz.End = req.End
		if err := quizRepo.Update(ctx, quiz); err != nil {
			return fmt.Errorf("update quiz: %w", err)
		}

		structural, err := s.applyContentDiff(ctx, quizRepo, quizID, req.Questions)
		if err != nil {
			return err
		}
		result.Structural = structural

		if structural {
			changed, err := s.recalc.Recalculate(ctx, tx, quizID)
			if err != nil {
				return fmt.Errorf("recalculate: %w", err)
			}
			result.RecalculatedAttempts = changed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidatePayload(ctx, quizID)
	return result, nil
}

// applyContentDiff reconciles the stored questions and options with the
// request and reports whether grading-relevant structure changed.
func (s *QuizService) applyContentDiff(ctx context.Context, quizRepo *repository.QuizRepository, quizID uuid.UUID, reqQuestions []model.UpdateQuestionRequest) (bool, error) {
	existing, err := quizRepo.ListQuestions(ctx, quizID)
	if err != nil {
		return false, fmt.Errorf("list questions: %w", err)
	}
	existingOptions, err := quizRepo.ListOptionsByQuiz(ctx, quizID)
	if err != nil {
		return false, fmt.Errorf("list options: %w", err)
	}

	existingByID := make(map[uuid.UUID]model.Question, len(existing))
	for _, q := range existing {
		existingByID[q.ID] = q
	}
	optionsByQuestion := make(map[uuid.UUID]map[uuid.UUID]model.Option)
	for _, o := range existingOptions {
		if optionsByQuestion[o.QuestionID] == nil {
			optionsByQuestion[o.QuestionID] = make(map[uuid.UUID]model.Option)
		}
		optionsByQuestion[o.QuestionID][o.ID] = o
	}

	structural := false
	keptQuestions := make(map[uuid.UUID]bool)

	for _, rq := range reqQuestions {
		if rq.ID == nil {
			q := &model.Question{QuizID: quizID, Text: rq.Text, Point: rq.Point}
			if err := quizRepo.CreateQuestion(ctx, q); err != nil {
				return false, fmt.Errorf("create question: %w", err)
			}
			for _, ro := range rq.Options {
				o := &model.Option{QuestionID: q.ID, Text: ro.Text, IsCorrect: ro.IsCorrect}
				if err := quizRepo.CreateOption(ctx, o); err != nil {
					return false, fmt.Errorf("create option: %w", err)
				}
			}
			structural = true
			continue
		}

		old, ok := existingByID[*rq.ID]
		if !ok {
			return false, ErrQuestionNotInQuiz
		}
		keptQuestions[old.ID] = true

		if old.Point != rq.Point {
			structural = true
		}
		if old.Text != rq.Text || old.Point != rq.Point {
			updated := old
			updated.Text = rq.Text
			updated.Point = rq.Point
			if err := quizRepo.UpdateQuestion(ctx, &updated); err != nil {
				return false, fmt.Errorf("update question: %w", err)
			}
		}

		optStructural, err := s.applyOptionDiff(ctx, quizRepo, old.ID, optionsByQuestion[old.ID], rq.Options)
		if err != nil {
			return false, err
		}
		structural = structural || optStructural
	}

	for _, q := range existing {
		if !keptQuestions[q.ID] {
			if err := quizRepo.DeleteQuestion(ctx, q.ID); err != nil {
				return false, fmt.Errorf("delete question: %w", err)
			}
			structural = true
		}
	}

	return structural, nil
}

func (s *QuizService) applyOptionDiff(ctx context.Context, quizRepo *repository.QuizRepository, questionID uuid.UUID, existing map[uuid.UUID]model.Option, reqOptions []model.UpdateOptionRequest) (bool, error) {
	structural := false
	kept := make(map[uuid.UUID]bool)

	for _, ro := range reqOptions {
		if ro.ID == nil {
			o := &model.Option{QuestionID: questionID, Text: ro.Text, IsCorrect: ro.IsCorrect}
			if err := quizRepo.CreateOption(ctx, o); err != nil {
				return false, fmt.Errorf("create option: %w", err)
			}
			structural = true
			continue
		}

		old, ok := existing[*ro.ID]
		if !ok {
			return false, ErrOptionNotInQuestion
		}
		kept[old.ID] = true

		if old.IsCorrect != ro.IsCorrect {
			structural = true
		}
		if old.Text != ro.Text || old.IsCorrect != ro.IsCorrect {
			updated := old
			updated.Text = ro.Text
			updated.IsCorrect = ro.IsCorrect
			if err := quizRepo.UpdateOption(ctx, &updated); err != nil {
				return false, fmt.Errorf("update option: %w", err)
			}
		}
	}

	for id := range existing {
		if !kept[id] {
			if err := quizRepo.DeleteOption(ctx, id); err != nil {
				return false, fmt.Errorf("delete option: %w", err)
			}
			structural = true
		}
	}

	return structural, nil
}

// invalidatePayload drops the cached payload after an edit so the next
// fetch rebuilds it.
func (s *QuizService) invalidatePayload(ctx context.Context, quizID uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.QuizPayloadKey(quizID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("invalidate payload cache")
	}
}

// ListAttempts returns every attempt on a quiz for the admin results view.
func (s *QuizService) ListAttempts(ctx context.Context, quizID uuid.UUID) ([]model.Attempt, error) {
	return s.attemptRepo.ListByQuiz(ctx, quizID)
}
