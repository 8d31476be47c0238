package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/lentera-edu/lentera-backend/internal/config"
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPayloadFixture(questions, optionsPerQuestion int) *model.QuizPayload {
	p := &model.QuizPayload{QuizID: uuid.New(), Title: "Ujian Harian"}
	for i := 0; i < questions; i++ {
		q := model.PayloadQuestion{ID: uuid.New(), Text: "q", Point: 10}
		for j := 0; j < optionsPerQuestion; j++ {
			q.Options = append(q.Options, model.PayloadOption{ID: uuid.New(), Text: "o"})
		}
		p.Questions = append(p.Questions, q)
	}
	return p
}

func TestShufflePayload_PreservesContent(t *testing.T) {
	p := buildPayloadFixture(8, 4)

	wantQuestions := make([]uuid.UUID, 0, len(p.Questions))
	wantOptions := make(map[uuid.UUID][]uuid.UUID)
	for _, q := range p.Questions {
		wantQuestions = append(wantQuestions, q.ID)
		for _, o := range q.Options {
			wantOptions[q.ID] = append(wantOptions[q.ID], o.ID)
		}
	}

	shufflePayload(p)

	gotQuestions := make([]uuid.UUID, 0, len(p.Questions))
	for _, q := range p.Questions {
		gotQuestions = append(gotQuestions, q.ID)
		gotOptions := make([]uuid.UUID, 0, len(q.Options))
		for _, o := range q.Options {
			gotOptions = append(gotOptions, o.ID)
		}
		assert.ElementsMatch(t, wantOptions[q.ID], gotOptions, "options must stay with their question")
	}
	assert.ElementsMatch(t, wantQuestions, gotQuestions)
}

func TestShufflePayload_EmptyPayload(t *testing.T) {
	p := &model.QuizPayload{QuizID: uuid.New()}
	assert.NotPanics(t, func() { shufflePayload(p) })
}

// Cache hit must never reach the database: the service is built without a
// pool here, so any fallthrough would panic.
func TestGetPayload_CacheHit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cached := buildPayloadFixture(3, 4)
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	key := config.CacheKey.QuizPayloadKey(cached.QuizID.String())
	require.NoError(t, rdb.Set(context.Background(), key, raw, time.Hour).Err())

	s := &QuizService{rdb: rdb, log: zerolog.Nop()}
	got, err := s.GetPayload(context.Background(), cached.QuizID)
	require.NoError(t, err)

	assert.Equal(t, cached.QuizID, got.QuizID)
	assert.Len(t, got.Questions, 3)

	wantIDs := make([]uuid.UUID, 0, 3)
	for _, q := range cached.Questions {
		wantIDs = append(wantIDs, q.ID)
	}
	gotIDs := make([]uuid.UUID, 0, 3)
	for _, q := range got.Questions {
		gotIDs = append(gotIDs, q.ID)
	}
	assert.ElementsMatch(t, wantIDs, gotIDs)
}

func TestInvalidatePayload(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	quizID := uuid.New()
	key := config.CacheKey.QuizPayloadKey(quizID.String())
	require.NoError(t, rdb.Set(context.Background(), key, "{}", time.Hour).Err())

	s := &QuizService{rdb: rdb, log: zerolog.Nop()}
	s.invalidatePayload(context.Background(), quizID)

	err := rdb.Get(context.Background(), key).Err()
	assert.ErrorIs(t, err, redis.Nil)
}
