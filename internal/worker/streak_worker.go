package worker

import (
	"context"
	"time"

	"github.com/lentera-edu/lentera-backend/internal/service"
	"github.com/rs/zerolog"
)

// StreakWorker resets lapsed submission streaks shortly after midnight,
// once per day.
type StreakWorker struct {
	gamification *service.GamificationService
	log          zerolog.Logger
}

// NewStreakWorker creates a new StreakWorker.
func NewStreakWorker(gamification *service.GamificationService, log zerolog.Logger) *StreakWorker {
	return &StreakWorker{
		gamification: gamification,
		log:          log.With().Str("component", "streak_worker").Logger(),
	}
}

// Start begins the nightly loop. Call in a goroutine.
func (w *StreakWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		wait := untilNextMidnight(time.Now())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("Worker stopped")
			return
		case <-timer.C:
			if err := w.gamification.ResetLapsedStreaks(ctx); err != nil {
				w.log.Error().Err(err).Msg("reset lapsed streaks")
			}
		}
	}
}

// untilNextMidnight returns the duration to 00:05 of the next day. The
// five-minute offset keeps the lapse check clear of same-day submissions
// racing the clock rollover.
func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
