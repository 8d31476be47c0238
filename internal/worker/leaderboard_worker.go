package worker

import (
	"context"
	"time"

	"github.com/lentera-edu/lentera-backend/internal/service"
	"github.com/rs/zerolog"
)

// LeaderboardWorker awards the weekly Top Rank badges every Saturday
// evening, covering the Monday-to-Saturday ledger window.
type LeaderboardWorker struct {
	gamification *service.GamificationService
	log          zerolog.Logger
}

// NewLeaderboardWorker creates a new LeaderboardWorker.
func NewLeaderboardWorker(gamification *service.GamificationService, log zerolog.Logger) *LeaderboardWorker {
	return &LeaderboardWorker{
		gamification: gamification,
		log:          log.With().Str("component", "leaderboard_worker").Logger(),
	}
}

// Start begins the weekly loop. Call in a goroutine.
func (w *LeaderboardWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		wait := untilNextSaturdayEvening(time.Now())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("Worker stopped")
			return
		case <-timer.C:
			if err := w.gamification.AwardWeeklyTopRanks(ctx); err != nil {
				w.log.Error().Err(err).Msg("award weekly top ranks")
			}
		}
	}
}

// untilNextSaturdayEvening returns the duration to the next Saturday at
// 23:55 local time.
func untilNextSaturdayEvening(now time.Time) time.Duration {
	daysAhead := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day(), 23, 55, 0, 0, now.Location()).AddDate(0, 0, daysAhead)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next.Sub(now)
}
