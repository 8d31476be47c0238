package worker

import (
	"context"
	"time"

	"github.com/lentera-edu/lentera-backend/internal/repository"
	"github.com/lentera-edu/lentera-backend/internal/service"
	"github.com/rs/zerolog"
)

// SweepWorker is the minute heartbeat of the quiz lifecycle: it flips
// quiz activation with the schedule window, provisions attempt rows for
// newly active quizzes and closes out attempts whose deadline passed.
type SweepWorker struct {
	quizRepo       *repository.QuizRepository
	attemptService *service.AttemptService
	interval       time.Duration
	log            zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(
	quizRepo *repository.QuizRepository,
	attemptService *service.AttemptService,
	interval time.Duration,
	log zerolog.Logger,
) *SweepWorker {
	return &SweepWorker{
		quizRepo:       quizRepo,
		attemptService: attemptService,
		interval:       interval,
		log:            log.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// One pass immediately so a restart never leaves expired attempts
	// hanging for a full interval.
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	now := time.Now()

	if err := w.quizRepo.ActivateInWindow(ctx, now); err != nil {
		w.log.Error().Err(err).Msg("activate quizzes")
	}

	if err := w.attemptService.ProvisionAttempts(ctx); err != nil {
		w.log.Error().Err(err).Msg("provision attempts")
	}

	closed, err := w.attemptService.FinalizeExpired(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("finalize expired attempts")
	} else if closed > 0 {
		w.log.Info().Int("closed", closed).Msg("expired attempts finalized")
	}

	// Deactivation runs last so the final pass above still sees the quiz
	// as active.
	if err := w.quizRepo.DeactivateEnded(ctx, now); err != nil {
		w.log.Error().Err(err).Msg("deactivate quizzes")
	}
}
