package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lentera-edu/lentera-backend/internal/config"
	"github.com/lentera-edu/lentera-backend/internal/database"
	"github.com/lentera-edu/lentera-backend/internal/handler"
	"github.com/lentera-edu/lentera-backend/internal/logger"
	"github.com/lentera-edu/lentera-backend/internal/repository"
	"github.com/lentera-edu/lentera-backend/internal/router"
	"github.com/lentera-edu/lentera-backend/internal/service"
	"github.com/lentera-edu/lentera-backend/internal/validator"
	"github.com/lentera-edu/lentera-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Lentera Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	tempRepo := repository.NewTempAnswerRepository(pool)
	finalRepo := repository.NewFinalAnswerRepository(pool)
	badgeRepo := repository.NewBadgeRepository(pool)
	pointsRepo := repository.NewPointsLogRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	studentService := service.NewStudentService(pool, studentRepo, badgeRepo, pointsRepo)
	adminService := service.NewAdminService(adminRepo)
	gamificationService := service.NewGamificationService(pool, attemptRepo, studentRepo, badgeRepo, pointsRepo, log)
	scoringService := service.NewScoringService(attemptRepo, tempRepo, finalRepo, quizRepo, gamificationService, log)
	recalcService := service.NewRecalcService(attemptRepo, finalRepo, quizRepo, studentRepo, pointsRepo, log)
	quizService := service.NewQuizService(pool, quizRepo, attemptRepo, recalcService, rdb, log)
	attemptService := service.NewAttemptService(pool, attemptRepo, tempRepo, finalRepo, quizRepo, studentRepo, pointsRepo, scoringService, rdb, log)
	violationService := service.NewViolationService(pool, attemptRepo, quizRepo, scoringService, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, studentService, adminService),
		Attempt:   handler.NewAttemptHandler(attemptService, quizService, violationService),
		Progress:  handler.NewProgressHandler(studentService),
		QuizAdmin: handler.NewQuizAdminHandler(quizService, attemptService, authService, studentService),
		WS:        handler.NewWSHandler(rdb, attemptService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	sweepWorker := worker.NewSweepWorker(quizRepo, attemptService, cfg.SweepInterval, log)
	streakWorker := worker.NewStreakWorker(gamificationService, log)
	leaderboardWorker := worker.NewLeaderboardWorker(gamificationService, log)

	go sweepWorker.Start(workerCtx)
	go streakWorker.Start(workerCtx)
	go leaderboardWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers. A sweep pass in flight gets a moment
	// to finish its current attempt.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
