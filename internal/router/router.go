package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lentera-edu/lentera-backend/internal/config"
	"github.com/lentera-edu/lentera-backend/internal/handler"
	"github.com/lentera-edu/lentera-backend/internal/middleware"
	"github.com/lentera-edu/lentera-backend/internal/response"
	"github.com/lentera-edu/lentera-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Attempt   *handler.AttemptHandler
	Progress  *handler.ProgressHandler
	QuizAdmin *handler.QuizAdminHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.POST("/quizzes/:quiz_id/attempts", handlers.Attempt.StartAttempt)
		studentAPI.GET("/attempts/reviews", handlers.Attempt.ListReviews)
		studentAPI.GET("/attempts/:attempt_id/paper", handlers.Attempt.GetPaper)
		studentAPI.PUT("/attempts/:attempt_id/answers", handlers.Attempt.SaveTempAnswer)
		studentAPI.GET("/attempts/:attempt_id/answers", handlers.Attempt.GetTempAnswers)
		studentAPI.POST("/attempts/:attempt_id/violations", handlers.Attempt.ReportViolation)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)

		studentAPI.GET("/progress", handlers.Progress.GetProgress)
		studentAPI.GET("/leaderboard", handlers.Progress.GetLeaderboard)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.PUT("/quizzes/:quiz_id", handlers.QuizAdmin.UpdateQuiz)
		adminAPI.GET("/quizzes/:quiz_id/attempts", handlers.QuizAdmin.ListAttempts)
		adminAPI.DELETE("/quizzes/:quiz_id/attempts/:student_id", handlers.QuizAdmin.DeleteAttempt)
		adminAPI.DELETE("/students/:student_id/session", handlers.QuizAdmin.ResetStudentSession)
		adminAPI.DELETE("/students/:student_id/badges/:badge_id", handlers.QuizAdmin.RevokeBadge)
	}

	return router
}
