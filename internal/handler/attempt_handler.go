package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lentera-edu/lentera-backend/internal/middleware"
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/lentera-edu/lentera-backend/internal/response"
	"github.com/lentera-edu/lentera-backend/internal/service"
	"github.com/lentera-edu/lentera-backend/internal/validator"
)

// AttemptHandler handles the student attempt lifecycle endpoints.
type AttemptHandler struct {
	attemptService   *service.AttemptService
	quizService      *service.QuizService
	violationService *service.ViolationService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(
	attemptService *service.AttemptService,
	quizService *service.QuizService,
	violationService *service.ViolationService,
) *AttemptHandler {
	return &AttemptHandler{
		attemptService:   attemptService,
		quizService:      quizService,
		violationService: violationService,
	}
}

// StartAttempt godoc
// POST /api/v1/student/quizzes/:quiz_id/attempts
// Finds or creates the student's attempt on an active quiz. The timer
// does not start until the paper is first fetched.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), quizID, claims.UserID, claims.ClassID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetPaper godoc
// GET /api/v1/student/attempts/:attempt_id/paper
// Returns the shuffled question payload. The first fetch starts the clock.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, _, err := h.attemptService.OpenPaper(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	payload, err := h.quizService.GetPayload(c.Request.Context(), attempt.QuizID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt": attempt,
		"paper":   payload,
	})
}

// SaveTempAnswer godoc
// PUT /api/v1/student/attempts/:attempt_id/answers
// Upserts one provisional answer selection.
func (h *AttemptHandler) SaveTempAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveTempAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SaveTempAnswer(c.Request.Context(), attemptID, claims.UserID, &req); err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetTempAnswers godoc
// GET /api/v1/student/attempts/:attempt_id/answers
// Returns the current provisional selections (page reload recovery).
func (h *AttemptHandler) GetTempAnswers(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, answers, err := h.attemptService.GetTempAnswers(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	if answers == nil {
		answers = []model.TempAnswer{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt": attempt,
		"answers": answers,
	})
}

// ReportViolation godoc
// POST /api/v1/student/attempts/:attempt_id/violations
// Reports a tab-away interval on a strict-mode quiz.
func (h *AttemptHandler) ReportViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReportViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	awayStart, err := parseFlexibleTime(req.AwayStart)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidInterval)
		return
	}
	awayEnd, err := parseFlexibleTime(req.AwayEnd)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidInterval)
		return
	}

	outcome, err := h.violationService.Report(c.Request.Context(), attemptID, claims.UserID, awayStart, awayEnd)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInterval) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidInterval)
			return
		}
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"violation": outcome})
}

// Submit godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Finalizes the attempt. Repeat submits are rejected unless force is set.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Body is optional; an empty submit is a normal submit.
	var req model.SubmitAttemptRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, claims.UserID, req.Force)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ListReviews godoc
// GET /api/v1/student/attempts/reviews
// Returns the answer breakdown of every finished attempt.
func (h *AttemptHandler) ListReviews(c *gin.Context) {
	claims := middleware.GetClaims(c)

	reviews, err := h.attemptService.Review(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if reviews == nil {
		reviews = []service.AttemptReview{}
	}

	response.Success(c, http.StatusOK, gin.H{"reviews": reviews})
}

// failAttemptError maps attempt domain errors to API error responses.
func failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrQuizNotAvailable):
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotAvailable)
	case errors.Is(err, service.ErrNotAttemptOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAttemptFinished):
		response.Fail(c, http.StatusConflict, response.ErrAttemptAlreadySubmitted)
	case errors.Is(err, service.ErrAttemptNotFinished):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotFinished)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// parseFlexibleTime accepts RFC3339 or Unix milliseconds.
func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
