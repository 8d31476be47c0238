package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lentera-edu/lentera-backend/internal/model"
	"github.com/lentera-edu/lentera-backend/internal/response"
	"github.com/lentera-edu/lentera-backend/internal/service"
	"github.com/lentera-edu/lentera-backend/internal/validator"
)

// QuizAdminHandler handles admin quiz management endpoints.
type QuizAdminHandler struct {
	quizService    *service.QuizService
	attemptService *service.AttemptService
	authService    *service.AuthService
	studentService *service.StudentService
}

// NewQuizAdminHandler creates a new QuizAdminHandler.
func NewQuizAdminHandler(
	quizService *service.QuizService,
	attemptService *service.AttemptService,
	authService *service.AuthService,
	studentService *service.StudentService,
) *QuizAdminHandler {
	return &QuizAdminHandler{
		quizService:    quizService,
		attemptService: attemptService,
		authService:    authService,
		studentService: studentService,
	}
}

// UpdateQuiz godoc
// PUT /api/v1/admin/quizzes/:quiz_id
// Applies a content edit; grading-relevant changes trigger score
// recalculation in the same transaction.
func (h *QuizAdminHandler) UpdateQuiz(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.quizService.Update(c.Request.Context(), quizID, &req)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrQuestionNotInQuiz):
			response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotInQuiz)
		case errors.Is(err, service.ErrOptionNotInQuestion):
			response.Fail(c, http.StatusBadRequest, response.ErrOptionNotInQuestion)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"update": result})
}

// ListAttempts godoc
// GET /api/v1/admin/quizzes/:quiz_id/attempts
// Returns every attempt on a quiz for the results view.
func (h *QuizAdminHandler) ListAttempts(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempts, err := h.quizService.ListAttempts(c.Request.Context(), quizID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// DeleteAttempt godoc
// DELETE /api/v1/admin/quizzes/:quiz_id/attempts/:student_id
// Reverses a finished attempt so the student can retake the quiz.
func (h *QuizAdminHandler) DeleteAttempt(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.Delete(c.Request.Context(), quizID, studentID); err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// RevokeBadge godoc
// DELETE /api/v1/admin/students/:student_id/badges/:badge_id
// Takes a badge away from a student, ledger entries included.
func (h *QuizAdminHandler) RevokeBadge(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	badgeID, err := strconv.Atoi(c.Param("badge_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.studentService.RevokeBadge(c.Request.Context(), studentID, badgeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ResetStudentSession godoc
// DELETE /api/v1/admin/students/:student_id/session
// Clears a student's single-device login session.
func (h *QuizAdminHandler) ResetStudentSession(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetStudentSession(c.Request.Context(), studentID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
