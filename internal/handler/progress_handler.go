package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lentera-edu/lentera-backend/internal/middleware"
	"github.com/lentera-edu/lentera-backend/internal/response"
	"github.com/lentera-edu/lentera-backend/internal/service"
)

// ProgressHandler handles the gamification views.
type ProgressHandler struct {
	studentService *service.StudentService
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(studentService *service.StudentService) *ProgressHandler {
	return &ProgressHandler{studentService: studentService}
}

// GetProgress godoc
// GET /api/v1/student/progress
// Returns the student's points, level, streak and badges.
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)

	progress, err := h.studentService.GetProgress(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"progress": progress})
}

// GetLeaderboard godoc
// GET /api/v1/student/leaderboard?limit=10
// Returns the weekly points leaderboard.
func (h *ProgressHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, err := h.studentService.GetWeeklyLeaderboard(c.Request.Context(), limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if entries == nil {
		entries = []service.LeaderboardEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{"leaderboard": entries})
}
