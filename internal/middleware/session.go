package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lentera-edu/lentera-backend/internal/response"
	"github.com/lentera-edu/lentera-backend/internal/service"
)

// CheckSingleDeviceSession enforces the one-active-session rule: the
// token's JTI must still be the one registered in Redis. A mismatch means
// the session was reset by an admin or superseded, and the token is dead
// even though its signature is valid. Apply after RequireStudentJWT.
func CheckSingleDeviceSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.ValidateStudentSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
