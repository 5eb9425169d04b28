package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/testport/testport-backend/internal/response"
	"github.com/testport/testport-backend/internal/service"
)

// CheckSingleDeviceSession validates the JWT's JTI against the active session
// in Redis. A mismatch means the session was reset by faculty or superseded;
// the request is rejected so an attempt cannot continue on a second device.
func CheckSingleDeviceSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		// Only enforce for learner tokens.
		if claims.TokenType != service.TokenTypeLearner {
			c.Next()
			return
		}

		if err := authService.ValidateLearnerSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
