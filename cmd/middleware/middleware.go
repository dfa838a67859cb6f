package middleware

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/dto"
)

const RequestIDHeader = "X-Request-ID"

func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Header(RequestIDHeader, reqID)

		c.Next()

		ev := zlog.Logger.Info()
		if c.Writer.Status() >= 500 {
			ev = zlog.Logger.Error()
		} else if c.Writer.Status() >= 400 {
			ev = zlog.Logger.Warn()
		}
		ev.Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

// AuthMiddleware verifies the staff bearer token and attaches the store
// credential for that staff member. Requests without one never reach a
// handler.
func AuthMiddleware(v *auth.Verifier, creds auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		staff, err := v.Verify(c.GetHeader("Authorization"))
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("path", c.FullPath()).Msg("rejected unauthenticated request")
			dto.UnauthenticatedError(c)
			c.Abort()
			return
		}

		cred, err := creds.Credential(c.Request.Context(), staff)
		if err != nil {
			if errors.Is(err, auth.ErrNoCredential) {
				dto.UnauthenticatedError(c)
			} else {
				dto.InternalServerError(c)
			}
			c.Abort()
			return
		}

		c.Set(auth.StaffKey, staff)
		c.Set(auth.CredentialKey, cred)
		c.Next()
	}
}
