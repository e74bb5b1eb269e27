package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stroyfin/pkg/logger"
)

// HeaderRequestID carries request correlation between services.
const HeaderRequestID = "X-Request-ID"

// RequestID middleware extracts or generates a request id, stores it in
// the context for log correlation and echoes it back to the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()
	}
}
