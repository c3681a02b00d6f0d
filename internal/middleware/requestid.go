package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ContextRequestID = "request_id"

// RequestID tags every request with an id for log correlation. An id supplied
// by the caller in X-Request-ID is kept so ids survive proxies.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// GetRequestID returns the id set by RequestID, empty when absent.
func GetRequestID(c *gin.Context) string {
	if v, exists := c.Get(ContextRequestID); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
