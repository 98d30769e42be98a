package middleware

import (
	"github.com/gin-gonic/gin"

	"fable/internal/pkg/id"
)

// 请求ID透传头
const RequestIDHeader = "X-Request-ID"

// RequestID 请求ID中间件
// 复用调用方带来的请求ID，没有则生成一个，并回写到响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = id.New()
		}

		c.Set("request_id", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()
	}
}
