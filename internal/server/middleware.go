package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/sentibot/internal/models"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.String("client_ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			slog.Error("[HTTP] Request", attrs...)
		case status >= http.StatusBadRequest:
			slog.Warn("[HTTP] Request", attrs...)
		default:
			slog.Debug("[HTTP] Request", attrs...)
		}
	}
}

func recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		slog.Error("[HTTP] Panic recovered",
			slog.String("path", c.Request.URL.Path),
			slog.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Detail: INTERNAL_ERROR_DETAIL})
	})
}
