package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spacesedan/sentibot/internal/ratelimit"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, handler *Handler, limiter ratelimit.Limiter, gatherer prometheus.Gatherer) {
	router.GET("/", handler.Root)
	router.GET("/health", handler.Health)

	router.POST("/predict", ratelimit.Middleware(limiter, handler.metrics.LimitExceeded), handler.Predict)

	router.GET("/stats", handler.ServiceStats)       // service-wide counters
	router.GET("/stats/:user_id", handler.UserStats) // per-user counters

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
