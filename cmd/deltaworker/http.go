package main

import (
	"net/http"
	"time"

	"github.com/danmuck/deltaxpc/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newMetricsRouter(logger zerolog.Logger, startedAt time.Time) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": "deltaworker",
		})
	})
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	return r
}
