package server

import (
	"context"
	"net/http"
	"time"

	"swiftfit/internal/api"
	"swiftfit/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports liveness and, when db is set, database reachability.
func Health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check: database unreachable", logger.FieldError, err)
			c.JSON(http.StatusServiceUnavailable, api.HealthResponse{Status: "degraded", Database: "down"})
			return
		}
		c.JSON(http.StatusOK, api.HealthResponse{Status: "ok", Database: "up"})
	}
}

func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
