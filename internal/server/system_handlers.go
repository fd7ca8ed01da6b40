package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/api"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
)

const checkTimeout = 2 * time.Second

// Check reports on one dependency for /status.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type ComponentStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type StatusResponse struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components"`
}

// @Summary      Liveness check
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// Status runs every check and answers 503 when any of them fails.
//
// @Summary      Readiness with per-dependency status
// @Tags         system
// @Produce      json
// @Success      200 {object} StatusResponse
// @Failure      503 {object} StatusResponse
// @Router       /status [get]
func Status(checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := StatusResponse{Status: "ok", Components: make([]ComponentStatus, 0, len(checks))}
		code := http.StatusOK

		for _, check := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
			err := check.Fn(ctx)
			cancel()

			cs := ComponentStatus{Name: check.Name, Status: "ok"}
			if err != nil {
				cs.Status = "down"
				cs.Error = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				logger.Warn("Status check failed", "component", check.Name, "error", err.Error())
			}
			resp.Components = append(resp.Components, cs)
		}

		c.JSON(code, resp)
	}
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
