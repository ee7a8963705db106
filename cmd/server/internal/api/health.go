package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/health"
)

// HandleEngineHealth reports the last known status of every engine service.
// GET /api/health/engines
func HandleEngineHealth(m *health.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		if !m.Healthy() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"healthy": m.Healthy(),
			"engines": m.Snapshot(),
		})
	}
}
