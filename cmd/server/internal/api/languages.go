package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
)

// HandleListLanguages returns the language catalog.
// GET /api/languages
func HandleListLanguages() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"languages": lang.All(),
			"count":     len(lang.All()),
		})
	}
}
