package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/asr"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/mt"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/tts"
)

// HandleASRModels returns the transcription engine catalog.
// GET /api/asr/models
func HandleASRModels(o *asr.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": o.Descriptors()})
	}
}

// HandleMTModels returns the translation engine catalog.
// GET /api/mt/models
func HandleMTModels(o *mt.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": o.Descriptors()})
	}
}

// HandleTTSModels returns the synthesis engine catalog.
// GET /api/tts/models
func HandleTTSModels(o *tts.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": o.Descriptors()})
	}
}
