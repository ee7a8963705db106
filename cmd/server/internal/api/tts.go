package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/tts"
)

type synthesizeRequest struct {
	Text     string `json:"text" binding:"required"`
	Language string `json:"language" binding:"required"`
	Model    string `json:"model"`
}

// HandleSynthesize generates speech for text.
// POST /api/tts/generate
func HandleSynthesize(o *tts.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req synthesizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "text and language are required")
			return
		}

		res, err := o.Synthesize(c.Request.Context(), req.Text, req.Language, req.Model)
		if err != nil {
			stageErrorResponse(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"file":            res.ArtifactName,
			"format":          res.ArtifactFormat,
			"url":             "/api/tts/audio/" + res.ArtifactName,
			"language":        res.Language,
			"model_requested": res.ModelRequested,
			"model_used":      res.ModelUsed,
		})
	}
}

// HandleAudioFile serves a synthesized artifact from the managed output
// directory. File names are generated server side; anything with a path
// separator or the wrong prefix is rejected before touching the disk.
// GET /api/tts/audio/:filename
func HandleAudioFile(o *tts.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("filename")
		if name != filepath.Base(name) || !strings.HasPrefix(name, "tts_") {
			badRequestResponse(c, "invalid audio file name")
			return
		}

		path := filepath.Join(o.OutputDir(), name)
		switch filepath.Ext(name) {
		case ".wav":
			c.Header("Content-Type", "audio/wav")
		case ".mp3":
			c.Header("Content-Type", "audio/mpeg")
		default:
			badRequestResponse(c, "invalid audio file name")
			return
		}
		c.File(path)
	}
}
