package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/mt"
)

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang" binding:"required"`
	TargetLang string `json:"target_lang" binding:"required"`
	Model      string `json:"model"`
}

// HandleTranslate translates text directly, without the audio pipeline.
// POST /api/mt/translate
func HandleTranslate(o *mt.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req translateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "source_lang and target_lang are required")
			return
		}

		res, err := o.Translate(c.Request.Context(), req.Text, req.SourceLang, req.TargetLang, req.Model)
		if err != nil {
			stageErrorResponse(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"translation":     res.Text,
			"source_language": req.SourceLang,
			"target_language": req.TargetLang,
			"model_requested": res.ModelRequested,
			"model_used":      res.ModelUsed,
		})
	}
}
