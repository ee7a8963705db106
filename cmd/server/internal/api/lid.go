package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lid"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/media"
)

// HandleIdentify detects the spoken language of an uploaded clip without
// running the rest of the pipeline.
// POST /api/lid/identify
func HandleIdentify(ing *media.Ingestor, identifier *lid.Identifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			badRequestResponse(c, "file field is required")
			return
		}

		src, err := file.Open()
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		defer src.Close()

		audio, err := ing.FromUpload(c.Request.Context(), src, file.Filename)
		if err != nil {
			stageErrorResponse(c, err)
			return
		}
		defer audio.Release()

		ident, err := identifier.Identify(c.Request.Context(), audio.Path(), c.PostForm("model"))
		if err != nil {
			stageErrorResponse(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"language":   ident.Tag,
			"name":       ident.LanguageName,
			"confidence": ident.Confidence,
			"engine":     ident.EngineUsed,
		})
	}
}
