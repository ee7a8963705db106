package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/history"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/media"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
	"github.com/deephabiswashi/vasha/pkg/logger"
)

// MaxUploadSize caps incoming media files.
const MaxUploadSize = 200 * 1024 * 1024 // 200MB

// pipelineOptions reads the stage selection fields shared by every
// pipeline endpoint.
func pipelineOptions(c *gin.Context) orchestrator.PipelineOptions {
	return orchestrator.PipelineOptions{
		SourceLanguage: c.PostForm("source_lang"),
		TargetLanguage: c.PostForm("target_lang"),
		ASRModel:       c.PostForm("asr_model"),
		MTModel:        c.PostForm("mt_model"),
		TTSModel:       c.PostForm("tts_model"),
		Decoding:       c.PostForm("decoding"),
		LIDModel:       c.PostForm("lid_model"),
		Synthesize:     c.PostForm("synthesize") == "true" || c.PostForm("synthesize") == "1",
	}
}

// runPipeline executes the pipeline over an ingested artifact, records the
// outcome, and writes the response.
func runPipeline(c *gin.Context, ctrl *orchestrator.Controller, store *history.Store, audio *media.Artifact, opts orchestrator.PipelineOptions) {
	res, err := ctrl.Run(c.Request.Context(), audio, opts)
	if err != nil {
		stageErrorResponse(c, err)
		return
	}

	recordHistory(c, store, res, opts)
	c.JSON(http.StatusOK, pipelineResponse(res))
}

// pipelineResponse shapes the aggregate result. Each executed stage reports
// the engine the caller asked for and the one that actually ran so
// fallback is always visible.
func pipelineResponse(res *orchestrator.PipelineResult) gin.H {
	models := gin.H{}
	for _, st := range res.Stages {
		if !st.Success || st.ModelUsed == "" {
			continue
		}
		models[string(st.Kind)] = gin.H{
			"requested": st.ModelRequested,
			"used":      st.ModelUsed,
		}
	}

	body := gin.H{
		"source_language": res.SourceLanguage,
		"transcript":      res.Transcript,
		"translation":     res.Translation,
		"models":          models,
		"duration_ms":     res.Elapsed.Milliseconds(),
	}
	if l, ok := lang.Lookup(res.SourceLanguage); ok {
		body["source_language_name"] = l.Name
	}
	if res.Confidence > 0 {
		body["confidence"] = res.Confidence
	}
	if res.Audio != nil {
		body["audio"] = gin.H{
			"file":   res.Audio.ArtifactName,
			"format": res.Audio.ArtifactFormat,
			"url":    "/api/tts/audio/" + res.Audio.ArtifactName,
		}
	}
	return body
}

// recordHistory persists a finished run when the caller named a chat they
// own. The write is fire-and-forget; a storage failure never fails the
// request. The gin context is pooled, so everything it carries is read
// before the goroutine starts.
func recordHistory(c *gin.Context, store *history.Store, res *orchestrator.PipelineResult, opts orchestrator.PipelineOptions) {
	chatID := c.PostForm("chat_id")
	if store == nil || chatID == "" {
		return
	}
	user := currentUser(c)

	msg := history.Message{
		ChatID:         chatID,
		SourceLanguage: res.SourceLanguage,
		TargetLanguage: opts.TargetLanguage,
		Transcript:     res.Transcript,
		Translation:    res.Translation,
	}
	if res.Audio != nil {
		msg.AudioFile = res.Audio.ArtifactName
	}
	for _, st := range res.Stages {
		if !st.Success {
			continue
		}
		switch st.Kind {
		case stage.KindASR:
			msg.ASRModel = st.ModelUsed
		case stage.KindMT:
			msg.MTModel = st.ModelUsed
		case stage.KindTTS:
			msg.TTSModel = st.ModelUsed
		}
	}

	go func() {
		chat, err := store.GetChat(chatID)
		if err != nil {
			logger.L().Warn("recording history failed", "chat_id", chatID, "error", err)
			return
		}
		if chat.User != user {
			logger.L().Warn("chat belongs to another user", "chat_id", chatID, "user", user)
			return
		}
		if _, err := store.AppendMessage(msg); err != nil {
			logger.L().Warn("recording history failed", "chat_id", chatID, "error", err)
		}
	}()
}

// HandleUpload runs the pipeline over an uploaded media file.
// POST /api/asr/upload
func HandleUpload(ing *media.Ingestor, ctrl *orchestrator.Controller, store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			badRequestResponse(c, "file field is required")
			return
		}
		if file.Size > MaxUploadSize {
			errorResponse(c, http.StatusRequestEntityTooLarge, "file exceeds the 200MB limit")
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
		runPipeline(c, ctrl, store, audio, pipelineOptions(c))
	}
}

// remoteMediaURL reads the video address from the youtube_url field, with
// url kept as an alias for older clients.
func remoteMediaURL(c *gin.Context) string {
	if u := c.PostForm("youtube_url"); u != "" {
		return u
	}
	return c.PostForm("url")
}

// HandleYouTube runs the pipeline over the audio track of a remote video.
// POST /api/asr/youtube
func HandleYouTube(ing *media.Ingestor, ctrl *orchestrator.Controller, store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		audio, err := ing.FromRemote(c.Request.Context(), remoteMediaURL(c))
		if err != nil {
			stageErrorResponse(c, err)
			return
		}
		runPipeline(c, ctrl, store, audio, pipelineOptions(c))
	}
}

// HandleMicrophone captures from the server microphone and runs the
// pipeline over the recording.
// POST /api/asr/microphone
func HandleMicrophone(ing *media.Ingestor, ctrl *orchestrator.Controller, store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		duration, err := strconv.Atoi(c.DefaultPostForm("duration", "5"))
		if err != nil {
			badRequestResponse(c, "duration must be an integer number of seconds")
			return
		}

		audio, err := ing.FromCapture(c.Request.Context(), duration)
		if err != nil {
			stageErrorResponse(c, err)
			return
		}
		runPipeline(c, ctrl, store, audio, pipelineOptions(c))
	}
}
