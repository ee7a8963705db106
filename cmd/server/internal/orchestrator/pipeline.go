// Package orchestrator ties the pipeline stages together: media ingest,
// language identification, transcription, translation, and synthesis.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/asr"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lid"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/media"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/mt"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/tts"
	"github.com/deephabiswashi/vasha/pkg/logger"
)

// Controller runs the speech translation pipeline. Stages halt on the first
// failure; nothing downstream of a failed stage executes. Concurrent runs
// are capped by a weighted semaphore sized at construction.
type Controller struct {
	identifier *lid.Identifier
	asr        *asr.Orchestrator
	mt         *mt.Orchestrator
	tts        *tts.Orchestrator
	slots      *semaphore.Weighted
	logger     *slog.Logger
}

// PipelineOptions selects languages and engines for one run. Zero values
// mean automatic: identify the source language, let each stage pick its
// engine.
type PipelineOptions struct {
	// SourceLanguage forces the source tag and skips identification.
	// "" or "auto" identifies from the audio.
	SourceLanguage string

	// TargetLanguage is the translation target tag. Required.
	TargetLanguage string

	// ASRModel, MTModel, TTSModel name preferred engines per stage.
	ASRModel string
	MTModel  string
	TTSModel string

	// Decoding selects the transcription decoding strategy where the
	// engine supports one.
	Decoding string

	// LIDModel names a preferred identification engine.
	LIDModel string

	// Synthesize requests spoken output for the translation.
	Synthesize bool
}

// PipelineResult aggregates the stage outcomes of one run. Stages holds
// every stage that executed, in order, including the failed one.
type PipelineResult struct {
	SourceLanguage string         `json:"source_language"`
	Confidence     float64        `json:"confidence,omitempty"`
	LIDEngine      string         `json:"lid_engine,omitempty"`
	Transcript     string         `json:"transcript"`
	Translation    string         `json:"translation"`
	Audio          *stage.Result  `json:"audio,omitempty"`
	Stages         []stage.Result `json:"stages"`
	Elapsed        time.Duration  `json:"-"`
}

// NewController wires the stage orchestrators. maxConcurrent bounds
// simultaneous pipeline runs; zero or negative means 4.
func NewController(identifier *lid.Identifier, asrOrch *asr.Orchestrator, mtOrch *mt.Orchestrator, ttsOrch *tts.Orchestrator, maxConcurrent int64, logger *slog.Logger) *Controller {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Controller{
		identifier: identifier,
		asr:        asrOrch,
		mt:         mtOrch,
		tts:        ttsOrch,
		slots:      semaphore.NewWeighted(maxConcurrent),
		logger:     logger,
	}
}

// Run executes the pipeline over an ingested audio artifact. The controller
// takes ownership of the artifact and releases it on every exit path. On a
// stage failure the partial result is returned together with the stage
// error so callers can report both.
func (c *Controller) Run(ctx context.Context, audio *media.Artifact, opts PipelineOptions) (*PipelineResult, error) {
	defer audio.Release()

	if err := c.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring pipeline slot: %w", err)
	}
	defer c.slots.Release(1)

	start := time.Now()
	res := &PipelineResult{}

	// Reject an unresolvable target before any inference runs.
	if opts.TargetLanguage == "" || !lang.Known(opts.TargetLanguage) {
		serr := stage.NewError(stage.UNKNOWN_LANGUAGE, stage.KindMT,
			fmt.Sprintf("target language %q is not in the catalog", opts.TargetLanguage), nil)
		res.Elapsed = time.Since(start)
		return res, serr
	}

	srcTag, err := c.resolveSource(ctx, audio, opts, res)
	if err != nil {
		res.Elapsed = time.Since(start)
		return res, err
	}
	res.SourceLanguage = srcTag

	asrModel := opts.ASRModel
	if asrModel == "" {
		asrModel = asr.EngineWhisper
	}
	asrRes, err := c.asr.Transcribe(ctx, audio.Path(), srcTag, asrModel, opts.Decoding)
	res.Stages = append(res.Stages, asrRes)
	c.logStage(asrRes)
	if err != nil {
		res.Elapsed = time.Since(start)
		return res, err
	}
	res.Transcript = asrRes.Text

	mtRes, err := c.mt.Translate(ctx, asrRes.Text, srcTag, opts.TargetLanguage, opts.MTModel)
	res.Stages = append(res.Stages, mtRes)
	c.logStage(mtRes)
	if err != nil {
		res.Elapsed = time.Since(start)
		return res, err
	}
	res.Translation = mtRes.Text

	if opts.Synthesize && res.Translation != "" {
		ttsRes, err := c.tts.Synthesize(ctx, res.Translation, opts.TargetLanguage, opts.TTSModel)
		res.Stages = append(res.Stages, ttsRes)
		c.logStage(ttsRes)
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		res.Audio = &ttsRes
	}

	res.Elapsed = time.Since(start)
	if c.logger != nil {
		c.logger.Info("pipeline complete",
			"source", srcTag,
			"target", opts.TargetLanguage,
			"stages", len(res.Stages),
			"duration_ms", res.Elapsed.Milliseconds())
	}
	return res, nil
}

// resolveSource returns the effective source tag. A forced tag is validated
// against the catalog; otherwise identification runs and its failure is
// fatal for the pipeline.
func (c *Controller) resolveSource(ctx context.Context, audio *media.Artifact, opts PipelineOptions, res *PipelineResult) (string, error) {
	if opts.SourceLanguage != "" && opts.SourceLanguage != "auto" {
		if !lang.Known(opts.SourceLanguage) {
			return "", stage.NewError(stage.UNKNOWN_LANGUAGE, stage.KindLID,
				fmt.Sprintf("source language %q is not in the catalog", opts.SourceLanguage), nil)
		}
		return opts.SourceLanguage, nil
	}

	ident, err := c.identifier.Identify(ctx, audio.Path(), opts.LIDModel)
	if err != nil {
		if serr, ok := stage.As(err); ok {
			failed := stage.Failed(stage.KindLID, serr)
			res.Stages = append(res.Stages, failed)
			c.logStage(failed)
		}
		return "", err
	}
	res.Confidence = ident.Confidence
	res.LIDEngine = ident.EngineUsed
	lidRes := stage.Result{
		Kind:       stage.KindLID,
		Success:    true,
		Language:   ident.Tag,
		Confidence: ident.Confidence,
		ModelUsed:  ident.EngineUsed,
	}
	res.Stages = append(res.Stages, lidRes)
	c.logStage(lidRes)
	return ident.Tag, nil
}

// logStage emits one structured record per stage attempt.
func (c *Controller) logStage(res stage.Result) {
	if c.logger == nil {
		return
	}
	action := "success"
	code := ""
	if !res.Success {
		action = "error"
		if serr, ok := stage.As(res.Err); ok {
			code = string(serr.Code)
		}
	}
	logger.LogStageEvent(c.logger, string(res.Kind), res.ModelUsed, action, res.Duration.Milliseconds(), code)
}
