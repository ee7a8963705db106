// Package asr orchestrates speech-to-text engines. Callers pick one of a
// closed engine set; engines that declare fallback support get exactly one
// substitution to a designated general-purpose engine when they error or
// cannot serve the requested language. Provenance of the engine that
// actually produced the transcript is preserved in the stage result.
package asr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
	"github.com/deephabiswashi/vasha/pkg/metrics"
)

// Engine is one speech-recognition backend.
type Engine interface {
	// Transcribe converts the waveform at wavPath into UTF-8 text. The
	// language tag is a catalog tag; decoding selects the decoder variant
	// for engines that support more than one.
	Transcribe(ctx context.Context, wavPath, languageTag, decoding string) (string, error)

	// Name returns the engine identifier used for provenance and logs.
	Name() string
}

// Entry pairs an engine with its immutable descriptor.
type Entry struct {
	Engine     Engine
	Descriptor stage.EngineDescriptor
}

// validDecodings is the closed set of decoder variants.
var validDecodings = map[string]bool{"": true, "ctc": true, "rnnt": true}

// Orchestrator selects and runs ASR engines. Immutable after construction
// and safe for concurrent use.
type Orchestrator struct {
	engines     map[string]Engine
	descriptors map[string]stage.EngineDescriptor
	order       []string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewOrchestrator builds the orchestrator from the registered entries.
// Every declared fallback target must itself be registered and must not
// declare further fallback, keeping substitution to a single hop.
func NewOrchestrator(entries []Entry, timeout time.Duration, logger *slog.Logger) (*Orchestrator, error) {
	engines := make(map[string]Engine, len(entries))
	descriptors := make(map[string]stage.EngineDescriptor, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		id := e.Descriptor.ID
		engines[id] = e.Engine
		descriptors[id] = e.Descriptor
		order = append(order, id)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return descriptors[order[i]].Rank < descriptors[order[j]].Rank
	})

	for _, d := range descriptors {
		if !d.SupportsFallback {
			continue
		}
		target, ok := descriptors[d.FallbackTo]
		if !ok {
			return nil, fmt.Errorf("engine %s falls back to unregistered engine %q", d.ID, d.FallbackTo)
		}
		if target.SupportsFallback {
			return nil, fmt.Errorf("fallback target %s must not itself declare fallback", target.ID)
		}
	}

	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Orchestrator{
		engines:     engines,
		descriptors: descriptors,
		order:       order,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// Descriptors returns the engine catalog in rank order for client display.
func (o *Orchestrator) Descriptors() []stage.EngineDescriptor {
	out := make([]stage.EngineDescriptor, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.descriptors[id])
	}
	return out
}

// Transcribe runs the requested engine against the waveform. Validation
// failures (unknown engine, unknown language, unknown decoding mode) are
// rejected before any inference work and never trigger fallback.
func (o *Orchestrator) Transcribe(ctx context.Context, wavPath, languageTag, model, decoding string) (stage.Result, error) {
	desc, ok := o.descriptors[model]
	if !ok {
		err := stage.NewError(stage.INVALID_MODEL, stage.KindASR,
			fmt.Sprintf("invalid model %q, valid models: %v", model, o.order), nil).
			WithRequested(model)
		return stage.Failed(stage.KindASR, err), err
	}
	if !lang.Known(languageTag) {
		err := stage.NewError(stage.UNKNOWN_LANGUAGE, stage.KindASR,
			fmt.Sprintf("language %q is not in the catalog", languageTag), nil).
			WithRequested(model)
		return stage.Failed(stage.KindASR, err), err
	}
	if !validDecodings[decoding] {
		err := stage.NewError(stage.INVALID_PARAMETER, stage.KindASR,
			fmt.Sprintf("invalid decoding mode %q", decoding), nil).
			WithRequested(model)
		return stage.Failed(stage.KindASR, err), err
	}

	var attempted []string
	var lastErr error

	// The primary engine only runs when it declares the language; an engine
	// with fallback support skips straight to its designated substitute.
	if desc.SupportsLanguage(languageTag) {
		text, elapsed, err := o.attempt(ctx, model, wavPath, languageTag, decoding)
		if err == nil {
			return o.success(model, model, text, languageTag, elapsed), nil
		}
		attempted = append(attempted, model)
		lastErr = err
	} else {
		attempted = append(attempted, model)
		lastErr = fmt.Errorf("engine %s does not support language %s", model, languageTag)
	}

	if desc.SupportsFallback {
		fallback := desc.FallbackTo
		metrics.RecordFallbackEvent(string(stage.KindASR), model, fallback)
		if o.logger != nil {
			o.logger.Warn("ASR falling back",
				"from", model, "to", fallback, "language", languageTag, "reason", lastErr)
		}
		text, elapsed, err := o.attempt(ctx, fallback, wavPath, languageTag, decoding)
		if err == nil {
			return o.success(model, fallback, text, languageTag, elapsed), nil
		}
		attempted = append(attempted, fallback)
		lastErr = err
	}

	stageErr := stage.NewError(stage.TRANSCRIPTION_FAILURE, stage.KindASR,
		fmt.Sprintf("transcription failed for language %s", languageTag), lastErr).
		WithRequested(model).
		WithAttempted(attempted...)
	return stage.Failed(stage.KindASR, stageErr), stageErr
}

func (o *Orchestrator) attempt(ctx context.Context, engineID, wavPath, languageTag, decoding string) (string, time.Duration, error) {
	eng := o.engines[engineID]

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	text, err := eng.Transcribe(ctx, wavPath, languageTag, decoding)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "failed"
		// A stage deadline is treated as an engine runtime failure, eligible
		// for the same fallback path.
		if ctx.Err() != nil {
			status = "timeout"
		}
	}
	metrics.RecordStageExecution(string(stage.KindASR), engineID, status)
	metrics.RecordStageDuration(string(stage.KindASR), engineID, elapsed.Seconds())

	return text, elapsed, err
}

func (o *Orchestrator) success(requested, used, text, languageTag string, elapsed time.Duration) stage.Result {
	return stage.Result{
		Kind:           stage.KindASR,
		Success:        true,
		Text:           text,
		Language:       languageTag,
		ModelRequested: requested,
		ModelUsed:      used,
		Duration:       elapsed,
	}
}
