// Package tts orchestrates speech-synthesis engines. Engines write their
// audio into a managed output directory; callers receive the artifact name
// and format, never a raw path outside that directory.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
	"github.com/deephabiswashi/vasha/pkg/metrics"
)

// Engine is one synthesis backend. Synthesize writes finished audio to
// outPath; the orchestrator owns naming and cleanup.
type Engine interface {
	Synthesize(ctx context.Context, text, langTag, outPath string) error
	Name() string
}

// Entry pairs an engine with its descriptor and output format.
type Entry struct {
	Engine     Engine
	Descriptor stage.EngineDescriptor

	// Format is the container for this engine's output, "wav" or "mp3".
	Format string

	// RequiresReference marks voice-cloning engines that only run when a
	// reference clip is present.
	RequiresReference bool
}

// Config holds orchestrator settings.
type Config struct {
	// OutputDir is where synthesized artifacts land. Created if absent.
	OutputDir string

	// ReferenceAudio overrides the reference-clip search. When empty the
	// orchestrator probes the standard sample locations.
	ReferenceAudio string

	// Timeout bounds each engine attempt.
	Timeout time.Duration
}

// Orchestrator selects and runs TTS engines. Immutable after construction
// and safe for concurrent use.
type Orchestrator struct {
	entries   map[string]Entry
	order     []string
	outputDir string
	refAudio  string
	timeout   time.Duration
	logger    *slog.Logger
}

// errNoArtifact marks an engine that returned success without leaving a
// usable file behind. This is a broken output contract, not a runtime
// failure, so it never triggers fallback.
var errNoArtifact = errors.New("no audio artifact produced")

// referenceCandidates lists where a voice-cloning reference clip may live,
// relative to the working directory and the executable.
var referenceCandidates = []string{
	filepath.Join("samples", "female_clip.wav"),
	filepath.Join("backend", "samples", "female_clip.wav"),
}

// NewOrchestrator builds the orchestrator and ensures the output directory
// exists.
func NewOrchestrator(entries []Entry, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("at least one TTS engine is required")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(os.TempDir(), "vasha-tts")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}

	m := make(map[string]Entry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Format != "wav" && e.Format != "mp3" {
			return nil, fmt.Errorf("engine %s: unsupported format %q", e.Descriptor.ID, e.Format)
		}
		m[e.Descriptor.ID] = e
		order = append(order, e.Descriptor.ID)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return m[order[i]].Descriptor.Rank < m[order[j]].Descriptor.Rank
	})

	return &Orchestrator{
		entries:   m,
		order:     order,
		outputDir: cfg.OutputDir,
		refAudio:  cfg.ReferenceAudio,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

// OutputDir returns the managed artifact directory.
func (o *Orchestrator) OutputDir() string { return o.outputDir }

// Descriptors returns the engine catalog in rank order for client display.
func (o *Orchestrator) Descriptors() []stage.EngineDescriptor {
	out := make([]stage.EngineDescriptor, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.entries[id].Descriptor)
	}
	return out
}

// Synthesize runs the synthesis chain for text in langTag. engineID "" or
// "auto" lets the orchestrator pick; a named engine is tried first and the
// rest of the chain still backs it up. The returned result carries the
// artifact file name inside OutputDir, its format, and the engine that
// actually produced it.
func (o *Orchestrator) Synthesize(ctx context.Context, text, langTag, engineID string) (stage.Result, error) {
	if strings.TrimSpace(text) == "" {
		err := stage.NewError(stage.INVALID_PARAMETER, stage.KindTTS, "text must not be empty", nil).WithRequested(engineID)
		return stage.Failed(stage.KindTTS, err), err
	}
	if !lang.Known(langTag) {
		err := stage.NewError(stage.UNKNOWN_LANGUAGE, stage.KindTTS,
			fmt.Sprintf("language %q is not in the catalog", langTag), nil).WithRequested(engineID)
		return stage.Failed(stage.KindTTS, err), err
	}
	if engineID != "" && engineID != "auto" {
		if _, ok := o.entries[engineID]; !ok {
			err := stage.NewError(stage.INVALID_MODEL, stage.KindTTS,
				fmt.Sprintf("invalid model %q, valid models: %v", engineID, o.order), nil).WithRequested(engineID)
			return stage.Failed(stage.KindTTS, err), err
		}
	}

	chain := o.chain(engineID, langTag)
	if len(chain) == 0 {
		err := stage.NewError(stage.SYNTHESIS_UNAVAILABLE, stage.KindTTS,
			fmt.Sprintf("no engine can synthesize %s", langTag), nil).WithRequested(engineID)
		return stage.Failed(stage.KindTTS, err), err
	}

	var attempted []string
	var lastErr error
	for i, id := range chain {
		if i > 0 {
			metrics.RecordFallbackEvent(string(stage.KindTTS), chain[i-1], id)
			if o.logger != nil {
				o.logger.Warn("TTS advancing to next engine",
					"from", chain[i-1], "to", id, "language", langTag, "reason", lastErr)
			}
		}

		entry := o.entries[id]
		name := "tts_" + uuid.NewString()[:8] + "." + entry.Format
		outPath := filepath.Join(o.outputDir, name)

		elapsed, err := o.attempt(ctx, entry, text, langTag, outPath)
		if err == nil {
			return stage.Result{
				Kind:           stage.KindTTS,
				Success:        true,
				Language:       langTag,
				ArtifactName:   name,
				ArtifactFormat: entry.Format,
				ModelRequested: engineID,
				ModelUsed:      id,
				Duration:       elapsed,
			}, nil
		}
		os.Remove(outPath)
		attempted = append(attempted, id)
		lastErr = err

		if errors.Is(err, errNoArtifact) {
			perr := stage.NewError(stage.SYNTHESIS_FAILURE, stage.KindTTS,
				fmt.Sprintf("engine %s reported success but produced no audio for %s", id, langTag), err).
				WithRequested(engineID).
				WithAttempted(attempted...)
			return stage.Failed(stage.KindTTS, perr), perr
		}
	}

	err := stage.NewError(stage.SYNTHESIS_UNAVAILABLE, stage.KindTTS,
		fmt.Sprintf("synthesis for %s failed on every eligible engine", langTag), lastErr).
		WithRequested(engineID).
		WithAttempted(attempted...)
	return stage.Failed(stage.KindTTS, err), err
}

// chain builds the eligible priority list. A named engine is placed first;
// the remaining engines follow in rank order. Engines that do not cover the
// language, or that need a reference clip no search location provides, are
// filtered out.
func (o *Orchestrator) chain(engineID, langTag string) []string {
	ids := make([]string, 0, len(o.order))
	if engineID != "" && engineID != "auto" {
		ids = append(ids, engineID)
	}
	for _, id := range o.order {
		if id != engineID {
			ids = append(ids, id)
		}
	}

	haveRef := o.referenceAudio() != ""
	eligible := ids[:0]
	for _, id := range ids {
		e := o.entries[id]
		if !e.Descriptor.SupportsLanguage(langTag) {
			continue
		}
		if e.RequiresReference && !haveRef {
			continue
		}
		eligible = append(eligible, id)
	}
	return eligible
}

func (o *Orchestrator) attempt(ctx context.Context, entry Entry, text, langTag, outPath string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	id := entry.Descriptor.ID
	start := time.Now()
	err := entry.Engine.Synthesize(ctx, text, langTag, outPath)
	elapsed := time.Since(start)

	if err == nil {
		if info, statErr := os.Stat(outPath); statErr != nil || info.Size() == 0 {
			err = fmt.Errorf("engine %s: %w", id, errNoArtifact)
		}
	}

	status := "success"
	if err != nil {
		status = "failed"
		if ctx.Err() != nil {
			status = "timeout"
		}
	}
	metrics.RecordStageExecution(string(stage.KindTTS), id, status)
	metrics.RecordStageDuration(string(stage.KindTTS), id, elapsed.Seconds())
	return elapsed, err
}

func (o *Orchestrator) referenceAudio() string {
	return FindReferenceAudio(o.refAudio)
}

// FindReferenceAudio resolves the voice-cloning reference clip, if any. The
// override path wins when set; otherwise the standard locations are probed,
// including next to the executable. Returns "" when no usable clip exists.
func FindReferenceAudio(override string) string {
	if override != "" {
		if fileExists(override) {
			return override
		}
		return ""
	}
	for _, c := range referenceCandidates {
		if fileExists(c) {
			return c
		}
	}
	if exe, err := os.Executable(); err == nil {
		for _, c := range referenceCandidates {
			p := filepath.Join(filepath.Dir(exe), c)
			if fileExists(p) {
				return p
			}
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
