// Package lid identifies the spoken language of a waveform. Multiple engines
// are registered at startup; a preferred engine that is unavailable or errors
// falls back to the default engine. Results never leave the language catalog.
package lid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
	"github.com/deephabiswashi/vasha/pkg/metrics"
)

// Engine is one language-identification backend. Implementations may return
// either a catalog tag ("hin_Deva") or a bare ISO 639-1 code ("hi"); the
// identifier resolves both against the catalog.
type Engine interface {
	// Identify returns the detected language code and a confidence in [0, 1].
	Identify(ctx context.Context, wavPath string) (code string, confidence float64, err error)

	// Name returns the engine identifier used for provenance and logs.
	Name() string
}

// Identification is a successful language detection with provenance.
type Identification struct {
	Tag          string
	LanguageName string
	Confidence   float64
	EngineUsed   string
}

// Identifier orchestrates LID engines. Immutable after construction and safe
// for concurrent use.
type Identifier struct {
	engines       map[string]Engine
	defaultEngine string
	minConfidence float64
	timeout       time.Duration
	logger        *slog.Logger
}

// NewIdentifier builds an Identifier over the given engines. defaultEngine
// must name one of them; it serves as the fallback target for every other
// engine.
func NewIdentifier(engines []Engine, defaultEngine string, minConfidence float64, timeout time.Duration, logger *slog.Logger) (*Identifier, error) {
	m := make(map[string]Engine, len(engines))
	for _, e := range engines {
		m[e.Name()] = e
	}
	if _, ok := m[defaultEngine]; !ok {
		return nil, fmt.Errorf("default LID engine %q is not registered", defaultEngine)
	}
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Identifier{
		engines:       m,
		defaultEngine: defaultEngine,
		minConfidence: minConfidence,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

// Engines lists registered engine names, default first.
func (id *Identifier) Engines() []string {
	names := []string{id.defaultEngine}
	for name := range id.engines {
		if name != id.defaultEngine {
			names = append(names, name)
		}
	}
	return names
}

// Identify runs the preferred engine, falling back once to the default
// engine when the preferred one is unknown, errors, times out, returns an
// out-of-catalog code, or is not confident enough. Exhausting both fails
// with IDENTIFICATION_FAILURE.
func (id *Identifier) Identify(ctx context.Context, wavPath, preferred string) (Identification, error) {
	primary := preferred
	if primary == "" || primary == "auto" {
		primary = id.defaultEngine
	}

	var attempted []string
	var lastErr error

	eng, ok := id.engines[primary]
	if !ok {
		// Unavailable preferred engine falls straight through to the default.
		if id.logger != nil {
			id.logger.Warn("unknown LID engine, using default", "requested", preferred, "default", id.defaultEngine)
		}
		primary = id.defaultEngine
		eng = id.engines[primary]
	}

	res, err := id.attempt(ctx, eng, wavPath)
	if err == nil {
		return res, nil
	}
	attempted = append(attempted, primary)
	lastErr = err

	if primary != id.defaultEngine {
		fallback := id.engines[id.defaultEngine]
		metrics.RecordFallbackEvent(string(stage.KindLID), primary, id.defaultEngine)
		if id.logger != nil {
			id.logger.Warn("LID engine failed, falling back to default",
				"engine", primary, "default", id.defaultEngine, "error", err)
		}
		res, err = id.attempt(ctx, fallback, wavPath)
		if err == nil {
			return res, nil
		}
		attempted = append(attempted, id.defaultEngine)
		lastErr = err
	}

	return Identification{}, stage.NewError(stage.IDENTIFICATION_FAILURE, stage.KindLID,
		"no engine produced a confident language", lastErr).
		WithRequested(preferred).
		WithAttempted(attempted...)
}

func (id *Identifier) attempt(ctx context.Context, eng Engine, wavPath string) (Identification, error) {
	ctx, cancel := context.WithTimeout(ctx, id.timeout)
	defer cancel()

	start := time.Now()
	code, confidence, err := eng.Identify(ctx, wavPath)
	elapsed := time.Since(start)

	status := "success"
	defer func() {
		metrics.RecordStageExecution(string(stage.KindLID), eng.Name(), status)
		metrics.RecordStageDuration(string(stage.KindLID), eng.Name(), elapsed.Seconds())
	}()

	if err != nil {
		status = "failed"
		if ctx.Err() != nil {
			status = "timeout"
		}
		return Identification{}, err
	}

	entry, ok := lang.Lookup(code)
	if !ok {
		entry, ok = lang.FromISO1(code)
	}
	if !ok {
		status = "failed"
		return Identification{}, fmt.Errorf("engine %s returned unknown language %q", eng.Name(), code)
	}
	if confidence < id.minConfidence {
		status = "failed"
		return Identification{}, fmt.Errorf("engine %s not confident (%.2f < %.2f)", eng.Name(), confidence, id.minConfidence)
	}

	return Identification{
		Tag:          entry.Tag,
		LanguageName: entry.Name,
		Confidence:   confidence,
		EngineUsed:   eng.Name(),
	}, nil
}
