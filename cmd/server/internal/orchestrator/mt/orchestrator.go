// Package mt orchestrates machine-translation engines. Selection is a
// priority list seeded by the caller's preference and filtered by each
// engine's declared language-pair support; runtime failures advance the
// chain until it is exhausted.
package mt

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
	"github.com/deephabiswashi/vasha/pkg/metrics"
)

// Engine is one translation backend.
type Engine interface {
	// Translate converts text from srcTag to tgtTag, both catalog tags.
	Translate(ctx context.Context, text, srcTag, tgtTag string) (string, error)

	// Name returns the engine identifier used for provenance and logs.
	Name() string
}

// Entry pairs an engine with its descriptor and pair-support matrix.
// A nil SupportsPair means any-to-any within the catalog.
type Entry struct {
	Engine       Engine
	Descriptor   stage.EngineDescriptor
	SupportsPair func(srcTag, tgtTag string) bool
}

// Orchestrator selects and runs MT engines. Immutable after construction and
// safe for concurrent use.
type Orchestrator struct {
	entries map[string]Entry
	order   []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOrchestrator builds the orchestrator from the registered entries.
func NewOrchestrator(entries []Entry, timeout time.Duration, logger *slog.Logger) (*Orchestrator, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("at least one MT engine is required")
	}
	m := make(map[string]Entry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		m[e.Descriptor.ID] = e
		order = append(order, e.Descriptor.ID)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return m[order[i]].Descriptor.Rank < m[order[j]].Descriptor.Rank
	})
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Orchestrator{entries: m, order: order, timeout: timeout, logger: logger}, nil
}

// Descriptors returns the engine catalog in rank order for client display.
func (o *Orchestrator) Descriptors() []stage.EngineDescriptor {
	out := make([]stage.EngineDescriptor, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.entries[id].Descriptor)
	}
	return out
}

// Translate runs the translation chain. Both tags must resolve against the
// catalog before any engine is selected. Empty input short-circuits to an
// empty translation and identical tags short-circuit to the input text;
// neither invokes an engine.
func (o *Orchestrator) Translate(ctx context.Context, text, srcTag, tgtTag, preferred string) (stage.Result, error) {
	if !lang.Known(srcTag) {
		err := stage.NewError(stage.UNKNOWN_LANGUAGE, stage.KindMT,
			fmt.Sprintf("source language %q is not in the catalog", srcTag), nil).WithRequested(preferred)
		return stage.Failed(stage.KindMT, err), err
	}
	if !lang.Known(tgtTag) {
		err := stage.NewError(stage.UNKNOWN_LANGUAGE, stage.KindMT,
			fmt.Sprintf("target language %q is not in the catalog", tgtTag), nil).WithRequested(preferred)
		return stage.Failed(stage.KindMT, err), err
	}
	if preferred != "" && preferred != "auto" {
		if _, ok := o.entries[preferred]; !ok {
			err := stage.NewError(stage.INVALID_MODEL, stage.KindMT,
				fmt.Sprintf("invalid model %q, valid models: %v", preferred, o.order), nil).WithRequested(preferred)
			return stage.Failed(stage.KindMT, err), err
		}
	}

	if strings.TrimSpace(text) == "" {
		return stage.Result{Kind: stage.KindMT, Success: true, Text: "", Language: tgtTag, ModelRequested: preferred}, nil
	}
	if srcTag == tgtTag {
		return stage.Result{Kind: stage.KindMT, Success: true, Text: text, Language: tgtTag, ModelRequested: preferred}, nil
	}

	chain := o.chain(preferred, srcTag, tgtTag)
	if len(chain) == 0 {
		err := stage.NewError(stage.TRANSLATION_UNAVAILABLE, stage.KindMT,
			fmt.Sprintf("no engine declares support for %s -> %s", srcTag, tgtTag), nil).WithRequested(preferred)
		return stage.Failed(stage.KindMT, err), err
	}

	var attempted []string
	var lastErr error
	for i, id := range chain {
		if i > 0 {
			metrics.RecordFallbackEvent(string(stage.KindMT), chain[i-1], id)
			if o.logger != nil {
				o.logger.Warn("MT advancing to next engine",
					"from", chain[i-1], "to", id, "src", srcTag, "tgt", tgtTag, "reason", lastErr)
			}
		}

		translated, elapsed, err := o.attempt(ctx, id, text, srcTag, tgtTag)
		if err == nil {
			return stage.Result{
				Kind:           stage.KindMT,
				Success:        true,
				Text:           translated,
				Language:       tgtTag,
				ModelRequested: preferred,
				ModelUsed:      id,
				Duration:       elapsed,
			}, nil
		}
		attempted = append(attempted, id)
		lastErr = err
	}

	err := stage.NewError(stage.TRANSLATION_UNAVAILABLE, stage.KindMT,
		fmt.Sprintf("translation %s -> %s failed on every eligible engine", srcTag, tgtTag), lastErr).
		WithRequested(preferred).
		WithAttempted(attempted...)
	return stage.Failed(stage.KindMT, err), err
}

// chain builds the eligible priority list: the caller's preference first,
// then every other engine in rank order, keeping only engines that declare
// the pair.
func (o *Orchestrator) chain(preferred, srcTag, tgtTag string) []string {
	ids := make([]string, 0, len(o.order))
	if preferred != "" && preferred != "auto" {
		ids = append(ids, preferred)
	}
	for _, id := range o.order {
		if id != preferred {
			ids = append(ids, id)
		}
	}

	eligible := ids[:0]
	for _, id := range ids {
		e := o.entries[id]
		if e.SupportsPair == nil || e.SupportsPair(srcTag, tgtTag) {
			eligible = append(eligible, id)
		}
	}
	return eligible
}

func (o *Orchestrator) attempt(ctx context.Context, engineID, text, srcTag, tgtTag string) (string, time.Duration, error) {
	eng := o.entries[engineID].Engine

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	translated, err := eng.Translate(ctx, text, srcTag, tgtTag)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "failed"
		if ctx.Err() != nil {
			status = "timeout"
		}
	}
	metrics.RecordStageExecution(string(stage.KindMT), engineID, status)
	metrics.RecordStageDuration(string(stage.KindMT), engineID, elapsed.Seconds())

	if err == nil && strings.TrimSpace(translated) == "" {
		// A blank translation of non-blank input is an engine failure, not
		// a result.
		err = fmt.Errorf("engine %s returned empty translation", engineID)
	}
	return translated, elapsed, err
}
