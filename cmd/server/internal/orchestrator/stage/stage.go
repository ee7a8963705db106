// Package stage defines the shared vocabulary of the inference pipeline:
// stage kinds, engine descriptors, per-stage results, and the typed failure
// taxonomy. Every orchestrator (lid, asr, mt, tts) speaks in these types so
// the fallback contract stays identical across heterogeneous engines.
package stage

import "time"

// Kind identifies one pipeline stage.
type Kind string

const (
	KindIngest Kind = "ingest"
	KindLID    Kind = "lid"
	KindASR    Kind = "asr"
	KindMT     Kind = "mt"
	KindTTS    Kind = "tts"
)

// EngineDescriptor describes one registered engine: its identity, the stage
// it serves, its declared language support, and its fallback relationship.
// Descriptors are immutable after process start.
type EngineDescriptor struct {
	// ID is the engine tag callers select by (e.g., "whisper", "indictrans").
	ID string `json:"id"`

	// Kind is the stage this engine serves.
	Kind Kind `json:"kind"`

	// Name is the human-readable engine name for client-side display.
	Name string `json:"name"`

	// Description explains what backs the engine.
	Description string `json:"description"`

	// Languages is the declared supported-language set. A nil/empty set
	// means universal support across the whole catalog.
	Languages []string `json:"languages,omitempty"`

	// SupportsFallback reports whether a runtime failure or an unsupported
	// language triggers a single-hop substitution.
	SupportsFallback bool `json:"supports_fallback"`

	// FallbackTo names the designated general-purpose engine used when
	// SupportsFallback is true.
	FallbackTo string `json:"fallback_to,omitempty"`

	// Rank orders engines within their stage; lower ranks are tried first
	// when the caller asks for automatic selection.
	Rank int `json:"-"`
}

// Universal reports whether the engine declares support for every catalog
// language.
func (d EngineDescriptor) Universal() bool {
	return len(d.Languages) == 0
}

// SupportsLanguage reports whether the engine declares support for tag.
func (d EngineDescriptor) SupportsLanguage(tag string) bool {
	if d.Universal() {
		return true
	}
	for _, l := range d.Languages {
		if l == tag {
			return true
		}
	}
	return false
}

// Result is the immutable outcome of one pipeline stage. ModelUsed records
// provenance: the engine that actually produced the payload, which may
// differ from ModelRequested after a fallback.
type Result struct {
	Kind           Kind          `json:"stage"`
	Success        bool          `json:"success"`
	Text           string        `json:"text,omitempty"`
	Language       string        `json:"language,omitempty"`
	Confidence     float64       `json:"confidence,omitempty"`
	ArtifactName   string        `json:"artifact_name,omitempty"`
	ArtifactFormat string        `json:"artifact_format,omitempty"`
	ModelRequested string        `json:"model_requested,omitempty"`
	ModelUsed      string        `json:"model_used,omitempty"`
	Duration       time.Duration `json:"-"`
	Err            *Error        `json:"error,omitempty"`
}

// Failed builds a failure Result for kind carrying err.
func Failed(kind Kind, err *Error) Result {
	return Result{Kind: kind, Success: false, ModelRequested: err.Requested, Err: err}
}
