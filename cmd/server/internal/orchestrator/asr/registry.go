package asr

import (
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
)

// Engine identifiers of the closed ASR set.
const (
	EngineWhisper        = "whisper"
	EngineFasterWhisper  = "faster_whisper"
	EngineIndicConformer = "ai4bharat"
)

// DefaultEntries wires the production engine set: two universal
// Whisper-family engines and the Indic-only AI4Bharat conformer, which
// falls back to Whisper.
func DefaultEntries(whisperURL, fasterWhisperURL, indicURL, whisperSize string) []Entry {
	return []Entry{
		{
			Engine: NewWhisperEngine(EngineWhisper, whisperURL, whisperSize),
			Descriptor: stage.EngineDescriptor{
				ID:          EngineWhisper,
				Kind:        stage.KindASR,
				Name:        "Whisper",
				Description: "OpenAI's Whisper model",
				Rank:        0,
			},
		},
		{
			Engine: NewWhisperEngine(EngineFasterWhisper, fasterWhisperURL, whisperSize),
			Descriptor: stage.EngineDescriptor{
				ID:          EngineFasterWhisper,
				Kind:        stage.KindASR,
				Name:        "Faster Whisper",
				Description: "Optimized Whisper implementation",
				Rank:        1,
			},
		},
		{
			Engine: NewIndicConformerEngine(EngineIndicConformer, indicURL),
			Descriptor: stage.EngineDescriptor{
				ID:               EngineIndicConformer,
				Kind:             stage.KindASR,
				Name:             "AI4Bharat Indic Conformer",
				Description:      "Multilingual ASR for Indic languages",
				Languages:        lang.Indic(),
				SupportsFallback: true,
				FallbackTo:       EngineWhisper,
				Rank:             2,
			},
		},
	}
}
