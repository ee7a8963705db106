package tts

import (
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
)

// Engine identifiers exposed through the model catalog.
const (
	EngineXTTS  = "xtts"
	EngineIndic = "indic"
	EngineGTTS  = "gtts"
	EngineEdge  = "edge"
)

// DefaultEntries wires the standard TTS engine set. Rank order doubles as
// the automatic-selection order: voice cloning when a reference clip
// exists, then the Indic models, then the public fallbacks.
func DefaultEntries(xttsURL, indicURL, refOverride string) []Entry {
	return []Entry{
		{
			Engine: NewXTTSEngine(xttsURL, refOverride),
			Descriptor: stage.EngineDescriptor{
				ID:          EngineXTTS,
				Kind:        stage.KindTTS,
				Name:        "XTTS v2",
				Description: "Voice cloning from a reference clip, languages with ISO 639-1 codes only",
				Languages:   iso1Tags(),
				Rank:        0,
			},
			Format:            "wav",
			RequiresReference: true,
		},
		{
			Engine: NewIndicTTSEngine(indicURL),
			Descriptor: stage.EngineDescriptor{
				ID:          EngineIndic,
				Kind:        stage.KindTTS,
				Name:        "AI4Bharat Indic TTS",
				Description: "Native voices for the scheduled Indian languages",
				Languages:   lang.Indic(),
				Rank:        1,
			},
			Format: "wav",
		},
		{
			Engine: NewGTTSEngine(""),
			Descriptor: stage.EngineDescriptor{
				ID:          EngineGTTS,
				Kind:        stage.KindTTS,
				Name:        "Google TTS",
				Description: "Public translate_tts endpoint, languages with ISO 639-1 codes only",
				Languages:   iso1Tags(),
				Rank:        2,
			},
			Format: "mp3",
		},
		{
			Engine: NewEdgeEngine(),
			Descriptor: stage.EngineDescriptor{
				ID:          EngineEdge,
				Kind:        stage.KindTTS,
				Name:        "Edge TTS",
				Description: "Microsoft Edge neural voices",
				Languages:   EdgeVoicedTags(),
				Rank:        3,
			},
			Format: "mp3",
		},
	}
}

// iso1Tags returns the catalog tags that carry an ISO 639-1 code.
func iso1Tags() []string {
	var out []string
	for _, l := range lang.All() {
		if l.ISO1 != "" {
			out = append(out, l.Tag)
		}
	}
	return out
}
