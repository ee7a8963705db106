package mt

import (
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
)

// Engine identifiers exposed through the model catalog.
const (
	EngineGoogle     = "google"
	EngineIndicTrans = "indictrans"
	EngineNLLB       = "nllb"
)

// DefaultEntries wires the standard MT engine set in rank order.
func DefaultEntries(indicTransURL, nllbURL string) []Entry {
	return []Entry{
		{
			Engine: NewGoogleEngine(""),
			Descriptor: stage.EngineDescriptor{
				ID:          EngineGoogle,
				Kind:        stage.KindMT,
				Name:        "Google Translate",
				Description: "Public translation endpoint, languages with ISO 639-1 codes only",
				Rank:        0,
			},
			SupportsPair: googlePair,
		},
		{
			Engine: NewRemoteEngine(EngineIndicTrans, indicTransURL),
			Descriptor: stage.EngineDescriptor{
				ID:          EngineIndicTrans,
				Kind:        stage.KindMT,
				Name:        "IndicTrans2",
				Description: "AI4Bharat IndicTrans2, English to and from the scheduled Indian languages",
				Rank:        1,
			},
			SupportsPair: indicTransPair,
		},
		{
			Engine: NewRemoteEngine(EngineNLLB, nllbURL),
			Descriptor: stage.EngineDescriptor{
				ID:          EngineNLLB,
				Kind:        stage.KindMT,
				Name:        "NLLB-200",
				Description: "No Language Left Behind, any catalog pair",
				Rank:        2,
			},
			// nil SupportsPair: any-to-any within the catalog.
		},
	}
}

// googlePair admits pairs where both sides carry an ISO 639-1 code.
func googlePair(srcTag, tgtTag string) bool {
	_, srcOK := iso1(srcTag)
	_, tgtOK := iso1(tgtTag)
	return srcOK && tgtOK
}

// indicTransPair admits English paired with any Indic language, in either
// direction.
func indicTransPair(srcTag, tgtTag string) bool {
	if srcTag == tgtTag {
		return false
	}
	return (srcTag == lang.English && lang.Known(tgtTag)) ||
		(tgtTag == lang.English && lang.Known(srcTag))
}
