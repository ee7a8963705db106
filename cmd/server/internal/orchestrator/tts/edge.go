package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
)

// edgeVoices maps catalog tags to Microsoft Edge neural voices. Languages
// without a published voice are absent and the engine declines them.
var edgeVoices = map[string]string{
	"eng_Latn": "en-IN-NeerjaNeural",
	"asm_Beng": "as-IN-YashicaNeural",
	"ben_Beng": "bn-IN-TanishaaNeural",
	"guj_Gujr": "gu-IN-DhwaniNeural",
	"hin_Deva": "hi-IN-SwaraNeural",
	"kan_Knda": "kn-IN-SapnaNeural",
	"mal_Mlym": "ml-IN-SobhanaNeural",
	"mar_Deva": "mr-IN-AarohiNeural",
	"npi_Deva": "ne-NP-HemkalaNeural",
	"ory_Orya": "or-IN-SubhasiniNeural",
	"pan_Guru": "pa-IN-VaaniNeural",
	"tam_Taml": "ta-IN-PallaviNeural",
	"tel_Telu": "te-IN-ShrutiNeural",
	"urd_Arab": "ur-IN-GulNeural",
}

// EdgeVoicedTags returns the catalog tags Edge can voice, in catalog order.
func EdgeVoicedTags() []string {
	out := make([]string, 0, len(edgeVoices))
	for _, l := range lang.All() {
		if _, ok := edgeVoices[l.Tag]; ok {
			out = append(out, l.Tag)
		}
	}
	return out
}

// EdgeEngine synthesizes speech through the Edge TTS streaming service.
// Output is MP3; the stream is buffered and validated before it touches
// disk so a truncated stream never leaves a partial artifact.
type EdgeEngine struct{}

func NewEdgeEngine() *EdgeEngine { return &EdgeEngine{} }

func (e *EdgeEngine) Name() string { return "edge" }

func (e *EdgeEngine) Synthesize(ctx context.Context, text, langTag, outPath string) error {
	voice, ok := edgeVoices[langTag]
	if !ok {
		return fmt.Errorf("edge has no voice for %s", langTag)
	}

	comm, err := edge.NewCommunicate(text, edge.WithVoice(voice))
	if err != nil {
		return fmt.Errorf("creating edge session: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return fmt.Errorf("starting edge stream: %w", err)
	}

	var buf bytes.Buffer
	for msg := range ch {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				buf.Write(data)
			}
		}
	}
	if buf.Len() == 0 {
		return fmt.Errorf("edge stream produced no audio")
	}
	if _, err := MP3Duration(bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("edge stream produced unreadable audio: %w", err)
	}

	return os.WriteFile(outPath, buf.Bytes(), 0o644)
}

// MP3Duration decodes just enough of an MP3 stream to report its play time.
// The reader should also seek so the decoder can size the stream up front.
func MP3Duration(r io.Reader) (time.Duration, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("decoding mp3: %w", err)
	}
	// Length is decoded PCM bytes: stereo signed 16-bit, 4 bytes per frame.
	frames := dec.Length() / 4
	if frames <= 0 || dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("mp3 stream has no frames")
	}
	sec := float64(frames) / float64(dec.SampleRate())
	return time.Duration(sec * float64(time.Second)), nil
}
