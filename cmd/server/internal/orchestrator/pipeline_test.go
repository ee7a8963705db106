package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/asr"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lid"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/media"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/mt"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/tts"
)

type plLID struct {
	code  string
	conf  float64
	err   error
	calls int
}

func (f *plLID) Identify(ctx context.Context, wavPath string) (string, float64, error) {
	f.calls++
	return f.code, f.conf, f.err
}
func (f *plLID) Name() string { return "whisper" }

type plASR struct {
	text  string
	err   error
	calls int
}

func (f *plASR) Transcribe(ctx context.Context, wavPath, languageTag, decoding string) (string, error) {
	f.calls++
	return f.text, f.err
}
func (f *plASR) Name() string { return "whisper" }

type plMT struct {
	text  string
	err   error
	calls int
}

func (f *plMT) Translate(ctx context.Context, text, srcTag, tgtTag string) (string, error) {
	f.calls++
	return f.text, f.err
}
func (f *plMT) Name() string { return "nllb" }

type plTTS struct {
	err   error
	calls int
}

func (f *plTTS) Synthesize(ctx context.Context, text, langTag, outPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("RIFF audio"), 0o644)
}
func (f *plTTS) Name() string { return "gtts" }

type plFakes struct {
	lid *plLID
	asr *plASR
	mt  *plMT
	tts *plTTS
}

func newTestController(t *testing.T, f plFakes) *Controller {
	t.Helper()
	identifier, err := lid.NewIdentifier([]lid.Engine{f.lid}, "whisper", 0.5, time.Minute, nil)
	require.NoError(t, err)

	asrOrch, err := asr.NewOrchestrator([]asr.Entry{{
		Engine:     f.asr,
		Descriptor: stage.EngineDescriptor{ID: asr.EngineWhisper, Kind: stage.KindASR},
	}}, time.Minute, nil)
	require.NoError(t, err)

	mtOrch, err := mt.NewOrchestrator([]mt.Entry{{
		Engine:     f.mt,
		Descriptor: stage.EngineDescriptor{ID: "nllb", Kind: stage.KindMT},
	}}, time.Minute, nil)
	require.NoError(t, err)

	ttsOrch, err := tts.NewOrchestrator([]tts.Entry{{
		Engine:     f.tts,
		Descriptor: stage.EngineDescriptor{ID: "gtts", Kind: stage.KindTTS},
		Format:     "mp3",
	}}, tts.Config{
		OutputDir:      t.TempDir(),
		ReferenceAudio: filepath.Join(t.TempDir(), "absent.wav"),
	}, nil)
	require.NoError(t, err)

	return NewController(identifier, asrOrch, mtOrch, ttsOrch, 2, nil)
}

func defaultFakes() plFakes {
	return plFakes{
		lid: &plLID{code: "hi", conf: 0.94},
		asr: &plASR{text: "नमस्ते दुनिया"},
		mt:  &plMT{text: "hello world"},
		tts: &plTTS{},
	}
}

func newWavArtifact(t *testing.T) *media.Artifact {
	t.Helper()
	p := filepath.Join(t.TempDir(), "input.wav")
	require.NoError(t, os.WriteFile(p, []byte("RIFF wave"), 0o644))
	return media.Adopt(p)
}

func TestPipelineFullRun(t *testing.T) {
	f := defaultFakes()
	c := newTestController(t, f)
	art := newWavArtifact(t)
	path := art.Path()

	res, err := c.Run(context.Background(), art, PipelineOptions{
		TargetLanguage: "eng_Latn",
		Synthesize:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, "hin_Deva", res.SourceLanguage)
	assert.InDelta(t, 0.94, res.Confidence, 1e-9)
	assert.Equal(t, "नमस्ते दुनिया", res.Transcript)
	assert.Equal(t, "hello world", res.Translation)
	require.NotNil(t, res.Audio)
	assert.Equal(t, "mp3", res.Audio.ArtifactFormat)
	assert.Len(t, res.Stages, 4)

	// The controller owns the input artifact and must delete it.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelineEmitsStageRecords(t *testing.T) {
	f := defaultFakes()
	c := newTestController(t, f)
	var buf bytes.Buffer
	c.logger = slog.New(slog.NewTextHandler(&buf, nil))

	_, err := c.Run(context.Background(), newWavArtifact(t), PipelineOptions{
		TargetLanguage: "eng_Latn",
		Synthesize:     true,
	})
	require.NoError(t, err)

	log := buf.String()
	for _, want := range []string{"stage=lid", "stage=asr", "stage=mt", "stage=tts", "action=success"} {
		assert.Contains(t, log, want)
	}
}

func TestPipelineFailedStageRecordCarriesErrorCode(t *testing.T) {
	f := defaultFakes()
	f.asr.err = errors.New("model load failed")
	c := newTestController(t, f)
	var buf bytes.Buffer
	c.logger = slog.New(slog.NewTextHandler(&buf, nil))

	_, err := c.Run(context.Background(), newWavArtifact(t), PipelineOptions{
		SourceLanguage: "hin_Deva",
		TargetLanguage: "eng_Latn",
	})
	require.Error(t, err)

	log := buf.String()
	assert.Contains(t, log, "stage=asr")
	assert.Contains(t, log, "action=error")
	assert.Contains(t, log, "error_code=TRANSCRIPTION_FAILURE")
}

func TestPipelineForcedSourceSkipsIdentification(t *testing.T) {
	f := defaultFakes()
	c := newTestController(t, f)

	res, err := c.Run(context.Background(), newWavArtifact(t), PipelineOptions{
		SourceLanguage: "hin_Deva",
		TargetLanguage: "eng_Latn",
	})
	require.NoError(t, err)
	assert.Equal(t, "hin_Deva", res.SourceLanguage)
	assert.Zero(t, f.lid.calls)
	require.NotEmpty(t, res.Stages)
	assert.Equal(t, stage.KindASR, res.Stages[0].Kind)
}

func TestPipelineIdenticalLanguagesSkipTranslation(t *testing.T) {
	f := defaultFakes()
	c := newTestController(t, f)

	res, err := c.Run(context.Background(), newWavArtifact(t), PipelineOptions{
		SourceLanguage: "hin_Deva",
		TargetLanguage: "hin_Deva",
	})
	require.NoError(t, err)
	assert.Equal(t, res.Transcript, res.Translation)
	assert.Zero(t, f.mt.calls)
}

func TestPipelineIdentificationFailureIsFatal(t *testing.T) {
	f := defaultFakes()
	f.lid.err = errors.New("model crashed")
	c := newTestController(t, f)
	art := newWavArtifact(t)
	path := art.Path()

	res, err := c.Run(context.Background(), art, PipelineOptions{
		TargetLanguage: "eng_Latn",
	})
	serr, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.IDENTIFICATION_FAILURE, serr.Code)
	assert.Zero(t, f.asr.calls)
	assert.Empty(t, res.Transcript)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelineTranscriptionFailureHaltsDownstream(t *testing.T) {
	f := defaultFakes()
	f.asr.err = errors.New("inference crashed")
	c := newTestController(t, f)

	res, err := c.Run(context.Background(), newWavArtifact(t), PipelineOptions{
		SourceLanguage: "hin_Deva",
		TargetLanguage: "eng_Latn",
		Synthesize:     true,
	})
	serr, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.TRANSCRIPTION_FAILURE, serr.Code)
	assert.Zero(t, f.mt.calls)
	assert.Zero(t, f.tts.calls)
	require.NotEmpty(t, res.Stages)
	assert.False(t, res.Stages[len(res.Stages)-1].Success)
}

func TestPipelineUnknownTargetRejectedBeforeAnyInference(t *testing.T) {
	f := defaultFakes()
	c := newTestController(t, f)

	// No forced source, so identification would be the first inference.
	_, err := c.Run(context.Background(), newWavArtifact(t), PipelineOptions{
		TargetLanguage: "klingon",
	})
	serr, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.UNKNOWN_LANGUAGE, serr.Code)
	assert.Zero(t, f.lid.calls)
	assert.Zero(t, f.asr.calls)
}

func TestPipelineCancelledContextReleasesArtifact(t *testing.T) {
	f := defaultFakes()
	c := newTestController(t, f)
	art := newWavArtifact(t)
	path := art.Path()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, art, PipelineOptions{
		SourceLanguage: "hin_Deva",
		TargetLanguage: "eng_Latn",
	})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
