package asr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
)

type scriptedEngine struct {
	name  string
	text  string
	err   error
	calls int
	block time.Duration
}

func (s *scriptedEngine) Transcribe(ctx context.Context, wavPath, languageTag, decoding string) (string, error) {
	s.calls++
	if s.block > 0 {
		select {
		case <-time.After(s.block):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *scriptedEngine) Name() string { return s.name }

func testEntries(whisper, faster, indic Engine) []Entry {
	return []Entry{
		{Engine: whisper, Descriptor: stage.EngineDescriptor{
			ID: EngineWhisper, Kind: stage.KindASR, Name: "Whisper", Rank: 0,
		}},
		{Engine: faster, Descriptor: stage.EngineDescriptor{
			ID: EngineFasterWhisper, Kind: stage.KindASR, Name: "Faster Whisper", Rank: 1,
		}},
		{Engine: indic, Descriptor: stage.EngineDescriptor{
			ID: EngineIndicConformer, Kind: stage.KindASR, Name: "AI4Bharat",
			Languages: lang.Indic(), SupportsFallback: true, FallbackTo: EngineWhisper, Rank: 2,
		}},
	}
}

func newOrchestrator(t *testing.T, entries []Entry) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(entries, time.Minute, nil)
	require.NoError(t, err)
	return o
}

func TestTranscribeHappyPath(t *testing.T) {
	whisper := &scriptedEngine{name: EngineWhisper, text: "hello"}
	o := newOrchestrator(t, testEntries(whisper, &scriptedEngine{name: EngineFasterWhisper}, &scriptedEngine{name: EngineIndicConformer}))

	res, err := o.Transcribe(context.Background(), "in.wav", "eng_Latn", EngineWhisper, "ctc")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, EngineWhisper, res.ModelUsed)
	assert.Equal(t, EngineWhisper, res.ModelRequested)
}

func TestTranscribeInvalidModelFailsFast(t *testing.T) {
	whisper := &scriptedEngine{name: EngineWhisper, text: "x"}
	indic := &scriptedEngine{name: EngineIndicConformer, text: "y"}
	o := newOrchestrator(t, testEntries(whisper, &scriptedEngine{name: EngineFasterWhisper}, indic))

	res, err := o.Transcribe(context.Background(), "in.wav", "hin_Deva", "wav2vec", "ctc")
	require.Error(t, err)
	se, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.INVALID_MODEL, se.Code)
	assert.False(t, res.Success)
	// Validation precedes resource use: no inference was attempted.
	assert.Zero(t, whisper.calls)
	assert.Zero(t, indic.calls)
}

func TestTranscribeUnknownLanguageFailsFast(t *testing.T) {
	whisper := &scriptedEngine{name: EngineWhisper}
	o := newOrchestrator(t, testEntries(whisper, &scriptedEngine{name: EngineFasterWhisper}, &scriptedEngine{name: EngineIndicConformer}))

	_, err := o.Transcribe(context.Background(), "in.wav", "fra_Latn", EngineWhisper, "")
	require.Error(t, err)
	se, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.UNKNOWN_LANGUAGE, se.Code)
	assert.Zero(t, whisper.calls)
}

func TestTranscribeInvalidDecodingFailsFast(t *testing.T) {
	o := newOrchestrator(t, testEntries(&scriptedEngine{name: EngineWhisper}, &scriptedEngine{name: EngineFasterWhisper}, &scriptedEngine{name: EngineIndicConformer}))

	_, err := o.Transcribe(context.Background(), "in.wav", "hin_Deva", EngineWhisper, "beam")
	require.Error(t, err)
	se, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.INVALID_PARAMETER, se.Code)
}

func TestTranscribeRuntimeErrorTriggersOneFallback(t *testing.T) {
	whisper := &scriptedEngine{name: EngineWhisper, text: "fallback transcript"}
	indic := &scriptedEngine{name: EngineIndicConformer, err: errors.New("cuda OOM")}
	o := newOrchestrator(t, testEntries(whisper, &scriptedEngine{name: EngineFasterWhisper}, indic))

	res, err := o.Transcribe(context.Background(), "in.wav", "hin_Deva", EngineIndicConformer, "rnnt")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "fallback transcript", res.Text)
	assert.Equal(t, EngineIndicConformer, res.ModelRequested)
	assert.Equal(t, EngineWhisper, res.ModelUsed)
	assert.Equal(t, 1, indic.calls)
	assert.Equal(t, 1, whisper.calls)
}

func TestTranscribeUnsupportedLanguageSkipsToFallback(t *testing.T) {
	whisper := &scriptedEngine{name: EngineWhisper, text: "english text"}
	indic := &scriptedEngine{name: EngineIndicConformer, text: "should not run"}
	o := newOrchestrator(t, testEntries(whisper, &scriptedEngine{name: EngineFasterWhisper}, indic))

	// AI4Bharat does not declare English; the conformer is never invoked.
	res, err := o.Transcribe(context.Background(), "in.wav", "eng_Latn", EngineIndicConformer, "ctc")
	require.NoError(t, err)
	assert.Equal(t, EngineWhisper, res.ModelUsed)
	assert.Zero(t, indic.calls)
	assert.Equal(t, 1, whisper.calls)
}

func TestTranscribeNoFallbackSurfacesFailure(t *testing.T) {
	faster := &scriptedEngine{name: EngineFasterWhisper, err: errors.New("segfault")}
	whisper := &scriptedEngine{name: EngineWhisper, text: "never"}
	o := newOrchestrator(t, testEntries(whisper, faster, &scriptedEngine{name: EngineIndicConformer}))

	res, err := o.Transcribe(context.Background(), "in.wav", "hin_Deva", EngineFasterWhisper, "")
	require.Error(t, err)
	se, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.TRANSCRIPTION_FAILURE, se.Code)
	assert.Equal(t, []string{EngineFasterWhisper}, se.Attempted)
	assert.False(t, res.Success)
	// No fallback declared: whisper must not have been substituted.
	assert.Zero(t, whisper.calls)
}

func TestTranscribeFallbackFailureIsBounded(t *testing.T) {
	whisper := &scriptedEngine{name: EngineWhisper, err: errors.New("also down")}
	faster := &scriptedEngine{name: EngineFasterWhisper, text: "never tried"}
	indic := &scriptedEngine{name: EngineIndicConformer, err: errors.New("down")}
	o := newOrchestrator(t, testEntries(whisper, faster, indic))

	_, err := o.Transcribe(context.Background(), "in.wav", "hin_Deva", EngineIndicConformer, "ctc")
	require.Error(t, err)
	se, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.TRANSCRIPTION_FAILURE, se.Code)
	assert.Equal(t, []string{EngineIndicConformer, EngineWhisper}, se.Attempted)
	// Single hop only: faster_whisper is never drafted into the chain.
	assert.Zero(t, faster.calls)
}

func TestTranscribeTimeoutFollowsFallbackPath(t *testing.T) {
	whisper := &scriptedEngine{name: EngineWhisper, text: "rescued"}
	slow := &scriptedEngine{name: EngineIndicConformer, block: time.Second}
	entries := testEntries(whisper, &scriptedEngine{name: EngineFasterWhisper}, slow)

	o, err := NewOrchestrator(entries, 20*time.Millisecond, nil)
	require.NoError(t, err)

	res, err := o.Transcribe(context.Background(), "in.wav", "hin_Deva", EngineIndicConformer, "ctc")
	require.NoError(t, err)
	assert.Equal(t, EngineWhisper, res.ModelUsed)
}

func TestNewOrchestratorValidatesFallbackTargets(t *testing.T) {
	_, err := NewOrchestrator([]Entry{
		{Engine: &scriptedEngine{name: "a"}, Descriptor: stage.EngineDescriptor{
			ID: "a", Kind: stage.KindASR, SupportsFallback: true, FallbackTo: "missing",
		}},
	}, time.Minute, nil)
	assert.Error(t, err)

	_, err = NewOrchestrator([]Entry{
		{Engine: &scriptedEngine{name: "a"}, Descriptor: stage.EngineDescriptor{
			ID: "a", Kind: stage.KindASR, SupportsFallback: true, FallbackTo: "b",
		}},
		{Engine: &scriptedEngine{name: "b"}, Descriptor: stage.EngineDescriptor{
			ID: "b", Kind: stage.KindASR, SupportsFallback: true, FallbackTo: "a",
		}},
	}, time.Minute, nil)
	assert.Error(t, err, "fallback chains beyond one hop must be rejected")
}

func TestDescriptorsRankOrder(t *testing.T) {
	o := newOrchestrator(t, testEntries(&scriptedEngine{name: EngineWhisper}, &scriptedEngine{name: EngineFasterWhisper}, &scriptedEngine{name: EngineIndicConformer}))

	descs := o.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, EngineWhisper, descs[0].ID)
	assert.Equal(t, EngineFasterWhisper, descs[1].ID)
	assert.Equal(t, EngineIndicConformer, descs[2].ID)
	assert.True(t, descs[2].SupportsFallback)
	assert.Equal(t, EngineWhisper, descs[2].FallbackTo)
}
