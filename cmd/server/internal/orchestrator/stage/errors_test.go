package stage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(TRANSCRIPTION_FAILURE, KindASR, "engine crashed", cause).
		WithRequested("ai4bharat").
		WithAttempted("ai4bharat", "whisper")

	msg := err.Error()
	assert.Contains(t, msg, "TRANSCRIPTION_FAILURE")
	assert.Contains(t, msg, "asr")
	assert.Contains(t, msg, "ai4bharat, whisper")
	assert.Contains(t, msg, "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestAsThroughWrapping(t *testing.T) {
	inner := NewError(UNKNOWN_LANGUAGE, KindMT, "no such tag", nil)
	wrapped := fmt.Errorf("translate: %w", inner)

	se, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, UNKNOWN_LANGUAGE, se.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{INVALID_PARAMETER, true},
		{INVALID_MODEL, true},
		{UNKNOWN_LANGUAGE, true},
		{UNSUPPORTED_FORMAT, true},
		{TRANSCODE_FAILURE, false},
		{TRANSCRIPTION_FAILURE, false},
		{TRANSLATION_UNAVAILABLE, false},
		{SYNTHESIS_FAILURE, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewError(tt.code, KindASR, "x", nil)
			assert.Equal(t, tt.want, IsValidation(err))
		})
	}
}

func TestDescriptorLanguageSupport(t *testing.T) {
	universal := EngineDescriptor{ID: "whisper", Kind: KindASR}
	assert.True(t, universal.Universal())
	assert.True(t, universal.SupportsLanguage("eng_Latn"))

	indic := EngineDescriptor{ID: "ai4bharat", Kind: KindASR, Languages: []string{"hin_Deva", "tam_Taml"}}
	assert.False(t, indic.Universal())
	assert.True(t, indic.SupportsLanguage("hin_Deva"))
	assert.False(t, indic.SupportsLanguage("eng_Latn"))
}
