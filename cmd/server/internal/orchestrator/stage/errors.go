package stage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Code classifies pipeline failures.
type Code string

const (
	// INVALID_PARAMETER malformed or out-of-range caller input, rejected
	// before any engine is touched.
	INVALID_PARAMETER Code = "INVALID_PARAMETER"

	// INVALID_MODEL requested engine outside the stage's enumerated set.
	INVALID_MODEL Code = "INVALID_MODEL"

	// UNKNOWN_LANGUAGE language tag absent from the catalog.
	UNKNOWN_LANGUAGE Code = "UNKNOWN_LANGUAGE"

	// UNSUPPORTED_FORMAT media extension outside the allowed set.
	UNSUPPORTED_FORMAT Code = "UNSUPPORTED_FORMAT"

	// TRANSCODE_FAILURE decoder or converter error while normalizing media.
	TRANSCODE_FAILURE Code = "TRANSCODE_FAILURE"

	// IDENTIFICATION_FAILURE no LID engine produced a confident in-catalog tag.
	IDENTIFICATION_FAILURE Code = "IDENTIFICATION_FAILURE"

	// TRANSCRIPTION_FAILURE ASR failed with no further fallback available.
	TRANSCRIPTION_FAILURE Code = "TRANSCRIPTION_FAILURE"

	// TRANSLATION_UNAVAILABLE every eligible MT engine failed or none
	// declared the requested language pair.
	TRANSLATION_UNAVAILABLE Code = "TRANSLATION_UNAVAILABLE"

	// SYNTHESIS_UNAVAILABLE no TTS engine could serve the requested
	// language, or every eligible engine failed.
	SYNTHESIS_UNAVAILABLE Code = "SYNTHESIS_UNAVAILABLE"

	// SYNTHESIS_FAILURE a synthesis engine reported success but the output
	// artifact is missing (post-condition violated).
	SYNTHESIS_FAILURE Code = "SYNTHESIS_FAILURE"
)

// Error is a typed pipeline failure. It records the stage at which the
// failure occurred and every engine attempted, so callers can distinguish
// "nothing could serve this language" from "a single engine crashed".
type Error struct {
	Code      Code      `json:"code"`
	Stage     Kind      `json:"stage"`
	Message   string    `json:"message"`
	Requested string    `json:"requested_engine,omitempty"`
	Attempted []string  `json:"engines_attempted,omitempty"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", e.Code, e.Stage, e.Message)
	if len(e.Attempted) > 0 {
		fmt.Fprintf(&b, " (attempted: %s)", strings.Join(e.Attempted, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap supports error chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a typed stage failure.
func NewError(code Code, kind Kind, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Stage:     kind,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// WithAttempted records the ordered set of engines tried before failing.
func (e *Error) WithAttempted(engines ...string) *Error {
	e.Attempted = append(e.Attempted, engines...)
	return e
}

// WithRequested records the engine the caller originally asked for.
func (e *Error) WithRequested(engine string) *Error {
	e.Requested = engine
	return e
}

// As extracts a typed stage error from an error chain.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsValidation reports whether err is a validation failure, which must be
// rejected immediately and never triggers engine fallback.
func IsValidation(err error) bool {
	se, ok := As(err)
	if !ok {
		return false
	}
	switch se.Code {
	case INVALID_PARAMETER, INVALID_MODEL, UNKNOWN_LANGUAGE, UNSUPPORTED_FORMAT:
		return true
	}
	return false
}
