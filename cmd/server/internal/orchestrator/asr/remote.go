package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
)

// WhisperEngine implements Engine against a Whisper-family HTTP service.
// Both the reference Whisper container and the faster-whisper container
// expose the same multipart contract:
//
//	POST {baseURL}/api/whisper/transcribe
//	fields: audio, model, language, response_format
//	→ {"text": "...", "language": "hi", "duration": 12.3}
//
// The HTTP client carries a long timeout; transcription time roughly tracks
// audio duration. The orchestrator's per-stage deadline is the effective
// bound via the request context.
type WhisperEngine struct {
	name       string
	baseURL    string
	modelSize  string
	httpClient *http.Client
}

// NewWhisperEngine creates a Whisper HTTP adapter. name distinguishes the
// "whisper" and "faster_whisper" deployments; modelSize selects the
// checkpoint (e.g., "large").
func NewWhisperEngine(name, baseURL, modelSize string) *WhisperEngine {
	if modelSize == "" {
		modelSize = "large"
	}
	return &WhisperEngine{
		name:      name,
		baseURL:   baseURL,
		modelSize: modelSize,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// Name implements Engine.
func (w *WhisperEngine) Name() string {
	return w.name
}

// Transcribe implements Engine by uploading the waveform to the Whisper
// service. Whisper speaks ISO 639-1 language codes, so the catalog tag is
// translated on the way out; tags without an ISO 639-1 code are sent as-is
// and left to the model's own detection.
func (w *WhisperEngine) Transcribe(ctx context.Context, wavPath, languageTag, decoding string) (string, error) {
	languageField := languageTag
	if entry, ok := lang.Lookup(languageTag); ok && entry.ISO1 != "" {
		languageField = entry.ISO1
	}

	fields := map[string]string{
		"model":           w.modelSize,
		"language":        languageField,
		"response_format": "json",
	}
	respBody, err := postAudio(ctx, w.httpClient, w.baseURL+"/api/whisper/transcribe", wavPath, fields)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return parsed.Text, nil
}

// IndicConformerEngine implements Engine against the AI4Bharat
// IndicConformer service. Unlike Whisper it takes catalog tags directly and
// honors the ctc/rnnt decoding switch:
//
//	POST {baseURL}/api/asr
//	fields: audio, language, decoding
//	→ {"text": "..."}
type IndicConformerEngine struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewIndicConformerEngine creates an AI4Bharat ASR adapter.
func NewIndicConformerEngine(name, baseURL string) *IndicConformerEngine {
	return &IndicConformerEngine{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// Name implements Engine.
func (e *IndicConformerEngine) Name() string {
	return e.name
}

// Transcribe implements Engine.
func (e *IndicConformerEngine) Transcribe(ctx context.Context, wavPath, languageTag, decoding string) (string, error) {
	if decoding == "" {
		decoding = "ctc"
	}
	fields := map[string]string{
		"language": languageTag,
		"decoding": decoding,
	}
	respBody, err := postAudio(ctx, e.httpClient, e.baseURL+"/api/asr", wavPath, fields)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return parsed.Text, nil
}

// postAudio uploads the file at wavPath plus the given form fields and
// returns the response body on HTTP 200.
func postAudio(ctx context.Context, client *http.Client, url, wavPath string, fields map[string]string) ([]byte, error) {
	file, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", filepath.Base(wavPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy file data: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write %s field: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ASR service unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ASR service returned HTTP %d: %s", resp.StatusCode, truncate(payload, 256))
	}
	return payload, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
