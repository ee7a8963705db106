package lid

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
)

// RemoteEngine implements Engine against an HTTP language-identification
// service. Both the Whisper LID head and the AI4Bharat LID model run as
// model containers exposing the same contract:
//
//	POST {baseURL}/api/lid  (multipart: audio)
//	→ {"language": "hi", "confidence": 0.97}
type RemoteEngine struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewRemoteEngine creates a remote LID adapter with the given engine tag and
// service base URL.
func NewRemoteEngine(name, baseURL string) *RemoteEngine {
	return &RemoteEngine{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Name implements Engine.
func (r *RemoteEngine) Name() string {
	return r.name
}

// Identify implements Engine by uploading the waveform and decoding the
// detection response.
func (r *RemoteEngine) Identify(ctx context.Context, wavPath string) (string, float64, error) {
	file, err := os.Open(wavPath)
	if err != nil {
		return "", 0, fmt.Errorf("open waveform: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", filepath.Base(wavPath))
	if err != nil {
		return "", 0, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", 0, fmt.Errorf("copy waveform: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", 0, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/lid", body)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("LID service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", 0, fmt.Errorf("LID service returned HTTP %d: %s", resp.StatusCode, payload)
	}

	var parsed struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("decode LID response: %w", err)
	}
	return parsed.Language, parsed.Confidence, nil
}
