package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
)

// XTTSEngine calls a voice-cloning XTTS sidecar. Every request carries the
// reference clip so the sidecar stays stateless.
type XTTSEngine struct {
	baseURL string
	refPath string
	client  *http.Client
}

// NewXTTSEngine builds the adapter. refOverride follows the same resolution
// rules as FindReferenceAudio.
func NewXTTSEngine(baseURL, refOverride string) *XTTSEngine {
	return &XTTSEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		refPath: refOverride,
		client:  &http.Client{Timeout: 15 * time.Minute},
	}
}

func (e *XTTSEngine) Name() string { return "xtts" }

func (e *XTTSEngine) Synthesize(ctx context.Context, text, langTag, outPath string) error {
	ref := FindReferenceAudio(e.refPath)
	if ref == "" {
		return fmt.Errorf("no reference audio clip available")
	}
	l, ok := lang.Lookup(langTag)
	if !ok || l.ISO1 == "" {
		return fmt.Errorf("xtts has no voice for %s", langTag)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("text", text); err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if err := w.WriteField("language", l.ISO1); err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	part, err := w.CreateFormFile("speaker_wav", filepath.Base(ref))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	f, err := os.Open(ref)
	if err != nil {
		return fmt.Errorf("opening reference clip: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copying reference clip: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/tts", &buf)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return fetchAudio(e.client, req, outPath, "xtts")
}

// IndicTTSEngine calls an AI4Bharat Indic TTS sidecar speaking catalog tags.
type IndicTTSEngine struct {
	baseURL string
	client  *http.Client
}

func NewIndicTTSEngine(baseURL string) *IndicTTSEngine {
	return &IndicTTSEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Minute},
	}
}

func (e *IndicTTSEngine) Name() string { return "indic" }

func (e *IndicTTSEngine) Synthesize(ctx context.Context, text, langTag, outPath string) error {
	body := strings.NewReader(url.Values{
		"text":     {text},
		"language": {langTag},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/tts", body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return fetchAudio(e.client, req, outPath, "indic")
}

// GTTSEngine uses the public translate_tts endpoint. MP3 output, languages
// with ISO 639-1 codes only.
type GTTSEngine struct {
	baseURL string
	client  *http.Client
}

// NewGTTSEngine builds the adapter. baseURL overrides the public endpoint
// for tests; pass "" for the default.
func NewGTTSEngine(baseURL string) *GTTSEngine {
	if baseURL == "" {
		baseURL = "https://translate.google.com"
	}
	return &GTTSEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (e *GTTSEngine) Name() string { return "gtts" }

func (e *GTTSEngine) Synthesize(ctx context.Context, text, langTag, outPath string) error {
	l, ok := lang.Lookup(langTag)
	if !ok || l.ISO1 == "" {
		return fmt.Errorf("gtts has no voice for %s", langTag)
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", l.ISO1)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		e.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	return fetchAudio(e.client, req, outPath, "gtts")
}

// fetchAudio executes the request and streams the audio body to outPath.
func fetchAudio(client *http.Client, req *http.Request, outPath, engine string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", engine, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("%s returned status %d: %s", engine, resp.StatusCode, string(body))
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("writing %s audio: %w", engine, err)
	}
	return nil
}
