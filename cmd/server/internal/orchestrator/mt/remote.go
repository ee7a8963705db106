package mt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
)

// RemoteEngine calls an HTTP translation service speaking catalog tags
// directly. Both the IndicTrans2 and NLLB sidecars expose this shape.
type RemoteEngine struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewRemoteEngine builds an adapter for the service at baseURL.
func NewRemoteEngine(name, baseURL string) *RemoteEngine {
	return &RemoteEngine{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

func (e *RemoteEngine) Name() string { return e.name }

func (e *RemoteEngine) Translate(ctx context.Context, text, srcTag, tgtTag string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"text":     text,
		"src_lang": srcTag,
		"tgt_lang": tgtTag,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", e.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s response: %w", e.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d: %s", e.name, resp.StatusCode, truncate(string(body), 200))
	}

	var out struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", e.name, err)
	}
	return out.Translation, nil
}

// GoogleEngine uses the public translate endpoint. It only covers catalog
// languages that carry an ISO 639-1 code.
type GoogleEngine struct {
	baseURL string
	client  *http.Client
}

// NewGoogleEngine builds the adapter. baseURL overrides the public endpoint
// for tests; pass "" for the default.
func NewGoogleEngine(baseURL string) *GoogleEngine {
	if baseURL == "" {
		baseURL = "https://translate.googleapis.com"
	}
	return &GoogleEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (e *GoogleEngine) Name() string { return "google" }

func (e *GoogleEngine) Translate(ctx context.Context, text, srcTag, tgtTag string) (string, error) {
	src, ok := iso1(srcTag)
	if !ok {
		return "", fmt.Errorf("no ISO 639-1 code for %s", srcTag)
	}
	tgt, ok := iso1(tgtTag)
	if !ok {
		return "", fmt.Errorf("no ISO 639-1 code for %s", tgtTag)
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", src)
	q.Set("tl", tgt)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		e.baseURL+"/translate_a/single?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling google translate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading google response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google translate returned status %d", resp.StatusCode)
	}

	// Response shape: [[["translated","original",...],["next","..."],...],...]
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return "", fmt.Errorf("unexpected google response: %s", truncate(string(body), 200))
	}
	var segments [][]json.RawMessage
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", fmt.Errorf("unexpected google response: %s", truncate(string(body), 200))
	}
	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var piece string
		if err := json.Unmarshal(seg[0], &piece); err == nil {
			sb.WriteString(piece)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("google translate returned no segments")
	}
	return sb.String(), nil
}

func iso1(tag string) (string, bool) {
	l, ok := lang.Lookup(tag)
	if !ok || l.ISO1 == "" {
		return "", false
	}
	return l.ISO1, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
