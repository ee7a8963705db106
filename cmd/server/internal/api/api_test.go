package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephabiswashi/vasha/cmd/server/internal/history"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lang"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/mt"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/tts"
	"github.com/deephabiswashi/vasha/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiMTEngine struct {
	name   string
	output string
	err    error
}

func (e *apiMTEngine) Translate(_ context.Context, _, _, _ string) (string, error) {
	return e.output, e.err
}

func (e *apiMTEngine) Name() string { return e.name }

func newMTOrchestrator(t *testing.T, entries ...mt.Entry) *mt.Orchestrator {
	t.Helper()
	o, err := mt.NewOrchestrator(entries, 0, nil)
	require.NoError(t, err)
	return o
}

func mtEntry(name, output string, err error, rank int) mt.Entry {
	return mt.Entry{
		Engine: &apiMTEngine{name: name, output: output, err: err},
		Descriptor: stage.EngineDescriptor{
			ID:   name,
			Kind: stage.KindMT,
			Name: name,
			Rank: rank,
		},
	}
}

type apiTTSEngine struct {
	name string
	err  error
}

func (e *apiTTSEngine) Synthesize(_ context.Context, _, _, outPath string) error {
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(outPath, []byte("RIFF fake audio"), 0o644)
}

func (e *apiTTSEngine) Name() string { return e.name }

func newTTSOrchestrator(t *testing.T, format string) *tts.Orchestrator {
	t.Helper()
	entry := tts.Entry{
		Engine: &apiTTSEngine{name: "fake"},
		Descriptor: stage.EngineDescriptor{
			ID:   "fake",
			Kind: stage.KindTTS,
			Name: "fake",
		},
		Format: format,
	}
	o, err := tts.NewOrchestrator([]tts.Entry{entry}, tts.Config{
		OutputDir:      t.TempDir(),
		ReferenceAudio: filepath.Join(t.TempDir(), "absent.wav"),
	}, nil)
	require.NoError(t, err)
	return o
}

func doJSON(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandleListLanguages(t *testing.T) {
	r := gin.New()
	r.GET("/api/languages", HandleListLanguages())

	w := doJSON(r, http.MethodGet, "/api/languages", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(len(lang.All())), body["count"])
}

func TestHandleTranslate(t *testing.T) {
	o := newMTOrchestrator(t, mtEntry("primary", "bonjour", nil, 0))
	r := gin.New()
	r.POST("/api/mt/translate", HandleTranslate(o))

	w := doJSON(r, http.MethodPost, "/api/mt/translate", gin.H{
		"text":        "hello",
		"source_lang": lang.English,
		"target_lang": "hin_Deva",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "bonjour", body["translation"])
	assert.Equal(t, "primary", body["model_used"])
	assert.Equal(t, "primary", body["model_requested"])
}

func TestHandleTranslateMissingFields(t *testing.T) {
	o := newMTOrchestrator(t, mtEntry("primary", "x", nil, 0))
	r := gin.New()
	r.POST("/api/mt/translate", HandleTranslate(o))

	w := doJSON(r, http.MethodPost, "/api/mt/translate", gin.H{"text": "hello"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTranslateUnknownLanguage(t *testing.T) {
	o := newMTOrchestrator(t, mtEntry("primary", "x", nil, 0))
	r := gin.New()
	r.POST("/api/mt/translate", HandleTranslate(o))

	w := doJSON(r, http.MethodPost, "/api/mt/translate", gin.H{
		"text":        "hello",
		"source_lang": "xx_Nope",
		"target_lang": "hin_Deva",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, string(stage.UNKNOWN_LANGUAGE), body["code"])
	assert.Equal(t, string(stage.KindMT), body["stage"])
}

func TestHandleTranslateAllEnginesDown(t *testing.T) {
	o := newMTOrchestrator(t,
		mtEntry("first", "", fmt.Errorf("connection refused"), 0),
		mtEntry("second", "", fmt.Errorf("connection refused"), 1),
	)
	r := gin.New()
	r.POST("/api/mt/translate", HandleTranslate(o))

	w := doJSON(r, http.MethodPost, "/api/mt/translate", gin.H{
		"text":        "hello",
		"source_lang": lang.English,
		"target_lang": "hin_Deva",
	}, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, string(stage.TRANSLATION_UNAVAILABLE), body["code"])
	attempted, ok := body["attempted"].([]any)
	require.True(t, ok)
	assert.Len(t, attempted, 2)
}

func TestHandleSynthesizeAndServeAudio(t *testing.T) {
	o := newTTSOrchestrator(t, "wav")
	r := gin.New()
	r.POST("/api/tts/generate", HandleSynthesize(o))
	r.GET("/api/tts/audio/:filename", HandleAudioFile(o))

	w := doJSON(r, http.MethodPost, "/api/tts/generate", gin.H{
		"text":     "namaste",
		"language": "hin_Deva",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	name, _ := body["file"].(string)
	require.True(t, strings.HasPrefix(name, "tts_"))
	assert.Equal(t, "wav", body["format"])
	assert.Equal(t, "/api/tts/audio/"+name, body["url"])

	got := doJSON(r, http.MethodGet, "/api/tts/audio/"+name, nil, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "audio/wav", got.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF fake audio", got.Body.String())
}

func TestHandleSynthesizeMissingText(t *testing.T) {
	o := newTTSOrchestrator(t, "wav")
	r := gin.New()
	r.POST("/api/tts/generate", HandleSynthesize(o))

	w := doJSON(r, http.MethodPost, "/api/tts/generate", gin.H{"language": "hin_Deva"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAudioFileRejectsBadNames(t *testing.T) {
	o := newTTSOrchestrator(t, "wav")
	r := gin.New()
	r.GET("/api/tts/audio/:filename", HandleAudioFile(o))

	for _, name := range []string{"notours.wav", "tts_clip.txt", "tts_noext"} {
		w := doJSON(r, http.MethodGet, "/api/tts/audio/"+name, nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestHandleUploadMissingFile(t *testing.T) {
	r := gin.New()
	r.POST("/api/asr/upload", HandleUpload(nil, nil, nil))

	w := doJSON(r, http.MethodPost, "/api/asr/upload", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatLifecycle(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	r := gin.New()
	r.GET("/api/chats", HandleListChats(store))
	r.POST("/api/chats", HandleCreateChat(store))
	r.GET("/api/chats/:chat_id/messages", HandleChatMessages(store))
	r.DELETE("/api/chats/:chat_id", HandleDeleteChat(store))

	asha := map[string]string{"X-User": "asha"}

	w := doJSON(r, http.MethodPost, "/api/chats", gin.H{"title": "Hindi practice"}, asha)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)
	chatID, _ := created["id"].(string)
	require.NotEmpty(t, chatID)

	w = doJSON(r, http.MethodGet, "/api/chats", nil, asha)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decodeBody(t, w)
	chats, ok := listed["chats"].([]any)
	require.True(t, ok)
	assert.Len(t, chats, 1)

	w = doJSON(r, http.MethodGet, "/api/chats/"+chatID+"/messages", nil, asha)
	require.Equal(t, http.StatusOK, w.Code)

	// Another user cannot read or delete the session.
	other := map[string]string{"X-User": "ravi"}
	w = doJSON(r, http.MethodGet, "/api/chats/"+chatID+"/messages", nil, other)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(r, http.MethodDelete, "/api/chats/"+chatID, nil, other)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodDelete, "/api/chats/"+chatID, nil, asha)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/chats/"+chatID+"/messages", nil, asha)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// formContext builds a request context carrying a form-encoded body, the
// way the pipeline endpoints receive their fields.
func formContext(t *testing.T, form url.Values, user string) *gin.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestRemoteMediaURLFieldNames(t *testing.T) {
	c := formContext(t, url.Values{"youtube_url": {"https://youtu.be/abc"}}, "")
	assert.Equal(t, "https://youtu.be/abc", remoteMediaURL(c))

	// Older clients still send the short field name.
	c = formContext(t, url.Values{"url": {"https://youtu.be/legacy"}}, "")
	assert.Equal(t, "https://youtu.be/legacy", remoteMediaURL(c))

	c = formContext(t, url.Values{
		"youtube_url": {"https://youtu.be/new"},
		"url":         {"https://youtu.be/old"},
	}, "")
	assert.Equal(t, "https://youtu.be/new", remoteMediaURL(c))
}

func TestRecordHistoryChecksChatOwnership(t *testing.T) {
	_, err := logger.Init(logger.Config{Level: "error"})
	require.NoError(t, err)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	chat, err := store.CreateChat("asha", "Hindi practice")
	require.NoError(t, err)

	res := &orchestrator.PipelineResult{
		SourceLanguage: "hi",
		Transcript:     "नमस्ते",
		Translation:    "hello",
	}
	opts := orchestrator.PipelineOptions{TargetLanguage: "en"}

	recordHistory(formContext(t, url.Values{"chat_id": {chat.ID}}, "asha"), store, res, opts)
	assert.Eventually(t, func() bool {
		msgs, err := store.Messages(chat.ID)
		return err == nil && len(msgs) == 1
	}, time.Second, 10*time.Millisecond, "owner's run should be recorded")

	// A run attributed to someone else's session is dropped.
	recordHistory(formContext(t, url.Values{"chat_id": {chat.ID}}, "ravi"), store, res, opts)
	assert.Never(t, func() bool {
		msgs, err := store.Messages(chat.ID)
		return err == nil && len(msgs) > 1
	}, 200*time.Millisecond, 20*time.Millisecond, "foreign user's run must not be recorded")
}

func TestChatMessagesUnknownChat(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	r := gin.New()
	r.GET("/api/chats/:chat_id/messages", HandleChatMessages(store))

	w := doJSON(r, http.MethodGet, "/api/chats/nope/messages", nil, map[string]string{"X-User": "asha"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
