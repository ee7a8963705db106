package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
)

// fakeFFmpeg writes a shell script that mimics ffmpeg by writing a marker
// byte sequence to its last argument (the output path).
func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "ffmpeg")
	body := "#!/bin/sh\nfor a in \"$@\"; do out=\"$a\"; done\nprintf 'RIFFfake-wav' > \"$out\"\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	return script
}

// failingFFmpeg always exits non-zero with a decoder complaint on stderr.
func failingFFmpeg(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "ffmpeg")
	body := "#!/bin/sh\necho 'Invalid data found when processing input' >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	return script
}

func newTestIngestor(t *testing.T, ffmpeg string) (*Ingestor, string) {
	t.Helper()
	tempDir := t.TempDir()
	ing, err := NewIngestor(Config{TempDir: tempDir, FFmpegPath: ffmpeg}, nil)
	require.NoError(t, err)
	return ing, tempDir
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFromUploadNormalizesAnyContainer(t *testing.T) {
	ing, tempDir := newTestIngestor(t, fakeFFmpeg(t))

	for _, name := range []string{"clip.webm", "clip.wav"} {
		t.Run(name, func(t *testing.T) {
			art, err := ing.FromUpload(context.Background(), strings.NewReader("audio-bytes"), name)
			require.NoError(t, err)
			defer art.Release()

			data, err := os.ReadFile(art.Path())
			require.NoError(t, err)
			// Both containers come out of the same canonical transcode.
			assert.Equal(t, "RIFFfake-wav", string(data))
			assert.Equal(t, ".wav", filepath.Ext(art.Path()))
		})
	}

	// Only the two returned artifacts may remain.
	assert.Len(t, listFiles(t, tempDir), 2)
}

func TestFromUploadRejectsUnsupportedExtension(t *testing.T) {
	ing, tempDir := newTestIngestor(t, fakeFFmpeg(t))

	_, err := ing.FromUpload(context.Background(), strings.NewReader("not audio"), "notes.txt")
	require.Error(t, err)

	se, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.UNSUPPORTED_FORMAT, se.Code)
	assert.Equal(t, stage.KindIngest, se.Stage)

	// Rejected before any disk writes: no leftover artifacts.
	assert.Empty(t, listFiles(t, tempDir))
}

func TestFromUploadTranscodeFailureReleasesArtifacts(t *testing.T) {
	ing, tempDir := newTestIngestor(t, failingFFmpeg(t))

	_, err := ing.FromUpload(context.Background(), strings.NewReader("junk"), "broken.mp3")
	require.Error(t, err)

	se, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.TRANSCODE_FAILURE, se.Code)
	assert.Contains(t, err.Error(), "Invalid data")

	assert.Empty(t, listFiles(t, tempDir))
}

func TestFromCaptureDurationBounds(t *testing.T) {
	ing, tempDir := newTestIngestor(t, fakeFFmpeg(t))

	for _, duration := range []int{0, -3, 61} {
		_, err := ing.FromCapture(context.Background(), duration)
		require.Error(t, err, "duration %d", duration)
		se, ok := stage.As(err)
		require.True(t, ok)
		assert.Equal(t, stage.INVALID_PARAMETER, se.Code)
	}
	// Rejected before recording: nothing written.
	assert.Empty(t, listFiles(t, tempDir))

	art, err := ing.FromCapture(context.Background(), 5)
	require.NoError(t, err)
	defer art.Release()
	assert.FileExists(t, art.Path())
}

func TestFromRemoteRequiresURL(t *testing.T) {
	ing, _ := newTestIngestor(t, fakeFFmpeg(t))

	_, err := ing.FromRemote(context.Background(), "   ")
	require.Error(t, err)
	se, ok := stage.As(err)
	require.True(t, ok)
	assert.Equal(t, stage.INVALID_PARAMETER, se.Code)
}

func TestArtifactReleaseIsIdempotent(t *testing.T) {
	ing, _ := newTestIngestor(t, fakeFFmpeg(t))

	art, err := ing.FromUpload(context.Background(), strings.NewReader("x"), "a.wav")
	require.NoError(t, err)

	require.NoError(t, art.Release())
	assert.NoFileExists(t, art.Path())
	require.NoError(t, art.Release())

	var nilArt *Artifact
	assert.NoError(t, nilArt.Release())
}

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("A.WAV"))
	assert.True(t, AllowedExtension("talk.webm"))
	assert.False(t, AllowedExtension("notes.txt"))
	assert.False(t, AllowedExtension("noext"))
}
