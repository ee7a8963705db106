// Package media normalizes audio inputs into the canonical decoded waveform
// every downstream stage consumes: 16 kHz mono PCM wav. Sources are uploaded
// files, remote media URLs, or live capture. Transient files are modeled as
// owned Artifact handles released on every exit path.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
	"github.com/deephabiswashi/vasha/pkg/metrics"
)

// CanonicalSampleRate is the sample rate of every normalized waveform.
const CanonicalSampleRate = 16000

// CanonicalChannels is the channel count of every normalized waveform.
const CanonicalChannels = 1

// allowedExtensions is the closed set of accepted upload containers.
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
}

// MinCaptureSeconds and MaxCaptureSeconds bound live-capture duration.
const (
	MinCaptureSeconds = 1
	MaxCaptureSeconds = 60
)

// Config holds ingestor settings.
type Config struct {
	// TempDir is where transient source and converted files live.
	TempDir string

	// FFmpegPath is the transcoder binary (default "ffmpeg").
	FFmpegPath string

	// DownloaderPath is the remote-media fetcher binary (default "yt-dlp").
	DownloaderPath string

	// CaptureFormat is the ffmpeg input format for live capture
	// (e.g., "alsa" on Linux, "avfoundation" on macOS).
	CaptureFormat string

	// CaptureDevice is the ffmpeg input device for live capture.
	CaptureDevice string
}

// Ingestor converts any accepted audio source into a canonical waveform
// artifact. Safe for concurrent use; every invocation works on its own
// uuid-named files.
type Ingestor struct {
	cfg    Config
	logger *slog.Logger
}

// NewIngestor creates an Ingestor, filling in binary defaults and ensuring
// the temp directory exists.
func NewIngestor(cfg Config, logger *slog.Logger) (*Ingestor, error) {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.DownloaderPath == "" {
		cfg.DownloaderPath = "yt-dlp"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.CaptureFormat == "" {
		cfg.CaptureFormat = "alsa"
	}
	if cfg.CaptureDevice == "" {
		cfg.CaptureDevice = "default"
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Ingestor{cfg: cfg, logger: logger}, nil
}

// AllowedExtension reports whether filename carries an accepted extension.
func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// FromUpload stores the uploaded bytes and normalizes them into a canonical
// waveform artifact. The extension check runs before anything touches disk,
// so a rejected upload leaves no transient files behind.
func (i *Ingestor) FromUpload(ctx context.Context, r io.Reader, filename string) (*Artifact, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, stage.NewError(stage.UNSUPPORTED_FORMAT, stage.KindIngest,
			fmt.Sprintf("unsupported file type %q", ext), nil)
	}

	src := newArtifact(i.tempName("ingest", ext))
	f, err := os.Create(src.Path())
	if err != nil {
		return nil, stage.NewError(stage.TRANSCODE_FAILURE, stage.KindIngest, "store upload", err)
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		src.Release()
		if copyErr == nil {
			copyErr = closeErr
		}
		return nil, stage.NewError(stage.TRANSCODE_FAILURE, stage.KindIngest, "store upload", copyErr)
	}
	defer src.Release()

	return i.normalize(ctx, src.Path())
}

// FromRemote downloads a remote media URL and normalizes its audio track.
func (i *Ingestor) FromRemote(ctx context.Context, mediaURL string) (*Artifact, error) {
	if strings.TrimSpace(mediaURL) == "" {
		return nil, stage.NewError(stage.INVALID_PARAMETER, stage.KindIngest, "media URL is required", nil)
	}

	src := newArtifact(i.tempName("remote", ".m4a"))
	defer src.Release()

	args := []string{"-f", "bestaudio", "--no-playlist", "-o", src.Path(), mediaURL}
	if err := i.run(ctx, "download", i.cfg.DownloaderPath, args...); err != nil {
		return nil, stage.NewError(stage.TRANSCODE_FAILURE, stage.KindIngest,
			fmt.Sprintf("download %s", mediaURL), err)
	}

	return i.normalize(ctx, src.Path())
}

// FromCapture records duration seconds from the configured capture device
// directly into a canonical waveform. Duration outside [1, 60] fails fast
// before any recording starts.
func (i *Ingestor) FromCapture(ctx context.Context, duration int) (*Artifact, error) {
	if duration < MinCaptureSeconds || duration > MaxCaptureSeconds {
		return nil, stage.NewError(stage.INVALID_PARAMETER, stage.KindIngest,
			fmt.Sprintf("duration must be between %d and %d seconds", MinCaptureSeconds, MaxCaptureSeconds), nil)
	}

	out := newArtifact(i.tempName("capture", ".wav"))
	args := []string{
		"-y",
		"-f", i.cfg.CaptureFormat,
		"-i", i.cfg.CaptureDevice,
		"-t", strconv.Itoa(duration),
		"-ar", strconv.Itoa(CanonicalSampleRate),
		"-ac", strconv.Itoa(CanonicalChannels),
		out.Path(),
	}
	if err := i.run(ctx, "capture", i.cfg.FFmpegPath, args...); err != nil {
		out.Release()
		return nil, stage.NewError(stage.TRANSCODE_FAILURE, stage.KindIngest, "live capture", err)
	}
	if err := i.verify(out.Path()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// normalize transcodes src into a fresh 16 kHz mono wav artifact. Every
// source goes through the transcoder, so webm uploads and native wav files
// come out with identical sample rate and channel count.
func (i *Ingestor) normalize(ctx context.Context, srcPath string) (*Artifact, error) {
	out := newArtifact(i.tempName("wave", ".wav"))
	args := []string{
		"-y",
		"-i", srcPath,
		"-ar", strconv.Itoa(CanonicalSampleRate),
		"-ac", strconv.Itoa(CanonicalChannels),
		out.Path(),
	}
	if err := i.run(ctx, "transcode", i.cfg.FFmpegPath, args...); err != nil {
		out.Release()
		return nil, stage.NewError(stage.TRANSCODE_FAILURE, stage.KindIngest,
			fmt.Sprintf("transcode %s", filepath.Base(srcPath)), err)
	}
	if err := i.verify(out.Path()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// verify confirms the converter actually produced output.
func (i *Ingestor) verify(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return stage.NewError(stage.TRANSCODE_FAILURE, stage.KindIngest, "converter produced no output", err)
	}
	return nil
}

func (i *Ingestor) tempName(prefix, ext string) string {
	return filepath.Join(i.cfg.TempDir, fmt.Sprintf("%s_%s%s", prefix, uuid.NewString()[:8], ext))
}

// run executes one external command, capturing stderr for diagnostics.
func (i *Ingestor) run(ctx context.Context, action, bin string, args ...string) error {
	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "failed"
		if ctx.Err() != nil {
			status = "timeout"
		}
	}
	metrics.RecordStageExecution(string(stage.KindIngest), filepath.Base(bin), status)
	metrics.RecordStageDuration(string(stage.KindIngest), filepath.Base(bin), elapsed.Seconds())

	if err != nil {
		if i.logger != nil {
			i.logger.Warn("media command failed",
				"action", action,
				"bin", bin,
				"error", err,
				"stderr", truncate(stderr.String(), 512),
			)
		}
		return fmt.Errorf("%s: %w (stderr: %s)", action, err, truncate(stderr.String(), 256))
	}
	if i.logger != nil {
		i.logger.Debug("media command finished", "action", action, "duration_ms", elapsed.Milliseconds())
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
