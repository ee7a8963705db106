// Package logger wraps log/slog with a process-wide instance and optional
// rotating file output.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls optional rotating file output.
// A zero Path disables file logging entirely.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config defines logger initialization settings.
// Level accepts debug/info/warn/error. Format selects the handler:
// "json" or "console" (the default). A production Environment ("prod" or
// "production") always uses JSON regardless of Format. WithSource records
// source positions.
type Config struct {
	Level       string
	Format      string
	Environment string
	WithSource  bool
	File        FileConfig
}

var (
	mu     sync.RWMutex
	global *slog.Logger
)

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}

// New creates a logger from cfg without touching the global instance.
func New(cfg Config) (*slog.Logger, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if cfg.File.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}

	env := strings.ToLower(cfg.Environment)
	useJSON := strings.ToLower(cfg.Format) == "json" || env == "prod" || env == "production"

	handlerOpts := &slog.HandlerOptions{Level: lvl, AddSource: cfg.WithSource}
	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler), nil
}

// Init initializes the global logger once; later calls return the first
// created instance. Use Configure to rebuild it after loading config.
func Init(cfg Config) (*slog.Logger, error) {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		return global, nil
	}
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	global = l
	return global, nil
}

// Configure rebuilds the global logger from cfg, replacing whatever Init
// created. The server calls this once the full configuration is loaded.
func Configure(cfg Config) (*slog.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	global = l
	mu.Unlock()
	return l, nil
}

// L returns the initialized global logger and panics when Init has not run.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		panic("logger.Init must be called before logger.L")
	}
	return global
}

// LogStageEvent writes a structured record for one pipeline stage attempt.
// stage: ingest/lid/asr/mt/tts; action: start/success/fallback/error.
func LogStageEvent(logger *slog.Logger, stage, engine, action string, durationMs int64, errorCode string) {
	attrs := []slog.Attr{
		slog.String("stage", stage),
		slog.String("engine", engine),
		slog.String("action", action),
		slog.Int64("duration_ms", durationMs),
	}

	if errorCode != "" {
		attrs = append(attrs, slog.String("error_code", errorCode))
		logger.LogAttrs(context.Background(), slog.LevelError, "Stage attempt failed", attrs...)
	} else {
		logger.LogAttrs(context.Background(), slog.LevelInfo, "Stage event", attrs...)
	}
}
