// Package config loads service configuration. Environment variables are the
// source of truth; an optional YAML file fills in anything the environment
// leaves unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engines  EngineConfig   `yaml:"engines"`
	Media    MediaConfig    `yaml:"media"`
	Log      LogConfig      `yaml:"log"`
	Security SecurityConfig `yaml:"security"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	History  HistoryConfig  `yaml:"history"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Env  string `yaml:"env"` // dev, staging, prod, production
	Port string `yaml:"port"`
}

// EngineConfig holds the sidecar endpoints for each inference engine.
type EngineConfig struct {
	WhisperURL        string `yaml:"whisper_url"`
	FasterWhisperURL  string `yaml:"faster_whisper_url"`
	IndicConformerURL string `yaml:"indic_conformer_url"`
	IndicTransURL     string `yaml:"indictrans_url"`
	NLLBURL           string `yaml:"nllb_url"`
	XTTSURL           string `yaml:"xtts_url"`
	IndicTTSURL       string `yaml:"indic_tts_url"`
	LIDURL            string `yaml:"lid_url"`
	WhisperModelSize  string `yaml:"whisper_model_size"`
}

// MediaConfig holds ingest and artifact settings.
type MediaConfig struct {
	TempDir        string `yaml:"temp_dir"`
	OutputDir      string `yaml:"output_dir"`
	FFmpegPath     string `yaml:"ffmpeg_path"`
	DownloaderPath string `yaml:"downloader_path"`
	CaptureDevice  string `yaml:"capture_device"`
	ReferenceAudio string `yaml:"reference_audio"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	File   string `yaml:"file"`   // optional rotating log file
}

// SecurityConfig holds authentication settings.
type SecurityConfig struct {
	JWTSecret          string   `yaml:"jwt_secret"`
	AdminPassword      string   `yaml:"admin_password"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// PipelineConfig bounds orchestration behaviour.
type PipelineConfig struct {
	MaxConcurrent int     `yaml:"max_concurrent"`
	StageTimeoutS int     `yaml:"stage_timeout_s"`
	LIDConfidence float64 `yaml:"lid_confidence"`
}

// HistoryConfig holds the chat-history store settings.
type HistoryConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoadConfig reads the environment, then overlays VASHA_CONFIG_FILE (or the
// given path) for anything still at its default.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Env:  getEnv("ENV", "dev"),
			Port: getEnv("PORT", "8000"),
		},
		Engines: EngineConfig{
			WhisperURL:        getEnv("WHISPER_URL", "http://localhost:9000"),
			FasterWhisperURL:  getEnv("FASTER_WHISPER_URL", "http://localhost:9001"),
			IndicConformerURL: getEnv("INDIC_CONFORMER_URL", "http://localhost:9002"),
			IndicTransURL:     getEnv("INDICTRANS_URL", "http://localhost:9003"),
			NLLBURL:           getEnv("NLLB_URL", "http://localhost:9004"),
			XTTSURL:           getEnv("XTTS_URL", "http://localhost:9005"),
			IndicTTSURL:       getEnv("INDIC_TTS_URL", "http://localhost:9006"),
			LIDURL:            getEnv("LID_URL", "http://localhost:9000"),
			WhisperModelSize:  getEnv("WHISPER_MODEL_SIZE", "large"),
		},
		Media: MediaConfig{
			TempDir:        getEnv("MEDIA_TEMP_DIR", ""),
			OutputDir:      getEnv("TTS_OUTPUT_DIR", ""),
			FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
			DownloaderPath: getEnv("DOWNLOADER_PATH", "yt-dlp"),
			CaptureDevice:  getEnv("CAPTURE_DEVICE", "default"),
			ReferenceAudio: getEnv("REFERENCE_AUDIO", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			File:   getEnv("LOG_FILE", ""),
		},
		Security: SecurityConfig{
			JWTSecret:          getEnv("JWT_SECRET", ""),
			AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
			CORSAllowedOrigins: parseStringList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		},
		Pipeline: PipelineConfig{
			MaxConcurrent: getEnvInt("PIPELINE_MAX_CONCURRENT", 4),
			StageTimeoutS: getEnvInt("PIPELINE_STAGE_TIMEOUT_S", 600),
			LIDConfidence: getEnvFloat("LID_MIN_CONFIDENCE", 0.5),
		},
		History: HistoryConfig{
			DBPath: getEnv("HISTORY_DB_PATH", "./data/history.db"),
		},
	}

	if path == "" {
		path = os.Getenv("VASHA_CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// applyFile overlays settings from a YAML file. Environment values win; only
// fields the environment left empty or zero are replaced.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	overlayString := func(dst *string, src, envKey string) {
		if src != "" && os.Getenv(envKey) == "" {
			*dst = src
		}
	}
	overlayString(&c.Server.Env, file.Server.Env, "ENV")
	overlayString(&c.Server.Port, file.Server.Port, "PORT")
	overlayString(&c.Engines.WhisperURL, file.Engines.WhisperURL, "WHISPER_URL")
	overlayString(&c.Engines.FasterWhisperURL, file.Engines.FasterWhisperURL, "FASTER_WHISPER_URL")
	overlayString(&c.Engines.IndicConformerURL, file.Engines.IndicConformerURL, "INDIC_CONFORMER_URL")
	overlayString(&c.Engines.IndicTransURL, file.Engines.IndicTransURL, "INDICTRANS_URL")
	overlayString(&c.Engines.NLLBURL, file.Engines.NLLBURL, "NLLB_URL")
	overlayString(&c.Engines.XTTSURL, file.Engines.XTTSURL, "XTTS_URL")
	overlayString(&c.Engines.IndicTTSURL, file.Engines.IndicTTSURL, "INDIC_TTS_URL")
	overlayString(&c.Engines.LIDURL, file.Engines.LIDURL, "LID_URL")
	overlayString(&c.Engines.WhisperModelSize, file.Engines.WhisperModelSize, "WHISPER_MODEL_SIZE")
	overlayString(&c.Media.TempDir, file.Media.TempDir, "MEDIA_TEMP_DIR")
	overlayString(&c.Media.OutputDir, file.Media.OutputDir, "TTS_OUTPUT_DIR")
	overlayString(&c.Media.FFmpegPath, file.Media.FFmpegPath, "FFMPEG_PATH")
	overlayString(&c.Media.DownloaderPath, file.Media.DownloaderPath, "DOWNLOADER_PATH")
	overlayString(&c.Media.CaptureDevice, file.Media.CaptureDevice, "CAPTURE_DEVICE")
	overlayString(&c.Media.ReferenceAudio, file.Media.ReferenceAudio, "REFERENCE_AUDIO")
	overlayString(&c.Log.Level, file.Log.Level, "LOG_LEVEL")
	overlayString(&c.Log.Format, file.Log.Format, "LOG_FORMAT")
	overlayString(&c.Log.File, file.Log.File, "LOG_FILE")
	overlayString(&c.Security.JWTSecret, file.Security.JWTSecret, "JWT_SECRET")
	overlayString(&c.Security.AdminPassword, file.Security.AdminPassword, "ADMIN_PASSWORD")
	overlayString(&c.History.DBPath, file.History.DBPath, "HISTORY_DB_PATH")

	if len(file.Security.CORSAllowedOrigins) > 0 && os.Getenv("CORS_ALLOWED_ORIGINS") == "" {
		c.Security.CORSAllowedOrigins = file.Security.CORSAllowedOrigins
	}
	if file.Pipeline.MaxConcurrent > 0 && os.Getenv("PIPELINE_MAX_CONCURRENT") == "" {
		c.Pipeline.MaxConcurrent = file.Pipeline.MaxConcurrent
	}
	if file.Pipeline.StageTimeoutS > 0 && os.Getenv("PIPELINE_STAGE_TIMEOUT_S") == "" {
		c.Pipeline.StageTimeoutS = file.Pipeline.StageTimeoutS
	}
	if file.Pipeline.LIDConfidence > 0 && os.Getenv("LID_MIN_CONFIDENCE") == "" {
		c.Pipeline.LIDConfidence = file.Pipeline.LIDConfidence
	}
	return nil
}

// ValidateConfig checks the loaded configuration and reports every problem
// at once.
func ValidateConfig(cfg *Config) error {
	var problems []string

	if cfg.Security.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	} else if len(cfg.Security.JWTSecret) < 32 {
		problems = append(problems, "JWT_SECRET must be at least 32 characters long")
	}

	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid PORT value: %s (must be 1-65535)", cfg.Server.Port))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		problems = append(problems, fmt.Sprintf("invalid LOG_LEVEL: %s (must be: debug, info, warn, error)", cfg.Log.Level))
	}

	validLogFormats := map[string]bool{"console": true, "json": true}
	if !validLogFormats[cfg.Log.Format] {
		problems = append(problems, fmt.Sprintf("invalid LOG_FORMAT: %s (must be: console, json)", cfg.Log.Format))
	}

	validEnvs := map[string]bool{"dev": true, "development": true, "staging": true, "prod": true, "production": true}
	if !validEnvs[cfg.Server.Env] {
		problems = append(problems, fmt.Sprintf("invalid ENV: %s (must be: dev, development, staging, prod, production)", cfg.Server.Env))
	}

	if cfg.Pipeline.MaxConcurrent < 1 {
		problems = append(problems, "PIPELINE_MAX_CONCURRENT must be at least 1")
	}
	if cfg.Pipeline.LIDConfidence < 0 || cfg.Pipeline.LIDConfidence > 1 {
		problems = append(problems, "LID_MIN_CONFIDENCE must be between 0 and 1")
	}

	for name, u := range map[string]string{
		"WHISPER_URL":    cfg.Engines.WhisperURL,
		"INDICTRANS_URL": cfg.Engines.IndicTransURL,
		"NLLB_URL":       cfg.Engines.NLLBURL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			problems = append(problems, fmt.Sprintf("%s must be an http(s) URL, got %q", name, u))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "prod" || c.Server.Env == "production"
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "dev" || c.Server.Env == "development"
}

// GetServerAddr returns the listen address.
func (c *Config) GetServerAddr() string {
	return ":" + c.Server.Port
}

// PrintConfig renders the configuration with secrets masked.
func (c *Config) PrintConfig() string {
	return fmt.Sprintf(`Configuration Loaded:
  Environment: %s
  Server Port: %s
  Engines:
    - Whisper: %s (model %s)
    - Faster-Whisper: %s
    - Indic Conformer: %s
    - IndicTrans2: %s
    - NLLB: %s
    - XTTS: %s
    - Indic TTS: %s
  Media:
    - Temp Dir: %s
    - Output Dir: %s
    - FFmpeg: %s
  Logging:
    - Level: %s
    - Format: %s
  Security:
    - JWT Secret: %s
    - CORS Origins: %v
  Pipeline:
    - Max Concurrent: %d
    - Stage Timeout: %ds`,
		c.Server.Env,
		c.Server.Port,
		c.Engines.WhisperURL, c.Engines.WhisperModelSize,
		c.Engines.FasterWhisperURL,
		c.Engines.IndicConformerURL,
		c.Engines.IndicTransURL,
		c.Engines.NLLBURL,
		c.Engines.XTTSURL,
		c.Engines.IndicTTSURL,
		c.Media.TempDir,
		c.Media.OutputDir,
		c.Media.FFmpegPath,
		c.Log.Level,
		c.Log.Format,
		maskSecret(c.Security.JWTSecret),
		c.Security.CORSAllowedOrigins,
		c.Pipeline.MaxConcurrent,
		c.Pipeline.StageTimeoutS,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseStringList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func maskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}
