package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deephabiswashi/vasha/cmd/server/internal/api"
	"github.com/deephabiswashi/vasha/cmd/server/internal/config"
	"github.com/deephabiswashi/vasha/cmd/server/internal/history"
	"github.com/deephabiswashi/vasha/cmd/server/internal/middleware"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/asr"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/health"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/lid"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/media"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/mt"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/tts"
	"github.com/deephabiswashi/vasha/cmd/server/internal/users"
	"github.com/deephabiswashi/vasha/pkg/logger"
)

func main() {
	// Bootstrap logger for the window before configuration is loaded.
	bootLogger, err := logger.Init(logger.Config{Level: "info"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logInstance, err := logger.Configure(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Env,
		WithSource:  !cfg.IsProduction(),
		File: logger.FileConfig{
			Path: cfg.Log.File,
		},
	})
	if err != nil {
		bootLogger.Error("logger configuration failed", "error", err)
		os.Exit(1)
	}
	appLogger := logInstance.With("component", "server")
	appLogger.Info("configuration loaded", "env", cfg.Server.Env, "port", cfg.Server.Port)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	stageTimeout := time.Duration(cfg.Pipeline.StageTimeoutS) * time.Second

	ingestor, err := media.NewIngestor(media.Config{
		TempDir:        cfg.Media.TempDir,
		FFmpegPath:     cfg.Media.FFmpegPath,
		DownloaderPath: cfg.Media.DownloaderPath,
		CaptureDevice:  cfg.Media.CaptureDevice,
	}, logInstance.With("component", "ingest"))
	if err != nil {
		appLogger.Error("ingestor init failed", "error", err)
		os.Exit(1)
	}

	identifier, err := lid.NewIdentifier(
		[]lid.Engine{
			lid.NewRemoteEngine("whisper", cfg.Engines.LIDURL),
			lid.NewRemoteEngine("ai4bharat", cfg.Engines.IndicConformerURL),
		},
		"whisper",
		cfg.Pipeline.LIDConfidence,
		stageTimeout,
		logInstance.With("component", "lid"),
	)
	if err != nil {
		appLogger.Error("identifier init failed", "error", err)
		os.Exit(1)
	}

	asrOrch, err := asr.NewOrchestrator(
		asr.DefaultEntries(cfg.Engines.WhisperURL, cfg.Engines.FasterWhisperURL, cfg.Engines.IndicConformerURL, cfg.Engines.WhisperModelSize),
		stageTimeout,
		logInstance.With("component", "asr"),
	)
	if err != nil {
		appLogger.Error("ASR orchestrator init failed", "error", err)
		os.Exit(1)
	}

	mtOrch, err := mt.NewOrchestrator(
		mt.DefaultEntries(cfg.Engines.IndicTransURL, cfg.Engines.NLLBURL),
		stageTimeout,
		logInstance.With("component", "mt"),
	)
	if err != nil {
		appLogger.Error("MT orchestrator init failed", "error", err)
		os.Exit(1)
	}

	ttsOrch, err := tts.NewOrchestrator(
		tts.DefaultEntries(cfg.Engines.XTTSURL, cfg.Engines.IndicTTSURL, cfg.Media.ReferenceAudio),
		tts.Config{
			OutputDir:      cfg.Media.OutputDir,
			ReferenceAudio: cfg.Media.ReferenceAudio,
			Timeout:        stageTimeout,
		},
		logInstance.With("component", "tts"),
	)
	if err != nil {
		appLogger.Error("TTS orchestrator init failed", "error", err)
		os.Exit(1)
	}

	ctrl := orchestrator.NewController(
		identifier, asrOrch, mtOrch, ttsOrch,
		int64(cfg.Pipeline.MaxConcurrent),
		logInstance.With("component", "pipeline"),
	)

	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		appLogger.Error("history store init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	appLogger.Info("history store ready", "path", store.Path())

	accounts, err := users.NewManager(filepath.Dir(cfg.History.DBPath))
	if err != nil {
		appLogger.Error("user store init failed", "error", err)
		os.Exit(1)
	}
	if cfg.Security.AdminPassword != "" {
		if err := accounts.EnsureDefaultAdmin(cfg.Security.AdminPassword); err != nil {
			appLogger.Error("admin bootstrap failed", "error", err)
			os.Exit(1)
		}
	}

	monitor := health.NewMonitor([]health.Target{
		{Name: "whisper", URL: cfg.Engines.WhisperURL},
		{Name: "faster-whisper", URL: cfg.Engines.FasterWhisperURL},
		{Name: "indic-conformer", URL: cfg.Engines.IndicConformerURL},
		{Name: "indictrans", URL: cfg.Engines.IndicTransURL},
		{Name: "nllb", URL: cfg.Engines.NLLBURL},
		{Name: "xtts", URL: cfg.Engines.XTTSURL},
		{Name: "indic-tts", URL: cfg.Engines.IndicTTSURL},
	}, time.Minute, 3, logInstance.With("component", "health"))
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	monitor.Start(monitorCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Security.CORSAllowedOrigins))

	startTime := time.Now()
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"env":            cfg.Server.Env,
			"uptime_seconds": int(time.Since(startTime).Seconds()),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public catalog and auth endpoints.
	secret := []byte(cfg.Security.JWTSecret)
	r.GET("/api/languages", api.HandleListLanguages())
	r.GET("/api/asr/models", api.HandleASRModels(asrOrch))
	r.GET("/api/mt/models", api.HandleMTModels(mtOrch))
	r.GET("/api/tts/models", api.HandleTTSModels(ttsOrch))
	r.GET("/api/health/engines", api.HandleEngineHealth(monitor))
	r.POST("/api/auth/login", api.HandleLogin(accounts, secret))
	r.POST("/api/auth/register", api.HandleRegister(accounts))

	// Pipeline and history endpoints require a bearer token.
	auth := r.Group("/api", middleware.BearerAuth(secret))
	{
		auth.POST("/auth/password", api.HandleChangePassword(accounts))
		auth.POST("/asr/upload", api.HandleUpload(ingestor, ctrl, store))
		auth.POST("/asr/youtube", api.HandleYouTube(ingestor, ctrl, store))
		auth.POST("/asr/microphone", api.HandleMicrophone(ingestor, ctrl, store))
		auth.POST("/lid/identify", api.HandleIdentify(ingestor, identifier))
		auth.POST("/mt/translate", api.HandleTranslate(mtOrch))
		auth.POST("/tts/generate", api.HandleSynthesize(ttsOrch))
		auth.GET("/tts/audio/:filename", api.HandleAudioFile(ttsOrch))

		auth.GET("/chats", api.HandleListChats(store))
		auth.POST("/chats", api.HandleCreateChat(store))
		auth.GET("/chats/:chat_id/messages", api.HandleChatMessages(store))
		auth.DELETE("/chats/:chat_id", api.HandleDeleteChat(store))
	}

	srv := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: r,
	}

	go func() {
		appLogger.Info("server starting", "addr", srv.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	appLogger.Info("shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	appLogger.Info("server shutdown complete")
}
