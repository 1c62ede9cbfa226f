package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/whisperhallu/transcriber/cmd/transcriber/api"
	"github.com/whisperhallu/transcriber/cmd/transcriber/apis/gladia"
	"github.com/whisperhallu/transcriber/cmd/transcriber/apis/whispercpp"
	"github.com/whisperhallu/transcriber/cmd/transcriber/call"
	"github.com/whisperhallu/transcriber/cmd/transcriber/config"
	"github.com/whisperhallu/transcriber/cmd/transcriber/storage"
	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		source.File = filepath.Base(source.File)
	}
	return a
}

func newBackend(cfg config.Config) (transcribe.Transcriber, error) {
	switch cfg.TranscribeAPI {
	case config.TranscribeAPIGladia:
		return gladia.NewBackend(gladia.Config{
			APIKey:  cfg.GladiaAPIKey,
			BaseURL: cfg.GladiaBaseURL,
		})
	default:
		return whispercpp.NewContext(whispercpp.Config{
			ModelFile:  cfg.ModelFile,
			NumThreads: cfg.NumThreads,
		})
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to load .env file", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		slog.Error("failed to validate config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	backend, err := newBackend(cfg)
	if err != nil {
		slog.Error("failed to create transcription backend", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := backend.Destroy(); err != nil {
			slog.Error("failed to destroy backend", slog.String("err", err.Error()))
		}
	}()

	var remote *gladia.Client
	if cfg.GladiaAPIKey != "" {
		remote = gladia.NewClient(gladia.Config{
			APIKey:  cfg.GladiaAPIKey,
			BaseURL: cfg.GladiaBaseURL,
		})
	}

	var uploader api.Uploader
	if cfg.R2.IsEnabled() {
		r2, err := storage.NewR2Client(context.Background(), cfg.R2)
		if err != nil {
			slog.Error("failed to create storage client", slog.String("err", err.Error()))
			os.Exit(1)
		}
		uploader = r2
	}

	svc := call.NewService(cfg, backend, remote)
	srv := api.NewServer(cfg, svc, uploader)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
	case <-sig:
		slog.Info("received signal, shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down server", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}

	slog.Info("transcriber has finished, exiting")
}
