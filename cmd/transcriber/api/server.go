package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/whisperhallu/transcriber/cmd/transcriber/call"
	"github.com/whisperhallu/transcriber/cmd/transcriber/config"
	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Transcriber runs one transcription request end to end.
type Transcriber interface {
	Transcribe(ctx context.Context, req call.Request) (transcribe.Result, error)
}

// Uploader stores an artifact and returns its public URL. Optional.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

type Server struct {
	cfg      config.Config
	svc      Transcriber
	uploader Uploader
	e        *echo.Echo
	client   *http.Client
}

// NewServer wires the HTTP layer. uploader may be nil when object storage is
// not configured; subtitle uploads are then skipped.
func NewServer(cfg config.Config, svc Transcriber, uploader Uploader) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		uploader: uploader,
		client:   &http.Client{},
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("100M"))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			slog.Info("http request",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", c.Response().Status))
			return err
		}
	})

	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
		}))
	}

	e.GET("/healthz", s.handleHealth)
	e.POST("/transcribe", s.handleTranscribe)

	s.e = e

	return s
}

func (s *Server) Start() error {
	slog.Info("starting API server", slog.String("addr", s.cfg.ListenAddr))
	return s.e.Start(s.cfg.ListenAddr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": string(s.cfg.TranscribeAPI),
	})
}
