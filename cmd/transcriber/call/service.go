package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/whisperhallu/transcriber/cmd/transcriber/apis/gladia"
	"github.com/whisperhallu/transcriber/cmd/transcriber/audio"
	"github.com/whisperhallu/transcriber/cmd/transcriber/config"
	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"

	"github.com/google/uuid"
)

// Markers are pointless on long content: a single hallucinated echo at the
// boundaries cannot corrupt minutes of transcript.
const markerSkipDurationSec = 30

// Service drives a full transcription request: preprocessing, the
// hallucination guard loop, the subtitle branch and post-filtering. It owns
// the loaded backend and is constructed once at process start.
type Service struct {
	cfg       config.Config
	backend   transcribe.Transcriber
	remote    *gladia.Client
	ffmpeg    *audio.FFmpeg
	separator *audio.Separator
	vad       *audio.VAD
}

// NewService creates the transcription service. remote may be nil when no
// remote API is configured; the escalation chain then skips it.
func NewService(cfg config.Config, backend transcribe.Transcriber, remote *gladia.Client) *Service {
	s := &Service{
		cfg:       cfg,
		backend:   backend,
		remote:    remote,
		ffmpeg:    audio.NewFFmpeg(cfg.FFmpegBinary),
		separator: audio.NewSeparator(cfg.DemucsBinary, cfg.DemucsModel),
	}
	if !cfg.DisableVAD && cfg.VADModelPath != "" {
		s.vad = audio.NewVAD(cfg.VADModelPath)
	}
	return s
}

func (s *Service) Destroy() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Destroy()
}

// Request describes one transcription call.
type Request struct {
	// Path of the input audio file.
	Path string
	// Language is the target (output) language code.
	Language string
	// InputLanguage is the spoken language, defaulting to Language.
	InputLanguage string
	// Prompt overrides the default seed prompt when non-empty.
	Prompt string
	// IsMusic flags sung content: markers and voice-activity trimming are
	// skipped and the subtitle branch times against the remixed stems.
	IsMusic bool
	// WantSRT requests subtitle output with segment timestamps.
	WantSRT bool
	// Stretch applies a tempo factor to the input when positive.
	Stretch float64
}

func (r Request) IsValid() error {
	if r.Path == "" {
		return fmt.Errorf("invalid Path: should not be empty")
	}
	info, err := os.Stat(r.Path)
	if err != nil {
		return fmt.Errorf("invalid Path: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("invalid Path: file is empty")
	}
	return nil
}

// Transcribe runs the full pipeline for one request. Only precondition
// violations surface as errors; every downstream failure degrades to a
// result with empty fields.
func (s *Service) Transcribe(ctx context.Context, req Request) (transcribe.Result, error) {
	if err := req.IsValid(); err != nil {
		return transcribe.Result{}, err
	}
	if req.InputLanguage == "" {
		req.InputLanguage = req.Language
	}

	slog.Info("transcription request",
		slog.String("path", req.Path),
		slog.String("lng", req.Language),
		slog.String("lngInput", req.InputLanguage),
		slog.Bool("isMusic", req.IsMusic),
		slog.Bool("wantSRT", req.WantSRT))

	workDir := filepath.Join(os.TempDir(), "transcribe-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0700); err != nil {
		return transcribe.Result{}, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			slog.Error("failed to remove work directory", slog.String("err", err.Error()))
		}
	}()

	v, err := s.preprocess(ctx, req, workDir)
	if err != nil {
		var tooLong errTooLong
		if errors.As(err, &tooLong) {
			slog.Info("rejecting long input", slog.Int("durationSec", tooLong.seconds))
			return transcribe.Result{Text: fmt.Sprintf("[Too long (%ds)]", tooLong.seconds)}, nil
		}
		return transcribe.Result{}, err
	}

	opts := transcribe.Options{
		Language:       req.Language,
		InputLanguage:  req.InputLanguage,
		WordTimestamps: true,
		NumRuns:        s.cfg.NumRuns,
	}
	if !req.IsMusic && s.backend.SupportsPrompt() {
		opts.Prompt = req.Prompt
		if opts.Prompt == "" {
			opts.Prompt = promptForLanguage(req.Language)
		}
	}

	mode := probeForward
	if v.duration > markerSkipDurationSec {
		slog.Info("not using markers", slog.Int("durationSec", v.duration))
		mode = probeNone
	}

	res := s.transcribeWithMarkers(ctx, v.input, opts, mode, req.IsMusic)
	if res.Text == "" {
		res.Text = "--"
	}

	if req.WantSRT {
		res = s.transcribeSRT(ctx, v, opts, req)
	}

	res.Segments = transcribe.SplitSegments(res.Segments, s.cfg.SpamPhrases)

	return res, nil
}

// transcribeSRT is the subtitle branch. For music the remixed stems give
// better timestamps than the trimmed vocals; its output is checked against
// the spam denylist and escalated through cleaner variants when polluted.
func (s *Service) transcribeSRT(ctx context.Context, v variants, opts transcribe.Options, req Request) transcribe.Result {
	if !req.IsMusic {
		return s.transcribeWithMarkers(ctx, v.noCut, opts, probeSRT, req.IsMusic)
	}

	if v.remixed == "" {
		return s.transcribeWithMarkers(ctx, v.clean, opts, probeSRT, req.IsMusic)
	}

	best := s.transcribeWithMarkers(ctx, v.remixed, opts, probeSRT, req.IsMusic)

	steps := []cascadeStep{
		{name: "nocut", run: func(ctx context.Context) (transcribe.Result, error) {
			return s.transcribeWithMarkers(ctx, v.noCut, opts, probeSRT, req.IsMusic), nil
		}},
		{name: "silcut", run: func(ctx context.Context) (transcribe.Result, error) {
			return s.transcribeWithMarkers(ctx, v.silcut, opts, probeSRT, req.IsMusic), nil
		}},
	}
	if s.remote != nil {
		steps = append(steps, cascadeStep{name: "remote", run: func(ctx context.Context) (transcribe.Result, error) {
			// The remote service does its own silence handling, so it
			// gets the remixed variant rather than the trimmed one.
			return s.remote.Transcribe(ctx, v.remixed, req.InputLanguage, req.Language), nil
		}})
	}
	steps = append(steps, cascadeStep{name: "clean", run: func(ctx context.Context) (transcribe.Result, error) {
		return s.transcribeWithMarkers(ctx, v.clean, opts, probeSRT, req.IsMusic), nil
	}})

	return runCascade(ctx, best, s.cfg.SpamCountThreshold, s.spamCount, steps)
}

func (s *Service) spamCount(res transcribe.Result) int {
	text := res.SRT
	if text == "" {
		text = res.Text
	}
	return transcribe.CountSpam(text, s.cfg.SpamPhrases)
}
