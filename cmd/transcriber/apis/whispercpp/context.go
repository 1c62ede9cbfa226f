package whispercpp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/whisperhallu/transcriber/cmd/transcriber/audio"
	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type Config struct {
	// The path to the GGML model file to use.
	ModelFile string
	// The number of system threads to use to perform the transcription.
	NumThreads int
}

func (c Config) IsValid() error {
	if c == (Config{}) {
		return fmt.Errorf("invalid empty config")
	}

	if c.ModelFile == "" {
		return fmt.Errorf("invalid ModelFile: should not be empty")
	}

	if _, err := os.Stat(c.ModelFile); err != nil {
		return fmt.Errorf("invalid ModelFile: failed to stat model file: %w", err)
	}

	if numCPU := runtime.NumCPU(); c.NumThreads == 0 || c.NumThreads > numCPU {
		return fmt.Errorf("invalid NumThreads: should be in the range [1, %d]", numCPU)
	}

	return nil
}

// Context is the local speech model backend. The model is loaded once at
// process start and shared by all requests; inference is not safe for
// concurrent use so a single lock serializes it. The lock is held for the
// inference call only, never for pre/post-processing.
type Context struct {
	cfg   Config
	model whisper.Model

	mut sync.Mutex
}

func NewContext(cfg Config) (*Context, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	slog.Debug("creating transcription context", slog.Any("cfg", cfg))

	model, err := whisper.New(cfg.ModelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load model file: %w", err)
	}

	return &Context{
		cfg:   cfg,
		model: model,
	}, nil
}

func (c *Context) Destroy() error {
	if c.model == nil {
		return fmt.Errorf("context is not initialized")
	}
	if err := c.model.Close(); err != nil {
		return fmt.Errorf("failed to close model: %w", err)
	}
	c.model = nil
	return nil
}

func (c *Context) SupportsPrompt() bool {
	return true
}

func (c *Context) Transcribe(ctx context.Context, path string, opts transcribe.Options) (transcribe.Result, error) {
	samples, err := audio.ReadPCM(path)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("failed to read audio samples: %w", err)
	}
	if len(samples) == 0 {
		return transcribe.Result{}, fmt.Errorf("samples should not be empty")
	}

	numRuns := max(1, opts.NumRuns)
	res := transcribe.EmptyResult()
	runTexts := make([]string, 0, numRuns)

	for r := 0; r < numRuns; r++ {
		if err := ctx.Err(); err != nil {
			return transcribe.Result{}, err
		}

		slog.Debug("transcription run", slog.Int("run", r))

		segments, err := c.process(samples, opts)
		if err != nil {
			return transcribe.Result{}, err
		}

		var sb strings.Builder
		for _, s := range segments {
			sb.WriteString(s.Sentence)
		}
		runTexts = append(runTexts, sb.String())

		res.Segments = append(res.Segments, segments...)
	}

	res.Text = strings.Join(runTexts, transcribe.RunSeparator)

	return res, nil
}

func (c *Context) process(samples []float32, opts transcribe.Options) ([]transcribe.Segment, error) {
	wctx, err := c.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper context: %w", err)
	}

	wctx.SetThreads(uint(c.cfg.NumThreads))

	lang := opts.InputLanguage
	if lang == "" {
		lang = opts.Language
	}
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	if opts.Prompt != "" {
		wctx.SetInitialPrompt(opts.Prompt)
	}
	if opts.WordTimestamps {
		wctx.SetTokenTimestamps(true)
	}

	c.mut.Lock()
	err = wctx.Process(samples, nil, nil)
	c.mut.Unlock()
	if err != nil {
		return nil, fmt.Errorf("whisper processing failed: %w", err)
	}

	var segments []transcribe.Segment
	for {
		s, err := wctx.NextSegment()
		if err != nil {
			break
		}

		seg := transcribe.Segment{
			Start:    s.Start.Seconds(),
			End:      s.End.Seconds(),
			Sentence: strings.TrimSpace(s.Text),
			Words:    []transcribe.Word{},
		}
		if opts.WordTimestamps {
			seg.Words = wordsFromTokens(s.Tokens)
		}

		segments = append(segments, seg)
	}

	return segments, nil
}

// wordsFromTokens groups model tokens into words. A token starting with a
// space opens a new word; special tokens (e.g. "[_BEG_]") are skipped.
func wordsFromTokens(tokens []whisper.Token) []transcribe.Word {
	words := []transcribe.Word{}

	for _, t := range tokens {
		if strings.HasPrefix(t.Text, "[_") {
			continue
		}

		startsWord := strings.HasPrefix(t.Text, " ")
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}

		if len(words) == 0 || startsWord {
			words = append(words, transcribe.Word{
				Start: t.Start.Seconds(),
				End:   t.End.Seconds(),
				Text:  text,
			})
			continue
		}

		last := &words[len(words)-1]
		last.Text += text
		last.End = t.End.Seconds()
	}

	return words
}
