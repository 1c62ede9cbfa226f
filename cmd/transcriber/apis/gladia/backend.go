package gladia

import (
	"context"

	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"
)

// Backend exposes the remote client through the common backend contract so
// it can be selected as the primary transcription API at process start.
type Backend struct {
	client *Client
}

func NewBackend(cfg Config) (*Backend, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, err
	}
	return &Backend{client: NewClient(cfg)}, nil
}

func (b *Backend) Transcribe(ctx context.Context, path string, opts transcribe.Options) (transcribe.Result, error) {
	src := opts.InputLanguage
	if src == "" {
		src = opts.Language
	}
	// Degraded upstream outcomes surface as the canonical empty result,
	// never as an error.
	return b.client.Transcribe(ctx, path, src, opts.Language), nil
}

// SupportsPrompt is false: the remote service takes no free-text seed, so
// marker bracketing is never applied to it.
func (b *Backend) SupportsPrompt() bool {
	return false
}

func (b *Backend) Destroy() error {
	return nil
}
