package whispercpp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/stretchr/testify/require"
)

func TestConfigIsValid(t *testing.T) {
	modelFile := filepath.Join(t.TempDir(), "ggml-tiny.bin")
	require.NoError(t, os.WriteFile(modelFile, []byte("model"), 0600))

	tcs := []struct {
		name string
		cfg  Config
		err  string
	}{
		{
			name: "empty config",
			err:  "invalid empty config",
		},
		{
			name: "non existent model file",
			err:  "invalid ModelFile: failed to stat model file: stat /tmp/invalid.ggml: no such file or directory",
			cfg: Config{
				ModelFile: "/tmp/invalid.ggml",
			},
		},
		{
			name: "zero threads",
			err:  "invalid NumThreads: should be in the range",
			cfg: Config{
				ModelFile: modelFile,
			},
		},
		{
			name: "valid",
			cfg: Config{
				ModelFile:  modelFile,
				NumThreads: 1,
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.IsValid()
			if tc.err != "" {
				require.ErrorContains(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWordsFromTokens(t *testing.T) {
	tok := func(text string, start, end float64) whisper.Token {
		return whisper.Token{
			Text:  text,
			Start: time.Duration(start * float64(time.Second)),
			End:   time.Duration(end * float64(time.Second)),
		}
	}

	tcs := []struct {
		name   string
		tokens []whisper.Token
		words  []transcribe.Word
	}{
		{
			name:  "no tokens",
			words: []transcribe.Word{},
		},
		{
			name: "special tokens are skipped",
			tokens: []whisper.Token{
				tok("[_BEG_]", 0, 0),
				tok(" hello", 0, 0.5),
			},
			words: []transcribe.Word{
				{Start: 0, End: 0.5, Text: "hello"},
			},
		},
		{
			name: "continuation tokens merge into the current word",
			tokens: []whisper.Token{
				tok(" trans", 0, 0.3),
				tok("cription", 0.3, 0.8),
				tok(" done", 0.8, 1.0),
			},
			words: []transcribe.Word{
				{Start: 0, End: 0.8, Text: "transcription"},
				{Start: 0.8, End: 1.0, Text: "done"},
			},
		},
		{
			name: "leading token without space starts the first word",
			tokens: []whisper.Token{
				tok("Hello", 0, 0.4),
				tok(" world", 0.4, 1.0),
			},
			words: []transcribe.Word{
				{Start: 0, End: 0.4, Text: "Hello"},
				{Start: 0.4, End: 1.0, Text: "world"},
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.words, wordsFromTokens(tc.tokens))
		})
	}
}
