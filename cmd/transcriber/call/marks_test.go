package call

import (
	"context"
	"os"
	"testing"

	"github.com/whisperhallu/transcriber/cmd/transcriber/config"
	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"

	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	outputs        []transcribe.Result
	calls          int
	supportsPrompt bool
	err            error
}

func (b *fakeBackend) Transcribe(_ context.Context, _ string, _ transcribe.Options) (transcribe.Result, error) {
	idx := b.calls
	b.calls++
	if b.err != nil {
		return transcribe.Result{}, b.err
	}
	if idx >= len(b.outputs) {
		return transcribe.EmptyResult(), nil
	}
	return b.outputs[idx], nil
}

func (b *fakeBackend) SupportsPrompt() bool {
	return b.supportsPrompt
}

func (b *fakeBackend) Destroy() error {
	return nil
}

func newTestService(t *testing.T, backend transcribe.Transcriber) *Service {
	t.Helper()

	var cfg config.Config
	cfg.SetDefaults()
	cfg.DisableSeparation = true
	cfg.DisableVAD = true
	cfg.VADModelPath = ""

	s := NewService(cfg, backend, nil)
	s.ffmpeg.WithRunner(func(_ context.Context, _ string, _ ...string) (string, error) {
		return "", nil
	})
	s.separator.WithRunner(func(_ context.Context, _ string, _ ...string) (string, error) {
		return "", nil
	})

	return s
}

func TestAdvance(t *testing.T) {
	tcs := []struct {
		name    string
		mode    probeMode
		text    string
		last    string
		done    bool
		outText string
		next    probeMode
		carry   string
	}{
		{
			name:    "forward confirmed bracket",
			mode:    probeForward,
			text:    "Whisper, Ok. Hello there. Ok, Whisper.",
			done:    true,
			outText: "Hello there. ",
		},
		{
			name:  "forward marker only",
			mode:  probeForward,
			text:  "Whisper, Ok. Ok, Whisper.",
			next:  probeReversed,
			carry: "",
		},
		{
			name:  "forward no bracket",
			mode:  probeForward,
			text:  "Hello there.",
			next:  probeReversed,
			carry: "Hello there.",
		},
		{
			name:  "forward partial bracket",
			mode:  probeForward,
			text:  "Whisper, Ok. Hello there.",
			next:  probeReversed,
			carry: "Hello there.",
		},
		{
			name:    "reversed agreement",
			mode:    probeReversed,
			text:    "Ok, Whisper. Hello there. Whisper, Ok.",
			last:    "Hello there. ",
			done:    true,
			outText: "Hello there. ",
		},
		{
			name:    "reversed marker only",
			mode:    probeReversed,
			text:    "Ok, Whisper. Whisper, Ok.",
			last:    "something else",
			done:    true,
			outText: "",
		},
		{
			name:    "reversed confirmed bracket",
			mode:    probeReversed,
			text:    "Ok, Whisper. Something new. Whisper, Ok.",
			last:    "different text",
			done:    true,
			outText: "Something new. ",
		},
		{
			name:  "reversed disagreement",
			mode:  probeReversed,
			text:  "Something new entirely.",
			last:  "different text",
			next:  probeNone,
			carry: "Something new entirely.",
		},
		{
			name:    "none passes through",
			mode:    probeNone,
			text:    "Whisper, Ok. raw text",
			done:    true,
			outText: "Whisper, Ok. raw text",
		},
		{
			name:    "srt passes through",
			mode:    probeSRT,
			text:    "subtitle text",
			done:    true,
			outText: "subtitle text",
		},
		{
			name:    "forward transliterated bracket",
			mode:    probeForward,
			text:    "Wisper okay! Привіт. okay Wisper",
			done:    true,
			outText: "Привіт. ",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out := markerRE.advance(tc.mode, tc.text, tc.last)
			require.Equal(t, tc.done, out.done)
			if tc.done {
				require.Equal(t, tc.outText, out.text)
			} else {
				require.Equal(t, tc.next, out.next)
				require.Equal(t, tc.carry, out.carry)
			}
		})
	}
}

func TestTranscribeWithMarkers(t *testing.T) {
	t.Run("confirmed bracket terminates on first attempt", func(t *testing.T) {
		backend := &fakeBackend{
			supportsPrompt: true,
			outputs: []transcribe.Result{
				{Text: "Whisper, Ok. Hello there. Ok, Whisper."},
			},
		}
		s := newTestService(t, backend)

		res := s.transcribeWithMarkers(context.Background(), "in.wav", transcribe.Options{Language: "en"}, probeForward, false)
		require.Equal(t, "Hello there. ", res.Text)
		require.Equal(t, 1, backend.calls)
	})

	t.Run("marker only audio confirms empty through reversed pass", func(t *testing.T) {
		backend := &fakeBackend{
			supportsPrompt: true,
			outputs: []transcribe.Result{
				{Text: "Whisper, Ok. Ok, Whisper."},
				{Text: "Ok, Whisper. Whisper, Ok."},
			},
		}
		s := newTestService(t, backend)

		res := s.transcribeWithMarkers(context.Background(), "in.wav", transcribe.Options{Language: "en"}, probeForward, false)
		require.Empty(t, res.Text)
		require.Equal(t, 2, backend.calls)
	})

	t.Run("agreement across marker orders", func(t *testing.T) {
		backend := &fakeBackend{
			supportsPrompt: true,
			outputs: []transcribe.Result{
				{Text: "Hello there."},
				{Text: "Hello there."},
			},
		}
		s := newTestService(t, backend)

		res := s.transcribeWithMarkers(context.Background(), "in.wav", transcribe.Options{Language: "en"}, probeForward, false)
		require.Equal(t, "Hello there.", res.Text)
		require.Equal(t, 2, backend.calls)
	})

	t.Run("falls back to raw transcription after two failed probes", func(t *testing.T) {
		backend := &fakeBackend{
			supportsPrompt: true,
			outputs: []transcribe.Result{
				{Text: "first attempt"},
				{Text: "second attempt"},
				{Text: "raw attempt"},
			},
		}
		s := newTestService(t, backend)

		res := s.transcribeWithMarkers(context.Background(), "in.wav", transcribe.Options{Language: "en"}, probeForward, false)
		require.Equal(t, "raw attempt", res.Text)
		require.Equal(t, 3, backend.calls)
	})

	t.Run("rtl language bypasses markers", func(t *testing.T) {
		backend := &fakeBackend{
			supportsPrompt: true,
			outputs: []transcribe.Result{
				{Text: "نص عربي"},
			},
		}
		s := newTestService(t, backend)

		res := s.transcribeWithMarkers(context.Background(), "in.wav", transcribe.Options{Language: "ar"}, probeForward, false)
		require.Equal(t, "نص عربي", res.Text)
		require.Equal(t, 1, backend.calls)
	})

	t.Run("music bypasses markers", func(t *testing.T) {
		backend := &fakeBackend{
			supportsPrompt: true,
			outputs: []transcribe.Result{
				{Text: "la la la"},
			},
		}
		s := newTestService(t, backend)

		res := s.transcribeWithMarkers(context.Background(), "in.wav", transcribe.Options{Language: "en"}, probeForward, true)
		require.Equal(t, "la la la", res.Text)
		require.Equal(t, 1, backend.calls)
	})

	t.Run("promptless backend bypasses markers", func(t *testing.T) {
		backend := &fakeBackend{
			supportsPrompt: false,
			outputs: []transcribe.Result{
				{Text: "some text"},
			},
		}
		s := newTestService(t, backend)

		res := s.transcribeWithMarkers(context.Background(), "in.wav", transcribe.Options{Language: "en"}, probeForward, false)
		require.Equal(t, "some text", res.Text)
		require.Equal(t, 1, backend.calls)
	})

	t.Run("srt mode renders subtitles", func(t *testing.T) {
		backend := &fakeBackend{
			supportsPrompt: true,
			outputs: []transcribe.Result{
				{
					Text: "Hello there.",
					Segments: []transcribe.Segment{
						{Start: 0, End: 1.5, Sentence: "Hello there.", Words: []transcribe.Word{}},
					},
				},
			},
		}
		s := newTestService(t, backend)

		res := s.transcribeWithMarkers(context.Background(), "in.wav", transcribe.Options{Language: "en"}, probeSRT, false)
		require.Equal(t, 1, backend.calls)
		require.Contains(t, res.SRT, "00:00:00.000 --> 00:00:01.500")
		require.Contains(t, res.SRT, "Hello there.")
	})
}

func TestMarkerPair(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeEmptyFile(dir+"/WOK-MRK.wav"))
	require.NoError(t, writeEmptyFile(dir+"/OKW-MRK.wav"))
	require.NoError(t, writeEmptyFile(dir+"/WOK-MRK-fr.wav"))

	t.Run("localized clip preferred", func(t *testing.T) {
		m1, m2 := markerPair(dir, "fr")
		require.Equal(t, dir+"/WOK-MRK-fr.wav", m1)
		require.Equal(t, dir+"/OKW-MRK.wav", m2)
	})

	t.Run("generic fallback", func(t *testing.T) {
		m1, m2 := markerPair(dir, "vi")
		require.Equal(t, dir+"/WOK-MRK.wav", m1)
		require.Equal(t, dir+"/OKW-MRK.wav", m2)
	})
}

func writeEmptyFile(path string) error {
	return os.WriteFile(path, []byte{}, 0600)
}

func TestPromptForLanguage(t *testing.T) {
	require.Contains(t, promptForLanguage("en"), "Whisper, Ok.")
	require.Contains(t, promptForLanguage("fr"), "Whisper, Ok.")
	require.Contains(t, promptForLanguage("uk"), "Whisper, Ok.")
	require.Contains(t, promptForLanguage("hi"), "विस्पर, ओके.")
	require.Empty(t, promptForLanguage("vi"))
}
