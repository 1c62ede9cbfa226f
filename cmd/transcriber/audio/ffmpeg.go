package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

const (
	// SampleRate is the fixed pipeline sample rate. 16KHz is what Whisper
	// requires.
	SampleRate = 16000

	silenceFilter    = "silenceremove=start_periods=1:stop_periods=-1:start_threshold=-50dB:stop_threshold=-50dB:start_silence=0.2:stop_silence=0.2, loudnorm"
	speechNormFilter = "speechnorm=e=50:r=0.0005:l=1"
)

// Runner executes an external command and returns its combined output.
// Injectable for testing.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

func defaultRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// FFmpeg wraps audio filter invocations. Commands are built as argument
// lists, never by string concatenation.
type FFmpeg struct {
	binary string
	runner Runner
}

func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary: binary,
		runner: defaultRunner,
	}
}

// WithRunner sets a custom command runner (for testing).
func (f *FFmpeg) WithRunner(runner Runner) {
	f.runner = runner
}

func (f *FFmpeg) run(ctx context.Context, args ...string) (string, error) {
	slog.Debug("running ffmpeg", slog.String("args", strings.Join(args, " ")))
	return f.runner(ctx, f.binary, args...)
}

// NormalizeFormat re-encodes input to 16KHz PCM WAV, optionally clipped to
// [rangeStart, rangeEnd] seconds (negative values leave the bound unset).
// It also reports the source duration in seconds as parsed from the tool
// log, or -1 when the log carries no usable duration marker.
func (f *FFmpeg) NormalizeFormat(ctx context.Context, input, output string, rangeStart, rangeEnd float64) (int, error) {
	args := []string{"-y", "-i", input}
	if rangeStart >= 0 {
		args = append(args, "-ss", fmt.Sprintf("%g", rangeStart))
	}
	if rangeEnd >= 0 {
		args = append(args, "-to", fmt.Sprintf("%g", rangeEnd))
	}
	args = append(args, "-c:a", "pcm_s16le", "-ar", fmt.Sprintf("%d", SampleRate), output)

	out, err := f.run(ctx, args...)
	if err != nil {
		return -1, err
	}
	return ParseDuration(out), nil
}

// ProbeDuration decodes input to a null muxer solely to read its duration
// from the progress log.
func (f *FFmpeg) ProbeDuration(ctx context.Context, input string) (int, error) {
	out, err := f.run(ctx, "-y", "-i", input, "-f", "null", "-")
	if err != nil {
		return -1, err
	}
	return ParseDuration(out), nil
}

// RemoveSilence strips leading, trailing and internal silence below -50dB
// with a 0.2s hold, then loudness-normalizes.
func (f *FFmpeg) RemoveSilence(ctx context.Context, input, output string) error {
	_, err := f.run(ctx, "-y", "-i", input,
		"-af", silenceFilter,
		"-c:a", "pcm_s16le", "-ar", fmt.Sprintf("%d", SampleRate), output)
	return err
}

// SpeechNorm applies the speech normalization compressor.
func (f *FFmpeg) SpeechNorm(ctx context.Context, input, output string) error {
	_, err := f.run(ctx, "-y", "-i", input,
		"-af", speechNormFilter,
		"-c:a", "pcm_s16le", "-ar", fmt.Sprintf("%d", SampleRate), output)
	return err
}

// ConcatMarkers brackets input between the two marker clips.
func (f *FFmpeg) ConcatMarkers(ctx context.Context, mark1, input, mark2, output string) error {
	_, err := f.run(ctx, "-y",
		"-i", mark1, "-i", input, "-i", mark2,
		"-filter_complex", "[0:a][1:a][2:a]concat=n=3:v=0:a=1[a]",
		"-map", "[a]",
		"-c:a", "pcm_s16le", "-ar", fmt.Sprintf("%d", SampleRate), output)
	return err
}

// RemixStems mixes the four stems back together giving vocals full weight
// and the other stems the given factor.
func (f *FFmpeg) RemixStems(ctx context.Context, vocals, drums, bass, other string, factor float64, output string) error {
	weights := fmt.Sprintf("1 %g %g %g", factor, factor, factor)
	_, err := f.run(ctx, "-y",
		"-i", vocals, "-i", drums, "-i", bass, "-i", other,
		"-filter_complex", "amix=inputs=4:duration=longest:dropout_transition=0:weights="+weights,
		output)
	return err
}

// Stretch changes the audio tempo without changing pitch.
func (f *FFmpeg) Stretch(ctx context.Context, input, output string, tempo float64) error {
	_, err := f.run(ctx, "-y", "-i", input,
		"-filter:a", fmt.Sprintf("atempo=%g", tempo),
		"-c:a", "pcm_s16le", "-ar", fmt.Sprintf("%d", SampleRate), output)
	return err
}
