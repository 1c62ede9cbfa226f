package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streamer45/silero-vad-go/speech"
)

const (
	// VAD settings
	vadWindowSizeInSamples  = 512
	vadThreshold            = 0.5
	vadMinSilenceDurationMs = 500
)

// VAD trims non-speech spans out of audio files using a Silero
// voice-activity model.
type VAD struct {
	modelPath string
}

func NewVAD(modelPath string) *VAD {
	return &VAD{modelPath: modelPath}
}

// TrimByVoiceActivity writes to output only the speech-bearing spans of
// input, concatenated. The detector is created per call since it keeps
// internal state across Detect invocations.
func (v *VAD) TrimByVoiceActivity(ctx context.Context, input, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pcm, err := ReadPCM(input)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            v.modelPath,
		SampleRate:           SampleRate,
		WindowSize:           vadWindowSizeInSamples,
		Threshold:            vadThreshold,
		MinSilenceDurationMs: vadMinSilenceDurationMs,
	})
	if err != nil {
		return fmt.Errorf("failed to create speech detector: %w", err)
	}
	defer func() {
		if err := sd.Destroy(); err != nil {
			slog.Error("failed to destroy speech detector", slog.String("err", err.Error()))
		}
	}()

	segments, err := sd.Detect(pcm)
	if err != nil {
		return fmt.Errorf("speech detection failed: %w", err)
	}

	speechPCM := make([]float32, 0, len(pcm))
	for _, s := range segments {
		start := int(s.SpeechStartAt * SampleRate)
		end := int(s.SpeechEndAt * SampleRate)
		if end <= 0 || end > len(pcm) {
			// Unterminated trailing segment.
			end = len(pcm)
		}
		if start < 0 || start >= end {
			continue
		}
		speechPCM = append(speechPCM, pcm[start:end]...)
	}

	slog.Debug("voice activity trim",
		slog.Int("inSamples", len(pcm)),
		slog.Int("outSamples", len(speechPCM)),
		slog.Int("numSegments", len(segments)))

	return WritePCM(output, speechPCM)
}
