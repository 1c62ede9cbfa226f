package call

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/whisperhallu/transcriber/cmd/transcriber/audio"
)

// errTooLong is the one fatal preprocessing outcome: input longer than the
// configured cap is rejected without transcribing.
type errTooLong struct {
	seconds int
}

func (e errTooLong) Error() string {
	return fmt.Sprintf("audio too long (%ds)", e.seconds)
}

// variants holds the preprocessing artifacts derived from one input, each a
// different noise/cleanliness tradeoff. All files live under the request work
// directory and are removed with it.
type variants struct {
	// clean is the format-normalized input, nothing else applied.
	clean string
	// noCut is the separated vocals before any silence trimming.
	noCut string
	// silcut is the silence-trimmed, loudness-normalized variant.
	silcut string
	// input is the fully preprocessed variant fed to the guard loop.
	input string
	// remixed is the stem remix used for subtitle timing on music, empty
	// when no remix was produced.
	remixed string

	stems    audio.Stems
	hasStems bool

	// duration of the input in seconds, -1 when unknown.
	duration int
}

// preprocess runs the derivation chain. Every stage is independently
// fallible and falls back to its input on error; only the duration cap is
// fatal.
func (s *Service) preprocess(ctx context.Context, req Request, workDir string) (variants, error) {
	v := variants{
		clean:    req.Path,
		noCut:    req.Path,
		input:    req.Path,
		duration: -1,
	}

	wav := filepath.Join(workDir, "clean.wav")
	d, err := s.ffmpeg.NormalizeFormat(ctx, req.Path, wav, 0, float64(s.cfg.TruncDurationSec))
	if err != nil {
		slog.Warn("failed to normalize format", slog.String("err", err.Error()))
	} else {
		v.clean, v.noCut, v.input = wav, wav, wav
		v.duration = d
	}

	if req.Stretch > 0 {
		stretched := v.input + ".STRETCH.wav"
		if err := s.ffmpeg.Stretch(ctx, v.input, stretched, req.Stretch); err != nil {
			slog.Warn("failed to stretch", slog.String("err", err.Error()))
		} else {
			v.clean, v.noCut, v.input = stretched, stretched, stretched
		}
	}

	if d, err := s.ffmpeg.ProbeDuration(ctx, v.input); err != nil {
		slog.Warn("failed to probe duration", slog.String("err", err.Error()))
	} else {
		v.duration = d
	}
	slog.Debug("probed duration", slog.Int("durationSec", v.duration))
	if v.duration > s.cfg.MaxDurationSec {
		return v, errTooLong{seconds: v.duration}
	}

	if !s.cfg.DisableSeparation {
		stems, err := s.separator.SeparateStems(ctx, v.input, workDir)
		if err != nil {
			slog.Warn("failed to separate vocals", slog.String("err", err.Error()))
		} else {
			v.stems = stems
			v.hasStems = true
			v.noCut, v.input = stems.Vocals, stems.Vocals
		}
	}

	silcut := v.input + ".SILCUT.wav"
	if err := s.ffmpeg.RemoveSilence(ctx, v.input, silcut); err != nil {
		slog.Warn("failed to remove silence", slog.String("err", err.Error()))
	} else {
		v.input = silcut
	}
	v.silcut = v.input

	if !req.IsMusic && s.vad != nil {
		trimmed := v.input + ".VAD.wav"
		if err := s.vad.TrimByVoiceActivity(ctx, v.input, trimmed); err != nil {
			slog.Warn("failed to trim by voice activity", slog.String("err", err.Error()))
		} else {
			v.input = trimmed
		}
	}

	v.remixed = s.remix(ctx, v, req.IsMusic)

	return v, nil
}

// remix picks or produces the variant used for subtitle timing. A factor of 1
// or more keeps the unseparated original, 0 or less keeps the vocals alone,
// anything in between mixes the stems back at reduced weight.
func (s *Service) remix(ctx context.Context, v variants, isMusic bool) string {
	switch {
	case s.cfg.RemixFactor >= 1:
		return v.clean
	case s.cfg.RemixFactor <= 0 && v.hasStems:
		return v.stems.Vocals
	case isMusic && v.hasStems:
		src := v.stems.Vocals
		if !s.cfg.DisableSpeechNorm {
			normed := src + ".NORM.wav"
			if err := s.ffmpeg.SpeechNorm(ctx, src, normed); err != nil {
				slog.Warn("failed to normalize speech", slog.String("err", err.Error()))
			} else {
				src = normed
			}
		}
		remixed := src + ".REMIX.wav"
		if err := s.ffmpeg.RemixStems(ctx, src, v.stems.Drums, v.stems.Bass, v.stems.Other, s.cfg.RemixFactor, remixed); err != nil {
			slog.Warn("failed to remix stems", slog.String("err", err.Error()))
			return ""
		}
		return remixed
	}
	return ""
}
