package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stems holds the file paths of a source separation run.
type Stems struct {
	Vocals string
	Drums  string
	Bass   string
	Other  string
}

// Separator invokes the demucs CLI to decompose a mixed track into stems.
type Separator struct {
	binary string
	model  string
	runner Runner
}

func NewSeparator(binary, model string) *Separator {
	if binary == "" {
		binary = "demucs"
	}
	if model == "" {
		model = "htdemucs"
	}
	return &Separator{
		binary: binary,
		model:  model,
		runner: defaultRunner,
	}
}

// WithRunner sets a custom command runner (for testing).
func (s *Separator) WithRunner(runner Runner) {
	s.runner = runner
}

// SeparateStems runs the separation model over input, writing the four
// stems under outDir. Failure here is non-fatal to the pipeline; callers
// fall back to the un-separated input.
func (s *Separator) SeparateStems(ctx context.Context, input, outDir string) (Stems, error) {
	if _, err := s.runner(ctx, s.binary,
		"-n", s.model,
		"-o", outDir,
		input,
	); err != nil {
		return Stems{}, fmt.Errorf("source separation failed: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	stemDir := filepath.Join(outDir, s.model, base)

	stems := Stems{
		Vocals: filepath.Join(stemDir, "vocals.wav"),
		Drums:  filepath.Join(stemDir, "drums.wav"),
		Bass:   filepath.Join(stemDir, "bass.wav"),
		Other:  filepath.Join(stemDir, "other.wav"),
	}

	for _, p := range []string{stems.Vocals, stems.Drums, stems.Bass, stems.Other} {
		if _, err := os.Stat(p); err != nil {
			return Stems{}, fmt.Errorf("missing stem output: %w", err)
		}
	}

	return stems, nil
}
