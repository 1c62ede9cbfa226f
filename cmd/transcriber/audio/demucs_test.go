package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeparateStems(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		outDir := t.TempDir()

		sep := NewSeparator("", "")
		var gotArgs []string
		sep.WithRunner(func(_ context.Context, name string, args ...string) (string, error) {
			require.Equal(t, "demucs", name)
			gotArgs = args

			stemDir := filepath.Join(outDir, "htdemucs", "track")
			require.NoError(t, os.MkdirAll(stemDir, 0700))
			for _, stem := range []string{"vocals", "drums", "bass", "other"} {
				require.NoError(t, os.WriteFile(filepath.Join(stemDir, stem+".wav"), []byte{}, 0600))
			}
			return "", nil
		})

		stems, err := sep.SeparateStems(context.Background(), "/in/track.mp3", outDir)
		require.NoError(t, err)
		require.Equal(t, []string{"-n", "htdemucs", "-o", outDir, "/in/track.mp3"}, gotArgs)
		require.Equal(t, filepath.Join(outDir, "htdemucs", "track", "vocals.wav"), stems.Vocals)
		require.Equal(t, filepath.Join(outDir, "htdemucs", "track", "other.wav"), stems.Other)
	})

	t.Run("command failure", func(t *testing.T) {
		sep := NewSeparator("", "")
		sep.WithRunner(func(_ context.Context, _ string, _ ...string) (string, error) {
			return "", fmt.Errorf("exit status 1")
		})

		_, err := sep.SeparateStems(context.Background(), "/in/track.mp3", t.TempDir())
		require.ErrorContains(t, err, "source separation failed")
	})

	t.Run("missing stem output", func(t *testing.T) {
		sep := NewSeparator("", "")
		sep.WithRunner(func(_ context.Context, _ string, _ ...string) (string, error) {
			return "", nil
		})

		_, err := sep.SeparateStems(context.Background(), "/in/track.mp3", t.TempDir())
		require.ErrorContains(t, err, "missing stem output")
	})
}
