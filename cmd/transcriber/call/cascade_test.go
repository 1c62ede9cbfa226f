package call

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"

	"github.com/stretchr/testify/require"
)

func spamResult(phrase string, count int) transcribe.Result {
	return transcribe.Result{Text: strings.Repeat(phrase+" ", count)}
}

func TestRunCascade(t *testing.T) {
	phrase := "Hãy đăng ký kênh"
	count := func(res transcribe.Result) int {
		return transcribe.CountSpam(res.Text, []string{phrase})
	}

	t.Run("selects lowest count and stops early", func(t *testing.T) {
		invoked := make([]bool, 4)
		counts := []int{3, 3, 0, 7}
		var steps []cascadeStep
		for i := range counts {
			i := i
			steps = append(steps, cascadeStep{
				name: fmt.Sprintf("step%d", i),
				run: func(_ context.Context) (transcribe.Result, error) {
					invoked[i] = true
					return spamResult(phrase, counts[i]), nil
				},
			})
		}

		best := runCascade(context.Background(), spamResult(phrase, 5), 2, count, steps)

		require.Equal(t, 0, count(best))
		require.True(t, invoked[0])
		require.True(t, invoked[1])
		require.True(t, invoked[2])
		require.False(t, invoked[3], "chain should stop once the count is within threshold")
	})

	t.Run("initial result within threshold runs nothing", func(t *testing.T) {
		var invoked bool
		steps := []cascadeStep{
			{name: "step0", run: func(_ context.Context) (transcribe.Result, error) {
				invoked = true
				return transcribe.EmptyResult(), nil
			}},
		}

		best := runCascade(context.Background(), spamResult(phrase, 2), 2, count, steps)

		require.Equal(t, 2, count(best))
		require.False(t, invoked)
	})

	t.Run("worse candidates are rejected", func(t *testing.T) {
		steps := []cascadeStep{
			{name: "worse", run: func(_ context.Context) (transcribe.Result, error) {
				return spamResult(phrase, 9), nil
			}},
			{name: "equal", run: func(_ context.Context) (transcribe.Result, error) {
				return spamResult(phrase, 4), nil
			}},
		}

		best := runCascade(context.Background(), spamResult(phrase, 4), 2, count, steps)
		require.Equal(t, 4, count(best))
	})

	t.Run("failing step is skipped", func(t *testing.T) {
		steps := []cascadeStep{
			{name: "broken", run: func(_ context.Context) (transcribe.Result, error) {
				return transcribe.Result{}, fmt.Errorf("boom")
			}},
			{name: "good", run: func(_ context.Context) (transcribe.Result, error) {
				return spamResult(phrase, 0), nil
			}},
		}

		best := runCascade(context.Background(), spamResult(phrase, 5), 2, count, steps)
		require.Equal(t, 0, count(best))
	})
}
