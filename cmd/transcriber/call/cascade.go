package call

import (
	"context"
	"log/slog"

	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"
)

// cascadeStep is one escalation attempt: a named audio variant (or remote
// service) to retry transcription against.
type cascadeStep struct {
	name string
	run  func(ctx context.Context) (transcribe.Result, error)
}

// runCascade walks the escalation chain in order, accepting a candidate only
// when its spam count is strictly lower than the best so far, and stopping as
// soon as the best count is within the threshold or the chain is exhausted.
// This is a heuristic: the spam count is monotonically non-increasing across
// the chain, but the final result is not guaranteed spam-free.
func runCascade(ctx context.Context, best transcribe.Result, threshold int, count func(transcribe.Result) int, steps []cascadeStep) transcribe.Result {
	bestCount := count(best)

	for _, step := range steps {
		if bestCount <= threshold {
			break
		}

		slog.Info("retrying against variant",
			slog.String("variant", step.name),
			slog.Int("spamCount", bestCount))

		res, err := step.run(ctx)
		if err != nil {
			slog.Warn("variant failed",
				slog.String("variant", step.name),
				slog.String("err", err.Error()))
			continue
		}

		if c := count(res); c < bestCount {
			best, bestCount = res, c
		}
	}

	return best
}
