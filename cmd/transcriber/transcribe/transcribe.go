package transcribe

import (
	"context"
)

// RunSeparator joins the texts of successive transcription runs when more
// than one run is requested. Runs are surfaced individually rather than
// merged so a reviewer can compare them.
const RunSeparator = "=====\n"

// Word is a single recognized word with its time offsets in seconds.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Segment is one spoken utterance. Words are populated only when word level
// timestamps were requested and the backend supports them; an empty list is
// valid output, not an error.
type Segment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Sentence string  `json:"sentence"`
	Words    []Word  `json:"words"`
}

// Result is the outcome of a single transcription request. It is produced
// fresh per request and never persisted.
type Result struct {
	Text     string    `json:"text"`
	SRT      string    `json:"srt"`
	Segments []Segment `json:"json"`
}

// EmptyResult is the canonical value every degraded path resolves to.
// Callers treat it as a valid, empty-but-successful return.
func EmptyResult() Result {
	return Result{Segments: []Segment{}}
}

// Options are fixed per call and constructed once at request entry.
type Options struct {
	// Language is the output language of the transcript.
	Language string
	// InputLanguage is the spoken language of the audio. Defaults to
	// Language when empty.
	InputLanguage string
	// Prompt seeds the model with initial text. Ignored by backends that
	// don't support free-text injection.
	Prompt string
	// WordTimestamps requests per-word time offsets.
	WordTimestamps bool
	// NumRuns requests multiple transcription passes over the same audio.
	NumRuns int
}

// Transcriber is the contract every transcription backend implements.
// Backends must yield per-segment start/end offsets in seconds.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, opts Options) (Result, error)
	// SupportsPrompt reports whether the backend honors Options.Prompt.
	// Backends without free-text injection cannot be marker bracketed.
	SupportsPrompt() bool
	Destroy() error
}
