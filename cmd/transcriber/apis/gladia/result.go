package gladia

import (
	"strings"

	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"
)

type resultResponse struct {
	Status string `json:"status"`
	Result struct {
		Transcription transcription `json:"transcription"`
		Translation   struct {
			Results []transcription `json:"results"`
		} `json:"translation"`
	} `json:"result"`
}

type transcription struct {
	FullTranscript string      `json:"full_transcript"`
	Utterances     []utterance `json:"utterances"`
	Subtitles      []subtitle  `json:"subtitles"`
}

type utterance struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []word  `json:"words"`
}

type word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// normalize maps the upstream response to the common transcript schema.
// Translation utterances are preferred when translation was requested and
// the translation results are non-empty.
func normalize(rr resultResponse, wantTranslation bool) transcribe.Result {
	src := rr.Result.Transcription
	if wantTranslation && len(rr.Result.Translation.Results) > 0 {
		src = rr.Result.Translation.Results[0]
	}

	res := transcribe.Result{
		Text:     src.FullTranscript,
		Segments: make([]transcribe.Segment, 0, len(src.Utterances)),
	}

	for _, u := range src.Utterances {
		seg := transcribe.Segment{
			Start:    u.Start,
			End:      u.End,
			Sentence: strings.TrimSpace(u.Text),
			Words:    make([]transcribe.Word, 0, len(u.Words)),
		}
		for _, w := range u.Words {
			seg.Words = append(seg.Words, transcribe.Word{
				Start: w.Start,
				End:   w.End,
				Text:  strings.TrimSpace(w.Word),
			})
		}
		res.Segments = append(res.Segments, seg)
	}

	if len(src.Subtitles) > 0 {
		res.SRT = src.Subtitles[0].Subtitles
	}

	return res
}

type subtitle struct {
	Format    string `json:"format"`
	Subtitles string `json:"subtitles"`
}
