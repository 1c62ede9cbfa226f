package transcribe

import (
	"strings"
)

// ContainsSpam reports whether text contains any of the denylisted phrases,
// case-insensitively.
func ContainsSpam(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// CountSpam counts occurrences of the denylisted phrases in text.
func CountSpam(text string, phrases []string) int {
	var n int
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if p != "" {
			n += strings.Count(lower, strings.ToLower(p))
		}
	}
	return n
}

// SplitSegments post-processes backend output before it is returned to the
// caller. Segments containing a denylisted phrase are emptied but retained
// for timing continuity. Segments whose sentence contains a comma or period
// are split at punctuation boundaries into word groups of at least three
// words. The whole pass is idempotent.
func SplitSegments(segments []Segment, spamPhrases []string) []Segment {
	out := make([]Segment, 0, len(segments))

	for _, seg := range segments {
		if ContainsSpam(seg.Sentence, spamPhrases) {
			seg.Sentence = ""
			seg.Words = []Word{}
		}

		// Splitting needs word timings. Segments without words pass
		// through so no text is ever lost.
		if len(seg.Words) > 0 && strings.ContainsAny(seg.Sentence, ",.") {
			out = append(out, splitSegment(seg)...)
		} else {
			out = append(out, seg)
		}
	}

	return out
}

// splitSegment breaks one segment into sentence-sized pieces. A group closes
// whenever a word ends in a comma or period and at least three words have
// accumulated. A trailing group shorter than three words is merged into the
// previous piece instead of being emitted as its own fragment.
func splitSegment(seg Segment) []Segment {
	var pieces []Segment
	var words []Word

	flush := func() {
		texts := make([]string, len(words))
		for i, w := range words {
			texts[i] = w.Text
		}
		pieces = append(pieces, Segment{
			Start:    words[0].Start,
			End:      words[len(words)-1].End,
			Sentence: strings.TrimSpace(strings.Join(texts, " ")),
			Words:    words,
		})
		words = nil
	}

	for _, w := range seg.Words {
		words = append(words, w)

		text := strings.TrimSpace(w.Text)
		if (strings.HasSuffix(text, ",") || strings.HasSuffix(text, ".")) && len(words) >= 3 {
			flush()
		}
	}

	if len(words) > 0 {
		if len(pieces) > 0 && len(words) < 3 {
			last := &pieces[len(pieces)-1]
			texts := make([]string, len(words))
			for i, w := range words {
				texts[i] = w.Text
			}
			last.End = words[len(words)-1].End
			last.Sentence += " " + strings.Join(texts, " ")
			last.Words = append(last.Words, words...)
		} else {
			flush()
		}
	}

	return pieces
}
