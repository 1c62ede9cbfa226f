package transcribe

import (
	"fmt"
	"math"
	"strings"
)

type SRTOptions struct {
	// MaxLineWidth is the maximum number of characters per subtitle line.
	MaxLineWidth int
	// MaxLineCount is the maximum number of lines per subtitle entry.
	// Overflowing lines are dropped.
	MaxLineCount int
}

func (o *SRTOptions) SetDefaults() {
	o.MaxLineWidth = 80
	o.MaxLineCount = 2
}

func (o *SRTOptions) IsValid() error {
	if o.MaxLineWidth <= 0 {
		return fmt.Errorf("MaxLineWidth should be a positive number")
	}
	if o.MaxLineCount <= 0 {
		return fmt.Errorf("MaxLineCount should be a positive number")
	}
	return nil
}

// srtTS converts t seconds in the 00:00:00.000 format.
func srtTS(t float64) string {
	h := int(t / 3600)
	m := int(math.Mod(t, 3600) / 60)
	s := math.Mod(t, 60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

// wrapText breaks text into space-separated lines of at most maxWidth
// characters, keeping at most maxLines of them.
func wrapText(text string, maxWidth, maxLines int) string {
	var lines []string
	var line []string
	length := 0

	for _, word := range strings.Fields(text) {
		sep := 0
		if len(line) > 0 {
			sep = 1
		}
		if length+sep+len(word) > maxWidth && len(line) > 0 {
			lines = append(lines, strings.Join(line, " "))
			line = []string{word}
			length = len(word)
		} else {
			line = append(line, word)
			length += sep + len(word)
		}
	}
	if len(line) > 0 {
		lines = append(lines, strings.Join(line, " "))
	}

	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	return strings.Join(lines, "\n")
}

// SRT renders the given segments as SRT-formatted subtitle text.
func (o SRTOptions) SRT(segments []Segment) string {
	var sb strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1,
			srtTS(s.Start), srtTS(s.End), wrapText(s.Sentence, o.MaxLineWidth, o.MaxLineCount))
	}
	return sb.String()
}
