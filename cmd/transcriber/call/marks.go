package call

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"
)

// Speech models of the Whisper family are known to echo injected marker
// phrases back as transcript text. We exploit that: the content is bracketed
// between two prerecorded marker clips ("Whisper, Ok" / "Ok, Whisper") and the
// transcript is only accepted once the marker text is found where the marker
// audio was placed. A second pass with the markers swapped distinguishes
// genuine marker-adjacent speech from a model that hallucinates markers
// regardless of their order.

type probeMode int

const (
	// probeNone transcribes the raw audio with no validation.
	probeNone probeMode = iota
	// probeForward brackets the content as [marker1][content][marker2].
	probeForward
	// probeReversed swaps the markers: [marker2][content][marker1].
	probeReversed
	// probeSRT is the subtitle branch. No markers, segment timestamps only.
	probeSRT
)

func (m probeMode) String() string {
	switch m {
	case probeNone:
		return "none"
	case probeForward:
		return "forward"
	case probeReversed:
		return "reversed"
	case probeSRT:
		return "srt"
	}
	return "unknown"
}

// Marker phrase transliterations the models are known to produce across
// languages and scripts.
var (
	whisperForms = []string{
		"Whisper", "Wisper", "Wyspę", "Wysper", "Wispa",
		"Уіспер", "Ου ίσπερ", "위스퍼드", "ウィスパー", "विस्पर", "विसपर",
	}
	okForms = []string{
		"o[.]?k[.]?", "okay", "oké", "okej", "Окей", "οκέι", "окэй", "オーケー", "ओके",
	}
)

// Marker matching is unreliable for right-to-left and CJK scripts.
var noMarkerLangRE = regexp.MustCompile(`^(ar|he|ru|zh)$`)

type markerPatterns struct {
	stripForward    *regexp.Regexp
	stripReversed   *regexp.Regexp
	markerOnly      *regexp.Regexp
	bracketForward  *regexp.Regexp
	bracketReversed *regexp.Regexp
}

func newMarkerPatterns() markerPatterns {
	whisper := "(" + strings.Join(whisperForms, "|") + ")"
	ok := "(" + strings.Join(okForms, "|") + ")"
	sep := `[.,!? ]*`

	return markerPatterns{
		stripForward:    regexp.MustCompile(`(?i)(^ *` + whisper + sep + ok + sep + `|` + ok + sep + whisper + sep + ` *$)`),
		stripReversed:   regexp.MustCompile(`(?i)(^ *` + ok + sep + whisper + sep + `|` + whisper + sep + ok + sep + ` *$)`),
		markerOnly:      regexp.MustCompile(`(?i)^ *(` + ok + `|` + sep + `|` + whisper + `)*` + whisper + `(` + ok + `|` + sep + `|` + whisper + `)* *$`),
		bracketForward:  regexp.MustCompile(`(?i)^ *` + whisper + sep + ok + sep + `.*` + ok + sep + whisper + sep + ` *$`),
		bracketReversed: regexp.MustCompile(`(?i)^ *` + ok + sep + whisper + sep + `.*` + whisper + sep + ok + sep + ` *$`),
	}
}

var markerRE = newMarkerPatterns()

// probeOutcome is the output of one state transition: either a final text
// (done) or the next mode to try, carrying the cleaned text for comparison.
type probeOutcome struct {
	next  probeMode
	carry string
	text  string
	done  bool
}

// advance is the pure transition function of the probe state machine.
// Transitions are strictly forward -> reversed -> none.
func (p markerPatterns) advance(mode probeMode, text, last string) probeOutcome {
	switch mode {
	case probeForward:
		cleaned := p.stripForward.ReplaceAllString(text, "")
		if p.markerOnly.MatchString(text) {
			// Nothing but markers. Possibly empty audio, confirm reversed.
			return probeOutcome{next: probeReversed, carry: ""}
		}
		if p.bracketForward.MatchString(text) {
			return probeOutcome{text: cleaned, done: true}
		}
		return probeOutcome{next: probeReversed, carry: cleaned}
	case probeReversed:
		cleaned := p.stripReversed.ReplaceAllString(text, "")
		if cleaned == last {
			// Agreement across both marker orders confirms the text.
			return probeOutcome{text: cleaned, done: true}
		}
		if p.markerOnly.MatchString(text) {
			return probeOutcome{text: "", done: true}
		}
		if p.bracketReversed.MatchString(text) {
			return probeOutcome{text: cleaned, done: true}
		}
		return probeOutcome{next: probeNone, carry: cleaned}
	default:
		return probeOutcome{text: text, done: true}
	}
}

// markerPair returns the marker clips for the given input language, falling
// back to the generic clips when no localized recording exists.
func markerPair(dir, lng string) (string, string) {
	mark1 := filepath.Join(dir, "WOK-MRK.wav")
	if p := filepath.Join(dir, "WOK-MRK-"+lng+".wav"); fileExists(p) {
		mark1 = p
	}
	mark2 := filepath.Join(dir, "OKW-MRK.wav")
	if p := filepath.Join(dir, "OKW-MRK-"+lng+".wav"); fileExists(p) {
		mark2 = p
	}
	return mark1, mark2
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// transcribeWithMarkers drives the probe state machine over the given audio
// until a transition accepts or the no-marker fallback runs.
func (s *Service) transcribeWithMarkers(ctx context.Context, path string, opts transcribe.Options, mode probeMode, isMusic bool) transcribe.Result {
	if mode != probeSRT {
		if opts.Language != "" && noMarkerLangRE.MatchString(opts.Language) {
			mode = probeNone
		}
		if isMusic {
			// Markers are not really interesting with music.
			mode = probeNone
		}
		if !s.backend.SupportsPrompt() {
			mode = probeNone
		}
	}

	lng := opts.InputLanguage
	if lng == "" {
		lng = opts.Language
	}
	mark1, mark2 := markerPair(s.cfg.MarkerDir, lng)

	var last string
	for {
		res := s.transcribeOnce(ctx, path, opts, mode, mark1, mark2, isMusic)

		out := markerRE.advance(mode, res.Text, last)
		if out.done {
			res.Text = out.text
			return res
		}

		slog.Debug("probe transition",
			slog.String("from", mode.String()),
			slog.String("to", out.next.String()))

		mode = out.next
		last = out.carry
	}
}

// transcribeOnce prepares the audio for one probe attempt (marker bracketing,
// speech normalization) and runs the backend on it. Backend failures degrade
// to the empty result so the state machine can still settle.
func (s *Service) transcribeOnce(ctx context.Context, path string, opts transcribe.Options, mode probeMode, mark1, mark2 string, isMusic bool) transcribe.Result {
	pathIn := path

	if mode == probeForward || mode == probeReversed {
		m1, m2 := mark1, mark2
		if mode == probeReversed {
			m1, m2 = mark2, mark1
		}
		marked := pathIn + ".MRK.wav"
		if err := s.ffmpeg.ConcatMarkers(ctx, m1, pathIn, m2, marked); err != nil {
			slog.Warn("failed to add markers", slog.String("err", err.Error()))
		} else {
			pathIn = marked
		}
	}

	if mode != probeNone && !s.cfg.DisableSpeechNorm && !isMusic {
		normed := pathIn + ".CPS.wav"
		if err := s.ffmpeg.SpeechNorm(ctx, pathIn, normed); err != nil {
			slog.Warn("failed to normalize speech", slog.String("err", err.Error()))
		} else {
			pathIn = normed
		}
	}

	slog.Debug("transcribing", slog.String("mode", mode.String()), slog.String("path", pathIn))

	res, err := s.backend.Transcribe(ctx, pathIn, opts)
	if err != nil {
		slog.Error("transcription failed", slog.String("err", err.Error()))
		return transcribe.EmptyResult()
	}

	if mode == probeSRT && res.SRT == "" && len(res.Segments) > 0 {
		res.SRT = s.cfg.SRTOptions.SRT(res.Segments)
	}

	return res
}

// promptForLanguage returns the seed prompt matching the marker clips for the
// languages we have localized recordings for.
func promptForLanguage(lng string) string {
	switch lng {
	case "en":
		return "Whisper, Ok. " +
			"A pertinent sentence for your purpose in your language. " +
			"Ok, Whisper. Whisper, Ok. Ok, Whisper. Whisper, Ok. " +
			"Please find here, an unlikely ordinary sentence. " +
			"This is to avoid a repetition to be deleted. " +
			"Ok, Whisper. "
	case "fr":
		return "Whisper, Ok. " +
			"Une phrase pertinente pour votre propos dans votre langue. " +
			"Ok, Whisper. Whisper, Ok. Ok, Whisper. Whisper, Ok. " +
			"Merci de trouver ci-joint, une phrase ordinaire improbable. " +
			"Pour éviter une répétition à être supprimée. " +
			"Ok, Whisper. "
	case "uk":
		return "Whisper, Ok. " +
			"Доречне речення вашою мовою для вашої мети. " +
			"Ok, Whisper. Whisper, Ok. Ok, Whisper. Whisper, Ok. " +
			"Будь ласка, знайдіть тут навряд чи звичайне речення. " +
			"Це зроблено для того, щоб уникнути повторення, яке потрібно видалити. " +
			"Ok, Whisper. "
	case "hi":
		return "विस्पर, ओके. " +
			"आपकी भाषा में आपके उद्देश्य के लिए एक प्रासंगिक वाक्य। " +
			"ओके, विस्पर. विस्पर, ओके. ओके, विस्पर. विस्पर, ओके. " +
			"कृपया यहां खोजें, एक असंभावित सामान्य वाक्य। " +
			"यह हटाए जाने की पुनरावृत्ति से बचने के लिए है। " +
			"ओके, विस्पर. "
	}
	return ""
}
