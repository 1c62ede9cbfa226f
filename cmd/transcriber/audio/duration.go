package audio

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	durationRE = regexp.MustCompile(`(?i)^ *Duration: ([0-9][0-9]):([0-9][0-9]):([0-9][0-9])[.][0-9][0-9], `)
	timeRE     = regexp.MustCompile(`(?i)time=([0-9][0-9]):([0-9][0-9]):([0-9][0-9])[.][0-9][0-9] `)
)

// ParseDuration extracts the source duration in seconds from an ffmpeg log.
// It prefers the "Duration: HH:MM:SS.ss" header line; absent that it falls
// back to the last "time=HH:MM:SS.ss" progress marker. Returns -1 when
// neither is found.
func ParseDuration(log string) int {
	var last []string

	for _, line := range strings.Split(log, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := durationRE.FindStringSubmatch(line); m != nil {
			return hmsToSeconds(m)
		}
		// Progress markers are \r separated within a line.
		for _, sub := range strings.Split(line, "\r") {
			if m := timeRE.FindStringSubmatch(sub); m != nil {
				last = m
			}
		}
	}

	if last != nil {
		if secs := hmsToSeconds(last); secs > 0 {
			return secs
		}
	}

	return -1
}

func hmsToSeconds(m []string) int {
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	return h*3600 + mm*60 + s
}
