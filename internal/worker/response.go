package worker

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Marker lines the external task program may use to bracket its final answer
// on stdout.
const (
	responseBeginMarker = "AGENT_RESPONSE_START"
	responseEndMarker   = "AGENT_RESPONSE_END"
)

// ExtractResponse pulls the task program's answer out of its captured
// stdout. If both markers are present with begin preceding end, the lines
// between them are kept, minus the marker lines, separator rules, and blank
// lines. Without markers the full trimmed output is the answer. Returns ""
// only when stdout itself was empty.
func ExtractResponse(stdout string) string {
	lines := strings.Split(stdout, "\n")

	begin, end := -1, -1
	for i, line := range lines {
		if begin == -1 && strings.Contains(line, responseBeginMarker) {
			begin = i
			continue
		}
		if begin != -1 && strings.Contains(line, responseEndMarker) {
			end = i
			break
		}
	}

	if begin != -1 && end != -1 && begin < end {
		var kept []string
		for _, line := range lines[begin+1 : end] {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || isSeparatorLine(trimmed) {
				continue
			}
			kept = append(kept, line)
		}
		if extracted := strings.TrimSpace(strings.Join(kept, "\n")); extracted != "" {
			return extracted
		}
	}

	return strings.TrimSpace(stdout)
}

// isSeparatorLine reports whether a trimmed line is a run of one repeated
// punctuation character, e.g. "====" or "----".
func isSeparatorLine(line string) bool {
	runes := []rune(line)
	if len(runes) < 2 {
		return false
	}
	first := runes[0]
	if !unicode.IsPunct(first) && !unicode.IsSymbol(first) {
		return false
	}
	for _, r := range runes[1:] {
		if r != first {
			return false
		}
	}
	return true
}

// SynthesizeSummary builds a one-line response for runs that produced no
// output at all.
func SynthesizeSummary(exitCode int, duration time.Duration, artifactCount int) string {
	return fmt.Sprintf("Task completed (return_code=%d, duration=%.2fs, artifacts=%d)",
		exitCode, duration.Seconds(), artifactCount)
}

// ResolveResponse is the full extraction pipeline: marker scan, full-output
// fallback, synthesized summary. It never returns an empty string.
func ResolveResponse(stdout string, exitCode int, duration time.Duration, artifactCount int) string {
	if response := ExtractResponse(stdout); response != "" {
		return response
	}
	return SynthesizeSummary(exitCode, duration, artifactCount)
}
