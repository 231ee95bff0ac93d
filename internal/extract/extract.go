// Package extract recovers a structured verdict from noisy worker output.
//
// The worker is asked to answer with a small JSON object, but in practice the
// object arrives in one of three shapes: as the entire output, fenced inside
// a ```json block amid narrative prose, or embedded somewhere in surrounding
// prose with no delimiter at all. Extract tries each shape in order of
// decreasing confidence and accepts the first candidate that parses and
// carries the required "relevant" key.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Verdict is the worker's triage answer for one issue.
type Verdict struct {
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason,omitempty"`
	Plan     string `json:"plan,omitempty"`
}

// requiredKey must be present in the parsed object for a candidate to count
// as a verdict rather than some other JSON the worker happened to print.
const requiredKey = "relevant"

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")

// strategy attempts to recover a verdict from text. Pure function.
type strategy func(text string) (*Verdict, bool)

var strategies = []strategy{
	parseWhole,
	parseFenced,
	parseEmbedded,
}

// Extract recovers a verdict from raw worker output.
// The second return is false when no strategy succeeds; callers should fall
// back to Fallback() rather than failing the task.
func Extract(text string) (*Verdict, bool) {
	for _, s := range strategies {
		if v, ok := s(text); ok {
			return v, true
		}
	}
	return nil, false
}

// Fallback is the conservative default used when extraction fails: treat the
// issue as still relevant with a generic plan. A false negative here would
// discard legitimate work.
func Fallback() *Verdict {
	return &Verdict{
		Relevant: true,
		Reason:   "could not parse worker verdict; assuming relevant",
		Plan:     "investigate the issue and implement a fix",
	}
}

// parseWhole tries the entire text as one JSON object.
func parseWhole(text string) (*Verdict, bool) {
	return tryCandidate(strings.TrimSpace(text))
}

// parseFenced tries the interior of each fenced code block.
func parseFenced(text string) (*Verdict, bool) {
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if v, ok := tryCandidate(strings.TrimSpace(m[1])); ok {
			return v, true
		}
	}
	return nil, false
}

// parseEmbedded scans for balanced {...} candidates anywhere in the text.
// For each opening brace it walks forward once, tracking nesting depth and
// quoted-string boundaries (including escaped quotes) so braces inside string
// values do not corrupt the depth count. A rejected candidate does not skip
// the scan ahead: the verdict may be nested inside a wider brace pair the
// prose happens to balance, so every opening brace gets its own walk.
func parseEmbedded(text string) (*Verdict, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		end, ok := balancedEnd(text, start)
		if !ok {
			continue
		}
		if v, ok := tryCandidate(text[start : end+1]); ok {
			return v, true
		}
	}
	return nil, false
}

// balancedEnd returns the index of the brace closing the object opened at
// start, or false if the text ends before the object closes.
func balancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// tryCandidate parses a candidate substring and checks for the required key.
func tryCandidate(s string) (*Verdict, bool) {
	if len(s) == 0 || s[0] != '{' {
		return nil, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}
	if _, ok := raw[requiredKey]; !ok {
		return nil, false
	}
	var v Verdict
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return &v, true
}
