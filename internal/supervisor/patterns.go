package supervisor

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"
)

// denialPatterns match the worker reporting that a capability was refused at
// runtime. A match anywhere in either sink is a policy violation for the
// whole run.
var denialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)permission(s)? (denied|not granted)`),
	regexp.MustCompile(`(?i)requested permissions? (to|for)`),
	regexp.MustCompile(`(?i)tool use (was )?(rejected|denied)`),
	regexp.MustCompile(`(?i)haven't (been )?granted .* permission`),
}

// maxTurnsPatterns match the worker running out of its turn budget.
var maxTurnsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`error_max_turns`),
	regexp.MustCompile(`(?i)reached max(imum)? turns`),
	regexp.MustCompile(`(?i)max[ -]turns (limit )?(reached|exceeded)`),
}

// matchLines returns every line matching any of the patterns.
func matchLines(lines []string, patterns []*regexp.Regexp) []string {
	var matched []string
	for _, line := range lines {
		for _, p := range patterns {
			if p.MatchString(line) {
				matched = append(matched, line)
				break
			}
		}
	}
	return matched
}

// scanFile matches patterns against every line of a file. A missing or
// unreadable file yields no matches.
func scanFile(path string, patterns []*regexp.Regexp) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var matched []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for _, p := range patterns {
			if p.MatchString(line) {
				matched = append(matched, line)
				break
			}
		}
	}
	return matched
}

// sinkScanner reads complete new lines from a growing sink file. Each call
// to next reads only the bytes appended since the previous call, one forward
// pass; a trailing partial line is held back until its newline arrives.
type sinkScanner struct {
	path    string
	offset  int64
	partial string
}

func newSinkScanner(path string) *sinkScanner {
	return &sinkScanner{path: path}
}

// next returns the complete lines appended since the last call.
func (s *sinkScanner) next() []string {
	f, err := os.Open(s.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return nil
	}

	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		return nil
	}
	s.offset += int64(len(data))

	chunk := s.partial + string(data)
	lines := strings.Split(chunk, "\n")
	s.partial = lines[len(lines)-1]
	return lines[:len(lines)-1]
}
