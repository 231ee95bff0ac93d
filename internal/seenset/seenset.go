// Package seenset persists the set of task identifiers already handled.
//
// The set is a newline-delimited file of identifiers, optionally followed by
// a "# reason" comment. The file on disk is the single source of truth: it is
// re-read at the start of every selection rather than cached across the run,
// so deleting a line re-enables that task for automatic selection.
package seenset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Set is a file-backed set of task identifiers.
type Set struct {
	path string
}

// New creates a Set backed by the given file path.
// The file does not need to exist yet.
func New(path string) *Set {
	return &Set{path: path}
}

// Path returns the backing file path.
func (s *Set) Path() string {
	return s.path
}

// Contains reports whether id is in the set.
// The file is re-read on every call.
func (s *Set) Contains(id string) (bool, error) {
	ids, err := s.load()
	if err != nil {
		return false, err
	}
	_, ok := ids[id]
	return ok, nil
}

// Add appends id to the set with an optional reason.
// Adding an identifier that is already present is a no-op.
func (s *Set) Add(id, reason string) error {
	seen, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := seen[id]; ok {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create seen-set directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open seen-set: %w", err)
	}
	defer f.Close()

	line := id
	if reason != "" {
		line = fmt.Sprintf("%s # %s", id, reason)
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("failed to append to seen-set: %w", err)
	}
	return nil
}

// load reads the file into a set. A missing file is an empty set.
func (s *Set) load() (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seen-set: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line != "" {
			ids[line] = struct{}{}
		}
	}
	return ids, scanner.Err()
}
