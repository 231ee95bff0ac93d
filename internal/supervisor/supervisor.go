// Package supervisor launches and supervises one worker invocation.
//
// The worker is an external coding agent started as a child process in its
// own process group, with stdout and stderr captured to durable sink files
// that a concurrent reader can tail without coordination. While the child is
// alive the supervisor polls at a short interval and decides, in priority
// order: wall-clock timeout, capability denial observed in either sink, and
// done-pattern grace expiry. Every exit path kills the whole process group
// and reaps the child.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// State classifies how an invocation ended.
type State int

const (
	// StateCompleted means the worker finished (naturally or via the
	// done-pattern grace cutoff) and its output is usable.
	StateCompleted State = iota
	// StateTimedOut means the wall-clock budget was exceeded. The task is
	// left pending for retry.
	StateTimedOut
	// StateDenied means a capability-denial pattern was observed. This is a
	// policy violation: the run's capability boundary is misconfigured.
	StateDenied
	// StateMaxTurns means the worker ran out of its turn budget. Deferrable,
	// not fatal.
	StateMaxTurns
	// StateFailed is a non-zero exit with no recognized pattern.
	StateFailed
)

// String renders the state for logs.
func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed-out"
	case StateDenied:
		return "denied"
	case StateMaxTurns:
		return "max-turns"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config controls one invocation.
type Config struct {
	// Command is the worker binary; defaults to "claude".
	Command string
	// Args overrides the built argument list entirely when set.
	Args []string

	Model        string
	MaxTurns     int
	AllowedTools []string

	// Timeout is the wall-clock budget; zero means no deadline.
	Timeout time.Duration
	// PollInterval is the liveness check period; defaults to 2s.
	PollInterval time.Duration

	// DonePattern, when set, is a regexp matched against output lines as a
	// content signal that the worker believes it has finished.
	DonePattern string
	// GracePeriod bounds the wait after DonePattern fires; once it elapses
	// without natural exit the worker is cut off and the invocation counts
	// as completed, because a wrapping-up worker may otherwise run forever.
	GracePeriod time.Duration

	// Dir is the worker's working directory; empty means the current one.
	Dir string

	// LogDir receives the sink files; Name prefixes them.
	LogDir string
	Name   string

	// OnStart, when set, is called with the stdout sink path once the
	// worker is launched, so a live viewer can attach to the stream.
	OnStart func(stdoutPath string)

	// UsePTY launches the worker under a pseudo-terminal so it does not
	// block-buffer its stream; output is pumped to the stdout sink.
	UsePTY bool
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Command == "" {
		out.Command = "claude"
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 2 * time.Second
	}
	if out.GracePeriod <= 0 {
		out.GracePeriod = 30 * time.Second
	}
	if out.Name == "" {
		out.Name = "worker"
	}
	return out
}

// buildArgs assembles the worker command line.
func (c *Config) buildArgs() []string {
	if len(c.Args) > 0 {
		return c.Args
	}
	args := []string{"--print", "--verbose", "--output-format", "stream-json"}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	if c.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(c.MaxTurns))
	}
	if len(c.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(c.AllowedTools, " "))
	}
	return args
}

// Result reports one finished invocation. The sink files are preserved on
// disk regardless of outcome so failures stay diagnosable after the fact.
type Result struct {
	State       State
	ExitCode    int
	Duration    time.Duration
	StdoutPath  string
	StderrPath  string
	DeniedLines []string
	DoneMatched bool
}

// Output returns the full stdout sink contents for result extraction.
func (r *Result) Output() string {
	data, err := os.ReadFile(r.StdoutPath)
	if err != nil {
		return ""
	}
	return string(data)
}

// Supervise runs one worker invocation to a terminal classification.
// Context cancellation is honored the same way as a timeout: the process
// group is killed and reaped, and the invocation classifies as timed-out.
func Supervise(ctx context.Context, payload string, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	start := time.Now()

	var donePattern *regexp.Regexp
	if cfg.DonePattern != "" {
		var err error
		donePattern, err = regexp.Compile(cfg.DonePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid done pattern: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405.000")
	stdoutPath := filepath.Join(cfg.LogDir, fmt.Sprintf("%s-%s.out.log", cfg.Name, stamp))
	stderrPath := filepath.Join(cfg.LogDir, fmt.Sprintf("%s-%s.err.log", cfg.Name, stamp))

	result := &Result{StdoutPath: stdoutPath, StderrPath: stderrPath}

	cmd := exec.Command(cfg.Command, cfg.buildArgs()...)
	cmd.Dir = cfg.Dir

	proc, err := launch(cmd, payload, cfg.UsePTY, stdoutPath, stderrPath)
	if err != nil {
		return nil, fmt.Errorf("failed to launch worker: %w", err)
	}
	defer proc.release()

	if cfg.OnStart != nil {
		cfg.OnStart(stdoutPath)
	}

	waitCh := make(chan int, 1)
	go func() { waitCh <- proc.wait() }()

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = start.Add(cfg.Timeout)
	}

	outScan := newSinkScanner(stdoutPath)
	errScan := newSinkScanner(stderrPath)

	var doneAt time.Time

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	finish := func(state State, exitCode int) (*Result, error) {
		result.State = state
		result.ExitCode = exitCode
		result.Duration = time.Since(start)
		return result, nil
	}

	kill := func() int {
		proc.kill()
		return <-waitCh
	}

	for {
		select {
		case code := <-waitCh:
			// Natural exit. Re-scan the full sinks once more: the final
			// chunk may only be visible post-flush, so streamed detection
			// can race process buffering.
			if matched := scanFile(stdoutPath, denialPatterns); len(matched) > 0 {
				result.DeniedLines = matched
				return finish(StateDenied, code)
			}
			if matched := scanFile(stderrPath, denialPatterns); len(matched) > 0 {
				result.DeniedLines = matched
				return finish(StateDenied, code)
			}
			if len(scanFile(stdoutPath, maxTurnsPatterns)) > 0 ||
				len(scanFile(stderrPath, maxTurnsPatterns)) > 0 {
				return finish(StateMaxTurns, code)
			}
			if code != 0 {
				return finish(StateFailed, code)
			}
			return finish(StateCompleted, 0)

		case <-ctx.Done():
			return finish(StateTimedOut, kill())

		case <-ticker.C:
			now := time.Now()

			if !deadline.IsZero() && now.After(deadline) {
				return finish(StateTimedOut, kill())
			}

			newLines := append(outScan.next(), errScan.next()...)

			if matched := matchLines(newLines, denialPatterns); len(matched) > 0 {
				result.DeniedLines = matched
				return finish(StateDenied, kill())
			}

			if donePattern != nil {
				if doneAt.IsZero() {
					for _, line := range newLines {
						if donePattern.MatchString(line) {
							doneAt = now
							result.DoneMatched = true
							break
						}
					}
				} else if now.Sub(doneAt) >= cfg.GracePeriod {
					// The worker said it was done but keeps wrapping up;
					// cut it off and keep whatever result it produced.
					return finish(StateCompleted, kill())
				}
			}
		}
	}
}

// exitCode extracts the child's exit code from a Wait error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
