package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strings"
	"time"
)

// RetryConfig holds retry parameters for gh CLI calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// isRetryable checks if a gh CLI failure is worth retrying. Auth and
// validation failures never are; rate limits, network failures, and server
// errors are.
func isRetryable(output string, exitCode int) bool {
	nonRetryable := []string{
		"authentication", "auth", "login",
		"not found", "404",
		"422", "validation failed",
		"already exists",
	}
	lower := strings.ToLower(output)
	for _, s := range nonRetryable {
		if strings.Contains(lower, s) {
			return false
		}
	}

	retryable := []string{
		"rate limit", "rate_limit", "403",
		"500", "502", "503", "504",
		"timeout", "timed out",
		"connection refused", "connection reset",
		"no such host", "network",
		"temporary failure",
	}
	for _, s := range retryable {
		if strings.Contains(lower, s) {
			return true
		}
	}

	// Generic non-zero exits may be transient.
	return exitCode != 0
}

// runWithRetry executes a command with exponential backoff, capturing
// combined stdout+stderr. Non-retryable failures return immediately.
func runWithRetry(ctx context.Context, cfg RetryConfig, name string, args ...string) ([]byte, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	var lastOutput []byte

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		cmd := exec.CommandContext(ctx, name, args...)
		output, err := cmd.Output()
		if err == nil {
			return output, nil
		}

		lastErr = err
		lastOutput = output

		exitCode := 1
		detail := err.Error()
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}

		if !isRetryable(detail, exitCode) {
			return output, fmt.Errorf("%s failed: %s", name, detail)
		}

		if attempt < cfg.MaxAttempts {
			delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			slog.Warn("tracker command failed, retrying",
				slog.String("command", name),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.Duration("delay", delay),
				slog.String("error", detail))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return lastOutput, ctx.Err()
			}
		}
	}

	return lastOutput, fmt.Errorf("%s failed after %d attempts: %w", name, cfg.MaxAttempts, lastErr)
}
