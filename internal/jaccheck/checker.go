// Package jaccheck adapts the external `jac check` validator to the
// scorer's SyntaxChecker interface. The checker writes the candidate code
// to a temporary .jac file, runs the configured command against it under a
// hard time budget, and parses diagnostics from the combined output.
//
// When the jac binary is not installed the checker reports success, so the
// hard compile check is effectively skipped rather than failing every test.
package jaccheck

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
)

// DefaultTimeout is the per-check budget. Checks are expected to be quick;
// anything slower counts as a failure.
const DefaultTimeout = 5 * time.Second

// Config controls which command runs and how long it may take.
type Config struct {
	// Command is the checker binary, default "jac".
	Command string

	// Args are passed before the temp file path, default ["check"].
	Args []string

	// Timeout bounds one check, default 5s.
	Timeout time.Duration
}

// Checker runs the external syntax validator. It is safe for concurrent
// use; each check gets its own temp file and process.
type Checker struct {
	command   string
	args      []string
	timeout   time.Duration
	available bool
	logger    *slog.Logger
}

var _ score.SyntaxChecker = (*Checker)(nil)

// New resolves the checker binary and returns the adapter. A missing
// binary is not an error; the returned checker skips instead.
func New(cfg Config, logger *slog.Logger) *Checker {
	if cfg.Command == "" {
		cfg.Command = "jac"
	}
	if len(cfg.Args) == 0 {
		cfg.Args = []string{"check"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Checker{
		command: cfg.Command,
		args:    cfg.Args,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	if _, err := exec.LookPath(cfg.Command); err != nil {
		c.logger.Warn("syntax checker binary not found, hard checks will be skipped",
			slog.String("command", cfg.Command))
	} else {
		c.available = true
	}
	return c
}

// Available reports whether the checker binary was found on PATH.
func (c *Checker) Available() bool { return c.available }

// Check validates code with the external command. A timed-out or crashed
// check counts as failed; an unavailable binary counts as passed.
func (c *Checker) Check(ctx context.Context, code string) (score.CheckResult, error) {
	if !c.available {
		return score.CheckResult{OK: true}, nil
	}

	tmp, err := os.CreateTemp("", "jacbench-*.jac")
	if err != nil {
		return score.CheckResult{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return score.CheckResult{}, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return score.CheckResult{}, fmt.Errorf("failed to close temp file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string{}, c.args...), path)
	cmd := exec.CommandContext(runCtx, c.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		c.logger.Debug("syntax check timed out", slog.Duration("after", duration))
		return score.CheckResult{
			OK:     false,
			Errors: []string{fmt.Sprintf("syntax check timed out after %v", c.timeout)},
		}, nil
	}

	diagnostics, warnings := parseDiagnostics(stdout.String() + "\n" + stderr.String())
	for _, w := range warnings {
		c.logger.Debug("syntax check warning", slog.String("warning", w))
	}

	if runErr == nil {
		return score.CheckResult{OK: true}, nil
	}

	if _, isExit := runErr.(*exec.ExitError); !isExit {
		// The process could not run at all.
		return score.CheckResult{
			OK:     false,
			Errors: []string{fmt.Sprintf("syntax check failed to run: %v", runErr)},
		}, nil
	}
	if len(diagnostics) == 0 {
		diagnostics = []string{fmt.Sprintf("syntax check failed: %v", runErr)}
	}
	return score.CheckResult{OK: false, Errors: diagnostics}, nil
}

// parseDiagnostics splits checker output into errors and warnings,
// following the jac CLI's line conventions.
func parseDiagnostics(output string) (errs, warnings []string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "Error:"):
			errs = append(errs, line)
		case strings.HasPrefix(line, "Warning:"):
			warnings = append(warnings, line)
		case strings.Contains(strings.ToLower(line), "error") && strings.Contains(line, ":"):
			errs = append(errs, line)
		}
	}
	return errs, warnings
}
