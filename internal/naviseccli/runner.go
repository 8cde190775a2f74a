// Package naviseccli runs the VNX management CLI and splits its
// "Key:  Value" output into records.
package naviseccli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultBinary  = "naviseccli"
	defaultTimeout = 5 * time.Minute
)

// Runner executes one CLI command against the array and returns its
// output. A command the array rejected is reported as *Error.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// Config describes how to reach the storage processors.
type Config struct {
	Binary   string
	SPA      string
	SPB      string
	Username string
	Password string
	// Scope is 0 for global, 1 for local and 2 for LDAP accounts.
	Scope   int
	Timeout time.Duration
}

// Error is a command the CLI or the array rejected.
type Error struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

// Error implements error.
func (e *Error) Error() string {
	msg := firstErrorLine(e.Output)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("naviseccli %s failed (exit %d): %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

// Unwrap returns the underlying exec error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// ExecRunner runs the CLI binary, trying SP A first and falling back to
// SP B when SP A cannot be reached.
type ExecRunner struct {
	cfg     Config
	log     logrus.FieldLogger
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExecRunner returns a runner for cfg.
func NewExecRunner(cfg Config, log logrus.FieldLogger) (*ExecRunner, error) {
	if cfg.SPA == "" && cfg.SPB == "" {
		return nil, fmt.Errorf("at least one storage processor address is required")
	}
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExecRunner{cfg: cfg, log: log, command: exec.CommandContext}, nil
}

// Run executes args against the first reachable storage processor.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	var lastErr error
	for _, sp := range r.processors() {
		out, err := r.runOn(ctx, sp, args)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsUnreachable(err) {
			return out, err
		}
		r.log.WithField("sp", sp).Warn("storage processor unreachable, trying peer")
	}
	return "", lastErr
}

func (r *ExecRunner) processors() []string {
	var sps []string
	for _, sp := range []string{r.cfg.SPA, r.cfg.SPB} {
		if sp != "" {
			sps = append(sps, sp)
		}
	}
	return sps
}

func (r *ExecRunner) runOn(ctx context.Context, sp string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	full := r.globalArgs(sp)
	full = append(full, args...)
	start := time.Now()
	out, err := r.command(ctx, r.cfg.Binary, full...).CombinedOutput()
	text := string(out)

	entry := r.log.WithFields(logrus.Fields{
		"sp":      sp,
		"command": strings.Join(args, " "),
		"elapsed": time.Since(start).String(),
	})
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		entry.WithField("exit_code", code).Debug("cli command failed")
		return text, &Error{Args: args, ExitCode: code, Output: text, Err: err}
	}
	if HasError(text) {
		entry.Debug("cli reported an error")
		return text, &Error{Args: args, Output: text}
	}
	entry.Debug("cli command completed")
	return text, nil
}

func (r *ExecRunner) globalArgs(sp string) []string {
	args := []string{"-h", sp}
	if r.cfg.Username != "" {
		args = append(args,
			"-User", r.cfg.Username,
			"-Password", r.cfg.Password,
			"-Scope", strconv.Itoa(r.cfg.Scope),
		)
	}
	return args
}

var unreachableMarkers = []string{
	"a network error occurred",
	"error occurred during http request/response",
	"unable to establish a connection",
	"could not connect to the specified host",
}

// IsUnreachable reports whether err means the storage processor could
// not be contacted at all.
func IsUnreachable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	out := strings.ToLower(e.Output)
	for _, m := range unreachableMarkers {
		if strings.Contains(out, m) {
			return true
		}
	}
	return false
}

// HasError reports whether the CLI printed an error despite exiting 0.
func HasError(out string) bool {
	return firstErrorLine(out) != ""
}

func firstErrorLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "error") || strings.Contains(lower, "command failed") {
			return line
		}
	}
	return ""
}
