package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNoResult marks a command that did not produce a usable result.
var ErrNoResult = errors.New("command produced no result")

// Executor runs a shell command and returns its trimmed stdout.
type Executor interface {
	Exec(ctx context.Context, command string) (string, error)
}

// Default shell settings.
const (
	DefaultShell   = "sh"
	DefaultTimeout = 2 * time.Minute
)

// ShellOptions configures a Shell executor.
type ShellOptions struct {
	// Shell is the interpreter invoked as "<Shell> -c <command>".
	Shell string
	// Prefix, when set, wraps every command as "<Prefix> <quoted command>",
	// e.g. "su -c" on devices where the daemon is not already root.
	Prefix string
	// Timeout bounds a single command. Zero uses DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Shell executes commands through a local shell.
type Shell struct {
	opts  ShellOptions
	group singleflight.Group
}

// NewShell constructs a Shell executor, filling defaults.
func NewShell(opts ShellOptions) *Shell {
	if opts.Shell == "" {
		opts.Shell = DefaultShell
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Shell{opts: opts}
}

// Exec runs command and returns trimmed stdout.
func (s *Shell) Exec(ctx context.Context, command string) (string, error) {
	v, err, shared := s.group.Do(command, func() (any, error) {
		return s.run(ctx, command)
	})
	if shared {
		s.opts.Logger.Debug("exec result shared", "command", command)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Shell) run(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	full := command
	if s.opts.Prefix != "" {
		full = s.opts.Prefix + " " + singleQuote(command)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.opts.Shell, "-c", full)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	execDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			execTotal.WithLabelValues(outcomeTimeout).Inc()
			err = fmt.Errorf("%w: timed out after %s", ErrNoResult, s.opts.Timeout)
		case errors.As(err, &exitErr):
			execTotal.WithLabelValues(outcomeExit).Inc()
			err = fmt.Errorf("%w: exit %d: %s", ErrNoResult, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		default:
			execTotal.WithLabelValues(outcomeTransport).Inc()
			err = fmt.Errorf("%w: %v", ErrNoResult, err)
		}
		s.opts.Logger.Warn("exec failed", "command", command, "error", err)
		return "", err
	}

	execTotal.WithLabelValues(outcomeOK).Inc()
	return strings.TrimSpace(stdout.String()), nil
}

// Quote wraps value in double quotes for interpolation into a command.
// The value is not escaped.
func Quote(value string) string {
	return `"` + value + `"`
}

// singleQuote quotes command as one shell word. Commands built by Command
// already contain double quotes, so the prefix wrapper uses single quotes.
func singleQuote(command string) string {
	return "'" + strings.ReplaceAll(command, "'", `'\''`) + "'"
}

// Command joins a script invocation into a single shell command string:
// "sh <script> <action> "<arg>" ...".
func Command(script, action string, args ...string) string {
	var b strings.Builder
	b.WriteString("sh ")
	b.WriteString(script)
	if action != "" {
		b.WriteByte(' ')
		b.WriteString(action)
	}
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(Quote(a))
	}
	return b.String()
}
