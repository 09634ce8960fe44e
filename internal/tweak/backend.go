package tweak

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sanverite/tweakd/internal/executor"
	"github.com/sanverite/tweakd/internal/kv"
)

// Script actions understood by tweak backends. Not every script implements
// every action.
const (
	ActionGetCurrent  = "get_current"
	ActionGetSaved    = "get_saved"
	ActionSave        = "save"
	ActionApply       = "apply"
	ActionIsAvailable = "is_available"
)

// Success tokens are matched as exact substrings of script output.
var (
	saveTokens  = []string{"saved", "Saved"}
	applyTokens = []string{"applied", "Applied"}
)

// ErrEmptyOutput is returned when a script that must print state printed nothing.
var ErrEmptyOutput = errors.New("backend returned no output")

// Result is the outcome of a state-changing backend call. OK is derived
// from the script output by token matching; Message carries the raw output
// (or the transport error) for diagnostics.
type Result struct {
	OK      bool
	Message string
}

// Backend speaks the per-tweak script protocol over an Executor.
type Backend struct {
	exec   executor.Executor
	script string
}

// NewBackend binds a script path to an executor.
func NewBackend(exec executor.Executor, script string) Backend {
	return Backend{exec: exec, script: script}
}

// Fetch runs a read action and parses its key=value output. allowEmpty
// permits scripts such as get_saved to report "nothing persisted".
func (b Backend) Fetch(ctx context.Context, action string, allowEmpty bool) (map[string]string, error) {
	out, err := b.exec.Exec(ctx, executor.Command(b.script, action))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if out == "" && !allowEmpty {
		return nil, fmt.Errorf("%s: %w", action, ErrEmptyOutput)
	}
	return kv.Parse(out), nil
}

// Invoke runs a state-changing action with positional key=value args. The
// call succeeds when the output contains any of tokens.
func (b Backend) Invoke(ctx context.Context, action string, args []string, tokens []string) (Result, error) {
	out, err := b.exec.Exec(ctx, executor.Command(b.script, action, args...))
	if err != nil {
		return Result{Message: err.Error()}, fmt.Errorf("%s: %w", action, err)
	}
	return Result{OK: containsAny(out, tokens), Message: out}, nil
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
