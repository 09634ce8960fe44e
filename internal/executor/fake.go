package executor

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Executor for tests. Responses are keyed by the exact
// command string; Handler, when set, is consulted for commands without a
// canned response.
type Fake struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []string

	Handler func(ctx context.Context, command string) (string, error)
}

type fakeResponse struct {
	out string
	err error
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{responses: make(map[string]fakeResponse)}
}

// On registers stdout for command.
func (f *Fake) On(command, out string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[command] = fakeResponse{out: out}
	return f
}

// Fail registers a failure for command.
func (f *Fake) Fail(command string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[command] = fakeResponse{err: fmt.Errorf("%w: fake failure", ErrNoResult)}
	return f
}

// Exec implements Executor.
func (f *Fake) Exec(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	resp, ok := f.responses[command]
	handler := f.Handler
	f.mu.Unlock()

	if ok {
		return resp.out, resp.err
	}
	if handler != nil {
		return handler(ctx, command)
	}
	return "", fmt.Errorf("%w: no fake response for %q", ErrNoResult, command)
}

// Calls returns the commands executed so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports whether command was executed at least once.
func (f *Fake) Called(command string) bool {
	for _, c := range f.Calls() {
		if c == command {
			return true
		}
	}
	return false
}
