// Package logrelay streams a backend's progress log into the UI while a
// long-running script call is in flight.
//
// The backend appends to a plain file and offers no push channel, so the
// relay polls: every tick it reads the whole file and, if the content grew,
// forwards only the suffix beyond what it has already seen. The comparison
// is by length of the whole content, not by lines.
package logrelay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultInterval is the fixed polling period.
const DefaultInterval = 200 * time.Millisecond

// ErrRunning is returned by Start when the relay is already polling.
var ErrRunning = errors.New("relay already running")

// Sink receives new log content.
type Sink interface {
	Append(chunk string)
}

// Relay polls one log file into a Sink.
type Relay struct {
	path     string
	interval time.Duration
	sink     Sink

	mu     sync.Mutex
	last   string
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a relay for path. A non-positive interval uses DefaultInterval.
func New(path string, interval time.Duration, sink Sink) *Relay {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Relay{path: path, interval: interval, sink: sink}
}

// Start truncates the log file and begins polling in the background.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrRunning
	}
	if err := r.resetLocked(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	go func() {
		defer close(done)
		r.loop(ctx)
	}()
	return nil
}

// Stop halts polling, waits for the poller to exit and forwards whatever the
// backend wrote after the last tick. Stop on a stopped relay is a no-op.
func (r *Relay) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.tick()
}

// Run starts the relay, runs fn, and stops the relay as soon as fn
// returns, so the last drain sees everything fn's command wrote. fn's error
// is returned; fn never runs when the relay cannot start.
func Run(ctx context.Context, r *Relay, fn func(ctx context.Context) error) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	defer r.Stop()
	return fn(ctx)
}

func (r *Relay) resetLocked() error {
	if err := os.WriteFile(r.path, nil, 0o644); err != nil {
		return fmt.Errorf("clear log %s: %w", r.path, err)
	}
	r.last = ""
	return nil
}

func (r *Relay) loop(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.tick()
		}
	}
}

// tick forwards the unseen suffix of the file, if it grew. Read errors are
// ignored; the backend may not have created the file yet.
func (r *Relay) tick() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return
	}
	content := string(data)

	r.mu.Lock()
	var chunk string
	if len(content) > len(r.last) {
		chunk = content[len(r.last):]
		r.last = content
	}
	r.mu.Unlock()

	if chunk != "" && r.sink != nil {
		r.sink.Append(chunk)
	}
}
