package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sanverite/tweakd/internal/core"
)

// Prober is a tweak that can answer the is_available question.
type Prober interface {
	Name() string
	CheckAvailability(ctx context.Context) (bool, error)
}

// Config controls a probe run.
type Config struct {
	// Timeout bounds a single tweak's probe. If zero, DefaultTimeout is used.
	Timeout time.Duration
	// Concurrency caps parallel probes in ProbeAll. If zero,
	// DefaultConcurrency is used.
	Concurrency int
}

const (
	DefaultTimeout     = 5 * time.Second
	DefaultConcurrency = 4
)

// Availability runs one bounded is_available probe.
//
// The returned summary is always populated with the tweak name, latency and
// timestamp. Known is false when the probe failed or timed out; the error is
// also recorded as a warning.
func Availability(ctx context.Context, p Prober, cfg Config) (core.Availability, error) {
	summary := core.Availability{Tweak: p.Name()}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t0 := time.Now()
	ok, err := p.CheckAvailability(ctx)
	summary.LatencyMs = millisSince(t0)
	summary.LastChecked = core.TimeNow()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("probe timed out after %s", timeout))
		}
		summary.Warnings = append(summary.Warnings, err.Error())
		return summary, err
	}
	summary.Known = true
	summary.Available = ok
	return summary, nil
}

// ProbeAll probes every tweak with bounded parallelism and records each
// summary in state, failed ones included. The returned error joins the
// individual failures; one failing probe never stops the others.
func ProbeAll(ctx context.Context, state *core.State, probers []Prober, cfg Config) error {
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, p := range probers {
		g.Go(func() error {
			summary, err := Availability(ctx, p, cfg)
			state.UpdateAvailability(summary)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func millisSince(t time.Time) int64 {
	return time.Since(t).Milliseconds()
}
