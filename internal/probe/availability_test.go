package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sanverite/tweakd/internal/core"
)

type stubProber struct {
	name  string
	ok    bool
	err   error
	block bool
}

func (s stubProber) Name() string { return s.name }

func (s stubProber) CheckAvailability(ctx context.Context) (bool, error) {
	if s.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return s.ok, s.err
}

func TestAvailability(t *testing.T) {
	a, err := Availability(context.Background(), stubProber{name: "zram", ok: true}, Config{})
	require.NoError(t, err)
	require.Equal(t, "zram", a.Tweak)
	require.True(t, a.Known)
	require.True(t, a.Available)
	require.False(t, a.LastChecked.IsZero())

	a, err = Availability(context.Background(), stubProber{name: "undervolt"}, Config{})
	require.NoError(t, err)
	require.True(t, a.Known)
	require.False(t, a.Available)
}

func TestAvailability_Failure(t *testing.T) {
	boom := errors.New("exit 127: not found")
	a, err := Availability(context.Background(), stubProber{name: "sound", err: boom}, Config{})
	require.ErrorIs(t, err, boom)
	require.False(t, a.Known)
	require.Equal(t, []string{boom.Error()}, a.Warnings)
}

func TestAvailability_Timeout(t *testing.T) {
	a, err := Availability(context.Background(), stubProber{name: "display", block: true}, Config{Timeout: 10 * time.Millisecond})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, a.Known)
	require.Len(t, a.Warnings, 2)
	require.Contains(t, a.Warnings[0], "timed out")
}

func TestProbeAll(t *testing.T) {
	state := core.NewState()
	probers := []Prober{
		stubProber{name: "zram", ok: true},
		stubProber{name: "undervolt"},
		stubProber{name: "sound", err: errors.New("boom")},
	}
	err := ProbeAll(context.Background(), state, probers, Config{Concurrency: 2})
	require.ErrorContains(t, err, "boom")

	snap := state.GetSnapshot()
	require.Len(t, snap.Availability, 3)
	require.True(t, snap.Availability["zram"].Available)
	require.True(t, snap.Availability["undervolt"].Known)
	require.False(t, snap.Availability["undervolt"].Available)
	require.False(t, snap.Availability["sound"].Known)

	require.NoError(t, ProbeAll(context.Background(), state, nil, Config{}))
}
