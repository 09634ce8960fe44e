package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPatchMachine_HappyPath(t *testing.T) {
	s := NewState()
	require.Equal(t, PhaseIdle, s.PatchPhase())

	require.NoError(t, s.BeginPatch("op-1", map[string]string{"superfloppy": "2"}))
	require.ErrorIs(t, s.BeginPatch("op-2", nil), ErrInvalidTransition)

	require.NoError(t, s.SetPatchPhase(PhasePatching, ""))
	require.NoError(t, s.SetPatchPhase(PhasePersisting, ""))
	require.NoError(t, s.SetPatchPhase(PhaseDone, ""))

	snap := s.GetSnapshot()
	require.Equal(t, "op-1", snap.Patch.ID)
	require.Equal(t, PhaseDone, snap.Patch.Phase)
	require.Equal(t, map[string]string{"superfloppy": "2"}, snap.Patch.Changes)

	// A finished run may be followed by a new one.
	require.NoError(t, s.BeginPatch("op-2", nil))
}

func TestPatchMachine_RejectsIllegalEdges(t *testing.T) {
	s := NewState()
	require.ErrorIs(t, s.SetPatchPhase(PhasePatching, ""), ErrInvalidTransition)

	require.NoError(t, s.BeginPatch("op", nil))
	require.ErrorIs(t, s.SetPatchPhase(PhaseDone, ""), ErrInvalidTransition)
	require.NoError(t, s.SetPatchPhase(PhasePatching, ""))
	require.NoError(t, s.SetPatchPhase(PhaseFailed, "no Success token"))
	require.ErrorIs(t, s.SetPatchPhase(PhasePersisting, ""), ErrInvalidTransition)

	snap := s.GetSnapshot()
	require.Equal(t, PhaseFailed, snap.Patch.Phase)
	require.Equal(t, "no Success token", snap.Patch.Error)
}

func TestPatchMachine_DeclineReturnsToIdle(t *testing.T) {
	s := NewState()
	require.NoError(t, s.BeginPatch("op", nil))
	require.NoError(t, s.SetPatchPhase(PhaseIdle, ""))
	require.Equal(t, PhaseIdle, s.PatchPhase())
}

func TestNotices_Bounded(t *testing.T) {
	s := NewState()
	s.Notify(NoticeInfo, "zram", "")
	require.Empty(t, s.GetSnapshot().Notices)

	for i := 0; i < MaxNotices+5; i++ {
		s.Notify(NoticeError, "zram", fmt.Sprintf("n%d", i))
	}
	notices := s.GetSnapshot().Notices
	require.Len(t, notices, MaxNotices)
	require.Equal(t, "n5", notices[0].Message)

	s.ClearNotices()
	require.Empty(t, s.GetSnapshot().Notices)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	s := NewState()
	s.UpdateAvailability(Availability{Tweak: "zram", Known: true, Available: true, Warnings: []string{"w"}})
	s.UpdateAvailability(Availability{})

	snap := s.GetSnapshot()
	require.Len(t, snap.Availability, 1)
	a := snap.Availability["zram"]
	a.Warnings[0] = "mutated"

	require.Equal(t, "w", s.GetSnapshot().Availability["zram"].Warnings[0])
}

func TestUptimeAndReset(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := TimeNow
	TimeNow = func() time.Time { return base }
	t.Cleanup(func() { TimeNow = prev })

	s := NewState()
	TimeNow = func() time.Time { return base.Add(90 * time.Second) }
	require.Equal(t, 90*time.Second, s.Uptime())

	require.NoError(t, s.BeginPatch("op", nil))
	s.Notify(NoticeInfo, "x", "y")
	s.Reset(true)
	snap := s.GetSnapshot()
	require.Empty(t, snap.Notices)
	require.Equal(t, PhaseIdle, snap.Patch.Phase)
}
