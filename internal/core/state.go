package core

import (
	"errors"
	"sync"
	"time"
)

// PatchPhase is the lifecycle state of a feature patch operation.
// The machine is intentionally small; the intended transitions:
//
// idle       -> confirming
// confirming -> patching | idle
// patching   -> persisting | failed
// persisting -> done
// done       -> idle | confirming
// failed     -> idle | confirming
//
// Transitions outside this set are rejected by SetPatchPhase.
type PatchPhase string

const (
	PhaseIdle       PatchPhase = "idle"
	PhaseConfirming PatchPhase = "confirming"
	PhasePatching   PatchPhase = "patching"
	PhasePersisting PatchPhase = "persisting"
	PhaseDone       PatchPhase = "done"
	PhaseFailed     PatchPhase = "failed"
)

// NoticeLevel classifies a user-visible notification.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeError   NoticeLevel = "error"
)

// MaxNotices bounds the notice history; older entries are dropped first.
const MaxNotices = 64

// Notice is a toast-style message surfaced to the user at the point an
// operation succeeds or fails.
type Notice struct {
	Level   NoticeLevel
	Source  string // tweak name or "features"
	Message string
	At      time.Time
}

// Availability is the outcome of the last is_available probe for a tweak.
// Known is false until a probe produced a parseable answer.
type Availability struct {
	Tweak       string
	Known       bool
	Available   bool
	LatencyMs   int64
	LastChecked time.Time
	Warnings    []string
}

// PatchOperation describes the current or most recent patch run.
type PatchOperation struct {
	ID        string
	Phase     PatchPhase
	StartedAt time.Time
	Changes   map[string]string
	Error     string
}

// Snapshot is a threadsafe read model returned to the API layer.
// All nested slices/maps are defensive copies.
type Snapshot struct {
	StartedAt    time.Time
	Notices      []Notice
	Availability map[string]Availability
	Patch        PatchOperation
}

// State holds daemon-wide mutable state with synchronization.
// Use the provided methods to mutate; callers should never take the lock directly.
type State struct {
	mu           sync.RWMutex
	startedAt    time.Time
	notices      []Notice
	availability map[string]Availability
	patch        PatchOperation
}

// NewState constructs a state with an idle patch machine.
func NewState() *State {
	return &State{
		startedAt:    TimeNow(),
		availability: make(map[string]Availability),
		patch:        PatchOperation{Phase: PhaseIdle},
	}
}

// TimeNow abstracts time for tests.
var TimeNow = func() time.Time { return time.Now() }

// GetSnapshot returns a deep copy safe for concurrent reads.
func (s *State) GetSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	avail := make(map[string]Availability, len(s.availability))
	for k, v := range s.availability {
		v.Warnings = append([]string(nil), v.Warnings...)
		avail[k] = v
	}
	patch := s.patch
	patch.Changes = cloneMap(s.patch.Changes)

	return Snapshot{
		StartedAt:    s.startedAt,
		Notices:      append([]Notice(nil), s.notices...),
		Availability: avail,
		Patch:        patch,
	}
}

// Uptime returns the wall-clock duration since the state was created.
func (s *State) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TimeNow().Sub(s.startedAt)
}

// Notify records a notice. Empty messages are ignored.
func (s *State) Notify(level NoticeLevel, source, message string) {
	if message == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Source: source, Message: message, At: TimeNow()})
	if over := len(s.notices) - MaxNotices; over > 0 {
		s.notices = append([]Notice(nil), s.notices[over:]...)
	}
}

// ClearNotices removes all accumulated notices.
func (s *State) ClearNotices() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = nil
}

// UpdateAvailability replaces the probe outcome for a.Tweak.
func (s *State) UpdateAvailability(a Availability) {
	if a.Tweak == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Warnings = append([]string(nil), a.Warnings...)
	s.availability[a.Tweak] = a
}

// ErrInvalidTransition is returned when SetPatchPhase receives an illegal transition.
var ErrInvalidTransition = errors.New("invalid patch phase transition")

// BeginPatch starts a new operation in the confirming phase. It fails with
// ErrInvalidTransition while another operation is still running.
func (s *State) BeginPatch(id string, changes map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !allowedTransition(s.patch.Phase, PhaseConfirming) {
		return ErrInvalidTransition
	}
	s.patch = PatchOperation{
		ID:        id,
		Phase:     PhaseConfirming,
		StartedAt: TimeNow(),
		Changes:   cloneMap(changes),
	}
	return nil
}

// SetPatchPhase transitions the current operation, enforcing the machine.
// errMsg is recorded when entering PhaseFailed.
//
// Returns ErrInvalidTransition if the (current -> next) edge is not allowed.
func (s *State) SetPatchPhase(next PatchPhase, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.patch.Phase
	if cur == next {
		return nil
	}
	if !allowedTransition(cur, next) {
		return ErrInvalidTransition
	}
	if next == PhaseFailed {
		s.patch.Error = errMsg
	}
	s.patch.Phase = next
	return nil
}

// PatchPhase returns the phase of the current operation.
func (s *State) PatchPhase() PatchPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patch.Phase
}

func allowedTransition(cur, next PatchPhase) bool {
	switch cur {
	case PhaseIdle:
		return next == PhaseConfirming
	case PhaseConfirming:
		return next == PhasePatching || next == PhaseIdle
	case PhasePatching:
		return next == PhasePersisting || next == PhaseFailed
	case PhasePersisting:
		return next == PhaseDone
	case PhaseDone, PhaseFailed:
		return next == PhaseIdle || next == PhaseConfirming
	default:
		return false
	}
}

// Reset clears notices and availability. If clearPatch is true the patch
// machine also returns to idle, discarding the last operation.
func (s *State) Reset(clearPatch bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clearPatch {
		s.patch = PatchOperation{Phase: PhaseIdle}
	}
	s.notices = nil
	s.availability = make(map[string]Availability)
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
