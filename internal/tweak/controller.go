package tweak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sanverite/tweakd/internal/core"
	"github.com/sanverite/tweakd/internal/kv"
)

var (
	// ErrBusy is returned when a load, save or apply is already running for
	// the same tweak. Operations are never queued.
	ErrBusy = errors.New("another operation is in progress")
	// ErrUnknownField is returned for edits to undeclared fields.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue is returned when a bounded field receives a non-integer.
	ErrInvalidValue = errors.New("invalid value")
	// ErrSaveFailed is returned when the save action did not confirm success.
	ErrSaveFailed = errors.New("save failed")
	// ErrApplyFailed is returned when the apply action did not confirm success.
	ErrApplyFailed = errors.New("apply failed")
	// ErrProbeFailed is returned when is_available gave no usable answer.
	ErrProbeFailed = errors.New("availability probe failed")
)

// Notifier receives user-visible notices. *core.State implements it.
type Notifier interface {
	Notify(level core.NoticeLevel, source, message string)
}

// Renderer receives a freshly derived View after every state change.
type Renderer interface {
	Render(View)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(View)

// Render implements Renderer.
func (f RenderFunc) Render(v View) { f(v) }

// Options carries a controller's collaborators.
type Options struct {
	// Defaults supplies the lowest-precedence value per field, usually the
	// tweak's entry in the "default" preset.
	Defaults map[string]string
	Notifier Notifier
	Renderer Renderer
	Logger   *slog.Logger
}

// Controller reconciles current, saved, pending and reference state for one
// tweak and drives its backend script.
//
// Mutations of the four maps happen under mu and never span a backend call.
// op serializes load, save, apply and probe: a second one started while the
// first is in flight fails fast with ErrBusy.
type Controller struct {
	def      Definition
	backend  Backend
	defaults map[string]string
	notifier Notifier
	renderer Renderer
	logger   *slog.Logger

	op sync.Mutex

	mu        sync.Mutex
	loaded    bool
	available Availability
	current   map[string]string
	saved     map[string]string
	pending   map[string]string
	reference map[string]string
	// overrides holds SetState/SetField edits made before the first Load;
	// they are layered over the freshly resolved reference once it exists.
	overrides map[string]string
}

// NewController builds a controller for def.
func NewController(def Definition, backend Backend, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		def:       def,
		backend:   backend,
		defaults:  kv.Clone(opts.Defaults),
		notifier:  opts.Notifier,
		renderer:  opts.Renderer,
		logger:    opts.Logger.With("tweak", def.Name),
		current:   make(map[string]string),
		saved:     make(map[string]string),
		pending:   make(map[string]string),
		reference: make(map[string]string),
		overrides: make(map[string]string),
	}
}

// Name returns the tweak name.
func (c *Controller) Name() string { return c.def.Name }

// Definition returns the static tweak description.
func (c *Controller) Definition() Definition { return c.def }

// Load fetches current and saved state and resets pending to the resolved
// reference. On backend failure the previous state is kept and the error is
// logged and returned; no notice is raised.
func (c *Controller) Load(ctx context.Context) error {
	if !c.op.TryLock() {
		return ErrBusy
	}
	defer c.op.Unlock()

	current, err := c.backend.Fetch(ctx, ActionGetCurrent, false)
	if err != nil {
		c.logger.Warn("load failed", "error", err)
		countOp(c.def.Name, "load", false)
		return fmt.Errorf("load %s: %w", c.def.Name, err)
	}
	saved, err := c.backend.Fetch(ctx, ActionGetSaved, true)
	if err != nil {
		c.logger.Warn("load failed", "error", err)
		countOp(c.def.Name, "load", false)
		return fmt.Errorf("load %s: %w", c.def.Name, err)
	}

	c.mu.Lock()
	c.current = current
	c.saved = saved
	c.reference = c.resolveLocked()
	c.pending = kv.Clone(c.reference)
	for k, v := range c.overrides {
		c.pending[k] = v
	}
	c.overrides = make(map[string]string)
	c.loaded = true
	view := c.viewLocked()
	c.mu.Unlock()

	countOp(c.def.Name, "load", true)
	c.logger.Debug("loaded", "pending", view.Pending)
	c.render(view)
	return nil
}

// resolveLocked computes reference[f] = saved[f] ?? current[f] ?? default[f].
// A key present in a map counts as defined, even with an empty value.
func (c *Controller) resolveLocked() map[string]string {
	ref := make(map[string]string, len(c.def.Fields))
	for _, f := range c.def.Fields {
		if v, ok := c.saved[f.Key]; ok {
			ref[f.Key] = v
		} else if v, ok := c.current[f.Key]; ok {
			ref[f.Key] = v
		} else if v, ok := c.defaults[f.Key]; ok {
			ref[f.Key] = v
		}
	}
	return ref
}

// SetField edits one pending field. An empty value reverts the field to its
// reference. A non-zero value for an exclusive field forces its siblings to
// "0". Bounded fields are clamped.
func (c *Controller) SetField(key, value string) (View, error) {
	spec, ok := c.def.Field(key)
	if !ok {
		return View{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, c.def.Name, key)
	}
	value = strings.TrimSpace(value)
	if value != "" {
		var err error
		if value, err = spec.Clamp(value); err != nil {
			return View{}, err
		}
	}

	c.mu.Lock()
	c.writeLocked(key, value)
	if isNonZero(value) {
		for _, sib := range c.def.siblings(key) {
			c.writeLocked(sib, "0")
		}
	}
	view := c.viewLocked()
	c.mu.Unlock()

	c.render(view)
	return view, nil
}

// excludeLocked zeroes the sibling of every exclusive field that set
// assigns a non-zero value.
func (c *Controller) excludeLocked(set map[string]string) {
	for _, p := range c.def.Exclusive {
		switch {
		case isNonZero(set[p.First]):
			c.writeLocked(p.Second, "0")
		case isNonZero(set[p.Second]):
			c.writeLocked(p.First, "0")
		}
	}
}

// writeLocked sets pending[key], treating "" as a revert to reference.
// Before the first load the edit is also remembered as an override.
func (c *Controller) writeLocked(key, value string) {
	if value == "" {
		if ref, ok := c.reference[key]; ok {
			c.pending[key] = ref
		} else {
			delete(c.pending, key)
		}
		delete(c.overrides, key)
		return
	}
	c.pending[key] = value
	if !c.loaded {
		c.overrides[key] = value
	}
}

// State returns the effective pending value of every field that has one.
func (c *Controller) State() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveLocked()
}

// SetState merges partial into pending and re-renders. It is safe before
// Load: the values are kept and layered over the reference when Load runs.
// Unknown fields are skipped; invalid values are reported but do not stop
// the remaining fields from being merged. Exclusion is applied as SetField
// does; when partial sets both fields of a pair non-zero, the first wins.
func (c *Controller) SetState(partial map[string]string) error {
	var errs []error
	normalized := make(map[string]string, len(partial))
	for k, v := range partial {
		spec, ok := c.def.Field(k)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s.%s", ErrUnknownField, c.def.Name, k))
			continue
		}
		v = strings.TrimSpace(v)
		if v != "" {
			clamped, err := spec.Clamp(v)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			v = clamped
		}
		normalized[k] = v
	}

	c.mu.Lock()
	for k, v := range normalized {
		c.writeLocked(k, v)
	}
	c.excludeLocked(normalized)
	view := c.viewLocked()
	c.mu.Unlock()

	c.render(view)
	return errors.Join(errs...)
}

// Save persists pending state through the save action. Only a confirmed
// success commits it as saved and reference; on failure nothing changes and
// the caller may simply retry.
func (c *Controller) Save(ctx context.Context) error {
	if !c.op.TryLock() {
		return ErrBusy
	}
	defer c.op.Unlock()

	c.mu.Lock()
	raw := c.effectiveLocked()
	c.mu.Unlock()
	values := c.enforceExclusion(raw)

	res, err := c.backend.Invoke(ctx, ActionSave, c.args(values), saveTokens)
	if err != nil || !res.OK {
		c.logger.Warn("save failed", "output", res.Message, "error", err)
		c.notify(core.NoticeError, "Failed to save "+c.def.DisplayTitle()+": "+res.Message)
		countOp(c.def.Name, "save", false)
		return fmt.Errorf("%w: %s: %s", ErrSaveFailed, c.def.Name, res.Message)
	}

	c.mu.Lock()
	for k, v := range values {
		c.saved[k] = v
		c.reference[k] = v
		// Fields the user did not touch while the call was in flight pick up
		// the exclusion-normalized value.
		if c.pending[k] == raw[k] {
			c.pending[k] = v
		}
	}
	view := c.viewLocked()
	c.mu.Unlock()

	countOp(c.def.Name, "save", true)
	c.notify(core.NoticeSuccess, c.def.DisplayTitle()+" saved")
	c.render(view)
	return nil
}

// Apply pushes pending state to the live system and refreshes current.
// Saved, pending and reference are never touched by Apply.
func (c *Controller) Apply(ctx context.Context) error {
	if !c.op.TryLock() {
		return ErrBusy
	}
	defer c.op.Unlock()

	c.mu.Lock()
	values := c.enforceExclusion(c.effectiveLocked())
	c.mu.Unlock()

	res, err := c.backend.Invoke(ctx, ActionApply, c.args(values), applyTokens)
	if err != nil || !res.OK {
		c.logger.Warn("apply failed", "output", res.Message, "error", err)
		c.notify(core.NoticeError, "Failed to apply "+c.def.DisplayTitle()+": "+res.Message)
		countOp(c.def.Name, "apply", false)
		return fmt.Errorf("%w: %s: %s", ErrApplyFailed, c.def.Name, res.Message)
	}
	countOp(c.def.Name, "apply", true)
	c.notify(core.NoticeSuccess, c.def.DisplayTitle()+" applied")

	current, err := c.backend.Fetch(ctx, ActionGetCurrent, false)
	if err != nil {
		c.logger.Warn("refresh after apply failed", "error", err)
		c.render(c.View())
		return nil
	}

	c.mu.Lock()
	c.current = current
	view := c.viewLocked()
	c.mu.Unlock()

	c.render(view)
	return nil
}

// CheckAvailability runs is_available and records the answer. The tweak is
// hidden from the panel when it reports available=0.
func (c *Controller) CheckAvailability(ctx context.Context) (bool, error) {
	if !c.op.TryLock() {
		return false, ErrBusy
	}
	defer c.op.Unlock()

	out, err := c.backend.Fetch(ctx, ActionIsAvailable, false)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrProbeFailed, c.def.Name, err)
	}

	var avail Availability
	switch out["available"] {
	case "1":
		avail = Available
	case "0":
		avail = Unavailable
	default:
		return false, fmt.Errorf("%w: %s: unexpected answer %q", ErrProbeFailed, c.def.Name, out["available"])
	}

	c.mu.Lock()
	c.available = avail
	c.mu.Unlock()
	return avail == Available, nil
}

// Render re-derives the view and hands it to the renderer.
func (c *Controller) Render() {
	c.render(c.View())
}

// View derives the current rendered view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Snapshots of the individual maps, mainly for diagnostics and tests.

func (c *Controller) Current() map[string]string   { return c.cloneLocked(&c.current) }
func (c *Controller) Saved() map[string]string     { return c.cloneLocked(&c.saved) }
func (c *Controller) Pending() map[string]string   { return c.cloneLocked(&c.pending) }
func (c *Controller) Reference() map[string]string { return c.cloneLocked(&c.reference) }

func (c *Controller) cloneLocked(m *map[string]string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return kv.Clone(*m)
}

// effectiveLocked returns pending layered over reference, restricted to
// declared fields.
func (c *Controller) effectiveLocked() map[string]string {
	out := make(map[string]string, len(c.def.Fields))
	for _, f := range c.def.Fields {
		if v, ok := c.pending[f.Key]; ok {
			out[f.Key] = v
		} else if v, ok := c.reference[f.Key]; ok {
			out[f.Key] = v
		}
	}
	return out
}

// enforceExclusion returns a copy of values where, for every exclusion
// pair, a non-zero field forces its sibling to "0". Edits already do this;
// it is repeated here for values that reached pending through Load.
func (c *Controller) enforceExclusion(values map[string]string) map[string]string {
	out := kv.Clone(values)
	for _, p := range c.def.Exclusive {
		switch {
		case isNonZero(out[p.First]):
			out[p.Second] = "0"
		case isNonZero(out[p.Second]):
			out[p.First] = "0"
		}
	}
	return out
}

// args serializes values in declaration order, skipping fields with no value.
func (c *Controller) args(values map[string]string) []string {
	keys := make([]string, 0, len(c.def.Fields))
	for _, f := range c.def.Fields {
		if _, ok := values[f.Key]; ok {
			keys = append(keys, f.Key)
		}
	}
	return kv.SerializeArgs(values, keys)
}

func (c *Controller) notify(level core.NoticeLevel, msg string) {
	if c.notifier != nil {
		c.notifier.Notify(level, c.def.Name, msg)
	}
}

func (c *Controller) render(v View) {
	if c.renderer != nil {
		c.renderer.Render(v)
	}
}
