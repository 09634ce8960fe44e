package tweak

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sanverite/tweakd/internal/executor"
)

var (
	// ErrDuplicateTweak is returned when a name is registered twice.
	ErrDuplicateTweak = errors.New("tweak already registered")
	// ErrUnknownTweak is returned for lookups of unregistered names.
	ErrUnknownTweak = errors.New("unknown tweak")
	// ErrUnknownPreset is returned for lookups of undeclared presets.
	ErrUnknownPreset = errors.New("unknown preset")
)

// DefaultPreset names the preset whose values are the lowest-precedence
// fallback for every tweak.
const DefaultPreset = "default"

// Descriptor is the capability surface a tweak exposes to bulk operations
// such as presets and import/export.
type Descriptor interface {
	Name() string
	State() map[string]string
	SetState(partial map[string]string) error
	View() View
	Render()
	Save(ctx context.Context) error
	Apply(ctx context.Context) error
}

// Preset maps tweak name to field values.
type Preset map[string]map[string]string

// Registry maps tweak names to descriptors for the lifetime of the process.
// Entries are never removed.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	items   map[string]Descriptor
	presets map[string]Preset
}

// NewRegistry returns an empty registry holding presets.
func NewRegistry(presets map[string]Preset) *Registry {
	if presets == nil {
		presets = make(map[string]Preset)
	}
	return &Registry{
		items:   make(map[string]Descriptor),
		presets: presets,
	}
}

// Register adds d. Registration does not depend on backend availability.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[d.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTweak, d.Name())
	}
	r.items[d.Name()] = d
	r.order = append(r.order, d.Name())
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[name]
	return d, ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.items[n])
	}
	return out
}

// PresetNames returns declared preset names, sorted.
func (r *Registry) PresetNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.presets))
	for n := range r.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset merges a preset into the pending state of every tweak it
// names. Tweaks the preset names but the registry lacks are skipped and
// returned. Nothing is saved or applied.
func (r *Registry) ApplyPreset(name string) (skipped []string, err error) {
	r.mu.RLock()
	p, ok := r.presets[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return r.Import(p)
}

// Export returns the effective pending state of every registered tweak.
func (r *Registry) Export() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, d := range r.Descriptors() {
		out[d.Name()] = d.State()
	}
	return out
}

// Import merges states into the registered tweaks via SetState. Unknown
// tweak names are skipped and returned in sorted order.
func (r *Registry) Import(states map[string]map[string]string) (skipped []string, err error) {
	var errs []error
	for name, state := range states {
		d, ok := r.Get(name)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		if err := d.SetState(state); err != nil {
			errs = append(errs, err)
		}
	}
	sort.Strings(skipped)
	return skipped, errors.Join(errs...)
}

// LoadAll loads every registered tweak that supports loading. Failures are
// collected; one tweak failing does not stop the rest.
func (r *Registry) LoadAll(ctx context.Context) error {
	var errs []error
	for _, d := range r.Descriptors() {
		l, ok := d.(interface{ Load(context.Context) error })
		if !ok {
			continue
		}
		if err := l.Load(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build constructs one controller per definition and registers it. The
// default preset supplies each controller's fallback values.
func Build(defs []Definition, presets map[string]Preset, exec executor.Executor, opts Options) (*Registry, error) {
	reg := NewRegistry(presets)
	defaults := reg.presets[DefaultPreset]
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("tweak definition: %w", err)
		}
		o := opts
		o.Defaults = defaults[def.Name]
		if err := reg.Register(NewController(def, NewBackend(exec, def.Script), o)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Controller returns the concrete controller registered under name.
func (r *Registry) Controller(name string) (*Controller, error) {
	d, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTweak, name)
	}
	c, ok := d.(*Controller)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a controller", ErrUnknownTweak, name)
	}
	return c, nil
}
