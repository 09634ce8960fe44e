package feature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sanverite/tweakd/internal/core"
	"github.com/sanverite/tweakd/internal/executor"
	"github.com/sanverite/tweakd/internal/kv"
	"github.com/sanverite/tweakd/internal/logrelay"
)

// Backend protocol markers, matched as exact substrings.
const (
	unpackMarker   = "Unpack successful"
	featuresStart  = "---FEATURES_START---"
	featuresEnd    = "---FEATURES_END---"
	patchSuccess   = "Success"
	defaultCmdline = "cat /proc/cmdline"
)

// Stage names reported in a LoadError.
const (
	StageUnpack   = "unpack"
	StageFeatures = "read_features"
)

var (
	ErrBusy         = errors.New("a feature operation is in progress")
	ErrNotLoaded    = errors.New("features not loaded")
	ErrNoChanges    = errors.New("no pending feature changes")
	ErrNotConfirmed = errors.New("patch not confirmed")
	ErrPatchFailed  = errors.New("patch failed")
	ErrUnknownKey   = errors.New("unknown feature")
	ErrReadOnly     = errors.New("feature is read-only")
	ErrBadValue     = errors.New("value not accepted by feature")
)

// LoadError is a protocol failure during Load. Output carries the raw
// backend output for diagnostics.
type LoadError struct {
	Stage  string
	Output string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("feature %s failed: %s", e.Stage, e.Output)
}

// Confirmer asks the user to confirm a patch before it runs.
type Confirmer interface {
	Confirm(ctx context.Context, changes map[string]string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, changes map[string]string) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, changes map[string]string) (bool, error) {
	return f(ctx, changes)
}

// Confirmed returns a Confirmer with a fixed answer, for callers that
// collected confirmation up front (an HTTP body flag, a --yes switch).
func Confirmed(answer bool) Confirmer {
	return ConfirmFunc(func(context.Context, map[string]string) (bool, error) { return answer, nil })
}

// Toggles are the panel-wide switches that affect feature rendering.
type Toggles struct {
	ShowExperimental   bool
	AllowReadOnlyPatch bool
}

// Options configures a Controller.
type Options struct {
	// Script implements unpack, read_features and patch.
	Script string
	// PersistScript implements "save <key> <val> <type>" and "remove <key>".
	PersistScript string
	// CmdlineCommand prints the live kernel command line.
	CmdlineCommand string
	// Device selects the schema variant ("trinket" or "1280").
	Device string
	Schema Schema

	// State tracks the patch phase and receives notices.
	State *core.State
	// Console is the patch modal: progress lines and relayed backend log.
	Console *logrelay.Buffer
	// Relay, when set, streams the backend log file during patch.
	Relay  *logrelay.Relay
	Logger *slog.Logger
}

// Controller drives the feature patch backend.
type Controller struct {
	exec executor.Executor
	opts Options

	op sync.Mutex

	mu      sync.Mutex
	loaded  bool
	loadErr *LoadError
	current map[string]string
	live    map[string]string
	items   []Item
	pending map[string]string
	toggles Toggles
}

// NewController builds a feature controller.
func NewController(exec executor.Executor, opts Options) *Controller {
	if opts.CmdlineCommand == "" {
		opts.CmdlineCommand = defaultCmdline
	}
	if opts.State == nil {
		opts.State = core.NewState()
	}
	if opts.Console == nil {
		opts.Console = logrelay.NewBuffer()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("component", "features")
	return &Controller{
		exec:    exec,
		opts:    opts,
		current: make(map[string]string),
		pending: make(map[string]string),
	}
}

// Console returns the patch modal buffer.
func (c *Controller) Console() *logrelay.Buffer { return c.opts.Console }

// Load unpacks the boot image, reads feature values, and fetches the live
// kernel command line. A protocol failure stops the sequence: read_features
// is never attempted after a failed unpack. After a failure the controller
// is unloaded and pending changes are dropped, so nothing can be patched
// until a later Load succeeds.
func (c *Controller) Load(ctx context.Context) error {
	if !c.op.TryLock() {
		return ErrBusy
	}
	defer c.op.Unlock()
	return c.load(ctx)
}

func (c *Controller) load(ctx context.Context) error {
	out, err := c.exec.Exec(ctx, executor.Command(c.opts.Script, "unpack"))
	if err != nil || !strings.Contains(out, unpackMarker) {
		return c.failLoad(StageUnpack, out, err)
	}

	out, err = c.exec.Exec(ctx, executor.Command(c.opts.Script, "read_features"))
	if err != nil {
		return c.failLoad(StageFeatures, out, err)
	}
	block, ok := between(out, featuresStart, featuresEnd)
	if !ok {
		return c.failLoad(StageFeatures, out, nil)
	}
	values := kv.ParseTokens(block)

	cmdline, err := c.exec.Exec(ctx, c.opts.CmdlineCommand)
	if err != nil {
		c.opts.Logger.Warn("cmdline unavailable, reboot detection disabled", "error", err)
		cmdline = ""
	}

	c.mu.Lock()
	c.loaded = true
	c.loadErr = nil
	c.current = values
	c.live = ParseCmdline(cmdline)
	c.items = c.opts.Schema.For(c.opts.Device)
	c.mu.Unlock()

	c.opts.Logger.Info("features loaded", "count", len(values), "device", c.opts.Device)
	return nil
}

func (c *Controller) failLoad(stage, out string, err error) error {
	msg := out
	if err != nil {
		msg = strings.TrimSpace(out + " " + err.Error())
	}
	le := &LoadError{Stage: stage, Output: msg}
	c.mu.Lock()
	c.loaded = false
	c.loadErr = le
	c.pending = make(map[string]string)
	c.mu.Unlock()
	c.opts.Logger.Warn("feature load failed", "stage", stage, "output", msg)
	return le
}

// between returns the text strictly between the first start marker and the
// following end marker.
func between(s, start, end string) (string, bool) {
	_, rest, ok := strings.Cut(s, start)
	if !ok {
		return "", false
	}
	block, _, ok := strings.Cut(rest, end)
	return block, ok
}

// SetToggles replaces the panel-wide rendering switches.
func (c *Controller) SetToggles(t Toggles) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toggles = t
}

// Toggles returns the panel-wide rendering switches.
func (c *Controller) Toggles() Toggles {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toggles
}

// SetPending records a desired value for a feature. Choosing the current
// value drops the pending entry.
func (c *Controller) SetPending(key, val string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return ErrNotLoaded
	}
	item, ok := c.itemLocked(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if item.Type == TypeInfo && !c.toggles.AllowReadOnlyPatch {
		return fmt.Errorf("%w: %s", ErrReadOnly, key)
	}
	val = strings.TrimSpace(val)
	if !item.accepts(val) {
		return fmt.Errorf("%w: %s=%q", ErrBadValue, key, val)
	}
	if val == c.currentLocked(key) {
		delete(c.pending, key)
		return nil
	}
	c.pending[key] = val
	return nil
}

// ClearPending drops all pending changes.
func (c *Controller) ClearPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[string]string)
}

// Pending returns a copy of the pending changes.
func (c *Controller) Pending() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return kv.Clone(c.pending)
}

// Current returns a copy of the values read from the patched image.
func (c *Controller) Current() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return kv.Clone(c.current)
}

// ApplyPatch patches every pending change into the kernel image after
// confirm agrees, then persists the changed features marked save:true.
//
// Persistence is best-effort: a failing per-key call is written to the
// console and skipped without undoing the patch. On patch failure the
// pending changes stay in place for a retry; on success they are cleared
// and the feature list is reloaded.
func (c *Controller) ApplyPatch(ctx context.Context, confirm Confirmer) error {
	if !c.op.TryLock() {
		return ErrBusy
	}
	defer c.op.Unlock()

	c.mu.Lock()
	loaded := c.loaded
	changes := kv.Clone(c.pending)
	keys := c.orderedKeysLocked(changes)
	c.mu.Unlock()

	if !loaded {
		return ErrNotLoaded
	}
	if len(changes) == 0 {
		return ErrNoChanges
	}

	state := c.opts.State
	opID := uuid.NewString()
	if err := state.BeginPatch(opID, changes); err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	log := c.opts.Logger.With("op", opID)

	var (
		ok  bool
		err error
	)
	if confirm != nil {
		ok, err = confirm.Confirm(ctx, changes)
	}
	if err != nil || !ok {
		_ = state.SetPatchPhase(core.PhaseIdle, "")
		log.Info("patch declined", "error", err)
		return ErrNotConfirmed
	}

	_ = state.SetPatchPhase(core.PhasePatching, "")
	console := c.opts.Console
	console.Reset()
	args := kv.SerializeArgs(changes, keys)
	console.Line("Patching: " + strings.Join(args, " "))

	var out string
	patch := func(ctx context.Context) error {
		var err error
		out, err = c.exec.Exec(ctx, executor.Command(c.opts.Script, "patch", args...))
		return err
	}
	if c.opts.Relay != nil {
		err = logrelay.Run(ctx, c.opts.Relay, patch)
	} else {
		err = patch(ctx)
	}

	if err != nil || !strings.Contains(out, patchSuccess) {
		msg := strings.TrimSpace(out)
		if err != nil {
			msg = strings.TrimSpace(msg + " " + err.Error())
		}
		console.Line("Patch failed: " + msg)
		_ = state.SetPatchPhase(core.PhaseFailed, msg)
		state.Notify(core.NoticeError, "features", "Patch failed: "+msg)
		patchTotal.WithLabelValues("failed").Inc()
		log.Warn("patch failed", "output", msg)
		return fmt.Errorf("%w: %s", ErrPatchFailed, msg)
	}
	patchTotal.WithLabelValues("ok").Inc()
	console.Line("Patch applied")

	_ = state.SetPatchPhase(core.PhasePersisting, "")
	c.persist(ctx, log, changes, keys)
	_ = state.SetPatchPhase(core.PhaseDone, "")

	c.mu.Lock()
	c.pending = make(map[string]string)
	c.mu.Unlock()

	state.Notify(core.NoticeSuccess, "features", "Kernel patched; reboot to activate")
	if err := c.load(ctx); err != nil {
		log.Warn("reload after patch failed", "error", err)
	}
	return nil
}

// persist saves or removes each changed feature marked save:true.
// Read-only (info) features are never persisted.
func (c *Controller) persist(ctx context.Context, log *slog.Logger, changes map[string]string, keys []string) {
	if c.opts.PersistScript == "" {
		return
	}
	for _, key := range keys {
		c.mu.Lock()
		item, ok := c.itemLocked(key)
		c.mu.Unlock()
		if !ok || !item.Save || item.Type == TypeInfo {
			continue
		}

		val := changes[key]
		var command string
		if val == Disabled {
			command = executor.Command(c.opts.PersistScript, "remove", key)
		} else {
			command = executor.Command(c.opts.PersistScript, "save", key, val, string(item.Type))
		}
		if _, err := c.exec.Exec(ctx, command); err != nil {
			persistFailures.Inc()
			c.opts.Console.Line(fmt.Sprintf("Failed to persist %s: %v", key, err))
			log.Warn("persist failed", "feature", key, "error", err)
			continue
		}
		c.opts.Console.Line("Persisted " + key + "=" + val)
	}
}

func (c *Controller) itemLocked(key string) (Item, bool) {
	for _, it := range c.items {
		if it.Key == key {
			return it, true
		}
	}
	return Item{}, false
}

func (c *Controller) currentLocked(key string) string {
	if v, ok := c.current[key]; ok && v != "" {
		return v
	}
	return Disabled
}

// orderedKeysLocked returns change keys in schema order; keys outside the
// schema follow, sorted.
func (c *Controller) orderedKeysLocked(changes map[string]string) []string {
	keys := make([]string, 0, len(changes))
	seen := make(map[string]bool, len(changes))
	for _, it := range c.items {
		if _, ok := changes[it.Key]; ok {
			keys = append(keys, it.Key)
			seen[it.Key] = true
		}
	}
	var rest []string
	for k := range changes {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
