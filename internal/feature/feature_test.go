package feature

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sanverite/tweakd/internal/core"
	"github.com/sanverite/tweakd/internal/executor"
	"github.com/sanverite/tweakd/internal/logging"
	"github.com/sanverite/tweakd/internal/logrelay"
)

const (
	featScript    = "/m/features.sh"
	persistScript = "/m/persist.sh"
)

const schemaJSON = `{
  "features_1280": [
    {"key": "wireguard", "title": "WireGuard", "type": "binary", "save": true},
    {"key": "superfloppy", "title": "Superfloppy", "type": "select", "experimental": true, "save": true,
     "options": [
       {"val": 1, "label": "Read-only"},
       {"val": "2", "label": "Read-write", "experimental": true}
     ]},
    {"key": "ntfs", "title": "NTFS", "type": "select", "experimental": true,
     "options": [{"val": "1", "label": "On"}]},
    {"key": "kver", "title": "Kernel build", "type": "info", "save": true}
  ],
  "features_trinket": [
    {"key": "wireguard", "title": "WireGuard", "type": "binary"}
  ]
}`

func mustSchema(t *testing.T) Schema {
	t.Helper()
	s, err := ParseSchema([]byte(schemaJSON))
	require.NoError(t, err)
	return s
}

func featureCmd(action string, args ...string) string {
	return executor.Command(featScript, action, args...)
}

func loadedFake(values string) *executor.Fake {
	return executor.NewFake().
		On(featureCmd("unpack"), "- Unpacking boot\nUnpack successful").
		On(featureCmd("read_features"), "noise\n---FEATURES_START---\n"+values+"\n---FEATURES_END---\n").
		On(defaultCmdline, "console=ttyMSM0 wireguard=1 superfloppy=3")
}

func newTestController(t *testing.T, fake *executor.Fake, opts Options) *Controller {
	t.Helper()
	opts.Script = featScript
	if opts.PersistScript == "" {
		opts.PersistScript = persistScript
	}
	opts.Device = Device1280
	opts.Schema = mustSchema(t)
	opts.Logger = logging.Discard()
	return NewController(fake, opts)
}

func itemByKey(v View, key string) (ItemView, bool) {
	for _, it := range v.Items {
		if it.Key == key {
			return it, true
		}
	}
	return ItemView{}, false
}

func TestParseSchema(t *testing.T) {
	s := mustSchema(t)
	require.Len(t, s.For(Device1280), 4)
	require.Len(t, s.For(DeviceTrinket), 1)
	require.Equal(t, Value("1"), s.Generic[1].Options[0].Val)

	_, err := ParseSchema([]byte(`{"features_1280":[{"key":"x","type":"slider"}]}`))
	require.Error(t, err)
	_, err = ParseSchema([]byte(`{"features_1280":[{"key":"x","type":"select","options":[{"val":"0"}]}]}`))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "features.json")
	require.NoError(t, os.WriteFile(path, []byte(schemaJSON), 0o644))
	loaded, err := LoadSchema(path)
	require.NoError(t, err)
	require.Equal(t, s, loaded)
}

func TestLoad_UnpackFailureStops(t *testing.T) {
	fake := executor.NewFake().On(featureCmd("unpack"), "magiskboot: error")
	c := newTestController(t, fake, Options{})

	err := c.Load(context.Background())
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, StageUnpack, le.Stage)
	require.False(t, fake.Called(featureCmd("read_features")))

	v := c.View()
	require.Equal(t, StageUnpack, v.ErrorStage)
	require.Contains(t, v.Error, "magiskboot: error")
	require.Empty(t, v.Items)
}

func TestLoad_MissingMarkers(t *testing.T) {
	fake := executor.NewFake().
		On(featureCmd("unpack"), "Unpack successful").
		On(featureCmd("read_features"), "wireguard=1")
	c := newTestController(t, fake, Options{})

	var le *LoadError
	require.True(t, errors.As(c.Load(context.Background()), &le))
	require.Equal(t, StageFeatures, le.Stage)
	require.Equal(t, "wireguard=1", le.Output)
}

func TestLoad_CmdlineFailureTolerated(t *testing.T) {
	fake := loadedFake("wireguard=1").Fail(defaultCmdline)
	c := newTestController(t, fake, Options{})

	require.NoError(t, c.Load(context.Background()))
	it, ok := itemByKey(c.View(), "wireguard")
	require.True(t, ok)
	require.False(t, it.RebootPending)
	require.Empty(t, it.Live)
}

func TestView_ExperimentalSuppression(t *testing.T) {
	c := newTestController(t, loadedFake("wireguard=1 superfloppy=2 ntfs=0 kver=5"), Options{})
	require.NoError(t, c.Load(context.Background()))

	v := c.View()
	sf, ok := itemByKey(v, "superfloppy")
	require.True(t, ok, "enabled experimental feature stays visible")
	_, ok = itemByKey(v, "ntfs")
	require.False(t, ok, "disabled experimental feature is hidden")

	// Synthetic disabled option first; experimental option kept because selected.
	require.Equal(t, []string{"0", "1", "2"}, optionVals(sf))
	require.True(t, sf.Options[2].Selected)

	c.SetToggles(Toggles{ShowExperimental: true})
	_, ok = itemByKey(c.View(), "ntfs")
	require.True(t, ok)
}

func TestView_ExperimentalOptionHiddenUnlessSelected(t *testing.T) {
	c := newTestController(t, loadedFake("superfloppy=1"), Options{})
	require.NoError(t, c.Load(context.Background()))

	sf, ok := itemByKey(c.View(), "superfloppy")
	require.True(t, ok)
	require.Equal(t, []string{"0", "1"}, optionVals(sf))
}

func TestView_RebootMismatch(t *testing.T) {
	c := newTestController(t, loadedFake("wireguard=1 superfloppy=1"), Options{})
	require.NoError(t, c.Load(context.Background()))
	v := c.View()

	wg, _ := itemByKey(v, "wireguard")
	require.Equal(t, "1", wg.Live)
	require.False(t, wg.RebootPending)

	sf, _ := itemByKey(v, "superfloppy")
	require.Equal(t, "3", sf.Live)
	require.True(t, sf.RebootPending)
}

func TestLiveValue(t *testing.T) {
	v, ok := LiveValue("a=1 foo=3 bar", "foo")
	require.True(t, ok)
	require.Equal(t, "3", v)

	_, ok = LiveValue("xfoo=3", "foo")
	require.False(t, ok)
	_, ok = LiveValue("foo=abc", "foo")
	require.False(t, ok)
	_, ok = LiveValue("", "foo")
	require.False(t, ok)
	_, ok = LiveValue("androidboot.foo=3", "foo")
	require.False(t, ok)

	require.Equal(t,
		map[string]string{"wireguard": "1", "androidboot.mode": "2"},
		ParseCmdline("console=ttyMSM0 wireguard=1 androidboot.mode=2 wireguard=0"))
}

func TestView_InfoItems(t *testing.T) {
	c := newTestController(t, loadedFake("kver=5"), Options{})
	require.NoError(t, c.Load(context.Background()))

	kv, ok := itemByKey(c.View(), "kver")
	require.True(t, ok)
	require.True(t, kv.ReadOnly)
	require.False(t, kv.Control)
	require.ErrorIs(t, c.SetPending("kver", "6"), ErrReadOnly)

	c.SetToggles(Toggles{AllowReadOnlyPatch: true})
	kv, _ = itemByKey(c.View(), "kver")
	require.True(t, kv.Control)
	require.NoError(t, c.SetPending("kver", "6"))
}

func TestSetPending(t *testing.T) {
	c := newTestController(t, loadedFake("wireguard=1"), Options{})
	require.ErrorIs(t, c.SetPending("wireguard", "0"), ErrNotLoaded)
	require.NoError(t, c.Load(context.Background()))

	require.ErrorIs(t, c.SetPending("nope", "1"), ErrUnknownKey)
	require.ErrorIs(t, c.SetPending("wireguard", "2"), ErrBadValue)
	require.ErrorIs(t, c.SetPending("superfloppy", "9"), ErrBadValue)

	require.NoError(t, c.SetPending("wireguard", "0"))
	require.NoError(t, c.SetPending("superfloppy", "2"))
	require.Equal(t, map[string]string{"wireguard": "0", "superfloppy": "2"}, c.Pending())

	// Choosing the current value drops the change.
	require.NoError(t, c.SetPending("wireguard", "1"))
	require.Equal(t, map[string]string{"superfloppy": "2"}, c.Pending())

	c.ClearPending()
	require.Empty(t, c.Pending())
}

func TestApplyPatch_SuccessPersistsAndReloads(t *testing.T) {
	state := core.NewState()
	logPath := filepath.Join(t.TempDir(), "patch.log")
	console := logrelay.NewBuffer()
	fake := loadedFake("wireguard=1 superfloppy=0 kver=5")
	c := newTestController(t, fake, Options{
		State:   state,
		Console: console,
		Relay:   logrelay.New(logPath, 5*time.Millisecond, console),
	})
	require.NoError(t, c.Load(context.Background()))
	c.SetToggles(Toggles{AllowReadOnlyPatch: true})
	require.NoError(t, c.SetPending("wireguard", "0"))
	require.NoError(t, c.SetPending("superfloppy", "1"))
	require.NoError(t, c.SetPending("kver", "6"))

	patchCmd := featureCmd("patch", "wireguard=0", "superfloppy=1", "kver=6")
	fake.Handler = func(ctx context.Context, command string) (string, error) {
		if command == patchCmd {
			if err := os.WriteFile(logPath, []byte("writing image\n"), 0o644); err != nil {
				return "", err
			}
			time.Sleep(20 * time.Millisecond)
			fake.On(featureCmd("read_features"), "---FEATURES_START--- wireguard=0 superfloppy=1 kver=6 ---FEATURES_END---")
			return "Success", nil
		}
		return "", executor.ErrNoResult
	}
	fake.On(executor.Command(persistScript, "remove", "wireguard"), "removed")
	fake.Fail(executor.Command(persistScript, "save", "superfloppy", "1", "select"))

	var seen map[string]string
	err := c.ApplyPatch(context.Background(), ConfirmFunc(func(ctx context.Context, changes map[string]string) (bool, error) {
		seen = changes
		require.Equal(t, core.PhaseConfirming, state.PatchPhase())
		return true, nil
	}))
	require.NoError(t, err)
	require.Equal(t, map[string]string{"wireguard": "0", "superfloppy": "1", "kver": "6"}, seen)

	require.Equal(t, core.PhaseDone, state.PatchPhase())
	require.Empty(t, c.Pending())
	require.Equal(t, "0", c.Current()["wireguard"])

	// info items are patched but never persisted.
	for _, call := range fake.Calls() {
		require.NotContains(t, call, `"kver"`)
	}
	out := console.String()
	require.Contains(t, out, "writing image")
	require.Contains(t, out, "Persisted wireguard=0")
	require.Contains(t, out, "Failed to persist superfloppy")
}

func TestApplyPatch_FailureKeepsPending(t *testing.T) {
	state := core.NewState()
	fake := loadedFake("wireguard=1")
	c := newTestController(t, fake, Options{State: state})
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.SetPending("wireguard", "0"))

	fake.On(featureCmd("patch", "wireguard=0"), "Error: signature mismatch")
	err := c.ApplyPatch(context.Background(), Confirmed(true))
	require.ErrorIs(t, err, ErrPatchFailed)
	require.Equal(t, core.PhaseFailed, state.PatchPhase())
	require.Equal(t, map[string]string{"wireguard": "0"}, c.Pending())
	require.Contains(t, c.Console().String(), "signature mismatch")

	snap := state.GetSnapshot()
	require.Equal(t, core.NoticeError, snap.Notices[len(snap.Notices)-1].Level)

	// Retry after the backend recovers.
	fake.On(featureCmd("patch", "wireguard=0"), "Success")
	require.NoError(t, c.ApplyPatch(context.Background(), Confirmed(true)))
	require.Equal(t, core.PhaseDone, state.PatchPhase())
}

func TestApplyPatch_DeclinedAndPreconditions(t *testing.T) {
	state := core.NewState()
	fake := loadedFake("wireguard=1")
	c := newTestController(t, fake, Options{State: state})

	require.ErrorIs(t, c.ApplyPatch(context.Background(), Confirmed(true)), ErrNotLoaded)
	require.NoError(t, c.Load(context.Background()))
	require.ErrorIs(t, c.ApplyPatch(context.Background(), Confirmed(true)), ErrNoChanges)

	require.NoError(t, c.SetPending("wireguard", "0"))
	require.ErrorIs(t, c.ApplyPatch(context.Background(), Confirmed(false)), ErrNotConfirmed)
	require.ErrorIs(t, c.ApplyPatch(context.Background(), nil), ErrNotConfirmed)
	require.Equal(t, core.PhaseIdle, state.PatchPhase())
	require.False(t, fake.Called(featureCmd("patch", "wireguard=0")))
	require.Equal(t, map[string]string{"wireguard": "0"}, c.Pending())
}

func TestLoad_FailedReloadBlocksPatch(t *testing.T) {
	fake := loadedFake("wireguard=0")
	c := newTestController(t, fake, Options{})
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.SetPending("wireguard", "1"))

	fake.On(featureCmd("unpack"), "mount failed")
	var le *LoadError
	require.True(t, errors.As(c.Load(context.Background()), &le))
	require.Equal(t, StageUnpack, le.Stage)

	v := c.View()
	require.False(t, v.Loaded)
	require.Equal(t, "mount failed", v.Error)
	require.Empty(t, c.Pending())

	require.ErrorIs(t, c.SetPending("wireguard", "1"), ErrNotLoaded)
	require.ErrorIs(t, c.ApplyPatch(context.Background(), Confirmed(true)), ErrNotLoaded)
	require.False(t, fake.Called(featureCmd("patch", "wireguard=1")))

	// A later successful load recovers.
	fake.On(featureCmd("unpack"), "Unpack successful")
	require.NoError(t, c.Load(context.Background()))
	require.True(t, c.View().Loaded)
	require.NoError(t, c.SetPending("wireguard", "1"))
}

func optionVals(it ItemView) []string {
	var out []string
	for _, o := range it.Options {
		out = append(out, o.Val)
	}
	return out
}
