package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sanverite/tweakd/internal/core"
	"github.com/sanverite/tweakd/internal/feature"
	"github.com/sanverite/tweakd/internal/tweak"
)

func int64p(v int64) *int64 { return &v }

func zramView() tweak.View {
	return tweak.View{
		Name:         "zram",
		Title:        "ZRAM",
		Loaded:       true,
		Availability: tweak.Available,
		Pending:      true,
		Fields: []tweak.FieldView{
			{Key: "disksize", Value: "2147483648", Current: "1610612736", Saved: "1610612736", Reference: "1610612736", Changed: true},
			{Key: "enabled", Value: "1", Current: "1", Reference: "1", Min: int64p(0), Max: int64p(1)},
		},
		Info: map[string]string{"algorithms": "lz4 zstd"},
	}
}

func TestTweak(t *testing.T) {
	out := Tweak(zramView())
	require.Contains(t, out, "ZRAM")
	require.Contains(t, out, "unsaved changes")
	require.Contains(t, out, "2147483648")
	require.Contains(t, out, "enabled [0..1]")
	require.Contains(t, out, "algorithms: lz4 zstd")

	v := zramView()
	v.Loaded = false
	require.Contains(t, Tweak(v), "not loaded")
}

func TestTweaks_HidesUnavailable(t *testing.T) {
	hidden := tweak.View{Name: "undervolt", Title: "CPU undervolt", Availability: tweak.Unavailable}
	out := Tweaks([]tweak.View{zramView(), hidden})
	require.Contains(t, out, "ZRAM")
	require.NotContains(t, out, "CPU undervolt")
}

func TestFeatures(t *testing.T) {
	v := feature.View{
		Loaded: true,
		Device: feature.Device1280,
		Items: []feature.ItemView{
			{Key: "wireguard", Title: "WireGuard", Type: feature.TypeBinary, Current: "1", Enabled: true, Live: "0", RebootPending: true},
			{Key: "superfloppy", Title: "Superfloppy", Type: feature.TypeSelect, Current: "1", Enabled: true, Experimental: true,
				Options: []feature.OptionView{{Val: "0", Label: "Disabled"}, {Val: "1", Label: "Read-only", Selected: true}}},
			{Key: "kver", Title: "Kernel build", Type: feature.TypeInfo, Current: "5", ReadOnly: true, Pending: "6"},
		},
		Pending: map[string]string{"kver": "6"},
	}
	out := Features(v)
	require.Contains(t, out, "Kernel features (1280)")
	require.Contains(t, out, "reboot to activate, running 0")
	require.Contains(t, out, "Read-only")
	require.Contains(t, out, "experimental")
	require.Contains(t, out, "→ 6")
	require.Contains(t, out, "1 pending change(s)")

	errView := feature.View{ErrorStage: feature.StageUnpack, Error: "magiskboot: error"}
	out = Features(errView)
	require.Contains(t, out, "Feature unpack failed")
	require.Contains(t, out, "magiskboot: error")

	require.Contains(t, Features(feature.View{}), "not loaded")
}

func TestNotices(t *testing.T) {
	out := Notices([]core.Notice{
		{Level: core.NoticeSuccess, Source: "zram", Message: "Saved"},
		{Level: core.NoticeError, Source: "features", Message: "Patch failed"},
	})
	require.Contains(t, out, "[success] zram: Saved")
	require.Contains(t, out, "[error] features: Patch failed")
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	var r tweak.Renderer = w
	r.Render(zramView())
	require.Contains(t, buf.String(), "ZRAM")
}
