package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sanverite/tweakd/internal/feature"
	"github.com/sanverite/tweakd/internal/tweak"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "127.0.0.1:8787", cfg.API.Listen)
	require.Equal(t, 200*time.Millisecond, cfg.Relay.Interval)
	require.Equal(t, 30*time.Second, cfg.Exec.Timeout)
	require.Equal(t, feature.Device1280, cfg.Features.Device)

	var names []string
	for _, tc := range cfg.Tweaks {
		names = append(names, tc.Name)
	}
	require.Equal(t, []string{"zram", "memory", "undervolt", "display", "charging", "sound", "io_scheduler"}, names)
	require.Contains(t, cfg.Presets, tweak.DefaultPreset)
}

func TestDefinitions(t *testing.T) {
	cfg := Default()
	defs := cfg.Definitions()
	require.Len(t, defs, len(cfg.Tweaks))

	var memory tweak.Definition
	for _, d := range defs {
		require.NoError(t, d.Validate(), d.Name)
		if d.Name == "memory" {
			memory = d
		}
	}
	require.Equal(t, "/data/adb/modules/kernel_tweaks/common/memory.sh", memory.Script)
	require.Equal(t, []tweak.ExclusionPair{
		{First: "dirty_ratio", Second: "dirty_bytes"},
		{First: "dirty_background_ratio", Second: "dirty_background_bytes"},
	}, memory.Exclusive)

	sw, ok := memory.Field("swappiness")
	require.True(t, ok)
	require.Equal(t, int64(0), *sw.Min)
	require.Equal(t, int64(200), *sw.Max)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
module_dir: /tmp/mod
api:
  listen: 0.0.0.0:9000
features:
  device: trinket
presets:
  gaming:
    memory:
      swappiness: "10"
`))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.API.Listen)
	require.Equal(t, feature.DeviceTrinket, cfg.Features.Device)
	require.Equal(t, "/tmp/mod/common/features.sh", cfg.Path(cfg.Features.Script))
	require.Equal(t, "/abs/x.sh", cfg.Path("/abs/x.sh"))

	// Untouched sections keep their defaults; presets merge by name.
	require.Equal(t, "sh", cfg.Exec.Shell)
	require.Contains(t, cfg.Presets, tweak.DefaultPreset)
	require.Equal(t, "10", cfg.PresetTable()["gaming"]["memory"]["swappiness"])
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad listen":     "api:\n  listen: nope\n",
		"bad device":     "features:\n  device: pixel\n",
		"bad log level":  "log:\n  level: loud\n",
		"unknown tweak":  "presets:\n  x:\n    cpu:\n      a: \"1\"\n",
		"min above max":  "tweaks:\n  - name: a\n    script: a.sh\n    fields:\n      - key: k\n        min: 5\n        max: 1\n",
		"duplicate name": "tweaks:\n  - name: a\n    script: a.sh\n    fields: [{key: k}]\n  - name: a\n    script: b.sh\n    fields: [{key: k}]\n",
		"no fields":      "tweaks:\n  - name: a\n    script: a.sh\n",
		"not yaml":       "tweaks: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "tweakd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("exec:\n  prefix: su -c\n  timeout: 5s\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "su -c", cfg.Exec.Prefix)
	require.Equal(t, 5*time.Second, cfg.Exec.Timeout)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestFeatureSchema(t *testing.T) {
	cfg := Default()
	s, err := cfg.FeatureSchema()
	require.NoError(t, err)
	require.NotEmpty(t, s.For(feature.Device1280))
	require.NotEmpty(t, s.For(feature.DeviceTrinket))

	cfg.Features.Schema = filepath.Join(t.TempDir(), "missing.json")
	_, err = cfg.FeatureSchema()
	require.Error(t, err)
}
