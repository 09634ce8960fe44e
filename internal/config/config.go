// Package config loads the daemon configuration: listen address, executor
// settings, the tweak table, presets and the feature patch backend.
//
// The built-in defaults live in default.yaml and are embedded in the
// binary. A user file is decoded on top of them, then the result is
// validated with struct tags and a few cross-field checks.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sanverite/tweakd/internal/feature"
	"github.com/sanverite/tweakd/internal/logging"
	"github.com/sanverite/tweakd/internal/tweak"
)

//go:embed default.yaml
var defaultYAML []byte

//go:embed features.json
var defaultSchema []byte

// Config is the root configuration document.
type Config struct {
	// ModuleDir is the module install directory. Relative script and log
	// paths are resolved against it.
	ModuleDir string `yaml:"module_dir" validate:"required"`

	API      APIConfig      `yaml:"api"`
	Log      logging.Config `yaml:"log"`
	Exec     ExecConfig     `yaml:"exec"`
	Relay    RelayConfig    `yaml:"relay"`
	Features FeatureConfig  `yaml:"features"`

	Tweaks []TweakConfig `yaml:"tweaks" validate:"required,unique=Name,dive"`
	// Presets maps preset name -> tweak name -> field -> value. A preset in
	// the user file replaces the built-in preset of the same name.
	Presets map[string]map[string]map[string]string `yaml:"presets" validate:"required"`
}

// APIConfig configures the local HTTP server.
type APIConfig struct {
	Listen          string        `yaml:"listen" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// ExecConfig configures the shell executor.
type ExecConfig struct {
	Shell   string        `yaml:"shell" validate:"required"`
	Prefix  string        `yaml:"prefix"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// RelayConfig configures the live log relay.
type RelayConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

// FeatureConfig configures the feature patch backend.
type FeatureConfig struct {
	Script        string `yaml:"script" validate:"required"`
	PersistScript string `yaml:"persist_script"`
	// Log is the file the patch script writes progress to.
	Log string `yaml:"log" validate:"required"`
	// Schema is a JSON feature asset. Empty uses the built-in asset.
	Schema         string `yaml:"schema"`
	Device         string `yaml:"device" validate:"oneof=trinket 1280"`
	CmdlineCommand string `yaml:"cmdline_command"`
	// PatchTimeout bounds the whole patch flow, including persistence.
	PatchTimeout time.Duration `yaml:"patch_timeout" validate:"gte=0"`
}

// TweakConfig is one row of the tweak table.
type TweakConfig struct {
	Name      string        `yaml:"name" validate:"required"`
	Title     string        `yaml:"title"`
	Script    string        `yaml:"script" validate:"required"`
	Fields    []FieldConfig `yaml:"fields" validate:"required,unique=Key,dive"`
	Exclusive []Pair        `yaml:"exclusive"`
}

// FieldConfig declares one field and its optional integer bounds.
type FieldConfig struct {
	Key string `yaml:"key" validate:"required"`
	Min *int64 `yaml:"min"`
	Max *int64 `yaml:"max"`
}

// Pair is a mutual-exclusion pair written as a two-element YAML sequence.
type Pair [2]string

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := parse(defaultYAML, &Config{})
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults: %v", err))
	}
	return cfg
}

// Load reads path on top of Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(data, Default())
}

// Parse decodes data on top of Default.
func Parse(data []byte) (*Config, error) {
	return parse(data, Default())
}

func parse(data []byte, base *Config) (*Config, error) {
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	known := make(map[string]TweakConfig, len(c.Tweaks))
	for _, t := range c.Tweaks {
		known[t.Name] = t
		for _, f := range t.Fields {
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				errs = append(errs, fmt.Errorf("tweak %s: field %s: min %d > max %d", t.Name, f.Key, *f.Min, *f.Max))
			}
		}
	}
	if _, ok := c.Presets[tweak.DefaultPreset]; !ok {
		errs = append(errs, fmt.Errorf("preset %q is required", tweak.DefaultPreset))
	}
	for preset, tweaks := range c.Presets {
		for name := range tweaks {
			if _, ok := known[name]; !ok {
				errs = append(errs, fmt.Errorf("preset %s: unknown tweak %q", preset, name))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Path resolves p against ModuleDir. Absolute and empty paths are returned
// unchanged.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ModuleDir, p)
}

// Definitions converts the tweak table, resolving script paths.
func (c *Config) Definitions() []tweak.Definition {
	defs := make([]tweak.Definition, 0, len(c.Tweaks))
	for _, t := range c.Tweaks {
		def := tweak.Definition{
			Name:   t.Name,
			Title:  t.Title,
			Script: c.Path(t.Script),
		}
		for _, f := range t.Fields {
			def.Fields = append(def.Fields, tweak.FieldSpec{Key: f.Key, Min: f.Min, Max: f.Max})
		}
		for _, p := range t.Exclusive {
			def.Exclusive = append(def.Exclusive, tweak.ExclusionPair{First: p[0], Second: p[1]})
		}
		defs = append(defs, def)
	}
	return defs
}

// PresetTable converts the presets for the tweak registry.
func (c *Config) PresetTable() map[string]tweak.Preset {
	out := make(map[string]tweak.Preset, len(c.Presets))
	for name, p := range c.Presets {
		out[name] = tweak.Preset(p)
	}
	return out
}

// FeatureSchema loads the configured feature asset, or the built-in one.
func (c *Config) FeatureSchema() (feature.Schema, error) {
	if c.Features.Schema == "" {
		return feature.ParseSchema(defaultSchema)
	}
	return feature.LoadSchema(c.Path(c.Features.Schema))
}
