package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sanverite/tweakd/internal/config"
	"github.com/sanverite/tweakd/internal/core"
	"github.com/sanverite/tweakd/internal/executor"
	"github.com/sanverite/tweakd/internal/feature"
	"github.com/sanverite/tweakd/internal/logging"
	"github.com/sanverite/tweakd/internal/logrelay"
	"github.com/sanverite/tweakd/internal/tweak"
)

// newExecutor builds the command executor. Tests replace it with a fake.
var newExecutor = func(cfg *config.Config, logger *slog.Logger) executor.Executor {
	return executor.NewShell(executor.ShellOptions{
		Shell:   cfg.Exec.Shell,
		Prefix:  cfg.Exec.Prefix,
		Timeout: cfg.Exec.Timeout,
		Logger:  logger,
	})
}

// app is the wired engine shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
	state    *core.State
	tweaks   *tweak.Registry
	features *feature.Controller
}

func newApp(cfg *config.Config, renderer tweak.Renderer) (*app, error) {
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	exec := newExecutor(cfg, logger)
	state := core.NewState()

	reg, err := tweak.Build(cfg.Definitions(), cfg.PresetTable(), exec, tweak.Options{
		Notifier: state,
		Renderer: renderer,
		Logger:   logger,
	})
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	schema, err := cfg.FeatureSchema()
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	console := logrelay.NewBuffer()
	var relay *logrelay.Relay
	logPath := cfg.Path(cfg.Features.Log)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		logger.Warn("patch log unavailable, progress will not stream", "path", logPath, "error", err)
	} else {
		relay = logrelay.New(logPath, cfg.Relay.Interval, console)
	}
	features := feature.NewController(exec, feature.Options{
		Script:         cfg.Path(cfg.Features.Script),
		PersistScript:  cfg.Path(cfg.Features.PersistScript),
		CmdlineCommand: cfg.Features.CmdlineCommand,
		Device:         cfg.Features.Device,
		Schema:         schema,
		State:          state,
		Console:        console,
		Relay:          relay,
		Logger:         logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		state:    state,
		tweaks:   reg,
		features: features,
	}, nil
}

func (a *app) Close() error { return a.closeLog() }

// printNotices writes notices raised since the app started, used by
// one-shot commands that have no WebView to show toasts.
func (a *app) printNotices(w io.Writer) {
	for _, n := range a.state.GetSnapshot().Notices {
		fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Message)
	}
}
