package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sanverite/tweakd/internal/api"
	"github.com/sanverite/tweakd/internal/probe"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var skipLoad bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API for the WebView panel",
		Long: `serve loads every tweak, probes availability, and serves the /v1 API
until SIGINT or SIGTERM. Load and probe failures are logged; the affected
tweaks stay unloaded until the panel retries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServe(cmd.Context(), a, skipLoad)
		},
	}
	cmd.Flags().BoolVar(&skipLoad, "no-load", false, "Skip loading tweaks and probing at startup")
	return cmd
}

func runServe(ctx context.Context, a *app, skipLoad bool) error {
	logger := a.logger

	if !skipLoad {
		var probers []probe.Prober
		for _, name := range a.tweaks.Names() {
			if c, err := a.tweaks.Controller(name); err == nil {
				probers = append(probers, c)
			}
		}
		if err := probe.ProbeAll(ctx, a.state, probers, probe.Config{}); err != nil {
			logger.Warn("availability probe failed", "error", err)
		}
		if err := a.tweaks.LoadAll(ctx); err != nil {
			logger.Warn("initial load failed", "error", err)
		}
	}

	srv := api.NewServer(api.Deps{
		State:    a.state,
		Tweaks:   a.tweaks,
		Features: a.features,
	}, api.ServerOptions{
		Addr:            a.cfg.API.Listen,
		ReadTimeout:     a.cfg.API.ReadTimeout,
		WriteTimeout:    a.cfg.API.WriteTimeout,
		ShutdownTimeout: a.cfg.API.ShutdownTimeout,
		PatchTimeout:    a.cfg.Features.PatchTimeout,
		Logger:          logger,
	})
	srv.Start()

	// Handle shutdown signals
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("graceful shutdown error", "error", err)
		return err
	}
	logger.Info("stopped")
	return nil
}
