package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sanverite/tweakd/internal/api"
	"github.com/sanverite/tweakd/internal/render"
	"github.com/sanverite/tweakd/internal/tweak"
)

func newPresetCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "List and apply tweak presets",
	}
	cmd.AddCommand(newPresetListCmd(opts), newPresetApplyCmd(opts))
	return cmd
}

func newPresetListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List preset names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			names := tweak.NewRegistry(cfg.PresetTable()).PresetNames()
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), names)
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newPresetApplyCmd(opts *globalOptions) *cobra.Command {
	var save, apply bool
	cmd := &cobra.Command{
		Use:   "apply <preset>",
		Short: "Merge a preset into every tweak it names",
		Long: `apply loads every tweak, merges the preset into pending state and, with
--save or --apply, runs that action on each tweak the preset touched.
Tweaks the preset names but this device lacks are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTweaks(cmd, opts, nil, func(a *app) error {
				skipped, err := a.tweaks.ApplyPreset(args[0])
				if err != nil {
					return err
				}
				for _, name := range skipped {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped unknown tweak %q\n", name)
				}

				var errs []error
				var views []tweak.View
				for _, d := range a.tweaks.Descriptors() {
					v := d.View()
					if !v.Pending {
						views = append(views, v)
						continue
					}
					if save {
						errs = append(errs, d.Save(cmd.Context()))
					}
					if apply {
						errs = append(errs, d.Apply(cmd.Context()))
					}
					views = append(views, d.View())
				}

				if opts.jsonOut {
					out := make([]api.TweakView, 0, len(views))
					for _, v := range views {
						out = append(out, api.FromTweakView(v))
					}
					if err := printJSON(cmd.OutOrStdout(), out); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), render.Tweaks(views))
					a.printNotices(cmd.OutOrStdout())
				}
				return errors.Join(errs...)
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Persist the preset values")
	cmd.Flags().BoolVar(&apply, "apply", false, "Push the preset values to the running kernel")
	return cmd
}
