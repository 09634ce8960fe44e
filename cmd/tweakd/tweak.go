package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sanverite/tweakd/internal/api"
	"github.com/sanverite/tweakd/internal/render"
	"github.com/sanverite/tweakd/internal/tweak"
)

func newTweakCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tweak",
		Short: "Inspect and change runtime tweaks",
	}
	cmd.AddCommand(
		newTweakListCmd(opts),
		newTweakShowCmd(opts),
		newTweakSetCmd(opts),
		newTweakActionCmd(opts, "save", "Persist the tweak's current values for future boots"),
		newTweakActionCmd(opts, "apply", "Push the tweak's saved values to the running kernel"),
	)
	return cmd
}

// withTweaks loads the config, builds the app and loads the named tweaks
// (all when names is empty). Load failures are fatal for one-shot commands.
func withTweaks(cmd *cobra.Command, opts *globalOptions, names []string, fn func(a *app) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	var renderer tweak.Renderer
	if opts.verbose && !opts.jsonOut {
		renderer = render.NewWriter(cmd.ErrOrStderr())
	}
	a, err := newApp(cfg, renderer)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(names) == 0 {
		if err := a.tweaks.LoadAll(cmd.Context()); err != nil {
			return err
		}
		return fn(a)
	}
	for _, name := range names {
		c, err := a.tweaks.Controller(name)
		if err != nil {
			return err
		}
		if err := c.Load(cmd.Context()); err != nil {
			return err
		}
	}
	return fn(a)
}

func newTweakListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every available tweak",
		Args:  cobra.NoArgs,
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

			// A tweak that fails to load is still listed, unloaded.
			if err := a.tweaks.LoadAll(cmd.Context()); err != nil {
				a.logger.Warn("load failed", "error", err)
			}
			var views []tweak.View
			for _, d := range a.tweaks.Descriptors() {
				views = append(views, d.View())
			}
			if opts.jsonOut {
				out := make([]api.TweakView, 0, len(views))
				for _, v := range views {
					out = append(out, api.FromTweakView(v))
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Tweaks(views))
			return nil
		},
	}
}

func newTweakShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <tweak>",
		Short: "Show one tweak's current, saved and reference values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTweaks(cmd, opts, args, func(a *app) error {
				c, _ := a.tweaks.Controller(args[0])
				return printView(cmd, opts, c.View())
			})
		},
	}
}

func newTweakSetCmd(opts *globalOptions) *cobra.Command {
	var save, apply bool
	cmd := &cobra.Command{
		Use:   "set <tweak> <key=value>...",
		Short: "Edit fields, then optionally save and apply",
		Long: `set edits pending fields the same way the panel does: values are clamped
to the field's range and a non-zero value in an exclusive pair zeroes its
sibling. Without --save or --apply the resulting pending state is only
printed.

Example:
  tweakd tweak set memory dirty_bytes=268435456 --save --apply
  tweakd tweak set zram algorithm=zstd disksize=4294967296 --save`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			return withTweaks(cmd, opts, args[:1], func(a *app) error {
				c, _ := a.tweaks.Controller(args[0])
				keys := make([]string, 0, len(fields))
				for k := range fields {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					if _, err := c.SetField(k, fields[k]); err != nil {
						return err
					}
				}
				if save {
					if err := c.Save(cmd.Context()); err != nil {
						return err
					}
				}
				if apply {
					if err := c.Apply(cmd.Context()); err != nil {
						return err
					}
				}
				return printView(cmd, opts, c.View())
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Persist the edited values")
	cmd.Flags().BoolVar(&apply, "apply", false, "Push the edited values to the running kernel")
	return cmd
}

// newTweakActionCmd builds "save" and "apply": load the tweak and run the
// action with the pending state Load resolved (saved, then current, then
// the default preset).
func newTweakActionCmd(opts *globalOptions, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <tweak>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTweaks(cmd, opts, args, func(a *app) error {
				for _, name := range args {
					c, _ := a.tweaks.Controller(name)
					run := c.Save
					if action == "apply" {
						run = c.Apply
					}
					if err := run(cmd.Context()); err != nil {
						return err
					}
				}
				if !opts.jsonOut {
					a.printNotices(cmd.OutOrStdout())
					return nil
				}
				return printJSON(cmd.OutOrStdout(), api.FromCoreSnapshot(a.state.GetSnapshot()).Notices)
			})
		},
	}
}

func printView(cmd *cobra.Command, opts *globalOptions, v tweak.View) error {
	if opts.jsonOut {
		return printJSON(cmd.OutOrStdout(), api.FromTweakView(v))
	}
	fmt.Fprintln(cmd.OutOrStdout(), render.Tweak(v))
	return nil
}
