package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanverite/tweakd/internal/api"
	"github.com/sanverite/tweakd/internal/feature"
	"github.com/sanverite/tweakd/internal/render"
)

type featureFlags struct {
	experimental  bool
	allowReadOnly bool
}

func (f *featureFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.experimental, "experimental", false, "Show experimental features and options")
	cmd.Flags().BoolVar(&f.allowReadOnly, "allow-readonly", false, "Allow patching read-only (info) features")
}

func newFeaturesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Inspect and patch kernel image features",
	}
	cmd.AddCommand(newFeaturesShowCmd(opts), newFeaturesPatchCmd(opts))
	return cmd
}

// withFeatures builds the app and loads the feature list. A load failure
// prints the error panel and is returned.
func withFeatures(cmd *cobra.Command, opts *globalOptions, flags featureFlags, fn func(a *app) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	a.features.SetToggles(feature.Toggles{
		ShowExperimental:   flags.experimental,
		AllowReadOnlyPatch: flags.allowReadOnly,
	})
	if err := a.features.Load(cmd.Context()); err != nil {
		_ = printFeatures(cmd, opts, a.features.View())
		return err
	}
	return fn(a)
}

func newFeaturesShowCmd(opts *globalOptions) *cobra.Command {
	var flags featureFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Unpack the boot image and list its features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFeatures(cmd, opts, flags, func(a *app) error {
				return printFeatures(cmd, opts, a.features.View())
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newFeaturesPatchCmd(opts *globalOptions) *cobra.Command {
	var (
		flags featureFlags
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "patch <key=value>...",
		Short: "Patch feature values into the kernel image",
		Long: `patch queues the given changes, asks for confirmation and rewrites the
boot image. Progress from the patch script is streamed while it runs.
Features marked for persistence are saved for future boots afterwards.
Use 0 to disable a feature. A reboot is required to activate changes.

Example:
  tweakd features patch wireguard=1 superfloppy=0
  tweakd features patch kver=6 --allow-readonly --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseAssignments(args)
			if err != nil {
				return err
			}
			return withFeatures(cmd, opts, flags, func(a *app) error {
				for _, k := range sortedKeys(changes) {
					if err := a.features.SetPending(k, changes[k]); err != nil {
						return err
					}
				}

				confirm := feature.Confirmed(true)
				if !yes {
					confirm = promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
				}

				var err error
				if opts.jsonOut {
					err = a.features.ApplyPatch(cmd.Context(), confirm)
					resp := api.PatchResponse{
						Patch:   api.FromPatchOperation(a.state.GetSnapshot().Patch),
						Console: a.features.Console().String(),
						View:    api.FromFeatureView(a.features.View()),
					}
					if perr := printJSON(cmd.OutOrStdout(), resp); perr != nil {
						return perr
					}
					return err
				}

				err = streamConsole(a, cmd.OutOrStdout(), func() error {
					return a.features.ApplyPatch(cmd.Context(), confirm)
				})
				a.printNotices(cmd.OutOrStdout())
				return err
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// promptConfirmer asks on w and reads a y/N answer from r.
func promptConfirmer(r io.Reader, w io.Writer) feature.Confirmer {
	return feature.ConfirmFunc(func(ctx context.Context, changes map[string]string) (bool, error) {
		fmt.Fprintln(w, "The kernel image will be patched:")
		for _, k := range sortedKeys(changes) {
			fmt.Fprintf(w, "  %s=%s\n", k, changes[k])
		}
		fmt.Fprint(w, "Continue? [y/N] ")
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	})
}

// streamConsole copies patch console output to w while fn runs.
func streamConsole(a *app, w io.Writer, fn func() error) error {
	_, chunks, cancel := a.features.Console().Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range chunks {
			fmt.Fprint(w, chunk)
		}
	}()
	err := fn()
	cancel()
	<-done
	return err
}

func printFeatures(cmd *cobra.Command, opts *globalOptions, v feature.View) error {
	if opts.jsonOut {
		return printJSON(cmd.OutOrStdout(), api.FromFeatureView(v))
	}
	fmt.Fprintln(cmd.OutOrStdout(), render.Features(v))
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
