package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/recorder"
	"github.com/oukeidos/ravemix/internal/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	nameStyle     = lipgloss.NewStyle().Width(28)
	selectedStyle = nameStyle.Bold(true).Foreground(lipgloss.Color("10"))
	originStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bundled, imported and recorded audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				out := cmd.OutOrStdout()
				entries := app.Library.Visible()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No audio.")
					return nil
				}
				cur, ok := app.Selection.Get()
				for _, e := range entries {
					marker, style := " ", nameStyle
					if ok && e == cur {
						marker, style = "*", selectedStyle
					}
					fmt.Fprintf(out, "%s %s %s\n", marker, style.Render(e.DisplayName()), originStyle.Render("["+string(e.Origin)+"]"))
				}
				return nil
			})
		},
	}
}

// originValue is a --origin flag that only accepts known origins.
type originValue struct{ origin catalog.Origin }

var _ pflag.Value = (*originValue)(nil)

func (o *originValue) String() string { return string(o.origin) }
func (o *originValue) Type() string   { return "origin" }

func (o *originValue) Set(s string) error {
	origin, ok := catalog.ParseOrigin(s)
	if !ok {
		return fmt.Errorf("unknown origin %q (use import, record or default)", s)
	}
	o.origin = origin
	return nil
}

func newSelectCmd(opts *globalOptions) *cobra.Command {
	var origin originValue
	cmd := &cobra.Command{
		Use:   "select <name>",
		Short: "Select the audio other commands work on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				entry, ok := app.Library.Find(args[0], origin.origin)
				if !ok {
					return fmt.Errorf("no audio named %q", args[0])
				}
				if err := app.Library.Choose(entry); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Selected %s [%s]\n", entry.DisplayName(), entry.Origin)
				return nil
			})
		},
	}
	cmd.Flags().Var(&origin, "origin", "Only match audio from this origin (import, record, default)")
	return cmd
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Copy an audio file into the library and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				entry, ok, err := app.Library.Import(ctx, path, name, catalog.TypeByExtension(path))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s: not an audio file.\n", path)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", entry.DisplayName())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Library name (default: file name without extension)")
	return cmd
}

type recordOptions struct {
	duration time.Duration
	saveAs   string
}

func newRecordCmd(opts *globalOptions) *cobra.Command {
	ropts := recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ropts.duration <= 0 && !stdinIsTerminal() {
				return fmt.Errorf("--duration is required when stdin is not a terminal")
			}
			return withApp(cmd, opts, true, func(ctx context.Context, app *workflow.App) error {
				return runRecord(ctx, cmd, app, ropts)
			})
		},
	}
	cmd.Flags().DurationVar(&ropts.duration, "duration", 0, "Stop after this long (default: wait for Enter)")
	cmd.Flags().StringVar(&ropts.saveAs, "save-as", "", "Save the recording under this name")
	return cmd
}

func runRecord(ctx context.Context, cmd *cobra.Command, app *workflow.App, ropts recordOptions) error {
	out := cmd.OutOrStdout()
	lib := app.Library
	interactive := stdinIsTerminal()

	unsubscribe := lib.Recorder().Subscribe(func(st recorder.Status) {
		if interactive && st.State == recorder.Recording && st.Elapsed > 0 {
			fmt.Fprintf(out, "\rRecording %ds", st.Elapsed)
		}
	})
	defer unsubscribe()

	if err := lib.StartRecording(ctx); err != nil {
		return err
	}
	var timeout <-chan time.Time
	if ropts.duration > 0 {
		timer := time.NewTimer(ropts.duration)
		defer timer.Stop()
		timeout = timer.C
	}
	var enter <-chan struct{}
	if interactive {
		fmt.Fprintln(out, "Recording... press Enter to stop.")
		enter = waitForEnter()
	}

	select {
	case <-ctx.Done():
		lib.ForceStop()
		return apperrors.Cancelled(ctx.Err())
	case <-timeout:
	case <-enter:
	}

	entry, err := lib.StopRecording(ctx)
	if err != nil {
		return err
	}
	if interactive {
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Captured %s\n", entry.URI)

	var saved catalog.Entry
	switch {
	case ropts.saveAs != "":
		saved, err = lib.SaveCurrentAs(ctx, ropts.saveAs)
	case interactive:
		saved, err = saveWithPrompt(ctx, app)
	default:
		fmt.Fprintln(out, "Not saved yet; run 'ravemix save <name>' to keep it.")
		return nil
	}
	if err != nil {
		if apperrors.IsCancelled(err) {
			fmt.Fprintln(out, "Not saved yet; run 'ravemix save <name>' to keep it.")
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "Saved as %s\n", saved.Name)
	return nil
}

// saveWithPrompt answers the library's naming request from the terminal.
func saveWithPrompt(ctx context.Context, app *workflow.App) (catalog.Entry, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go newNamer().Serve(ctx, app.Names)
	return app.Library.SaveCurrent(ctx)
}

func newSaveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save [name]",
		Short: "Save the selected new recording",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !stdinIsTerminal() {
				return fmt.Errorf("a name is required when stdin is not a terminal")
			}
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				var (
					saved catalog.Entry
					err   error
				)
				if len(args) == 1 {
					saved, err = app.Library.SaveCurrentAs(ctx, args[0])
				} else {
					saved, err = saveWithPrompt(ctx, app)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved as %s\n", saved.Name)
				return nil
			})
		},
	}
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the selected audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				cur, ok := app.Selection.Get()
				if !ok {
					return apperrors.Invalid("No audio selected.")
				}
				if cur.Origin == catalog.OriginDefault {
					return apperrors.New(apperrors.KindDeleteForbidden, "", nil)
				}
				confirmed, err := newConfirmer().Confirm(fmt.Sprintf("Delete %q?", cur.DisplayName()), yes)
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Kept.")
					return nil
				}
				deleted, err := app.Library.DeleteCurrent(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", deleted.DisplayName())
				if next, ok := app.Selection.Get(); ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Selected %s [%s]\n", next.DisplayName(), next.Origin)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}

func newPlayCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the selected audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, app *workflow.App) error {
				cur, ok := app.Selection.Get()
				if !ok {
					return apperrors.Invalid("No audio selected.")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Playing %s\n", cur.DisplayName())
				return waitForPlayback(ctx, app, app.Library.Play)
			})
		},
	}
}
