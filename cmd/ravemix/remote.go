package main

import (
	"context"
	"fmt"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/settings"
	"github.com/oukeidos/ravemix/internal/workflow"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the server address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the server address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				printAddress(cmd, app.Connection.Address())
				fmt.Fprintf(cmd.OutOrStdout(), "  %-7s %s\n", "file:", app.Paths.Settings())
				return nil
			})
		},
	}
	set := &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Change scheme, host or port",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{settings.KeyScheme, settings.KeyHost, settings.KeyPort},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				addr, err := app.Connection.Patch(args[0], args[1])
				if err != nil {
					return err
				}
				printAddress(cmd, addr)
				return nil
			})
		},
	}
	show.SetUsageTemplate(subcommandUsageTemplate)
	set.SetUsageTemplate(subcommandUsageTemplate)
	cmd.AddCommand(show, set)
	return cmd
}

func printAddress(cmd *cobra.Command, addr settings.Address) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Server:")
	fmt.Fprintf(out, "  %-7s %s\n", "scheme:", addr.Scheme)
	fmt.Fprintf(out, "  %-7s %s\n", "host:", addr.Host)
	fmt.Fprintf(out, "  %-7s %d\n", "port:", addr.Port)
	fmt.Fprintf(out, "  %-7s %s\n", "url:", addr.BaseURL())
}

func newProbeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				addr := app.Connection.Address()
				state, err := app.Connection.Probe(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", addr.BaseURL(), state)
				if state != workflow.ProbeConnected {
					return fmt.Errorf("server at %s is unreachable", addr.BaseURL())
				}
				return nil
			})
		},
	}
}

func newModelsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the server's models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				models, err := app.Sender.LoadModels(ctx)
				if err != nil {
					return err
				}
				if len(models) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "The server has no models.")
					return nil
				}
				active := app.Sender.State().Model
				for _, m := range models {
					marker := " "
					if m == active {
						marker = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, m)
				}
				return nil
			})
		},
	}

	selectCmd := &cobra.Command{
		Use:   "select <id>",
		Short: "Activate a model on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, app *workflow.App) error {
				if err := chooseModel(ctx, app, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Active model: %s\n", args[0])
				return nil
			})
		},
	}
	selectCmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.AddCommand(selectCmd)
	return cmd
}

func chooseModel(ctx context.Context, app *workflow.App, id string) error {
	if _, err := app.Sender.LoadModels(ctx); err != nil {
		return err
	}
	if app.Sender.State().Model == id {
		return nil
	}
	return app.Sender.ChooseModel(ctx, id)
}

type raveOptions struct {
	model string
	play  bool
}

func newRaveCmd(opts *globalOptions) *cobra.Command {
	ropts := raveOptions{}
	cmd := &cobra.Command{
		Use:   "rave",
		Short: "Send the selected audio to the server and fetch the remix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, ropts.play, func(ctx context.Context, app *workflow.App) error {
				return runRave(ctx, cmd, app, ropts)
			})
		},
	}
	cmd.Flags().StringVar(&ropts.model, "model", "", "Activate this model first")
	cmd.Flags().BoolVar(&ropts.play, "play", false, "Play the remix when it arrives")
	return cmd
}

func runRave(ctx context.Context, cmd *cobra.Command, app *workflow.App, ropts raveOptions) error {
	out := cmd.OutOrStdout()
	src, ok := app.Selection.Get()
	if !ok {
		return apperrors.Invalid("No audio selected.")
	}
	if ropts.model != "" {
		if err := chooseModel(ctx, app, ropts.model); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Sending %s to %s\n", src.DisplayName(), app.Connection.Address().BaseURL())
	remix, err := app.Sender.Rave(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Remix saved to %s\n", remix.URI)
	if !ropts.play {
		return nil
	}
	fmt.Fprintf(out, "Playing %s\n", remix.DisplayName())
	return waitForPlayback(ctx, app, app.Sender.Play)
}
