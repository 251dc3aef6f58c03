package main

import (
	"fmt"
	"os"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/cleanup"
	"github.com/oukeidos/ravemix/internal/version"
	"github.com/spf13/cobra"
)

const (
	groupLibrary = "library"
	groupRemote  = "remote"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "ravemix",
		Short: "Record audio clips and remix them on a RAVE server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				_ = cmd.Usage()
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return cmd.Help()
		},
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
	}

	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)

	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory (default ~/.ravemix)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Path to save machine-readable JSONL logs (rotated)")

	cmd.AddCommand(
		grouped(newListCmd(opts), groupLibrary),
		grouped(newSelectCmd(opts), groupLibrary),
		grouped(newImportCmd(opts), groupLibrary),
		grouped(newRecordCmd(opts), groupLibrary),
		grouped(newSaveCmd(opts), groupLibrary),
		grouped(newDeleteCmd(opts), groupLibrary),
		grouped(newPlayCmd(opts), groupLibrary),
		grouped(newConfigCmd(opts), groupRemote),
		grouped(newProbeCmd(opts), groupRemote),
		grouped(newModelsCmd(opts), groupRemote),
		grouped(newRaveCmd(opts), groupRemote),
	)

	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "completion" {
			sub.SetUsageTemplate(subcommandUsageTemplate)
			break
		}
	}

	return cmd
}

func grouped(cmd *cobra.Command, group string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations["group"] = group
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

// reportError prints err for the user. Cancellation is not an error.
func reportError(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsCancelled(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
		return nil
	}
	return err
}
