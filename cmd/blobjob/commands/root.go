// Package commands implements the blobjob command line.
package commands

import (
	"github.com/spf13/cobra"
)

type options struct {
	confPath string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "blobjob",
		Short:         "Run scheduled copy, move, delete and merge jobs on object storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.confPath, "conf", "c", "", "config file path (default: search config.yaml)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newAdvanceCommand(opts),
		newRunCommand(opts),
		newValidateCommand(opts),
		newJobsCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}
