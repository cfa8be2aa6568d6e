package commands

import (
	"fmt"

	"github.com/ncobase/blobjob/logging/logger"
	"github.com/ncobase/blobjob/scheduler"
	"github.com/spf13/cobra"
)

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run a stored job to completion in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, traceID := logger.EnsureTraceID(cmd.Context())
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.store(ctx)
			if err != nil {
				return err
			}
			pub, err := a.events()
			if err != nil {
				return err
			}

			run, err := scheduler.NewStarter(jobs).Start(ctx, args[0])
			if err != nil {
				return err
			}
			final, err := a.runner().RunToCompletion(ctx, run, scheduler.NewObserver(pub))
			if err != nil {
				return fmt.Errorf("stopped at step %d of %d (trace %s): %w", final.Current, final.StepCount, traceID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s completed %d steps\n", final.ID, final.StepCount)
			return nil
		},
	}
}
