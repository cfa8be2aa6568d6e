package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ncobase/blobjob/engine"
	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/logging/logger"
	"github.com/spf13/cobra"
)

func newAdvanceCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Execute the current step of a run read from stdin",
		Long: `Read a run document ({id, name, stepCount, start, current, steps}) from
stdin, execute the step at current and write the advanced run to stdout.
On failure nothing is written to stdout and the command exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _ := logger.EnsureTraceID(cmd.Context())
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return advance(ctx, a.runner(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func advance(ctx context.Context, r *engine.Runner, in io.Reader, out io.Writer) error {
	var run job.Run
	if err := json.NewDecoder(in).Decode(&run); err != nil {
		return fmt.Errorf("failed to decode run: %w", err)
	}

	next, err := r.Advance(ctx, run)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(next)
}
