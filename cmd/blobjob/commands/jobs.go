package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/logging/logger"
	"github.com/ncobase/blobjob/paging"
	"github.com/ncobase/blobjob/validation"
	"github.com/spf13/cobra"
)

func newJobsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"j"},
		Short:   "Manage stored jobs",
	}

	cmd.AddCommand(
		newJobsPutCommand(opts),
		newJobsGetCommand(opts),
		newJobsListCommand(opts),
		newJobsStateCommand(opts, "enable", job.StateEnabled),
		newJobsStateCommand(opts, "disable", job.StateDisabled),
		newJobsDeleteCommand(opts),
	)
	return cmd
}

func newJobsPutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file | ->",
		Short: "Create or replace a job from a JSON document and validate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var j job.Job
			if err := json.Unmarshal(raw, &j); err != nil {
				return fmt.Errorf("failed to decode job: %w", err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.store(ctx)
			if err != nil {
				return err
			}
			svc, err := a.validationService(ctx)
			if err != nil {
				return err
			}
			return putJob(ctx, jobs, svc, &j, cmd.OutOrStdout())
		},
	}
}

type jobPutter interface {
	PutJob(ctx context.Context, j *job.Job) (*job.Job, error)
}

type stepsValidator interface {
	HandleStepsChanged(ctx context.Context, jobID string) (validation.Verdict, error)
}

// putJob stores j, validates it and prints "<id> <validation state>". A job
// that was stored but could not be validated is reported as VALIDATING and
// the command fails.
func putJob(ctx context.Context, jobs jobPutter, svc stepsValidator, j *job.Job, out io.Writer) error {
	stored, err := jobs.PutJob(ctx, j)
	if err != nil {
		return err
	}

	verdict, err := svc.HandleStepsChanged(ctx, stored.ID)
	if err != nil {
		fmt.Fprintf(out, "%s %s\n", stored.ID, job.Validating)
		logger.Warnf(ctx, "job %s stored but not validated: %v", stored.ID, err)
		return fmt.Errorf("job %s stored but not validated: %w", stored.ID, err)
	}
	fmt.Fprintf(out, "%s %s\n", stored.ID, verdict.State)
	if !verdict.Valid() && verdict.Reason != "" {
		fmt.Fprintln(out, verdict.Reason)
	}
	return nil
}

func newJobsGetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Print a job with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.store(ctx)
			if err != nil {
				return err
			}
			d, err := jobs.GetDetails(ctx, args[0])
			if err != nil {
				return err
			}
			steps, err := jobs.GetSteps(ctx, args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(job.Job{Details: *d, Steps: steps})
		},
	}
}

func newJobsListCommand(opts *options) *cobra.Command {
	var (
		cursor string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.store(ctx)
			if err != nil {
				return err
			}
			page, err := paging.Paginate(ctx, paging.Params{Cursor: cursor, Limit: limit}, jobs.ListJobs)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tSTATE\tVALIDATION")
			for _, d := range page.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Schedule, d.State, d.ValidationState)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if page.HasNextPage {
				fmt.Fprintf(cmd.OutOrStdout(), "\nmore: --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cursor, "cursor", "", "cursor printed by the previous page")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of jobs")
	return cmd
}

func newJobsStateCommand(opts *options, use string, state job.State) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job-id>",
		Short: "Set a job " + string(state),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.store(ctx)
			if err != nil {
				return err
			}
			return jobs.SetState(ctx, args[0], state)
		},
	}
}

func newJobsDeleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job and its step list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.store(ctx)
			if err != nil {
				return err
			}
			return jobs.DeleteJob(ctx, args[0])
		},
	}
}
