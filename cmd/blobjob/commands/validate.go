package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ncobase/blobjob/validation"
	"github.com/spf13/cobra"
)

func newValidateCommand(opts *options) *cobra.Command {
	var file bool

	cmd := &cobra.Command{
		Use:   "validate <job-id | file>",
		Short: "Validate a stored job, or a step list file with --file",
		Long: `Validate the step list of a stored job and record the verdict, or with
--file check a JSON step list on disk ("-" for stdin) without touching any
store. Exits non-zero when the list is INVALID.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var verdict validation.Verdict

			if file {
				raw, err := readInput(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				verdict = validation.NewStepValidator().ValidateJSON(raw)
			} else {
				a, err := newApp(ctx, opts)
				if err != nil {
					return err
				}
				defer a.Close()
				svc, err := a.validationService(ctx)
				if err != nil {
					return err
				}
				verdict, err = svc.HandleStepsChanged(ctx, args[0])
				if err != nil {
					return err
				}
			}

			return printVerdict(cmd.OutOrStdout(), verdict)
		},
	}

	cmd.Flags().BoolVarP(&file, "file", "f", false, "treat the argument as a step list file")
	return cmd
}

var errInvalid = errors.New("step list is INVALID")

func printVerdict(w io.Writer, v validation.Verdict) error {
	if v.Valid() {
		fmt.Fprintln(w, v.State)
		return nil
	}
	fmt.Fprintf(w, "%s: %s\n", v.State, v.Reason)
	return errInvalid
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return raw, nil
}
