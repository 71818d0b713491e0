package cli

import (
	"github.com/spf13/cobra"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Fix bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every sample against the expected shape",
		Long: `Check every sample under the features directory against the expected
(frames, features) shape without merging.

With --fix, samples whose frame count differs are truncated or zero-padded
in place. Feature-dimension mismatches are never fixed.

Exit code 1 when any sample is rejected.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Fix, "fix", false, "rewrite samples with a frame-count mismatch")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if opts.Fix {
		if err := e.openStore(); err != nil {
			return err
		}
	}

	report, rewritten, err := e.validator.Validate(cmd.Context(), e.cfg.FeaturesDir, e.policy(opts.Fix))
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeGeneric, "validation could not run", err, nil)
	}
	e.out.VerboseLog("rewrote %d file(s)", len(rewritten))

	view := reportView{Report: report, Rewritten: rewritten, root: e.cfg.FeaturesDir}
	if !report.OK {
		return e.out.Fail(ExitFailure, ErrCodeValidation, "Validation failed", nil, view)
	}
	return e.out.Success(view)
}
