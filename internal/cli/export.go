package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/signbank/internal/export"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Fix bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Validate and merge all samples into the training artifact",
		Long: `Validate every sample, then merge the corpus into a single float32
artifact (features.dat, meta.json, index.json) in the output directory.

Without --fix any rejected sample aborts the export and nothing is written.
With --fix frame-count mismatches are repaired in place first.

Every run is recorded in the catalog (see "signbank history").

Example:
  signbank export
  signbank export --fix --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Fix, "fix", false, "repair frame-count mismatches before merging")

	return cmd
}

// exportView is the export result with text rendering.
type exportView struct {
	*export.Result
}

func (v exportView) WriteText(w io.Writer) error {
	fmt.Fprintln(w, v.Message)
	if v.ValidationReport != nil && v.ValidationReport.FixedCount > 0 {
		fmt.Fprintf(w, "fixed:  %d\n", v.ValidationReport.FixedCount)
	}
	if out := v.Output; out != nil {
		fmt.Fprintf(w, "shape:  %s %s\n", shapeString(out.Shape), out.DType)
		fmt.Fprintf(w, "data:   %s\n", out.MemmapPath)
		fmt.Fprintf(w, "meta:   %s\n", out.MetaPath)
		fmt.Fprintf(w, "index:  %s\n", out.IndexPath)
	}
	return nil
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if err := e.openStore(); err != nil {
		return err
	}
	cat, err := e.openCatalog()
	if err != nil {
		return err
	}
	defer e.closeCatalog(cat)

	res, err := e.exporter(cat).Export(cmd.Context(), opts.Fix)
	if err != nil {
		return exportFailure(e, err)
	}
	return e.out.Success(exportView{res})
}

// exportFailure maps orchestrator errors onto CLI codes.
func exportFailure(e *env, err error) error {
	ee, ok := export.AsError(err)
	if !ok {
		return e.out.Fail(ExitCommandError, ErrCodeGeneric, "export failed", err, nil)
	}
	switch ee.Kind {
	case export.KindValidation:
		return e.out.Fail(ExitFailure, ErrCodeValidation, ee.Message, nil, reportView{Report: ee.Report, root: e.cfg.FeaturesDir})
	case export.KindNoSamples:
		return e.out.Fail(ExitFailure, ErrCodeNoSamples, ee.Message, nil, nil)
	default:
		return e.out.Fail(ExitCommandError, ErrCodeMerge, ee.Message, ee.Err, nil)
	}
}
