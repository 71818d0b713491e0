package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/signbank/internal/sample"
)

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List the samples found under the features directory",
		Long: `List every readable sample under the features directory in sorted path
order, with its shape, class index and where its metadata came from
(sidecar, embedded or absent). Unreadable files are skipped with a warning.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(rootOpts, cmd)
		},
	}
}

type scanEntry struct {
	Path       string          `json:"path"`
	Shape      []int           `json:"shape"`
	ClassIdx   *int            `json:"class_idx"`
	SampleID   string          `json:"sample_id,omitempty"`
	MetaSource sample.MetaKind `json:"meta_source"`
}

type scanView struct {
	Root    string      `json:"root"`
	Samples []scanEntry `json:"samples"`
}

func (v scanView) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PATH\tSHAPE\tCLASS\tMETA\n")
	for _, s := range v.Samples {
		class := "-"
		if s.ClassIdx != nil {
			class = strconv.Itoa(*s.ClassIdx)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", relPath(v.Root, s.Path), shapeString(s.Shape), class, s.MetaSource)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d samples\n", len(v.Samples))
	return err
}

func runScan(opts *RootOptions, cmd *cobra.Command) error {
	e, err := loadEnv(opts, cmd)
	if err != nil {
		return err
	}

	samples, err := e.scanner.Scan(cmd.Context(), e.cfg.FeaturesDir)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeGeneric, "scan failed", err, nil)
	}

	view := scanView{Root: e.cfg.FeaturesDir, Samples: make([]scanEntry, 0, len(samples))}
	for _, s := range samples {
		view.Samples = append(view.Samples, scanEntry{
			Path:       s.Path,
			Shape:      s.Sequence.Shape,
			ClassIdx:   s.ClassIdx,
			SampleID:   s.ID,
			MetaSource: s.Source.Kind,
		})
	}
	return e.out.Success(view)
}
