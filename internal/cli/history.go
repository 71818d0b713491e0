package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/signbank/internal/catalog"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List recorded export runs, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to list (0 = all)")

	return cmd
}

type historyView struct {
	Exports []catalog.ExportRecord `json:"exports"`
}

func (v historyView) WriteText(w io.Writer) error {
	if len(v.Exports) == 0 {
		_, err := fmt.Fprintln(w, "no exports recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tSTARTED\tFIX\tSTATUS\tSAMPLES\tFIXED\tMESSAGE\n")
	for _, r := range v.Exports {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Fix, r.Status, r.TotalSamples, r.FixedCount, r.Message)
	}
	return tw.Flush()
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	cat, err := e.openCatalog()
	if err != nil {
		return err
	}
	defer e.closeCatalog(cat)

	runs, err := cat.Exports(cmd.Context(), opts.Limit)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeCatalog, "failed to list exports", err, nil)
	}
	return e.out.Success(historyView{Exports: runs})
}
