package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/signbank/internal/catalog"
)

// LabelsOptions holds flags for the labels command.
type LabelsOptions struct {
	*RootOptions
	SessionID string
}

// NewLabelsCommand creates the labels command.
func NewLabelsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LabelsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "labels [label]",
		Short: "List catalog labels and their captured samples",
		Long: `Without arguments, list every registered label with its class index,
folder and number of catalogued samples.

With a label name, list the samples captured for that label. With
--session, list the samples captured in one session.

Examples:
  signbank labels
  signbank labels "xin chào"
  signbank labels --session 3f0c...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runLabels(opts, name, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "list the samples of one capture session")

	return cmd
}

type labelCount struct {
	catalog.Label
	Samples int `json:"samples"`
}

type labelsView struct {
	Labels []labelCount `json:"labels"`
}

func (v labelsView) WriteText(w io.Writer) error {
	if len(v.Labels) == 0 {
		_, err := fmt.Fprintln(w, "no labels registered")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "CLASS\tLABEL\tFOLDER\tSAMPLES\n")
	for _, l := range v.Labels {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", l.ClassIdx, l.Name, l.FolderName, l.Samples)
	}
	return tw.Flush()
}

type samplesView struct {
	Label   *catalog.Label         `json:"label,omitempty"`
	Session string                 `json:"session,omitempty"`
	Samples []catalog.SampleRecord `json:"samples"`
	root    string
}

func (v samplesView) WriteText(w io.Writer) error {
	if v.Label != nil {
		fmt.Fprintf(w, "%q (class %d)\n", v.Label.Name, v.Label.ClassIdx)
	} else {
		fmt.Fprintf(w, "session %s\n", v.Session)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PATH\tUSER\tSESSION\tFRAMES\tCREATED\n")
	for _, s := range v.Samples {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			relPath(v.root, s.FilePath), s.User, s.SessionID, s.Frames, s.CreatedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d samples\n", len(v.Samples))
	return err
}

func runLabels(opts *LabelsOptions, name string, cmd *cobra.Command) error {
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if name != "" && opts.SessionID != "" {
		return e.out.Fail(ExitCommandError, ErrCodeGeneric, "give a label or --session, not both", nil, nil)
	}
	cat, err := e.openCatalog()
	if err != nil {
		return err
	}
	defer e.closeCatalog(cat)

	ctx := cmd.Context()
	switch {
	case name != "":
		label, err := cat.LabelByName(ctx, name)
		if errors.Is(err, catalog.ErrLabelNotFound) {
			return e.out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("label %q not found", name), err, nil)
		}
		if err != nil {
			return e.out.Fail(ExitCommandError, ErrCodeCatalog, "failed to look up label", err, nil)
		}
		samples, err := cat.SamplesByLabel(ctx, label.ID)
		if err != nil {
			return e.out.Fail(ExitCommandError, ErrCodeCatalog, "failed to list samples", err, nil)
		}
		return e.out.Success(samplesView{Label: &label, Samples: samples, root: e.cfg.FeaturesDir})

	case opts.SessionID != "":
		samples, err := cat.SamplesBySession(ctx, opts.SessionID)
		if err != nil {
			return e.out.Fail(ExitCommandError, ErrCodeCatalog, "failed to list samples", err, nil)
		}
		return e.out.Success(samplesView{Session: opts.SessionID, Samples: samples, root: e.cfg.FeaturesDir})
	}

	labels, err := cat.Labels(ctx)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeCatalog, "failed to list labels", err, nil)
	}
	counts, err := cat.CountSamples(ctx)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeCatalog, "failed to count samples", err, nil)
	}
	view := labelsView{Labels: make([]labelCount, 0, len(labels))}
	for _, l := range labels {
		view.Labels = append(view.Labels, labelCount{Label: l, Samples: counts[l.ClassIdx]})
	}
	return e.out.Success(view)
}
