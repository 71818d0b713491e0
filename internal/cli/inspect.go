package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/signbank/internal/artifact"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Channels int
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [meta.json]",
		Short: "Check a merged artifact and print per-channel statistics",
		Long: `Open a merged artifact, check meta.json and index.json against their
schema, verify features.dat has exactly N*T*D float32 values and print
mean, standard deviation, min and max for each feature channel.

Defaults to meta.json in the configured output directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Channels, "channels", 0, "print at most this many channels in text output (0 = all)")

	return cmd
}

type inspectView struct {
	MetaPath  string                  `json:"meta_path"`
	DataPath  string                  `json:"data_path"`
	Meta      artifact.Meta           `json:"meta"`
	IndexRows int                     `json:"index_rows"`
	Labeled   int                     `json:"labeled"`
	Stats     []artifact.ChannelStats `json:"stats"`
	channels  int
}

func (v inspectView) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "meta:     %s\n", v.MetaPath)
	fmt.Fprintf(w, "data:     %s\n", v.DataPath)
	fmt.Fprintf(w, "shape:    %s %s\n", shapeString(v.Meta.Shape), v.Meta.DType)
	fmt.Fprintf(w, "index:    %d rows, %d labeled\n", v.IndexRows, v.Labeled)

	stats := v.Stats
	if v.channels > 0 && v.channels < len(stats) {
		stats = stats[:v.channels]
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "CHANNEL\tMEAN\tSTD\tMIN\tMAX\t\n")
	for _, s := range stats {
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.4f\t%.4f\t\n", s.Channel, s.Mean, s.StdDev, s.Min, s.Max)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(stats) < len(v.Stats) {
		fmt.Fprintf(w, "... %d more channels\n", len(v.Stats)-len(stats))
	}
	return nil
}

func runInspect(opts *InspectOptions, args []string, cmd *cobra.Command) error {
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	metaPath := filepath.Join(e.cfg.OutputDir, artifact.MetaFile)
	if len(args) == 1 {
		metaPath = args[0]
	}
	e.out.VerboseLog("inspecting %s", metaPath)

	ds, err := artifact.Open(metaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return e.out.Fail(ExitCommandError, ErrCodeNotFound, "artifact not found", err, nil)
		}
		return e.out.Fail(ExitFailure, ErrCodeArtifact, "invalid artifact", err, nil)
	}
	defer ds.Close()

	view := inspectView{MetaPath: ds.MetaPath, DataPath: ds.DataPath, Meta: ds.Meta, channels: opts.Channels}

	indexPath := filepath.Join(filepath.Dir(metaPath), artifact.IndexFile)
	rows, err := artifact.ReadIndex(indexPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		e.out.VerboseLog("no %s next to %s", artifact.IndexFile, artifact.MetaFile)
	case err != nil:
		return e.out.Fail(ExitFailure, ErrCodeArtifact, "invalid index", err, nil)
	default:
		if len(rows) != ds.Len() {
			return e.out.Fail(ExitFailure, ErrCodeArtifact,
				fmt.Sprintf("index has %d rows, artifact has %d", len(rows), ds.Len()), nil, nil)
		}
		view.IndexRows = len(rows)
		for _, r := range rows {
			if r.ClassIdx != nil {
				view.Labeled++
			}
		}
	}

	view.Stats, err = ds.Stats()
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeArtifact, "failed to read features", err, nil)
	}
	return e.out.Success(view)
}
