package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/roach88/signbank/internal/sample"
	"github.com/roach88/signbank/internal/validate"
)

// reportView renders a validation report with paths relative to root.
type reportView struct {
	Report    *validate.Report `json:"report"`
	Rewritten []string         `json:"rewritten,omitempty"`
	root      string
}

func (v reportView) WriteText(w io.Writer) error {
	if v.Report == nil {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	var ok, fixed, rejected int
	for _, e := range v.Report.Entries {
		switch e.Action {
		case validate.ActionOK:
			ok++
		case validate.ActionFixed:
			fixed++
		case validate.ActionRejected:
			rejected++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Action, relPath(v.root, e.Path), shapeString(e.Shape), e.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d samples: %d ok, %d fixed, %d rejected\n", v.Report.Total, ok, fixed, rejected)
	return err
}

// relPath shortens p to a root-relative path when p lies under root.
func relPath(root, p string) string {
	if root == "" {
		return p
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}

func shapeString(shape []int) string {
	return sample.Array{Shape: shape}.ShapeString()
}
