package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/signbank/internal/capture"
	"github.com/roach88/signbank/internal/logging"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Label     string
	User      string
	SessionID string
	Dialect   string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <frames.json>",
		Short: "Store a captured gesture as a new sample",
		Long: `Store a camera capture as a new sample under the features directory.

The file holds either a full upload payload
  {"label": ..., "user": ..., "frames": [{"timestamp": ..., "landmarks": ...}]}
or just the frames array. Flags override payload fields.

The sequence is fitted to the configured frame count and the label is
registered in the catalog on first use.

Example:
  signbank add capture.json --label "xin chào" --user alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Label, "label", "l", "", "gesture label")
	cmd.Flags().StringVarP(&opts.User, "user", "u", "", "who performed the gesture")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "capture session id (generated when empty)")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "regional dialect")

	return cmd
}

type addView struct {
	*capture.Result
	root string
}

func (v addView) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "saved %d sample(s) for %q (class %d, session %s)\n", len(v.Paths), v.Label, v.ClassIdx, v.SessionID)
	for _, p := range v.Paths {
		fmt.Fprintf(w, "  %s\n", relPath(v.root, p))
	}
	return nil
}

func runAdd(opts *AddOptions, path string, cmd *cobra.Command) error {
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	payload, err := readPayload(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return e.out.Fail(ExitCommandError, ErrCodeNotFound, "payload not found", err, nil)
		}
		return e.out.Fail(ExitCommandError, ErrCodeCapture, "unreadable payload", err, nil)
	}
	for dst, v := range map[*string]string{
		&payload.Label:     opts.Label,
		&payload.User:      opts.User,
		&payload.SessionID: opts.SessionID,
		&payload.Dialect:   opts.Dialect,
	} {
		if v != "" {
			*dst = v
		}
	}

	if err := e.openStore(); err != nil {
		return err
	}
	cat, err := e.openCatalog()
	if err != nil {
		return err
	}
	defer e.closeCatalog(cat)

	svc := capture.NewService(e.store, cat, e.cfg.ExpectedT, e.cfg.ExpectedD,
		capture.WithLogger(logging.New("capture")))
	res, err := svc.Capture(cmd.Context(), payload)
	if err != nil {
		if errors.Is(err, capture.ErrInvalidPayload) {
			return e.out.Fail(ExitFailure, ErrCodeCapture, "capture rejected", err, nil)
		}
		return e.out.Fail(ExitCommandError, ErrCodeGeneric, "capture failed", err, nil)
	}
	return e.out.Success(addView{Result: res, root: e.cfg.FeaturesDir})
}

// readPayload accepts a full upload object or a bare frames array.
func readPayload(path string) (capture.Payload, error) {
	var p capture.Payload
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &p.Frames)
	} else {
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return p, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, nil
}
