package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/signbank/internal/capture"
	"github.com/roach88/signbank/internal/logging"
	"github.com/roach88/signbank/internal/server"
)

// shutdownTimeout bounds how long serve waits for in-flight requests.
const shutdownTimeout = 30 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the export and capture HTTP API",
		Long: `Serve the HTTP API until interrupted:

  GET  /health
  POST /api/dataset/export?fix=true|false
  GET  /api/dataset/exports?limit=n
  POST /upload/camera

Example:
  signbank serve --listen 0.0.0.0:8000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
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

	settings := server.SettingsFromConfig(e.cfg)
	if opts.Listen != "" {
		settings.Addr = opts.Listen
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	capt := capture.NewService(e.store, cat, e.cfg.ExpectedT, e.cfg.ExpectedD,
		capture.WithLogger(logging.New("capture")))
	srv := server.New(settings, e.exporter(cat),
		server.WithCapturer(capt),
		server.WithHistory(cat),
		server.WithLogger(logging.New("server")),
	)
	if err := srv.Start(ctx); err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeGeneric, "failed to start server", err, nil)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", srv.BaseURL())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Wait)
	g.Go(func() error {
		<-gctx.Done()
		e.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeGeneric, "server stopped", err, nil)
	}
	return nil
}
