package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/signbank/internal/catalog"
	"github.com/roach88/signbank/internal/config"
	"github.com/roach88/signbank/internal/export"
	"github.com/roach88/signbank/internal/logging"
	"github.com/roach88/signbank/internal/merge"
	"github.com/roach88/signbank/internal/sample"
	"github.com/roach88/signbank/internal/scan"
	"github.com/roach88/signbank/internal/validate"
)

// env is the pipeline wiring shared by every command. store is nil until
// openStore is called.
type env struct {
	cfg       *config.Config
	out       *OutputFormatter
	logger    *slog.Logger
	store     *sample.FileStore
	scanner   *scan.Scanner
	validator *validate.Validator
}

// newFormatter builds the formatter for a command invocation.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Logs and verbose lines go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadEnv resolves configuration, configures logging and builds the
// scanner and a read-only validator. It never touches the features
// directory. Failures are reported through the formatter and returned as
// ExitErrors.
func loadEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	out := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err, nil)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "invalid log level", err, nil)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logging.Init(level, cfg.LogFormat, cmd.ErrOrStderr())

	scanner := scan.New(logging.New("scan"))

	out.VerboseLog("features: %s", cfg.FeaturesDir)
	out.VerboseLog("output:   %s", cfg.OutputDir)
	out.VerboseLog("schema:   T=%d D=%d", cfg.ExpectedT, cfg.ExpectedD)

	return &env{
		cfg:       cfg,
		out:       out,
		logger:    logging.New("cli"),
		scanner:   scanner,
		validator: validate.New(scanner, nil, logging.New("validate")),
	}, nil
}

// openStore creates the features directory and gives the validator a
// rewriter. Only commands that write samples call it.
func (e *env) openStore() error {
	if e.store != nil {
		return nil
	}
	store, err := sample.NewFileStore(e.cfg.FeaturesDir)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeNotFound, "features directory unusable", err, nil)
	}
	e.store = store
	e.validator = validate.New(e.scanner, store, logging.New("validate"))
	return nil
}

// openCatalog opens the SQLite catalog named by the configuration.
func (e *env) openCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Open(e.cfg.Database)
	if err != nil {
		return nil, e.out.Fail(ExitCommandError, ErrCodeCatalog, "failed to open catalog", err, nil)
	}
	return cat, nil
}

// closeCatalog logs a failing close; commands have already produced output.
func (e *env) closeCatalog(cat *catalog.Catalog) {
	if err := cat.Close(); err != nil {
		e.logger.Error("error closing catalog", "error", err)
	}
}

// exporter wires the orchestrator. rec may be nil.
func (e *env) exporter(rec export.Recorder) *export.Exporter {
	opts := []export.Option{export.WithLogger(logging.New("export"))}
	if rec != nil {
		opts = append(opts, export.WithRecorder(rec))
	}
	return export.New(
		export.Settings{
			SourceDir: e.cfg.FeaturesDir,
			OutputDir: e.cfg.OutputDir,
			ExpectedT: e.cfg.ExpectedT,
			ExpectedD: e.cfg.ExpectedD,
		},
		e.validator,
		e.scanner,
		merge.New(logging.New("merge")),
		opts...,
	)
}

// policy is the validation policy implied by the configuration.
func (e *env) policy(fix bool) validate.Policy {
	return validate.Policy{ExpectedT: e.cfg.ExpectedT, ExpectedD: e.cfg.ExpectedD, Fix: fix}
}
