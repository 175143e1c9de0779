package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/legisync/am"
	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/cli"
	"github.com/teranos/legisync/db"
	"github.com/teranos/legisync/display"
	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/etl"
	"github.com/teranos/legisync/export"
	"github.com/teranos/legisync/jobs"
	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/period"
	"github.com/teranos/legisync/pulse"
	"github.com/teranos/legisync/runlog"
	"github.com/teranos/legisync/upstream"
	"github.com/teranos/legisync/version"
)

// loadConfig is replaced in tests
var loadConfig = am.Load

// NewJobCmd builds the command for one registered job. Flag parsing is left
// to cli.Parse so the job sees argv exactly as typed.
func NewJobCmd(entry jobs.Entry) *cobra.Command {
	return &cobra.Command{
		Use:                entry.Name + " [legislatura] [flags]",
		Short:              entry.Description,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return RunJob(ctx, entry, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// RunJob parses argv, wires the destination, runs the job and prints the
// summary. A run that failed or left chunks uncommitted returns an error.
func RunJob(ctx context.Context, entry jobs.Entry, args []string, stdout, stderr io.Writer) error {
	opts, warnings, err := cli.Parse(args)
	if errors.Is(err, cli.ErrHelp) {
		fmt.Fprint(stdout, entry.Usage())
		return nil
	}
	if err != nil {
		fmt.Fprintf(stderr, "%v\n\nRun 'legisync %s --ajuda' for usage.\n", err, entry.Name)
		return err
	}

	jsonOutput := opts.BoolFlag("json") || display.ShouldOutputJSON(nil)
	delete(opts.Extra, "json")

	verbosity := logger.VerbosityUser
	if opts.Verbose {
		verbosity = logger.VerbosityDebug
	}
	if err := logger.InitializeTo(stderr, jsonOutput, verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	log := logger.ChildLogger(logger.ComponentLogger("legisync"), logger.FieldJob, entry.Name)
	log.Debugw("Logging initialized", "verbosity", logger.LevelName(verbosity))
	for _, w := range warnings {
		log.Warnw("Argument warning", "warning", w)
	}

	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	jc, cleanup, err := NewJobContext(ctx, cfg, opts, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if jsonOutput {
		jc.Progress = pulse.MultiEmitter{pulse.NewJSONEmitter(stderr), pulse.NewLogEmitter(jc.Logger)}
	} else {
		jc.Progress = pulse.MultiEmitter{pulse.NewCLIEmitter(verbosity), pulse.NewLogEmitter(jc.Logger)}
	}

	ledger := openLedger(cfg, log)
	if ledger != nil {
		defer ledger.close()
	}

	report, runErr := entry.Runner.Run(ctx, jc)
	if ledger != nil {
		ledger.store.RecordQuietly(context.WithoutCancel(ctx), report)
	}

	if jsonOutput {
		if err := display.WriteJSON(stdout, report); err != nil {
			return err
		}
	} else if err := display.RenderReport(stdout, report); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if !report.Healthy() {
		return errors.Newf("%d of %d chunk(s) failed to commit", report.FailedChunks, len(report.Chunks))
	}
	return nil
}

// NewJobContext builds the context a job runs with: upstream client,
// period resolver and the sink for the chosen destination. cleanup releases
// whatever the sink holds open.
func NewJobContext(ctx context.Context, cfg *am.Config, opts etl.Options, log *zap.SugaredLogger) (*etl.JobContext, func(), error) {
	upCfg := upstream.ConfigFrom(cfg)
	if upCfg.UserAgent == "" || upCfg.UserAgent == "legisync" {
		upCfg.UserAgent = version.Get().UserAgent()
	}
	api, err := upstream.New(upCfg, logger.ComponentLogger("upstream"))
	if err != nil {
		return nil, nil, errors.Wrap(err, "upstream client")
	}

	jc := etl.NewJobContext(opts, etl.SettingsFrom(cfg), api)
	jc.Logger = log

	if path := cfg.Period.TableFile; path != "" {
		table, err := period.LoadTable(path)
		if err != nil {
			return nil, nil, err
		}
		jc.Periods = period.NewResolver(api, period.WithTable(table), period.WithLogger(log))
	}

	cleanup := func() {}
	if opts.DryRun {
		return jc, cleanup, nil
	}

	switch opts.Destination {
	case etl.DestinationStore, etl.DestinationEmulatedStore:
		emulated := opts.Destination == etl.DestinationEmulatedStore
		client, err := batch.OpenFirestore(ctx, cfg.Store, emulated)
		if err != nil {
			return nil, nil, err
		}
		backend := batch.NewFirestoreBackend(client, string(opts.Destination))
		jc.Writer = batch.New(backend, logger.ComponentLogger("batch"))
		cleanup = func() {
			if err := backend.Close(); err != nil {
				log.Warnw("Store client close failed", logger.FieldError, err.Error())
			}
		}
	case etl.DestinationMock:
		backend := batch.NewMemoryBackend(batch.WithLatency(cfg.Store.MockLatency()))
		jc.Writer = batch.New(backend, logger.ComponentLogger("batch"))
		cleanup = func() {
			log.Infow("Mock store contents", logger.FieldCount, backend.Len(), "commits", backend.Commits())
		}
	case etl.DestinationLocalFiles:
		jc.Exporter = export.NewOS(cfg.Export.BaseDir)
	}
	return jc, cleanup, nil
}

type ledger struct {
	store *runlog.Store
	close func()
}

// openLedger opens the run ledger; without it runs still proceed
func openLedger(cfg *am.Config, log *zap.SugaredLogger) *ledger {
	if cfg.Database.Path == "" {
		return nil
	}
	sqlDB, err := db.OpenWithMigrations(cfg.Database.Path, nil)
	if err != nil {
		log.Warnw("Run ledger unavailable", logger.FieldPath, cfg.Database.Path, logger.FieldError, err.Error())
		return nil
	}
	return &ledger{
		store: runlog.NewStore(sqlDB, logger.ComponentLogger("runlog")),
		close: func() { sqlDB.Close() },
	}
}
