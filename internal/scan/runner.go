// Package scan sequences one full run: parse the delta, sample and
// classify the targets, apply the exception policy, and emit the report.
package scan

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"deltascan/internal/config"
	"deltascan/internal/delta"
	"deltascan/internal/model"
	"deltascan/internal/report"
	"deltascan/internal/rules"
	"deltascan/internal/sampler"
	"deltascan/internal/suppress"

	"go.uber.org/zap"
)

type Runner struct {
	cfg    *config.Config
	logger *zap.SugaredLogger

	// connect is swapped out by tests; the default opens and pings a
	// real driver connection.
	connect func(driver, dsn string) (*sql.DB, error)
}

func NewRunner(cfg *config.Config, logger *zap.SugaredLogger) *Runner {
	return &Runner{
		cfg:     cfg,
		logger:  logger,
		connect: openAndPing,
	}
}

func openAndPing(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Run executes one scan and returns the process exit status. The stages
// are strictly sequential; there is no retry and no resumption.
func (r *Runner) Run(ctx context.Context) (status int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorw("unhandled fault", "panic", rec)
			status = report.ExitUnhandledFault
		}
	}()

	started := time.Now()

	if err := r.cfg.Validate(); err != nil {
		// Configuration failures never produce a partial report.
		r.logger.Errorw("invalid configuration", "error", err)
		return report.ExitInvalidConfig
	}

	deltaText, err := os.ReadFile(r.cfg.DeltaPath)
	if err != nil {
		err = model.NewScanError(model.ErrCodeDeltaUnreadable,
			fmt.Sprintf("reading delta script %s", r.cfg.DeltaPath), err)
		r.logger.Errorw("cannot read delta script", "error", err)
		return report.ExitInvalidConfig
	}

	parser := delta.NewParser(r.cfg.DefaultSchema, r.cfg.ParseTimeout, r.logger)
	targets, err := parser.Parse(string(deltaText))
	if err != nil {
		r.logger.Errorw("delta parsing failed", "code", model.ErrCode(err), "error", err)
		return report.ExitUnhandledFault
	}

	if len(targets) == 0 {
		// Nothing to scan is a valid outcome; report success without
		// touching the database.
		r.logger.Infow("delta introduces no columns, nothing to scan")
		return r.finish(nil, nil, started)
	}
	r.logger.Infow("delta parsed", "targets", len(targets))

	library := rules.NewLibrary(r.logger)
	custom, err := rules.LoadCustomPatterns(r.cfg.PatternsPath)
	if err != nil {
		r.logger.Errorw("cannot load custom patterns", "error", err)
		return report.ExitInvalidConfig
	}
	if err := library.Initialize(custom); err != nil {
		r.logger.Errorw("rule library initialization failed", "error", err)
		return report.ExitUnhandledFault
	}

	policy, err := suppress.LoadPolicy(r.cfg.PolicyPath)
	if err != nil {
		r.logger.Errorw("cannot load exception policy", "error", err)
		return report.ExitInvalidConfig
	}

	dialect, err := sampler.ParseDialect(r.cfg.Connection.Driver)
	if err != nil {
		r.logger.Errorw("invalid dialect", "error", err)
		return report.ExitInvalidConfig
	}

	dsn, err := r.cfg.ResolveDSN()
	if err != nil {
		r.logger.Errorw("cannot resolve connection secret", "code", model.ErrCode(err), "error", err)
		return report.ExitConnectionFailure
	}

	db, err := r.connect(dialect.DriverName(), dsn)
	if err != nil {
		r.logger.Errorw("database connection failed", "error",
			model.NewScanError(model.ErrCodeConnectionFailed, "opening database connection", err))
		return report.ExitConnectionFailure
	}
	defer db.Close()

	s := sampler.New(db, dialect, r.logger,
		sampler.WithSampleSize(r.cfg.SampleSize),
		sampler.WithQueryTimeout(r.cfg.QueryTimeout),
		sampler.WithWorkers(r.cfg.Workers),
	)

	var violations []model.Violation
	for _, tr := range s.Scan(ctx, targets, library) {
		if tr.Skipped {
			continue
		}
		violations = append(violations, tr.Violations...)
	}

	active, suppressed := suppress.Apply(violations, policy)
	return r.finish(active, suppressed, started)
}

func (r *Runner) finish(active []model.Violation, suppressed []suppress.Suppressed, started time.Time) int {
	if r.cfg.ForceContinue && len(active) > 0 {
		r.logger.Warnw("forced continuation override active",
			"activeViolations", len(active), "reason", r.cfg.ForceReason)
	}

	rep, exit := report.Build(active, suppressed, r.cfg.ForceContinue, r.cfg.ForceReason, time.Since(started))
	if err := rep.Write(r.cfg.OutputPath); err != nil {
		r.logger.Errorw("cannot write report artifact", "error", err)
		return report.ExitUnhandledFault
	}
	report.PrintSummary(os.Stderr, rep)
	return exit
}
