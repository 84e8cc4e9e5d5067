// Package scheduler runs the periodic lifecycle sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/metrics"
	"github.com/fossbin/propease/internal/services"
)

// Sweeper is the ledger operation the scheduler drives.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (services.SweepReport, error)
}

// Scheduler triggers Sweep on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	sweeper Sweeper
	log     *logger.Logger
	now     func() time.Time
}

// New validates spec and builds a Scheduler. spec accepts standard five-field
// cron expressions and descriptors such as "@every 1h".
func New(spec string, sweeper Sweeper, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("scheduler")

	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		spec:    spec,
		sweeper: sweeper,
		log:     log,
		now:     time.Now,
	}, nil
}

// RunOnce performs a single sweep and records its metrics.
func (s *Scheduler) RunOnce(ctx context.Context) (services.SweepReport, error) {
	start := time.Now()
	report, err := s.sweeper.Sweep(ctx, s.now())
	metrics.RecordSweep(time.Since(start), report.Expired, err)
	return report, err
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// a running sweep to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("Scheduled sweep failed", err, nil)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.log.Info("Sweep scheduler started", logger.Fields{"schedule": s.spec})
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("Sweep scheduler stopped", nil)
	return nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, fields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, err, fields(keysAndValues))
}

func fields(keysAndValues []interface{}) logger.Fields {
	out := make(logger.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
