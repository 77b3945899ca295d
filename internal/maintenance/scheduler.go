package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"captionstudio/internal/logging"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs maintenance passes on a cron schedule.
type Scheduler struct {
	runner   *Runner
	spec     string
	schedule cron.Schedule
	logger   *slog.Logger
	onReport func(Report, error)
}

// NewScheduler validates spec (five-field cron or a descriptor such as
// "@daily") and binds it to runner.
func NewScheduler(runner *Runner, spec string, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("maintenance schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		runner:   runner,
		spec:     spec,
		schedule: schedule,
		logger:   logging.NewComponentLogger(logger, "maintenance"),
	}, nil
}

// OnReport registers a callback invoked after every scheduled pass.
func (s *Scheduler) OnReport(fn func(Report, error)) {
	s.onReport = fn
}

// Next returns the next scheduled pass after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is cancelled, running a pass on every tick. Overlapping
// ticks are skipped. Run waits for an in-flight pass before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	adapter := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		report, err := s.runner.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			logging.WarnWithContext(s.logger, "maintenance pass incomplete", "maintenance_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale job history remains until the next pass"),
			)
		}
		if s.onReport != nil {
			s.onReport(report, err)
		}
	}))

	s.logger.Info("maintenance scheduler started",
		logging.String("schedule", s.spec),
		logging.String("next_run", s.Next(time.Now()).Format(time.RFC3339)),
	)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("maintenance scheduler stopped")
	return nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err)}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
