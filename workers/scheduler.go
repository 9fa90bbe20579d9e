package workers

import (
	"context"
	"fmt"
	"time"

	"badge-engine/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// WindowRetention is how long daily/weekly/monthly stat buckets are kept.
const WindowRetention = 62 * 24 * time.Hour

// Schedule holds the timing of every background job.
type Schedule struct {
	SweepInterval   time.Duration
	RetuneCron      string
	SeasonInterval  time.Duration
	StreakResetCron string
}

// Scheduler runs the engine's periodic jobs. Each job is also exported as a
// method so the CLI and tests can trigger a single run.
type Scheduler struct {
	Engine *services.Engine
	Log    *zap.Logger

	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(engine *services.Engine, schedule Schedule, log *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(gocronLogger{log.Sugar()}),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{Engine: engine, Log: log, sched: sched, ctx: ctx, cancel: cancel}

	jobs := []struct {
		name string
		def  gocron.JobDefinition
		fn   func(context.Context)
	}{
		{"dynamic-rule-sweep", gocron.DurationJob(schedule.SweepInterval), s.wrap(s.RunSweep)},
		{"difficulty-retune", gocron.CronJob(schedule.RetuneCron, false), s.wrap(s.RunRetune)},
		{"season-check", gocron.DurationJob(schedule.SeasonInterval), s.wrap(s.RunSeasonCheck)},
		{"streak-reset", gocron.CronJob(schedule.StreakResetCron, false), s.wrap(s.RunStreakReset)},
	}
	for _, j := range jobs {
		fn := j.fn
		_, err := sched.NewJob(j.def,
			gocron.NewTask(func() { fn(s.ctx) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = sched.Shutdown()
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	for _, j := range s.sched.Jobs() {
		next, _ := j.NextRun()
		s.Log.Info("[SCHEDULER] job registered", zap.String("job", j.Name()), zap.Time("next_run", next))
	}
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

// wrap logs a job's error instead of letting it reach gocron.
func (s *Scheduler) wrap(job func(context.Context) error) func(context.Context) {
	return func(ctx context.Context) {
		if err := job(ctx); err != nil {
			s.Log.Error("[SCHEDULER] job failed", zap.Error(err))
		}
	}
}

// RunSweep runs one rule sweep. The engine logs the report.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	if _, err := s.Engine.SweepDynamicRules(ctx); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return nil
}

func (s *Scheduler) RunRetune(ctx context.Context) error {
	report, err := s.Engine.RetuneDifficulty(ctx)
	if err != nil {
		return fmt.Errorf("retune: %w", err)
	}
	s.Log.Info("[RETUNE] finished",
		zap.Int64("total_users", report.TotalUsers),
		zap.Strings("harder", report.Harder),
		zap.Strings("easier", report.Easier))
	return nil
}

func (s *Scheduler) RunSeasonCheck(ctx context.Context) error {
	if _, err := s.Engine.Seasons.CheckSeason(ctx); err != nil {
		return fmt.Errorf("season check: %w", err)
	}
	return nil
}

// RunStreakReset clears broken streaks and drops expired stat windows.
func (s *Scheduler) RunStreakReset(ctx context.Context) error {
	now := time.Now().UTC()
	if _, err := s.Engine.Streaks.ResetBroken(ctx, now); err != nil {
		return fmt.Errorf("streak reset: %w", err)
	}
	pruned, err := s.Engine.Stats.PruneWindows(ctx, now.Add(-WindowRetention))
	if err != nil {
		return fmt.Errorf("prune windows: %w", err)
	}
	if pruned > 0 {
		s.Log.Info("[SCHEDULER] pruned stat windows", zap.Int64("rows", pruned))
	}
	return nil
}

type gocronLogger struct {
	l *zap.SugaredLogger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debugw(msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Errorw(msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Infow(msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warnw(msg, args...) }
