package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/metrics"
)

const defaultSchedule = "@every 15m"

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Schedule is a standard five-field cron expression or an @every/@hourly
	// descriptor.
	Schedule string
}

// Service runs every registered job, in order, once per schedule tick. Only
// the replica holding Lock does work in a given tick.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	spec     string
	schedule robfigcron.Schedule
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	spec := params.Schedule
	if spec == "" {
		spec = defaultSchedule
	}
	schedule, err := robfigcron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		spec:     spec,
		schedule: schedule,
	}, nil
}

// Run does one cycle right away, then hands the schedule to a robfig
// scheduler until ctx ends. Overlapping ticks are skipped.
func (s *Service) Run(ctx context.Context) error {
	s.tick(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	clog := cronLogger{ctx: ctx, logg: s.logg}
	sched := robfigcron.New(
		robfigcron.WithLocation(time.UTC),
		robfigcron.WithLogger(clog),
		robfigcron.WithChain(robfigcron.Recover(clog), robfigcron.SkipIfStillRunning(clog)),
	)
	sched.Schedule(s.schedule, robfigcron.FuncJob(func() { s.tick(ctx) }))
	sched.Start()
	s.logg.Info(s.logg.WithField(ctx, "schedule", s.spec), "cron scheduler started")

	<-ctx.Done()
	<-sched.Stop().Done()
	s.logg.Info(ctx, "cron scheduler stopped")
	return ctx.Err()
}

func (s *Service) tick(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	jobs := s.registry.Jobs()

	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		for _, job := range jobs {
			s.metrics.IncSkipped(job.Name())
		}
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	started := time.Now()
	failed := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.runJob(ctx, job) {
			failed++
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        len(jobs),
		"failed":      failed,
		"duration_ms": time.Since(started).Milliseconds(),
	}), "scheduled run complete")
	return nil
}

// runJob reports whether job succeeded. A panicking job counts as failed and
// does not stop the jobs after it.
func (s *Service) runJob(ctx context.Context, job Job) (ok bool) {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.finish(jobCtx, name, started, fmt.Errorf("job panicked: %v", r))
			ok = false
		}
	}()

	err := job.Run(jobCtx)
	s.finish(jobCtx, name, started, err)
	return err == nil
}

func (s *Service) finish(ctx context.Context, name string, started time.Time, err error) {
	took := time.Since(started)
	s.metrics.ObserveDuration(name, took)
	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(ctx, "job failed", err)
		return
	}
	s.metrics.IncSuccess(name)
	s.logg.Info(ctx, "job completed")
}

// cronLogger adapts the service logger to robfig's logging interface.
type cronLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l cronLogger) Info(msg string, kv ...any) {
	l.logg.Debug(l.logg.WithFields(l.ctx, pairs(kv)), "robfig: "+msg)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.logg.Error(l.logg.WithFields(l.ctx, pairs(kv)), "robfig: "+msg, err)
}

func pairs(kv []any) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
