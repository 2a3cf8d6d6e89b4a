package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gigradar/common/telemetry"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("gigradar/scheduler")

// Job is a periodic task. A disabled job has a non-positive Interval.
type Job struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type entry struct {
	job     Job
	wrapped cron.Job
}

// Scheduler runs Jobs on fixed intervals. A job still running when its
// next tick fires skips that tick.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	entries []entry
	ctx     context.Context
	cancel  context.CancelFunc
	active  bool
}

func New(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		logger: logger,
	}
}

func (s *Scheduler) Add(job Job) error {
	if job.Interval <= 0 {
		s.logger.Info("scheduled job disabled", zap.String("job", job.Name))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{job: job}
	e.wrapped = cron.NewChain(cron.SkipIfStillRunning(cronLogger{logger: s.logger})).
		Then(cron.FuncJob(func() { s.run(job) }))

	if _, err := s.cron.AddJob(fmt.Sprintf("@every %s", job.Interval), e.wrapped); err != nil {
		return fmt.Errorf("scheduling %s: %w", job.Name, err)
	}
	s.entries = append(s.entries, e)
	s.logger.Info("scheduled job",
		zap.String("job", job.Name),
		zap.Duration("interval", job.Interval))
	return nil
}

func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	ctx, span := tracer.Start(ctx, "Scheduler.run")
	defer span.End()
	span.SetAttributes(telemetry.String("job", job.Name))

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		span.RecordError(err)
		s.logger.Error("scheduled job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	s.logger.Debug("scheduled job finished",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(start)))
}

// Start begins ticking and immediately runs jobs marked RunOnStart.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	entries := append([]entry(nil), s.entries...)
	s.mu.Unlock()

	for _, e := range entries {
		if e.job.RunOnStart {
			go e.wrapped.Run()
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(entries)))
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.cancel()
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
