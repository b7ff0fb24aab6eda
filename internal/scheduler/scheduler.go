// Package scheduler fires a job on a fixed interval using robfig/cron.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs job every interval until stopped. Ticks are not coalesced:
// a slow job does not delay or suppress the next tick.
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
	job      func()
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
}

// New returns a stopped scheduler. cron rounds intervals below one second up to one second.
func New(interval time.Duration, job func(), logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{l: logger.Sugar()}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		interval: interval,
		job:      job,
		logger:   logger,
	}
}

// Start schedules the job. The first run happens one interval from now.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.entry = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.job))
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancels future ticks without waiting for a running job. The returned
// context is done once any running job has returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.running = false
	s.cron.Remove(s.entry)
	s.logger.Info("scheduler stopped")
	return s.cron.Stop()
}

// Next returns the time of the next tick, or zero when stopped.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// cronLogger adapts zap to cron.Logger. cron's info chatter goes to debug.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
