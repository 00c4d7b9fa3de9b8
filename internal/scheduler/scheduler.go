// Package scheduler owns the outer job loop and its run-state: the
// one-run-at-a-time guard and the config-logged-once flag live here as
// explicit fields, not package globals.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LongHE173420/AutoEric/internal/model"
)

// Job is one batch run.
type Job interface {
	Run(ctx context.Context, deviceID string) (model.Summary, error)
}

// Scheduler repeats the job on an interval, skipping ticks that land while a
// run is still in flight.
type Scheduler struct {
	job      Job
	deviceID string
	interval time.Duration
	runOnce  bool
	log      *zap.Logger

	// one-time config snapshot, logged on the first run
	configFields []zap.Field

	out io.Writer // terminal summary line

	mu           sync.Mutex
	running      bool
	configLogged bool
}

// New constructs a Scheduler. configFields are logged once, before the first
// run.
func New(job Job, deviceID string, interval time.Duration, runOnce bool, configFields []zap.Field, log *zap.Logger) *Scheduler {
	return &Scheduler{
		job:          job,
		deviceID:     deviceID,
		interval:     interval,
		runOnce:      runOnce,
		configFields: configFields,
		log:          log,
		out:          os.Stdout,
	}
}

// SetOutput redirects the terminal summary line (tests).
func (s *Scheduler) SetOutput(w io.Writer) { s.out = w }

// Start runs the job immediately and then on every interval tick until the
// context is cancelled. With runOnce set it returns after the first run.
func (s *Scheduler) Start(ctx context.Context) {
	s.RunNow(ctx, "startup")
	if s.runOnce {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunNow(ctx, "interval")
		}
	}
}

// RunNow triggers one run unless another is already in flight.
func (s *Scheduler) RunNow(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug("run skipped, previous run still in flight", zap.String("reason", reason))
		return
	}
	s.running = true
	logConfig := !s.configLogged
	s.configLogged = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if logConfig {
		s.log.Debug("worker config", s.configFields...)
	}

	s.log.Debug("job start", zap.String("reason", reason))
	summary, err := s.job.Run(ctx, s.deviceID)
	if err != nil {
		s.log.Error("job failed", zap.String("reason", reason), zap.Error(err))
	} else {
		s.log.Debug("job done", zap.String("reason", reason))
	}

	fmt.Fprintf(s.out, "LOGIN summary: success=%d alreadyOk=%d relogin=%d fail=%d\n",
		summary.Success, summary.AlreadyOK, summary.Relogin, summary.Fail)
}
