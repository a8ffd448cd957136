package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/neexbeast/tripsync/internal/provider"
)

const runTimeout = 5 * time.Minute

// Scheduler runs a Job on a cron schedule evaluated in KST.
type Scheduler struct {
	cron *cron.Cron
	job  *Job
	log  *slog.Logger
}

// NewScheduler parses spec (standard five-field cron or a descriptor such as
// "@every 10m") and registers the job.
func NewScheduler(spec string, job *Job, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(provider.KST)),
		job:  job,
		log:  log,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("scheduling refresh %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the job in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further runs and waits for a running one to finish or for
// ctx to end, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("refresh still running at shutdown")
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.job.Run(ctx)
	if err != nil {
		s.log.Error("refresh run aborted", "updated", n, "err", err)
		return
	}
	s.log.Info("refresh run finished", "updated", n, "duration_ms", time.Since(start).Milliseconds())
}
