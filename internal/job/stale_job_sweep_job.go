package job

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultStaleAfter = time.Hour

type staleFailer interface {
	FailStale(ctx context.Context, cutoff, now int64, reason string) (int64, error)
}

// StaleJobSweepJob fails analysis jobs that stopped making progress, e.g.
// after a restart killed their goroutine.
type StaleJobSweepJob struct {
	jobs       staleFailer
	staleAfter time.Duration
	now        func() time.Time
}

func NewStaleJobSweepJob(jobs staleFailer, staleAfter time.Duration) *StaleJobSweepJob {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &StaleJobSweepJob{jobs: jobs, staleAfter: staleAfter, now: time.Now}
}

func (j *StaleJobSweepJob) Name() string {
	return "stale_job_sweep"
}

func (j *StaleJobSweepJob) Run(ctx context.Context) error {
	if j.jobs == nil {
		return nil
	}
	now := j.now()
	reason := fmt.Sprintf("no progress for %s", j.staleAfter)
	failed, err := j.jobs.FailStale(ctx, now.Add(-j.staleAfter).Unix(), now.Unix(), reason)
	if err != nil {
		return err
	}
	if failed > 0 {
		logutil.GetLogger(ctx).Warn("stale analysis jobs failed", zap.Int64("count", failed))
	}
	return nil
}
