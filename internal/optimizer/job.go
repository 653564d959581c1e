package optimizer

import (
	"context"
	"time"
)

// AnalysisJob re-exports analysis artifacts for every strategy on a schedule.
type AnalysisJob struct {
	svc     *Service
	timeout time.Duration
}

// NewAnalysisJob wraps svc; each run is bounded by timeout (0 means no bound).
func NewAnalysisJob(svc *Service, timeout time.Duration) *AnalysisJob {
	return &AnalysisJob{svc: svc, timeout: timeout}
}

// Name identifies the job in scheduler logs.
func (j *AnalysisJob) Name() string { return "reanalyze" }

// Run exports every strategy once.
func (j *AnalysisJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	n, err := j.svc.Reanalyze(ctx)
	if err != nil {
		return err
	}
	j.svc.log.Info().Int("strategies", n).Msg("reanalysis complete")
	return nil
}
