package bulk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
	"github.com/toxgate-io/toxgate/internal/metrics"
)

// DefaultPollInterval is the pause between job status checks.
const DefaultPollInterval = 5 * time.Second

// Poller drives a batch job to a terminal state by re-fetching its backend
// status on a fixed interval. It imposes no deadline of its own; callers
// bound the wait through ctx.
type Poller struct {
	jobs     JobReader
	interval time.Duration
	model    string
	logger   *zap.Logger
}

// NewPoller creates a poller. interval <= 0 selects DefaultPollInterval.
func NewPoller(jobs JobReader, interval time.Duration, model string, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{jobs: jobs, interval: interval, model: model, logger: logger}
}

// Wait polls until the job reaches a terminal state, mutating it in place.
// Succeeded jobs get their OutputFileRef recorded. Failed jobs return a
// *domain.JobFailedError; cancelled/expired jobs a *domain.JobStoppedError.
// Any unrecognized backend state is treated as still running.
func (p *Poller) Wait(ctx context.Context, job *domain.BatchJob) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		status, err := p.jobs.GetBatchJob(ctx, job.Name)
		if err != nil {
			return fmt.Errorf("poll job %s: %w", job.Name, err)
		}
		metrics.BatchPollTicks.WithLabelValues(p.model).Inc()

		done, err := p.transition(job, status)
		if done || err != nil {
			return err
		}

		p.logger.Debug("batch job still running",
			zap.String("job", job.Name),
			zap.String("backend_state", status.State),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// transition applies one observed backend status to the job. It is a pure
// state-transition function: (job, status) -> (done, error).
func (p *Poller) transition(job *domain.BatchJob, status domain.JobStatus) (bool, error) {
	switch status.State {
	case domain.WireJobSucceeded:
		job.State = domain.JobSucceeded
		job.OutputFileRef = status.OutputFile
		return true, nil
	case domain.WireJobFailed:
		job.State = domain.JobStateFailed
		job.Detail = status.Detail
		return true, domain.NewJobFailed(job.Name, status.Detail)
	case domain.WireJobCancelled, domain.WireJobExpired:
		job.State = domain.JobStateFromWire(status.State)
		return true, domain.NewJobStopped(job.Name, job.State)
	default:
		job.State = domain.JobProcessing
		return false, nil
	}
}
