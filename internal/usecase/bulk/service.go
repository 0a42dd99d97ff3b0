package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
	"github.com/toxgate-io/toxgate/internal/metrics"
)

// Service runs the full bulk analysis pipeline: encode the batch, submit
// it to the backend, wait for a terminal state, fetch the output document
// and reconcile it against the input.
type Service struct {
	encoder      *Encoder
	submitter    *Submitter
	poller       *Poller
	fetcher      *Fetcher
	reconciler   *Reconciler
	records      JobRecorder
	model        string
	maxBatchSize int
	logger       *zap.Logger
}

// NewService wires the pipeline components together.
func NewService(
	encoder *Encoder,
	submitter *Submitter,
	poller *Poller,
	fetcher *Fetcher,
	reconciler *Reconciler,
	records JobRecorder,
	model string,
	maxBatchSize int,
	logger *zap.Logger,
) *Service {
	return &Service{
		encoder:      encoder,
		submitter:    submitter,
		poller:       poller,
		fetcher:      fetcher,
		reconciler:   reconciler,
		records:      records,
		model:        model,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// AnalyzeBatch processes items end to end and returns one result per input
// item in the input order. The call blocks until the backend job reaches a
// terminal state or ctx is done.
func (s *Service) AnalyzeBatch(ctx context.Context, items []domain.BatchItem) (domain.BatchReport, error) {
	if s.maxBatchSize > 0 && len(items) > s.maxBatchSize {
		return domain.BatchReport{}, fmt.Errorf(
			"batch of %d items exceeds the limit of %d: %w",
			len(items), s.maxBatchSize, domain.ErrInvalidBatch,
		)
	}

	batchID := uuid.NewString()
	log := s.logger.With(
		zap.String("batch_id", batchID),
		zap.Int("item_count", len(items)),
	)
	started := time.Now()

	document, err := s.encoder.Encode(items)
	if err != nil {
		return domain.BatchReport{}, err
	}

	log.Info("submitting batch")
	s.record(ctx, log, domain.JobRecord{
		BatchID:   batchID,
		Model:     s.model,
		State:     domain.JobUploading,
		ItemCount: len(items),
	})

	job, err := s.submitter.Submit(ctx, batchID, document)
	if err != nil {
		metrics.BatchJobsTotal.WithLabelValues(s.model, "submission_error").Inc()
		s.record(ctx, log, domain.JobRecord{
			BatchID:   batchID,
			Model:     s.model,
			State:     domain.JobStateFailed,
			ItemCount: len(items),
			Detail:    err.Error(),
		})
		return domain.BatchReport{}, err
	}

	log.Info("batch job created", zap.String("job_name", job.Name))
	s.record(ctx, log, domain.JobRecord{
		BatchID:   batchID,
		JobName:   job.Name,
		Model:     s.model,
		State:     job.State,
		ItemCount: len(items),
	})

	if err := s.poller.Wait(ctx, &job); err != nil {
		metrics.BatchJobsTotal.WithLabelValues(s.model, outcomeLabel(err)).Inc()
		s.record(ctx, log, domain.JobRecord{
			BatchID:   batchID,
			JobName:   job.Name,
			Model:     s.model,
			State:     job.State,
			ItemCount: len(items),
			Detail:    err.Error(),
		})
		return domain.BatchReport{}, err
	}

	outputText, err := s.fetcher.Fetch(ctx, job.OutputFileRef)
	if err != nil {
		metrics.BatchJobsTotal.WithLabelValues(s.model, "fetch_error").Inc()
		s.record(ctx, log, domain.JobRecord{
			BatchID:   batchID,
			JobName:   job.Name,
			Model:     s.model,
			State:     domain.JobStateFailed,
			ItemCount: len(items),
			Detail:    err.Error(),
		})
		return domain.BatchReport{}, err
	}

	results := s.reconciler.Reconcile(ctx, outputText, items)
	analyzed, errored := countOutcomes(results)

	metrics.BatchJobsTotal.WithLabelValues(s.model, "succeeded").Inc()
	metrics.BatchJobDuration.WithLabelValues(s.model).Observe(time.Since(started).Seconds())

	log.Info("batch reconciled",
		zap.Int("analyzed", analyzed),
		zap.Int("errored", errored),
		zap.Duration("elapsed", time.Since(started)),
	)
	s.record(ctx, log, domain.JobRecord{
		BatchID:   batchID,
		JobName:   job.Name,
		Model:     s.model,
		State:     domain.JobSucceeded,
		ItemCount: len(items),
		Analyzed:  analyzed,
		Errored:   errored,
	})

	return domain.BatchReport{
		BatchID:        batchID,
		Results:        results,
		TotalProcessed: len(results),
		Status:         "completed",
	}, nil
}

// record persists a snapshot; persistence problems are logged, never fatal.
func (s *Service) record(ctx context.Context, log *zap.Logger, rec domain.JobRecord) {
	if s.records == nil {
		return
	}
	rec.UpdatedAt = time.Now().UnixMilli()
	if err := s.records.Record(ctx, rec); err != nil {
		log.Warn("failed to record batch snapshot", zap.Error(err))
	}
}

func countOutcomes(results []domain.AnalyzedItem) (analyzed, errored int) {
	missingDetail := domain.ErrNoResult.Error()
	for _, r := range results {
		switch {
		case r.Analysis != nil:
			analyzed++
			metrics.BatchItemsTotal.WithLabelValues("analyzed").Inc()
		case r.Error == missingDetail:
			errored++
			metrics.BatchItemsTotal.WithLabelValues("missing").Inc()
		default:
			errored++
			metrics.BatchItemsTotal.WithLabelValues("item_error").Inc()
		}
	}
	return analyzed, errored
}

func outcomeLabel(err error) string {
	var stopped *domain.JobStoppedError
	switch {
	case errors.Is(err, domain.ErrJobFailed):
		return "failed"
	case errors.As(err, &stopped) && stopped.State == domain.JobExpired:
		return "expired"
	case errors.Is(err, domain.ErrJobStopped):
		return "cancelled"
	default:
		return "failed"
	}
}
