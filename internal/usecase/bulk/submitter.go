package bulk

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
)

// Submitter uploads an encoded request document and starts the batch job.
type Submitter struct {
	files            FileStore
	jobs             JobStarter
	filePollInterval time.Duration
	logger           *zap.Logger
}

// NewSubmitter creates a submitter. filePollInterval controls how often the
// uploaded artifact's readiness is checked.
func NewSubmitter(files FileStore, jobs JobStarter, filePollInterval time.Duration, logger *zap.Logger) *Submitter {
	if filePollInterval <= 0 {
		filePollInterval = time.Second
	}
	return &Submitter{files: files, jobs: jobs, filePollInterval: filePollInterval, logger: logger}
}

// Submit writes the document to a transient local file, uploads it, waits
// for the backend to finish validating it, and starts the job. The local
// file is removed on every exit path. All failures wrap domain.ErrSubmission.
func (s *Submitter) Submit(ctx context.Context, batchID string, document []byte) (domain.BatchJob, error) {
	tmp, err := os.CreateTemp("", "toxgate-batch-*.jsonl")
	if err != nil {
		return domain.BatchJob{}, fmt.Errorf("create temp document: %v: %w", err, domain.ErrSubmission)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			s.logger.Warn("failed to remove temp document", zap.String("path", tmpPath), zap.Error(err))
		}
	}()

	if _, err := tmp.Write(document); err != nil {
		_ = tmp.Close()
		return domain.BatchJob{}, fmt.Errorf("write temp document: %v: %w", err, domain.ErrSubmission)
	}
	if err := tmp.Close(); err != nil {
		return domain.BatchJob{}, fmt.Errorf("close temp document: %v: %w", err, domain.ErrSubmission)
	}

	file, err := s.files.UploadFile(ctx, tmpPath)
	if err != nil {
		return domain.BatchJob{}, fmt.Errorf("upload document: %v: %w", err, domain.ErrSubmission)
	}
	s.logger.Info("batch document uploaded",
		zap.String("batch_id", batchID),
		zap.String("file", file.Name),
		zap.String("state", file.State),
	)

	file, err = s.waitFileReady(ctx, file)
	if err != nil {
		return domain.BatchJob{}, fmt.Errorf("wait for document activation: %v: %w", err, domain.ErrSubmission)
	}

	jobName, err := s.jobs.CreateBatchJob(ctx, "toxgate-"+batchID, file.Name)
	if err != nil {
		return domain.BatchJob{}, fmt.Errorf("start batch job: %v: %w", err, domain.ErrSubmission)
	}
	s.logger.Info("batch job started",
		zap.String("batch_id", batchID),
		zap.String("job", jobName),
	)

	return domain.BatchJob{
		Name:         jobName,
		InputFileRef: file.Name,
		State:        domain.JobProcessing,
	}, nil
}

// waitFileReady polls the uploaded file until it leaves the backend's
// validation state.
func (s *Submitter) waitFileReady(ctx context.Context, file domain.BackendFile) (domain.BackendFile, error) {
	ticker := time.NewTicker(s.filePollInterval)
	defer ticker.Stop()

	for file.State == domain.WireFileProcessing {
		select {
		case <-ctx.Done():
			return domain.BackendFile{}, ctx.Err()
		case <-ticker.C:
		}

		refreshed, err := s.files.GetFile(ctx, file.Name)
		if err != nil {
			return domain.BackendFile{}, err
		}
		file = refreshed
	}
	return file, nil
}
