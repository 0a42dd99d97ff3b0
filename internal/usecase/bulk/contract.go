package bulk

import (
	"context"

	"github.com/toxgate-io/toxgate/internal/domain"
)

// FileStore uploads request documents and retrieves result artifacts.
type FileStore interface {
	UploadFile(ctx context.Context, path string) (domain.BackendFile, error)
	GetFile(ctx context.Context, name string) (domain.BackendFile, error)
	DownloadFile(ctx context.Context, name string) ([]byte, error)
}

// JobStarter starts an asynchronous batch job over an uploaded document.
type JobStarter interface {
	CreateBatchJob(ctx context.Context, displayName, inputFile string) (string, error)
}

// JobReader fetches the current backend status of a batch job.
type JobReader interface {
	GetBatchJob(ctx context.Context, name string) (domain.JobStatus, error)
}

// JobRecorder persists batch snapshots for later lookup. Recording is
// best-effort; failures never abort a pipeline.
type JobRecorder interface {
	Record(ctx context.Context, rec domain.JobRecord) error
}
