package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBatch signals a malformed batch request (empty or duplicate ids).
	ErrInvalidBatch = errors.New("invalid batch")
	// ErrSubmission signals that the backend rejected the upload or job start.
	ErrSubmission = errors.New("batch submission failed")
	// ErrJobFailed signals the backend reported the batch job as failed.
	ErrJobFailed = errors.New("batch job failed")
	// ErrJobStopped signals the backend cancelled or expired the batch job.
	ErrJobStopped = errors.New("batch job stopped")
	// ErrFetch signals the output artifact could not be retrieved or decoded.
	ErrFetch = errors.New("result fetch failed")
	// ErrNoResult marks an input item the backend returned no output line for.
	ErrNoResult = errors.New("no result returned for this item")

	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrClassifierUnavailable signals the fast classifier service is unreachable.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrContextualProviderError signals a contextual analysis provider failure.
	ErrContextualProviderError = errors.New("contextual provider error")
)

// JobFailedError wraps ErrJobFailed with the backend's error detail.
type JobFailedError struct {
	JobName string
	Detail  string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("%s: job %s: %s", ErrJobFailed.Error(), e.JobName, e.Detail)
}

func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

// NewJobFailed creates a job failure error carrying the backend detail.
func NewJobFailed(jobName, detail string) error {
	return &JobFailedError{JobName: jobName, Detail: detail}
}

// JobStoppedError wraps ErrJobStopped with the terminal state the job ended in.
type JobStoppedError struct {
	JobName string
	State   JobState
}

func (e *JobStoppedError) Error() string {
	return fmt.Sprintf("%s: job %s: state %s", ErrJobStopped.Error(), e.JobName, e.State)
}

func (e *JobStoppedError) Unwrap() error { return ErrJobStopped }

// NewJobStopped creates a job stopped error for a cancelled or expired job.
func NewJobStopped(jobName string, state JobState) error {
	return &JobStoppedError{JobName: jobName, State: state}
}
