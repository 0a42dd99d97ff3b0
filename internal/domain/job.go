package domain

// JobState is the lifecycle state of a backend batch job.
type JobState string

// Job lifecycle states. Uploading and Processing are non-terminal;
// the other three are terminal and mutually exclusive.
const (
	JobUploading   JobState = "uploading"
	JobProcessing  JobState = "processing"
	JobSucceeded   JobState = "succeeded"
	JobStateFailed JobState = "failed"
	JobCancelled   JobState = "cancelled"
	JobExpired     JobState = "expired"
)

// Terminal reports whether no further state transitions are possible.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobStateFailed, JobCancelled, JobExpired:
		return true
	default:
		return false
	}
}

// Backend wire values for file and job states.
const (
	WireFileProcessing = "STATE_PROCESSING"
	WireJobSucceeded   = "JOB_STATE_SUCCEEDED"
	WireJobFailed      = "JOB_STATE_FAILED"
	WireJobCancelled   = "JOB_STATE_CANCELLED"
	WireJobExpired     = "JOB_STATE_EXPIRED"
)

// JobStateFromWire maps a backend job state to the domain state.
// Unknown values map to JobProcessing: anything the backend has not
// declared terminal is treated as still running.
func JobStateFromWire(wire string) JobState {
	switch wire {
	case WireJobSucceeded:
		return JobSucceeded
	case WireJobFailed:
		return JobStateFailed
	case WireJobCancelled:
		return JobCancelled
	case WireJobExpired:
		return JobExpired
	default:
		return JobProcessing
	}
}

// BackendFile is the backend's view of an uploaded or produced artifact.
type BackendFile struct {
	Name  string
	State string
}

// JobStatus is one observation of a batch job's backend status.
type JobStatus struct {
	State      string // raw wire value, e.g. JOB_STATE_SUCCEEDED
	OutputFile string // set once the job succeeded
	Detail     string // backend error detail, set when failed
}

// BatchJob tracks one backend batch job from submission to a terminal state.
// It is mutated only by the poller; once Terminal() it never changes again.
type BatchJob struct {
	Name          string
	InputFileRef  string
	State         JobState
	OutputFileRef string
	Detail        string
}

// JobRecord is the persisted snapshot of a batch, one per orchestrated
// pipeline run, updated as the job moves through its states.
type JobRecord struct {
	BatchID   string
	JobName   string
	Model     string
	State     JobState
	ItemCount int
	Analyzed  int
	Errored   int
	Detail    string
	UpdatedAt int64 // unix milliseconds
}
