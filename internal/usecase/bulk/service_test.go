package bulk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
)

// fakeBackend implements FileStore, JobStarter and JobReader in memory.
type fakeBackend struct {
	uploadedDoc []byte
	uploadErr   error
	jobName     string
	outputDoc   string
	jobStates   []domain.JobStatus
	polls       int
}

func (f *fakeBackend) UploadFile(_ context.Context, path string) (domain.BackendFile, error) {
	if f.uploadErr != nil {
		return domain.BackendFile{}, f.uploadErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.BackendFile{}, err
	}
	f.uploadedDoc = data
	return domain.BackendFile{Name: "files/in-1", State: "ACTIVE"}, nil
}

func (f *fakeBackend) GetFile(_ context.Context, name string) (domain.BackendFile, error) {
	return domain.BackendFile{Name: name, State: "ACTIVE"}, nil
}

func (f *fakeBackend) DownloadFile(_ context.Context, _ string) ([]byte, error) {
	return []byte(f.outputDoc), nil
}

func (f *fakeBackend) CreateBatchJob(_ context.Context, _, _ string) (string, error) {
	if f.jobName == "" {
		f.jobName = "batches/job-1"
	}
	return f.jobName, nil
}

func (f *fakeBackend) GetBatchJob(_ context.Context, _ string) (domain.JobStatus, error) {
	idx := f.polls
	if idx >= len(f.jobStates) {
		idx = len(f.jobStates) - 1
	}
	f.polls++
	return f.jobStates[idx], nil
}

type memoryRecorder struct {
	records []domain.JobRecord
}

func (m *memoryRecorder) Record(_ context.Context, rec domain.JobRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func newTestService(backend *fakeBackend, recorder JobRecorder) *Service {
	log := zap.NewNop()
	return NewService(
		NewEncoder("models/gemini-2.5-flash"),
		NewSubmitter(backend, backend, time.Millisecond, log),
		NewPoller(backend, time.Millisecond, "gemini-2.5-flash", log),
		NewFetcher(backend),
		NewReconciler(),
		recorder,
		"gemini-2.5-flash",
		100,
		log,
	)
}

func TestAnalyzeBatch_EndToEnd(t *testing.T) {
	backend := &fakeBackend{
		outputDoc: analysisLine("a", 0.1),
		jobStates: []domain.JobStatus{
			{State: "JOB_STATE_RUNNING"},
			{State: domain.WireJobSucceeded, OutputFile: "files/out-1"},
		},
	}
	recorder := &memoryRecorder{}
	svc := newTestService(backend, recorder)

	report, err := svc.AnalyzeBatch(context.Background(), []domain.BatchItem{
		{ID: "a", Text: "alpha"},
		{ID: "b", Text: "beta"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.TotalProcessed != 2 || len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d (total %d)", len(report.Results), report.TotalProcessed)
	}
	if report.Status != "completed" {
		t.Errorf("unexpected status %q", report.Status)
	}
	if report.BatchID == "" {
		t.Error("expected a generated batch id")
	}

	if report.Results[0].ID != "a" || report.Results[0].Analysis == nil {
		t.Errorf("item a: expected analysis, got %+v", report.Results[0])
	}
	// Item b was dropped by the backend: it must still be reported.
	if report.Results[1].ID != "b" || report.Results[1].Error != domain.ErrNoResult.Error() {
		t.Errorf("item b: expected missing sentinel, got %+v", report.Results[1])
	}

	// The uploaded document must carry one line per item.
	lines := strings.Count(strings.TrimRight(string(backend.uploadedDoc), "\n"), "\n") + 1
	if lines != 2 {
		t.Errorf("expected 2 uploaded lines, got %d", lines)
	}

	if len(recorder.records) == 0 {
		t.Fatal("expected job snapshots to be recorded")
	}
	last := recorder.records[len(recorder.records)-1]
	if last.State != domain.JobSucceeded || last.Analyzed != 1 || last.Errored != 1 {
		t.Errorf("unexpected final snapshot: %+v", last)
	}
}

func TestAnalyzeBatch_TooLarge(t *testing.T) {
	svc := newTestService(&fakeBackend{}, nil)
	svc.maxBatchSize = 1

	_, err := svc.AnalyzeBatch(context.Background(), []domain.BatchItem{
		{ID: "a", Text: "alpha"},
		{ID: "b", Text: "beta"},
	})
	if !errors.Is(err, domain.ErrInvalidBatch) {
		t.Fatalf("expected ErrInvalidBatch, got %v", err)
	}
}

func TestAnalyzeBatch_JobFailure(t *testing.T) {
	backend := &fakeBackend{
		jobStates: []domain.JobStatus{
			{State: domain.WireJobFailed, Detail: "internal error"},
		},
	}
	recorder := &memoryRecorder{}
	svc := newTestService(backend, recorder)

	_, err := svc.AnalyzeBatch(context.Background(), []domain.BatchItem{{ID: "a", Text: "alpha"}})
	if !errors.Is(err, domain.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}

	last := recorder.records[len(recorder.records)-1]
	if last.State != domain.JobStateFailed {
		t.Errorf("expected failed snapshot, got %s", last.State)
	}
	if !strings.Contains(last.Detail, "internal error") {
		t.Errorf("expected backend detail in snapshot, got %q", last.Detail)
	}
}

func TestSubmit_TempFileRemoved(t *testing.T) {
	backend := &fakeBackend{uploadErr: errors.New("upload rejected")}
	sub := NewSubmitter(backend, backend, time.Millisecond, zap.NewNop())

	before := countTempDocs(t)
	_, err := sub.Submit(context.Background(), "batch-x", []byte(`{"custom_id":"a"}`+"\n"))
	if !errors.Is(err, domain.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
	if after := countTempDocs(t); after != before {
		t.Errorf("temp documents leaked: %d before, %d after", before, after)
	}
}

func countTempDocs(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "toxgate-batch-*.jsonl"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return len(matches)
}
