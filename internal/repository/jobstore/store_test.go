package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
)

// memHashStore implements the consumer interface in memory.
type memHashStore struct {
	hashes    map[string]map[string]string
	expired   map[string]time.Duration
	hsetErr   error
	expireErr error
}

func newMemHashStore() *memHashStore {
	return &memHashStore{
		hashes:  make(map[string]map[string]string),
		expired: make(map[string]time.Duration),
	}
}

func (m *memHashStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.hsetErr != nil {
		return m.hsetErr
	}
	existing, ok := m.hashes[key]
	if !ok {
		existing = make(map[string]string)
		m.hashes[key] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (m *memHashStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	return m.hashes[key], nil
}

func (m *memHashStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	if m.expireErr != nil {
		return m.expireErr
	}
	m.expired[key] = ttl
	return nil
}

func TestRecordAndGet(t *testing.T) {
	mem := newMemHashStore()
	s := New(mem, "toxgate:", time.Hour, zap.NewNop())

	rec := domain.JobRecord{
		BatchID:   "batch-1",
		JobName:   "batches/job-1",
		Model:     "gemini-2.5-flash",
		State:     domain.JobSucceeded,
		ItemCount: 10,
		Analyzed:  9,
		Errored:   1,
		UpdatedAt: 1700000000000,
	}
	if err := s.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := s.Get(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != rec {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}

	if ttl := mem.expired["toxgate:job:batch-1"]; ttl != time.Hour {
		t.Errorf("expected TTL of 1h, got %v", ttl)
	}
}

func TestGet_Missing(t *testing.T) {
	s := New(newMemHashStore(), "toxgate:", time.Hour, zap.NewNop())

	_, err := s.Get(context.Background(), "no-such-batch")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecord_ExpireFailureNotFatal(t *testing.T) {
	mem := newMemHashStore()
	mem.expireErr = errors.New("i/o timeout")
	s := New(mem, "toxgate:", time.Hour, zap.NewNop())

	err := s.Record(context.Background(), domain.JobRecord{BatchID: "batch-1"})
	if err != nil {
		t.Fatalf("expire failure must not fail the record: %v", err)
	}
}

func TestRecord_HSetFailure(t *testing.T) {
	mem := newMemHashStore()
	mem.hsetErr = errors.New("connection reset")
	s := New(mem, "toxgate:", 0, zap.NewNop())

	if err := s.Record(context.Background(), domain.JobRecord{BatchID: "batch-1"}); err == nil {
		t.Fatal("expected error when HSET fails")
	}
}

func TestRecord_NoTTLWhenDisabled(t *testing.T) {
	mem := newMemHashStore()
	s := New(mem, "toxgate:", 0, zap.NewNop())

	if err := s.Record(context.Background(), domain.JobRecord{BatchID: "batch-1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(mem.expired) != 0 {
		t.Error("no TTL expected when disabled")
	}
}
