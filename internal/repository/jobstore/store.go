// Package jobstore persists batch job snapshots in a hash store so batches
// can be looked up after the submitting connection is gone.
package jobstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
)

// store is the consumer interface for the job store (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Store writes and reads batch job snapshots.
type Store struct {
	store     store
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// New creates a job store. ttl <= 0 disables expiry.
func New(s store, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{store: s, keyPrefix: keyPrefix, ttl: ttl, logger: logger}
}

// Record upserts the snapshot for rec.BatchID and refreshes its TTL.
func (s *Store) Record(ctx context.Context, rec domain.JobRecord) error {
	key := s.key(rec.BatchID)

	fields := map[string]string{
		"batch_id":   rec.BatchID,
		"job_name":   rec.JobName,
		"model":      rec.Model,
		"state":      string(rec.State),
		"item_count": strconv.Itoa(rec.ItemCount),
		"analyzed":   strconv.Itoa(rec.Analyzed),
		"errored":    strconv.Itoa(rec.Errored),
		"detail":     rec.Detail,
		"updated_at": strconv.FormatInt(rec.UpdatedAt, 10),
	}
	if err := s.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("record batch %s: %w", rec.BatchID, err)
	}

	if s.ttl > 0 {
		if err := s.store.Expire(ctx, key, s.ttl); err != nil {
			s.logger.Warn("failed to set snapshot TTL",
				zap.String("batch_id", rec.BatchID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Get loads the snapshot for batchID. A missing batch maps to
// domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, batchID string) (domain.JobRecord, error) {
	fields, err := s.store.HGetAll(ctx, s.key(batchID))
	if err != nil {
		return domain.JobRecord{}, fmt.Errorf("load batch %s: %w", batchID, err)
	}
	if len(fields) == 0 {
		return domain.JobRecord{}, fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
	}

	rec := domain.JobRecord{
		BatchID: fields["batch_id"],
		JobName: fields["job_name"],
		Model:   fields["model"],
		State:   domain.JobState(fields["state"]),
		Detail:  fields["detail"],
	}
	rec.ItemCount, _ = strconv.Atoi(fields["item_count"])
	rec.Analyzed, _ = strconv.Atoi(fields["analyzed"])
	rec.Errored, _ = strconv.Atoi(fields["errored"])
	rec.UpdatedAt, _ = strconv.ParseInt(fields["updated_at"], 10, 64)
	return rec, nil
}

func (s *Store) key(batchID string) string {
	return s.keyPrefix + "job:" + batchID
}
