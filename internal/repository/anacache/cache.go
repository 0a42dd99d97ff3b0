// Package anacache caches fast-classifier scores in a key-value store so
// repeated texts skip the classifier entirely.
package anacache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/db"
	"github.com/toxgate-io/toxgate/internal/domain"
)

// store is the consumer interface for the score cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedClassifier caches per-text classifier scores.
type CachedClassifier struct {
	inner      domain.FastClassifier
	store      store
	keyPrefix  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator around a classifier.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.FastClassifier,
	s store,
	keyPrefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedClassifier {
	return &CachedClassifier{
		inner:      inner,
		store:      s,
		keyPrefix:  keyPrefix,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// ClassifyBatch resolves as many texts as possible from the cache and sends
// only the misses to the inner classifier. The result slice keeps the input
// order regardless of how hits and misses interleave.
func (c *CachedClassifier) ClassifyBatch(ctx context.Context, texts []string) ([][]domain.LabelScore, error) {
	results := make([][]domain.LabelScore, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if scores, ok := c.getFromCache(ctx, c.cacheKey(text)); ok {
			c.incCache("hit")
			results[i] = scores
			continue
		}
		c.incCache("miss")
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	scored, err := c.inner.ClassifyBatch(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("classify %d uncached texts: %w", len(missTexts), err)
	}
	if len(scored) != len(missTexts) {
		return nil, fmt.Errorf("classifier returned %d results for %d texts: %w",
			len(scored), len(missTexts), domain.ErrClassifierUnavailable)
	}

	for j, scores := range scored {
		results[missIdx[j]] = scores
		c.putToCache(ctx, c.cacheKey(missTexts[j]), scores)
	}
	return results, nil
}

func (c *CachedClassifier) getFromCache(ctx context.Context, key string) ([]domain.LabelScore, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("score cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var scores []domain.LabelScore
	if err := json.Unmarshal(data, &scores); err != nil {
		c.logger.Warn("corrupt score cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return scores, true
}

func (c *CachedClassifier) putToCache(ctx context.Context, key string, scores []domain.LabelScore) {
	data, err := json.Marshal(scores)
	if err != nil {
		c.logger.Warn("failed to encode scores for cache", zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("score cache write failed", zap.Error(err))
	}
}

func (c *CachedClassifier) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedClassifier) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.keyPrefix + "scores:" + hex.EncodeToString(h[:])
}
