package classify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
	"github.com/toxgate-io/toxgate/internal/metrics"
)

// Service runs the synchronous classification cascade: every text is scored
// by the fast classifier; texts whose max score crosses the threshold are
// escalated to the contextual model for a second opinion.
type Service struct {
	fast       FastClassifier
	contextual ContextualAnalyzer
	threshold  float64
	logger     *zap.Logger
}

// NewService creates the cascade. contextual may be nil, which disables
// escalation entirely.
func NewService(fast FastClassifier, contextual ContextualAnalyzer, threshold float64, logger *zap.Logger) *Service {
	return &Service{fast: fast, contextual: contextual, threshold: threshold, logger: logger}
}

// Classify scores texts with the configured escalation threshold.
func (s *Service) Classify(ctx context.Context, texts []string) ([]domain.Classification, error) {
	return s.ClassifyWithThreshold(ctx, texts, s.threshold)
}

// ClassifyWithThreshold scores texts and returns one classification per
// text, in input order, escalating items whose max score reaches threshold.
// A contextual escalation failure downgrades that item to the fast scores
// instead of failing the request.
func (s *Service) ClassifyWithThreshold(ctx context.Context, texts []string, threshold float64) ([]domain.Classification, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty text list: %w", domain.ErrInvalidBatch)
	}

	scores, err := s.fast.ClassifyBatch(ctx, texts)
	if err != nil {
		metrics.ClassifyRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(scores) != len(texts) {
		metrics.ClassifyRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classifier returned %d results for %d texts: %w",
			len(scores), len(texts), domain.ErrClassifierUnavailable)
	}

	results := make([]domain.Classification, len(texts))
	for i, text := range texts {
		results[i] = s.classifyOne(ctx, text, scores[i], threshold)
	}

	metrics.ClassifyRequestsTotal.WithLabelValues("success").Inc()
	return results, nil
}

func (s *Service) classifyOne(ctx context.Context, text string, scores []domain.LabelScore, threshold float64) domain.Classification {
	c := domain.Classification{
		Text:     text,
		Scores:   scores,
		MaxScore: maxScore(scores),
	}
	c.IsToxic = c.MaxScore >= threshold

	if !c.IsToxic || s.contextual == nil {
		return c
	}

	analysis, err := s.contextual.Analyze(ctx, text)
	if err != nil {
		metrics.ClassifyEscalationsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("contextual escalation failed, keeping fast verdict", zap.Error(err))
		return c
	}
	metrics.ClassifyEscalationsTotal.WithLabelValues("success").Inc()

	c.Contextual = &analysis
	if analysis.IsIronic {
		// The contextual model overrides a fast-classifier false positive.
		c.IsToxic = false
	}
	return c
}

func maxScore(scores []domain.LabelScore) float64 {
	var m float64
	for _, s := range scores {
		if s.Score > m {
			m = s.Score
		}
	}
	return m
}
