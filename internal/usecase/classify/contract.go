package classify

import (
	"context"

	"github.com/toxgate-io/toxgate/internal/domain"
)

// FastClassifier scores texts with the low-latency local model.
type FastClassifier interface {
	ClassifyBatch(ctx context.Context, texts []string) ([][]domain.LabelScore, error)
}

// ContextualAnalyzer runs the contextual model on a single borderline text.
type ContextualAnalyzer interface {
	Analyze(ctx context.Context, text string) (domain.ContextualAnalysis, error)
}
