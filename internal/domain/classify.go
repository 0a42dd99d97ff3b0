package domain

import "context"

// LabelScore is one labelled score from the fast classifier.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ContextualAnalysis is the escalation model's verdict on a borderline text.
type ContextualAnalysis struct {
	IsIronic          bool     `json:"is_ironic"`
	Justification     string   `json:"justification"`
	DecidingFragments []string `json:"deciding_fragments"`
}

// Classification is the outcome of the synchronous cascade for one text:
// fast classifier scores, optionally refined by the contextual model when
// the max score crosses the escalation threshold.
type Classification struct {
	Text       string              `json:"text"`
	Scores     []LabelScore        `json:"scores"`
	MaxScore   float64             `json:"max_score"`
	IsToxic    bool                `json:"is_toxic"`
	Contextual *ContextualAnalysis `json:"contextual_analysis,omitempty"`
}

// FastClassifier scores texts with the low-latency local model.
type FastClassifier interface {
	ClassifyBatch(ctx context.Context, texts []string) ([][]LabelScore, error)
}
