package bulk

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
	"github.com/toxgate-io/toxgate/internal/logger"
)

// resultLine is one parsed line of the backend's output document.
type resultLine struct {
	CustomID string `json:"custom_id"`
	Response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error json.RawMessage `json:"error"`
	} `json:"response"`
}

// outcome is the reconciled result for one correlation id.
type outcome struct {
	analysis  *domain.ToxicityAnalysis
	errDetail string
}

// Reconciler merges the backend's output document with the original input
// list. A line that cannot be parsed or attributed is logged and skipped;
// it never aborts reconciliation of the other lines.
type Reconciler struct{}

// NewReconciler creates a reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile produces exactly one AnalyzedItem per input item, in the input
// order, regardless of how complete, reordered, or malformed the backend
// output is.
func (r *Reconciler) Reconcile(ctx context.Context, outputText string, items []domain.BatchItem) []domain.AnalyzedItem {
	log := logger.FromContext(ctx)
	outcomes := r.parseOutput(outputText, log)

	results := make([]domain.AnalyzedItem, len(items))
	for i, item := range items {
		out := domain.AnalyzedItem{ID: item.ID, Text: item.Text}
		o, found := outcomes[item.ID]
		switch {
		case !found:
			out.Error = domain.ErrNoResult.Error()
		case o.errDetail != "":
			out.Error = o.errDetail
		default:
			out.Analysis = o.analysis
		}
		results[i] = out
	}
	return results
}

// parseOutput builds the correlation-id -> outcome map from the raw JSONL text.
func (r *Reconciler) parseOutput(outputText string, log *zap.Logger) map[string]outcome {
	outcomes := make(map[string]outcome)

	for _, line := range strings.Split(outputText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var parsed resultLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			log.Warn("skipping unparsable output line", zap.Error(err))
			continue
		}
		if parsed.CustomID == "" {
			log.Warn("dropping output line without correlation id")
			continue
		}

		outcomes[parsed.CustomID] = r.extractOutcome(&parsed, log)
	}
	return outcomes
}

// extractOutcome normalizes the several shapes the backend sends for one
// line: a per-item error object, an empty response, or a structured result
// hidden in the first candidate's first text part.
func (r *Reconciler) extractOutcome(line *resultLine, log *zap.Logger) outcome {
	if len(line.Response.Error) > 0 {
		return outcome{errDetail: errorDetail(line.Response.Error)}
	}
	if len(line.Response.Candidates) == 0 {
		return outcome{errDetail: "no candidates returned"}
	}
	parts := line.Response.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return outcome{errDetail: "empty parts in response"}
	}

	raw := stripFences(parts[0].Text)
	var analysis domain.ToxicityAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		log.Warn("malformed structured result",
			zap.String("custom_id", line.CustomID),
			zap.Error(err),
		)
		return outcome{errDetail: "malformed structured result: " + err.Error()}
	}
	if err := analysis.Validate(); err != nil {
		return outcome{errDetail: "invalid structured result: " + err.Error()}
	}
	return outcome{analysis: &analysis}
}

// errorDetail renders the backend's per-item error object compactly,
// preferring its message field.
func errorDetail(raw json.RawMessage) string {
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

// stripFences removes markdown code fencing occasionally wrapped around the
// structured result by the model.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
