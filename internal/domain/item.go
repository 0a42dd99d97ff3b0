package domain

// BatchItem is a single piece of content submitted for bulk analysis.
// The id is caller-assigned and must be unique within a batch; it is the
// correlation key used to map backend results back to their inputs.
type BatchItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// AnalyzedItem is the final per-item outcome of a bulk analysis.
// Exactly one of Analysis and Error is populated.
type AnalyzedItem struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Analysis *ToxicityAnalysis `json:"analysis,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// BatchReport is the caller-facing result of a whole batch.
// len(Results) always equals the number of submitted items.
type BatchReport struct {
	BatchID        string         `json:"batch_id"`
	Results        []AnalyzedItem `json:"results"`
	TotalProcessed int            `json:"total_processed"`
	Status         string         `json:"status"`
}
