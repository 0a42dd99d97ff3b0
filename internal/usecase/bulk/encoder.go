package bulk

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/toxgate-io/toxgate/internal/domain"
)

// generateContentMethod is the remote method every request line invokes.
const generateContentMethod = "models.generateContent"

// requestLine is one line of the outbound JSONL document.
type requestLine struct {
	CustomID string          `json:"custom_id"`
	Method   string          `json:"method"`
	Request  generateRequest `json:"request"`
}

type generateRequest struct {
	Model            string           `json:"model"`
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature        float64         `json:"temperature"`
	ResponseMIMEType   string          `json:"response_mime_type"`
	ResponseJSONSchema json.RawMessage `json:"response_json_schema"`
}

// Encoder turns a list of batch items into the backend's line-delimited
// request document. Pure: identical input yields identical bytes.
type Encoder struct {
	model string
}

// NewEncoder creates an encoder targeting the given model reference.
func NewEncoder(model string) *Encoder {
	return &Encoder{model: model}
}

// Encode validates the items and produces the JSONL request document,
// one self-contained request per line, correlated by the item id.
func (e *Encoder) Encode(items []domain.BatchItem) ([]byte, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty item list: %w", domain.ErrInvalidBatch)
	}

	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("item %d has empty id: %w", i, domain.ErrInvalidBatch)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("duplicate id %q: %w", item.ID, domain.ErrInvalidBatch)
		}
		seen[item.ID] = struct{}{}
	}

	var buf bytes.Buffer
	for _, item := range items {
		line := requestLine{
			CustomID: item.ID,
			Method:   generateContentMethod,
			Request: generateRequest{
				Model:    e.model,
				Contents: []content{{Parts: []part{{Text: analysisPrompt(item.Text)}}}},
				GenerationConfig: generationConfig{
					Temperature:        0.0, // pinned for reproducibility
					ResponseMIMEType:   "application/json",
					ResponseJSONSchema: domain.AnalysisSchema,
				},
			},
		}
		encoded, err := json.Marshal(line)
		if err != nil {
			return nil, fmt.Errorf("encode item %q: %w", item.ID, err)
		}
		buf.Write(encoded)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// analysisPrompt wraps a text fragment in the classification instruction.
func analysisPrompt(text string) string {
	return fmt.Sprintf(
		"Analyze the following text fragment for toxicity levels. "+
			"You are a precise content moderation classifier.\n\n"+
			"Text to analyze:\n%q\n\n"+
			"Return the result as JSON strictly adhering to the provided schema. "+
			"Scores must be between 0.0 and 1.0. "+
			"Provide the justification in the text's original language.",
		text,
	)
}
