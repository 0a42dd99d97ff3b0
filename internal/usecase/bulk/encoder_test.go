package bulk

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/toxgate-io/toxgate/internal/domain"
)

func TestEncode_Validation(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.BatchItem
	}{
		{name: "empty list", items: nil},
		{name: "empty id", items: []domain.BatchItem{{ID: "", Text: "hello"}}},
		{name: "duplicate id", items: []domain.BatchItem{
			{ID: "a", Text: "one"},
			{ID: "a", Text: "two"},
		}},
	}

	enc := NewEncoder("models/gemini-2.5-flash")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(tt.items)
			if !errors.Is(err, domain.ErrInvalidBatch) {
				t.Fatalf("expected ErrInvalidBatch, got %v", err)
			}
		})
	}
}

func TestEncode_WireFormat(t *testing.T) {
	enc := NewEncoder("models/gemini-2.5-flash")

	document, err := enc.Encode([]domain.BatchItem{
		{ID: "item-1", Text: "first text"},
		{ID: "item-2", Text: "second text"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(document), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var line struct {
		CustomID string `json:"custom_id"`
		Method   string `json:"method"`
		Request  struct {
			Model    string `json:"model"`
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				Temperature        float64         `json:"temperature"`
				ResponseMIMEType   string          `json:"response_mime_type"`
				ResponseJSONSchema json.RawMessage `json:"response_json_schema"`
			} `json:"generationConfig"`
		} `json:"request"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &line); err != nil {
		t.Fatalf("failed to parse line: %v", err)
	}

	if line.CustomID != "item-1" {
		t.Errorf("expected custom_id item-1, got %q", line.CustomID)
	}
	if line.Method != "models.generateContent" {
		t.Errorf("unexpected method %q", line.Method)
	}
	if line.Request.Model != "models/gemini-2.5-flash" {
		t.Errorf("unexpected model %q", line.Request.Model)
	}
	if line.Request.GenerationConfig.Temperature != 0.0 {
		t.Errorf("expected temperature 0.0, got %f", line.Request.GenerationConfig.Temperature)
	}
	if line.Request.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Errorf("unexpected response_mime_type %q", line.Request.GenerationConfig.ResponseMIMEType)
	}
	if len(line.Request.GenerationConfig.ResponseJSONSchema) == 0 {
		t.Error("expected response_json_schema to be set")
	}

	if len(line.Request.Contents) != 1 || len(line.Request.Contents[0].Parts) != 1 {
		t.Fatal("expected one content with one part")
	}
	prompt := line.Request.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "first text") {
		t.Errorf("prompt does not embed the source text: %q", prompt)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	enc := NewEncoder("models/gemini-2.5-flash")
	items := []domain.BatchItem{
		{ID: "a", Text: "alpha"},
		{ID: "b", Text: "beta"},
	}

	first, err := enc.Encode(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := enc.Encode(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("encoding the same items twice produced different bytes")
	}
}
