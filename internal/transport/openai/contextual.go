// Package openai provides the contextual analyzer backed by an
// OpenAI-compatible chat completion API (e.g. a local Ollama instance).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
)

const contextualSystemPrompt = "You are a content moderation expert specialized in detecting irony, " +
	"sarcasm, and context-dependent meaning. You receive a text that an automated " +
	"classifier marked as potentially toxic. Decide whether the text is genuinely " +
	"toxic or whether irony, sarcasm, or friendly banter changes its meaning. " +
	`Respond with JSON only: {"is_ironic": bool, "justification": string, ` +
	`"deciding_fragments": [string]}. Provide the justification in the text's original language.`

// Analyzer runs contextual toxicity analysis over a chat completion API.
type Analyzer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the contextual provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewAnalyzer creates an OpenAI-compatible contextual analyzer.
func NewAnalyzer(cfg *Config) *Analyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: log,
	}
}

// Analyze implements the contextual analyzer contract. Temperature is pinned
// to zero so repeated calls over the same text agree.
func (a *Analyzer) Analyze(ctx context.Context, text string) (domain.ContextualAnalysis, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: contextualSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Text to analyze:\n%q", text)},
		},
	})
	if err != nil {
		return domain.ContextualAnalysis{}, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.ContextualAnalysis{}, fmt.Errorf("empty completion response: %w", domain.ErrContextualProviderError)
	}

	raw := stripFences(resp.Choices[0].Message.Content)
	var analysis domain.ContextualAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		a.logger.Warn("contextual model returned malformed JSON", zap.Error(err))
		return domain.ContextualAnalysis{}, fmt.Errorf("decode contextual verdict: %v: %w",
			err, domain.ErrContextualProviderError)
	}
	return analysis, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (a *Analyzer) HealthCheck(ctx context.Context) error {
	if _, err := a.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrContextualProviderError for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrContextualProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("contextual API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("contextual API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("contextual request failed: %w", wrap)
}

// stripFences removes markdown code fencing some models wrap around JSON.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
