// Package fastcls is the HTTP client for the local fast classifier service.
package fastcls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
)

const maxResponseBytes = 16 << 20

// Config holds the classifier client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client scores texts against the local classifier over HTTP.
type Client struct {
	hc      *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a classifier client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		logger:  log,
	}
}

type classifyRequest struct {
	Texts []string `json:"texts"`
}

type classifyResponse struct {
	Results [][]domain.LabelScore `json:"results"`
}

// ClassifyBatch scores texts in one request. Transport and protocol
// failures wrap domain.ErrClassifierUnavailable.
func (c *Client) ClassifyBatch(ctx context.Context, texts []string) ([][]domain.LabelScore, error) {
	body, err := json.Marshal(classifyRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify: %v: %w", err, domain.ErrClassifierUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read classify response: %v: %w", err, domain.ErrClassifierUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("classifier returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(data, 512)),
		)
		return nil, fmt.Errorf("classify: status %d: %w", resp.StatusCode, domain.ErrClassifierUnavailable)
	}

	var parsed classifyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode classify response: %v: %w", err, domain.ErrClassifierUnavailable)
	}
	if len(parsed.Results) != len(texts) {
		return nil, fmt.Errorf("classifier returned %d results for %d texts: %w",
			len(parsed.Results), len(texts), domain.ErrClassifierUnavailable)
	}
	return parsed.Results, nil
}

// HealthCheck probes the classifier's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("classifier health: %v: %w", err, domain.ErrClassifierUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier health: status %d: %w", resp.StatusCode, domain.ErrClassifierUnavailable)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
