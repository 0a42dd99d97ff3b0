// Package gemini is a thin HTTP client for the backend's file store and
// asynchronous batch job API. It exposes exactly the calls the bulk
// pipeline needs: upload, file status, job start, job status, download.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Config holds the backend client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to the backend over plain HTTP.
// Safe for concurrent use by independent batches.
type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  *zap.Logger
}

// NewClient creates a backend client.
func NewClient(cfg *Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: base,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		logger:  logger,
	}
}

// Model returns the configured model reference (models/<name>).
func (c *Client) Model() string {
	if strings.HasPrefix(c.model, "models/") {
		return c.model
	}
	return "models/" + c.model
}

// UploadFile uploads a local document as a backend file and returns its
// name and initial state. The file may still be in STATE_PROCESSING when
// this returns; callers poll GetFile until it becomes active.
func (c *Client) UploadFile(ctx context.Context, path string) (domain.BackendFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.BackendFile{}, fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	meta, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return domain.BackendFile{}, fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := meta.Write([]byte(`{"file":{}}`)); err != nil {
		return domain.BackendFile{}, fmt.Errorf("write metadata part: %w", err)
	}

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json"},
	})
	if err != nil {
		return domain.BackendFile{}, fmt.Errorf("create media part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return domain.BackendFile{}, fmt.Errorf("copy document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.BackendFile{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	u := c.url("/upload/v1beta/files", url.Values{"uploadType": {"multipart"}})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return domain.BackendFile{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	var wrapped fileWrapper
	if err := c.doJSON(req, &wrapped); err != nil {
		return domain.BackendFile{}, fmt.Errorf("upload file: %w", err)
	}
	return domain.BackendFile{Name: wrapped.File.Name, State: wrapped.File.State}, nil
}

// GetFile fetches the current state of an uploaded file.
func (c *Client) GetFile(ctx context.Context, name string) (domain.BackendFile, error) {
	u := c.url("/v1beta/"+name, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return domain.BackendFile{}, fmt.Errorf("build file status request: %w", err)
	}

	var file wireFile
	if err := c.doJSON(req, &file); err != nil {
		return domain.BackendFile{}, fmt.Errorf("get file %s: %w", name, err)
	}
	return domain.BackendFile{Name: file.Name, State: file.State}, nil
}

// CreateBatchJob starts an asynchronous generation job over an uploaded file
// and returns the job name.
func (c *Client) CreateBatchJob(ctx context.Context, displayName, inputFile string) (string, error) {
	payload, err := json.Marshal(createBatchRequest{
		Batch: batchSpec{
			DisplayName: displayName,
			InputConfig: inputConfig{FileName: inputFile},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode batch request: %w", err)
	}

	u := c.url("/v1beta/"+c.Model()+":batchGenerateContent", nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build batch create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var op batchOperation
	if err := c.doJSON(req, &op); err != nil {
		return "", fmt.Errorf("create batch job: %w", err)
	}
	return op.Name, nil
}

// GetBatchJob fetches the current status of a batch job.
func (c *Client) GetBatchJob(ctx context.Context, name string) (domain.JobStatus, error) {
	u := c.url("/v1beta/"+name, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("build job status request: %w", err)
	}

	var op batchOperation
	if err := c.doJSON(req, &op); err != nil {
		return domain.JobStatus{}, fmt.Errorf("get batch job %s: %w", name, err)
	}

	status := domain.JobStatus{
		State:      op.Metadata.State,
		OutputFile: op.Metadata.Output.ResponsesFile,
	}
	if op.Error != nil {
		status.Detail = op.Error.Message
	}
	return status, nil
}

// DownloadFile retrieves the raw bytes of a backend file.
func (c *Client) DownloadFile(ctx context.Context, name string) ([]byte, error) {
	u := c.url("/download/v1beta/"+name+":download", url.Values{"alt": {"media"}})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.asAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// HealthCheck verifies backend reachability via the file list endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	u := c.url("/v1beta/files", url.Values{"pageSize": {"1"}})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	var ignored json.RawMessage
	if err := c.doJSON(req, &ignored); err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	return nil
}

// url joins a path with the base URL and appends the API key.
func (c *Client) url(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", c.apiKey)
	return c.baseURL + path + "?" + q.Encode()
}

// doJSON executes a request and decodes a JSON response, mapping non-2xx
// bodies to readable errors.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.asAPIError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// asAPIError extracts the message from a standard error body, falling back
// to the raw payload.
func (c *Client) asAPIError(status int, body []byte) error {
	var parsed apiError
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		return fmt.Errorf("backend %d %s: %s", status, parsed.Error.Status, parsed.Error.Message)
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 512 {
		trimmed = trimmed[:512]
	}
	return fmt.Errorf("backend %d: %s", status, trimmed)
}
