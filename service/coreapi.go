package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kopakredit/custimport/config"
)

// CustomerImporter is the slice of the core banking API the pipeline
// depends on: one bulk import call carrying the original file.
type CustomerImporter interface {
	BulkImport(ctx context.Context, filename string, file io.Reader) (*BulkImportResult, error)
}

// BulkImportResult is the core banking API's response to a bulk
// customer import. Errors are positional strings, one per rejected
// row, in file order.
type BulkImportResult struct {
	ImportedCount int      `json:"imported_count"`
	ErrorCount    int      `json:"error_count"`
	Errors        []string `json:"errors,omitempty"`
}

type CoreAPIService struct {
	config     *config.CoreAPIConfig
	httpClient *http.Client
}

func NewCoreAPIService(cfg *config.CoreAPIConfig) *CoreAPIService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &CoreAPIService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BulkImport posts the operator's original CSV as multipart form data
// to the bulk import endpoint and decodes the per-row outcome.
func (s *CoreAPIService) BulkImport(ctx context.Context, filename string, file io.Reader) (*BulkImportResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL+"/customers/bulk-import", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("core API returned status %d: %s", resp.StatusCode, apiErrorMessage(body))
	}

	var result BulkImportResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	return &result, nil
}

// apiErrorMessage pulls the error field out of a failure body,
// falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "no response body"
	}
	return msg
}
