package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ProcessorClient submits media processing jobs to the processing service.
// Unlike ingestion notifications, submission is synchronous: the caller
// needs the external job ID and must surface submission failures.
type ProcessorClient struct {
	baseURL string
	http    *http.Client
}

func NewProcessorClient(baseURL string, timeout time.Duration) *ProcessorClient {
	return &ProcessorClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *ProcessorClient) Enabled() bool { return c.baseURL != "" }

type submitJobRequest struct {
	SourceID    uuid.UUID `json:"source_id"`
	DownloadURL string    `json:"download_url"`
	CallbackURL string    `json:"callback_url"`
}

type submitJobResponse struct {
	JobID string `json:"job_id"`
}

// SubmitJob asks the processing service to process a source's media. The
// service reports completion by POSTing to callbackURL.
func (c *ProcessorClient) SubmitJob(ctx context.Context, sourceID uuid.UUID, downloadURL, callbackURL string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("processing service not configured")
	}

	body, err := json.Marshal(submitJobRequest{
		SourceID:    sourceID,
		DownloadURL: downloadURL,
		CallbackURL: callbackURL,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("submit job: unexpected status %d", resp.StatusCode)
	}

	var out submitJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode job response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("processing service returned empty job id")
	}
	return out.JobID, nil
}

// Health checks the processing service's health endpoint.
func (c *ProcessorClient) Health(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("processing service not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("processing service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
