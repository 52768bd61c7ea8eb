// Package notify holds HTTP clients for the sibling services that consume
// source media: the ingestion service (frame analysis) and the processing
// service (long-running jobs).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/watchtower/internal/observability"
)

// IngestionClient notifies the ingestion service about new sources.
// Notifications are advisory: a failure is logged and counted but never
// fails the originating request.
type IngestionClient struct {
	baseURL string
	http    *http.Client
}

func NewIngestionClient(baseURL string, timeout time.Duration) *IngestionClient {
	return &IngestionClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a base URL is configured.
func (c *IngestionClient) Enabled() bool { return c.baseURL != "" }

type sourceCreatedPayload struct {
	SourceID    uuid.UUID `json:"source_id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	StreamURL   string    `json:"stream_url,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	AccessToken string    `json:"access_token"`
}

// NotifySourceCreated tells the ingestion service where to pull a new
// source's media from. Fire and forget: the request runs in a goroutine on a
// context detached from the caller's, so a slow ingestion service never
// stalls the originating request.
func (c *IngestionClient) NotifySourceCreated(ctx context.Context, sourceID uuid.UUID, kind, name, streamURL, downloadURL, token string) {
	if !c.Enabled() {
		return
	}

	payload := sourceCreatedPayload{
		SourceID:    sourceID,
		Kind:        kind,
		Name:        name,
		StreamURL:   streamURL,
		DownloadURL: downloadURL,
		AccessToken: token,
	}
	c.dispatch(ctx, "/internal/sources", payload, sourceID)
}

// NotifySourceDeleted tells the ingestion service to stop consuming a
// source. Fire and forget, same dispatch as NotifySourceCreated.
func (c *IngestionClient) NotifySourceDeleted(ctx context.Context, sourceID uuid.UUID) {
	if !c.Enabled() {
		return
	}
	c.dispatch(ctx, fmt.Sprintf("/internal/sources/%s/deleted", sourceID), struct{}{}, sourceID)
}

// dispatch posts in the background. The detached context outlives the HTTP
// request that triggered the notification; the client timeout still bounds
// the call.
func (c *IngestionClient) dispatch(ctx context.Context, path string, payload any, sourceID uuid.UUID) {
	notifyCtx := context.WithoutCancel(ctx)
	go func() {
		if err := c.post(notifyCtx, path, payload); err != nil {
			observability.NotifyFailures.WithLabelValues("ingestion").Inc()
			slog.Warn("notify ingestion service", "source_id", sourceID, "error", err)
		}
	}()
}

// Health checks the ingestion service's health endpoint.
func (c *IngestionClient) Health(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("ingestion service not configured")
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
		return fmt.Errorf("ingestion service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *IngestionClient) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
