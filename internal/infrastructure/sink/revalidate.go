// Package sink implements the notification sinks the delivery worker fans
// out to: the site revalidation webhook and the X posting API.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// RevalidateSink calls the site's cache revalidation webhook with a shared
// secret.
type RevalidateSink struct {
	url    string
	secret string
	client *http.Client
}

var _ ports.Sink = (*RevalidateSink)(nil)

// NewRevalidateSink registers the webhook endpoint and secret.
func NewRevalidateSink(url, secret string, client *http.Client) *RevalidateSink {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RevalidateSink{url: url, secret: secret, client: client}
}

// Channel identifies the sink to the worker.
func (s *RevalidateSink) Channel() domain.Channel {
	return domain.ChannelWeb
}

// Send posts the paths to revalidate.
func (s *RevalidateSink) Send(ctx context.Context, payload domain.Payload) error {
	if s.url == "" || s.secret == "" {
		return fmt.Errorf("revalidation sink misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"paths":  payload.Paths,
		"secret": s.secret,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("revalidate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("revalidation returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return nil
}
