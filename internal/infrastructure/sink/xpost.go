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

	"github.com/dghubble/oauth1"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const defaultTweetsURL = "https://api.twitter.com/2/tweets"

// XSink posts to the X v2 API with OAuth 1.0a user-context signing. Rate
// limiting (429) is reported distinctly so the worker can exhaust its local
// budget window.
type XSink struct {
	endpoint string
	client   *http.Client
}

var _ ports.Sink = (*XSink)(nil)

// NewXSink builds an OAuth1-signing client from the social configuration.
func NewXSink(cfg config.Social) *XSink {
	oauthCfg := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)

	client := oauthCfg.Client(oauth1.NoContext, token)
	client.Timeout = 30 * time.Second

	return &XSink{endpoint: defaultTweetsURL, client: client}
}

// Channel identifies the sink to the worker.
func (s *XSink) Channel() domain.Channel {
	return domain.ChannelSocial
}

// Send creates a tweet from the payload text.
func (s *XSink) Send(ctx context.Context, payload domain.Payload) error {
	body, err := json.Marshal(map[string]string{"text": payload.Text})
	if err != nil {
		return fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post tweet: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("x api: %w", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("x api %s: %w", resp.Status, domain.ErrAuth)
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("x api returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
}
