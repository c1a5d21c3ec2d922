package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// PushoverNotifier delivers notifications through the Pushover API.
type PushoverNotifier struct {
	userKey  string
	apiToken string
	endpoint string
	client   *http.Client
}

// NewPushoverNotifier creates a notifier for the given Pushover
// user key and application token.
func NewPushoverNotifier(userKey, apiToken string) (*PushoverNotifier, error) {
	if userKey == "" || apiToken == "" {
		return nil, fmt.Errorf("pushover user key and API token are required")
	}
	return &PushoverNotifier{
		userKey:  userKey,
		apiToken: apiToken,
		endpoint: pushoverEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// SetEndpoint overrides the API endpoint. Used in tests.
func (p *PushoverNotifier) SetEndpoint(endpoint string) {
	p.endpoint = endpoint
}

// Push implements Notifier.Push with a form-encoded POST, the calling
// convention of the Pushover messages API.
func (p *PushoverNotifier) Push(ctx context.Context, message string) error {
	form := url.Values{}
	form.Set("user", p.userKey)
	form.Set("token", p.apiToken)
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pushover returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
