package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/model"
	"pickupBoard/internal/store"
)

// Client talks to the workflow service that owns message templates and the
// outbound-text automations. It never orchestrates them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type templateResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (c *Client) FetchTemplate(ctx context.Context, cred auth.Credential, templateID string) (model.Template, error) {
	if templateID == "" {
		return model.Template{}, errors.New("template id is empty")
	}
	body, err := c.do(ctx, cred, http.MethodGet, c.baseURL+"/templates/"+url.PathEscape(templateID))
	if err != nil {
		return model.Template{}, fmt.Errorf("fetch template %s: %w", templateID, err)
	}

	var resp templateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Template{}, fmt.Errorf("fetch template %s: decoding response: %w", templateID, err)
	}
	return model.Template{ID: templateID, Text: resp.Text, FetchedAt: time.Now().UTC()}, nil
}

// Trigger fires the automation behind webhookURL. Any 2xx counts as an ack.
func (c *Client) Trigger(ctx context.Context, cred auth.Credential, webhookURL string) error {
	if _, err := url.ParseRequestURI(webhookURL); err != nil {
		return fmt.Errorf("trigger: invalid webhook url: %w", err)
	}
	if _, err := c.do(ctx, cred, http.MethodPost, webhookURL); err != nil {
		return fmt.Errorf("trigger automation: %w", err)
	}
	c.log.Info().Str("webhook", redactURL(webhookURL)).Msg("automation triggered")
	return nil
}

func (c *Client) do(ctx context.Context, cred auth.Credential, method, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", cred.Header())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", store.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, store.Classify(resp.StatusCode, body)
	}
	return body, nil
}

// redactURL keeps scheme and host only; webhook paths carry secrets.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "webhook://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
