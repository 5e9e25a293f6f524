// Package klaviyo sends marketing events and list subscriptions. Server side only.
package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront/internal/config"
)

const defaultBaseURL = "https://a.klaviyo.com/api"

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("marketing platform not configured")

type Client struct {
	baseURL    string
	apiKey     string
	listID     string
	revision   string
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(cfg config.KlaviyoConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     cfg.APIKey,
		listID:     cfg.ListID,
		revision:   cfg.Revision,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("c", "klaviyo").Logger(),
	}
}

// WithBaseURL points the client at another host, e.g. a test server.
func (c *Client) WithBaseURL(u string) *Client {
	clone := *c
	clone.baseURL = u
	return &clone
}

// Event is a metric occurrence attributed to a profile identified by email.
type Event struct {
	Metric     string
	Email      string
	Properties map[string]interface{}
	Time       time.Time
	UniqueID   string
}

// TrackEvent records an event for the profile.
func (c *Client) TrackEvent(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	attrs := map[string]interface{}{
		"properties": ev.Properties,
		"time":       ev.Time.Format(time.RFC3339),
		"metric": map[string]interface{}{
			"data": map[string]interface{}{
				"type":       "metric",
				"attributes": map[string]interface{}{"name": ev.Metric},
			},
		},
		"profile": map[string]interface{}{
			"data": map[string]interface{}{
				"type":       "profile",
				"attributes": map[string]interface{}{"email": ev.Email},
			},
		},
	}
	if ev.UniqueID != "" {
		attrs["unique_id"] = ev.UniqueID
	}
	body := map[string]interface{}{"data": map[string]interface{}{"type": "event", "attributes": attrs}}
	return c.post(ctx, "/events/", body)
}

// Subscribe adds the email to the configured list with email marketing consent.
func (c *Client) Subscribe(ctx context.Context, email, source string) error {
	if c.listID == "" {
		return errors.New("marketing list not configured")
	}
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"type": "profile-subscription-bulk-create-job",
			"attributes": map[string]interface{}{
				"custom_source": source,
				"profiles": map[string]interface{}{
					"data": []interface{}{map[string]interface{}{
						"type": "profile",
						"attributes": map[string]interface{}{
							"email": email,
							"subscriptions": map[string]interface{}{
								"email": map[string]interface{}{
									"marketing": map[string]interface{}{"consent": "SUBSCRIBED"},
								},
							},
						},
					}},
				},
			},
			"relationships": map[string]interface{}{
				"list": map[string]interface{}{
					"data": map[string]interface{}{"type": "list", "id": c.listID},
				},
			},
		},
	}
	return c.post(ctx, "/profile-subscription-bulk-create-jobs/", body)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	if c.apiKey == "" {
		return ErrDisabled
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Klaviyo-API-Key "+c.apiKey)
	req.Header.Set("revision", c.revision)
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post %s", path)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Str("path", path).Int("status", resp.StatusCode).Msg("marketing call rejected")
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}
