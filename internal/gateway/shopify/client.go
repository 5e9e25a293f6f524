// Package shopify is a thin client for the Shopify Storefront GraphQL API.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront/internal/config"
)

// Client sends queries and mutations to the storefront endpoint. It holds no
// state beyond its configuration and is safe for concurrent use.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New builds a Client for the configured shop.
func New(cfg config.ShopifyConfig, logger zerolog.Logger) *Client {
	endpoint := fmt.Sprintf("https://%s/api/%s/graphql.json", strings.TrimSuffix(cfg.Domain, "/"), cfg.APIVersion)
	return NewWithEndpoint(endpoint, cfg.AccessToken, &http.Client{Timeout: cfg.Timeout}, logger)
}

// NewWithEndpoint is used by tests to point the client at a fake server.
func NewWithEndpoint(endpoint, token string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: httpClient,
		logger:     logger.With().Str("c", "shopify").Logger(),
	}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// do executes one GraphQL operation and decodes its data payload into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return errors.Wrapf(err, "%s: marshal request", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s: request failed", op)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.Wrapf(err, "%s: read response", op)
	}
	c.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("storefront call")

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var gql graphQLResponse
	if err := json.Unmarshal(body, &gql); err != nil {
		return errors.Wrapf(err, "%s: decode response", op)
	}
	if len(gql.Errors) > 0 {
		msgs := make([]string, 0, len(gql.Errors))
		for _, e := range gql.Errors {
			msgs = append(msgs, e.Message)
		}
		joined := strings.Join(msgs, "; ")
		if isMissingCartMessage(joined) {
			return errors.Wrapf(ErrCartNotFound, "%s: %s", op, joined)
		}
		return errors.Errorf("%s: graphql: %s", op, joined)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gql.Data, out); err != nil {
		return errors.Wrapf(err, "%s: decode data", op)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
