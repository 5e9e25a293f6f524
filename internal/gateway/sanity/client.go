// Package sanity reads and writes documents in the Sanity content store.
package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront/internal/config"
)

// ErrWriteDisabled is returned by mutations when no write token is configured.
var ErrWriteDisabled = errors.New("content store write token not configured")

// Client talks to the query (optionally CDN-backed) and mutate endpoints.
type Client struct {
	queryBase  string
	mutateBase string
	readToken  string
	writeToken string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New builds a Client for the configured project and dataset.
func New(cfg config.SanityConfig, logger zerolog.Logger) *Client {
	queryHost := "api"
	if cfg.UseCDN {
		queryHost = "apicdn"
	}
	queryBase := fmt.Sprintf("https://%s.%s.sanity.io/v%s/data/query/%s", cfg.ProjectID, queryHost, cfg.APIVersion, cfg.Dataset)
	mutateBase := fmt.Sprintf("https://%s.api.sanity.io/v%s/data/mutate/%s", cfg.ProjectID, cfg.APIVersion, cfg.Dataset)
	c := NewWithEndpoints(queryBase, mutateBase, &http.Client{Timeout: cfg.Timeout}, logger)
	c.readToken = cfg.ReadToken
	c.writeToken = cfg.WriteToken
	return c
}

// NewWithEndpoints is used by tests; tokens can be set with WithTokens.
func NewWithEndpoints(queryBase, mutateBase string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		queryBase:  queryBase,
		mutateBase: mutateBase,
		httpClient: httpClient,
		logger:     logger.With().Str("c", "sanity").Logger(),
	}
}

// WithTokens returns a copy of the client using the given credentials.
func (c *Client) WithTokens(read, write string) *Client {
	clone := *c
	clone.readToken = read
	clone.writeToken = write
	return &clone
}

// Query runs a GROQ query and decodes its result into out.
func (c *Client) Query(ctx context.Context, groq string, params map[string]interface{}, out interface{}) error {
	q := url.Values{}
	q.Set("query", groq)
	for k, v := range params {
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "marshal param %s", k)
		}
		q.Set("$"+k, string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryBase+"?"+q.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "build query request")
	}
	if c.readToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.readToken)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := c.send(req, &envelope); err != nil {
		return errors.Wrap(err, "content query")
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return errors.Wrap(err, "decode query result")
	}
	return nil
}

// Mutation is one entry of a transaction; exactly one field should be set.
type Mutation struct {
	Create            map[string]interface{} `json:"create,omitempty"`
	CreateOrReplace   map[string]interface{} `json:"createOrReplace,omitempty"`
	CreateIfNotExists map[string]interface{} `json:"createIfNotExists,omitempty"`
	Patch             *Patch                 `json:"patch,omitempty"`
	Delete            *Delete                `json:"delete,omitempty"`
}

// Patch modifies fields of an existing document. Inc is applied atomically by the store.
type Patch struct {
	ID           string                 `json:"id"`
	Set          map[string]interface{} `json:"set,omitempty"`
	SetIfMissing map[string]interface{} `json:"setIfMissing,omitempty"`
	Inc          map[string]interface{} `json:"inc,omitempty"`
}

type Delete struct {
	ID string `json:"id"`
}

// MutationResult describes the outcome of one mutation.
type MutationResult struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
}

// Mutate submits the mutations as a single transaction using the write token.
func (c *Client) Mutate(ctx context.Context, mutations ...Mutation) ([]MutationResult, error) {
	if c.writeToken == "" {
		return nil, ErrWriteDisabled
	}
	payload, err := json.Marshal(map[string]interface{}{"mutations": mutations})
	if err != nil {
		return nil, errors.Wrap(err, "marshal mutations")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.mutateBase+"?returnIds=true", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build mutate request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.writeToken)

	var envelope struct {
		TransactionID string           `json:"transactionId"`
		Results       []MutationResult `json:"results"`
	}
	if err := c.send(req, &envelope); err != nil {
		return nil, errors.Wrap(err, "content mutate")
	}
	c.logger.Debug().Str("tx", envelope.TransactionID).Int("mutations", len(mutations)).Msg("mutation committed")
	return envelope.Results, nil
}

// APIError is a non-2xx response from the content store.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Description)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	c.logger.Debug().Str("method", req.Method).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("content call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error struct {
				Description string `json:"description"`
			} `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		desc := apiErr.Error.Description
		if desc == "" {
			desc = apiErr.Message
		}
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Description: desc}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
