// Package mediawiki is a small client for the MediaWiki action API covering
// the queries the pending-changes review needs.
package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// APIError is the error envelope returned by the action API.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mediawiki api error %s: %s", e.Code, e.Info)
}

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mediawiki api returned HTTP %d", e.StatusCode)
}

// Client talks to one wiki's api.php.
type Client struct {
	endpoint        string
	http            *http.Client
	categoryAliases []string
}

// Option configures a Client.
type Option func(*Client)

// WithCategoryAliases adds localized names of the Category namespace, for
// example "Luokka" on the Finnish Wikipedia.
func WithCategoryAliases(aliases ...string) Option {
	return func(c *Client) {
		c.categoryAliases = append(c.categoryAliases, aliases...)
	}
}

// New creates a client for the api.php at endpoint.
func New(endpoint string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{endpoint: endpoint, http: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the api.php URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type envelope struct {
	Error    *APIError         `json:"error"`
	Continue map[string]string `json:"continue"`
	Query    json.RawMessage   `json:"query"`
}

// query runs action=query with params and decodes the "query" member into
// out. It returns the continuation parameters, if any.
func (c *Client) query(ctx context.Context, params url.Values, out any) (map[string]string, error) {
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Error != nil {
		return nil, env.Error
	}
	if len(env.Query) > 0 && out != nil {
		if err := json.Unmarshal(env.Query, out); err != nil {
			return nil, fmt.Errorf("decode query: %w", err)
		}
	}
	return env.Continue, nil
}

// IsNotFound reports whether err means the wiki does not know the page or
// revision.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == "nosuchrevid" || apiErr.Code == "missingtitle" || apiErr.Code == "nosuchpageid"
	}
	return false
}

func joinIDs(ids ...int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, "|")
}
