// Package superset queries the wiki replicas through a Superset SQL Lab
// instance and turns the result rows into pending pages.
package superset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// StatusError reports a non-2xx SQL Lab response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("superset returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("superset returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Client executes SQL through SQL Lab.
type Client struct {
	baseURL    string
	token      string
	databaseID int
	http       *http.Client
}

// New creates a client for the Superset instance at baseURL. token is sent
// as a bearer token when non-empty.
func New(baseURL, token string, databaseID int, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		databaseID: databaseID,
		http:       httpClient,
	}
}

type executeRequest struct {
	DatabaseID int    `json:"database_id"`
	Schema     string `json:"schema"`
	SQL        string `json:"sql"`
	RunAsync   bool   `json:"runAsync"`
	JSON       bool   `json:"json"`
}

type executeResponse struct {
	Status  string `json:"status"`
	Data    []Row  `json:"data"`
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query runs sql synchronously against schema and returns the rows.
func (c *Client) Query(ctx context.Context, schema, sql string) ([]Row, error) {
	body, err := json.Marshal(executeRequest{DatabaseID: c.databaseID, Schema: schema, SQL: sql, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("encode sql lab request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sqllab/execute/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sql lab request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute sql: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sql lab response: %w", err)
	}
	var out executeResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: out.message()}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode sql lab response: %w", decodeErr)
	}
	if out.Status != "" && !strings.EqualFold(out.Status, "success") {
		return nil, fmt.Errorf("sql lab query %s: %s", out.Status, out.message())
	}
	log.Debug().Str("schema", schema).Int("rows", len(out.Data)).Msg("superset query finished")
	return out.Data, nil
}

func (r executeResponse) message() string {
	if r.Message != "" {
		return r.Message
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// PendingPages fetches the pending pages of the wiki whose replica schema
// is schema, for example "fiwiki_p". A non-positive limit returns nothing
// without a request.
func (c *Client) PendingPages(ctx context.Context, schema string, limit int, now time.Time) ([]Page, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := c.Query(ctx, schema, PendingQuery(limit))
	if err != nil {
		return nil, err
	}
	return GroupPages(rows, now), nil
}

// Schema returns the replica schema name for a wiki, e.g. "fiwiki_p" for
// code "fi" of the wikipedia family.
func Schema(code, family string) string {
	suffix := "wiki"
	if family != "" && family != "wikipedia" {
		suffix = family
	}
	return strings.ReplaceAll(code, "-", "_") + suffix + "_p"
}
