// Package neo4j is a thin client for the Neo4j HTTP transactional endpoint.
// It speaks the documented tx/commit contract only, so any property-graph
// store exposing that surface (label/property matching, parameterized
// statements) can stand in for the real product.
package neo4j

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/osmoslab/taxonet/pkg/metrics"
)

// Statement is a single parameterized Cypher statement. Identifiers always
// travel as parameters; labels and relationship types are spliced only from
// the fixed tables in pkg/graph.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Row is one decoded result row.
type Row []any

// Result holds the decoded rows of one statement.
type Result struct {
	Columns []string
	Rows    []Row
}

type Client struct {
	Endpoint   string
	Username   string
	Password   string
	HTTPClient *http.Client
}

// New creates a client for the transactional endpoint at the given address.
func New(endpoint, username, password string) *Client {
	return &Client{
		Endpoint:   endpoint,
		Username:   username,
		Password:   password,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ExecCypher runs one statement in its own transaction.
func (client *Client) ExecCypher(
	ctx context.Context, cypher string, params map[string]any,
) (*Result, error) {
	results, err := client.Commit(ctx, []Statement{{Cypher: cypher, Params: params}})

	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &Result{}, nil
	}

	return results[0], nil
}

// Commit posts all statements as one transaction to tx/commit and decodes
// the per-statement results.
func (client *Client) Commit(
	ctx context.Context, statements []Statement,
) ([]*Result, error) {
	stmts := make([]map[string]any, 0, len(statements))

	for _, stmt := range statements {
		params := stmt.Params

		if params == nil {
			params = map[string]any{}
		}

		stmts = append(stmts, map[string]any{
			"statement":  stmt.Cypher,
			"parameters": params,
		})
	}

	body, err := json.Marshal(map[string]any{"statements": stmts})

	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		client.Endpoint+"/db/neo4j/tx/commit",
		bytes.NewReader(body),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if client.Username != "" {
		req.SetBasicAuth(client.Username, client.Password)
	}

	started := time.Now()
	resp, err := client.HTTPClient.Do(req)
	metrics.StoreLatency.Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.StoreRoundTrips.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.StoreRoundTrips.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("neo4j: status %s", resp.Status)
	}

	var raw struct {
		Results []struct {
			Columns []string `json:"columns"`
			Data    []struct {
				Row Row `json:"row"`
			} `json:"data"`
		} `json:"results"`
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		metrics.StoreRoundTrips.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(raw.Errors) > 0 {
		metrics.StoreRoundTrips.WithLabelValues("error").Inc()
		return nil, fmt.Errorf(
			"neo4j error %s: %s", raw.Errors[0].Code, raw.Errors[0].Message,
		)
	}

	metrics.StoreRoundTrips.WithLabelValues("ok").Inc()

	results := make([]*Result, 0, len(raw.Results))

	for _, res := range raw.Results {
		out := &Result{Columns: res.Columns}

		for _, data := range res.Data {
			out.Rows = append(out.Rows, data.Row)
		}

		results = append(results, out)
	}

	return results, nil
}

// Ping checks connectivity to the store.
func (client *Client) Ping(ctx context.Context) error {
	_, err := client.ExecCypher(ctx, "RETURN 1 AS n", nil)
	return err
}

// ClearAll detaches and deletes every node and relationship in the store.
// Destructive; used for test fixtures and explicit user resets only.
func (client *Client) ClearAll(ctx context.Context) error {
	_, err := client.ExecCypher(ctx, "MATCH (n) DETACH DELETE n", nil)
	return err
}

// String returns the value at position i when it is a string.
func (row Row) String(i int) (string, bool) {
	if i < 0 || i >= len(row) {
		return "", false
	}

	s, ok := row[i].(string)
	return s, ok
}

// Float returns the value at position i when it is a number. JSON numbers
// always decode as float64; numeric strings are not coerced here.
func (row Row) Float(i int) (float64, bool) {
	if i < 0 || i >= len(row) {
		return 0, false
	}

	f, ok := row[i].(float64)
	return f, ok
}

// Floats returns the value at position i as a list of numbers, accepting
// either a JSON array or a single number.
func (row Row) Floats(i int) []float64 {
	if i < 0 || i >= len(row) {
		return nil
	}

	switch v := row[i].(type) {
	case float64:
		return []float64{v}
	case []any:
		out := make([]float64, 0, len(v))

		for _, item := range v {
			if f, ok := item.(float64); ok {
				out = append(out, f)
			}
		}

		return out
	}

	return nil
}

// Strings returns the value at position i as a list of strings.
func (row Row) Strings(i int) []string {
	if i < 0 || i >= len(row) {
		return nil
	}

	items, ok := row[i].([]any)

	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))

	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

// Node returns the value at position i when it is a property map.
func (row Row) Node(i int) map[string]any {
	if i < 0 || i >= len(row) {
		return nil
	}

	node, ok := row[i].(map[string]any)

	if !ok {
		return nil
	}

	return node
}
