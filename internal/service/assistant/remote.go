package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is where the retrieval backend listens in development.
	DefaultEndpoint = "http://localhost:8000/chat"
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 30 * time.Second

	retrievalTopK = 3
)

// remoteRequest is the body the retrieval backend expects.
type remoteRequest struct {
	Message string `json:"message"`
	TopK    int    `json:"top_k"`
	Explain bool   `json:"explain"`
}

// RemoteClient asks the retrieval-augmented backend over HTTP. It makes one
// attempt per query.
type RemoteClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewRemoteClient creates a client for endpoint. A non-positive timeout uses
// DefaultTimeout.
func NewRemoteClient(endpoint string, timeout time.Duration) *RemoteClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RemoteClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Endpoint returns the URL queries are posted to.
func (c *RemoteClient) Endpoint() string {
	return c.endpoint
}

// Answer posts query and normalizes the reply.
func (c *RemoteClient) Answer(ctx context.Context, query string) (*Answer, error) {
	payload, err := json.Marshal(remoteRequest{Message: query, TopK: retrievalTopK})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: readBody(resp.Body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if fields == nil {
		return nil, &DecodeError{Err: errors.New("null body")}
	}

	return Normalize(fields), nil
}

func readBody(r io.Reader) string {
	body, err := io.ReadAll(r)
	if err != nil {
		return UnreadableBody
	}
	return string(body)
}
