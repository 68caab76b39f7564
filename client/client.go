package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Result is the outcome of a post submitted to the server.
type Result struct {
	EventID     string `json:"event_id"`
	Outcome     string `json:"outcome"` // confirmed, rejected, invalid
	Signature   string `json:"signature,omitempty"`
	Destination string `json:"destination,omitempty"`
	Lamports    uint64 `json:"lamports,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Stage       string `json:"stage,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Confirmed reports whether the network accepted the transfer.
func (r *Result) Confirmed() bool {
	return r.Outcome == "confirmed"
}

// Preview is the transfer the server would build for a post.
type Preview struct {
	From        string `json:"from"`
	Destination string `json:"destination"`
	Lamports    uint64 `json:"lamports"`
	Priority    string `json:"priority"`
}

// Transaction is a landed transaction as reported by the server.
type Transaction struct {
	Signature string     `json:"signature"`
	Found     bool       `json:"found"`
	Slot      uint64     `json:"slot,omitempty"`
	BlockTime *time.Time `json:"block_time,omitempty"`
	Lamports  uint64     `json:"lamports,omitempty"`
	From      *string    `json:"from,omitempty"`
	To        *string    `json:"to,omitempty"`
	Memo      *string    `json:"memo,omitempty"`
	Err       *string    `json:"err,omitempty"`
}

// Succeeded reports whether the transaction landed without an on-chain error.
func (t *Transaction) Succeeded() bool {
	return t.Found && t.Err == nil
}

// APIError is an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string // error kind label, if the server sent one
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("request failed (%d, %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the sniper service.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new sniper service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithAPIToken returns a copy of the client that authenticates with token.
func (c *Client) WithAPIToken(token string) *Client {
	clone := *c
	clone.apiToken = token
	return &clone
}

// SubmitEvent sends a post to the server and waits for the pipeline to finish.
// Invalid and rejected posts are reported through Result.Outcome, not as errors.
// id is optional and becomes the event id when set.
func (c *Client) SubmitEvent(ctx context.Context, id, text string) (*Result, error) {
	resp, err := c.postJSON(ctx, "/api/v1/events", map[string]string{"id": id, "text": text})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity, http.StatusBadGateway:
	default:
		return nil, c.parseErrorResponse(resp)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("event submitted",
		"event_id", result.EventID,
		"outcome", result.Outcome,
		"signature", result.Signature,
	)
	return &result, nil
}

// Preview asks the server which transfer a post would produce, without submitting it.
func (c *Client) Preview(ctx context.Context, text string) (*Preview, error) {
	resp, err := c.postJSON(ctx, "/api/v1/intents/preview", map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var preview Preview
	if err := json.NewDecoder(resp.Body).Decode(&preview); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &preview, nil
}

// Transaction looks up a transaction by signature.
// A signature the node does not know yet comes back with Found false.
func (c *Client) Transaction(ctx context.Context, signature string) (*Transaction, error) {
	resp, err := c.do(ctx, "GET", "/api/v1/transactions/"+url.PathEscape(signature), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var tx Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &tx, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, "GET", "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.do(ctx, "POST", path, bytes.NewReader(body))
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error     string `json:"error"`
		ErrorKind string `json:"error_kind"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, Kind: errResp.ErrorKind}
}
