// Package backend is the HTTP client for the conversation-collection
// service. Every call is bounded by a per-request deadline: the request is
// canceled when the deadline elapses and the failure is classified as
// apierr.ErrTimeout. The deadline timer is always released on completion.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-capture/internal/apierr"
	"github.com/alnah/go-capture/internal/capture"
)

// Backend endpoint paths (see the collection service's API).
const (
	pathRegister  = "/register_conversation"
	pathUpload    = "/upload_audio"
	pathStatusAll = "/conversation_status_all"
	pathStatus    = "/conversation_status/" // + conversation id
)

// defaultTimeout is the per-request deadline for all backend calls.
const defaultTimeout = 5 * time.Second

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the collection backend.
type Client struct {
	httpClient httpDoer
	baseURL    string
	timeout    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(c httpDoer) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the per-request deadline. Default: 5s.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLMissing
	}
	c := &Client{
		// No client-level timeout: each request carries its own deadline,
		// which also covers reading the response body.
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// registerResponse is the body of a successful registration.
type registerResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// Register registers a new conversation and returns the session identifier
// issued by the backend.
func (c *Client) Register(ctx context.Context) (string, error) {
	body, err := c.post(ctx, pathRegister, "", nil)
	if err != nil {
		return "", err
	}

	var resp registerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("malformed registration response: %w", err)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("registration response has no session_id: %w", apierr.ErrBadRequest)
	}
	return resp.SessionID, nil
}

// Ack is the backend's acknowledgment of an uploaded chunk. It is recorded
// for diagnostics and not otherwise validated.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Cleanup string `json:"cleanup,omitempty"`
}

// Duplicate reports whether the backend had already processed this chunk.
func (a Ack) Duplicate() bool {
	return a.Status == "duplicate"
}

// UploadChunk sends one chunk as a multipart POST: the audio bytes under
// their deterministic filename plus session id, chunk number, and tag.
func (c *Client) UploadChunk(ctx context.Context, chunk capture.Chunk) (Ack, error) {
	var form bytes.Buffer
	writer := multipart.NewWriter(&form)

	part, err := writer.CreateFormFile("audio", chunk.Filename())
	if err != nil {
		return Ack{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(chunk.Data); err != nil {
		return Ack{}, fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.WriteField("session_id", chunk.SessionID); err != nil {
		return Ack{}, fmt.Errorf("failed to write session_id field: %w", err)
	}
	if err := writer.WriteField("chunk_number", strconv.Itoa(chunk.Sequence)); err != nil {
		return Ack{}, fmt.Errorf("failed to write chunk_number field: %w", err)
	}
	if err := writer.WriteField("chunk_type", string(chunk.Tag)); err != nil {
		return Ack{}, fmt.Errorf("failed to write chunk_type field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return Ack{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	body, err := c.post(ctx, pathUpload, writer.FormDataContentType(), &form)
	if err != nil {
		return Ack{}, err
	}

	// The acknowledgment is informational; a body that fails to parse does
	// not fail the upload.
	var ack Ack
	_ = json.Unmarshal(body, &ack)
	return ack, nil
}

// StatusAll fetches the status summary for all conversations. The response
// JSON is returned verbatim for the caller to render.
func (c *Client) StatusAll(ctx context.Context) (json.RawMessage, error) {
	body, err := c.post(ctx, pathStatusAll, "", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Status fetches the status of a single conversation.
func (c *Client) Status(ctx context.Context, sessionID string) (json.RawMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id cannot be empty: %w", apierr.ErrBadRequest)
	}
	body, err := c.post(ctx, pathStatus+sessionID, "", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// post issues a single deadline-bounded POST and returns the response body
// on a 2xx status. contentType may be empty for body-less endpoints.
func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	// The deadline covers the whole exchange, including reading the body.
	// cancel always runs, releasing the timer on every completion path.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// classifyTransportError maps request execution failures to apierr sentinels.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: deadline elapsed, request aborted", apierr.ErrTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", apierr.ErrTransport, err)
}

// classifyStatus maps non-success HTTP statuses to apierr sentinels.
func classifyStatus(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	const maxMsg = 200
	if len(msg) > maxMsg {
		msg = msg[:maxMsg] + "..."
	}
	if status >= 500 {
		return fmt.Errorf("%w: HTTP %d: %s", apierr.ErrServerStatus, status, msg)
	}
	return fmt.Errorf("%w: HTTP %d: %s", apierr.ErrBadRequest, status, msg)
}
