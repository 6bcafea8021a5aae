// Package remote executes queued mutations as HTTP requests.
//
// A RequestMutation persists as a small JSON document (method, path, body)
// under the type tag "http.request". On drain the Client replays it against
// its base URL and maps the response status onto a mutation.Result:
//
//	2xx                 Success (response body as data)
//	409                 Conflict (response body as data)
//	408, 429, 503       Retry
//	anything else       Failure
//
// Transport errors are Failures. Every request carries the mutation id in
// an Idempotency-Key header so the remote can drop replays.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/waypost/internal/ir"
	"github.com/roach88/waypost/internal/mutation"
)

// RequestType is the type tag of RequestMutation records.
const RequestType = "http.request"

// Limits for outbound requests.
const (
	DefaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// Request is the persisted payload of a RequestMutation.
type Request struct {
	Method string    `json:"method"`
	Path   string    `json:"path"`
	Body   ir.Object `json:"body,omitempty"`
}

// Validate checks that the request can be sent.
func (r Request) Validate() error {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("path %q must start with /", r.Path)
	}
	return nil
}

// RequestMutation is a Mutation that performs one HTTP request.
type RequestMutation struct {
	mutation.Base
	Request

	client *Client
}

// Type implements mutation.Mutation.
func (m RequestMutation) Type() string { return RequestType }

// Payload implements mutation.Mutation.
func (m RequestMutation) Payload() ([]byte, error) {
	if err := m.Request.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m.Request)
}

// Execute implements mutation.Mutation.
func (m RequestMutation) Execute(ctx context.Context) mutation.Result {
	return m.client.Do(ctx, m.ID(), m.Request)
}

// Client sends mutation requests to one remote base URL.
type Client struct {
	baseURL string
	http    *http.Client
	headers http.Header
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithHeader adds a header to every request, e.g. Authorization.
func WithHeader(key, value string) ClientOption {
	return func(cl *Client) {
		cl.headers.Set(key, value)
	}
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRequest creates a RequestMutation bound to c with a fresh id.
func (c *Client) NewRequest(method, path string, body ir.Object) RequestMutation {
	return RequestMutation{
		Base:    mutation.NewBase(),
		Request: Request{Method: method, Path: path, Body: body},
		client:  c,
	}
}

// Register installs the decoder for RequestType records on reg.
func (c *Client) Register(reg *mutation.Registry) {
	reg.RegisterDecoder(RequestType, c.decode)
}

func (c *Client) decode(rec ir.MutationRecord) (mutation.Mutation, error) {
	var req Request
	if err := json.Unmarshal(rec.Payload, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return RequestMutation{
		Base:    mutation.NewBaseAt(rec.ID, rec.CreatedAt).WithRetryCount(rec.RetryCount),
		Request: req,
		client:  c,
	}, nil
}

// Do sends req and maps the response onto a Result.
func (c *Client) Do(ctx context.Context, id string, req Request) mutation.Result {
	var body io.Reader
	if req.Body != nil {
		data, err := ir.MarshalCanonical(req.Body)
		if err != nil {
			return mutation.Failure(fmt.Errorf("encode body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return mutation.Failure(fmt.Errorf("build request: %w", err))
	}
	for k, v := range c.headers {
		httpReq.Header[k] = v
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id != "" {
		httpReq.Header.Set("Idempotency-Key", id)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return mutation.Failure(fmt.Errorf("%s %s: %w", req.Method, req.Path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return mutation.Failure(fmt.Errorf("read response: %w", err))
	}
	return classify(resp.StatusCode, data)
}

// classify maps an HTTP status onto a Result.
func classify(status int, body []byte) mutation.Result {
	switch {
	case status >= 200 && status <= 299:
		return mutation.Success(body)
	case status == http.StatusConflict:
		return mutation.Conflict(body)
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status == http.StatusServiceUnavailable:
		return mutation.Retry()
	default:
		return mutation.Failure(&StatusError{Code: status, Body: string(body)})
	}
}

// StatusError is a non-retryable HTTP failure.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned %d", e.Code)
	}
	return fmt.Sprintf("remote returned %d: %s", e.Code, e.Body)
}
