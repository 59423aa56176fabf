// Package backend talks to the remote extraction service: whole-document
// extraction (/process_visual) and selection parsing (/parse_selection).
//
// Every call returns either a complete payload or an error. Failure
// responses, non-2xx statuses and undecodable bodies become *ServiceError;
// no partial data from a failed response ever leaves this package.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

const (
	extractPath = "/process_visual"
	parsePath   = "/parse_selection"

	// maxErrorBody bounds how much of an unexpected response body is kept
	// in a ServiceError.
	maxErrorBody = 512
)

// ServiceError is a failure reported by, or while talking to, the
// extraction service.
type ServiceError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Endpoint)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the service asked us to back off.
func (e *ServiceError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// IsServiceError reports whether err came from the extraction service.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// Client is an HTTP client for the extraction service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *Limiter
	log     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLimiter replaces the default rate limiter / retry policy.
func WithLimiter(l *Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, log logger.Logger, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		limiter: NewLimiter(DefaultLimits()),
		log:     log.Named("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request built by newReq and decodes the JSON body into out.
// newReq is called once per attempt so retried requests get a fresh body.
func (c *Client) do(ctx context.Context, endpoint string, newReq func(context.Context) (*http.Request, error), out any) error {
	_, err := Call(ctx, c.limiter, c.log, func(ctx context.Context) (struct{}, error) {
		req, err := newReq(ctx)
		if err != nil {
			return struct{}{}, &ServiceError{Endpoint: endpoint, Message: "failed to build request", Err: err}
		}

		c.log.Debug("POST %s", req.URL.String())
		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, &ServiceError{Endpoint: endpoint, Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, &ServiceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return struct{}{}, &ServiceError{
				Endpoint:   endpoint,
				StatusCode: resp.StatusCode,
				Message:    errorMessage(body),
			}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return struct{}{}, &ServiceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
		}
		return struct{}{}, nil
	})
	return err
}

// errorMessage pulls {"error": "..."} out of a failure body, falling back
// to a truncated copy of the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func jsonRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
