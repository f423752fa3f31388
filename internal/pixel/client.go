package pixel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of an acknowledgement body is read.
// Real acknowledgements are a few dozen bytes.
const maxResponseBytes = 1 << 20

// transport is shared across clients and tuned for bursts of sequential
// posts to a single host, so connections are reused within a batch.
var transport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// Client posts tracking payloads to one pixel endpoint.
type Client struct {
	url  string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each send, covering connect, write and read.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client. Useful in tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient validates the endpoint URL and returns a ready client.
func NewClient(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pixel URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid pixel URL %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid pixel URL %q: missing host", rawURL)
	}
	c := &Client{
		url: rawURL,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the configured endpoint.
func (c *Client) URL() string { return c.url }

// SendError is a rejection reported by the endpoint itself in an
// otherwise successful HTTP exchange, as opposed to a transport failure.
type SendError struct {
	Reason string
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return fmt.Sprintf("pixel endpoint rejected event: %s", e.Reason)
}

// IsSendError reports whether err is a rejection from the endpoint.
func IsSendError(err error) bool {
	var se *SendError
	return errors.As(err, &se)
}

// Send posts one payload and interprets the acknowledgement. A nil
// return means the endpoint acknowledged with OK. An ERROR status comes
// back as *SendError; everything else is a transport or protocol error.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build pixel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post pixel event: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read pixel response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pixel endpoint returned %s", resp.Status)
	}

	var ack struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &ack); err != nil {
		return fmt.Errorf("decode pixel response: %w", err)
	}
	switch ack.Status {
	case "OK":
		return nil
	case "ERROR":
		reason := ack.Error
		if reason == "" {
			reason = "unspecified error"
		}
		return &SendError{Reason: reason}
	default:
		return fmt.Errorf("pixel endpoint returned unknown status %q", ack.Status)
	}
}
