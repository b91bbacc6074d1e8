package artifact

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds every request: connection setup, response
	// headers, and for downloads any gap between two chunks.
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "forge-install/1.0"
)

// Client issues the HTTP requests needed to install a distribution.
type Client struct {
	client    *http.Client
	stream    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewClient creates a client whose requests time out after timeout.
// A zero timeout selects DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout

	checkRedirect := func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("too many redirects")
		}
		return nil
	}

	return &Client{
		client: &http.Client{
			Transport:     transport,
			Timeout:       timeout,
			CheckRedirect: checkRedirect,
		},
		// Downloads can legitimately outlast the timeout, so the stream
		// client relies on the transport timeouts and the stall watchdog.
		stream: &http.Client{
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		timeout:   timeout,
		userAgent: DefaultUserAgent,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestOption customises an outgoing request.
type RequestOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Request performs a single GET and returns the whole response. Only status
// 200 succeeds; anything else is an *HTTPStatusError.
func (c *Client) Request(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	req, err := c.newRequest(ctx, url, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("read response body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, url string, opts ...RequestOption) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", c.userAgent)
	for _, opt := range opts {
		opt(req)
	}

	return req, nil
}
