package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gh "github.com/cli/go-gh/v2/pkg/api"
)

// Credentials authenticate every request with HTTP Basic auth.
type Credentials struct {
	Email    string
	APIToken string
}

// Header returns the Authorization header value.
func (c Credentials) Header() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Email+":"+c.APIToken))
}

// Response is the status, headers and body of a completed request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends one request to Jira. A nil error means a response was
// received, whatever its status.
type Transport interface {
	Send(ctx context.Context, method, url string, body []byte, creds Credentials) (*Response, error)
}

// TransportOptions configures an HTTPTransport.
type TransportOptions struct {
	// Timeout bounds each attempt.
	Timeout time.Duration

	// Retry controls resending on 429 and 503.
	Retry RetryPolicy

	// UserAgent is sent with every request.
	UserAgent string

	// Log receives request and response traces when non-nil.
	Log io.Writer

	// LogVerboseHTTP includes headers and bodies in the trace.
	LogVerboseHTTP bool

	// RoundTripper replaces http.DefaultTransport.
	RoundTripper http.RoundTripper
}

// HTTPTransport sends requests through go-gh's HTTP client, which supplies
// the timeout, header injection and request logging.
type HTTPTransport struct {
	opts TransportOptions
}

// NewHTTPTransport creates a transport with the given options.
func NewHTTPTransport(opts TransportOptions) *HTTPTransport {
	return &HTTPTransport{opts: opts}
}

func (t *HTTPTransport) client(rawURL string, creds Credentials) (*http.Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	rt := t.opts.RoundTripper
	if rt == nil {
		rt = http.DefaultTransport
	}

	headers := map[string]string{
		"Authorization": creds.Header(),
		"Accept":        "application/json",
		"Content-Type":  "application/json",
	}
	if t.opts.UserAgent != "" {
		headers["User-Agent"] = t.opts.UserAgent
	}

	// Host, AuthToken and Transport are all set so go-gh does not try to
	// resolve a GitHub host or token from the local gh configuration.
	return gh.NewHTTPClient(gh.ClientOptions{
		Host:               u.Hostname(),
		AuthToken:          creds.APIToken,
		Headers:            headers,
		SkipDefaultHeaders: true,
		Transport:          rt,
		Timeout:            t.opts.Timeout,
		Log:                t.opts.Log,
		LogIgnoreEnv:       true,
		LogVerboseHTTP:     t.opts.LogVerboseHTTP,
	})
}

// Send implements Transport. Responses with status 429 or 503 are retried
// according to the retry policy; the last one is returned if retries run
// out.
func (t *HTTPTransport) Send(ctx context.Context, method, rawURL string, body []byte, creds Credentials) (*Response, error) {
	client, err := t.client(rawURL, creds)
	if err != nil {
		return nil, &TransportError{Method: method, URL: rawURL, Err: err}
	}

	var last *Response
	err = WithRetry(ctx, t.opts.Retry, func() error {
		resp, err := t.do(ctx, client, method, rawURL, body, creds)
		if err != nil {
			return err
		}
		last = resp
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			return newHTTPError(resp)
		}
		return nil
	})

	var httpErr *HTTPError
	if err != nil && !errors.As(err, &httpErr) {
		return nil, &TransportError{Method: method, URL: rawURL, Err: err}
	}
	return last, nil
}

func (t *HTTPTransport) do(ctx context.Context, client *http.Client, method, rawURL string, body []byte, creds Credentials) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", creds.Header())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
