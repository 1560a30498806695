package transport

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/youruser/cochat/internal/logging"
)

var log = logging.Get()

// DefaultTimeout bounds each network call, including long-lived streams.
const DefaultTimeout = 2 * time.Minute

// Response is the result of a completed (non-streamed) HTTP exchange.
// For streamed POSTs the body is delivered line by line instead and
// Body is empty.
type Response struct {
	Status int
	Body   []byte
}

// OK reports whether the status is in the 2xx range.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client is a thin HTTP wrapper with proxy and TLS options applied once.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient builds a client. proxyURL may be empty; insecure disables TLS
// certificate verification for self-signed corporate proxies.
func NewClient(proxyURL string, insecure bool, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tr := &http.Transport{}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		tr.Proxy = http.ProxyURL(parsed)
	}
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		httpClient: &http.Client{Transport: tr},
		timeout:    timeout,
	}, nil
}

// Get performs a GET and returns the full response body.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return Response{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Debug("HTTP GET %s", rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	log.Debug("HTTP response status: %d", resp.StatusCode)
	return Response{Status: resp.StatusCode, Body: body}, nil
}

// Post performs a POST. When onLine is non-nil and the response is 2xx, the
// body is consumed line by line and each line is handed to onLine; the
// returned Response carries only the status. On a non-2xx status the body is
// read in full so callers can surface it, regardless of onLine.
func (c *Client) Post(ctx context.Context, rawURL string, headers map[string]string, body []byte, onLine func(string)) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", rawURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Debug("HTTP POST %s (%d bytes)", rawURL, len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return Response{}, err
	}
	defer resp.Body.Close()

	log.Debug("HTTP response status: %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || onLine == nil {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return Response{}, err
		}
		return Response{Status: resp.StatusCode, Body: respBody}, nil
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return Response{Status: resp.StatusCode}, ctx.Err()
		default:
		}
		onLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return Response{Status: resp.StatusCode}, ctx.Err()
		}
		log.Error("stream read error: %v", err)
		return Response{Status: resp.StatusCode}, err
	}

	return Response{Status: resp.StatusCode}, nil
}
