// Package bitbucket is a minimal Bitbucket Server REST client covering what
// an export reads: repositories, pull requests, their commits and activity
// feeds, and attachments.
package bitbucket

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiPath = "/rest/api/1.0"

// DefaultPageLimit is the page size requested from paged endpoints.
const DefaultPageLimit = 100

// Client talks to one Bitbucket Server instance.
type Client struct {
	baseURL    string
	username   string
	token      string
	httpClient *http.Client
	pageLimit  int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageLimit sets the page size for paged endpoints.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification, for
// instances with self-signed certificates.
func WithInsecureSkipVerify() Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via bitbucket.ssl_verify=false
		c.httpClient = &http.Client{Timeout: c.httpClient.Timeout, Transport: transport}
	}
}

// New returns a Client for the instance at baseURL. When username is empty
// the token is sent as a bearer token, otherwise with basic auth.
func New(baseURL, username, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing bitbucket url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid bitbucket url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		username:   username,
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		pageLimit:  DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized instance URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Messages   []string
}

func (e *APIError) Error() string {
	msg := http.StatusText(e.StatusCode)
	if len(e.Messages) > 0 {
		msg = strings.Join(e.Messages, "; ")
	}
	return fmt.Sprintf("bitbucket: %s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, msg)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func parseAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Method: resp.Request.Method, URL: resp.Request.URL.String()}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var wire struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &wire) == nil {
		for _, e := range wire.Errors {
			if e.Message != "" {
				apiErr.Messages = append(apiErr.Messages, e.Message)
			}
		}
	}
	return apiErr
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bitbucket: creating request: %w", err)
	}
	if c.token != "" {
		if c.username != "" {
			req.SetBasicAuth(c.username, c.token)
		} else {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "bbs-exporter")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bitbucket: %s %s: %w", method, rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, parseAPIError(resp)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+apiPath+path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bitbucket: decoding %s: %w", path, err)
	}
	return nil
}

// page is the envelope of every paged Bitbucket Server response.
type page[T any] struct {
	Values        []T  `json:"values"`
	IsLastPage    bool `json:"isLastPage"`
	NextPageStart int  `json:"nextPageStart"`
}

// PageIterator lazily fetches pages of a paged endpoint. Next returns nil,
// nil once every page was consumed. It is not safe for concurrent use.
type PageIterator[T any] struct {
	client *Client
	path   string
	query  url.Values
	start  int
	done   bool
}

func list[T any](c *Client, path string, query url.Values) *PageIterator[T] {
	if query == nil {
		query = url.Values{}
	}
	return &PageIterator[T]{client: c, path: path, query: query}
}

// Next fetches the next page.
func (it *PageIterator[T]) Next(ctx context.Context) ([]T, error) {
	if it.done {
		return nil, nil
	}
	q := url.Values{}
	for k, v := range it.query {
		q[k] = v
	}
	q.Set("start", strconv.Itoa(it.start))
	q.Set("limit", strconv.Itoa(it.client.pageLimit))

	var p page[T]
	if err := it.client.getJSON(ctx, it.path+"?"+q.Encode(), &p); err != nil {
		return nil, err
	}
	if p.IsLastPage || p.NextPageStart <= it.start {
		it.done = true
	}
	it.start = p.NextPageStart
	if p.Values == nil {
		p.Values = []T{}
	}
	return p.Values, nil
}

// Collect fetches all remaining pages.
func (it *PageIterator[T]) Collect(ctx context.Context) ([]T, error) {
	var all []T
	for {
		items, err := it.Next(ctx)
		if err != nil {
			return all, err
		}
		if items == nil {
			return all, nil
		}
		all = append(all, items...)
	}
}
