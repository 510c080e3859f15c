// Package client is a small API client for the proxy's operational
// endpoints (health, debug introspection, upstream probe).
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

type Option func(*Client)

// WithAuthToken sets the bearer token sent with every request. Needed
// when the server gates its debug endpoints behind service auth.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL '%s': %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL '%s' must be http or https", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type urlBuilder struct {
	base  string
	path  string
	query url.Values
}

func (c *Client) url() urlBuilder {
	return urlBuilder{base: c.baseURL, query: url.Values{}}
}

func (b urlBuilder) setPath(path string) urlBuilder {
	b.path = path
	return b
}

func (b urlBuilder) addQueryParam(key string, value any) urlBuilder {
	b.query.Add(key, fmt.Sprint(value))
	return b
}

func (b urlBuilder) build() string {
	s := b.base + b.path
	if len(b.query) > 0 {
		s += "?" + b.query.Encode()
	}
	return s
}
