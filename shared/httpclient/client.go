// Package httpclient provides a shared HTTP client factory with common
// timeouts.
package httpclient

import (
	"net/http"
	"time"
)

const (
	TimeoutShort  = 10 * time.Second
	TimeoutMedium = 30 * time.Second
)

type Option func(*http.Client)

func WithTimeout(d time.Duration) Option {
	return func(c *http.Client) {
		c.Timeout = d
	}
}

// WithTransport sets a custom transport (e.g., for tracing).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *http.Client) {
		c.Transport = rt
	}
}

func New(opts ...Option) *http.Client {
	c := &http.Client{
		Timeout:   TimeoutMedium,
		Transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func NewShort(opts ...Option) *http.Client {
	return New(append([]Option{WithTimeout(TimeoutShort)}, opts...)...)
}
