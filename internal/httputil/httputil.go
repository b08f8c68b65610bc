package httputil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
)

// RequestBuilder provides a fluent API for building HTTP requests
type RequestBuilder struct {
	ctx     context.Context
	method  string
	url     string
	body    io.Reader
	query   url.Values
	headers http.Header
}

// NewRequest creates a new RequestBuilder
func NewRequest(method, url string) *RequestBuilder {
	return &RequestBuilder{
		method:  method,
		url:     url,
		headers: make(http.Header),
	}
}

// WithContext sets the request context
func (b *RequestBuilder) WithContext(ctx context.Context) *RequestBuilder {
	b.ctx = ctx
	return b
}

// WithBody sets the request body from bytes
func (b *RequestBuilder) WithBody(body []byte) *RequestBuilder {
	b.body = bytes.NewReader(body)
	return b
}

// WithBodyReader sets the request body from a reader
func (b *RequestBuilder) WithBodyReader(body io.Reader) *RequestBuilder {
	b.body = body
	return b
}

// WithQuery adds query parameters, keeping any already in the URL
func (b *RequestBuilder) WithQuery(query url.Values) *RequestBuilder {
	if b.query == nil {
		b.query = make(url.Values)
	}
	for key, values := range query {
		for _, value := range values {
			b.query.Add(key, value)
		}
	}
	return b
}

// WithHeader adds a single header. Empty values are skipped.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	if value != "" {
		b.headers.Set(key, value)
	}
	return b
}

// WithBearer sets the Authorization header when token is not empty
func (b *RequestBuilder) WithBearer(token string) *RequestBuilder {
	if token != "" {
		b.headers.Set("Authorization", "Bearer "+token)
	}
	return b
}

// Build creates the http.Request
func (b *RequestBuilder) Build() (*http.Request, error) {
	ctx := b.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.url, b.body)
	if err != nil {
		return nil, err
	}

	if len(b.query) > 0 {
		q := req.URL.Query()
		for key, values := range b.query {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	for key, values := range b.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	return req, nil
}
