// Package remote talks to a running xorcism server so the CLI can munge
// through stored keys without access to the key store.
package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/http2"

	"github.com/xorcism-go/internal/httputil"
)

// Options configures a Client
type Options struct {
	BaseURL            string
	Token              string
	EnableH2C          bool // speak HTTP/2 cleartext to an h2c server
	InsecureSkipVerify bool
	MaxIdleConns       int
}

// Client wraps http.Client with connection pooling and HTTP/2 support
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient creates a new API client
func NewClient(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url: %q", opts.BaseURL)
	}

	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 16
	}

	var transport http.RoundTripper
	if opts.EnableH2C && u.Scheme == "http" {
		transport = &http2.Transport{
			AllowHTTP: true, // Allow HTTP/2 over cleartext (h2c)
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				// For h2c, we dial without TLS
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		}
	} else {
		t := &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          maxIdle,
			MaxIdleConnsPerHost:   maxIdle,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: opts.InsecureSkipVerify,
			},
		}
		if err := http2.ConfigureTransport(t); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
		transport = t
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   0, // No timeout for streaming
		},
		baseURL: opts.BaseURL,
		token:   opts.Token,
	}, nil
}

// MungeOptions selects how a remote munge is performed
type MungeOptions struct {
	Offset uint64
	Codec  string
	Decode bool
}

// Munge streams src to the server's munge endpoint for keyName and copies
// the munged response to dst
func (c *Client) Munge(ctx context.Context, keyName string, src io.Reader, dst io.Writer, opts MungeOptions) (int64, error) {
	query := url.Values{}
	if opts.Offset > 0 {
		query.Set("offset", strconv.FormatUint(opts.Offset, 10))
	}
	if opts.Codec != "" {
		query.Set("codec", opts.Codec)
	}
	if opts.Decode {
		query.Set("decode", "true")
	}

	target, err := url.JoinPath(c.baseURL, "api", "munge", keyName)
	if err != nil {
		return 0, fmt.Errorf("failed to build url: %w", err)
	}

	req, err := httputil.NewRequest(http.MethodPost, target).
		WithContext(ctx).
		WithQuery(query).
		WithBodyReader(src).
		WithHeader("Content-Type", "application/octet-stream").
		WithBearer(c.token).
		Build()
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return io.Copy(dst, resp.Body)
}

// StatusError is returned when the server answers with a non-200 status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}
