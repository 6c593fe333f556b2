// Package transport is the single choke point for every call to the game
// server. It resolves the base URL, issues the request, and converts every
// non-2xx response or network failure into a normalized Error that is pushed
// to the overlay sink unless the caller opted out.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BaseResolver supplies the base URL for relative paths. Implemented by
// discovery.Resolver; tests use a static stub.
type BaseResolver interface {
	Base(ctx context.Context) (string, error)
}

// StaticBase is a BaseResolver that always returns a fixed URL.
type StaticBase string

func (s StaticBase) Base(context.Context) (string, error) { return string(s), nil }

// ErrorSink receives normalized errors for presentation. Implemented by the
// overlay channel.
type ErrorSink interface {
	PushError(e *Error)
}

// Options adjust a single request.
type Options struct {
	// SuppressOverlay skips the error sink for this call. Used by optimistic
	// background checks like liveness probes and catalog prefetch.
	SuppressOverlay bool
	// ContentType overrides the request body content type. Defaults to JSON
	// when a body is present.
	ContentType string
	Header      http.Header
}

type Client struct {
	http     *http.Client
	resolver BaseResolver
	sink     ErrorSink
	instance string
}

func NewClient(httpClient *http.Client, resolver BaseResolver, sink ErrorSink) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:     httpClient,
		resolver: resolver,
		sink:     sink,
		instance: uuid.NewString(),
	}
}

// Instance is the per-process client id sent with every request.
func (c *Client) Instance() string { return c.instance }

func (c *Client) Get(ctx context.Context, path string, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts)
}

func (c *Client) Post(ctx context.Context, path string, body []byte, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts)
}

func (c *Client) Put(ctx context.Context, path string, body []byte, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts)
}

func (c *Client) Delete(ctx context.Context, path string, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts)
}

// Do issues one request. Relative paths are resolved against the discovered
// base; absolute URLs are used as-is. The returned error, when non-nil, is
// always a *Error.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, opts Options) ([]byte, error) {
	fullURL := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		base, err := c.resolver.Base(ctx)
		if err != nil {
			return nil, c.fail(Normalize(err.Error(), "", 0, method+" "+path), opts)
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		fullURL = base + path
	}
	requestContext := method + " " + fullURL

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, c.fail(Normalize(err.Error(), "", 0, requestContext), opts)
	}
	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil {
		contentType := opts.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Client-Instance", c.instance)

	resp, err := c.http.Do(req)
	if err != nil {
		// No response at all: same normalization and overlay policy.
		return nil, c.fail(Normalize(err.Error(), "", 0, requestContext), opts)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(Normalize(err.Error(), "", resp.StatusCode, requestContext), opts)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		nerr := normalizeBody(payload, resp.StatusCode, requestContext)
		return nil, c.fail(nerr, opts)
	}
	return payload, nil
}

// fail applies the overlay policy: push unless suppressed, and never for
// 404, which callers treat as an expected transient condition. Logging
// happens in the overlay when the error view opens, so one failure produces
// one log line.
func (c *Client) fail(nerr *Error, opts Options) error {
	if c.sink != nil && !opts.SuppressOverlay && nerr.Status != http.StatusNotFound {
		c.sink.PushError(nerr)
	}
	return nerr
}
