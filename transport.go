package declarest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// maxResponseSize bounds how much of a response body is read into memory.
const maxResponseSize = 10 * 1024 * 1024

// Transport is the HTTP call port the pipeline executes against. The core
// never opens or manages connections itself beyond invoking it.
type Transport interface {
	Send(ctx context.Context, req *Request) (*TransportResponse, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*TransportResponse, error)

func (f TransportFunc) Send(ctx context.Context, req *Request) (*TransportResponse, error) {
	return f(ctx, req)
}

// Middleware wraps a Transport for cross-cutting concerns (tracing, extra
// headers, fault injection in tests).
type Middleware func(ctx context.Context, req *Request, next Transport) (*TransportResponse, error)

// chainMiddleware composes middleware around a base transport, first entry
// outermost.
func chainMiddleware(base Transport, middleware []Middleware) Transport {
	if len(middleware) == 0 {
		return base
	}
	current := base
	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		next := current
		current = TransportFunc(func(ctx context.Context, req *Request) (*TransportResponse, error) {
			return mw(ctx, req, next)
		})
	}
	return current
}

// HTTPTransport is the default Transport on top of net/http. The per-attempt
// timeout comes from the Request; the retry executor never cancels an
// in-flight call itself.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps the given client, or a default one when nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*TransportResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", req.URL, err)
	}
	if len(req.Query) > 0 {
		q := target.Query()
		for key, values := range req.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	// Read one byte past the cap so an oversized body fails loudly instead
	// of being truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseSize)
	}

	return &TransportResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}
