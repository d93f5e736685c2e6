package declarest

import (
	"net/http"
	"net/url"
	"time"
)

// tokenExpiryBuffer is subtracted from a token's expiry when deciding
// whether it is still usable, so a token is refreshed before it actually
// lapses mid-request.
const tokenExpiryBuffer = 60 * time.Second

// Request is the assembled outbound call handed to the Transport. Auth
// variants extend its headers, query or body to carry credentials.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Query   url.Values
	Body    any
	Timeout time.Duration
}

// newRequest returns a Request with initialized header and query maps.
func newRequest(method, rawURL string) *Request {
	return &Request{
		Method: method,
		URL:    rawURL,
		Header: make(http.Header),
		Query:  make(url.Values),
	}
}

// bodyObject returns the request body as a mutable JSON object, creating an
// empty one when no body is set. It fails when the body is a non-object
// value, since field injection has nowhere to go.
func (r *Request) bodyObject() (map[string]any, bool) {
	if r.Body == nil {
		obj := make(map[string]any)
		r.Body = obj
		return obj, true
	}
	obj, ok := r.Body.(map[string]any)
	return obj, ok
}

// TransportResponse is the raw transport result before any mapping.
type TransportResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// TokenInfo holds the credential state for one dynamic-token scope.
// ExpiresAt is epoch seconds; zero means the token never expires.
type TokenInfo struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	TokenType    string `json:"token_type"`
}

// Usable reports whether the token can still back a request at now,
// honoring the expiry safety buffer.
func (t *TokenInfo) Usable(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt == 0 {
		return true
	}
	return now.Before(time.Unix(t.ExpiresAt, 0).Add(-tokenExpiryBuffer))
}

// Token placement targets for dynamic-token credentials.
const (
	PlacementHeader = "header"
	PlacementQuery  = "query"
	PlacementBody   = "body"
)

// CallArgs carries the call-time arguments of one endpoint invocation.
type CallArgs struct {
	// Params feeds path placeholders and query parameters.
	Params map[string]any
	// Headers are merged into the outbound request.
	Headers http.Header
	// Body is the request payload for write methods. Values implementing
	// Model are converted through ToMap; anything else is JSON-encoded
	// as-is.
	Body any
}

// ResponseTransform is a pure hook applied to the mapped result of an
// endpoint before it is returned to the caller.
type ResponseTransform func(*Response) *Response

// RetryCallback observes scheduled retries. It is a side channel only and
// must not affect control flow.
type RetryCallback func(attempt, maxAttempts int, delay time.Duration, cause error)
