package declarest

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"
)

// Response is the mapped result of an endpoint invocation. The raw decoded
// value stays reachable through Data and Get while a bound response model
// is available through Model and Decode.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	modelName string
	registry  *ModelRegistry

	once    sync.Once
	decoded any
}

func newResponse(resp *TransportResponse, modelName string, registry *ModelRegistry) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		modelName:  modelName,
		registry:   registry,
	}
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Data returns the lazily decoded body: a JSON value when the body parses,
// otherwise the raw text.
func (r *Response) Data() any {
	r.once.Do(func() {
		var v any
		if len(r.Body) > 0 && json.Unmarshal(r.Body, &v) == nil {
			r.decoded = v
			return
		}
		r.decoded = string(r.Body)
	})
	return r.decoded
}

// Get resolves a gjson path against the raw body, e.g. "items.0.id".
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// Decode unmarshals the body into the given value.
func (r *Response) Decode(into any) error {
	return json.Unmarshal(r.Body, into)
}

// Model instantiates the bound response model from the body. It fails when
// no model is bound or the body does not fit it.
func (r *Response) Model() (any, error) {
	if r.modelName == "" {
		return nil, newConfigurationError("no response model bound")
	}
	if r.registry == nil {
		return nil, newConfigurationError("response model %q is not registered", r.modelName)
	}
	instance, ok := r.registry.New(r.modelName)
	if !ok {
		return nil, newConfigurationError("response model %q is not registered", r.modelName)
	}
	if err := json.Unmarshal(r.Body, instance); err != nil {
		return nil, newValidationError("response", "body does not match model %q: %v", r.modelName, err)
	}
	return instance, nil
}

// cachedResponse is the serialized form stored in the cache port.
type cachedResponse struct {
	StatusCode int                 `json:"status_code"`
	Header     map[string][]string `json:"header,omitempty"`
	Body       []byte              `json:"body,omitempty"`
}

func encodeCachedResponse(r *Response) ([]byte, error) {
	return json.Marshal(cachedResponse{
		StatusCode: r.StatusCode,
		Header:     r.Header,
		Body:       r.Body,
	})
}

func decodeCachedResponse(data []byte, modelName string, registry *ModelRegistry) (*Response, error) {
	var c cachedResponse
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return newResponse(&TransportResponse{
		StatusCode: c.StatusCode,
		Header:     c.Header,
		Body:       c.Body,
	}, modelName, registry), nil
}
