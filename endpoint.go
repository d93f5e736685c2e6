package declarest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EndpointDescriptor is the immutable runtime form of one endpoint. It is
// constructed once and shared read-only across concurrent invocations.
type EndpointDescriptor struct {
	Name          string
	Version       string
	Path          string
	Method        string
	AuthRequired  bool
	RaiseOnError  bool
	Timeout       time.Duration
	Retry         RetryPolicy
	CacheEnabled  bool
	CacheTTL      time.Duration
	RequestModel  string
	ResponseModel string
	BodyRequired  bool
	Params        map[string]ParamSpec
}

func newEndpointDescriptor(name, version string, cfg *EndpointConfig) *EndpointDescriptor {
	desc := &EndpointDescriptor{
		Name:          name,
		Version:       version,
		Path:          cfg.Path,
		Method:        strings.ToUpper(cfg.Method),
		AuthRequired:  cfg.AuthRequired,
		RaiseOnError:  cfg.raiseOnError(),
		Timeout:       time.Duration(cfg.Timeout * float64(time.Second)),
		Retry:         cfg.retryPolicy(),
		RequestModel:  cfg.RequestModel,
		ResponseModel: cfg.ResponseModel,
		BodyRequired:  cfg.BodyRequired,
		Params:        cfg.Params,
	}
	if cfg.Cache != nil && cfg.Cache.Enabled {
		desc.CacheEnabled = true
		desc.CacheTTL = time.Duration(cfg.Cache.TTL * float64(time.Second))
	}
	return desc
}

// Endpoint dispatches invocations of one (name, version) endpoint. It
// borrows the auth, cache and transport ports from its owning Client and
// never holds a reference back to it. Safe for concurrent use.
type Endpoint struct {
	api       string
	baseURL   string
	desc      *EndpointDescriptor
	auth      Authenticator
	cache     Cache
	transport Transport
	retry     *RetryExecutor // nil when a single attempt is configured
	registry  *ModelRegistry
	logger    Logger
	metrics   *MetricsCollector
	logging   *LoggingConfig
	transform ResponseTransform
	requestID func() string
}

// Descriptor exposes the immutable endpoint description.
func (e *Endpoint) Descriptor() *EndpointDescriptor { return e.desc }

// Execute runs the full pipeline: cache probe, parameter validation, URL
// assembly, body coercion, auth, transport with retry, response mapping,
// cache store and the transform hook. It returns a mapped *Response or
// exactly one taxonomy error. A cache hit returns the stored result as-is;
// the transform hook runs only on freshly mapped responses.
func (e *Endpoint) Execute(ctx context.Context, args CallArgs) (*Response, error) {
	start := time.Now()
	requestID := e.requestID()

	cacheEligible := e.desc.Method == "GET" && e.desc.CacheEnabled && e.cache != nil
	var cacheKey string
	if cacheEligible {
		cacheKey = responseCacheKey(e.api, e.desc.Name, args.Params, args.Headers)
		if resp, ok := e.probeCache(ctx, cacheKey, requestID); ok {
			return resp, nil
		}
	}

	params, err := validateParams(args.Params, e.desc.Params)
	if err != nil {
		return nil, e.fail(err)
	}

	req, err := e.buildRequest(params, args)
	if err != nil {
		return nil, e.fail(err)
	}

	if e.desc.AuthRequired && e.auth != nil {
		if err := e.auth.Apply(ctx, req); err != nil {
			return nil, e.fail(err)
		}
	}

	e.emitRequest(req, requestID)

	tresp, err := e.send(ctx, req)
	latency := time.Since(start)

	if err != nil {
		e.emitResponse(0, latency, requestID, err)
		if e.metrics != nil {
			e.metrics.RecordRequest(e.api, e.desc.Name, e.desc.Method, 0, latency)
		}
		return nil, e.fail(err)
	}

	e.emitResponse(tresp.StatusCode, latency, requestID, nil)
	if e.metrics != nil {
		e.metrics.RecordRequest(e.api, e.desc.Name, e.desc.Method, tresp.StatusCode, latency)
	}

	if e.desc.RaiseOnError && (tresp.StatusCode < 200 || tresp.StatusCode >= 300) {
		return nil, e.fail(&APIError{Status: tresp.StatusCode, Body: decodeErrorBody(tresp.Body)})
	}

	resp := newResponse(tresp, e.desc.ResponseModel, e.registry)

	if cacheEligible {
		e.storeCache(ctx, cacheKey, resp, requestID)
	}

	if e.transform != nil {
		resp = e.transform(resp)
	}
	return resp, nil
}

// probeCache returns a previously stored result for the key, treating every
// cache failure as a miss.
func (e *Endpoint) probeCache(ctx context.Context, key, requestID string) (*Response, bool) {
	data, err := e.cache.Get(ctx, key)
	if err == nil {
		resp, derr := decodeCachedResponse(data, e.desc.ResponseModel, e.registry)
		if derr == nil {
			if e.metrics != nil {
				e.metrics.RecordCacheHit(e.api, e.desc.Name)
			}
			e.emitCache("cache_hit", key, requestID, nil)
			return resp, true
		}
		err = derr
	}
	if err != nil && !errors.Is(err, ErrCacheMiss) && e.logger != nil {
		e.logger.Warn("cache read failed", "type", "cache_error", "api", e.api,
			"endpoint", e.desc.Name, "error", err.Error())
	}
	if e.metrics != nil {
		e.metrics.RecordCacheMiss(e.api, e.desc.Name)
	}
	e.emitCache("cache_miss", key, requestID, nil)
	return nil, false
}

// storeCache writes the mapped result under the derived key. Failures are
// logged and absorbed; they never become the call's result.
func (e *Endpoint) storeCache(ctx context.Context, key string, resp *Response, requestID string) {
	data, err := encodeCachedResponse(resp)
	if err == nil {
		err = e.cache.Set(ctx, key, data, e.desc.CacheTTL)
	}
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("cache write failed", "type", "cache_error", "api", e.api,
				"endpoint", e.desc.Name, "error", err.Error())
		}
		return
	}
	e.emitCache("cache_store", key, requestID, nil)
}

// buildRequest assembles the outbound request: path substitution, query
// parameters, caller headers and the coerced body for write methods.
func (e *Endpoint) buildRequest(params map[string]any, args CallArgs) (*Request, error) {
	target, query, err := buildURL(e.baseURL, e.desc.Path, params)
	if err != nil {
		return nil, err
	}

	req := newRequest(e.desc.Method, target)
	req.Query = query
	req.Timeout = e.desc.Timeout
	for key, values := range args.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	switch e.desc.Method {
	case "POST", "PUT", "PATCH":
		if e.desc.BodyRequired && args.Body == nil {
			return nil, newValidationError("body", "body is required for endpoint %q", e.desc.Name)
		}
		body, err := coerceBody(args.Body, e.desc.RequestModel, e.registry)
		if err != nil {
			return nil, err
		}
		req.Body = body
	}
	return req, nil
}

// send executes the transport call, through the retry executor when the
// policy allows more than one attempt.
func (e *Endpoint) send(ctx context.Context, req *Request) (*TransportResponse, error) {
	op := func(ctx context.Context) (*TransportResponse, error) {
		return e.transport.Send(ctx, req)
	}
	if e.retry == nil {
		return op(ctx)
	}
	return e.retry.Run(ctx, op, func(attempt, maxAttempts int, delay time.Duration, cause error) {
		if e.metrics != nil {
			e.metrics.RecordRetry(e.api, e.desc.Name)
		}
		if e.logger != nil {
			e.logger.Warn("retry scheduled", "type", "retry", "api", e.api,
				"endpoint", e.desc.Name, "attempt", attempt, "max_attempts", maxAttempts,
				"delay_ms", delay.Milliseconds(), "error", cause.Error())
		}
	})
}

func (e *Endpoint) emitRequest(req *Request, requestID string) {
	if e.logger == nil || !e.logging.logRequests() {
		return
	}
	e.logger.Info("request", "type", "request", "api", e.api, "endpoint", e.desc.Name,
		"method", req.Method, "url", req.URL, "request_id", requestID,
		"headers", redactHeaders(req.Header, e.logging != nil && e.logging.LogSensitiveData))
}

func (e *Endpoint) emitResponse(status int, latency time.Duration, requestID string, err error) {
	if e.logger == nil || !e.logging.logResponses() {
		return
	}
	kv := []any{"type", "response", "api", e.api, "endpoint", e.desc.Name,
		"status", status, "latency_ms", latency.Milliseconds(), "request_id", requestID}
	if err != nil {
		kv = append(kv, "error", err.Error())
		e.logger.Error("response", kv...)
		return
	}
	if status >= 400 {
		e.logger.Warn("response", kv...)
		return
	}
	e.logger.Info("response", kv...)
}

func (e *Endpoint) emitCache(event, key, requestID string, err error) {
	if e.logger == nil {
		return
	}
	kv := []any{"type", event, "api", e.api, "endpoint", e.desc.Name,
		"cache_key", key, "request_id", requestID}
	if err != nil {
		kv = append(kv, "error", err.Error())
	}
	e.logger.Debug("cache", kv...)
}

// fail counts the error by taxonomy kind before handing it to the caller.
func (e *Endpoint) fail(err error) error {
	if e.metrics != nil {
		e.metrics.RecordError(e.api, e.desc.Name, errorKind(err))
	}
	return err
}

func errorKind(err error) string {
	var (
		configErr     *ConfigurationError
		validationErr *ValidationError
		authErr       *AuthenticationError
		apiErr        *APIError
		retryErr      *RetryExhaustedError
		cacheErr      *CacheError
	)
	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &configErr):
		return "configuration"
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &apiErr):
		return "api"
	case errors.As(err, &retryErr):
		return "retry_exhausted"
	case errors.As(err, &cacheErr):
		return "cache"
	default:
		return "transport"
	}
}

// validateParams enforces required parameters and declared types. With a
// schema present only declared parameters survive; without one everything
// passes through untouched.
func validateParams(params map[string]any, schema map[string]ParamSpec) (map[string]any, error) {
	if len(schema) == 0 {
		return params, nil
	}

	for name, spec := range schema {
		if spec.Required {
			if _, ok := params[name]; !ok {
				return nil, newValidationError(name, "required parameter is missing")
			}
		}
	}

	validated := make(map[string]any, len(params))
	for name, value := range params {
		spec, declared := schema[name]
		if !declared {
			continue
		}
		coerced, err := coerceParam(name, value, spec.Type)
		if err != nil {
			return nil, err
		}
		validated[name] = coerced
	}
	return validated, nil
}

func coerceParam(name string, value any, declaredType string) (any, error) {
	switch declaredType {
	case "", "str", "string":
		if declaredType != "" {
			if _, ok := value.(string); !ok {
				return nil, newValidationError(name, "must be of type string")
			}
		}
		return value, nil
	case "int":
		switch v := value.(type) {
		case int, int64:
			return v, nil
		case float64:
			if v != float64(int64(v)) {
				return nil, newValidationError(name, "must be of type int")
			}
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, newValidationError(name, "cannot convert %q to integer", v)
			}
			return n, nil
		default:
			return nil, newValidationError(name, "must be of type int")
		}
	case "float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, newValidationError(name, "cannot convert %q to float", v)
			}
			return f, nil
		default:
			return nil, newValidationError(name, "must be of type float")
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			return nil, newValidationError(name, "must be of type bool")
		}
		return value, nil
	case "list":
		if _, ok := value.([]any); !ok {
			return nil, newValidationError(name, "must be of type list")
		}
		return value, nil
	case "dict":
		if _, ok := value.(map[string]any); !ok {
			return nil, newValidationError(name, "must be of type dict")
		}
		return value, nil
	default:
		// Unknown declared types pass through unchecked.
		return value, nil
	}
}

var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// buildURL substitutes {name} placeholders in the path template, consuming
// the matching parameters, and turns the remainder into query parameters.
// A placeholder with no matching parameter fails validation.
func buildURL(baseURL, path string, params map[string]any) (string, url.Values, error) {
	consumed := make(map[string]bool)
	var missing string
	substituted := placeholderPattern.ReplaceAllStringFunc(path, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := params[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		consumed[name] = true
		return url.PathEscape(paramString(value))
	})
	if missing != "" {
		return "", nil, newValidationError(missing, "path parameter has no value")
	}

	query := make(url.Values)
	for name, value := range params {
		if consumed[name] {
			continue
		}
		query.Set(name, paramString(value))
	}
	return joinURL(baseURL, substituted), query, nil
}

func paramString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// joinURL resolves a possibly relative path against the base URL. Absolute
// URLs pass through untouched, which lets auth flows target a different
// host than the API itself.
func joinURL(baseURL, path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// decodeErrorBody parses a non-2xx payload for APIError: a JSON value when
// the body parses, otherwise the raw text.
func decodeErrorBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}
