package declarest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/google/uuid"
)

// endpointKey addresses one dispatcher in the lookup table.
type endpointKey struct {
	name    string
	version string
}

// Client holds the compiled endpoint handles of one named API. It owns the
// shared cache and auth ports and routes invocations by (endpoint name,
// version) through an explicit lookup table; endpoints borrow the ports per
// call and never reference the client back. Safe for concurrent use.
type Client struct {
	name           string
	baseURL        string
	defaultVersion string

	endpoints map[endpointKey]*Endpoint

	cache      Cache
	ownedCache io.Closer
	auth       Authenticator
	transport  Transport
	middleware []Middleware
	httpClient *http.Client

	logger         Logger
	metrics        *MetricsCollector
	registry       *ModelRegistry
	requestID      func() string
	retryCondition RetryCondition
	transforms     map[endpointKey]ResponseTransform
}

// NewClient compiles an API configuration into callable endpoint handles.
// Bad or missing configuration fails here, never at call time.
func NewClient(cfg *APIConfig, opts ...Option) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		name:           cfg.Name,
		baseURL:        cfg.BaseURL,
		defaultVersion: cfg.DefaultVersion,
		endpoints:      make(map[endpointKey]*Endpoint),
		registry:       NewModelRegistry(),
		requestID:      uuid.NewString,
		transforms:     make(map[endpointKey]ResponseTransform),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(c.httpClient)
	}
	c.transport = chainMiddleware(c.transport, c.middleware)

	if c.cache == nil {
		cache, owned, err := buildCache(cfg)
		if err != nil {
			return nil, err
		}
		c.cache = cache
		c.ownedCache = owned
	}

	if cfg.Auth != nil {
		auth, err := newAuthenticator(cfg.Auth, authDeps{
			api:       c.name,
			baseURL:   c.baseURL,
			transport: c.transport,
			cache:     c.cache,
			logger:    c.logger,
			metrics:   c.metrics,
		})
		if err != nil {
			return nil, err
		}
		c.auth = auth
	}

	for version, endpoints := range cfg.Endpoints {
		for name, epCfg := range endpoints {
			ep, err := c.buildEndpoint(name, version, epCfg, cfg.Logging)
			if err != nil {
				return nil, err
			}
			c.endpoints[endpointKey{name: name, version: version}] = ep
		}
	}
	return c, nil
}

func (c *Client) buildEndpoint(name, version string, cfg *EndpointConfig, logging *LoggingConfig) (*Endpoint, error) {
	desc := newEndpointDescriptor(name, version, cfg)

	var retry *RetryExecutor
	if desc.Retry.MaxAttempts > 1 {
		var err error
		retry, err = NewRetryExecutor(desc.Retry, c.retryCondition)
		if err != nil {
			return nil, err
		}
	}

	transform := c.transforms[endpointKey{name: name, version: version}]
	if transform == nil {
		transform = c.transforms[endpointKey{name: name}]
	}

	return &Endpoint{
		api:       c.name,
		baseURL:   c.baseURL,
		desc:      desc,
		auth:      c.auth,
		cache:     c.cache,
		transport: c.transport,
		retry:     retry,
		registry:  c.registry,
		logger:    c.logger,
		metrics:   c.metrics,
		logging:   logging,
		transform: transform,
		requestID: c.requestID,
	}, nil
}

// buildCache constructs the configured cache backend. When nothing is
// configured but some endpoint enables response caching, an in-memory
// cache is provided so the cache policy still has a port to land on.
func buildCache(cfg *APIConfig) (Cache, io.Closer, error) {
	var backend *CacheBackendConfig
	if cfg.Auth != nil {
		backend = cfg.Auth.Cache
	}

	if backend == nil {
		if !anyEndpointCached(cfg) {
			return nil, nil, nil
		}
		return NewMemoryCache(), nil, nil
	}

	switch backend.Type {
	case CacheTypeRedis:
		prefix := backend.KeyPrefix
		if prefix == "" {
			prefix = fmt.Sprintf("declarest:%s:", cfg.Name)
		}
		cache, err := NewRedisCache(RedisOptions{
			Host:      backend.Host,
			Port:      backend.Port,
			Password:  backend.Password,
			DB:        backend.DB,
			KeyPrefix: prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return cache, cache, nil
	default:
		return NewMemoryCache(), nil, nil
	}
}

func anyEndpointCached(cfg *APIConfig) bool {
	for _, endpoints := range cfg.Endpoints {
		for _, ep := range endpoints {
			if ep.Cache != nil && ep.Cache.Enabled {
				return true
			}
		}
	}
	return false
}

// Invoke executes the named endpoint at the API's default version.
func (c *Client) Invoke(ctx context.Context, name string, args CallArgs) (*Response, error) {
	return c.InvokeVersion(ctx, name, c.defaultVersion, args)
}

// InvokeVersion executes the named endpoint at an explicit version. An
// unknown (name, version) pair is a ConfigurationError, not a silent no-op.
func (c *Client) InvokeVersion(ctx context.Context, name, version string, args CallArgs) (*Response, error) {
	ep, err := c.Endpoint(name, version)
	if err != nil {
		return nil, err
	}
	return ep.Execute(ctx, args)
}

// Endpoint resolves a dispatcher from the lookup table.
func (c *Client) Endpoint(name, version string) (*Endpoint, error) {
	ep, ok := c.endpoints[endpointKey{name: name, version: version}]
	if !ok {
		return nil, newConfigurationError("endpoint %q (version %q) not found in API %q", name, version, c.name)
	}
	return ep, nil
}

// EndpointNames lists the registered (name, version) pairs in stable order.
func (c *Client) EndpointNames() []string {
	names := make([]string, 0, len(c.endpoints))
	for key := range c.endpoints {
		names = append(names, key.version+"/"+key.name)
	}
	sort.Strings(names)
	return names
}

// Name returns the API name this client was compiled from.
func (c *Client) Name() string { return c.name }

// Models exposes the registry request/response bindings resolve against.
func (c *Client) Models() *ModelRegistry { return c.registry }

// Auth exposes the configured authenticator, if any, so callers can force
// a credential refresh.
func (c *Client) Auth() Authenticator { return c.auth }

// Close releases resources owned by the client, such as a Redis-backed
// cache connection pool.
func (c *Client) Close() error {
	if c.ownedCache != nil {
		return c.ownedCache.Close()
	}
	return nil
}
