package declarest

import (
	"net/http"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient sets the underlying *http.Client of the default transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTransport replaces the transport port entirely. Useful for tests and
// non-HTTP carriers.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithMiddleware appends middleware around the transport, first entry
// outermost.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithCache overrides the configured cache backend.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the structured event sink.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables the built-in stderr logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithModelRegistry sets the registry request/response model bindings
// resolve against.
func WithModelRegistry(registry *ModelRegistry) Option {
	return func(c *Client) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithRequestIDGenerator sets a custom request ID generator for the event
// side channel.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.requestID = gen
		}
	}
}

// WithRetryCondition overrides the default retryability classifier for
// every retried endpoint of this client.
func WithRetryCondition(condition RetryCondition) Option {
	return func(c *Client) {
		c.retryCondition = condition
	}
}

// WithResponseTransform attaches a pure transform hook to the named
// endpoint. An empty version applies to every version without an explicit
// hook of its own.
func WithResponseTransform(name, version string, transform ResponseTransform) Option {
	return func(c *Client) {
		c.transforms[endpointKey{name: name, version: version}] = transform
	}
}
