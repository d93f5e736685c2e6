package declarest

import (
	"encoding/json"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth variant tags. The set is closed: adding a variant means extending
// the factory in auth.go, not subclassing.
const (
	AuthTypeBearer       = "bearer"
	AuthTypeBasic        = "basic"
	AuthTypeAPIKey       = "api_key"
	AuthTypeDynamicToken = "dynamic_token"
)

// Cache backend tags.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Config is the parsed multi-API document. It is a plain value with no
// global registry behind it; callers own its lifecycle.
type Config struct {
	apis map[string]*APIConfig
}

// APIConfig describes one remote API.
type APIConfig struct {
	Name           string                                `json:"-"`
	BaseURL        string                                `json:"base_url"`
	DefaultVersion string                                `json:"default_version"`
	Timeout        float64                               `json:"timeout"`
	Auth           *AuthConfig                           `json:"auth,omitempty"`
	Logging        *LoggingConfig                        `json:"logging,omitempty"`
	Endpoints      map[string]map[string]*EndpointConfig `json:"endpoints"`
}

// AuthConfig is the tagged union over the auth variants. Only the fields of
// the selected Type are consulted.
type AuthConfig struct {
	Type string `json:"type"`

	// bearer
	Token string `json:"token,omitempty"`

	// basic
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// api_key
	KeyName  string `json:"key_name,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Location string `json:"location,omitempty"`

	// dynamic_token
	LoginEndpoint   *LoginEndpointConfig   `json:"login_endpoint,omitempty"`
	RefreshEndpoint *RefreshEndpointConfig `json:"refresh_endpoint,omitempty"`
	TokenPlacement  *TokenPlacementConfig  `json:"token_placement,omitempty"`

	// token/response cache backend shared by the whole API
	Cache *CacheBackendConfig `json:"cache,omitempty"`
}

// LoginEndpointConfig describes the login call of the dynamic-token flow
// and the response fields the token is extracted from.
type LoginEndpointConfig struct {
	Path              string         `json:"path"`
	Method            string         `json:"method"`
	Body              map[string]any `json:"body,omitempty"`
	TokenField        string         `json:"token_field,omitempty"`
	RefreshTokenField string         `json:"refresh_token_field,omitempty"`
	ExpiresInField    string         `json:"expires_in_field,omitempty"`
}

// RefreshEndpointConfig describes the refresh call of the dynamic-token flow.
type RefreshEndpointConfig struct {
	Path      string `json:"path"`
	Method    string `json:"method"`
	BodyField string `json:"body_field,omitempty"`
}

// TokenPlacementConfig selects where the credential is injected. Exactly
// one placement applies per config. Prefix distinguishes absent (defaults
// to "Bearer") from an explicit empty string (bare token).
type TokenPlacementConfig struct {
	Type       string  `json:"type"`
	HeaderName string  `json:"header_name,omitempty"`
	Prefix     *string `json:"prefix,omitempty"`
	ParamName  string  `json:"param_name,omitempty"`
	FieldName  string  `json:"field_name,omitempty"`
}

// CacheBackendConfig selects and configures the cache port implementation.
// TTL (seconds) is the default expiry for cached tokens.
type CacheBackendConfig struct {
	Type      string  `json:"type"`
	TTL       float64 `json:"ttl,omitempty"`
	Host      string  `json:"host,omitempty"`
	Port      int     `json:"port,omitempty"`
	DB        int     `json:"db,omitempty"`
	Password  string  `json:"password,omitempty"`
	KeyPrefix string  `json:"key_prefix,omitempty"`
}

// LoggingConfig tunes the event side channel of one API's pipeline.
type LoggingConfig struct {
	LogRequests      *bool `json:"log_requests,omitempty"`
	LogResponses     *bool `json:"log_responses,omitempty"`
	LogSensitiveData bool  `json:"log_sensitive_data,omitempty"`
}

func (l *LoggingConfig) logRequests() bool  { return l == nil || l.LogRequests == nil || *l.LogRequests }
func (l *LoggingConfig) logResponses() bool { return l == nil || l.LogResponses == nil || *l.LogResponses }

// EndpointConfig describes one endpoint as written in the document.
type EndpointConfig struct {
	Path          string               `json:"path"`
	Method        string               `json:"method"`
	AuthRequired  bool                 `json:"auth_required,omitempty"`
	RaiseOnError  *bool                `json:"raise_on_error,omitempty"`
	Timeout       float64              `json:"timeout,omitempty"`
	Retry         *RetryConfig         `json:"retry,omitempty"`
	Cache         *EndpointCacheConfig `json:"cache,omitempty"`
	RequestModel  string               `json:"request_model,omitempty"`
	ResponseModel string               `json:"response_model,omitempty"`
	BodyRequired  bool                 `json:"body_required,omitempty"`
	Params        map[string]ParamSpec `json:"params,omitempty"`
}

// RetryConfig is the document form of a RetryPolicy. Delay is seconds.
type RetryConfig struct {
	Attempts      int     `json:"attempts"`
	Delay         float64 `json:"delay,omitempty"`
	BackoffFactor float64 `json:"backoff_factor,omitempty"`
	Jitter        *bool   `json:"jitter,omitempty"`
}

// EndpointCacheConfig enables response caching for one endpoint. TTL is
// seconds; zero falls back to the default of one hour.
type EndpointCacheConfig struct {
	Enabled bool    `json:"enabled"`
	TTL     float64 `json:"ttl,omitempty"`
}

// ParamSpec declares one call-time parameter.
type ParamSpec struct {
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv resolves ${VAR} and ${VAR:default} placeholders against the
// process environment. Unset variables without a default are left verbatim.
func ExpandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		if name, def, ok := strings.Cut(expr, ":"); ok {
			if value, set := os.LookupEnv(name); set {
				return []byte(value)
			}
			return []byte(def)
		}
		if value, set := os.LookupEnv(expr); set {
			return []byte(value)
		}
		return match
	})
}

// LoadConfig reads a JSON config document from path, loading a sibling
// .env file first when one exists, and returns the validated Config.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigEnv(path, ".env")
}

// LoadConfigEnv is LoadConfig with an explicit .env location. An empty
// envFile skips .env loading entirely.
func LoadConfigEnv(path, envFile string) (*Config, error) {
	if envFile != "" {
		// Missing .env is fine; the environment may already be populated.
		_ = godotenv.Load(envFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Message: "read config file", Cause: err}
	}
	return ParseConfig(data)
}

// ParseConfig expands environment placeholders, decodes the document,
// applies defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	expanded := ExpandEnv(data)

	apis := make(map[string]*APIConfig)
	if err := json.Unmarshal(expanded, &apis); err != nil {
		return nil, &ConfigurationError{Message: "invalid JSON in config", Cause: err}
	}

	cfg := &Config{apis: apis}
	for name, api := range apis {
		api.Name = name
		api.applyDefaults()
		if err := api.validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// API returns the configuration of one named API.
func (c *Config) API(name string) (*APIConfig, error) {
	api, ok := c.apis[name]
	if !ok {
		return nil, newConfigurationError("API %q not found in configuration", name)
	}
	return api, nil
}

// APINames lists the configured APIs in stable order.
func (c *Config) APINames() []string {
	names := make([]string, 0, len(c.apis))
	for name := range c.apis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Client builds a ready-to-invoke Client for one named API.
func (c *Config) Client(name string, opts ...Option) (*Client, error) {
	api, err := c.API(name)
	if err != nil {
		return nil, err
	}
	return NewClient(api, opts...)
}

func (a *APIConfig) applyDefaults() {
	if a.DefaultVersion == "" {
		a.DefaultVersion = "v1"
	}
	if a.Timeout <= 0 {
		a.Timeout = 30
	}
	for _, version := range a.Endpoints {
		for _, ep := range version {
			if ep == nil {
				continue
			}
			if ep.Timeout <= 0 {
				ep.Timeout = a.Timeout
			}
			if ep.Retry == nil {
				ep.Retry = &RetryConfig{Attempts: 1}
			}
			if ep.Retry.Attempts <= 0 {
				ep.Retry.Attempts = 1
			}
			if ep.Retry.Delay <= 0 {
				ep.Retry.Delay = 1.0
			}
			if ep.Retry.BackoffFactor <= 0 {
				ep.Retry.BackoffFactor = 2.0
			}
			if ep.Cache != nil && ep.Cache.Enabled && ep.Cache.TTL <= 0 {
				ep.Cache.TTL = 3600
			}
		}
	}
	if a.Auth != nil && a.Auth.Cache != nil {
		if a.Auth.Cache.Type == "" {
			a.Auth.Cache.Type = CacheTypeMemory
		}
		if a.Auth.Cache.TTL <= 0 {
			a.Auth.Cache.TTL = 3600
		}
	}
}

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true,
}

func (a *APIConfig) validate() error {
	if a.BaseURL == "" {
		return newConfigurationError("API %q: base_url is required", a.Name)
	}
	if len(a.Endpoints) == 0 {
		return newConfigurationError("API %q: endpoints are required", a.Name)
	}
	for version, endpoints := range a.Endpoints {
		for name, ep := range endpoints {
			if ep == nil {
				return newConfigurationError("API %q: endpoint %s/%s is empty", a.Name, version, name)
			}
			if ep.Path == "" {
				return newConfigurationError("API %q: endpoint %s/%s: path is required", a.Name, version, name)
			}
			if ep.Method == "" {
				return newConfigurationError("API %q: endpoint %s/%s: method is required", a.Name, version, name)
			}
			if !knownMethods[strings.ToUpper(ep.Method)] {
				return newConfigurationError("API %q: endpoint %s/%s: unsupported method %q", a.Name, version, name, ep.Method)
			}
			if err := ep.retryPolicy().validate(); err != nil {
				return err
			}
			if ep.AuthRequired && a.Auth == nil {
				return newConfigurationError("API %q: endpoint %s/%s requires auth but none is configured", a.Name, version, name)
			}
		}
	}
	if a.Auth != nil {
		if err := a.Auth.validate(a.Name); err != nil {
			return err
		}
	}
	return nil
}

func (c *AuthConfig) validate(api string) error {
	switch c.Type {
	case AuthTypeBearer:
		if c.Token == "" {
			return newConfigurationError("API %q: bearer auth requires a token", api)
		}
	case AuthTypeBasic:
		if c.Username == "" || c.Password == "" {
			return newConfigurationError("API %q: basic auth requires username and password", api)
		}
	case AuthTypeAPIKey:
		if c.APIKey == "" {
			return newConfigurationError("API %q: api_key auth requires api_key", api)
		}
		if c.Location != "" && c.Location != PlacementHeader && c.Location != PlacementQuery {
			return newConfigurationError("API %q: api_key location must be header or query, got %q", api, c.Location)
		}
	case AuthTypeDynamicToken:
		if c.LoginEndpoint == nil || c.LoginEndpoint.Path == "" || c.LoginEndpoint.Method == "" {
			return newConfigurationError("API %q: dynamic_token auth requires login_endpoint with path and method", api)
		}
		if p := c.TokenPlacement; p != nil && p.Type != "" &&
			p.Type != PlacementHeader && p.Type != PlacementQuery && p.Type != PlacementBody {
			return newConfigurationError("API %q: token placement must be header, query or body, got %q", api, p.Type)
		}
	case "":
		return newConfigurationError("API %q: auth type is required", api)
	default:
		return newConfigurationError("API %q: unsupported auth type %q", api, c.Type)
	}
	if c.Cache != nil && c.Cache.Type != CacheTypeMemory && c.Cache.Type != CacheTypeRedis {
		return newConfigurationError("API %q: unsupported cache type %q", api, c.Cache.Type)
	}
	return nil
}

// retryPolicy converts the document form into the immutable RetryPolicy.
func (e *EndpointConfig) retryPolicy() RetryPolicy {
	jitter := true
	if e.Retry.Jitter != nil {
		jitter = *e.Retry.Jitter
	}
	return RetryPolicy{
		MaxAttempts:   e.Retry.Attempts,
		BaseDelay:     time.Duration(e.Retry.Delay * float64(time.Second)),
		BackoffFactor: e.Retry.BackoffFactor,
		Jitter:        jitter,
	}
}

func (e *EndpointConfig) raiseOnError() bool {
	return e.RaiseOnError == nil || *e.RaiseOnError
}
