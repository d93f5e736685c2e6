package declarest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/taoudi-abdelbasset/declarest/internal/singleflight"
)

// authRequestTimeout bounds login and refresh calls, which run outside any
// endpoint descriptor and therefore have no configured timeout of their own.
const authRequestTimeout = 30 * time.Second

// authDeps are the collaborators a constructed Authenticator may borrow.
type authDeps struct {
	api       string
	baseURL   string
	transport Transport
	cache     Cache
	logger    Logger
	metrics   *MetricsCollector
}

// DynamicTokenAuth implements the login/refresh token flow. Token state
// moves through no-token, valid and expired: an expired token is refreshed
// when a refresh endpoint and refresh token exist, otherwise (or when the
// refresh is rejected) the flow falls back to a fresh login. The current
// token is mirrored into the cache under a scope key derived from the full
// auth configuration, so identically configured resolvers share it and
// differently configured ones never collide.
//
// Concurrent callers observing an expired token are collapsed by a
// single-flight gate: one performs the renewal, the rest block on and reuse
// its result.
type DynamicTokenAuth struct {
	login   *LoginEndpointConfig
	refresh *RefreshEndpointConfig

	// Placement resolved at construction; prefix is already defaulted, an
	// empty string means a bare token.
	placementType string
	headerName    string
	prefix        string
	paramName     string
	fieldName     string

	cacheTTL time.Duration
	scopeKey string

	api       string
	baseURL   string
	transport Transport
	cache     Cache
	logger    Logger
	metrics   *MetricsCollector

	mu    sync.Mutex
	group *singleflight.Group
	token *TokenInfo
}

// NewDynamicTokenAuth validates the flow configuration and loads any token
// previously mirrored into the cache for the same scope.
func NewDynamicTokenAuth(cfg *AuthConfig, deps authDeps) (*DynamicTokenAuth, error) {
	if cfg.LoginEndpoint == nil || cfg.LoginEndpoint.Path == "" || cfg.LoginEndpoint.Method == "" {
		return nil, newConfigurationError("dynamic_token auth requires login_endpoint with path and method")
	}

	placementType := PlacementHeader
	headerName := "Authorization"
	prefix := "Bearer"
	var paramName, fieldName string
	if p := cfg.TokenPlacement; p != nil {
		if p.Type != "" {
			placementType = p.Type
		}
		if p.HeaderName != "" {
			headerName = p.HeaderName
		}
		if p.Prefix != nil {
			prefix = *p.Prefix
		}
		paramName = p.ParamName
		fieldName = p.FieldName
	}

	cacheTTL := time.Hour
	if cfg.Cache != nil && cfg.Cache.TTL > 0 {
		cacheTTL = time.Duration(cfg.Cache.TTL * float64(time.Second))
	}

	a := &DynamicTokenAuth{
		login:         cfg.LoginEndpoint,
		refresh:       cfg.RefreshEndpoint,
		placementType: placementType,
		headerName:    headerName,
		prefix:        prefix,
		paramName:     paramName,
		fieldName:     fieldName,
		cacheTTL:      cacheTTL,
		scopeKey:      authScopeKey(cfg),
		api:           deps.api,
		baseURL:       deps.baseURL,
		transport:     deps.transport,
		cache:         deps.cache,
		logger:        deps.logger,
		metrics:       deps.metrics,
		group:         singleflight.New(),
	}
	a.loadCachedToken()
	return a, nil
}

// authScopeKey derives the stable cache identity of an auth configuration.
// Struct marshaling has deterministic field order, so two equal configs
// always hash the same.
func authScopeKey(cfg *AuthConfig) string {
	canonical, _ := json.Marshal(cfg)
	sum := sha256.Sum256(canonical)
	return "token_" + hex.EncodeToString(sum[:12])
}

func (a *DynamicTokenAuth) loadCachedToken() {
	if a.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()

	data, err := a.cache.Get(ctx, a.scopeKey)
	if err != nil {
		return
	}
	var token TokenInfo
	if err := json.Unmarshal(data, &token); err != nil {
		return
	}
	a.token = &token
}

// Apply injects a valid token into the request per the configured
// placement, logging in or refreshing first when needed.
func (a *DynamicTokenAuth) Apply(ctx context.Context, req *Request) error {
	token, err := a.ensureToken(ctx)
	if err != nil {
		return err
	}

	switch a.placementType {
	case PlacementQuery:
		name := a.paramName
		if name == "" {
			name = "access_token"
		}
		req.Query.Set(name, token.AccessToken)
	case PlacementBody:
		field := a.fieldName
		if field == "" {
			field = "access_token"
		}
		body, ok := req.bodyObject()
		if !ok {
			return &AuthenticationError{Message: "body token placement requires an object body"}
		}
		body[field] = token.AccessToken
	default:
		value := token.AccessToken
		if a.prefix != "" {
			value = a.prefix + " " + value
		}
		req.Header.Set(a.headerName, value)
	}
	return nil
}

// Refresh forces a renewal: refresh when possible, otherwise login.
func (a *DynamicTokenAuth) Refresh(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tryRefreshLocked(ctx) {
		return true, nil
	}
	if err := a.loginLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ensureToken returns a usable token copy, renewing through the
// single-flight gate when the current one is missing or expired.
func (a *DynamicTokenAuth) ensureToken(ctx context.Context) (TokenInfo, error) {
	a.mu.Lock()
	if a.token.Usable(time.Now()) {
		token := *a.token
		a.mu.Unlock()
		return token, nil
	}
	a.mu.Unlock()

	v, err := a.group.Do(a.scopeKey, func() (interface{}, error) {
		a.mu.Lock()
		defer a.mu.Unlock()

		// A concurrent caller may have renewed while we waited.
		if a.token.Usable(time.Now()) {
			return *a.token, nil
		}
		if a.tryRefreshLocked(ctx) {
			return *a.token, nil
		}
		if err := a.loginLocked(ctx); err != nil {
			return TokenInfo{}, err
		}
		return *a.token, nil
	})
	if err != nil {
		return TokenInfo{}, err
	}
	return v.(TokenInfo), nil
}

// tryRefreshLocked attempts the refresh call. It reports failure instead of
// raising so the caller can fall back to login, and leaves the prior token
// untouched on any failure path. Callers hold a.mu.
func (a *DynamicTokenAuth) tryRefreshLocked(ctx context.Context) bool {
	if a.refresh == nil || a.token == nil || a.token.RefreshToken == "" {
		return false
	}

	bodyField := a.refresh.BodyField
	if bodyField == "" {
		bodyField = "refresh_token"
	}
	req := newRequest(a.refresh.Method, joinURL(a.baseURL, a.refresh.Path))
	req.Body = map[string]any{bodyField: a.token.RefreshToken}
	req.Timeout = authRequestTimeout

	resp, err := a.transport.Send(ctx, req)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.emitAuthEvent("refresh", false, err)
		return false
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		a.emitAuthEvent("refresh", false, err)
		return false
	}

	// Fields the refresh response omits leave the prior values untouched.
	if access, ok := payload[a.tokenField()].(string); ok && access != "" {
		a.token.AccessToken = access
	}
	if refresh, ok := payload[a.refreshTokenField()].(string); ok && refresh != "" {
		a.token.RefreshToken = refresh
	}
	expiresIn, hasExpiry := asInt64(payload[a.expiresInField()])
	if hasExpiry {
		a.token.ExpiresAt = time.Now().Unix() + expiresIn
	}

	a.persistTokenLocked(ctx, expiresIn)
	a.emitAuthEvent("refresh", true, nil)
	return true
}

// loginLocked performs the configured login call, replacing the token
// wholesale on success. On failure the prior token state is unchanged.
// Callers hold a.mu.
func (a *DynamicTokenAuth) loginLocked(ctx context.Context) error {
	req := newRequest(a.login.Method, joinURL(a.baseURL, a.login.Path))
	if len(a.login.Body) > 0 {
		req.Body = a.login.Body
	}
	req.Timeout = authRequestTimeout

	resp, err := a.transport.Send(ctx, req)
	if err != nil {
		a.emitAuthEvent("login", false, err)
		return &AuthenticationError{Message: "login request failed", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.emitAuthEvent("login", false, nil)
		return &AuthenticationError{Message: "login failed", Status: resp.StatusCode}
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		a.emitAuthEvent("login", false, err)
		return &AuthenticationError{Message: "login response is not valid JSON", Cause: err}
	}

	access, _ := payload[a.tokenField()].(string)
	if access == "" {
		a.emitAuthEvent("login", false, nil)
		return &AuthenticationError{Message: "token field " + strconv.Quote(a.tokenField()) + " not found in login response"}
	}

	tokenType := "Bearer"
	if a.prefix != "" {
		tokenType = a.prefix
	}
	token := &TokenInfo{
		AccessToken: access,
		TokenType:   tokenType,
	}
	if refresh, ok := payload[a.refreshTokenField()].(string); ok {
		token.RefreshToken = refresh
	}
	expiresIn, hasExpiry := asInt64(payload[a.expiresInField()])
	if hasExpiry {
		token.ExpiresAt = time.Now().Unix() + expiresIn
	}

	a.token = token
	a.persistTokenLocked(ctx, expiresIn)
	a.emitAuthEvent("login", true, nil)
	return nil
}

// persistTokenLocked mirrors the current token into the cache. The stored
// TTL is min(expires_in, configured ttl) when the expiry is known, else the
// configured ttl. Cache failures are logged and absorbed.
func (a *DynamicTokenAuth) persistTokenLocked(ctx context.Context, expiresIn int64) {
	if a.cache == nil || a.token == nil {
		return
	}

	ttl := a.cacheTTL
	if expiresIn > 0 {
		if d := time.Duration(expiresIn) * time.Second; d < ttl {
			ttl = d
		}
	}

	data, err := json.Marshal(a.token)
	if err == nil {
		err = a.cache.Set(ctx, a.scopeKey, data, ttl)
	}
	if err != nil && a.logger != nil {
		a.logger.Warn("token cache write failed", "api", a.api, "error", err.Error())
	}
}

func (a *DynamicTokenAuth) emitAuthEvent(event string, success bool, cause error) {
	if a.metrics != nil {
		a.metrics.RecordAuthEvent(a.api, event, success)
	}
	if a.logger == nil {
		return
	}
	kv := []any{"type", "auth", "api", a.api, "event", event, "success", success}
	if cause != nil {
		kv = append(kv, "error", cause.Error())
	}
	if success {
		a.logger.Info("auth event", kv...)
	} else {
		a.logger.Warn("auth event", kv...)
	}
}

func (a *DynamicTokenAuth) tokenField() string {
	if a.login.TokenField != "" {
		return a.login.TokenField
	}
	return "access_token"
}

func (a *DynamicTokenAuth) refreshTokenField() string {
	if a.login.RefreshTokenField != "" {
		return a.login.RefreshTokenField
	}
	return "refresh_token"
}

func (a *DynamicTokenAuth) expiresInField() string {
	if a.login.ExpiresInField != "" {
		return a.login.ExpiresInField
	}
	return "expires_in"
}

// asInt64 coerces the numeric shapes a JSON decode can produce.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
