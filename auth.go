package declarest

import (
	"context"
	"encoding/base64"
)

// Authenticator extends an assembled request with credentials. Apply runs
// before the transport call; Refresh forces a credential renewal and is a
// no-op for static variants.
//
// The variant set is closed: Bearer, Basic, APIKey and DynamicToken.
type Authenticator interface {
	Apply(ctx context.Context, req *Request) error
	Refresh(ctx context.Context) (bool, error)
}

// newAuthenticator builds the variant selected by cfg.Type. Missing
// required fields fail here, at construction, not at call time.
func newAuthenticator(cfg *AuthConfig, deps authDeps) (Authenticator, error) {
	switch cfg.Type {
	case AuthTypeBearer:
		return NewBearerAuth(cfg.Token)
	case AuthTypeBasic:
		return NewBasicAuth(cfg.Username, cfg.Password)
	case AuthTypeAPIKey:
		return NewAPIKeyAuth(cfg.KeyName, cfg.APIKey, cfg.Location)
	case AuthTypeDynamicToken:
		return NewDynamicTokenAuth(cfg, deps)
	default:
		return nil, newConfigurationError("unsupported auth type %q", cfg.Type)
	}
}

// BearerAuth injects a fixed bearer token.
type BearerAuth struct {
	token string
}

// NewBearerAuth fails when the token is empty.
func NewBearerAuth(token string) (*BearerAuth, error) {
	if token == "" {
		return nil, newConfigurationError("bearer auth requires a token")
	}
	return &BearerAuth{token: token}, nil
}

func (a *BearerAuth) Apply(_ context.Context, req *Request) error {
	// Set, not Add: the header carries exactly one credential.
	req.Header.Set("Authorization", "Bearer "+a.token)
	return nil
}

func (a *BearerAuth) Refresh(context.Context) (bool, error) { return true, nil }

// BasicAuth injects an RFC 7617 basic credential.
type BasicAuth struct {
	username string
	password string
}

// NewBasicAuth fails when either field is empty.
func NewBasicAuth(username, password string) (*BasicAuth, error) {
	if username == "" || password == "" {
		return nil, newConfigurationError("basic auth requires username and password")
	}
	return &BasicAuth{username: username, password: password}, nil
}

func (a *BasicAuth) Apply(_ context.Context, req *Request) error {
	credentials := base64.StdEncoding.EncodeToString([]byte(a.username + ":" + a.password))
	req.Header.Set("Authorization", "Basic "+credentials)
	return nil
}

func (a *BasicAuth) Refresh(context.Context) (bool, error) { return true, nil }

// APIKeyAuth injects a fixed key into a header or a query parameter.
type APIKeyAuth struct {
	name     string
	value    string
	location string
}

// NewAPIKeyAuth fails on an empty key or an unknown location. Name defaults
// to X-API-Key, location to header.
func NewAPIKeyAuth(name, value, location string) (*APIKeyAuth, error) {
	if value == "" {
		return nil, newConfigurationError("api_key auth requires a key value")
	}
	if name == "" {
		name = "X-API-Key"
	}
	switch location {
	case "":
		location = PlacementHeader
	case PlacementHeader, PlacementQuery:
	default:
		return nil, newConfigurationError("api_key location must be header or query, got %q", location)
	}
	return &APIKeyAuth{name: name, value: value, location: location}, nil
}

func (a *APIKeyAuth) Apply(_ context.Context, req *Request) error {
	switch a.location {
	case PlacementQuery:
		req.Query.Set(a.name, a.value)
	default:
		req.Header.Set(a.name, a.value)
	}
	return nil
}

func (a *APIKeyAuth) Refresh(context.Context) (bool, error) { return true, nil }
