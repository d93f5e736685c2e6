package declarest

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

func TestNewBearerAuth(t *testing.T) {
	if _, err := NewBearerAuth(""); err == nil {
		t.Error("expected error for empty token")
	}

	auth, err := NewBearerAuth("secret-token")
	if err != nil {
		t.Fatalf("NewBearerAuth: %v", err)
	}

	req := newRequest("GET", "https://api.example.com/users")
	if err := auth.Apply(context.Background(), req); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want 'Bearer secret-token'", got)
	}
}

func TestBearerAuthAppliesExactlyOnce(t *testing.T) {
	auth, _ := NewBearerAuth("token")
	req := newRequest("GET", "https://api.example.com/users")

	_ = auth.Apply(context.Background(), req)
	_ = auth.Apply(context.Background(), req)

	if n := len(req.Header.Values("Authorization")); n != 1 {
		t.Errorf("expected exactly one Authorization header, got %d", n)
	}
}

func TestNewBasicAuth(t *testing.T) {
	if _, err := NewBasicAuth("", "pass"); err == nil {
		t.Error("expected error for empty username")
	}
	if _, err := NewBasicAuth("user", ""); err == nil {
		t.Error("expected error for empty password")
	}

	auth, err := NewBasicAuth("user", "pass")
	if err != nil {
		t.Fatalf("NewBasicAuth: %v", err)
	}

	req := newRequest("GET", "https://api.example.com/users")
	if err := auth.Apply(context.Background(), req); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	if got := req.Header.Get("Authorization"); got != want {
		t.Errorf("Authorization = %q, want %q", got, want)
	}
}

func TestNewAPIKeyAuthHeader(t *testing.T) {
	auth, err := NewAPIKeyAuth("", "key-value", "")
	if err != nil {
		t.Fatalf("NewAPIKeyAuth: %v", err)
	}

	req := newRequest("GET", "https://api.example.com/users")
	_ = auth.Apply(context.Background(), req)

	if got := req.Header.Get("X-API-Key"); got != "key-value" {
		t.Errorf("X-API-Key = %q, want 'key-value'", got)
	}
}

func TestNewAPIKeyAuthQuery(t *testing.T) {
	auth, err := NewAPIKeyAuth("api_key", "key-value", PlacementQuery)
	if err != nil {
		t.Fatalf("NewAPIKeyAuth: %v", err)
	}

	req := newRequest("GET", "https://api.example.com/users")
	_ = auth.Apply(context.Background(), req)

	if got := req.Query.Get("api_key"); got != "key-value" {
		t.Errorf("api_key query = %q, want 'key-value'", got)
	}
	if req.Header.Get("api_key") != "" {
		t.Error("query placement must not touch headers")
	}
}

func TestNewAPIKeyAuthErrors(t *testing.T) {
	if _, err := NewAPIKeyAuth("name", "", ""); err == nil {
		t.Error("expected error for empty key value")
	}

	_, err := NewAPIKeyAuth("name", "value", "cookie")
	if err == nil {
		t.Fatal("expected error for unknown location")
	}
	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestStaticAuthRefreshIsNoOp(t *testing.T) {
	bearer, _ := NewBearerAuth("t")
	basic, _ := NewBasicAuth("u", "p")
	apiKey, _ := NewAPIKeyAuth("", "k", "")

	for _, auth := range []Authenticator{bearer, basic, apiKey} {
		ok, err := auth.Refresh(context.Background())
		if err != nil {
			t.Errorf("%T.Refresh returned error: %v", auth, err)
		}
		if !ok {
			t.Errorf("%T.Refresh reported failure", auth)
		}
	}
}

func TestNewAuthenticatorDispatch(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *AuthConfig
		wantErr bool
	}{
		{"bearer", &AuthConfig{Type: AuthTypeBearer, Token: "t"}, false},
		{"basic", &AuthConfig{Type: AuthTypeBasic, Username: "u", Password: "p"}, false},
		{"api_key", &AuthConfig{Type: AuthTypeAPIKey, APIKey: "k"}, false},
		{"bearer without token", &AuthConfig{Type: AuthTypeBearer}, true},
		{"unknown type", &AuthConfig{Type: "oauth3"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAuthenticator(tt.cfg, authDeps{api: "test"})
			if (err != nil) != tt.wantErr {
				t.Errorf("newAuthenticator() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
