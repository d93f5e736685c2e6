package declarest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "users-api": {
    "base_url": "https://api.example.com",
    "default_version": "v2",
    "timeout": 10,
    "auth": {
      "type": "bearer",
      "token": "static-token",
      "cache": {"type": "memory", "ttl": 600}
    },
    "endpoints": {
      "v2": {
        "get_user": {
          "path": "/users/{id}",
          "method": "GET",
          "auth_required": true,
          "cache": {"enabled": true, "ttl": 300},
          "params": {
            "id": {"type": "int", "required": true}
          }
        },
        "create_user": {
          "path": "/users",
          "method": "POST",
          "auth_required": true,
          "body_required": true,
          "retry": {"attempts": 3, "delay": 0.5, "backoff_factor": 2.0, "jitter": false}
        }
      }
    }
  }
}`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	api, err := cfg.API("users-api")
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", api.BaseURL)
	assert.Equal(t, "v2", api.DefaultVersion)
	assert.Equal(t, 10.0, api.Timeout)
	require.NotNil(t, api.Auth)
	assert.Equal(t, AuthTypeBearer, api.Auth.Type)

	ep := api.Endpoints["v2"]["get_user"]
	require.NotNil(t, ep)
	assert.True(t, ep.AuthRequired)
	assert.True(t, ep.Cache.Enabled)
	assert.Equal(t, 300.0, ep.Cache.TTL)
	assert.Equal(t, "int", ep.Params["id"].Type)
	assert.True(t, ep.Params["id"].Required)
}

func TestParseConfigUnknownAPI(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	_, err = cfg.API("nope")
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
}

func TestAPINamesSorted(t *testing.T) {
	doc := `{
	  "zeta": {"base_url": "https://z", "endpoints": {"v1": {"ping": {"path": "/ping", "method": "GET"}}}},
	  "alpha": {"base_url": "https://a", "endpoints": {"v1": {"ping": {"path": "/ping", "method": "GET"}}}}
	}`
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, cfg.APINames())
}

func TestParseConfigDefaults(t *testing.T) {
	doc := `{
	  "minimal": {
	    "base_url": "https://api.example.com",
	    "endpoints": {
	      "v1": {"ping": {"path": "/ping", "method": "GET", "cache": {"enabled": true}}}
	    }
	  }
	}`
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(t, err)

	api, err := cfg.API("minimal")
	require.NoError(t, err)

	assert.Equal(t, "v1", api.DefaultVersion)
	assert.Equal(t, 30.0, api.Timeout)

	ep := api.Endpoints["v1"]["ping"]
	assert.Equal(t, 30.0, ep.Timeout)
	require.NotNil(t, ep.Retry)
	assert.Equal(t, 1, ep.Retry.Attempts)
	assert.Equal(t, 1.0, ep.Retry.Delay)
	assert.Equal(t, 2.0, ep.Retry.BackoffFactor)
	assert.Equal(t, 3600.0, ep.Cache.TTL)
}

func TestParseConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing base_url", `{"a": {"endpoints": {"v1": {"p": {"path": "/p", "method": "GET"}}}}}`},
		{"missing endpoints", `{"a": {"base_url": "https://x"}}`},
		{"missing path", `{"a": {"base_url": "https://x", "endpoints": {"v1": {"p": {"method": "GET"}}}}}`},
		{"missing method", `{"a": {"base_url": "https://x", "endpoints": {"v1": {"p": {"path": "/p"}}}}}`},
		{"bad method", `{"a": {"base_url": "https://x", "endpoints": {"v1": {"p": {"path": "/p", "method": "FETCH"}}}}}`},
		{"auth required without auth", `{"a": {"base_url": "https://x", "endpoints": {"v1": {"p": {"path": "/p", "method": "GET", "auth_required": true}}}}}`},
		{"bearer without token", `{"a": {"base_url": "https://x", "auth": {"type": "bearer"}, "endpoints": {"v1": {"p": {"path": "/p", "method": "GET"}}}}}`},
		{"basic without password", `{"a": {"base_url": "https://x", "auth": {"type": "basic", "username": "u"}, "endpoints": {"v1": {"p": {"path": "/p", "method": "GET"}}}}}`},
		{"unknown auth type", `{"a": {"base_url": "https://x", "auth": {"type": "magic"}, "endpoints": {"v1": {"p": {"path": "/p", "method": "GET"}}}}}`},
		{"unknown cache type", `{"a": {"base_url": "https://x", "auth": {"type": "bearer", "token": "t", "cache": {"type": "disk"}}, "endpoints": {"v1": {"p": {"path": "/p", "method": "GET"}}}}}`},
		{"dynamic token without login", `{"a": {"base_url": "https://x", "auth": {"type": "dynamic_token"}, "endpoints": {"v1": {"p": {"path": "/p", "method": "GET"}}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.doc))
			require.Error(t, err)
			var configErr *ConfigurationError
			assert.True(t, errors.As(err, &configErr), "expected ConfigurationError, got %T", err)
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("DECLAREST_TEST_URL", "https://set.example.com")
	os.Unsetenv("DECLAREST_TEST_UNSET")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "${DECLAREST_TEST_URL}", "https://set.example.com"},
		{"set variable beats default", "${DECLAREST_TEST_URL:https://fallback}", "https://set.example.com"},
		{"unset with default", "${DECLAREST_TEST_UNSET:fallback}", "fallback"},
		{"unset with empty default", "${DECLAREST_TEST_UNSET:}", ""},
		{"unset without default stays verbatim", "${DECLAREST_TEST_UNSET}", "${DECLAREST_TEST_UNSET}"},
		{"embedded", `{"url": "${DECLAREST_TEST_URL}/v1"}`, `{"url": "https://set.example.com/v1"}`},
		{"no placeholder", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ExpandEnv([]byte(tt.in))))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadConfigEnv(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"users-api"}, cfg.APINames())
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("DECLAREST_TEST_BASE=https://from-dotenv\n"), 0o644))

	doc := `{
	  "a": {
	    "base_url": "${DECLAREST_TEST_BASE}",
	    "endpoints": {"v1": {"p": {"path": "/p", "method": "GET"}}}
	  }
	}`
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0o644))

	t.Cleanup(func() { os.Unsetenv("DECLAREST_TEST_BASE") })

	cfg, err := LoadConfigEnv(configPath, envPath)
	require.NoError(t, err)

	api, err := cfg.API("a")
	require.NoError(t, err)
	assert.Equal(t, "https://from-dotenv", api.BaseURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfigEnv(filepath.Join(t.TempDir(), "nope.json"), "")
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
}

func TestRetryPolicyConversion(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	api, err := cfg.API("users-api")
	require.NoError(t, err)

	policy := api.Endpoints["v2"]["create_user"].retryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, 2.0, policy.BackoffFactor)
	assert.False(t, policy.Jitter)

	// Jitter defaults on when the document omits it.
	defaulted := api.Endpoints["v2"]["get_user"].retryPolicy()
	assert.True(t, defaulted.Jitter)
}

func TestRaiseOnErrorDefault(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)
	api, _ := cfg.API("users-api")

	assert.True(t, api.Endpoints["v2"]["get_user"].raiseOnError())

	off := false
	ep := &EndpointConfig{RaiseOnError: &off}
	assert.False(t, ep.raiseOnError())
}

func TestLoggingConfigDefaults(t *testing.T) {
	var l *LoggingConfig
	assert.True(t, l.logRequests())
	assert.True(t, l.logResponses())

	off := false
	l = &LoggingConfig{LogRequests: &off}
	assert.False(t, l.logRequests())
	assert.True(t, l.logResponses())
}
