package declarest

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userModel struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestResponseIsSuccess(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, true}, {201, true}, {299, true},
		{199, false}, {301, false}, {404, false}, {500, false},
	}
	for _, tt := range tests {
		resp := &Response{StatusCode: tt.status}
		assert.Equal(t, tt.want, resp.IsSuccess(), "status %d", tt.status)
	}
}

func TestResponseData(t *testing.T) {
	resp := newResponse(&TransportResponse{
		StatusCode: 200,
		Body:       []byte(`{"id": 7, "tags": ["a", "b"]}`),
	}, "", nil)

	data, ok := resp.Data().(map[string]any)
	require.True(t, ok, "expected a decoded object")
	assert.Equal(t, float64(7), data["id"])

	// Repeated calls return the same decoded value.
	assert.Equal(t, resp.Data(), resp.Data())
}

func TestResponseDataNonJSON(t *testing.T) {
	resp := newResponse(&TransportResponse{StatusCode: 200, Body: []byte("plain text")}, "", nil)
	assert.Equal(t, "plain text", resp.Data())
}

func TestResponseGet(t *testing.T) {
	resp := newResponse(&TransportResponse{
		StatusCode: 200,
		Body:       []byte(`{"items": [{"id": 1}, {"id": 2}], "total": 2}`),
	}, "", nil)

	assert.Equal(t, int64(2), resp.Get("total").Int())
	assert.Equal(t, int64(2), resp.Get("items.1.id").Int())
	assert.False(t, resp.Get("missing").Exists())
}

func TestResponseDecode(t *testing.T) {
	resp := newResponse(&TransportResponse{
		StatusCode: 200,
		Body:       []byte(`{"id": 7, "name": "Ada"}`),
	}, "", nil)

	var user userModel
	require.NoError(t, resp.Decode(&user))
	assert.Equal(t, userModel{ID: 7, Name: "Ada"}, user)
}

func TestResponseModel(t *testing.T) {
	registry := NewModelRegistry()
	registry.Register("User", func() any { return &userModel{} })

	resp := newResponse(&TransportResponse{
		StatusCode: 200,
		Body:       []byte(`{"id": 7, "name": "Ada"}`),
	}, "User", registry)

	v, err := resp.Model()
	require.NoError(t, err)
	user, ok := v.(*userModel)
	require.True(t, ok)
	assert.Equal(t, "Ada", user.Name)
}

func TestResponseModelErrors(t *testing.T) {
	registry := NewModelRegistry()

	unbound := newResponse(&TransportResponse{StatusCode: 200, Body: []byte(`{}`)}, "", registry)
	_, err := unbound.Model()
	var configErr *ConfigurationError
	require.True(t, errors.As(err, &configErr))

	unregistered := newResponse(&TransportResponse{StatusCode: 200, Body: []byte(`{}`)}, "Ghost", registry)
	_, err = unregistered.Model()
	require.True(t, errors.As(err, &configErr))

	registry.Register("User", func() any { return &userModel{} })
	badBody := newResponse(&TransportResponse{StatusCode: 200, Body: []byte(`not json`)}, "User", registry)
	_, err = badBody.Model()
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
}

func TestCachedResponseRoundTrip(t *testing.T) {
	original := newResponse(&TransportResponse{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(`{"id": 7}`),
	}, "", nil)

	data, err := encodeCachedResponse(original)
	require.NoError(t, err)

	restored, err := decodeCachedResponse(data, "", nil)
	require.NoError(t, err)

	assert.Equal(t, 200, restored.StatusCode)
	assert.Equal(t, "application/json", restored.Header["Content-Type"][0])
	assert.Equal(t, int64(7), restored.Get("id").Int())
}

func TestDecodeCachedResponseBadData(t *testing.T) {
	_, err := decodeCachedResponse([]byte("garbage"), "", nil)
	require.Error(t, err)
}
