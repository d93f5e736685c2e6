package declarest

import (
	"testing"
)

func TestNewRequestInitializesMaps(t *testing.T) {
	req := newRequest("GET", "https://api.test/users")
	if req.Header == nil || req.Query == nil {
		t.Fatal("header and query maps must be initialized")
	}
	if req.Method != "GET" || req.URL != "https://api.test/users" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestRequestBodyObject(t *testing.T) {
	req := newRequest("POST", "https://api.test/users")

	// No body: a fresh object is created and installed.
	obj, ok := req.bodyObject()
	if !ok {
		t.Fatal("expected a body object")
	}
	obj["k"] = "v"
	if req.Body.(map[string]any)["k"] != "v" {
		t.Error("mutations must reach the request body")
	}

	// Existing object body is returned as-is.
	req.Body = map[string]any{"a": 1}
	obj, ok = req.bodyObject()
	if !ok || obj["a"] != 1 {
		t.Errorf("expected the existing object, got (%v, %v)", obj, ok)
	}

	// Non-object bodies cannot host injected fields.
	req.Body = "raw string"
	if _, ok := req.bodyObject(); ok {
		t.Error("expected failure for a non-object body")
	}
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	for _, key := range []string{"version", "commit", "build_date", "go_version"} {
		if _, ok := info[key]; !ok {
			t.Errorf("missing %q in version info", key)
		}
	}
	if GetVersion() == "" {
		t.Error("GetVersion returned empty string")
	}
}
