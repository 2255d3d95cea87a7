package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// PerformRequest drives a router with an in-memory request and returns the
// recorder. A non-nil body is JSON-encoded and the content type set, so
// handler tests can pass request DTOs directly.
func PerformRequest(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err, "failed to encode request body")
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// DecodeJSON unmarshals the recorded response body into out.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "response body is not valid JSON: %s", rec.Body.String())
}

// TenantHeaders returns the headers a request needs to act inside the given
// tenant when no JWT middleware is mounted.
func TenantHeaders(tenantID string) map[string]string {
	return map[string]string{"X-Tenant-ID": tenantID}
}
