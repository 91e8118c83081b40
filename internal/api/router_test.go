package api_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dom/pulse/internal/api"
	"github.com/dom/pulse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_ServesObjects(t *testing.T) {
	cfg := testutil.TestConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.StorageDir, "event-covers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StorageDir, "event-covers", "ABC.jpg"), []byte("jpeg-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StorageDir, "secret.txt"), []byte("nope"), 0o644))

	server := httptest.NewServer(api.NewRouter(cfg, nil))
	defer server.Close()

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "health", path: "/health", expectedStatus: http.StatusOK, expectedBody: "OK"},
		{name: "object", path: "/storage/event-covers/ABC.jpg", expectedStatus: http.StatusOK, expectedBody: "jpeg-bytes"},
		{name: "missing object", path: "/storage/event-covers/missing.jpg", expectedStatus: http.StatusNotFound},
		{name: "bucket directory", path: "/storage/event-covers/", expectedStatus: http.StatusNotFound},
		{name: "escape attempt", path: "/storage/event-covers/..%2fsecret.txt", expectedStatus: http.StatusNotFound},
		{name: "outside mount", path: "/event-covers/ABC.jpg", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedBody != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.expectedBody, string(body))
			}
		})
	}
}

func TestRouter_RootMount(t *testing.T) {
	cfg := testutil.TestConfig(t)
	cfg.StoragePublicURL = "http://media.local"
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.StorageDir, "event-covers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StorageDir, "event-covers", "A.jpg"), []byte("a"), 0o644))

	server := httptest.NewServer(api.NewRouter(cfg, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/event-covers/A.jpg")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
