package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onboardly/onboardly/internal/config"
	apperrors "github.com/onboardly/onboardly/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.StorageConfig{
		BaseURL:      srv.URL,
		ServiceToken: "service-token",
		Timeout:      5 * time.Second,
	})
}

func TestCreateFolder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		assert.Equal(t, "id,name,webViewLink", r.URL.Query().Get("fields"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Acme Plumbing", payload["name"])
		assert.Equal(t, folderMimeType, payload["mimeType"])
		assert.Equal(t, []interface{}{"parent-1"}, payload["parents"])

		json.NewEncoder(w).Encode(Folder{
			ID:          "folder-1",
			Name:        "Acme Plumbing",
			WebViewLink: "https://drive.example.com/folders/folder-1",
		})
	})

	client := newTestClient(t, mux)
	folder, err := client.CreateFolder(context.Background(), "Acme Plumbing", "parent-1")
	require.NoError(t, err)
	assert.Equal(t, "folder-1", folder.ID)
	assert.Equal(t, "https://drive.example.com/folders/folder-1", folder.WebViewLink)
}

func TestCreateFolderMissingID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "Acme"})
	})

	client := newTestClient(t, mux)
	_, err := client.CreateFolder(context.Background(), "Acme", "parent-1")
	assert.Error(t, err)
}

func TestCreateFolderStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"insufficient permissions"}}`))
	})

	client := newTestClient(t, mux)
	_, err := client.CreateFolder(context.Background(), "Acme", "parent-1")
	require.Error(t, err)

	var statusErr *apperrors.ErrPlatformStatus
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestShareFolder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/folder-1/permissions", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "writer", payload["role"])
		assert.Equal(t, "user", payload["type"])
		assert.Equal(t, "jane@acme.co", payload["emailAddress"])
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, mux)
	err := client.ShareFolder(context.Background(), "folder-1", "jane@acme.co")
	assert.NoError(t, err)
}
