// Package drive talks to the cloud storage API used for per-client
// asset folders.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/onboardly/onboardly/internal/config"
	"github.com/onboardly/onboardly/internal/errors"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Folder is a created storage folder.
type Folder struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WebViewLink string `json:"webViewLink"`
}

// Client is the capability interface to the storage service.
type Client interface {
	// CreateFolder creates a folder under the given parent
	CreateFolder(ctx context.Context, name, parentID string) (*Folder, error)
	// ShareFolder grants write access on a folder to an email address
	ShareFolder(ctx context.Context, folderID, email string) error
}

// HTTPClient implements Client against a Drive-style files API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a storage client from configuration.
func NewHTTPClient(cfg config.StorageConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.ServiceToken,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateFolder creates a folder under the given parent and returns it with
// its shareable link populated.
func (c *HTTPClient) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	payload := map[string]interface{}{
		"name":     name,
		"mimeType": folderMimeType,
		"parents":  []string{parentID},
	}

	var folder Folder
	endpoint := c.baseURL + "/files?fields=" + url.QueryEscape("id,name,webViewLink")
	if err := c.doJSON(ctx, http.MethodPost, endpoint, payload, &folder, "create folder"); err != nil {
		return nil, err
	}
	if folder.ID == "" {
		return nil, fmt.Errorf("create folder response missing id")
	}
	return &folder, nil
}

// ShareFolder grants writer access on a folder to an email address.
func (c *HTTPClient) ShareFolder(ctx context.Context, folderID, email string) error {
	payload := map[string]string{
		"role":         "writer",
		"type":         "user",
		"emailAddress": email,
	}
	endpoint := c.baseURL + "/files/" + url.PathEscape(folderID) + "/permissions"
	return c.doJSON(ctx, http.MethodPost, endpoint, payload, nil, "share folder")
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, payload, out interface{}, operation string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &errors.ErrPlatformStatus{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Client = (*HTTPClient)(nil)
