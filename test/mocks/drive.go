package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Folder is one folder held by the fake storage service.
type Folder struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WebViewLink string `json:"webViewLink"`
	Parent      string `json:"-"`
}

// Permission is one access grant recorded by the fake storage service.
type Permission struct {
	FolderID string
	Email    string
	Role     string
}

// DriveServer fakes the cloud storage files API.
type DriveServer struct {
	Server *httptest.Server

	mu          sync.Mutex
	Folders     []Folder
	Permissions []Permission
	nextFolder  int
}

// NewDriveServer starts a fake storage service. Call Close when done.
func NewDriveServer() *DriveServer {
	d := &DriveServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /files", d.handleCreateFolder)
	mux.HandleFunc("POST /files/{id}/permissions", d.handleCreatePermission)

	d.Server = httptest.NewServer(mux)
	return d
}

// Close shuts the fake down.
func (d *DriveServer) Close() {
	d.Server.Close()
}

// URL returns the fake storage service's base URL.
func (d *DriveServer) URL() string {
	return d.Server.URL
}

func (d *DriveServer) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name    string   `json:"name"`
		Parents []string `json:"parents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextFolder++
	folder := Folder{
		ID:          fmt.Sprintf("folder-%04d", d.nextFolder),
		Name:        payload.Name,
		WebViewLink: fmt.Sprintf("%s/view/folder-%04d", d.Server.URL, d.nextFolder),
	}
	if len(payload.Parents) > 0 {
		folder.Parent = payload.Parents[0]
	}
	d.Folders = append(d.Folders, folder)

	writeJSON(w, folder)
}

func (d *DriveServer) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role  string `json:"role"`
		Email string `json:"emailAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.Permissions = append(d.Permissions, Permission{
		FolderID: r.PathValue("id"),
		Email:    payload.Email,
		Role:     payload.Role,
	})
	writeJSON(w, map[string]bool{"success": true})
}
