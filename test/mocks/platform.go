// Package mocks provides httptest doubles for the upstream CRM platform
// and the cloud storage provider.
package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// PlatformAccount is one tenant held by the fake platform.
type PlatformAccount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PlatformUser is one user held by the fake platform.
type PlatformUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CustomValue mirrors the platform's custom field wire shape.
type CustomValue struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PlatformServer fakes the CRM platform REST API including its OAuth token
// endpoint. All exported state is safe to read after requests complete.
type PlatformServer struct {
	Server *httptest.Server

	mu sync.Mutex

	// ExistingEmails drives the user search endpoint.
	ExistingEmails map[string]bool
	// NotFoundReads is how many account GETs return 404 before the account
	// becomes readable, simulating asynchronous snapshot materialization.
	NotFoundReads int

	Accounts        map[string]*PlatformAccount
	Users           []PlatformUser
	DeletedAccounts []string
	CustomValues    map[string][]CustomValue
	Updates         map[string]string

	nextAccount int
	nextUser    int
}

// NewPlatformServer starts a fake platform. Call Close when done.
func NewPlatformServer() *PlatformServer {
	p := &PlatformServer{
		ExistingEmails: make(map[string]bool),
		Accounts:       make(map[string]*PlatformAccount),
		CustomValues:   make(map[string][]CustomValue),
		Updates:        make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", p.handleToken)
	mux.HandleFunc("POST /oauth/locationToken", p.handleLocationToken)
	mux.HandleFunc("GET /users/search", p.handleUserSearch)
	mux.HandleFunc("POST /locations/", p.handleCreateAccount)
	mux.HandleFunc("GET /locations/{id}", p.handleGetAccount)
	mux.HandleFunc("DELETE /locations/{id}", p.handleDeleteAccount)
	mux.HandleFunc("POST /users/", p.handleCreateUser)
	mux.HandleFunc("GET /funnels/funnel/list", p.handleListFunnels)
	mux.HandleFunc("GET /locations/{id}/customValues", p.handleListValues)
	mux.HandleFunc("PUT /locations/{id}/customValues/{field}", p.handleUpdateValue)

	p.Server = httptest.NewServer(mux)
	return p
}

// Close shuts the fake down.
func (p *PlatformServer) Close() {
	p.Server.Close()
}

// URL returns the fake platform's base URL.
func (p *PlatformServer) URL() string {
	return p.Server.URL
}

// SeedTemplate installs custom values on a template tenant.
func (p *PlatformServer) SeedTemplate(locationID string, values []CustomValue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CustomValues[locationID] = values
}

func (p *PlatformServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{
		"access_token":  "platform-access",
		"refresh_token": "platform-refresh",
		"token_type":    "Bearer",
		"expires_in":    86400,
		"userId":        "platform-user",
		"companyId":     "agency-1",
	})
}

func (p *PlatformServer) handleLocationToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	locationID := r.FormValue("locationId")
	if locationID == "" {
		http.Error(w, "missing locationId", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"access_token": "loc-token-" + locationID})
}

func (p *PlatformServer) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	email := strings.ToLower(r.URL.Query().Get("email"))
	var users []PlatformUser
	if p.ExistingEmails[email] {
		users = append(users, PlatformUser{ID: "existing", Email: email})
	}
	writeJSON(w, map[string]interface{}{"users": users})
}

func (p *PlatformServer) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name         string `json:"name"`
		SnapshotID   string `json:"snapshotId"`
		ProspectInfo struct {
			Email string `json:"email"`
		} `json:"prospectInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextAccount++
	acc := &PlatformAccount{
		ID:    fmt.Sprintf("loc-%04d", p.nextAccount),
		Name:  payload.Name,
		Email: payload.ProspectInfo.Email,
	}
	p.Accounts[acc.ID] = acc

	// Every new tenant starts with empty copies of the snapshot fields.
	p.CustomValues[acc.ID] = []CustomValue{
		{ID: acc.ID + "-cv1", Name: "Agency Name"},
		{ID: acc.ID + "-cv2", Name: "Agency Phone"},
		{ID: acc.ID + "-cv3", Name: "Agency Support Email"},
		{ID: acc.ID + "-cv4", Name: "Command Center Link"},
		{ID: acc.ID + "-cv5", Name: "Client Assets Folder"},
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, acc)
}

func (p *PlatformServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.NotFoundReads > 0 {
		p.NotFoundReads--
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	acc, ok := p.Accounts[r.PathValue("id")]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, acc)
}

func (p *PlatformServer) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := r.PathValue("id")
	delete(p.Accounts, id)
	p.DeletedAccounts = append(p.DeletedAccounts, id)
	writeJSON(w, map[string]bool{"success": true})
}

func (p *PlatformServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextUser++
	user := PlatformUser{ID: fmt.Sprintf("user-%04d", p.nextUser), Email: payload.Email}
	p.Users = append(p.Users, user)

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, user)
}

func (p *PlatformServer) handleListFunnels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"funnels": []map[string]interface{}{
			{
				"id":   "funnel-1",
				"name": "Onboarding",
				"steps": []map[string]interface{}{
					{
						"id":    "step-1",
						"name":  "Client Portal",
						"pages": []map[string]string{{"id": "portal-page-1"}},
					},
				},
			},
		},
	})
}

func (p *PlatformServer) handleListValues(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	values, ok := p.CustomValues[r.PathValue("id")]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"customValues": values})
}

func (p *PlatformServer) handleUpdateValue(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	locationID := r.PathValue("id")
	fieldID := r.PathValue("field")
	for i, v := range p.CustomValues[locationID] {
		if v.ID == fieldID {
			p.CustomValues[locationID][i].Value = payload.Value
			p.Updates[payload.Name] = payload.Value
			writeJSON(w, map[string]bool{"success": true})
			return
		}
	}
	http.Error(w, "field not found", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
