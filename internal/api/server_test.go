package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onboardly/onboardly/internal/config"
	"github.com/onboardly/onboardly/internal/drive"
	"github.com/onboardly/onboardly/internal/logging"
	"github.com/onboardly/onboardly/internal/metrics"
	"github.com/onboardly/onboardly/internal/models"
	"github.com/onboardly/onboardly/internal/platform"
	"github.com/onboardly/onboardly/internal/provision"
	"github.com/onboardly/onboardly/internal/refresh"
	"github.com/onboardly/onboardly/internal/store"
)

// stubPlatform satisfies platform.Client for handler tests.
type stubPlatform struct {
	exchangePair *platform.TokenPair
	exchangeErr  error
	locToken     string
	locTokenErr  error
}

func (p *stubPlatform) ExchangeCode(ctx context.Context, code string) (*platform.TokenPair, error) {
	return p.exchangePair, p.exchangeErr
}

func (p *stubPlatform) RefreshToken(ctx context.Context, refreshToken string) (*platform.TokenPair, error) {
	return &platform.TokenPair{AccessToken: "refreshed", ExpiresIn: 86400}, nil
}

func (p *stubPlatform) LocationToken(ctx context.Context, agencyToken, agencyID, locationID string) (string, error) {
	return p.locToken, p.locTokenErr
}

func (p *stubPlatform) UserExists(ctx context.Context, token, agencyID, email string) (bool, error) {
	return false, nil
}

func (p *stubPlatform) CreateAccount(ctx context.Context, token string, req *models.ProvisioningRequest, agencyID, snapshotID string) (*platform.Account, error) {
	return &platform.Account{ID: "acc-1", Name: req.BusinessName, Email: req.Email}, nil
}

func (p *stubPlatform) GetAccount(ctx context.Context, token, accountID string) (*platform.Account, error) {
	return &platform.Account{ID: accountID}, nil
}

func (p *stubPlatform) DeleteAccount(ctx context.Context, token, accountID string) error {
	return nil
}

func (p *stubPlatform) CreateUser(ctx context.Context, token string, u platform.NewUser) (*platform.User, error) {
	return &platform.User{ID: "user-1", Email: u.Email}, nil
}

func (p *stubPlatform) ListFunnels(ctx context.Context, locationToken, accountID string) ([]platform.Funnel, error) {
	return []platform.Funnel{{ID: "f1", Steps: []platform.FunnelStep{
		{Name: "Client Portal", Pages: []platform.FunnelPage{{ID: "page-1"}}},
	}}}, nil
}

func (p *stubPlatform) ListCustomFields(ctx context.Context, locationToken, locationID string) ([]models.CustomField, error) {
	return []models.CustomField{
		{ID: "c1", Name: "Agency Name", Value: "Acme Agency"},
		{ID: "c2", Name: "Command Center Link"},
		{ID: "c3", Name: "Client Assets Folder"},
	}, nil
}

func (p *stubPlatform) UpdateCustomField(ctx context.Context, locationToken, locationID, fieldID, name, value string) error {
	return nil
}

var _ platform.Client = (*stubPlatform)(nil)

// recordingPlatform tracks which provisioning calls reached the platform.
type recordingPlatform struct {
	stubPlatform
	mu    sync.Mutex
	calls []string
}

func (p *recordingPlatform) record(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, name)
}

func (p *recordingPlatform) callNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *recordingPlatform) CreateUser(ctx context.Context, token string, u platform.NewUser) (*platform.User, error) {
	p.record("create_user")
	return p.stubPlatform.CreateUser(ctx, token, u)
}

func (p *recordingPlatform) UpdateCustomField(ctx context.Context, locationToken, locationID, fieldID, name, value string) error {
	p.record("update_field")
	return p.stubPlatform.UpdateCustomField(ctx, locationToken, locationID, fieldID, name, value)
}

func (p *recordingPlatform) DeleteAccount(ctx context.Context, token, accountID string) error {
	p.record("delete_account")
	return p.stubPlatform.DeleteAccount(ctx, token, accountID)
}

// dropWriter accepts writes until the byte limit, then fails like a
// disconnected client.
type dropWriter struct {
	header http.Header
	limit  int
	buf    bytes.Buffer
}

func newDropWriter(limit int) *dropWriter {
	return &dropWriter{header: make(http.Header), limit: limit}
}

func (w *dropWriter) Header() http.Header { return w.header }
func (w *dropWriter) WriteHeader(int)     {}
func (w *dropWriter) Flush()              {}

func (w *dropWriter) Write(p []byte) (int, error) {
	if w.buf.Len() >= w.limit {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

type stubDrive struct{}

func (stubDrive) CreateFolder(ctx context.Context, name, parentID string) (*drive.Folder, error) {
	return &drive.Folder{ID: "folder-1", Name: name, WebViewLink: "https://drive.example.com/f/1"}, nil
}

func (stubDrive) ShareFolder(ctx context.Context, folderID, email string) error {
	return nil
}

func serverConfig() config.Config {
	return config.Config{
		Version: "1.0",
		Server: config.ServerConfig{
			Host:     "127.0.0.1",
			HTTPPort: 0,
		},
		Platform: config.PlatformConfig{
			AgencyID:           "agency-1",
			SnapshotID:         "snap-1",
			TemplateLocationID: "template-1",
		},
		Storage: config.StorageConfig{ParentFolderID: "parent-1"},
		Provisioning: config.ProvisioningConfig{
			ReadyPollInterval: time.Millisecond,
			ReadyTimeout:      10 * time.Millisecond,
			FieldSettle:       time.Millisecond,
			PasswordLength:    16,
		},
	}
}

func newTestServer(t *testing.T, cfg config.Config, pc platform.Client, st store.Store) *Server {
	t.Helper()
	logger := logging.NewLogger(logging.WithLevel(logging.LevelError))
	m := metrics.NewMetrics("apitest_" + t.Name())
	wf := provision.NewWorkflow(st, pc, stubDrive{}, cfg, logger, m)
	sched := refresh.NewScheduler(st, pc, time.Minute, 5*time.Minute, logger, m)
	return NewServer(cfg, st, wf, pc, sched, logger, m)
}

func seedCredential(t *testing.T, st store.Store) {
	t.Helper()
	require.NoError(t, st.UpsertCredential(&models.Credential{
		OwnerID:      "agency-1",
		AccessToken:  "agency-token",
		RefreshToken: "agency-refresh",
		ExpiresIn:    86400,
		IssuedAt:     time.Now(),
	}))
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAgencyTokenNotFound(t *testing.T) {
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/agency-token", nil)
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgencyTokenReturnsLatest(t *testing.T) {
	st := store.NewMemoryStore()
	seedCredential(t, st)
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, st)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/agency-token", nil)
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "agency-token", body["access_token"])
	assert.Equal(t, "agency-refresh", body["refresh_token"])
	assert.Equal(t, "agency-1", body["owner_id"])
}

func TestOAuthCallbackStoresCredential(t *testing.T) {
	st := store.NewMemoryStore()
	pc := &stubPlatform{exchangePair: &platform.TokenPair{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresIn:    86400,
		UserID:       "user-1",
		CompanyID:    "agency-9",
	}}
	srv := newTestServer(t, serverConfig(), pc, st)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/auth/callback?code=abc", nil)
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	cred, ok := st.GetCredential("agency-9")
	require.True(t, ok)
	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "new-refresh", cred.RefreshToken)
}

func TestOAuthCallbackMissingCode(t *testing.T) {
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/auth/callback", nil)
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLocationTokenEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedCredential(t, st)
	srv := newTestServer(t, serverConfig(), &stubPlatform{locToken: "loc-token"}, st)

	body := bytes.NewBufferString(`{"location_id":"loc-1"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/location-token", body)
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "loc-token")
}

func TestLocationTokenMissingBody(t *testing.T) {
	st := store.NewMemoryStore()
	seedCredential(t, st)
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, st)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/location-token", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLocationTokenNoCredential(t *testing.T) {
	srv := newTestServer(t, serverConfig(), &stubPlatform{locToken: "loc-token"}, store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/location-token", bytes.NewBufferString(`{"location_id":"loc-1"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProvisionStreamsEvents(t *testing.T) {
	st := store.NewMemoryStore()
	seedCredential(t, st)
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, st)

	payload, err := json.Marshal(models.ProvisioningRequest{
		BusinessName: "Acme Plumbing",
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        "jane@acme.co",
		Phone:        "+15550100",
		Address:      "1 Main St",
		City:         "Austin",
		State:        "TX",
		Country:      "US",
		PostalCode:   "78701",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/accountCreationSSE", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Contains(t, body, "event:progress")
	assert.Contains(t, body, "request validated")
	assert.Contains(t, body, "event:success")
	assert.Contains(t, body, "acc-1")
	assert.NotContains(t, body, "event:failure")
}

func TestProvisionCompletesAfterClientDrops(t *testing.T) {
	st := store.NewMemoryStore()
	seedCredential(t, st)
	pc := &recordingPlatform{}
	srv := newTestServer(t, serverConfig(), pc, st)

	payload, err := json.Marshal(models.ProvisioningRequest{
		BusinessName: "Acme Plumbing",
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        "jane@acme.co",
		Phone:        "+15550100",
		Address:      "1 Main St",
		City:         "Austin",
		State:        "TX",
		Country:      "US",
		PostalCode:   "78701",
	})
	require.NoError(t, err)

	// The connection dies after the first few event bytes.
	w := newDropWriter(40)
	req := httptest.NewRequest("POST", "/accountCreationSSE", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	// The workflow ran to completion: user created, fields synced,
	// nothing compensated.
	calls := pc.callNames()
	assert.Contains(t, calls, "create_user")
	assert.Contains(t, calls, "update_field")
	assert.NotContains(t, calls, "delete_account")

	// Emits after the drop are silently discarded.
	assert.NotContains(t, w.buf.String(), "event:success")
}

func TestProvisionValidationFailureOnStream(t *testing.T) {
	st := store.NewMemoryStore()
	seedCredential(t, st)
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, st)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/accountCreationSSE", bytes.NewBufferString(`{"business_name":"Acme"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event:failure")
	assert.Contains(t, body, "missing required field")
	assert.NotContains(t, body, "event:success")
}

func TestProvisionMalformedBody(t *testing.T) {
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/accountCreationSSE", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIKeyAuthOnProtectedRoutes(t *testing.T) {
	cfg := serverConfig()
	cfg.API.Auth.Enabled = true
	cfg.API.Auth.APIKeys = []string{"secret-key"}
	srv := newTestServer(t, cfg, &stubPlatform{}, store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/agency-token", nil)
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/agency-token", nil)
	req.Header.Set(DefaultAPIKeyHeader, "secret-key")
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Health stays open
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/health", nil)
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newIPRateLimiter(time.Minute, 2)

	assert.True(t, limiter.allow("10.0.0.1"))
	assert.True(t, limiter.allow("10.0.0.1"))
	assert.False(t, limiter.allow("10.0.0.1"))
	assert.True(t, limiter.allow("10.0.0.2"))

	single := newIPRateLimiter(time.Minute, 1)
	assert.True(t, single.allow("10.0.0.3"))
	assert.False(t, single.allow("10.0.0.3"))
}

func TestShutdownStopsComponents(t *testing.T) {
	st := store.NewMemoryStore()
	srv := newTestServer(t, serverConfig(), &stubPlatform{}, st)

	require.NoError(t, srv.scheduler.Start(context.Background()))
	require.True(t, srv.scheduler.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.False(t, srv.scheduler.IsRunning())
}
