package platform

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
	"github.com/onboardly/onboardly/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewHTTPClient(config.PlatformConfig{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Timeout:      5 * time.Second,
	})
	return client, srv
}

func tokenHandler(t *testing.T, wantGrant string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, wantGrant, r.FormValue("grant_type"))
		assert.Equal(t, "client-id", r.FormValue("client_id"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    86400,
			"userId":        "user-1",
			"companyId":     "agency-1",
			"locationId":    "loc-1",
		})
	}
}

func TestExchangeCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(t, "authorization_code"))
	client, _ := newTestClient(t, mux)

	pair, err := client.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", pair.AccessToken)
	assert.Equal(t, "refresh-1", pair.RefreshToken)
	assert.Equal(t, "user-1", pair.UserID)
	assert.Equal(t, "agency-1", pair.CompanyID)
	assert.Equal(t, "loc-1", pair.LocationID)
	assert.InDelta(t, 86400, pair.ExpiresIn, 5)
}

func TestRefreshToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "old-refresh", r.FormValue("refresh_token"))
		tokenHandler(t, "refresh_token")(w, r)
	})
	client, _ := newTestClient(t, mux)

	pair, err := client.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "access-1", pair.AccessToken)
	assert.Equal(t, "refresh-1", pair.RefreshToken)
}

func TestRefreshTokenError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})
	client, _ := newTestClient(t, mux)

	_, err := client.RefreshToken(context.Background(), "stale")
	assert.Error(t, err)
}

func TestLocationToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/locationToken", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer agency-token", r.Header.Get("Authorization"))
		assert.Equal(t, apiVersion, r.Header.Get("Version"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "agency-1", r.FormValue("companyId"))
		assert.Equal(t, "loc-1", r.FormValue("locationId"))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "loc-token"})
	})
	client, _ := newTestClient(t, mux)

	token, err := client.LocationToken(context.Background(), "agency-token", "agency-1", "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "loc-token", token)
}

func TestLocationTokenMissingToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/locationToken", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})
	client, _ := newTestClient(t, mux)

	_, err := client.LocationToken(context.Background(), "agency-token", "agency-1", "loc-1")
	assert.Error(t, err)
}

func TestUserExists(t *testing.T) {
	tests := []struct {
		name  string
		users []User
		want  bool
	}{
		{"existing user", []User{{ID: "u1", Email: "a@b.co"}}, true},
		{"no match", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/users/search", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "agency-1", r.URL.Query().Get("companyId"))
				assert.Equal(t, "a@b.co", r.URL.Query().Get("email"))
				json.NewEncoder(w).Encode(map[string]interface{}{"users": tt.users})
			})
			client, _ := newTestClient(t, mux)

			exists, err := client.UserExists(context.Background(), "tok", "agency-1", "a@b.co")
			require.NoError(t, err)
			assert.Equal(t, tt.want, exists)
		})
	}
}

func TestCreateAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer agency-token", r.Header.Get("Authorization"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Acme Plumbing", payload["name"])
		assert.Equal(t, "agency-1", payload["companyId"])
		assert.Equal(t, "snap-1", payload["snapshotId"])
		prospect, ok := payload["prospectInfo"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "jane@acme.co", prospect["email"])

		json.NewEncoder(w).Encode(map[string]string{"id": "loc-new", "name": "Acme Plumbing"})
	})
	client, _ := newTestClient(t, mux)

	req := &models.ProvisioningRequest{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        "jane@acme.co",
		Phone:        "+15550100",
		BusinessName: "Acme Plumbing",
		Address:      "1 Main St",
		City:         "Austin",
		State:        "TX",
		Country:      "US",
		PostalCode:   "78701",
	}
	acc, err := client.CreateAccount(context.Background(), "agency-token", req, "agency-1", "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "loc-new", acc.ID)
	assert.Equal(t, "jane@acme.co", acc.Email)
}

func TestCreateAccountStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"snapshot not found"}`))
	})
	client, _ := newTestClient(t, mux)

	_, err := client.CreateAccount(context.Background(), "tok", &models.ProvisioningRequest{}, "agency-1", "snap-bad")
	require.Error(t, err)

	var statusErr *apperrors.ErrPlatformStatus
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "snapshot not found")
}

func TestGetAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/loc-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]string{"id": "loc-1", "name": "Acme"})
	})
	client, _ := newTestClient(t, mux)

	acc, err := client.GetAccount(context.Background(), "tok", "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", acc.Name)
}

func TestDeleteAccount(t *testing.T) {
	deleted := false
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/loc-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = true
		w.WriteHeader(http.StatusOK)
	})
	client, _ := newTestClient(t, mux)

	require.NoError(t, client.DeleteAccount(context.Background(), "tok", "loc-1"))
	assert.True(t, deleted)
}

func TestCreateUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "account", payload["type"])
		assert.Equal(t, AdminRole, payload["role"])
		assert.Equal(t, []interface{}{"loc-1"}, payload["locationIds"])
		perms, ok := payload["permissions"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, true, perms["contactsEnabled"])

		json.NewEncoder(w).Encode(map[string]string{"id": "user-9", "email": "jane@acme.co"})
	})
	client, _ := newTestClient(t, mux)

	user, err := client.CreateUser(context.Background(), "agency-token", NewUser{
		AccountID:   "loc-1",
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane@acme.co",
		Password:    "s3cret-pass",
		Role:        AdminRole,
		Permissions: DefaultUserPermissions(),
	})
	require.NoError(t, err)
	assert.Equal(t, "user-9", user.ID)
}

func TestListFunnels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/funnels/funnel/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "loc-1", r.URL.Query().Get("locationId"))
		assert.Equal(t, "Bearer loc-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"funnels": []Funnel{
				{ID: "f1", Name: "Client Portal", Steps: []FunnelStep{
					{ID: "s1", Name: "Client Portal", Pages: []FunnelPage{{ID: "page-1"}}},
				}},
			},
		})
	})
	client, _ := newTestClient(t, mux)

	funnels, err := client.ListFunnels(context.Background(), "loc-token", "loc-1")
	require.NoError(t, err)
	require.Len(t, funnels, 1)
	require.Len(t, funnels[0].Steps, 1)
	assert.Equal(t, "page-1", funnels[0].Steps[0].Pages[0].ID)
}

func TestListCustomFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/loc-1/customValues", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"customValues": []models.CustomField{
				{ID: "cf1", Name: "Agency Name", Value: ""},
			},
		})
	})
	client, _ := newTestClient(t, mux)

	fields, err := client.ListCustomFields(context.Background(), "loc-token", "loc-1")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Agency Name", fields[0].Name)
}

func TestUpdateCustomField(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/loc-1/customValues/cf1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Agency Name", payload["name"])
		assert.Equal(t, "Acme", payload["value"])
		w.WriteHeader(http.StatusOK)
	})
	client, _ := newTestClient(t, mux)

	err := client.UpdateCustomField(context.Background(), "loc-token", "loc-1", "cf1", "Agency Name", "Acme")
	assert.NoError(t, err)
}
