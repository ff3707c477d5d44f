package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onboardly/onboardly/internal/config"
	"github.com/onboardly/onboardly/internal/errors"
	"github.com/onboardly/onboardly/internal/models"
	"golang.org/x/oauth2"
)

// apiVersion is the platform REST API version header value.
const apiVersion = "2021-07-28"

// HTTPClient implements Client against the platform's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	oauth   *oauth2.Config
}

// NewHTTPClient creates a platform client from configuration.
func NewHTTPClient(cfg config.PlatformConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// ExchangeCode trades an authorization code for tokens.
func (c *HTTPClient) ExchangeCode(ctx context.Context, code string) (*TokenPair, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}
	return tokenPairFrom(tok), nil
}

// RefreshToken trades a refresh token for fresh tokens.
func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh: %w", err)
	}
	return tokenPairFrom(tok), nil
}

// oauthContext injects our HTTP client so the oauth2 package honors the
// configured timeout.
func (c *HTTPClient) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.client)
}

func tokenPairFrom(tok *oauth2.Token) *TokenPair {
	pair := &TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		pair.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	if v, ok := tok.Extra("userId").(string); ok {
		pair.UserID = v
	}
	if v, ok := tok.Extra("companyId").(string); ok {
		pair.CompanyID = v
	}
	if v, ok := tok.Extra("locationId").(string); ok {
		pair.LocationID = v
	}
	return pair
}

// LocationToken issues a sub-token scoped to one tenant.
func (c *HTTPClient) LocationToken(ctx context.Context, agencyToken, agencyID, locationID string) (string, error) {
	form := url.Values{}
	form.Set("companyId", agencyID)
	form.Set("locationId", locationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/locationToken", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+agencyToken)
	req.Header.Set("Version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError("location token", resp)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("location token response missing access_token")
	}
	return parsed.AccessToken, nil
}

// UserExists reports whether a user with the email exists under the agency.
func (c *HTTPClient) UserExists(ctx context.Context, token, agencyID, email string) (bool, error) {
	endpoint := fmt.Sprintf("%s/users/search?companyId=%s&email=%s",
		c.baseURL, url.QueryEscape(agencyID), url.QueryEscape(email))

	var parsed struct {
		Users []User `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, token, nil, &parsed, "user search"); err != nil {
		return false, err
	}
	return len(parsed.Users) > 0, nil
}

// CreateAccount creates a tenant from the snapshot template.
func (c *HTTPClient) CreateAccount(ctx context.Context, token string, req *models.ProvisioningRequest, agencyID, snapshotID string) (*Account, error) {
	payload := map[string]interface{}{
		"name":       req.BusinessName,
		"companyId":  agencyID,
		"phone":      req.Phone,
		"address":    req.Address,
		"city":       req.City,
		"state":      req.State,
		"country":    req.Country,
		"postalCode": req.PostalCode,
		"snapshotId": snapshotID,
		"prospectInfo": map[string]string{
			"firstName": req.FirstName,
			"lastName":  req.LastName,
			"email":     req.Email,
		},
	}

	var acc Account
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/locations/", token, payload, &acc, "create account"); err != nil {
		return nil, err
	}
	if acc.ID == "" {
		return nil, fmt.Errorf("create account response missing id")
	}
	if acc.Email == "" {
		acc.Email = req.Email
	}
	return &acc, nil
}

// GetAccount fetches a tenant by id.
func (c *HTTPClient) GetAccount(ctx context.Context, token, accountID string) (*Account, error) {
	var acc Account
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/locations/"+url.PathEscape(accountID), token, nil, &acc, "get account"); err != nil {
		return nil, err
	}
	return &acc, nil
}

// DeleteAccount removes a tenant.
func (c *HTTPClient) DeleteAccount(ctx context.Context, token, accountID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.baseURL+"/locations/"+url.PathEscape(accountID), token, nil, nil, "delete account")
}

// CreateUser creates a user scoped to one account.
func (c *HTTPClient) CreateUser(ctx context.Context, token string, u NewUser) (*User, error) {
	payload := map[string]interface{}{
		"firstName":   u.FirstName,
		"lastName":    u.LastName,
		"email":       u.Email,
		"phone":       u.Phone,
		"password":    u.Password,
		"type":        "account",
		"role":        u.Role,
		"locationIds": []string{u.AccountID},
		"permissions": u.Permissions,
	}

	var user User
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/users/", token, payload, &user, "create user"); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("create user response missing id")
	}
	return &user, nil
}

// ListFunnels lists funnels for an account using its sub-token.
func (c *HTTPClient) ListFunnels(ctx context.Context, locationToken, accountID string) ([]Funnel, error) {
	endpoint := fmt.Sprintf("%s/funnels/funnel/list?locationId=%s", c.baseURL, url.QueryEscape(accountID))

	var parsed struct {
		Funnels []Funnel `json:"funnels"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, locationToken, nil, &parsed, "list funnels"); err != nil {
		return nil, err
	}
	return parsed.Funnels, nil
}

// ListCustomFields lists a tenant's custom configuration fields.
func (c *HTTPClient) ListCustomFields(ctx context.Context, locationToken, locationID string) ([]models.CustomField, error) {
	endpoint := fmt.Sprintf("%s/locations/%s/customValues", c.baseURL, url.PathEscape(locationID))

	var parsed struct {
		CustomValues []models.CustomField `json:"customValues"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, locationToken, nil, &parsed, "list custom fields"); err != nil {
		return nil, err
	}
	return parsed.CustomValues, nil
}

// UpdateCustomField writes one custom field value by identifier.
func (c *HTTPClient) UpdateCustomField(ctx context.Context, locationToken, locationID, fieldID, name, value string) error {
	endpoint := fmt.Sprintf("%s/locations/%s/customValues/%s",
		c.baseURL, url.PathEscape(locationID), url.PathEscape(fieldID))

	payload := map[string]string{"name": name, "value": value}
	return c.doJSON(ctx, http.MethodPut, endpoint, locationToken, payload, nil, "update custom field")
}

// doJSON performs one authenticated JSON round-trip against the platform.
func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint, token string, payload, out interface{}, operation string) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &errors.ErrPlatformStatus{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

var _ Client = (*HTTPClient)(nil)
