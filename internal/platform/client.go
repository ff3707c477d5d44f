package platform

import (
	"context"

	"github.com/onboardly/onboardly/internal/models"
)

// TokenPair is the result of an OAuth exchange or refresh against the
// platform's token endpoint.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	UserID       string
	CompanyID    string
	LocationID   string
}

// Account is a tenant (location) record as the platform reports it.
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// User is a platform user record.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// FunnelPage is one page inside a funnel step.
type FunnelPage struct {
	ID string `json:"id"`
}

// FunnelStep is one named step inside a funnel.
type FunnelStep struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Pages []FunnelPage `json:"pages"`
}

// Funnel is a funnel with its ordered steps.
type Funnel struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Steps []FunnelStep `json:"steps"`
}

// NewUser carries everything needed to create a user scoped to one account.
type NewUser struct {
	AccountID   string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Password    string
	Role        string
	Permissions map[string]bool
}

// AdminRole is the role granted to the initial user of a provisioned account.
const AdminRole = "admin"

// DefaultUserPermissions is the fixed permission grant set applied to the
// initial user of every provisioned account.
func DefaultUserPermissions() map[string]bool {
	return map[string]bool{
		"campaignsEnabled":             true,
		"campaignsReadOnly":            false,
		"contactsEnabled":              true,
		"workflowsEnabled":             true,
		"triggersEnabled":              true,
		"funnelsEnabled":               true,
		"websitesEnabled":              true,
		"opportunitiesEnabled":         true,
		"dashboardStatsEnabled":        true,
		"bulkRequestsEnabled":          true,
		"appointmentsEnabled":          true,
		"reviewsEnabled":               true,
		"onlineListingsEnabled":        true,
		"phoneCallEnabled":             true,
		"conversationsEnabled":         true,
		"assignedDataOnly":             false,
		"adwordsReportingEnabled":      true,
		"membershipEnabled":            true,
		"facebookAdsReportingEnabled":  true,
		"attributionsReportingEnabled": true,
		"settingsEnabled":              true,
		"tagsEnabled":                  true,
		"leadValueEnabled":             true,
		"marketingEnabled":             true,
	}
}

// Client is the capability interface to the CRM platform. All calls are
// authenticated with a bearer token supplied per call; the workflow decides
// whether that is the agency token or a location-scoped sub-token.
type Client interface {
	// ExchangeCode trades an authorization code for tokens
	ExchangeCode(ctx context.Context, code string) (*TokenPair, error)
	// RefreshToken trades a refresh token for fresh tokens
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	// LocationToken issues a sub-token scoped to one tenant
	LocationToken(ctx context.Context, agencyToken, agencyID, locationID string) (string, error)
	// UserExists reports whether a user with the email exists under the agency
	UserExists(ctx context.Context, token, agencyID, email string) (bool, error)
	// CreateAccount creates a tenant from the snapshot template
	CreateAccount(ctx context.Context, token string, req *models.ProvisioningRequest, agencyID, snapshotID string) (*Account, error)
	// GetAccount fetches a tenant by id; used as the readiness probe
	GetAccount(ctx context.Context, token, accountID string) (*Account, error)
	// DeleteAccount removes a tenant; used for saga compensation
	DeleteAccount(ctx context.Context, token, accountID string) error
	// CreateUser creates a user scoped to one account
	CreateUser(ctx context.Context, token string, u NewUser) (*User, error)
	// ListFunnels lists funnels for an account using its sub-token
	ListFunnels(ctx context.Context, locationToken, accountID string) ([]Funnel, error)
	// ListCustomFields lists a tenant's custom configuration fields
	ListCustomFields(ctx context.Context, locationToken, locationID string) ([]models.CustomField, error)
	// UpdateCustomField writes one custom field value by identifier
	UpdateCustomField(ctx context.Context, locationToken, locationID, fieldID, name, value string) error
}
