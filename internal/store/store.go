package store

import (
	"time"

	"github.com/onboardly/onboardly/internal/models"
)

// Store defines the interface for credential persistence. At most one
// credential exists per owner; UpsertCredential overwrites in place.
type Store interface {
	// GetCredential retrieves the credential for an owning agency
	GetCredential(ownerID string) (*models.Credential, bool)
	// UpsertCredential creates or replaces the credential keyed by OwnerID
	UpsertCredential(cred *models.Credential) error
	// UpdateTokens rewrites the token material after a refresh, resetting
	// the issuance instant
	UpdateTokens(ownerID, accessToken, refreshToken string, expiresIn int64, issuedAt time.Time) error
	// ListCredentials returns all stored credentials
	ListCredentials() []*models.Credential
	// LatestCredential returns the most recently written credential
	LatestCredential() (*models.Credential, bool)
	// Close releases any underlying resources
	Close() error
}
