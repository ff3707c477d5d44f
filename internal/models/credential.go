package models

import "time"

// Credential stores the OAuth material for one owning agency.
// At most one credential exists per OwnerID; refreshes mutate it in place.
type Credential struct {
	OwnerID      string    `json:"owner_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
	UserID       string    `json:"user_id,omitempty"`
	LocationID   string    `json:"location_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExpiresAt returns the absolute expiry instant of the access token.
func (c *Credential) ExpiresAt() time.Time {
	return c.IssuedAt.Add(time.Duration(c.ExpiresIn) * time.Second)
}

// NeedsRefresh reports whether the token is inside the grace window
// before expiry (or already expired).
func (c *Credential) NeedsRefresh(grace time.Duration) bool {
	return !time.Now().Before(c.ExpiresAt().Add(-grace))
}

// Authorized reports whether the credential carries a usable access token.
func (c *Credential) Authorized() bool {
	return c != nil && c.AccessToken != ""
}
