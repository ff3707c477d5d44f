package models

import (
	"fmt"
	"strings"
)

// ProvisioningRequest carries the business data for one tenant-creation run.
// All fields except AgencyID are mandatory.
type ProvisioningRequest struct {
	AgencyID     string `json:"agency_id,omitempty"`
	BusinessName string `json:"business_name"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	PostalCode   string `json:"postal_code"`
}

// Validate checks that every required field is present. It returns an error
// naming the first missing field, before any external call is made.
func (r *ProvisioningRequest) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"business_name", r.BusinessName},
		{"first_name", r.FirstName},
		{"last_name", r.LastName},
		{"email", r.Email},
		{"phone", r.Phone},
		{"address", r.Address},
		{"city", r.City},
		{"state", r.State},
		{"country", r.Country},
		{"postal_code", r.PostalCode},
	}

	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("missing required field: %s", f.name)
		}
	}
	return nil
}

// ContactName returns the contact's full name.
func (r *ProvisioningRequest) ContactName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// ProvisionedAccount is the platform-assigned identity of a newly created
// tenant. It lives only for the duration of one workflow run.
type ProvisionedAccount struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	BusinessName string `json:"business_name"`
}

// CustomField is one named configuration value inside a tenant.
type CustomField struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FieldMap builds a name-keyed lookup restricted to the given allow-list.
func FieldMap(fields []CustomField, allowed map[string]bool) map[string]CustomField {
	m := make(map[string]CustomField, len(allowed))
	for _, f := range fields {
		if allowed[f.Name] {
			m[f.Name] = f
		}
	}
	return m
}

// StreamEventType tags a progress stream event.
type StreamEventType string

const (
	EventProgress StreamEventType = "progress"
	EventSuccess  StreamEventType = "success"
	EventFailure  StreamEventType = "failure"
)

// StreamEvent is one entry on the provisioning progress stream. The stream
// ends immediately after the first success or failure event.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Message   string          `json:"message"`
	AccountID string          `json:"account_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}
