package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	cause := fmt.Errorf("underlying")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "config not found",
			err:  &ErrConfigNotFound{Path: "/etc/onboardly.yaml"},
			want: "config file not found: /etc/onboardly.yaml",
		},
		{
			name: "database open",
			err:  &ErrDatabaseOpen{Path: "data.db", Err: cause},
			want: "failed to open database data.db: underlying",
		},
		{
			name: "credential not found",
			err:  &ErrCredentialNotFound{OwnerID: "agency-1"},
			want: "no credential stored for owner agency-1",
		},
		{
			name: "platform status with body",
			err:  &ErrPlatformStatus{Operation: "create account", StatusCode: 422, Body: "invalid snapshot"},
			want: "platform create account returned status 422: invalid snapshot",
		},
		{
			name: "platform status without body",
			err:  &ErrPlatformStatus{Operation: "refresh token", StatusCode: 401},
			want: "platform refresh token returned status 401",
		},
		{
			name: "user exists",
			err:  &ErrUserExists{Email: "owner@biz.test"},
			want: "user already exists: owner@biz.test",
		},
		{
			name: "portal not found",
			err:  &ErrPortalNotFound{AccountID: "loc-9"},
			want: "Client Portal step or page not found for account loc-9",
		},
		{
			name: "step failed",
			err:  &ErrStepFailed{Step: "create user", Err: cause},
			want: "provisioning step create user failed: underlying",
		},
		{
			name: "readiness timeout",
			err:  &ErrReadinessTimeout{Operation: "account", Waited: "1m30s"},
			want: "account not ready after 1m30s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")

	wrapped := []error{
		&ErrConfigParse{Err: cause},
		&ErrConfigValidation{Err: cause},
		&ErrDatabaseOpen{Path: "x", Err: cause},
		&ErrDatabaseMigration{Version: 2, Err: cause},
		&ErrDatabaseQuery{Operation: "upsert", Err: cause},
		&ErrServerStart{Addr: ":0", Err: cause},
		&ErrServerShutdown{Err: cause},
		&ErrStepFailed{Step: "create account", Err: cause},
	}

	for _, err := range wrapped {
		assert.True(t, stderrors.Is(err, cause), "expected %T to unwrap to cause", err)
	}
}
