package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Credential errors

type ErrCredentialNotFound struct {
	OwnerID string
}

func (e *ErrCredentialNotFound) Error() string {
	return fmt.Sprintf("no credential stored for owner %s", e.OwnerID)
}

// Platform errors

type ErrPlatformStatus struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ErrPlatformStatus) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("platform %s returned status %d: %s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("platform %s returned status %d", e.Operation, e.StatusCode)
}

type ErrUserExists struct {
	Email string
}

func (e *ErrUserExists) Error() string {
	return fmt.Sprintf("user already exists: %s", e.Email)
}

type ErrPortalNotFound struct {
	AccountID string
}

func (e *ErrPortalNotFound) Error() string {
	return fmt.Sprintf("Client Portal step or page not found for account %s", e.AccountID)
}

// Workflow errors

type ErrStepFailed struct {
	Step string
	Err  error
}

func (e *ErrStepFailed) Error() string {
	return fmt.Sprintf("provisioning step %s failed: %v", e.Step, e.Err)
}

func (e *ErrStepFailed) Unwrap() error {
	return e.Err
}

type ErrReadinessTimeout struct {
	Operation string
	Waited    string
}

func (e *ErrReadinessTimeout) Error() string {
	return fmt.Sprintf("%s not ready after %s", e.Operation, e.Waited)
}
