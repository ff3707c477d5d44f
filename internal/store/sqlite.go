package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/onboardly/onboardly/internal/errors"
	"github.com/onboardly/onboardly/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides SQLite-backed credential storage with WAL mode.
// It is safe for concurrent use by the API handlers and the refresh
// scheduler.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with WAL mode enabled
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS credentials (
					owner_id TEXT PRIMARY KEY,
					access_token TEXT NOT NULL,
					refresh_token TEXT NOT NULL,
					expires_in INTEGER NOT NULL,
					issued_at DATETIME NOT NULL,
					user_id TEXT DEFAULT '',
					location_id TEXT DEFAULT '',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_credentials_updated_at ON credentials(updated_at);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// GetCredential retrieves the credential for an owner
func (s *SQLiteStore) GetCredential(ownerID string) (*models.Credential, bool) {
	row := s.db.QueryRow(`
		SELECT owner_id, access_token, refresh_token, expires_in, issued_at, user_id, location_id, updated_at
		FROM credentials WHERE owner_id = ?
	`, ownerID)

	cred, err := scanCredential(row)
	if err != nil {
		return nil, false
	}
	return cred, true
}

// UpsertCredential creates or replaces the credential keyed by OwnerID
func (s *SQLiteStore) UpsertCredential(cred *models.Credential) error {
	_, err := s.db.Exec(`
		INSERT INTO credentials (owner_id, access_token, refresh_token, expires_in, issued_at, user_id, location_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_in = excluded.expires_in,
			issued_at = excluded.issued_at,
			user_id = excluded.user_id,
			location_id = excluded.location_id,
			updated_at = excluded.updated_at
	`, cred.OwnerID, cred.AccessToken, cred.RefreshToken, cred.ExpiresIn,
		cred.IssuedAt.UTC(), cred.UserID, cred.LocationID, time.Now().UTC())
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "upsert credential", Err: err}
	}
	return nil
}

// UpdateTokens rewrites token material for an owner after a refresh
func (s *SQLiteStore) UpdateTokens(ownerID, accessToken, refreshToken string, expiresIn int64, issuedAt time.Time) error {
	query := `
		UPDATE credentials
		SET access_token = ?, expires_in = ?, issued_at = ?, updated_at = ?
		WHERE owner_id = ?
	`
	args := []interface{}{accessToken, expiresIn, issuedAt.UTC(), time.Now().UTC(), ownerID}
	if refreshToken != "" {
		query = `
			UPDATE credentials
			SET access_token = ?, refresh_token = ?, expires_in = ?, issued_at = ?, updated_at = ?
			WHERE owner_id = ?
		`
		args = []interface{}{accessToken, refreshToken, expiresIn, issuedAt.UTC(), time.Now().UTC(), ownerID}
	}

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update tokens", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update tokens", Err: err}
	}
	if affected == 0 {
		return &errors.ErrCredentialNotFound{OwnerID: ownerID}
	}
	return nil
}

// ListCredentials returns all stored credentials
func (s *SQLiteStore) ListCredentials() []*models.Credential {
	rows, err := s.db.Query(`
		SELECT owner_id, access_token, refresh_token, expires_in, issued_at, user_id, location_id, updated_at
		FROM credentials ORDER BY owner_id
	`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var result []*models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			continue
		}
		result = append(result, cred)
	}
	return result
}

// LatestCredential returns the most recently written credential
func (s *SQLiteStore) LatestCredential() (*models.Credential, bool) {
	row := s.db.QueryRow(`
		SELECT owner_id, access_token, refresh_token, expires_in, issued_at, user_id, location_id, updated_at
		FROM credentials ORDER BY updated_at DESC LIMIT 1
	`)

	cred, err := scanCredential(row)
	if err != nil {
		return nil, false
	}
	return cred, true
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var cred models.Credential
	err := row.Scan(
		&cred.OwnerID, &cred.AccessToken, &cred.RefreshToken, &cred.ExpiresIn,
		&cred.IssuedAt, &cred.UserID, &cred.LocationID, &cred.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)
