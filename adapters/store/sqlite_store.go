package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/ports"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite. The wallet
// address column carries the UNIQUE constraint that serialises first logins.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps writers serialised and :memory: databases shared
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

var _ ports.Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			login_identifier TEXT NOT NULL UNIQUE,
			internal_uid TEXT NOT NULL,
			address TEXT NOT NULL,
			credential_hash TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS wallet_links (
			address TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (account_id) REFERENCES accounts(id)
		);

		CREATE TABLE IF NOT EXISTS invalidated_tokens (
			token_id TEXT PRIMARY KEY,
			expires_at DATETIME NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindLinkByAddress returns the link for address
func (s *SQLiteStore) FindLinkByAddress(ctx context.Context, address string) (*core.WalletLink, error) {
	var link core.WalletLink
	err := s.db.QueryRowContext(ctx,
		`SELECT address, account_id, created_at FROM wallet_links WHERE address = ?`,
		strings.ToLower(address),
	).Scan(&link.Address, &link.AccountID, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying wallet link: %w", err)
	}
	return &link, nil
}

// CreateAccountAndLink inserts account and link in one transaction
func (s *SQLiteStore) CreateAccountAndLink(ctx context.Context, account *core.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	address := strings.ToLower(account.Address)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, login_identifier, internal_uid, address, credential_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.LoginIdentifier, account.InternalUID, address,
		account.CredentialHash, account.CreatedAt, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_links (address, account_id, created_at) VALUES (?, ?, ?)`,
		address, account.ID, account.CreatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return core.ErrLinkExists
		}
		return fmt.Errorf("inserting wallet link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetAccount returns an account by id
func (s *SQLiteStore) GetAccount(ctx context.Context, accountID string) (*core.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, login_identifier, internal_uid, address, credential_hash, created_at, updated_at
		FROM accounts WHERE id = ?`, accountID))
}

// GetAccountByLogin returns an account by its login identifier
func (s *SQLiteStore) GetAccountByLogin(ctx context.Context, loginIdentifier string) (*core.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, login_identifier, internal_uid, address, credential_hash, created_at, updated_at
		FROM accounts WHERE login_identifier = ?`, loginIdentifier))
}

func (s *SQLiteStore) scanAccount(row *sql.Row) (*core.Account, error) {
	var acc core.Account
	err := row.Scan(&acc.ID, &acc.LoginIdentifier, &acc.InternalUID, &acc.Address,
		&acc.CredentialHash, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &acc, nil
}

// SetCredential overwrites the credential slot
func (s *SQLiteStore) SetCredential(ctx context.Context, accountID, credentialHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET credential_hash = ?, updated_at = ? WHERE id = ?`,
		credentialHash, time.Now().UTC(), accountID,
	)
	if err != nil {
		return fmt.Errorf("updating credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ConsumeCredential clears the slot if it still holds credentialHash
func (s *SQLiteStore) ConsumeCredential(ctx context.Context, accountID, credentialHash string) error {
	if credentialHash == "" {
		return core.ErrCredentialMismatch
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET credential_hash = '', updated_at = ? WHERE id = ? AND credential_hash = ?`,
		time.Now().UTC(), accountID, credentialHash,
	)
	if err != nil {
		return fmt.Errorf("consuming credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetAccount(ctx, accountID); err != nil {
			return err
		}
		return core.ErrCredentialMismatch
	}
	return nil
}

// InvalidateToken records a token as invalid until expiry elapses
func (s *SQLiteStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invalidated_tokens (token_id, expires_at) VALUES (?, ?)
		ON CONFLICT(token_id) DO UPDATE SET expires_at = excluded.expires_at`,
		tokenID, now.Add(expiry),
	)
	if err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM invalidated_tokens WHERE expires_at < ?`, now); err != nil {
		return fmt.Errorf("failed to sweep invalidated tokens: %w", err)
	}
	return nil
}

// ConsumeToken invalidates a token only if it is still valid.
// A lapsed row is overwritten; a live one leaves the upsert with no effect.
func (s *SQLiteStore) ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO invalidated_tokens (token_id, expires_at) VALUES (?, ?)
		ON CONFLICT(token_id) DO UPDATE SET expires_at = excluded.expires_at
		WHERE invalidated_tokens.expires_at <= ?`,
		tokenID, now.Add(expiry), now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check consumed token: %w", err)
	}
	return n == 1, nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *SQLiteStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM invalidated_tokens WHERE token_id = ?`, tokenID,
	).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return time.Now().Before(expiresAt), nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE/PRIMARY KEY violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed: UNIQUE")
}
