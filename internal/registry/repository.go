// Package registry stores the clipper's own state in SQLite: key/value config
// (auth token, device id, last output directory) and diagnostics reported
// by the UI.
package registry

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	KeyDeviceID      = "device_id"
	KeyAuthToken     = "auth_token"
	KeyLastOutputDir = "last_output_dir"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// Diagnostic is one log line or error forwarded by the UI.
type Diagnostic struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	InsertDiagnostic(ctx context.Context, d *Diagnostic) error
	ListDiagnostics(ctx context.Context, limit int) ([]*Diagnostic, error)
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// GetConfig returns "" for a missing key.
func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, key, value)
	return err
}

// InsertDiagnostic stores d and fills in its ID and CreatedAt.
func (r *SQLiteRepository) InsertDiagnostic(ctx context.Context, d *Diagnostic) error {
	if d.Source == "" {
		d.Source = "ui"
	}
	d.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO diagnostics (level, message, detail, source, created_at) VALUES (?, ?, ?, ?, ?)
	`, d.Level, d.Message, d.Detail, d.Source, d.CreatedAt.Format(timeLayout))
	if err != nil {
		return err
	}
	d.ID, err = res.LastInsertId()
	return err
}

// ListDiagnostics returns up to limit entries, newest first.
func (r *SQLiteRepository) ListDiagnostics(ctx context.Context, limit int) ([]*Diagnostic, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, level, message, detail, source, created_at
		FROM diagnostics ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Diagnostic
	for rows.Next() {
		var d Diagnostic
		var created string
		if err := rows.Scan(&d.ID, &d.Level, &d.Message, &d.Detail, &d.Source, &created); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, created); err == nil {
			d.CreatedAt = t
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// EnsureConfig returns the stored value for key, generating and saving one
// first if none exists.
func EnsureConfig(ctx context.Context, repo Repository, key string, generate func() (string, error)) (string, error) {
	existing, err := repo.GetConfig(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	if existing != "" {
		return existing, nil
	}

	value, err := generate()
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", key, err)
	}
	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return value, nil
}

// NewDeviceID returns a random UUID.
func NewDeviceID() (string, error) {
	return uuid.NewString(), nil
}

// NewAuthToken returns 32 random bytes, hex encoded.
func NewAuthToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
