package overrides

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// SQLiteStore implements domain.OverrideStore on a local SQLite file.
// It is the backend for single-node and desktop deployments.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the override database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner abstracts over sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanOverride scans a row into a domain.Override.
func scanOverride(s scanner) (*domain.Override, error) {
	o := &domain.Override{}
	var revokedAt sql.NullTime

	err := s.Scan(
		&o.ID, &o.RecordID, &o.Reason, &o.ActingUser,
		&o.CreatedAt, &revokedAt, &o.RevokedBy,
	)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		t := revokedAt.Time
		o.RevokedAt = &t
	}
	return o, nil
}

// createSchema creates the overrides table and indexes. The partial
// unique index enforces at most one active override per record.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS overrides (
		id TEXT PRIMARY KEY,
		record_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		acting_user TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		revoked_at DATETIME,
		revoked_by TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_overrides_record_id ON overrides(record_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_overrides_one_active
		ON overrides(record_id) WHERE revoked_at IS NULL;
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores a new override. The ID and CreatedAt are assigned when
// empty. Saving a second active override for the same record fails
// with domain.ErrOverrideExists.
func (s *SQLiteStore) Save(ctx context.Context, override *domain.Override) error {
	if err := override.Validate(); err != nil {
		return err
	}

	if override.RevokedAt == nil {
		var existingID string
		err := s.db.QueryRowContext(ctx,
			"SELECT id FROM overrides WHERE record_id = ? AND revoked_at IS NULL LIMIT 1",
			override.RecordID,
		).Scan(&existingID)
		if err == nil {
			return fmt.Errorf("record %s already has an active override: %w",
				override.RecordID, domain.ErrOverrideExists)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check existing override: %w", err)
		}
	}

	if override.ID == "" {
		override.ID = uuid.New().String()
	}
	if override.CreatedAt.IsZero() {
		override.CreatedAt = time.Now()
	}

	var revokedAt sql.NullTime
	if override.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *override.RevokedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (
			id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		override.ID,
		override.RecordID,
		override.Reason,
		override.ActingUser,
		override.CreatedAt,
		revokedAt,
		override.RevokedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert override: %w", err)
	}

	return nil
}

// Get retrieves an override by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Override, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		FROM overrides
		WHERE id = ?
	`, id)

	o, err := scanOverride(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("override not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan override: %w", err)
	}
	return o, nil
}

// ActiveForRecord returns the record's active override, or (nil, nil)
// when no override is in force.
func (s *SQLiteStore) ActiveForRecord(ctx context.Context, recordID string) (*domain.Override, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		FROM overrides
		WHERE record_id = ? AND revoked_at IS NULL
		LIMIT 1
	`, recordID)

	o, err := scanOverride(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan override: %w", err)
	}
	return o, nil
}

// ListForRecord returns all overrides ever applied to a record,
// newest first, revoked ones included.
func (s *SQLiteStore) ListForRecord(ctx context.Context, recordID string) ([]*domain.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		FROM overrides
		WHERE record_id = ?
		ORDER BY created_at DESC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var result []*domain.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// Revoke marks an active override as withdrawn. Revoking an unknown
// or already-revoked override fails with domain.ErrNoOverride.
func (s *SQLiteStore) Revoke(ctx context.Context, id, revokedBy string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE overrides
		SET revoked_at = ?, revoked_by = ?
		WHERE id = ? AND revoked_at IS NULL
	`, time.Now(), revokedBy, id)
	if err != nil {
		return fmt.Errorf("failed to revoke override: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revoke result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no active override with id %s: %w", id, domain.ErrNoOverride)
	}
	return nil
}

// Count returns the total number of overrides, revoked ones included.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM overrides").Scan(&count)
	return count, err
}

// list returns overrides across all records, newest first.
func (s *SQLiteStore) list(ctx context.Context, limit, offset int) ([]*domain.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		FROM overrides
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var result []*domain.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// maxExportLimit caps a single export batch.
const maxExportLimit = 1000000

// ExportJSON writes the full override audit trail to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.list(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list overrides: %w", err)
	}

	export := &OverrideExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Overrides:  all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON restores overrides from a JSON export. Entries whose ID
// already exists are skipped, as are active entries for records that
// already carry an active override.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export OverrideExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, o := range export.Overrides {
		if o.ID != "" {
			existing, err := s.Get(ctx, o.ID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
			if existing != nil {
				skipped++
				continue
			}
		}

		if err := s.Save(ctx, o); err != nil {
			if errors.Is(err, domain.ErrOverrideExists) {
				skipped++
				continue
			}
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close releases the SQLite handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
