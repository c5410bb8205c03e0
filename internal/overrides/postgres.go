package overrides

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// PostgresStore implements domain.OverrideStore on PostgreSQL,
// sharing the main database so overrides join against records.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection. It expects the
// overrides table to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a new connection from a database URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores a new override. The partial unique index on active
// overrides turns a duplicate into a no-op insert, which surfaces
// as domain.ErrOverrideExists.
func (s *PostgresStore) Save(ctx context.Context, override *domain.Override) error {
	if err := override.Validate(); err != nil {
		return err
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

	query := `
		INSERT INTO overrides (
			id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (record_id) WHERE revoked_at IS NULL DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		override.ID,
		override.RecordID,
		override.Reason,
		override.ActingUser,
		override.CreatedAt,
		revokedAt,
		override.RevokedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %s already has an active override: %w",
			override.RecordID, domain.ErrOverrideExists)
	}
	return nil
}

// Get retrieves an override by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Override, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		FROM overrides
		WHERE id = $1
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
func (s *PostgresStore) ActiveForRecord(ctx context.Context, recordID string) (*domain.Override, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		FROM overrides
		WHERE record_id = $1 AND revoked_at IS NULL
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
func (s *PostgresStore) ListForRecord(ctx context.Context, recordID string) ([]*domain.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		FROM overrides
		WHERE record_id = $1
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
func (s *PostgresStore) Revoke(ctx context.Context, id, revokedBy string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE overrides
		SET revoked_at = $1, revoked_by = $2
		WHERE id = $3 AND revoked_at IS NULL
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
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM overrides").Scan(&count)
	return count, err
}

// list returns overrides across all records, newest first.
func (s *PostgresStore) list(ctx context.Context, limit, offset int) ([]*domain.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, reason, acting_user,
			created_at, revoked_at, revoked_by
		FROM overrides
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
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

// ExportJSON writes the full override audit trail to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
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

// Close shuts down the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
