package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// defaultListLimit caps unpaginated record listings.
const defaultListLimit = 50

// RecordRepository persists interpretation records in PostgreSQL. It
// implements domain.RecordStore.
type RecordRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *pgxpool.Pool, logger *logrus.Logger) *RecordRepository {
	return &RecordRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a new interpretation record into the database
func (r *RecordRepository) Create(ctx context.Context, record *domain.TestRecord) error {
	metricsJSON, err := json.Marshal(record.Metrics)
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}
	zScoresJSON, err := json.Marshal(record.ZScores)
	if err != nil {
		return fmt.Errorf("marshaling z-scores: %w", err)
	}
	interpretationJSON, err := json.Marshal(record.Interpretation)
	if err != nil {
		return fmt.Errorf("marshaling interpretation: %w", err)
	}

	query := `
		INSERT INTO test_records (
			id, accession, iteration, karyotype, metrics, z_scores,
			interpretation, disposition, qc_status, override_active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err = r.db.Exec(ctx, query,
		record.ID,
		record.Accession,
		record.Iteration,
		record.Karyotype,
		metricsJSON,
		zScoresJSON,
		interpretationJSON,
		record.Disposition,
		record.QCStatus,
		record.OverrideActive,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"record_id": record.ID,
			"accession": record.Accession,
			"error":     err,
		}).Error("Failed to create record")
		return fmt.Errorf("creating record: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"record_id":   record.ID,
		"accession":   record.Accession,
		"disposition": record.Disposition,
		"qc_status":   record.QCStatus,
	}).Info("Record created successfully")

	return nil
}

const recordColumns = `
	id, accession, iteration, karyotype, metrics, z_scores,
	interpretation, disposition, qc_status, override_active,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.TestRecord, error) {
	var record domain.TestRecord
	var metricsJSON, zScoresJSON, interpretationJSON []byte

	err := row.Scan(
		&record.ID,
		&record.Accession,
		&record.Iteration,
		&record.Karyotype,
		&metricsJSON,
		&zScoresJSON,
		&interpretationJSON,
		&record.Disposition,
		&record.QCStatus,
		&record.OverrideActive,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metricsJSON, &record.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshaling metrics: %w", err)
	}
	if err := json.Unmarshal(zScoresJSON, &record.ZScores); err != nil {
		return nil, fmt.Errorf("unmarshaling z-scores: %w", err)
	}
	if err := json.Unmarshal(interpretationJSON, &record.Interpretation); err != nil {
		return nil, fmt.Errorf("unmarshaling interpretation: %w", err)
	}

	return &record, nil
}

// GetByID retrieves a record by its ID
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.TestRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM test_records WHERE id = $1`

	record, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("record not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"record_id": id,
			"error":     err,
		}).Error("Failed to get record by ID")
		return nil, fmt.Errorf("getting record by ID: %w", err)
	}

	return record, nil
}

// GetByAccession retrieves the interpretation history of a sample, oldest
// iteration first.
func (r *RecordRepository) GetByAccession(ctx context.Context, accession string) ([]*domain.TestRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM test_records
		WHERE accession = $1
		ORDER BY iteration ASC, created_at ASC`

	rows, err := r.db.Query(ctx, query, accession)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"accession": accession,
			"error":     err,
		}).Error("Failed to get records by accession")
		return nil, fmt.Errorf("getting records by accession: %w", err)
	}
	defer rows.Close()

	var records []*domain.TestRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"accession": accession,
				"error":     err,
			}).Error("Failed to scan record row")
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating record rows: %w", err)
	}

	return records, nil
}

// List retrieves records matching the filter, newest first.
func (r *RecordRepository) List(ctx context.Context, filter domain.RecordFilter) ([]*domain.TestRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM test_records WHERE 1=1`
	args := []any{}

	if filter.Accession != "" {
		args = append(args, filter.Accession)
		query += fmt.Sprintf(" AND accession = $%d", len(args))
	}
	if filter.Disposition != "" {
		args = append(args, filter.Disposition)
		query += fmt.Sprintf(" AND disposition = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.WithError(err).Error("Failed to list records")
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []*domain.TestRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating record rows: %w", err)
	}

	return records, nil
}

// Update updates an existing record
func (r *RecordRepository) Update(ctx context.Context, record *domain.TestRecord) error {
	metricsJSON, err := json.Marshal(record.Metrics)
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}
	zScoresJSON, err := json.Marshal(record.ZScores)
	if err != nil {
		return fmt.Errorf("marshaling z-scores: %w", err)
	}
	interpretationJSON, err := json.Marshal(record.Interpretation)
	if err != nil {
		return fmt.Errorf("marshaling interpretation: %w", err)
	}

	query := `
		UPDATE test_records
		SET accession = $2, iteration = $3, karyotype = $4, metrics = $5,
			z_scores = $6, interpretation = $7, disposition = $8,
			qc_status = $9, override_active = $10, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		record.ID,
		record.Accession,
		record.Iteration,
		record.Karyotype,
		metricsJSON,
		zScoresJSON,
		interpretationJSON,
		record.Disposition,
		record.QCStatus,
		record.OverrideActive,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"record_id": record.ID,
			"error":     err,
		}).Error("Failed to update record")
		return fmt.Errorf("updating record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("record not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"record_id":       record.ID,
		"disposition":     record.Disposition,
		"override_active": record.OverrideActive,
	}).Info("Record updated successfully")

	return nil
}

// Delete removes a record from the database
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM test_records WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"record_id": id,
			"error":     err,
		}).Error("Failed to delete record")
		return fmt.Errorf("deleting record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("record not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"record_id": id,
	}).Info("Record deleted successfully")

	return nil
}
