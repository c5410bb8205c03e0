package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// CountByDisposition aggregates records created since the given time by
// effective disposition, most frequent first.
func (r *RecordRepository) CountByDisposition(ctx context.Context, since time.Time) ([]domain.DispositionCount, error) {
	query := `
		SELECT disposition, COUNT(*)
		FROM test_records
		WHERE created_at >= $1
		GROUP BY disposition
		ORDER BY COUNT(*) DESC, disposition ASC`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		r.log.WithError(err).Error("Failed to count records by disposition")
		return nil, fmt.Errorf("counting records by disposition: %w", err)
	}
	defer rows.Close()

	var counts []domain.DispositionCount
	for rows.Next() {
		var count domain.DispositionCount
		if err := rows.Scan(&count.Disposition, &count.Count); err != nil {
			return nil, fmt.Errorf("scanning disposition count: %w", err)
		}
		counts = append(counts, count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating disposition counts: %w", err)
	}

	return counts, nil
}

// MonthlyVolumes aggregates interpretation volume per calendar month over
// the trailing window, oldest month first.
func (r *RecordRepository) MonthlyVolumes(ctx context.Context, months int) ([]domain.MonthlyVolume, error) {
	if months <= 0 {
		months = 12
	}

	query := `
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month, COUNT(*)
		FROM test_records
		WHERE created_at >= date_trunc('month', NOW()) - make_interval(months => $1 - 1)
		GROUP BY 1
		ORDER BY 1 ASC`

	rows, err := r.db.Query(ctx, query, months)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"months": months,
			"error":  err,
		}).Error("Failed to aggregate monthly volumes")
		return nil, fmt.Errorf("aggregating monthly volumes: %w", err)
	}
	defer rows.Close()

	var volumes []domain.MonthlyVolume
	for rows.Next() {
		var volume domain.MonthlyVolume
		if err := rows.Scan(&volume.Month, &volume.Count); err != nil {
			return nil, fmt.Errorf("scanning monthly volume: %w", err)
		}
		volumes = append(volumes, volume)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating monthly volumes: %w", err)
	}

	return volumes, nil
}

// QCFailureReasons aggregates blocking QC issues on records created since
// the given time, by issue detail text, most frequent first. Advisory
// issues are not counted.
func (r *RecordRepository) QCFailureReasons(ctx context.Context, since time.Time) ([]domain.QCReasonCount, error) {
	query := `
		SELECT issue->>'detail' AS reason, COUNT(*)
		FROM test_records,
			jsonb_array_elements(interpretation->'qc'->'issues') AS issue
		WHERE created_at >= $1 AND issue->>'severity' = 'HARD'
		GROUP BY 1
		ORDER BY COUNT(*) DESC, 1 ASC`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		r.log.WithError(err).Error("Failed to aggregate QC failure reasons")
		return nil, fmt.Errorf("aggregating QC failure reasons: %w", err)
	}
	defer rows.Close()

	var reasons []domain.QCReasonCount
	for rows.Next() {
		var reason domain.QCReasonCount
		if err := rows.Scan(&reason.Reason, &reason.Count); err != nil {
			return nil, fmt.Errorf("scanning QC failure reason: %w", err)
		}
		reasons = append(reasons, reason)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating QC failure reasons: %w", err)
	}

	return reasons, nil
}
