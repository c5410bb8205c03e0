// Package service orchestrates the interpretation workflow: it feeds
// sample runs through the analysis rule engine, persists the resulting
// records, maintains the report cache, publishes disposition events,
// and applies the staff override lifecycle.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/analysis"
	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// recentRecordCacheSize bounds the in-process record cache. Records are
// small; this comfortably covers a day of lab throughput.
const recentRecordCacheSize = 512

// Report is the JSON document served to the reporting layer. Everything
// in it is derived from stored record fields, so a record can be
// re-rendered at any time without re-running analysis.
type Report struct {
	RecordID       string                          `json:"record_id"`
	Accession      string                          `json:"accession"`
	Iteration      int                             `json:"iteration"`
	IterationLabel string                          `json:"iteration_label"`
	Karyotype      domain.Karyotype                `json:"karyotype"`
	Disposition    domain.Disposition              `json:"disposition"`
	QCStatus       domain.QCStatus                 `json:"qc_status"`
	OverrideActive bool                            `json:"override_active"`
	Results        domain.Interpretation           `json:"results"`
	Reportability  map[string]domain.Reportability `json:"reportability"`
	GeneratedAt    time.Time                       `json:"generated_at"`
}

// InterpretationService coordinates sample interpretation end to end.
type InterpretationService struct {
	logger     *logrus.Logger
	records    domain.RecordStore
	overrides  domain.OverrideStore
	reports    domain.ReportCache
	events     domain.EventPublisher
	lis        domain.LISGateway
	thresholds domain.ThresholdSource
	metrics    *Metrics
	recent     *lru.Cache[string, *domain.TestRecord]
}

// NewInterpretationService creates the interpretation service.
func NewInterpretationService(
	logger *logrus.Logger,
	records domain.RecordStore,
	overrides domain.OverrideStore,
	reports domain.ReportCache,
	events domain.EventPublisher,
	lis domain.LISGateway,
	thresholds domain.ThresholdSource,
	metrics *Metrics,
) (*InterpretationService, error) {
	recent, err := lru.New[string, *domain.TestRecord](recentRecordCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}

	return &InterpretationService{
		logger:     logger,
		records:    records,
		overrides:  overrides,
		reports:    reports,
		events:     events,
		lis:        lis,
		thresholds: thresholds,
		metrics:    metrics,
		recent:     recent,
	}, nil
}

// InterpretSample runs the complete interpretation workflow for one
// sample run and persists the resulting record.
func (s *InterpretationService) InterpretSample(ctx context.Context, run *domain.SampleRun) (*domain.TestRecord, error) {
	startTime := time.Now()

	if run == nil {
		return nil, fmt.Errorf("sample run is required: %w", domain.ErrInvalidInput)
	}
	run.Accession = strings.TrimSpace(run.Accession)
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sample run: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"accession": run.Accession,
		"iteration": run.Iteration,
		"karyotype": string(run.Karyotype),
	}).Info("Starting sample interpretation")

	// Step 1: Classify against the current threshold snapshot.
	interp := analysis.Interpret(s.thresholds.Snapshot(), run)

	// Step 2: Persist the record.
	now := time.Now().UTC()
	record := &domain.TestRecord{
		ID:             uuid.New().String(),
		Accession:      run.Accession,
		Iteration:      run.Iteration,
		Karyotype:      run.Karyotype,
		Metrics:        run.Metrics,
		ZScores:        run.ZScores.Clone(),
		Interpretation: *interp,
		Disposition:    interp.Disposition,
		QCStatus:       interp.QC.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist record: %w", err)
	}
	s.recent.Add(record.ID, record)

	// Step 3: Drop any stale cached report and announce the disposition.
	s.invalidateReport(ctx, record.ID)
	s.publishDisposition(ctx, record)

	s.observeInterpretation(record, time.Since(startTime))
	s.logger.WithFields(logrus.Fields(record.LogFields())).Info("Sample interpretation completed")

	return record, nil
}

// InterpretByAccession pulls the sample run from the LIS and interprets
// it. A positive iteration overrides the one the LIS reports, so a
// re-test can be interpreted before the LIS catches up.
func (s *InterpretationService) InterpretByAccession(ctx context.Context, accession string, iteration int) (*domain.TestRecord, error) {
	accession = strings.TrimSpace(accession)
	if accession == "" {
		return nil, fmt.Errorf("accession is required: %w", domain.ErrInvalidInput)
	}

	run, err := s.lis.FetchSampleRun(ctx, accession)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sample run from LIS: %w", err)
	}
	if iteration > 0 {
		run.Iteration = iteration
	}

	return s.InterpretSample(ctx, run)
}

// GetRecord returns a single record, serving recently touched records
// from the in-process cache.
func (s *InterpretationService) GetRecord(ctx context.Context, id string) (*domain.TestRecord, error) {
	if record, ok := s.recent.Get(id); ok {
		return record, nil
	}

	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recent.Add(record.ID, record)
	return record, nil
}

// GetRecordHistory returns every interpretation recorded for an
// accession, newest first.
func (s *InterpretationService) GetRecordHistory(ctx context.Context, accession string) ([]*domain.TestRecord, error) {
	accession = strings.TrimSpace(accession)
	if accession == "" {
		return nil, fmt.Errorf("accession is required: %w", domain.ErrInvalidInput)
	}
	return s.records.GetByAccession(ctx, accession)
}

// ListRecords returns records matching the filter.
func (s *InterpretationService) ListRecords(ctx context.Context, filter domain.RecordFilter) ([]*domain.TestRecord, error) {
	return s.records.List(ctx, filter)
}

// DeleteRecord removes a record along with its cached report.
func (s *InterpretationService) DeleteRecord(ctx context.Context, id string) error {
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	s.recent.Remove(id)
	s.invalidateReport(ctx, id)

	s.logger.WithField("record_id", id).Info("Record deleted")
	return nil
}

// ApplyOverride records a staff override for a record. When the record
// failed QC the override changes its effective QC status, so the
// disposition is recomputed from the stored classification texts. On
// this path the mere presence of a CNV or RAT finding counts as high
// risk, unlike the primary interpretation path.
func (s *InterpretationService) ApplyOverride(ctx context.Context, recordID, reason, actingUser string) (*domain.TestRecord, error) {
	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	override := &domain.Override{
		RecordID:   record.ID,
		Reason:     reason,
		ActingUser: actingUser,
	}
	if err := s.overrides.Save(ctx, override); err != nil {
		return nil, fmt.Errorf("failed to save override: %w", err)
	}

	updated := *record
	updated.OverrideActive = true
	if record.QCStatus == domain.QC_FAIL {
		texts := make([]string, 0, 4)
		for _, result := range record.Interpretation.MainResults() {
			texts = append(texts, result.Text)
		}
		updated.Disposition = analysis.RecomputeDisposition(texts,
			len(record.Interpretation.CNV), len(record.Interpretation.RAT))
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := s.records.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	s.recent.Add(updated.ID, &updated)
	s.invalidateReport(ctx, updated.ID)
	s.publishDisposition(ctx, &updated)
	s.metrics.OverrideActions.WithLabelValues("apply").Inc()

	s.logger.WithFields(logrus.Fields{
		"record_id":   updated.ID,
		"acting_user": actingUser,
		"disposition": string(updated.Disposition),
	}).Info("Override applied")

	return &updated, nil
}

// RevokeOverride withdraws a record's active override and restores the
// disposition computed at interpretation time.
func (s *InterpretationService) RevokeOverride(ctx context.Context, recordID, revokedBy string) (*domain.TestRecord, error) {
	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	active, err := s.overrides.ActiveForRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active override: %w", err)
	}
	if active == nil {
		return nil, fmt.Errorf("record %s has no active override: %w", recordID, domain.ErrNoOverride)
	}
	if err := s.overrides.Revoke(ctx, active.ID, revokedBy); err != nil {
		return nil, fmt.Errorf("failed to revoke override: %w", err)
	}

	updated := *record
	updated.OverrideActive = false
	updated.Disposition = record.Interpretation.Disposition
	updated.UpdatedAt = time.Now().UTC()

	if err := s.records.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	s.recent.Add(updated.ID, &updated)
	s.invalidateReport(ctx, updated.ID)
	s.publishDisposition(ctx, &updated)
	s.metrics.OverrideActions.WithLabelValues("revoke").Inc()

	s.logger.WithFields(logrus.Fields{
		"record_id":   updated.ID,
		"revoked_by":  revokedBy,
		"disposition": string(updated.Disposition),
	}).Info("Override revoked")

	return &updated, nil
}

// OverrideHistory returns every override ever applied to a record,
// revoked ones included.
func (s *InterpretationService) OverrideHistory(ctx context.Context, recordID string) ([]*domain.Override, error) {
	return s.overrides.ListForRecord(ctx, recordID)
}

// GetReportability reports, per condition, whether the result may be
// released to the clinician. The override store is the authority on
// whether an override is in force.
func (s *InterpretationService) GetReportability(ctx context.Context, recordID string) (map[string]domain.Reportability, error) {
	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	override, err := s.overrides.ActiveForRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active override: %w", err)
	}

	interp := record.Interpretation
	return analysis.AttachReportability(&interp, override != nil), nil
}

// RenderReport produces the JSON report payload for a record, serving a
// cached copy when one is present. The second return reports whether
// the payload came from the cache.
func (s *InterpretationService) RenderReport(ctx context.Context, recordID string) ([]byte, bool, error) {
	cached, err := s.reports.Get(ctx, recordID)
	if err != nil {
		s.logger.WithError(err).WithField("record_id", recordID).Warn("Report cache lookup failed")
	}
	if cached != nil {
		s.metrics.ReportCache.WithLabelValues("hit").Inc()
		return cached.Payload, true, nil
	}
	s.metrics.ReportCache.WithLabelValues("miss").Inc()

	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, false, err
	}
	override, err := s.overrides.ActiveForRecord(ctx, recordID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up active override: %w", err)
	}

	interp := record.Interpretation
	report := &Report{
		RecordID:       record.ID,
		Accession:      record.Accession,
		Iteration:      record.Iteration,
		IterationLabel: domain.IterationLabel(record.Iteration),
		Karyotype:      record.Karyotype,
		Disposition:    record.Disposition,
		QCStatus:       record.QCStatus,
		OverrideActive: override != nil,
		Results:        interp,
		Reportability:  analysis.AttachReportability(&interp, override != nil),
		GeneratedAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, false, fmt.Errorf("failed to render report: %w", err)
	}
	if err := s.reports.Set(ctx, recordID, payload); err != nil {
		s.logger.WithError(err).WithField("record_id", recordID).Warn("Failed to cache report")
	}

	return payload, false, nil
}

// DispositionCounts aggregates record counts per disposition since the
// given time.
func (s *InterpretationService) DispositionCounts(ctx context.Context, since time.Time) ([]domain.DispositionCount, error) {
	return s.records.CountByDisposition(ctx, since)
}

// MonthlyVolumes returns per-month record counts for the trailing
// window. A non-positive window defaults to twelve months.
func (s *InterpretationService) MonthlyVolumes(ctx context.Context, months int) ([]domain.MonthlyVolume, error) {
	if months <= 0 {
		months = 12
	}
	return s.records.MonthlyVolumes(ctx, months)
}

// QCFailureReasons aggregates blocking QC issues since the given time.
func (s *InterpretationService) QCFailureReasons(ctx context.Context, since time.Time) ([]domain.QCReasonCount, error) {
	return s.records.QCFailureReasons(ctx, since)
}

// Thresholds returns the decision-table snapshot in force.
func (s *InterpretationService) Thresholds() domain.ThresholdConfig {
	return s.thresholds.Snapshot()
}

// Panel fetches a sequencing panel definition from the LIS catalog.
func (s *InterpretationService) Panel(ctx context.Context, name string) (*domain.Panel, error) {
	return s.lis.FetchPanel(ctx, name)
}

// FlushRecordCache empties the in-process record cache, forcing
// subsequent reads back to the store.
func (s *InterpretationService) FlushRecordCache() int {
	size := s.recent.Len()
	s.recent.Purge()
	return size
}

func (s *InterpretationService) invalidateReport(ctx context.Context, recordID string) {
	if err := s.reports.Invalidate(ctx, recordID); err != nil {
		s.logger.WithError(err).WithField("record_id", recordID).Warn("Failed to invalidate cached report")
	}
}

func (s *InterpretationService) publishDisposition(ctx context.Context, record *domain.TestRecord) {
	event := domain.DispositionEvent{
		RecordID:    record.ID,
		Accession:   record.Accession,
		Disposition: record.Disposition,
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.events.PublishDisposition(ctx, event); err != nil {
		s.logger.WithError(err).WithField("record_id", record.ID).Warn("Failed to publish disposition event")
	}
}

func (s *InterpretationService) observeInterpretation(record *domain.TestRecord, elapsed time.Duration) {
	s.metrics.Interpretations.WithLabelValues(string(record.Disposition)).Inc()
	if record.QCStatus == domain.QC_FAIL {
		s.metrics.QCFailures.WithLabelValues(record.Interpretation.QC.Advice).Inc()
	}
	s.metrics.Duration.Observe(elapsed.Seconds())
}
