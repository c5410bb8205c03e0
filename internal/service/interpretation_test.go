package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

type fakeRecordStore struct {
	mu         sync.Mutex
	records    map[string]*domain.TestRecord
	failCreate bool
	lastMonths int
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: make(map[string]*domain.TestRecord)}
}

func (f *fakeRecordStore) Create(ctx context.Context, record *domain.TestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("store unavailable")
	}
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeRecordStore) GetByID(ctx context.Context, id string) (*domain.TestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	clone := *record
	return &clone, nil
}

func (f *fakeRecordStore) GetByAccession(ctx context.Context, accession string) ([]*domain.TestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*domain.TestRecord
	for _, record := range f.records {
		if record.Accession == accession {
			clone := *record
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeRecordStore) List(ctx context.Context, filter domain.RecordFilter) ([]*domain.TestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*domain.TestRecord
	for _, record := range f.records {
		if filter.Accession != "" && record.Accession != filter.Accession {
			continue
		}
		if filter.Disposition != "" && record.Disposition != filter.Disposition {
			continue
		}
		clone := *record
		result = append(result, &clone)
	}
	return result, nil
}

func (f *fakeRecordStore) Update(ctx context.Context, record *domain.TestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[record.ID]; !ok {
		return fmt.Errorf("record %s: %w", record.ID, domain.ErrNotFound)
	}
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeRecordStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRecordStore) CountByDisposition(ctx context.Context, since time.Time) ([]domain.DispositionCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.Disposition]int64)
	for _, record := range f.records {
		if record.CreatedAt.Before(since) {
			continue
		}
		counts[record.Disposition]++
	}
	var result []domain.DispositionCount
	for disposition, count := range counts {
		result = append(result, domain.DispositionCount{Disposition: disposition, Count: count})
	}
	return result, nil
}

func (f *fakeRecordStore) MonthlyVolumes(ctx context.Context, months int) ([]domain.MonthlyVolume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMonths = months
	counts := make(map[string]int64)
	for _, record := range f.records {
		counts[record.CreatedAt.Format("2006-01")]++
	}
	var result []domain.MonthlyVolume
	for month, count := range counts {
		result = append(result, domain.MonthlyVolume{Month: month, Count: count})
	}
	return result, nil
}

func (f *fakeRecordStore) QCFailureReasons(ctx context.Context, since time.Time) ([]domain.QCReasonCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int64)
	for _, record := range f.records {
		if record.CreatedAt.Before(since) {
			continue
		}
		for _, issue := range record.Interpretation.QC.HardIssues() {
			counts[issue.Detail]++
		}
	}
	var result []domain.QCReasonCount
	for reason, count := range counts {
		result = append(result, domain.QCReasonCount{Reason: reason, Count: count})
	}
	return result, nil
}

// stored returns the persisted copy of a record, bypassing the service.
func (f *fakeRecordStore) stored(id string) *domain.TestRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id]
}

func (f *fakeRecordStore) drop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
}

type fakeOverrideStore struct {
	mu        sync.Mutex
	overrides map[string]*domain.Override
}

func newFakeOverrideStore() *fakeOverrideStore {
	return &fakeOverrideStore{overrides: make(map[string]*domain.Override)}
}

func (f *fakeOverrideStore) Save(ctx context.Context, override *domain.Override) error {
	if err := override.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if override.RevokedAt == nil {
		for _, existing := range f.overrides {
			if existing.RecordID == override.RecordID && existing.Active() {
				return fmt.Errorf("record %s: %w", override.RecordID, domain.ErrOverrideExists)
			}
		}
	}
	if override.ID == "" {
		override.ID = uuid.New().String()
	}
	if override.CreatedAt.IsZero() {
		override.CreatedAt = time.Now()
	}
	clone := *override
	f.overrides[override.ID] = &clone
	return nil
}

func (f *fakeOverrideStore) Get(ctx context.Context, id string) (*domain.Override, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	override, ok := f.overrides[id]
	if !ok {
		return nil, fmt.Errorf("override %s: %w", id, domain.ErrNotFound)
	}
	clone := *override
	return &clone, nil
}

func (f *fakeOverrideStore) ActiveForRecord(ctx context.Context, recordID string) (*domain.Override, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, override := range f.overrides {
		if override.RecordID == recordID && override.Active() {
			clone := *override
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeOverrideStore) ListForRecord(ctx context.Context, recordID string) ([]*domain.Override, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*domain.Override
	for _, override := range f.overrides {
		if override.RecordID == recordID {
			clone := *override
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeOverrideStore) Revoke(ctx context.Context, id, revokedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	override, ok := f.overrides[id]
	if !ok || !override.Active() {
		return fmt.Errorf("override %s: %w", id, domain.ErrNoOverride)
	}
	now := time.Now()
	override.RevokedAt = &now
	override.RevokedBy = revokedBy
	return nil
}

func (f *fakeOverrideStore) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.overrides)), nil
}

func (f *fakeOverrideStore) Close() error { return nil }

type fakeReportCache struct {
	mu            sync.Mutex
	entries       map[string]*domain.CachedReport
	invalidations int
}

func newFakeReportCache() *fakeReportCache {
	return &fakeReportCache{entries: make(map[string]*domain.CachedReport)}
}

func (f *fakeReportCache) Get(ctx context.Context, recordID string) (*domain.CachedReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[recordID], nil
}

func (f *fakeReportCache) Set(ctx context.Context, recordID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.entries[recordID] = &domain.CachedReport{
		RecordID:  recordID,
		Payload:   payload,
		CachedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	return nil
}

func (f *fakeReportCache) Invalidate(ctx context.Context, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, recordID)
	f.invalidations++
	return nil
}

func (f *fakeReportCache) Close() error { return nil }

type fakeEventBus struct {
	mu     sync.Mutex
	events []domain.DispositionEvent
}

func (f *fakeEventBus) PublishDisposition(ctx context.Context, event domain.DispositionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventBus) Close() error { return nil }

func (f *fakeEventBus) published() []domain.DispositionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DispositionEvent(nil), f.events...)
}

type fakeLIS struct {
	runs   map[string]*domain.SampleRun
	panels map[string]*domain.Panel
}

func newFakeLIS() *fakeLIS {
	return &fakeLIS{
		runs:   make(map[string]*domain.SampleRun),
		panels: make(map[string]*domain.Panel),
	}
}

func (f *fakeLIS) FetchSampleRun(ctx context.Context, accession string) (*domain.SampleRun, error) {
	run, ok := f.runs[accession]
	if !ok {
		return nil, fmt.Errorf("sample %s: %w", accession, domain.ErrNotFound)
	}
	clone := *run
	clone.ZScores = run.ZScores.Clone()
	return &clone, nil
}

func (f *fakeLIS) FetchPanel(ctx context.Context, name string) (*domain.Panel, error) {
	panel, ok := f.panels[name]
	if !ok {
		return nil, fmt.Errorf("panel %s: %w", name, domain.ErrNotFound)
	}
	clone := *panel
	return &clone, nil
}

type staticThresholds struct{}

func (staticThresholds) Snapshot() domain.ThresholdConfig {
	return domain.DefaultThresholdConfig()
}

type serviceFixture struct {
	service   *InterpretationService
	records   *fakeRecordStore
	overrides *fakeOverrideStore
	reports   *fakeReportCache
	events    *fakeEventBus
	lis       *fakeLIS
	metrics   *Metrics
}

func newTestService(t *testing.T) *serviceFixture {
	t.Helper()

	logger, _ := test.NewNullLogger()
	fixture := &serviceFixture{
		records:   newFakeRecordStore(),
		overrides: newFakeOverrideStore(),
		reports:   newFakeReportCache(),
		events:    &fakeEventBus{},
		lis:       newFakeLIS(),
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}

	service, err := NewInterpretationService(
		logger,
		fixture.records,
		fixture.overrides,
		fixture.reports,
		fixture.events,
		fixture.lis,
		staticThresholds{},
		fixture.metrics,
	)
	require.NoError(t, err)
	fixture.service = service
	return fixture
}

// negativeRun is a clean first-pass sample: every metric inside limits,
// every Z-score unremarkable.
func negativeRun() *domain.SampleRun {
	return &domain.SampleRun{
		Accession: "NRIS-2024-000117",
		Iteration: 1,
		Karyotype: domain.KARYOTYPE_XX,
		Metrics: domain.SampleMetrics{
			Panel:         "standard",
			ReadsMillions: 6.5,
			FetalFraction: 9.0,
			GCContent:     41.0,
			QualityScore:  1.2,
			UniqueRate:    82.0,
			ErrorRate:     0.2,
		},
		ZScores: domain.ZScoreSet{"21": 0.4, "18": -0.2, "13": 0.1, "XX": 0.5, "XY": 0.0},
	}
}

// lowFFRun fails QC on fetal fraction, which also invalidates the SCA
// call so its stored text carries a resample directive.
func lowFFRun() *domain.SampleRun {
	run := negativeRun()
	run.Metrics.FetalFraction = 2.0
	return run
}

// badGCRun fails QC on GC content while every classification text stays
// negative.
func badGCRun() *domain.SampleRun {
	run := negativeRun()
	run.Metrics.GCContent = 50.0
	return run
}

func TestInterpretSample(t *testing.T) {
	fixture := newTestService(t)

	record, err := fixture.service.InterpretSample(context.Background(), negativeRun())
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "NRIS-2024-000117", record.Accession)
	assert.Equal(t, domain.DISPOSITION_NEGATIVE, record.Disposition)
	assert.Equal(t, domain.QC_PASS, record.QCStatus)
	assert.Equal(t, "Low Risk", record.Interpretation.Trisomy21.Text)
	assert.Equal(t, "Negative (XX)", record.Interpretation.SCA.Text)
	assert.False(t, record.OverrideActive)
	assert.False(t, record.CreatedAt.IsZero())

	assert.NotNil(t, fixture.records.stored(record.ID))

	events := fixture.events.published()
	require.Len(t, events, 1)
	assert.Equal(t, record.ID, events[0].RecordID)
	assert.Equal(t, domain.DISPOSITION_NEGATIVE, events[0].Disposition)
	assert.False(t, events[0].OccurredAt.IsZero())

	count := testutil.ToFloat64(fixture.metrics.Interpretations.WithLabelValues("NEGATIVE"))
	assert.Equal(t, 1.0, count)
}

func TestInterpretSample_QCFail(t *testing.T) {
	fixture := newTestService(t)

	record, err := fixture.service.InterpretSample(context.Background(), badGCRun())
	require.NoError(t, err)

	assert.Equal(t, domain.DISPOSITION_QC_FAIL, record.Disposition)
	assert.Equal(t, domain.QC_FAIL, record.QCStatus)
	assert.Equal(t, "Re-library", record.Interpretation.QC.Advice)

	failures := testutil.ToFloat64(fixture.metrics.QCFailures.WithLabelValues("Re-library"))
	assert.Equal(t, 1.0, failures)
}

func TestInterpretSample_Positive(t *testing.T) {
	fixture := newTestService(t)

	run := negativeRun()
	run.ZScores["21"] = 7.0
	record, err := fixture.service.InterpretSample(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, domain.DISPOSITION_POSITIVE, record.Disposition)
	assert.Equal(t, "T21 Positive (Z=7.00)", record.Interpretation.Trisomy21.Text)
	assert.True(t, record.Interpretation.PositiveOrHighRisk)
}

func TestInterpretSample_InvalidInput(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	_, err := fixture.service.InterpretSample(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	run := negativeRun()
	run.Accession = "   "
	_, err = fixture.service.InterpretSample(ctx, run)
	require.Error(t, err)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "accession", verr.Field)

	run = negativeRun()
	run.Iteration = 0
	_, err = fixture.service.InterpretSample(ctx, run)
	assert.ErrorIs(t, err, domain.ErrInvalidIteration)
}

func TestInterpretSample_StoreError(t *testing.T) {
	fixture := newTestService(t)
	fixture.records.failCreate = true

	_, err := fixture.service.InterpretSample(context.Background(), negativeRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist record")
	assert.Empty(t, fixture.events.published())
}

func TestInterpretByAccession(t *testing.T) {
	fixture := newTestService(t)
	fixture.lis.runs["NRIS-2024-000117"] = negativeRun()

	record, err := fixture.service.InterpretByAccession(context.Background(), "NRIS-2024-000117", 2)
	require.NoError(t, err)

	assert.Equal(t, "NRIS-2024-000117", record.Accession)
	assert.Equal(t, 2, record.Iteration)
	assert.Equal(t, 2, record.Interpretation.Iteration)
}

func TestInterpretByAccession_Unknown(t *testing.T) {
	fixture := newTestService(t)

	_, err := fixture.service.InterpretByAccession(context.Background(), "NRIS-2024-999999", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "failed to fetch sample run from LIS")

	_, err = fixture.service.InterpretByAccession(context.Background(), "  ", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetRecord_ServesFromCache(t *testing.T) {
	fixture := newTestService(t)

	record, err := fixture.service.InterpretSample(context.Background(), negativeRun())
	require.NoError(t, err)

	// Remove the stored copy; the in-process cache still has it.
	fixture.records.drop(record.ID)

	cached, err := fixture.service.GetRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, cached.ID)

	flushed := fixture.service.FlushRecordCache()
	assert.Equal(t, 1, flushed)

	_, err = fixture.service.GetRecord(context.Background(), record.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetRecordHistory(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	first, err := fixture.service.InterpretSample(ctx, negativeRun())
	require.NoError(t, err)

	retest := negativeRun()
	retest.Iteration = 2
	_, err = fixture.service.InterpretSample(ctx, retest)
	require.NoError(t, err)

	history, err := fixture.service.GetRecordHistory(ctx, first.Accession)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = fixture.service.GetRecordHistory(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplyOverride_RecomputesDisposition(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, lowFFRun())
	require.NoError(t, err)
	require.Equal(t, domain.DISPOSITION_QC_FAIL, record.Disposition)
	require.Contains(t, record.Interpretation.SCA.Text, "Resample")

	updated, err := fixture.service.ApplyOverride(ctx, record.ID, "metrics re-reviewed by lab director", "dr.hansen")
	require.NoError(t, err)

	// The resample directive in the stored SCA text drives the recompute.
	assert.Equal(t, domain.DISPOSITION_HIGH_RISK, updated.Disposition)
	assert.True(t, updated.OverrideActive)

	stored := fixture.records.stored(record.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.DISPOSITION_HIGH_RISK, stored.Disposition)
	assert.True(t, stored.OverrideActive)

	active, err := fixture.overrides.ActiveForRecord(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "dr.hansen", active.ActingUser)

	events := fixture.events.published()
	require.Len(t, events, 2)
	assert.Equal(t, domain.DISPOSITION_HIGH_RISK, events[1].Disposition)

	applied := testutil.ToFloat64(fixture.metrics.OverrideActions.WithLabelValues("apply"))
	assert.Equal(t, 1.0, applied)
}

func TestApplyOverride_NegativeTexts(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, badGCRun())
	require.NoError(t, err)
	require.Equal(t, domain.DISPOSITION_QC_FAIL, record.Disposition)

	updated, err := fixture.service.ApplyOverride(ctx, record.ID, "GC excursion traced to reagent lot", "dr.osei")
	require.NoError(t, err)

	// Every stored text is negative, so the override reveals a negative.
	assert.Equal(t, domain.DISPOSITION_NEGATIVE, updated.Disposition)
}

func TestApplyOverride_QCPassKeepsDisposition(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	run := negativeRun()
	run.CNVFindings = []domain.CNVFinding{
		{Chromosome: "7", Region: "7q11.23", SizeMb: 1.5, RatioPct: 2.0},
	}
	record, err := fixture.service.InterpretSample(ctx, run)
	require.NoError(t, err)
	require.Equal(t, domain.DISPOSITION_NEGATIVE, record.Disposition)
	require.Equal(t, domain.QC_PASS, record.QCStatus)

	// Effective QC did not change, so no recompute happens even though
	// the recompute path would count the CNV finding as high risk.
	updated, err := fixture.service.ApplyOverride(ctx, record.ID, "documented for audit", "dr.hansen")
	require.NoError(t, err)
	assert.Equal(t, domain.DISPOSITION_NEGATIVE, updated.Disposition)
	assert.True(t, updated.OverrideActive)
}

func TestApplyOverride_SecondRejected(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, badGCRun())
	require.NoError(t, err)

	_, err = fixture.service.ApplyOverride(ctx, record.ID, "first review", "dr.hansen")
	require.NoError(t, err)

	_, err = fixture.service.ApplyOverride(ctx, record.ID, "second review", "dr.osei")
	assert.ErrorIs(t, err, domain.ErrOverrideExists)
}

func TestApplyOverride_ValidatesInput(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, badGCRun())
	require.NoError(t, err)

	_, err = fixture.service.ApplyOverride(ctx, record.ID, "", "dr.hansen")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)

	_, err = fixture.service.ApplyOverride(ctx, "unknown-record", "reason", "dr.hansen")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevokeOverride_RestoresDisposition(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, lowFFRun())
	require.NoError(t, err)

	_, err = fixture.service.ApplyOverride(ctx, record.ID, "reviewed", "dr.hansen")
	require.NoError(t, err)

	restored, err := fixture.service.RevokeOverride(ctx, record.ID, "dr.osei")
	require.NoError(t, err)

	assert.Equal(t, domain.DISPOSITION_QC_FAIL, restored.Disposition)
	assert.False(t, restored.OverrideActive)

	active, err := fixture.overrides.ActiveForRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	history, err := fixture.service.OverrideHistory(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "dr.osei", history[0].RevokedBy)

	revoked := testutil.ToFloat64(fixture.metrics.OverrideActions.WithLabelValues("revoke"))
	assert.Equal(t, 1.0, revoked)
}

func TestRevokeOverride_NoActive(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, badGCRun())
	require.NoError(t, err)

	_, err = fixture.service.RevokeOverride(ctx, record.ID, "dr.osei")
	assert.ErrorIs(t, err, domain.ErrNoOverride)
}

func TestOverrideRoundTrip(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, lowFFRun())
	require.NoError(t, err)
	original := record.Disposition

	_, err = fixture.service.ApplyOverride(ctx, record.ID, "reviewed", "dr.hansen")
	require.NoError(t, err)
	restored, err := fixture.service.RevokeOverride(ctx, record.ID, "dr.hansen")
	require.NoError(t, err)
	assert.Equal(t, original, restored.Disposition)

	// A fresh override may follow a revocation.
	again, err := fixture.service.ApplyOverride(ctx, record.ID, "re-reviewed", "dr.osei")
	require.NoError(t, err)
	assert.True(t, again.OverrideActive)
}

func TestGetReportability(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, lowFFRun())
	require.NoError(t, err)

	decisions, err := fixture.service.GetReportability(ctx, record.ID)
	require.NoError(t, err)
	require.Contains(t, decisions, "trisomy_21")
	assert.False(t, decisions["trisomy_21"].Reportable)
	assert.Equal(t, "QC Fail", decisions["trisomy_21"].Reason)

	_, err = fixture.service.ApplyOverride(ctx, record.ID, "reviewed", "dr.hansen")
	require.NoError(t, err)

	decisions, err = fixture.service.GetReportability(ctx, record.ID)
	require.NoError(t, err)

	// The override rescues the plain QC-fail gate on the trisomy texts
	// but not the resample directive in the SCA text.
	assert.True(t, decisions["trisomy_21"].Reportable)
	assert.Equal(t, "Screen Negative", decisions["trisomy_21"].Reason)
	assert.False(t, decisions["sca"].Reportable)
	assert.Equal(t, "Resample required", decisions["sca"].Reason)
}

func TestRenderReport_CachesPayload(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, negativeRun())
	require.NoError(t, err)

	payload, fromCache, err := fixture.service.RenderReport(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, fromCache)

	var report Report
	require.NoError(t, json.Unmarshal(payload, &report))
	assert.Equal(t, record.ID, report.RecordID)
	assert.Equal(t, "NRIS-2024-000117", report.Accession)
	assert.Equal(t, domain.DISPOSITION_NEGATIVE, report.Disposition)
	assert.False(t, report.OverrideActive)
	assert.True(t, report.Reportability["trisomy_21"].Reportable)

	cachedPayload, fromCache, err := fixture.service.RenderReport(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, payload, cachedPayload)

	hits := testutil.ToFloat64(fixture.metrics.ReportCache.WithLabelValues("hit"))
	assert.Equal(t, 1.0, hits)
}

func TestRenderReport_InvalidatedByOverride(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, badGCRun())
	require.NoError(t, err)

	_, _, err = fixture.service.RenderReport(ctx, record.ID)
	require.NoError(t, err)

	_, err = fixture.service.ApplyOverride(ctx, record.ID, "reviewed", "dr.hansen")
	require.NoError(t, err)

	payload, fromCache, err := fixture.service.RenderReport(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, fromCache)

	var report Report
	require.NoError(t, json.Unmarshal(payload, &report))
	assert.True(t, report.OverrideActive)
	assert.Equal(t, domain.DISPOSITION_NEGATIVE, report.Disposition)
}

func TestDeleteRecord(t *testing.T) {
	fixture := newTestService(t)
	ctx := context.Background()

	record, err := fixture.service.InterpretSample(ctx, negativeRun())
	require.NoError(t, err)

	_, _, err = fixture.service.RenderReport(ctx, record.ID)
	require.NoError(t, err)

	require.NoError(t, fixture.service.DeleteRecord(ctx, record.ID))

	_, err = fixture.service.GetRecord(ctx, record.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cached, err := fixture.reports.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestMonthlyVolumes_DefaultWindow(t *testing.T) {
	fixture := newTestService(t)

	_, err := fixture.service.MonthlyVolumes(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 12, fixture.records.lastMonths)
}

func TestThresholdsSnapshot(t *testing.T) {
	fixture := newTestService(t)

	cfg := fixture.service.Thresholds()
	assert.InDelta(t, 3.5, cfg.QCLimits().FFMin, 1e-9)
	assert.Contains(t, cfg.Panels(), "standard")
}

func TestPanelPassthrough(t *testing.T) {
	fixture := newTestService(t)
	fixture.lis.panels["plus"] = &domain.Panel{Name: "plus", MinReads: 5.0}

	panel, err := fixture.service.Panel(context.Background(), "plus")
	require.NoError(t, err)
	assert.Equal(t, 5.0, panel.MinReads)

	_, err = fixture.service.Panel(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
