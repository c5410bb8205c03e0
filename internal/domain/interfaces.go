package domain

import (
	"context"
	"time"
)

// RecordFilter narrows a record listing. Zero values mean "no filter";
// Limit 0 lets the store apply its default page size.
type RecordFilter struct {
	Accession   string
	Disposition Disposition
	Limit       int
	Offset      int
}

// RecordStore persists interpretation records.
type RecordStore interface {
	Create(ctx context.Context, record *TestRecord) error
	GetByID(ctx context.Context, id string) (*TestRecord, error)
	GetByAccession(ctx context.Context, accession string) ([]*TestRecord, error)
	List(ctx context.Context, filter RecordFilter) ([]*TestRecord, error)
	Update(ctx context.Context, record *TestRecord) error
	Delete(ctx context.Context, id string) error
	CountByDisposition(ctx context.Context, since time.Time) ([]DispositionCount, error)
	MonthlyVolumes(ctx context.Context, months int) ([]MonthlyVolume, error)
	QCFailureReasons(ctx context.Context, since time.Time) ([]QCReasonCount, error)
}

// OverrideStore persists staff QC overrides. ActiveForRecord returns
// (nil, nil) when the record has no active override.
type OverrideStore interface {
	Save(ctx context.Context, override *Override) error
	Get(ctx context.Context, id string) (*Override, error)
	ActiveForRecord(ctx context.Context, recordID string) (*Override, error)
	ListForRecord(ctx context.Context, recordID string) ([]*Override, error)
	Revoke(ctx context.Context, id, revokedBy string) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// CachedReport wraps a rendered report payload with its cache envelope.
type CachedReport struct {
	RecordID  string    `json:"record_id"`
	Payload   []byte    `json:"payload"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportCache stores rendered report payloads per record. Get returns
// (nil, nil) on a miss.
type ReportCache interface {
	Get(ctx context.Context, recordID string) (*CachedReport, error)
	Set(ctx context.Context, recordID string, payload []byte) error
	Invalidate(ctx context.Context, recordID string) error
	Close() error
}

// EventPublisher fans disposition events out to dashboard listeners.
type EventPublisher interface {
	PublishDisposition(ctx context.Context, event DispositionEvent) error
	Close() error
}

// Panel describes one sequencing panel exposed by the LIS catalog.
type Panel struct {
	Name        string  `json:"name"`
	MinReads    float64 `json:"min_reads"`
	Description string  `json:"description,omitempty"`
}

// LISGateway fetches sample runs and panel metadata from the upstream
// Laboratory Information System.
type LISGateway interface {
	FetchSampleRun(ctx context.Context, accession string) (*SampleRun, error)
	FetchPanel(ctx context.Context, name string) (*Panel, error)
}

// ThresholdSource supplies a read-only threshold snapshot per evaluation.
type ThresholdSource interface {
	Snapshot() ThresholdConfig
}
