package domain

import (
	"fmt"
	"strings"
	"time"
)

// SampleRun bundles everything the interpreter needs for one run of one
// sample: identity, iteration, metrics, Z-scores, and the reported
// findings. Runs arrive either from the LIS feed or from direct entry.
type SampleRun struct {
	Accession   string        `json:"accession"`
	Iteration   int           `json:"iteration"`
	Karyotype   Karyotype     `json:"karyotype"`
	Metrics     SampleMetrics `json:"metrics"`
	ZScores     ZScoreSet     `json:"z_scores"`
	CNVFindings []CNVFinding  `json:"cnv_findings,omitempty"`
	RATFindings []RATFinding  `json:"rat_findings,omitempty"`
}

// Validate checks the run for structural problems before interpretation.
// Numeric plausibility is left to QC; missing Z-scores are legal and read
// as NaN during classification.
func (r *SampleRun) Validate() error {
	if strings.TrimSpace(r.Accession) == "" {
		return NewValidationError("accession", "accession is required", r.Accession)
	}
	if r.Iteration < 1 {
		return fmt.Errorf("%w: iteration %d", ErrInvalidIteration, r.Iteration)
	}
	if err := r.Metrics.Validate(); err != nil {
		return err
	}
	for i := range r.CNVFindings {
		if err := r.CNVFindings[i].Validate(); err != nil {
			return fmt.Errorf("cnv finding %d: %w", i, err)
		}
	}
	for i := range r.RATFindings {
		if err := r.RATFindings[i].Validate(); err != nil {
			return fmt.Errorf("rat finding %d: %w", i, err)
		}
	}
	return nil
}

// TestRecord is one persisted interpretation of a sample run.
// Interpretation holds the results exactly as computed; Disposition is the
// effective disposition, which diverges from the computed one only while a
// QC override is active.
type TestRecord struct {
	ID             string         `json:"id"`
	Accession      string         `json:"accession"`
	Iteration      int            `json:"iteration"`
	Karyotype      Karyotype      `json:"karyotype"`
	Metrics        SampleMetrics  `json:"metrics"`
	ZScores        ZScoreSet      `json:"z_scores"`
	Interpretation Interpretation `json:"interpretation"`
	Disposition    Disposition    `json:"disposition"`
	QCStatus       QCStatus       `json:"qc_status"`
	OverrideActive bool           `json:"override_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// LogFields flattens the record's identity for logrus.WithFields.
func (r *TestRecord) LogFields() map[string]any {
	return map[string]any{
		"record_id":       r.ID,
		"accession":       r.Accession,
		"iteration":       r.Iteration,
		"disposition":     string(r.Disposition),
		"qc_status":       string(r.QCStatus),
		"override_active": r.OverrideActive,
	}
}

// Override is a staff action marking a QC-failed record as clinically
// acceptable, with recorded justification. Revocation keeps the row for
// the audit trail.
type Override struct {
	ID         string     `json:"id"`
	RecordID   string     `json:"record_id"`
	Reason     string     `json:"reason"`
	ActingUser string     `json:"acting_user"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	RevokedBy  string     `json:"revoked_by,omitempty"`
}

// Active reports whether the override is still in force.
func (o *Override) Active() bool {
	return o.RevokedAt == nil
}

// Validate checks the override for structural problems.
func (o *Override) Validate() error {
	if strings.TrimSpace(o.RecordID) == "" {
		return NewValidationError("record_id", "record id is required", o.RecordID)
	}
	if strings.TrimSpace(o.Reason) == "" {
		return NewValidationError("reason", "an override requires a recorded justification", o.Reason)
	}
	if strings.TrimSpace(o.ActingUser) == "" {
		return NewValidationError("acting_user", "acting user is required", o.ActingUser)
	}
	return nil
}

// DispositionCount is one row of the dispositions analytics aggregate.
type DispositionCount struct {
	Disposition Disposition `json:"disposition"`
	Count       int64       `json:"count"`
}

// MonthlyVolume is one row of the monthly interpretation volume aggregate.
// Month is formatted "2006-01".
type MonthlyVolume struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// QCReasonCount is one row of the QC failure reason aggregate. Reason is
// the issue detail text as stored on the interpretation.
type QCReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// DispositionEvent is published on the event bus whenever a record's
// effective disposition is set or changes.
type DispositionEvent struct {
	RecordID    string      `json:"record_id"`
	Accession   string      `json:"accession"`
	Disposition Disposition `json:"disposition"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
