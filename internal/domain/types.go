// Package domain contains the core entities and value objects for
// Non-Invasive Prenatal Testing (NIPT) result interpretation: sequencing
// QC metrics, per-condition risk classifications, and the aggregate
// sample disposition derived from them.
package domain

import "strings"

// RiskTier is the coarse risk level attached to every classification result.
type RiskTier string

const (
	RISK_LOW      RiskTier = "LOW"
	RISK_HIGH     RiskTier = "HIGH"
	RISK_POSITIVE RiskTier = "POSITIVE"
	RISK_INVALID  RiskTier = "INVALID"
	RISK_UNKNOWN  RiskTier = "UNKNOWN"
)

// IsValid reports whether the tier is one of the recognized levels.
func (r RiskTier) IsValid() bool {
	switch r {
	case RISK_LOW, RISK_HIGH, RISK_POSITIVE, RISK_INVALID, RISK_UNKNOWN:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk tier.
func (r RiskTier) String() string {
	return string(r)
}

// Elevated reports whether the tier contributes to the high-risk side of a
// sample's aggregate disposition.
func (r RiskTier) Elevated() bool {
	return r == RISK_HIGH || r == RISK_POSITIVE
}

// LogFields describes the tier for structured logs.
func (r RiskTier) LogFields() map[string]any {
	return map[string]any{
		"risk_tier": string(r),
		"elevated":  r.Elevated(),
		"is_valid":  r.IsValid(),
	}
}

// QCStatus is the outcome of sequencing quality control for one sample.
type QCStatus string

const (
	QC_PASS    QCStatus = "PASS"
	QC_WARNING QCStatus = "WARNING"
	QC_FAIL    QCStatus = "FAIL"
)

// IsValid reports whether the status is one of the recognized outcomes.
func (s QCStatus) IsValid() bool {
	switch s {
	case QC_PASS, QC_WARNING, QC_FAIL:
		return true
	default:
		return false
	}
}

// String returns the string representation of the QC status.
func (s QCStatus) String() string {
	return string(s)
}

// IssueSeverity tags a QC issue as blocking (HARD) or advisory (SOFT).
// Any HARD issue forces QC_FAIL; SOFT issues alone yield QC_WARNING.
type IssueSeverity string

const (
	ISSUE_HARD IssueSeverity = "HARD"
	ISSUE_SOFT IssueSeverity = "SOFT"
)

// String returns the string representation of the severity.
func (s IssueSeverity) String() string {
	return string(s)
}

// Disposition is the aggregate outcome of a sample interpretation,
// folded from the per-condition risk tiers and the QC status. It is
// always recomputable from the stored classification results.
type Disposition string

const (
	DISPOSITION_NEGATIVE  Disposition = "NEGATIVE"
	DISPOSITION_HIGH_RISK Disposition = "HIGH_RISK"
	DISPOSITION_POSITIVE  Disposition = "POSITIVE"
	DISPOSITION_QC_FAIL   Disposition = "INVALID_QC_FAIL"
)

// IsValid reports whether the disposition is one of the recognized outcomes.
func (d Disposition) IsValid() bool {
	switch d {
	case DISPOSITION_NEGATIVE, DISPOSITION_HIGH_RISK, DISPOSITION_POSITIVE, DISPOSITION_QC_FAIL:
		return true
	default:
		return false
	}
}

// String returns the string representation of the disposition.
func (d Disposition) String() string {
	return string(d)
}

// ClinicalSummary returns a human-readable description for clinical
// reporting and patient communication.
func (d Disposition) ClinicalSummary() string {
	switch d {
	case DISPOSITION_NEGATIVE:
		return "Negative - No aneuploidy signal detected"
	case DISPOSITION_HIGH_RISK:
		return "High Risk - Follow-up testing recommended"
	case DISPOSITION_POSITIVE:
		return "Positive - Aneuploidy signal detected, confirmatory testing required"
	case DISPOSITION_QC_FAIL:
		return "Invalid - Sequencing quality control failed"
	default:
		return "Unknown disposition"
	}
}

// LogFields returns the disposition in log form.
func (d Disposition) LogFields() map[string]any {
	return map[string]any{
		"disposition":      string(d),
		"clinical_summary": d.ClinicalSummary(),
		"is_valid":         d.IsValid(),
	}
}

// Karyotype is the sex-chromosome karyotype call reported by the
// sequencing pipeline for SCA classification. The mosaic forms carry a
// "+XY" suffix for samples with a detectable Y component.
type Karyotype string

const (
	KARYOTYPE_XX     Karyotype = "XX"
	KARYOTYPE_XY     Karyotype = "XY"
	KARYOTYPE_XO     Karyotype = "XO"
	KARYOTYPE_XXX    Karyotype = "XXX"
	KARYOTYPE_XXY    Karyotype = "XXY"
	KARYOTYPE_XYY    Karyotype = "XYY"
	KARYOTYPE_XXX_XY Karyotype = "XXX+XY"
	KARYOTYPE_XO_XY  Karyotype = "XO+XY"
)

// IsValid reports whether the karyotype is one of the recognized calls.
func (k Karyotype) IsValid() bool {
	switch k {
	case KARYOTYPE_XX, KARYOTYPE_XY, KARYOTYPE_XO, KARYOTYPE_XXX,
		KARYOTYPE_XXY, KARYOTYPE_XYY, KARYOTYPE_XXX_XY, KARYOTYPE_XO_XY:
		return true
	default:
		return false
	}
}

// String returns the string representation of the karyotype.
func (k Karyotype) String() string {
	return string(k)
}

// ConditionFamily identifies which rule family produced a classification.
type ConditionFamily string

const (
	CONDITION_TRISOMY ConditionFamily = "TRISOMY"
	CONDITION_SCA     ConditionFamily = "SCA"
	CONDITION_RAT     ConditionFamily = "RAT"
	CONDITION_CNV     ConditionFamily = "CNV"
)

// IsValid reports whether the family is one of the recognized families.
func (c ConditionFamily) IsValid() bool {
	switch c {
	case CONDITION_TRISOMY, CONDITION_SCA, CONDITION_RAT, CONDITION_CNV:
		return true
	default:
		return false
	}
}

// String returns the string representation of the condition family.
func (c ConditionFamily) String() string {
	return string(c)
}

// GateSignal is the release-control category of a classification result.
// Each classifier emits the signal alongside its result text; the signal of
// any free text is recoverable with ParseGateSignal, and the two always
// agree for classifier-produced results.
type GateSignal string

const (
	SIGNAL_NONE      GateSignal = "NONE"
	SIGNAL_RELIBRARY GateSignal = "RELIBRARY"
	SIGNAL_RESAMPLE  GateSignal = "RESAMPLE"
	SIGNAL_AMBIGUOUS GateSignal = "AMBIGUOUS"
	SIGNAL_INVALID   GateSignal = "INVALID"
	SIGNAL_POSITIVE  GateSignal = "POSITIVE"
	SIGNAL_NEGATIVE  GateSignal = "NEGATIVE"
)

// IsValid reports whether the signal is one of the recognized categories.
func (g GateSignal) IsValid() bool {
	switch g {
	case SIGNAL_NONE, SIGNAL_RELIBRARY, SIGNAL_RESAMPLE, SIGNAL_AMBIGUOUS,
		SIGNAL_INVALID, SIGNAL_POSITIVE, SIGNAL_NEGATIVE:
		return true
	default:
		return false
	}
}

// String returns the string representation of the gate signal.
func (g GateSignal) String() string {
	return string(g)
}

// ParseGateSignal derives the gate signal from a result text by
// case-insensitive keyword scan. Keywords are checked in release-priority
// order, so a text carrying both a remediation keyword and a risk keyword
// maps to the remediation signal.
func ParseGateSignal(text string) GateSignal {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "RE-LIBRARY") || strings.Contains(upper, "RELIBRARY"):
		return SIGNAL_RELIBRARY
	case strings.Contains(upper, "RESAMPLE"):
		return SIGNAL_RESAMPLE
	case strings.Contains(upper, "AMBIGUOUS"):
		return SIGNAL_AMBIGUOUS
	case strings.Contains(upper, "INVALID"):
		return SIGNAL_INVALID
	case strings.Contains(upper, "POSITIVE"):
		return SIGNAL_POSITIVE
	case strings.Contains(upper, "LOW") || strings.Contains(upper, "NEGATIVE"):
		return SIGNAL_NEGATIVE
	default:
		return SIGNAL_NONE
	}
}
