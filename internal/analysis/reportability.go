package analysis

import (
	"strings"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// Release-decision reasons, in rule-priority order.
const (
	ReasonQCFail         = "QC Fail"
	ReasonRelibrary      = "Re-library required"
	ReasonResample       = "Resample required"
	ReasonAmbiguous      = "Ambiguous result"
	ReasonInvalid        = "Invalid result"
	ReasonScreenPositive = "Screen Positive"
	ReasonScreenNegative = "Screen Negative"
	ReasonAvailable      = "Result available"
)

// Reportable decides whether a classification result may be released to
// the clinician, from its gate signal, the sample's QC status, and whether
// a staff override is active. The override neutralizes only the QC-fail
// rule and the invalid rule; a result that needs re-library, resample, or
// adjudication stays unreleasable regardless.
func Reportable(signal domain.GateSignal, qcStatus domain.QCStatus, override bool) domain.Reportability {
	if qcStatus == domain.QC_FAIL && !override {
		return domain.Reportability{Reportable: false, Reason: ReasonQCFail}
	}
	switch signal {
	case domain.SIGNAL_RELIBRARY:
		return domain.Reportability{Reportable: false, Reason: ReasonRelibrary}
	case domain.SIGNAL_RESAMPLE:
		return domain.Reportability{Reportable: false, Reason: ReasonResample}
	case domain.SIGNAL_AMBIGUOUS:
		return domain.Reportability{Reportable: false, Reason: ReasonAmbiguous}
	case domain.SIGNAL_INVALID:
		if !override {
			return domain.Reportability{Reportable: false, Reason: ReasonInvalid}
		}
		return domain.Reportability{Reportable: true, Reason: ReasonAvailable}
	case domain.SIGNAL_POSITIVE:
		return domain.Reportability{Reportable: true, Reason: ReasonScreenPositive}
	case domain.SIGNAL_NEGATIVE:
		return domain.Reportability{Reportable: true, Reason: ReasonScreenNegative}
	default:
		return domain.Reportability{Reportable: true, Reason: ReasonAvailable}
	}
}

// ReportableText decides releasability for a stored result text by the
// keyword-priority table, case-insensitively. Classifier-produced texts
// gate identically through Reportable on their signal; this form exists
// for records whose texts are all that was stored.
func ReportableText(text string, qcStatus domain.QCStatus, override bool) domain.Reportability {
	upper := strings.ToUpper(text)

	if qcStatus == domain.QC_FAIL && !override {
		return domain.Reportability{Reportable: false, Reason: ReasonQCFail}
	}
	switch {
	case strings.Contains(upper, "RE-LIBRARY") || strings.Contains(upper, "RELIBRARY"):
		return domain.Reportability{Reportable: false, Reason: ReasonRelibrary}
	case strings.Contains(upper, "RESAMPLE"):
		return domain.Reportability{Reportable: false, Reason: ReasonResample}
	case strings.Contains(upper, "AMBIGUOUS"):
		return domain.Reportability{Reportable: false, Reason: ReasonAmbiguous}
	case strings.Contains(upper, "INVALID") && !override:
		return domain.Reportability{Reportable: false, Reason: ReasonInvalid}
	case strings.Contains(upper, "POSITIVE"):
		return domain.Reportability{Reportable: true, Reason: ReasonScreenPositive}
	case strings.Contains(upper, "LOW") || strings.Contains(upper, "NEGATIVE"):
		return domain.Reportability{Reportable: true, Reason: ReasonScreenNegative}
	default:
		return domain.Reportability{Reportable: true, Reason: ReasonAvailable}
	}
}
