package analysis

import (
	"fmt"
	"strings"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// Remediation advice strings attached to QC failures. Advice is
// deduplicated across rules, so two fetal-fraction violations still yield
// a single "Resample".
const (
	AdviceResequencing = "Resequencing"
	AdviceResample     = "Resample"
	AdviceRelibrary    = "Re-library"
	AdviceNone         = "None"
)

// EvaluateQC classifies a sample's sequencing metrics against the
// configured limits. Every rule is checked independently; any HARD
// violation forces QC_FAIL, SOFT violations alone yield QC_WARNING, and a
// clean sample passes. positiveOrHighRisk selects the quality-score
// ceiling: screen-positive samples tolerate the higher one.
func EvaluateQC(cfg domain.ThresholdConfig, metrics domain.SampleMetrics, positiveOrHighRisk bool) domain.QCOutcome {
	limits := cfg.QCLimits()

	var issues []domain.QCIssue
	var advice []string
	hard := false
	soft := false

	addHard := func(detail, remedy string) {
		issues = append(issues, domain.QCIssue{Severity: domain.ISSUE_HARD, Detail: detail})
		hard = true
		for _, a := range advice {
			if a == remedy {
				return
			}
		}
		advice = append(advice, remedy)
	}
	addSoft := func(detail string) {
		issues = append(issues, domain.QCIssue{Severity: domain.ISSUE_SOFT, Detail: detail})
		soft = true
	}

	minReads := cfg.PanelMinReads(metrics.Panel)
	if metrics.ReadsMillions < minReads {
		addHard(fmt.Sprintf("read count %.2fM under panel %q minimum %.2fM",
			metrics.ReadsMillions, metrics.Panel, minReads), AdviceResequencing)
	}
	if metrics.FetalFraction < limits.FFMin {
		addHard(fmt.Sprintf("fetal fraction %.2f%% under minimum %.2f%%",
			metrics.FetalFraction, limits.FFMin), AdviceResample)
	}
	if metrics.FetalFraction > limits.FFMax {
		addHard(fmt.Sprintf("fetal fraction %.2f%% over maximum %.2f%%",
			metrics.FetalFraction, limits.FFMax), AdviceResample)
	}
	if metrics.GCContent < limits.GCMin || metrics.GCContent > limits.GCMax {
		addHard(fmt.Sprintf("GC content %.2f%% outside range [%.2f%%, %.2f%%]",
			metrics.GCContent, limits.GCMin, limits.GCMax), AdviceRelibrary)
	}
	qualityMax := limits.QualityMaxNegative
	if positiveOrHighRisk {
		qualityMax = limits.QualityMaxPositive
	}
	if metrics.QualityScore >= qualityMax {
		addHard(fmt.Sprintf("quality score %.2f at or over ceiling %.2f",
			metrics.QualityScore, qualityMax), AdviceRelibrary)
	}
	if metrics.UniqueRate < limits.UniqueRateMin {
		addSoft(fmt.Sprintf("unique-read rate %.2f%% under minimum %.2f%%",
			metrics.UniqueRate, limits.UniqueRateMin))
	}
	if metrics.ErrorRate > limits.ErrorRateMax {
		addSoft(fmt.Sprintf("error rate %.3f%% over maximum %.3f%%",
			metrics.ErrorRate, limits.ErrorRateMax))
	}

	status := domain.QC_PASS
	switch {
	case hard:
		status = domain.QC_FAIL
	case soft:
		status = domain.QC_WARNING
	}

	adviceText := AdviceNone
	if len(advice) > 0 {
		adviceText = strings.Join(advice, "; ")
	}

	return domain.QCOutcome{Status: status, Issues: issues, Advice: adviceText}
}
