// Package analysis implements the NIPT rule engine: quality-control
// evaluation, the four per-condition classifiers (common trisomies, sex
// chromosome aneuploidies, rare autosomal trisomies, copy-number
// variations), the reportability gate, and the sample interpreter that
// folds their outputs into one disposition.
//
// Everything in this package is a pure function over immutable inputs.
// Classifiers never return errors: invalid numeric input maps to the
// UNKNOWN tier and sparse configuration falls back to the default decision
// tables, so concurrent evaluation across samples needs no coordination.
package analysis

import (
	"strconv"
	"strings"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// Chromosomes carrying the common trisomies, in reporting order.
var trisomyChromosomes = [3]string{"21", "18", "13"}

// Interpret runs the full interpretation of one sample run: the three
// common-trisomy classifications, the SCA classification, and one CNV/RAT
// classification per reported finding, then folds the tiers into the
// aggregate disposition.
//
// The polarity fed into QC is derived from the classifications themselves:
// a sample is treated as screen-positive-or-high-risk if any main result is
// POSITIVE or HIGH, or any CNV/RAT finding classified HIGH or POSITIVE.
// A QC hard failure forces the INVALID_QC_FAIL disposition but never
// suppresses the per-finding classifications, so a later staff override can
// reveal them without re-running analysis.
func Interpret(cfg domain.ThresholdConfig, run *domain.SampleRun) *domain.Interpretation {
	interp := &domain.Interpretation{Iteration: run.Iteration}

	mains := [3]domain.ClassificationResult{}
	for i, chromosome := range trisomyChromosomes {
		mains[i] = ClassifyTrisomy(cfg, chromosome, run.ZScores.Get(chromosome), run.Iteration)
	}
	interp.Trisomy21, interp.Trisomy18, interp.Trisomy13 = mains[0], mains[1], mains[2]

	interp.SCA = ClassifySCA(cfg, run.Karyotype,
		run.ZScores.Get("XX"), run.ZScores.Get("XY"),
		run.Metrics.FetalFraction, run.Iteration)

	for _, finding := range run.CNVFindings {
		interp.CNV = append(interp.CNV, ClassifyCNV(cfg, finding, run.Iteration))
	}
	for _, finding := range run.RATFindings {
		interp.RAT = append(interp.RAT, domain.RATClassification{
			Finding: finding,
			Result:  ClassifyRAT(cfg, finding.Chromosome, finding.ZScore, run.Iteration),
		})
	}

	isPositive := false
	isHighRisk := false
	for _, result := range interp.MainResults() {
		if result.Tier == domain.RISK_POSITIVE {
			isPositive = true
		}
		if result.Tier == domain.RISK_HIGH {
			isHighRisk = true
		}
	}
	for _, cnv := range interp.CNV {
		if cnv.Result.Tier.Elevated() {
			isHighRisk = true
		}
	}
	for _, rat := range interp.RAT {
		if rat.Result.Tier.Elevated() {
			isHighRisk = true
		}
	}

	interp.PositiveOrHighRisk = isPositive || isHighRisk
	interp.QC = EvaluateQC(cfg, run.Metrics, interp.PositiveOrHighRisk)

	switch {
	case interp.QC.Failed():
		interp.Disposition = domain.DISPOSITION_QC_FAIL
	case isPositive:
		interp.Disposition = domain.DISPOSITION_POSITIVE
	case isHighRisk:
		interp.Disposition = domain.DISPOSITION_HIGH_RISK
	default:
		interp.Disposition = domain.DISPOSITION_NEGATIVE
	}

	return interp
}

// AttachReportability computes the release decision for every result in an
// interpretation, given whether a staff override is active.
func AttachReportability(interp *domain.Interpretation, override bool) map[string]domain.Reportability {
	decisions := map[string]domain.Reportability{
		"trisomy_21": Reportable(interp.Trisomy21.Signal, interp.QC.Status, override),
		"trisomy_18": Reportable(interp.Trisomy18.Signal, interp.QC.Status, override),
		"trisomy_13": Reportable(interp.Trisomy13.Signal, interp.QC.Status, override),
		"sca":        Reportable(interp.SCA.Signal, interp.QC.Status, override),
	}
	for i, cnv := range interp.CNV {
		decisions["cnv_"+strconv.Itoa(i)] = Reportable(cnv.Result.Signal, interp.QC.Status, override)
	}
	for i, rat := range interp.RAT {
		decisions["rat_"+strconv.Itoa(i)] = Reportable(rat.Result.Signal, interp.QC.Status, override)
	}
	return decisions
}

// RecomputeDisposition derives the disposition from stored result texts,
// used when a staff override flips effective QC from FAIL to acceptable and
// the original computation is no longer authoritative. Any text carrying a
// positive keyword wins; any high-risk or remediation keyword, or the mere
// presence of a stored CNV or RAT finding, yields HIGH_RISK. On this path,
// unlike the primary one, finding presence alone counts as high risk.
func RecomputeDisposition(mainTexts []string, cnvCount, ratCount int) domain.Disposition {
	isPositive := false
	isHighRisk := false
	for _, text := range mainTexts {
		upper := strings.ToUpper(text)
		if strings.Contains(upper, "POSITIVE") {
			isPositive = true
		}
		if strings.Contains(upper, "HIGH") ||
			strings.Contains(upper, "RE-LIBRARY") || strings.Contains(upper, "RELIBRARY") ||
			strings.Contains(upper, "RESAMPLE") {
			isHighRisk = true
		}
	}
	if cnvCount > 0 || ratCount > 0 {
		isHighRisk = true
	}

	switch {
	case isPositive:
		return domain.DISPOSITION_POSITIVE
	case isHighRisk:
		return domain.DISPOSITION_HIGH_RISK
	default:
		return domain.DISPOSITION_NEGATIVE
	}
}
