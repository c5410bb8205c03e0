package analysis

import (
	"fmt"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// ClassifyCNV classifies one copy-number finding. The segment size selects
// the threshold band (larger segments call at lower ratios); the abnormal
// ratio is then compared at-or-above against the band's threshold. The
// first iteration flags for re-library, re-tests either confirm positive or
// ask for a verification resample.
func ClassifyCNV(cfg domain.ThresholdConfig, finding domain.CNVFinding, iteration int) domain.CNVClassification {
	band := domain.SelectCNVBand(finding.SizeMb)
	threshold := cfg.CNVThreshold(band, iteration)

	var result domain.ClassificationResult
	if domain.NormalizeIteration(iteration) == 1 {
		if finding.RatioPct >= threshold {
			result = domain.NewClassificationResult(
				fmt.Sprintf("High Risk (ratio %.2f%%) -> Re-library", finding.RatioPct), domain.RISK_HIGH)
		} else {
			result = domain.NewClassificationResult("Low Risk", domain.RISK_LOW)
		}
	} else {
		if finding.RatioPct >= threshold {
			result = domain.NewClassificationResult(
				fmt.Sprintf("Positive (ratio %.2f%%), %s", finding.RatioPct, domain.IterationLabel(iteration)),
				domain.RISK_POSITIVE)
		} else {
			result = domain.NewClassificationResult(
				fmt.Sprintf("High Risk (ratio %.2f%%) -> Resample for verification", finding.RatioPct),
				domain.RISK_HIGH)
		}
	}

	return domain.CNVClassification{
		Finding:   finding,
		Band:      band,
		Threshold: threshold,
		Result:    result,
	}
}
