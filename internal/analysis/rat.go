package analysis

import (
	"fmt"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// ClassifyRAT classifies a rare-autosomal-trisomy Z-score. The first
// iteration checks the positive band with >= and the low boundary with a
// strict >; re-tests check the low boundary with <= and the positive band
// with a strict <. The partitions coincide but the comparison structure is
// part of the laboratory's validated behavior and stays as is.
func ClassifyRAT(cfg domain.ThresholdConfig, chromosome string, z float64, iteration int) domain.ClassificationResult {
	bands := cfg.RATBands(iteration)

	if domain.NormalizeIteration(iteration) == 1 {
		if z >= bands.Positive {
			return domain.NewClassificationResult(
				fmt.Sprintf("Positive (chr%s, Z=%.2f)", chromosome, z), domain.RISK_POSITIVE)
		}
		if z > bands.Low {
			return domain.NewClassificationResult(
				fmt.Sprintf("chr%s ambiguous (Z=%.2f) -> Re-library", chromosome, z), domain.RISK_HIGH)
		}
		return domain.NewClassificationResult(
			fmt.Sprintf("Low Risk (chr%s)", chromosome), domain.RISK_LOW)
	}

	label := domain.IterationLabel(iteration)
	if z <= bands.Low {
		return domain.NewClassificationResult(
			fmt.Sprintf("Negative (chr%s), %s", chromosome, label), domain.RISK_LOW)
	}
	if z < bands.Positive {
		return domain.NewClassificationResult(
			fmt.Sprintf("chr%s High Risk (Z=%.2f) -> Resample for verification", chromosome, z), domain.RISK_HIGH)
	}
	return domain.NewClassificationResult(
		fmt.Sprintf("Positive (chr%s, Z=%.2f), %s", chromosome, z, label), domain.RISK_POSITIVE)
}
