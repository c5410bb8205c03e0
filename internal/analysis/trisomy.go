package analysis

import (
	"fmt"
	"math"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// ClassifyTrisomy classifies a common-trisomy Z-score (chromosomes 21, 18,
// 13) for the given test iteration. A missing or NaN Z-score yields the
// UNKNOWN tier rather than an error so callers can filter on the tier.
//
// Iteration 1 uses the two-band model (low, ambiguous); iterations 2 and 3
// use the four-band escalation. Every comparison is a strict less-than
// against the band's lower bound, so a Z-score exactly at a threshold falls
// into the stricter band.
func ClassifyTrisomy(cfg domain.ThresholdConfig, chromosome string, z float64, iteration int) domain.ClassificationResult {
	if math.IsNaN(z) {
		return domain.NewClassificationResult("Invalid Data", domain.RISK_UNKNOWN)
	}

	bands := cfg.TrisomyBands(iteration)

	if domain.NormalizeIteration(iteration) == 1 {
		switch {
		case z < bands.Low:
			return domain.NewClassificationResult("Low Risk", domain.RISK_LOW)
		case z < bands.Ambiguous:
			return domain.NewClassificationResult(
				fmt.Sprintf("T%s High Risk (Z=%.2f) -> Re-library", chromosome, z), domain.RISK_HIGH)
		default:
			return domain.NewClassificationResult(
				fmt.Sprintf("T%s Positive (Z=%.2f)", chromosome, z), domain.RISK_POSITIVE)
		}
	}

	label := domain.IterationLabel(iteration)
	switch {
	case z < bands.Low:
		return domain.NewClassificationResult(
			fmt.Sprintf("Negative, %s", label), domain.RISK_LOW)
	case z < bands.Medium, z < bands.High:
		// The medium and high bands share one outcome. The high threshold
		// is still resolved and compared but never changes the message.
		return domain.NewClassificationResult(
			fmt.Sprintf("T%s High Risk (Z=%.2f) -> Resample for verification", chromosome, z), domain.RISK_HIGH)
	case z < bands.Positive:
		return domain.NewClassificationResult(
			fmt.Sprintf("T%s High Risk (Z=%.2f) -> Report positive if persistent", chromosome, z), domain.RISK_HIGH)
	default:
		return domain.NewClassificationResult(
			fmt.Sprintf("T%s Positive (Z=%.2f), %s", chromosome, z, label), domain.RISK_POSITIVE)
	}
}
