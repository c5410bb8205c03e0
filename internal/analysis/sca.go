package analysis

import (
	"fmt"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// ClassifySCA classifies a sex-chromosome aneuploidy call. A fetal fraction
// under the global minimum invalidates the call outright, whatever the
// karyotype or iteration. XXY, XYY, and XXX+XY report positive
// unconditionally; XO and XXX depend on the XX Z-score against the
// iteration's threshold, XO+XY on the XY Z-score. Unrecognized karyotypes
// classify as an ambiguous high-risk call.
func ClassifySCA(cfg domain.ThresholdConfig, karyotype domain.Karyotype, zXX, zXY, fetalFraction float64, iteration int) domain.ClassificationResult {
	iter := domain.NormalizeIteration(iteration)

	if fetalFraction < cfg.QCLimits().FFMin {
		if iter == 1 {
			return domain.NewClassificationResult(
				"Invalid (insufficient fetal fraction) -> Resample", domain.RISK_INVALID)
		}
		return domain.NewClassificationResult(
			"Invalid (insufficient fetal fraction), do not refer to previous result", domain.RISK_INVALID)
	}

	bands := cfg.SCABands(iteration)

	switch karyotype {
	case domain.KARYOTYPE_XX, domain.KARYOTYPE_XY:
		if iter == 1 {
			return domain.NewClassificationResult(
				fmt.Sprintf("Negative (%s)", karyotype), domain.RISK_LOW)
		}
		return domain.NewClassificationResult(
			fmt.Sprintf("Negative (%s), %s", karyotype, domain.IterationLabel(iteration)), domain.RISK_LOW)

	case domain.KARYOTYPE_XXY, domain.KARYOTYPE_XYY, domain.KARYOTYPE_XXX_XY:
		return domain.NewClassificationResult(
			fmt.Sprintf("Positive (%s)", karyotype), domain.RISK_POSITIVE)

	case domain.KARYOTYPE_XO, domain.KARYOTYPE_XXX:
		return classifySCAThreshold(karyotype, zXX, bands.XXThreshold, iter)

	case domain.KARYOTYPE_XO_XY:
		return classifySCAThreshold(karyotype, zXY, bands.XYThreshold, iter)

	default:
		return domain.NewClassificationResult(
			fmt.Sprintf("Ambiguous SCA result (%s)", karyotype), domain.RISK_HIGH)
	}
}

// classifySCAThreshold resolves the conditional karyotypes: at or above the
// threshold the call is positive, under it the call stays high risk with
// the iteration's remediation.
func classifySCAThreshold(karyotype domain.Karyotype, z, threshold float64, iter int) domain.ClassificationResult {
	if z >= threshold {
		return domain.NewClassificationResult(
			fmt.Sprintf("Positive (%s, Z=%.2f)", karyotype, z), domain.RISK_POSITIVE)
	}
	if iter == 1 {
		return domain.NewClassificationResult(
			fmt.Sprintf("%s ambiguous (Z=%.2f) -> Re-library", karyotype, z), domain.RISK_HIGH)
	}
	return domain.NewClassificationResult(
		fmt.Sprintf("%s High Risk (Z=%.2f) -> Resample for verification", karyotype, z), domain.RISK_HIGH)
}
