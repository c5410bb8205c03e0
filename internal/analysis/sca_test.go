package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

func TestClassifySCAInsufficientFetalFraction(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()

	// Fetal fraction under the global minimum invalidates the call for any
	// karyotype, even one that would otherwise report positive.
	for _, karyotype := range []domain.Karyotype{domain.KARYOTYPE_XX, domain.KARYOTYPE_XXY, domain.KARYOTYPE_XO} {
		first := ClassifySCA(cfg, karyotype, 9.0, 9.0, 2.0, 1)
		assert.Equal(t, domain.RISK_INVALID, first.Tier)
		assert.Equal(t, "Invalid (insufficient fetal fraction) -> Resample", first.Text)

		retest := ClassifySCA(cfg, karyotype, 9.0, 9.0, 2.0, 2)
		assert.Equal(t, domain.RISK_INVALID, retest.Tier)
		assert.Equal(t, "Invalid (insufficient fetal fraction), do not refer to previous result", retest.Text)
	}

	// Exactly at the minimum is sufficient.
	boundary := ClassifySCA(cfg, domain.KARYOTYPE_XX, 0.1, 0.0, 3.5, 1)
	assert.Equal(t, domain.RISK_LOW, boundary.Tier)
}

func TestClassifySCAEuploid(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()

	tests := []struct {
		name      string
		karyotype domain.Karyotype
		iteration int
		wantText  string
	}{
		{"XXFirstTest", domain.KARYOTYPE_XX, 1, "Negative (XX)"},
		{"XYFirstTest", domain.KARYOTYPE_XY, 1, "Negative (XY)"},
		{"XXSecondTest", domain.KARYOTYPE_XX, 2, "Negative (XX), 2nd test"},
		{"XYThirdTest", domain.KARYOTYPE_XY, 3, "Negative (XY), 3rd test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifySCA(cfg, tt.karyotype, 0.4, -0.2, 8.0, tt.iteration)
			assert.Equal(t, domain.RISK_LOW, result.Tier)
			assert.Equal(t, tt.wantText, result.Text)
		})
	}
}

func TestClassifySCAUnconditionalPositives(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()

	tests := []struct {
		karyotype domain.Karyotype
		wantText  string
	}{
		{domain.KARYOTYPE_XXY, "Positive (XXY)"},
		{domain.KARYOTYPE_XYY, "Positive (XYY)"},
		{domain.KARYOTYPE_XXX_XY, "Positive (XXX+XY)"},
	}

	for _, tt := range tests {
		for _, iteration := range []int{1, 2, 3} {
			// Zero Z-scores must not matter for these karyotypes.
			result := ClassifySCA(cfg, tt.karyotype, 0.0, 0.0, 8.0, iteration)
			assert.Equal(t, domain.RISK_POSITIVE, result.Tier, "%s iteration %d", tt.karyotype, iteration)
			assert.Equal(t, tt.wantText, result.Text)
		}
	}
}

func TestClassifySCAThresholdedKaryotypes(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()

	tests := []struct {
		name      string
		karyotype domain.Karyotype
		zXX       float64
		zXY       float64
		iteration int
		wantTier  domain.RiskTier
		wantText  string
	}{
		{"XOAboveThreshold", domain.KARYOTYPE_XO, 5.0, 0, 1, domain.RISK_POSITIVE, "Positive (XO, Z=5.00)"},
		{"XOExactlyAtThreshold", domain.KARYOTYPE_XO, 4.5, 0, 1, domain.RISK_POSITIVE, "Positive (XO, Z=4.50)"},
		{"XOUnderFirstTest", domain.KARYOTYPE_XO, 4.0, 0, 1, domain.RISK_HIGH, "XO ambiguous (Z=4.00) -> Re-library"},
		{"XOUnderSecondTest", domain.KARYOTYPE_XO, 4.0, 0, 2, domain.RISK_HIGH, "XO High Risk (Z=4.00) -> Resample for verification"},
		{"XXXAboveThreshold", domain.KARYOTYPE_XXX, 6.2, 0, 1, domain.RISK_POSITIVE, "Positive (XXX, Z=6.20)"},
		{"XXXUnderThirdTest", domain.KARYOTYPE_XXX, 3.9, 0, 3, domain.RISK_HIGH, "XXX High Risk (Z=3.90) -> Resample for verification"},
		{"MosaicUsesXYScore", domain.KARYOTYPE_XO_XY, 0, 6.0, 1, domain.RISK_POSITIVE, "Positive (XO+XY, Z=6.00)"},
		{"MosaicUnderXYThreshold", domain.KARYOTYPE_XO_XY, 9.0, 5.5, 1, domain.RISK_HIGH, "XO+XY ambiguous (Z=5.50) -> Re-library"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifySCA(cfg, tt.karyotype, tt.zXX, tt.zXY, 8.0, tt.iteration)
			assert.Equal(t, tt.wantTier, result.Tier)
			assert.Equal(t, tt.wantText, result.Text)
		})
	}
}

func TestClassifySCAUnknownKaryotype(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()

	result := ClassifySCA(cfg, domain.Karyotype("XXXY"), 1.0, 1.0, 8.0, 1)
	assert.Equal(t, domain.RISK_HIGH, result.Tier)
	assert.Equal(t, "Ambiguous SCA result (XXXY)", result.Text)
}

func TestClassifySCAConfiguredThresholds(t *testing.T) {
	cfg := domain.NewThresholdConfig(map[domain.ConditionFamily]map[int]map[string]float64{
		domain.CONDITION_SCA: {
			1: {domain.ThresholdKeyXX: 3.0},
		},
	}, nil, nil)

	// 3.5 clears the configured XX threshold but not the default 4.5.
	result := ClassifySCA(cfg, domain.KARYOTYPE_XO, 3.5, 0, 8.0, 1)
	assert.Equal(t, domain.RISK_POSITIVE, result.Tier)

	// The XY threshold was not configured, so XO+XY keeps the default 6.0.
	result = ClassifySCA(cfg, domain.KARYOTYPE_XO_XY, 0, 5.5, 8.0, 1)
	assert.Equal(t, domain.RISK_HIGH, result.Tier)
}
