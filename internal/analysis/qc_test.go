package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// cleanMetrics passes every default QC limit with margin.
func cleanMetrics() domain.SampleMetrics {
	return domain.SampleMetrics{
		Panel:         "standard",
		ReadsMillions: 5.0,
		FetalFraction: 10.0,
		GCContent:     41.0,
		QualityScore:  1.0,
		UniqueRate:    85.0,
		ErrorRate:     0.2,
	}
}

func TestEvaluateQCCleanSample(t *testing.T) {
	outcome := EvaluateQC(domain.DefaultThresholdConfig(), cleanMetrics(), false)

	assert.Equal(t, domain.QC_PASS, outcome.Status)
	assert.Empty(t, outcome.Issues)
	assert.Equal(t, AdviceNone, outcome.Advice)
}

func TestEvaluateQCHardFailures(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()

	tests := []struct {
		name    string
		mutate  func(*domain.SampleMetrics)
		advice  string
	}{
		{"ReadsUnderPanelMinimum", func(m *domain.SampleMetrics) { m.ReadsMillions = 2.0 }, AdviceResequencing},
		{"FetalFractionUnderMinimum", func(m *domain.SampleMetrics) { m.FetalFraction = 2.0 }, AdviceResample},
		{"FetalFractionOverMaximum", func(m *domain.SampleMetrics) { m.FetalFraction = 35.0 }, AdviceResample},
		{"GCUnderRange", func(m *domain.SampleMetrics) { m.GCContent = 30.0 }, AdviceRelibrary},
		{"GCOverRange", func(m *domain.SampleMetrics) { m.GCContent = 50.0 }, AdviceRelibrary},
		{"QualityAtCeiling", func(m *domain.SampleMetrics) { m.QualityScore = 3.0 }, AdviceRelibrary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := cleanMetrics()
			tt.mutate(&metrics)

			outcome := EvaluateQC(cfg, metrics, false)

			require.Equal(t, domain.QC_FAIL, outcome.Status)
			require.Len(t, outcome.Issues, 1)
			assert.Equal(t, domain.ISSUE_HARD, outcome.Issues[0].Severity)
			assert.Equal(t, tt.advice, outcome.Advice)
		})
	}
}

func TestEvaluateQCQualityCeilingPolarity(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()
	metrics := cleanMetrics()
	metrics.QualityScore = 4.0 // between the negative ceiling (3.0) and the positive one (5.0)

	negative := EvaluateQC(cfg, metrics, false)
	assert.Equal(t, domain.QC_FAIL, negative.Status, "screen-negative sample must fail at 4.0")

	positive := EvaluateQC(cfg, metrics, true)
	assert.Equal(t, domain.QC_PASS, positive.Status, "screen-positive sample tolerates the higher ceiling")
}

func TestEvaluateQCSoftIssuesOnlyWarn(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()

	metrics := cleanMetrics()
	metrics.UniqueRate = 60.0

	outcome := EvaluateQC(cfg, metrics, false)
	require.Equal(t, domain.QC_WARNING, outcome.Status)
	require.Len(t, outcome.Issues, 1)
	assert.Equal(t, domain.ISSUE_SOFT, outcome.Issues[0].Severity)
	assert.Equal(t, AdviceNone, outcome.Advice, "soft issues carry no advice")

	metrics = cleanMetrics()
	metrics.ErrorRate = 0.9
	outcome = EvaluateQC(cfg, metrics, false)
	assert.Equal(t, domain.QC_WARNING, outcome.Status)
	assert.Equal(t, AdviceNone, outcome.Advice)
}

func TestEvaluateQCHardBeatsSoft(t *testing.T) {
	metrics := cleanMetrics()
	metrics.UniqueRate = 60.0
	metrics.FetalFraction = 2.0

	outcome := EvaluateQC(domain.DefaultThresholdConfig(), metrics, false)

	assert.Equal(t, domain.QC_FAIL, outcome.Status)
	assert.Len(t, outcome.Issues, 2)
	assert.Equal(t, AdviceResample, outcome.Advice)
}

func TestEvaluateQCAdviceDeduplicationAndOrder(t *testing.T) {
	metrics := cleanMetrics()
	metrics.ReadsMillions = 1.0  // Resequencing
	metrics.FetalFraction = 2.0  // Resample
	metrics.GCContent = 30.0     // Re-library
	metrics.QualityScore = 9.0   // Re-library again, must deduplicate

	outcome := EvaluateQC(domain.DefaultThresholdConfig(), metrics, false)

	assert.Equal(t, domain.QC_FAIL, outcome.Status)
	assert.Equal(t, "Resequencing; Resample; Re-library", outcome.Advice)
	assert.Len(t, outcome.Issues, 4)
}

func TestEvaluateQCUnknownPanelUsesGlobalMinimum(t *testing.T) {
	metrics := cleanMetrics()
	metrics.Panel = "unheard-of"
	metrics.ReadsMillions = 2.9

	outcome := EvaluateQC(domain.DefaultThresholdConfig(), metrics, false)
	assert.Equal(t, domain.QC_FAIL, outcome.Status)

	metrics.ReadsMillions = 3.0
	outcome = EvaluateQC(domain.DefaultThresholdConfig(), metrics, false)
	assert.Equal(t, domain.QC_PASS, outcome.Status)
}

func TestEvaluateQCConfiguredPanelMinimum(t *testing.T) {
	cfg := domain.NewThresholdConfig(nil, nil, map[string]float64{"deep": 12.0})

	metrics := cleanMetrics()
	metrics.Panel = "deep"
	metrics.ReadsMillions = 8.0

	outcome := EvaluateQC(cfg, metrics, false)
	require.Equal(t, domain.QC_FAIL, outcome.Status)
	assert.Equal(t, AdviceResequencing, outcome.Advice)
}
