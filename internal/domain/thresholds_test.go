package domain

import (
	"testing"
)

func TestDefaultThresholdConfig(t *testing.T) {
	cfg := DefaultThresholdConfig()

	bands := cfg.TrisomyBands(1)
	if bands.Low != 3.0 || bands.Ambiguous != 6.0 {
		t.Errorf("iteration 1 trisomy bands = %+v, want low 3.0 ambiguous 6.0", bands)
	}

	bands = cfg.TrisomyBands(2)
	if bands.Low != 3.0 || bands.Medium != 3.5 || bands.High != 4.0 || bands.Positive != 5.0 {
		t.Errorf("iteration 2 trisomy bands = %+v", bands)
	}

	sca := cfg.SCABands(2)
	if sca.XXThreshold != 4.5 || sca.XYThreshold != 6.0 {
		t.Errorf("SCA bands = %+v, want xx 4.5 xy 6.0", sca)
	}

	rat := cfg.RATBands(3)
	if rat.Low != 3.0 || rat.Positive != 8.0 {
		t.Errorf("RAT bands = %+v, want low 3.0 positive 8.0", rat)
	}
}

func TestThresholdConfigOverridesAndFallback(t *testing.T) {
	cfg := NewThresholdConfig(map[ConditionFamily]map[int]map[string]float64{
		CONDITION_TRISOMY: {
			1: {ThresholdKeyLow: 2.5},
		},
	}, nil, nil)

	bands := cfg.TrisomyBands(1)
	if bands.Low != 2.5 {
		t.Errorf("configured low = %f, want 2.5", bands.Low)
	}
	// The ambiguous threshold was not configured and must fall back.
	if bands.Ambiguous != 6.0 {
		t.Errorf("fallback ambiguous = %f, want 6.0", bands.Ambiguous)
	}
	// Iteration 2 was entirely absent and must be all defaults.
	if got := cfg.TrisomyBands(2); got.Positive != 5.0 {
		t.Errorf("fallback iteration 2 positive = %f, want 5.0", got.Positive)
	}
}

func TestSelectCNVBand(t *testing.T) {
	tests := []struct {
		size     float64
		expected string
	}{
		{15.0, CNVBandGE10},
		{10.0, CNVBandGE10},
		{9.99, CNVBandGT7},
		{7.5, CNVBandGT7},
		{7.0, CNVBandGT35},
		{4.0, CNVBandGT35},
		{3.5, CNVBandLE35},
		{0.8, CNVBandLE35},
	}
	for _, tt := range tests {
		if got := SelectCNVBand(tt.size); got != tt.expected {
			t.Errorf("SelectCNVBand(%f) = %q, want %q", tt.size, got, tt.expected)
		}
	}
}

func TestCNVThresholdDefaults(t *testing.T) {
	cfg := DefaultThresholdConfig()
	tests := []struct {
		band     string
		expected float64
	}{
		{CNVBandGE10, 6.0},
		{CNVBandGT7, 8.0},
		{CNVBandGT35, 10.0},
		{CNVBandLE35, 12.0},
	}
	for _, tt := range tests {
		if got := cfg.CNVThreshold(tt.band, 1); got != tt.expected {
			t.Errorf("CNVThreshold(%q, 1) = %f, want %f", tt.band, got, tt.expected)
		}
	}
}

func TestQCLimitsDefaultsAndOverrides(t *testing.T) {
	cfg := DefaultThresholdConfig()
	limits := cfg.QCLimits()
	if limits.FFMin != 3.5 || limits.FFMax != 30.0 {
		t.Errorf("fetal fraction limits = %+v", limits)
	}
	if limits.QualityMaxPositive <= limits.QualityMaxNegative {
		t.Errorf("positive quality ceiling %f must exceed negative %f",
			limits.QualityMaxPositive, limits.QualityMaxNegative)
	}

	custom := NewThresholdConfig(nil, map[string]float64{QCKeyFFMin: 4.0}, nil)
	if got := custom.QCLimits(); got.FFMin != 4.0 || got.FFMax != 30.0 {
		t.Errorf("partial QC config = %+v, want FFMin 4.0 with default FFMax", got)
	}
}

func TestPanelMinReads(t *testing.T) {
	cfg := NewThresholdConfig(nil, nil, map[string]float64{"custom": 6.5})

	if got := cfg.PanelMinReads("custom"); got != 6.5 {
		t.Errorf("configured panel = %f, want 6.5", got)
	}
	if got := cfg.PanelMinReads("standard"); got != 3.0 {
		t.Errorf("default panel = %f, want 3.0", got)
	}
	if got := cfg.PanelMinReads("never-heard-of-it"); got != DefaultPanelMinimum {
		t.Errorf("unknown panel = %f, want %f", got, DefaultPanelMinimum)
	}
}

// The constructor must deep-copy its inputs so later mutation of the source
// maps cannot leak into a snapshot already handed to an evaluation.
func TestThresholdConfigSnapshotIsolation(t *testing.T) {
	source := map[ConditionFamily]map[int]map[string]float64{
		CONDITION_TRISOMY: {1: {ThresholdKeyLow: 2.0}},
	}
	cfg := NewThresholdConfig(source, nil, nil)
	source[CONDITION_TRISOMY][1][ThresholdKeyLow] = 99.0

	if got := cfg.TrisomyBands(1).Low; got != 2.0 {
		t.Errorf("snapshot leaked mutation: low = %f, want 2.0", got)
	}
}
