package domain

import (
	"math"
	"strings"
)

// SampleMetrics carries the sequencing QC metrics entered for one sample,
// as produced by the sequencing pipeline or the LIS feed.
type SampleMetrics struct {
	Panel         string  `json:"panel"`
	ReadsMillions float64 `json:"reads_millions"`
	FetalFraction float64 `json:"fetal_fraction"`
	GCContent     float64 `json:"gc_content"`
	QualityScore  float64 `json:"quality_score"`
	UniqueRate    float64 `json:"unique_rate"`
	ErrorRate     float64 `json:"error_rate"`
}

// Validate checks the metrics for structural problems. Range checking of
// the numeric values is the QC evaluator's job; this only rejects inputs
// the classifiers cannot work with at all.
func (m *SampleMetrics) Validate() error {
	if strings.TrimSpace(m.Panel) == "" {
		return NewValidationError("panel", "panel identifier is required", m.Panel)
	}
	if math.IsNaN(m.ReadsMillions) || m.ReadsMillions < 0 {
		return NewValidationError("reads_millions", "read count must be a non-negative number", m.ReadsMillions)
	}
	return nil
}

// ZScoreSet maps chromosome identifiers ("21", "18", "13", autosomes
// "1".."22") and sex-chromosome labels ("XX", "XY") to Z-scores. The set
// may be sparse; absent entries read as NaN.
type ZScoreSet map[string]float64

// Get returns the Z-score for a key, or NaN when the key is absent.
func (z ZScoreSet) Get(key string) float64 {
	if v, ok := z[key]; ok {
		return v
	}
	return math.NaN()
}

// Has reports whether a Z-score is present for the key.
func (z ZScoreSet) Has(key string) bool {
	_, ok := z[key]
	return ok
}

// Clone returns an independent copy of the set.
func (z ZScoreSet) Clone() ZScoreSet {
	if z == nil {
		return nil
	}
	copied := make(ZScoreSet, len(z))
	for k, v := range z {
		copied[k] = v
	}
	return copied
}

// CNVFinding is one copy-number variation reported by the pipeline: a
// segment of the given size with an abnormal-read ratio.
type CNVFinding struct {
	Chromosome string  `json:"chromosome"`
	Region     string  `json:"region,omitempty"`
	SizeMb     float64 `json:"size_mb"`
	RatioPct   float64 `json:"ratio_pct"`
}

// Validate checks the finding for structural problems.
func (f *CNVFinding) Validate() error {
	if strings.TrimSpace(f.Chromosome) == "" {
		return NewValidationError("chromosome", "chromosome is required", f.Chromosome)
	}
	if math.IsNaN(f.SizeMb) || f.SizeMb < 0 {
		return NewValidationError("size_mb", "segment size must be a non-negative number", f.SizeMb)
	}
	return nil
}

// RATFinding is one rare autosomal trisomy signal: an elevated Z-score on
// an autosome other than 21/18/13.
type RATFinding struct {
	Chromosome string  `json:"chromosome"`
	ZScore     float64 `json:"z_score"`
}

// Validate checks the finding for structural problems.
func (f *RATFinding) Validate() error {
	if strings.TrimSpace(f.Chromosome) == "" {
		return NewValidationError("chromosome", "chromosome is required", f.Chromosome)
	}
	return nil
}
