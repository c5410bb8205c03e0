package domain

// Named threshold keys recognized inside a condition family's per-iteration
// threshold map. Unknown keys are ignored; missing keys fall back to the
// default tables below.
const (
	ThresholdKeyLow       = "low"
	ThresholdKeyAmbiguous = "ambiguous"
	ThresholdKeyMedium    = "medium"
	ThresholdKeyHigh      = "high"
	ThresholdKeyPositive  = "positive"
	ThresholdKeyXX        = "xx_threshold"
	ThresholdKeyXY        = "xy_threshold"
)

// CNV size-band labels, keyed by the deletion/duplication size in Mb.
const (
	CNVBandGE10 = ">=10"
	CNVBandGT7  = ">7"
	CNVBandGT35 = ">3.5"
	CNVBandLE35 = "<=3.5"
)

// QC limit keys recognized in configuration.
const (
	QCKeyFFMin         = "cff_min"
	QCKeyFFMax         = "cff_max"
	QCKeyGCMin         = "gc_min"
	QCKeyGCMax         = "gc_max"
	QCKeyQualityMaxNeg = "quality_max_negative"
	QCKeyQualityMaxPos = "quality_max_positive"
	QCKeyUniqueRateMin = "unique_rate_min"
	QCKeyErrorRateMax  = "error_rate_max"
)

// DefaultPanelMinimum is the minimum read count (millions) applied to
// panels absent from both configuration and the default panel table.
const DefaultPanelMinimum = 3.0

// Default decision tables. These are the only place default threshold
// literals live; every lookup that misses configuration lands here.
var defaultConditionThresholds = map[ConditionFamily]map[int]map[string]float64{
	CONDITION_TRISOMY: {
		1: {ThresholdKeyLow: 3.0, ThresholdKeyAmbiguous: 6.0},
		2: {ThresholdKeyLow: 3.0, ThresholdKeyMedium: 3.5, ThresholdKeyHigh: 4.0, ThresholdKeyPositive: 5.0},
		3: {ThresholdKeyLow: 3.0, ThresholdKeyMedium: 3.5, ThresholdKeyHigh: 4.0, ThresholdKeyPositive: 5.0},
	},
	CONDITION_SCA: {
		1: {ThresholdKeyXX: 4.5, ThresholdKeyXY: 6.0},
		2: {ThresholdKeyXX: 4.5, ThresholdKeyXY: 6.0},
		3: {ThresholdKeyXX: 4.5, ThresholdKeyXY: 6.0},
	},
	CONDITION_RAT: {
		1: {ThresholdKeyLow: 3.0, ThresholdKeyPositive: 8.0},
		2: {ThresholdKeyLow: 3.0, ThresholdKeyPositive: 8.0},
		3: {ThresholdKeyLow: 3.0, ThresholdKeyPositive: 8.0},
	},
	CONDITION_CNV: {
		1: {CNVBandGE10: 6.0, CNVBandGT7: 8.0, CNVBandGT35: 10.0, CNVBandLE35: 12.0},
		2: {CNVBandGE10: 6.0, CNVBandGT7: 8.0, CNVBandGT35: 10.0, CNVBandLE35: 12.0},
		3: {CNVBandGE10: 6.0, CNVBandGT7: 8.0, CNVBandGT35: 10.0, CNVBandLE35: 12.0},
	},
}

var defaultQCLimits = map[string]float64{
	QCKeyFFMin:         3.5,
	QCKeyFFMax:         30.0,
	QCKeyGCMin:         38.0,
	QCKeyGCMax:         45.0,
	QCKeyQualityMaxNeg: 3.0,
	QCKeyQualityMaxPos: 5.0,
	QCKeyUniqueRateMin: 70.0,
	QCKeyErrorRateMax:  0.5,
}

var defaultPanelMinReads = map[string]float64{
	"standard": 3.0,
	"plus":     5.0,
	"pro":      8.0,
}

// ThresholdConfig is a read-only snapshot of the laboratory's threshold
// configuration: per-condition, per-iteration classification thresholds, QC
// limits, and the per-panel minimum-read table. Instances are safe for
// concurrent use; the constructor deep-copies its inputs and the accessors
// never expose internal state.
type ThresholdConfig struct {
	conditions map[ConditionFamily]map[int]map[string]float64
	qc         map[string]float64
	panelReads map[string]float64
}

// NewThresholdConfig builds a snapshot from sparse configuration maps. Any
// of the maps may be nil or partial; lookups fall back to the default
// tables value by value.
func NewThresholdConfig(conditions map[ConditionFamily]map[int]map[string]float64, qc map[string]float64, panelReads map[string]float64) ThresholdConfig {
	cfg := ThresholdConfig{
		conditions: make(map[ConditionFamily]map[int]map[string]float64, len(conditions)),
		qc:         make(map[string]float64, len(qc)),
		panelReads: make(map[string]float64, len(panelReads)),
	}
	for family, iterations := range conditions {
		cfg.conditions[family] = make(map[int]map[string]float64, len(iterations))
		for iteration, values := range iterations {
			copied := make(map[string]float64, len(values))
			for key, value := range values {
				copied[key] = value
			}
			cfg.conditions[family][iteration] = copied
		}
	}
	for key, value := range qc {
		cfg.qc[key] = value
	}
	for panel, value := range panelReads {
		cfg.panelReads[panel] = value
	}
	return cfg
}

// DefaultThresholdConfig returns a snapshot backed entirely by the default
// decision tables.
func DefaultThresholdConfig() ThresholdConfig {
	return NewThresholdConfig(nil, nil, nil)
}

// NormalizeIteration clamps a test iteration into the modeled 1..3 range.
// Iteration 1 is the initial run; anything past the third re-test uses the
// third-test thresholds and labels.
func NormalizeIteration(iteration int) int {
	switch {
	case iteration <= 1:
		return 1
	case iteration == 2:
		return 2
	default:
		return 3
	}
}

// IterationLabel returns the ordinal label used in re-test result texts.
func IterationLabel(iteration int) string {
	if NormalizeIteration(iteration) == 2 {
		return "2nd test"
	}
	return "3rd test"
}

func (c ThresholdConfig) conditionValue(family ConditionFamily, iteration int, key string) float64 {
	iteration = NormalizeIteration(iteration)
	if values, ok := c.conditions[family][iteration]; ok {
		if v, ok := values[key]; ok {
			return v
		}
	}
	return defaultConditionThresholds[family][iteration][key]
}

// TrisomyBands holds the resolved trisomy thresholds for one iteration.
// Iteration 1 uses Low/Ambiguous; iterations 2 and 3 use the four-band
// Low/Medium/High/Positive escalation.
type TrisomyBands struct {
	Low       float64 `json:"low"`
	Ambiguous float64 `json:"ambiguous"`
	Medium    float64 `json:"medium"`
	High      float64 `json:"high"`
	Positive  float64 `json:"positive"`
}

// TrisomyBands resolves the trisomy thresholds for the given iteration.
func (c ThresholdConfig) TrisomyBands(iteration int) TrisomyBands {
	return TrisomyBands{
		Low:       c.conditionValue(CONDITION_TRISOMY, iteration, ThresholdKeyLow),
		Ambiguous: c.conditionValue(CONDITION_TRISOMY, iteration, ThresholdKeyAmbiguous),
		Medium:    c.conditionValue(CONDITION_TRISOMY, iteration, ThresholdKeyMedium),
		High:      c.conditionValue(CONDITION_TRISOMY, iteration, ThresholdKeyHigh),
		Positive:  c.conditionValue(CONDITION_TRISOMY, iteration, ThresholdKeyPositive),
	}
}

// SCABands holds the resolved sex-chromosome Z-score thresholds for one
// iteration.
type SCABands struct {
	XXThreshold float64 `json:"xx_threshold"`
	XYThreshold float64 `json:"xy_threshold"`
}

// SCABands resolves the SCA thresholds for the given iteration.
func (c ThresholdConfig) SCABands(iteration int) SCABands {
	return SCABands{
		XXThreshold: c.conditionValue(CONDITION_SCA, iteration, ThresholdKeyXX),
		XYThreshold: c.conditionValue(CONDITION_SCA, iteration, ThresholdKeyXY),
	}
}

// RATBands holds the resolved rare-autosomal-trisomy thresholds for one
// iteration.
type RATBands struct {
	Low      float64 `json:"low"`
	Positive float64 `json:"positive"`
}

// RATBands resolves the RAT thresholds for the given iteration.
func (c ThresholdConfig) RATBands(iteration int) RATBands {
	return RATBands{
		Low:      c.conditionValue(CONDITION_RAT, iteration, ThresholdKeyLow),
		Positive: c.conditionValue(CONDITION_RAT, iteration, ThresholdKeyPositive),
	}
}

// SelectCNVBand maps a CNV size in Mb to its threshold band label. Bands
// are checked largest first; the first match wins.
func SelectCNVBand(sizeMb float64) string {
	switch {
	case sizeMb >= 10:
		return CNVBandGE10
	case sizeMb > 7:
		return CNVBandGT7
	case sizeMb > 3.5:
		return CNVBandGT35
	default:
		return CNVBandLE35
	}
}

// CNVThreshold resolves the abnormal-ratio threshold for a size band and
// iteration.
func (c ThresholdConfig) CNVThreshold(band string, iteration int) float64 {
	return c.conditionValue(CONDITION_CNV, iteration, band)
}

// QCLimits holds the fully resolved quality-control limits for one
// evaluation. The positive quality ceiling is the more tolerant of the two.
type QCLimits struct {
	FFMin              float64 `json:"ff_min"`
	FFMax              float64 `json:"ff_max"`
	GCMin              float64 `json:"gc_min"`
	GCMax              float64 `json:"gc_max"`
	QualityMaxNegative float64 `json:"quality_max_negative"`
	QualityMaxPositive float64 `json:"quality_max_positive"`
	UniqueRateMin      float64 `json:"unique_rate_min"`
	ErrorRateMax       float64 `json:"error_rate_max"`
}

func (c ThresholdConfig) qcValue(key string) float64 {
	if v, ok := c.qc[key]; ok {
		return v
	}
	return defaultQCLimits[key]
}

// QCLimits resolves the configured QC limits, defaulting field by field.
func (c ThresholdConfig) QCLimits() QCLimits {
	return QCLimits{
		FFMin:              c.qcValue(QCKeyFFMin),
		FFMax:              c.qcValue(QCKeyFFMax),
		GCMin:              c.qcValue(QCKeyGCMin),
		GCMax:              c.qcValue(QCKeyGCMax),
		QualityMaxNegative: c.qcValue(QCKeyQualityMaxNeg),
		QualityMaxPositive: c.qcValue(QCKeyQualityMaxPos),
		UniqueRateMin:      c.qcValue(QCKeyUniqueRateMin),
		ErrorRateMax:       c.qcValue(QCKeyErrorRateMax),
	}
}

// PanelMinReads resolves the minimum read count (millions) for a panel.
// Unknown panels use the global default minimum.
func (c ThresholdConfig) PanelMinReads(panel string) float64 {
	if v, ok := c.panelReads[panel]; ok {
		return v
	}
	if v, ok := defaultPanelMinReads[panel]; ok {
		return v
	}
	return DefaultPanelMinimum
}

// Panels lists the panels with configured minimum read counts, defaults
// included.
func (c ThresholdConfig) Panels() []string {
	seen := make(map[string]bool, len(c.panelReads)+len(defaultPanelMinReads))
	panels := make([]string, 0, len(c.panelReads)+len(defaultPanelMinReads))
	for panel := range defaultPanelMinReads {
		if !seen[panel] {
			seen[panel] = true
			panels = append(panels, panel)
		}
	}
	for panel := range c.panelReads {
		if !seen[panel] {
			seen[panel] = true
			panels = append(panels, panel)
		}
	}
	return panels
}
