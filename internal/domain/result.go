package domain

// ClassificationResult is the immutable outcome of one rule-family
// evaluation: the human-readable result text, the coarse risk tier, and the
// release-control signal. Construct results with NewClassificationResult so
// the signal always matches the text's keyword contract.
type ClassificationResult struct {
	Text   string     `json:"result_text"`
	Tier   RiskTier   `json:"risk_tier"`
	Signal GateSignal `json:"gate_signal"`
}

// NewClassificationResult builds a result and derives its gate signal from
// the text. Keeping the derivation here guarantees signal and text never
// disagree, whichever classifier produced them.
func NewClassificationResult(text string, tier RiskTier) ClassificationResult {
	return ClassificationResult{
		Text:   text,
		Tier:   tier,
		Signal: ParseGateSignal(text),
	}
}

// LogFields returns the result as logrus fields.
func (r ClassificationResult) LogFields() map[string]any {
	return map[string]any{
		"result_text": r.Text,
		"risk_tier":   string(r.Tier),
		"gate_signal": string(r.Signal),
	}
}

// QCIssue is one quality-control rule violation found during evaluation.
type QCIssue struct {
	Severity IssueSeverity `json:"severity"`
	Detail   string        `json:"detail"`
}

// QCOutcome is the aggregate quality-control verdict for one sample.
// Issues keep the order the rules were checked in; Advice is the
// deduplicated remediation list, or "None" when nothing is advised.
type QCOutcome struct {
	Status QCStatus  `json:"status"`
	Issues []QCIssue `json:"issues"`
	Advice string    `json:"advice"`
}

// Failed reports whether the sample failed quality control outright.
func (q QCOutcome) Failed() bool {
	return q.Status == QC_FAIL
}

// HardIssues returns the blocking issues in evaluation order.
func (q QCOutcome) HardIssues() []QCIssue {
	var hard []QCIssue
	for _, issue := range q.Issues {
		if issue.Severity == ISSUE_HARD {
			hard = append(hard, issue)
		}
	}
	return hard
}

// LogFields summarizes the outcome for structured logs.
func (q QCOutcome) LogFields() map[string]any {
	return map[string]any{
		"qc_status":   string(q.Status),
		"issue_count": len(q.Issues),
		"hard_count":  len(q.HardIssues()),
		"advice":      q.Advice,
	}
}

// Reportability is the release decision for one classification result.
type Reportability struct {
	Reportable bool   `json:"reportable"`
	Reason     string `json:"reason"`
}

// CNVClassification pairs a CNV finding with its classification and the
// size band and threshold that produced it.
type CNVClassification struct {
	Finding   CNVFinding           `json:"finding"`
	Band      string               `json:"band"`
	Threshold float64              `json:"threshold"`
	Result    ClassificationResult `json:"result"`
}

// RATClassification pairs a rare-autosomal-trisomy finding with its
// classification.
type RATClassification struct {
	Finding RATFinding           `json:"finding"`
	Result  ClassificationResult `json:"result"`
}

// Interpretation is the complete outcome of interpreting one sample run:
// the three common-trisomy results, the SCA result, per-finding CNV/RAT
// results, the QC outcome, and the folded disposition.
type Interpretation struct {
	Iteration          int                  `json:"iteration"`
	Trisomy21          ClassificationResult `json:"trisomy_21"`
	Trisomy18          ClassificationResult `json:"trisomy_18"`
	Trisomy13          ClassificationResult `json:"trisomy_13"`
	SCA                ClassificationResult `json:"sca"`
	CNV                []CNVClassification  `json:"cnv,omitempty"`
	RAT                []RATClassification  `json:"rat,omitempty"`
	QC                 QCOutcome            `json:"qc"`
	PositiveOrHighRisk bool                 `json:"positive_or_high_risk"`
	Disposition        Disposition          `json:"disposition"`
}

// MainResults returns the four main classification results in the fixed
// order trisomy 21, 18, 13, SCA.
func (i *Interpretation) MainResults() []ClassificationResult {
	return []ClassificationResult{i.Trisomy21, i.Trisomy18, i.Trisomy13, i.SCA}
}

// MainTexts returns the result texts of the four main classifications in
// the same fixed order. Disposition recomputation after a QC override runs
// over exactly these texts.
func (i *Interpretation) MainTexts() []string {
	return []string{i.Trisomy21.Text, i.Trisomy18.Text, i.Trisomy13.Text, i.SCA.Text}
}

// LogFields summarizes the interpretation for the audit log.
func (i *Interpretation) LogFields() map[string]any {
	return map[string]any{
		"iteration":   i.Iteration,
		"disposition": string(i.Disposition),
		"qc_status":   string(i.QC.Status),
		"cnv_count":   len(i.CNV),
		"rat_count":   len(i.RAT),
	}
}
