package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/analysis"
	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// classifyTrisomyParams are the arguments for the classify_trisomy tool.
type classifyTrisomyParams struct {
	Chromosome string  `json:"chromosome"`
	ZScore     float64 `json:"z_score"`
	Iteration  int     `json:"iteration"`
}

// recordIDParams address a previously interpreted record by its ID.
type recordIDParams struct {
	RecordID string `json:"record_id"`
}

// applyOverrideParams are the arguments for the apply_override tool.
type applyOverrideParams struct {
	RecordID   string `json:"record_id"`
	Reason     string `json:"reason"`
	ActingUser string `json:"acting_user"`
}

// revokeOverrideParams are the arguments for the revoke_override tool.
type revokeOverrideParams struct {
	RecordID  string `json:"record_id"`
	RevokedBy string `json:"revoked_by"`
}

// importOverridesParams are the arguments for the import_overrides tool.
type importOverridesParams struct {
	FilePath string `json:"file_path"`
}

// iterationBands is the resolved decision table for one test iteration.
type iterationBands struct {
	Iteration int                 `json:"iteration"`
	Trisomy   domain.TrisomyBands `json:"trisomy"`
	SCA       domain.SCABands     `json:"sca"`
	RAT       domain.RATBands     `json:"rat"`
	CNV       map[string]float64  `json:"cnv"`
}

// thresholdListing is the full snapshot returned by list_thresholds.
type thresholdListing struct {
	Iterations []iterationBands   `json:"iterations"`
	QC         domain.QCLimits    `json:"qc"`
	Panels     map[string]float64 `json:"panels"`
}

// exportOverridesResult reports the outcome of export_overrides.
type exportOverridesResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
	Message  string `json:"message"`
}

// importOverridesResult reports the outcome of import_overrides.
type importOverridesResult struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

// overrideArchiver is implemented by stores that can dump and restore
// their audit trail. The embedded SQLite store qualifies.
type overrideArchiver interface {
	ExportJSON(ctx context.Context, writer io.Writer) error
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)
}

// registerTools registers every tool with the MCP SDK server.
func (s *Server) registerTools() {
	registrations := []struct {
		tool    *mcp.Tool
		handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)
	}{
		{
			tool: &mcp.Tool{
				Name: "interpret_sample",
				Description: "Interpret one NIPT sample run end to end: QC evaluation, " +
					"trisomy 21/18/13, sex-chromosome, CNV and RAT classification, and the " +
					"folded disposition. Takes the sample run as JSON (accession, iteration, " +
					"karyotype, metrics, z_scores, optional cnv_findings and rat_findings); " +
					"iteration defaults to 1. The record is kept for follow-up tools.",
			},
			handler: s.handleInterpretSample,
		},
		{
			tool: &mcp.Tool{
				Name: "classify_trisomy",
				Description: "Classify a single Z-score for chromosome 21, 18 or 13 at a " +
					"given test iteration (1-3) without creating a record.",
			},
			handler: s.handleClassifyTrisomy,
		},
		{
			tool: &mcp.Tool{
				Name: "check_reportability",
				Description: "Report, per condition, whether the results of an interpreted " +
					"record may be released to the clinician, honoring QC status and any " +
					"active override. Takes the record_id returned by interpret_sample.",
			},
			handler: s.handleCheckReportability,
		},
		{
			tool: &mcp.Tool{
				Name: "list_thresholds",
				Description: "List the decision thresholds in force: per-iteration trisomy, " +
					"SCA, RAT and CNV bands plus QC limits and panel read minimums.",
			},
			handler: s.handleListThresholds,
		},
		{
			tool: &mcp.Tool{
				Name: "apply_override",
				Description: "Apply a staff QC override to an interpreted record, recomputing " +
					"the effective disposition from the classification results. The override " +
					"is persisted to the embedded audit store.",
			},
			handler: s.handleApplyOverride,
		},
		{
			tool: &mcp.Tool{
				Name: "revoke_override",
				Description: "Revoke the active override on a record, restoring the " +
					"disposition computed at interpretation time.",
			},
			handler: s.handleRevokeOverride,
		},
		{
			tool: &mcp.Tool{
				Name:        "export_overrides",
				Description: "Export the full override audit trail to a JSON file for backup.",
			},
			handler: s.handleExportOverrides,
		},
		{
			tool: &mcp.Tool{
				Name:        "import_overrides",
				Description: "Import overrides from a JSON backup file. Skips duplicates.",
			},
			handler: s.handleImportOverrides,
		},
	}

	for _, reg := range registrations {
		s.mcpServer.AddTool(reg.tool, reg.handler)
		s.logger.WithField("tool_name", reg.tool.Name).Debug("Registered MCP tool")
	}
	s.logger.WithField("tool_count", len(registrations)).Info("Registered all tools")
}

func (s *Server) handleInterpretSample(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runInterpretSample(req.Params.Arguments.(json.RawMessage)), nil
}

func (s *Server) handleClassifyTrisomy(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runClassifyTrisomy(req.Params.Arguments.(json.RawMessage)), nil
}

func (s *Server) handleCheckReportability(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runCheckReportability(ctx, req.Params.Arguments.(json.RawMessage)), nil
}

func (s *Server) handleListThresholds(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runListThresholds(), nil
}

func (s *Server) handleApplyOverride(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runApplyOverride(ctx, req.Params.Arguments.(json.RawMessage)), nil
}

func (s *Server) handleRevokeOverride(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runRevokeOverride(ctx, req.Params.Arguments.(json.RawMessage)), nil
}

func (s *Server) handleExportOverrides(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runExportOverrides(ctx), nil
}

func (s *Server) handleImportOverrides(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runImportOverrides(ctx, req.Params.Arguments.(json.RawMessage)), nil
}

func (s *Server) runInterpretSample(raw json.RawMessage) *mcp.CallToolResult {
	var run domain.SampleRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return errorResult("invalid sample run", err)
	}
	run.Accession = strings.TrimSpace(run.Accession)
	if run.Iteration == 0 {
		run.Iteration = 1
	}
	if err := run.Validate(); err != nil {
		return errorResult("invalid sample run", err)
	}

	interp := analysis.Interpret(s.thresholds, &run)

	now := time.Now().UTC()
	record := &domain.TestRecord{
		ID:             uuid.New().String(),
		Accession:      run.Accession,
		Iteration:      run.Iteration,
		Karyotype:      run.Karyotype,
		Metrics:        run.Metrics,
		ZScores:        run.ZScores.Clone(),
		Interpretation: *interp,
		Disposition:    interp.Disposition,
		QCStatus:       interp.QC.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.recent.Add(record.ID, record)

	s.logger.WithFields(record.LogFields()).Info("Sample interpreted")

	text := fmt.Sprintf("Sample %s (iteration %d): disposition %s, QC %s. Record %s kept for follow-up tools.",
		record.Accession, record.Iteration, record.Disposition, record.QCStatus, record.ID)
	return textResult(text, record)
}

func (s *Server) runClassifyTrisomy(raw json.RawMessage) *mcp.CallToolResult {
	var params classifyTrisomyParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return errorResult("invalid parameters", err)
	}

	chromosome := strings.TrimSpace(params.Chromosome)
	switch chromosome {
	case "21", "18", "13":
	default:
		return errorResult("invalid parameters",
			fmt.Errorf("chromosome must be 21, 18 or 13, got %q: %w", params.Chromosome, domain.ErrInvalidInput))
	}
	if params.Iteration == 0 {
		params.Iteration = 1
	}
	if params.Iteration < 1 || params.Iteration > 3 {
		return errorResult("invalid parameters",
			fmt.Errorf("%w: iteration %d", domain.ErrInvalidIteration, params.Iteration))
	}

	result := analysis.ClassifyTrisomy(s.thresholds, chromosome, params.ZScore, params.Iteration)

	text := fmt.Sprintf("Chromosome %s, iteration %d: %s (tier %s)",
		chromosome, params.Iteration, result.Text, result.Tier)
	return textResult(text, result)
}

func (s *Server) runCheckReportability(ctx context.Context, raw json.RawMessage) *mcp.CallToolResult {
	var params recordIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return errorResult("invalid parameters", err)
	}

	record, err := s.cachedRecord(params.RecordID)
	if err != nil {
		return errorResult("record lookup failed", err)
	}

	override, err := s.overrides.ActiveForRecord(ctx, record.ID)
	if err != nil {
		return errorResult("failed to look up active override", err)
	}

	interp := record.Interpretation
	report := analysis.AttachReportability(&interp, override != nil)

	reportable := 0
	for _, entry := range report {
		if entry.Reportable {
			reportable++
		}
	}
	text := fmt.Sprintf("Record %s: %d of %d results reportable (QC %s, override active: %t)",
		record.ID, reportable, len(report), record.QCStatus, override != nil)
	return textResult(text, report)
}

func (s *Server) runListThresholds() *mcp.CallToolResult {
	cnvBands := []string{
		domain.CNVBandGE10, domain.CNVBandGT7, domain.CNVBandGT35, domain.CNVBandLE35,
	}

	listing := thresholdListing{
		Iterations: make([]iterationBands, 0, 3),
		QC:         s.thresholds.QCLimits(),
		Panels:     make(map[string]float64),
	}
	for iteration := 1; iteration <= 3; iteration++ {
		cnv := make(map[string]float64, len(cnvBands))
		for _, band := range cnvBands {
			cnv[band] = s.thresholds.CNVThreshold(band, iteration)
		}
		listing.Iterations = append(listing.Iterations, iterationBands{
			Iteration: iteration,
			Trisomy:   s.thresholds.TrisomyBands(iteration),
			SCA:       s.thresholds.SCABands(iteration),
			RAT:       s.thresholds.RATBands(iteration),
			CNV:       cnv,
		})
	}
	for _, panel := range s.thresholds.Panels() {
		listing.Panels[panel] = s.thresholds.PanelMinReads(panel)
	}

	text := fmt.Sprintf("Threshold snapshot: %d iterations, %d panels, QC fetal fraction minimum %.1f%%",
		len(listing.Iterations), len(listing.Panels), listing.QC.FFMin)
	return textResult(text, listing)
}

func (s *Server) runApplyOverride(ctx context.Context, raw json.RawMessage) *mcp.CallToolResult {
	var params applyOverrideParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return errorResult("invalid parameters", err)
	}

	record, err := s.cachedRecord(params.RecordID)
	if err != nil {
		return errorResult("record lookup failed", err)
	}

	override := &domain.Override{
		RecordID:   record.ID,
		Reason:     params.Reason,
		ActingUser: params.ActingUser,
	}
	if err := s.overrides.Save(ctx, override); err != nil {
		return errorResult("failed to save override", err)
	}

	updated := *record
	updated.OverrideActive = true
	if record.QCStatus == domain.QC_FAIL {
		texts := make([]string, 0, 4)
		for _, result := range record.Interpretation.MainResults() {
			texts = append(texts, result.Text)
		}
		updated.Disposition = analysis.RecomputeDisposition(texts,
			len(record.Interpretation.CNV), len(record.Interpretation.RAT))
	}
	updated.UpdatedAt = time.Now().UTC()
	s.recent.Add(updated.ID, &updated)

	s.logger.WithFields(logrus.Fields{
		"record_id":   updated.ID,
		"acting_user": params.ActingUser,
		"disposition": string(updated.Disposition),
	}).Info("Override applied")

	text := fmt.Sprintf("Override applied to record %s by %s; effective disposition %s.",
		updated.ID, params.ActingUser, updated.Disposition)
	return textResult(text, &updated)
}

func (s *Server) runRevokeOverride(ctx context.Context, raw json.RawMessage) *mcp.CallToolResult {
	var params revokeOverrideParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return errorResult("invalid parameters", err)
	}

	record, err := s.cachedRecord(params.RecordID)
	if err != nil {
		return errorResult("record lookup failed", err)
	}

	active, err := s.overrides.ActiveForRecord(ctx, record.ID)
	if err != nil {
		return errorResult("failed to look up active override", err)
	}
	if active == nil {
		return errorResult("no active override",
			fmt.Errorf("record %s has no active override: %w", record.ID, domain.ErrNoOverride))
	}
	if err := s.overrides.Revoke(ctx, active.ID, params.RevokedBy); err != nil {
		return errorResult("failed to revoke override", err)
	}

	updated := *record
	updated.OverrideActive = false
	updated.Disposition = record.Interpretation.Disposition
	updated.UpdatedAt = time.Now().UTC()
	s.recent.Add(updated.ID, &updated)

	s.logger.WithFields(logrus.Fields{
		"record_id":   updated.ID,
		"revoked_by":  params.RevokedBy,
		"disposition": string(updated.Disposition),
	}).Info("Override revoked")

	text := fmt.Sprintf("Override on record %s revoked by %s; disposition restored to %s.",
		updated.ID, params.RevokedBy, updated.Disposition)
	return textResult(text, &updated)
}

func (s *Server) runExportOverrides(ctx context.Context) *mcp.CallToolResult {
	archiver, ok := s.overrides.(overrideArchiver)
	if !ok {
		return errorResult("export not supported",
			fmt.Errorf("override store %T cannot export", s.overrides))
	}

	exportDir := s.config.ExportDir()
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return errorResult("failed to create export directory", err)
	}

	filename := fmt.Sprintf("overrides_export_%s.json", time.Now().Format("20060102_150405"))
	filePath := filepath.Join(exportDir, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return errorResult("failed to create export file", err)
	}
	defer file.Close()

	if err := archiver.ExportJSON(ctx, file); err != nil {
		s.logger.WithError(err).Error("Failed to export overrides")
		return errorResult("failed to export overrides", err)
	}

	count, _ := s.overrides.Count(ctx)
	result := exportOverridesResult{
		Success:  true,
		FilePath: filePath,
		Count:    count,
		Message:  fmt.Sprintf("Exported %d overrides to %s", count, filePath),
	}
	return textResult(result.Message, result)
}

func (s *Server) runImportOverrides(ctx context.Context, raw json.RawMessage) *mcp.CallToolResult {
	var params importOverridesParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return errorResult("invalid parameters", err)
	}
	if strings.TrimSpace(params.FilePath) == "" {
		return errorResult("invalid parameters",
			fmt.Errorf("file_path is required: %w", domain.ErrInvalidInput))
	}

	archiver, ok := s.overrides.(overrideArchiver)
	if !ok {
		return errorResult("import not supported",
			fmt.Errorf("override store %T cannot import", s.overrides))
	}

	file, err := os.Open(params.FilePath)
	if err != nil {
		return errorResult("failed to open import file", err)
	}
	defer file.Close()

	imported, skipped, err := archiver.ImportJSON(ctx, file)
	if err != nil {
		s.logger.WithError(err).Error("Failed to import overrides")
		return errorResult("failed to import overrides", err)
	}

	result := importOverridesResult{
		Success:  true,
		Imported: imported,
		Skipped:  skipped,
		Message:  fmt.Sprintf("Imported %d overrides, skipped %d duplicates", imported, skipped),
	}
	return textResult(result.Message, result)
}

// cachedRecord resolves a record interpreted earlier in this session.
func (s *Server) cachedRecord(id string) (*domain.TestRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("record_id is required: %w", domain.ErrInvalidInput)
	}
	record, ok := s.recent.Get(id)
	if !ok {
		return nil, fmt.Errorf("record %s not interpreted in this session: %w", id, domain.ErrNotFound)
	}
	return record, nil
}

// errorResult wraps a failure as a tool result visible to the caller.
func errorResult(message string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Error: %s - %v", message, err)},
		},
		IsError: true,
	}
}

// textResult pairs a human-readable summary with the structured payload.
func textResult(text string, payload interface{}) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
	if payload != nil {
		result.Meta = map[string]interface{}{"result": payload}
	}
	return result
}
