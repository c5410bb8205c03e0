package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// overrideRequest is the body of a staff override application.
type overrideRequest struct {
	Reason     string `json:"reason"`
	ActingUser string `json:"acting_user"`
}

// thresholdBands is the resolved decision table for one test iteration.
type thresholdBands struct {
	Iteration int                 `json:"iteration"`
	Trisomy   domain.TrisomyBands `json:"trisomy"`
	SCA       domain.SCABands     `json:"sca"`
	RAT       domain.RATBands     `json:"rat"`
	CNV       map[string]float64  `json:"cnv"`
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	var verr *domain.ValidationError

	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoOverride):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOverrideExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidIteration),
		errors.Is(err, domain.ErrInvalidKaryotype),
		errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrLISUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}
	c.JSON(status, gin.H{
		"error":          err.Error(),
		"correlation_id": c.GetString("correlation_id"),
	})
}

// handleInterpret interprets a sample run supplied in the request body.
func (s *Server) handleInterpret(c *gin.Context) {
	var run domain.SampleRun
	if err := c.ShouldBindJSON(&run); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "invalid request body: " + err.Error(),
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	record, err := s.service.InterpretSample(c.Request.Context(), &run)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// handleInterpretFromLIS pulls the sample run from the LIS by accession
// and interprets it. An iteration query parameter overrides the
// iteration the LIS reports.
func (s *Server) handleInterpretFromLIS(c *gin.Context) {
	iteration, err := strconv.Atoi(c.DefaultQuery("iteration", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "iteration must be an integer",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	record, err := s.service.InterpretByAccession(c.Request.Context(), c.Param("accession"), iteration)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleGetRecord(c *gin.Context) {
	record, err := s.service.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleListRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := domain.RecordFilter{
		Accession:   c.Query("accession"),
		Disposition: domain.Disposition(c.Query("disposition")),
		Limit:       limit,
		Offset:      offset,
	}

	records, err := s.service.ListRecords(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleRecordHistory(c *gin.Context) {
	records, err := s.service.GetRecordHistory(c.Request.Context(), c.Param("accession"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accession": c.Param("accession"),
		"records":   records,
		"count":     len(records),
	})
}

func (s *Server) handleDeleteRecord(c *gin.Context) {
	if err := s.service.DeleteRecord(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleGetReport serves the rendered report, marking cache hits in the
// X-Cache header.
func (s *Server) handleGetReport(c *gin.Context) {
	payload, fromCache, err := s.service.RenderReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	if fromCache {
		c.Header("X-Cache", "hit")
	} else {
		c.Header("X-Cache", "miss")
	}
	c.Data(http.StatusOK, "application/json", payload)
}

func (s *Server) handleGetReportability(c *gin.Context) {
	decisions, err := s.service.GetReportability(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"record_id":     c.Param("id"),
		"reportability": decisions,
	})
}

func (s *Server) handleApplyOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "invalid request body: " + err.Error(),
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	record, err := s.service.ApplyOverride(c.Request.Context(), c.Param("id"), req.Reason, req.ActingUser)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// handleRevokeOverride withdraws the record's active override. The
// revoking user arrives as a query parameter since DELETE bodies are
// routinely dropped by proxies.
func (s *Server) handleRevokeOverride(c *gin.Context) {
	revokedBy := c.Query("revoked_by")
	if revokedBy == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "revoked_by query parameter is required",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	record, err := s.service.RevokeOverride(c.Request.Context(), c.Param("id"), revokedBy)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleOverrideHistory(c *gin.Context) {
	history, err := s.service.OverrideHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"record_id": c.Param("id"),
		"overrides": history,
		"count":     len(history),
	})
}

func (s *Server) handleDispositionCounts(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("since_days", "30"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "since_days must be a positive integer",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	since := time.Now().AddDate(0, 0, -days)
	counts, err := s.service.DispositionCounts(c.Request.Context(), since)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"since":  since.UTC(),
		"counts": counts,
	})
}

func (s *Server) handleMonthlyVolumes(c *gin.Context) {
	months, err := strconv.Atoi(c.DefaultQuery("months", "12"))
	if err != nil || months <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "months must be a positive integer",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	volumes, err := s.service.MonthlyVolumes(c.Request.Context(), months)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"months":  months,
		"volumes": volumes,
	})
}

func (s *Server) handleQCFailureReasons(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("since_days", "30"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "since_days must be a positive integer",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	since := time.Now().AddDate(0, 0, -days)
	reasons, err := s.service.QCFailureReasons(c.Request.Context(), since)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"since":   since.UTC(),
		"reasons": reasons,
	})
}

// handleThresholds serves the decision tables in force, fully resolved
// per iteration.
func (s *Server) handleThresholds(c *gin.Context) {
	cfg := s.service.Thresholds()

	cnvBands := []string{
		domain.CNVBandGE10, domain.CNVBandGT7, domain.CNVBandGT35, domain.CNVBandLE35,
	}

	iterations := make([]thresholdBands, 0, 3)
	for iteration := 1; iteration <= 3; iteration++ {
		cnv := make(map[string]float64, len(cnvBands))
		for _, band := range cnvBands {
			cnv[band] = cfg.CNVThreshold(band, iteration)
		}
		iterations = append(iterations, thresholdBands{
			Iteration: iteration,
			Trisomy:   cfg.TrisomyBands(iteration),
			SCA:       cfg.SCABands(iteration),
			RAT:       cfg.RATBands(iteration),
			CNV:       cnv,
		})
	}

	panels := gin.H{}
	for _, panel := range cfg.Panels() {
		panels[panel] = cfg.PanelMinReads(panel)
	}

	c.JSON(http.StatusOK, gin.H{
		"iterations": iterations,
		"qc":         cfg.QCLimits(),
		"panels":     panels,
	})
}

func (s *Server) handleGetPanel(c *gin.Context) {
	panel, err := s.service.Panel(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, panel)
}
