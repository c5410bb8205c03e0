package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// rollupWindow is the look-back for the scheduled disposition rollup.
const rollupWindow = 30 * 24 * time.Hour

// Scheduler runs the periodic maintenance jobs: a nightly disposition
// rollup written to the log and a sweep of the in-process record cache.
type Scheduler struct {
	logger  *logrus.Logger
	service *InterpretationService
	config  domain.SchedulerConfig
	cron    *cron.Cron
}

// NewScheduler creates a scheduler around the interpretation service.
func NewScheduler(logger *logrus.Logger, service *InterpretationService, config domain.SchedulerConfig) *Scheduler {
	return &Scheduler{
		logger:  logger,
		service: service,
		config:  config,
		cron:    cron.New(),
	}
}

// Start registers the configured jobs and launches the cron loop. A
// disabled scheduler starts nothing and returns nil.
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler disabled")
		return nil
	}

	if spec := s.config.VolumeRollupSpec; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.runVolumeRollup); err != nil {
			return fmt.Errorf("failed to schedule volume rollup: %w", err)
		}
	}
	if spec := s.config.CachePruneSpec; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.runCacheSweep); err != nil {
			return fmt.Errorf("failed to schedule cache sweep: %w", err)
		}
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"volume_rollup": s.config.VolumeRollupSpec,
		"cache_sweep":   s.config.CachePruneSpec,
	}).Info("Scheduler started")

	return nil
}

// Stop halts the cron loop. Jobs already running finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}

// runVolumeRollup logs a summary of recent interpretation activity so
// the nightly log carries the lab's volume without a dashboard query.
func (s *Scheduler) runVolumeRollup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	counts, err := s.service.DispositionCounts(ctx, time.Now().Add(-rollupWindow))
	if err != nil {
		s.logger.WithError(err).Warn("Disposition rollup failed")
		return
	}

	fields := logrus.Fields{}
	var total int64
	for _, c := range counts {
		fields[strings.ToLower(string(c.Disposition))] = c.Count
		total += c.Count
	}
	fields["total"] = total
	s.logger.WithFields(fields).Info("30-day disposition rollup")

	volumes, err := s.service.MonthlyVolumes(ctx, 12)
	if err != nil {
		s.logger.WithError(err).Warn("Monthly volume rollup failed")
		return
	}
	for _, v := range volumes {
		s.logger.WithFields(logrus.Fields{
			"month": v.Month,
			"count": v.Count,
		}).Info("Monthly interpretation volume")
	}

	reasons, err := s.service.QCFailureReasons(ctx, time.Now().Add(-rollupWindow))
	if err != nil {
		s.logger.WithError(err).Warn("QC failure rollup failed")
		return
	}
	for _, r := range reasons {
		s.logger.WithFields(logrus.Fields{
			"reason": r.Reason,
			"count":  r.Count,
		}).Info("30-day QC failure reason")
	}
}

// runCacheSweep flushes the in-process record cache so long-running
// servers pick up records modified outside this process.
func (s *Scheduler) runCacheSweep() {
	flushed := s.service.FlushRecordCache()
	s.logger.WithField("records", flushed).Info("Record cache swept")
}
