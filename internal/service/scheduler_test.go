package service

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

func TestSchedulerDisabled(t *testing.T) {
	fixture := newTestService(t)
	logger, _ := test.NewNullLogger()

	scheduler := NewScheduler(logger, fixture.service, domain.SchedulerConfig{Enabled: false})
	require.NoError(t, scheduler.Start())
	assert.Empty(t, scheduler.cron.Entries())
}

func TestSchedulerStartStop(t *testing.T) {
	fixture := newTestService(t)
	logger, _ := test.NewNullLogger()

	scheduler := NewScheduler(logger, fixture.service, domain.SchedulerConfig{
		Enabled:          true,
		VolumeRollupSpec: "0 2 * * *",
		CachePruneSpec:   "30 3 * * *",
	})
	require.NoError(t, scheduler.Start())
	assert.Len(t, scheduler.cron.Entries(), 2)
	scheduler.Stop()
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	fixture := newTestService(t)
	logger, _ := test.NewNullLogger()

	scheduler := NewScheduler(logger, fixture.service, domain.SchedulerConfig{
		Enabled:          true,
		VolumeRollupSpec: "not a cron spec",
	})
	err := scheduler.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to schedule volume rollup")
}

func TestVolumeRollupLogsCounts(t *testing.T) {
	fixture := newTestService(t)

	_, err := fixture.service.InterpretSample(context.Background(), negativeRun())
	require.NoError(t, err)
	_, err = fixture.service.InterpretSample(context.Background(), badGCRun())
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	scheduler := NewScheduler(logger, fixture.service, domain.SchedulerConfig{Enabled: true})
	scheduler.runVolumeRollup()

	var rollup map[string]interface{}
	var reason map[string]interface{}
	for _, entry := range hook.AllEntries() {
		switch entry.Message {
		case "30-day disposition rollup":
			rollup = entry.Data
		case "30-day QC failure reason":
			reason = entry.Data
		}
	}
	require.NotNil(t, rollup, "expected a rollup log entry")
	assert.Equal(t, int64(2), rollup["total"])
	assert.Equal(t, int64(1), rollup["negative"])
	assert.Equal(t, int64(1), rollup["invalid_qc_fail"])

	require.NotNil(t, reason, "expected a QC failure reason entry")
	assert.Contains(t, reason["reason"], "GC content")
	assert.Equal(t, int64(1), reason["count"])
}

func TestCacheSweepFlushesRecords(t *testing.T) {
	fixture := newTestService(t)

	record, err := fixture.service.InterpretSample(context.Background(), negativeRun())
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	scheduler := NewScheduler(logger, fixture.service, domain.SchedulerConfig{Enabled: true})
	scheduler.runCacheSweep()

	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, "Record cache swept", hook.LastEntry().Message)
	assert.Equal(t, 1, hook.LastEntry().Data["records"])

	// The record itself survives in the store.
	fetched, err := fixture.service.GetRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, fetched.ID)
}
