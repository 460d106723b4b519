package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engine "github.com/rtossim/core"
	"github.com/rtossim/core/internal/ledger"
	"github.com/rtossim/core/model"
)

func singleSegmentOneCoreModel() *model.ModelSpec {
	deadline := 10.0
	return &model.ModelSpec{
		Platform: model.Platform{
			ProcessorTypes: []model.ProcessorType{{ID: "pt0", CoreCount: 1}},
			Cores:          []model.Core{{ID: "c0", SpeedFactor: 1, ProcessorType: "pt0"}},
		},
		Tasks: []model.TaskGraphSpec{{
			ID:       "t0",
			Type:     model.TaskDynamicRT,
			Deadline: &deadline,
			Arrival:  0,
			Subtasks: []model.SubtaskSpec{{
				ID: "s0",
				Segments: []model.SegmentSpec{{
					ID: "seg0", Index: 1, WCET: 1, Preemptible: true,
				}},
			}},
		}},
		Scheduler: model.SchedulerSpec{Name: "edf"},
		Sim:       model.SimSpec{Duration: 10, Seed: 1},
	}
}

func TestEngine_BuildAndRun_SingleSegmentOneCore(t *testing.T) {
	e, err := engine.New(engine.Defaults())
	require.NoError(t, err)

	require.NoError(t, e.Build(singleSegmentOneCoreModel()))
	require.NoError(t, e.Run(nil))

	var types []ledger.EventType
	for _, evt := range e.Events() {
		types = append(types, evt.Type)
	}
	assert.Contains(t, types, ledger.JobReleased)
	assert.Contains(t, types, ledger.SegmentStart)
	assert.Contains(t, types, ledger.SegmentEnd)
	assert.Contains(t, types, ledger.JobComplete)

	report := e.Metrics()
	assert.Equal(t, 1, report.JobsReleased)
	assert.Equal(t, 1, report.JobsCompleted)
	assert.Equal(t, 0, report.DeadlineMissCount)
	assert.InDelta(t, 1.0, report.CoreUtilization["c0"]*report.MaxTime, 1e-9)
}

func TestEngine_Build_RejectsInvalidModel(t *testing.T) {
	e, err := engine.New(engine.Defaults())
	require.NoError(t, err)

	bad := singleSegmentOneCoreModel()
	bad.Tasks[0].Subtasks[0].Segments[0].Index = 7 // breaks contiguity from 1

	err = e.Build(bad)
	assert.Error(t, err)
}

func TestEngine_Subscribe_ReceivesLiveEvents(t *testing.T) {
	e, err := engine.New(engine.Defaults())
	require.NoError(t, err)
	require.NoError(t, e.Build(singleSegmentOneCoreModel()))

	sub := e.Subscribe()
	defer sub.Close()

	require.NoError(t, e.Run(nil))

	first := <-sub.C()
	assert.Equal(t, ledger.JobReleased, first.Type)

	stats := e.LedgerStats()
	assert.Greater(t, stats.Published, int64(0))
}

func TestEngine_MetricsHandler_NilWhenDisabled(t *testing.T) {
	cfg := engine.Defaults()
	cfg.MetricsEnabled = false
	e, err := engine.New(cfg)
	require.NoError(t, err)
	assert.Nil(t, e.MetricsHandler())
}

func TestEngine_MetricsHandler_SetWhenPrometheusEnabled(t *testing.T) {
	cfg := engine.Defaults()
	cfg.MetricsEnabled = true
	cfg.MetricsBackend = "prom"
	e, err := engine.New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, e.MetricsHandler())
}
