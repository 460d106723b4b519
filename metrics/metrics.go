// Package metrics implements the simulation's domain Metrics Aggregator: a
// stateless-per-call consumer of the event ledger that reports
// simulated-system statistics (deadline miss ratio, utilization, response
// time, lateness). It is distinct from internal/telemetry/metrics, which
// instruments the simulator's own runtime rather than the system it
// simulates.
//
// Grounded on original_source/rtos_sim/metrics/core.py's CoreMetrics, with
// two additions the original leaves out: a jobs_aborted count (derived from
// DeadlineMiss events carrying abort_on_miss=true, since no JobComplete
// ever follows an aborted job) and an explicit core id list passed to
// Report so utilization is reported as 0 for cores that never ran, per
// spec.md §4.9's "cores that never ran must still appear with value 0".
package metrics

import "github.com/rtossim/core/internal/ledger"

// Report is the aggregator's output snapshot.
type Report struct {
	JobsReleased      int
	JobsCompleted     int
	JobsAborted       int
	DeadlineMissCount int
	DeadlineMissRatio float64
	EventCount        int
	MaxTime           float64
	CoreBusyTime      map[string]float64
	CoreUtilization   map[string]float64
	AvgResponseTime   float64
	AvgLateness       float64
	PreemptCount      int
	MigrateCount      int
}

type runningSpan struct {
	start float64
	core  string
}

// Aggregator consumes a simulation's event stream and accumulates the
// counters Report() summarizes. The zero value is not usable; construct
// with NewAggregator.
type Aggregator struct {
	jobRelease       map[string]float64
	jobDeadline      map[string]float64
	jobComplete      map[string]float64
	deadlineMissJobs map[string]bool
	abortedJobs      map[string]bool
	running          map[string]runningSpan
	coreBusy         map[string]float64

	preemptCount int
	migrateCount int
	eventCount   int
	maxTime      float64
}

// NewAggregator constructs an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		jobRelease:       make(map[string]float64),
		jobDeadline:      make(map[string]float64),
		jobComplete:      make(map[string]float64),
		deadlineMissJobs: make(map[string]bool),
		abortedJobs:      make(map[string]bool),
		running:          make(map[string]runningSpan),
		coreBusy:         make(map[string]float64),
	}
}

// Reset wipes the aggregator back to its zero state.
func (a *Aggregator) Reset() {
	*a = *NewAggregator()
}

// Consume folds one event into the running totals. Events may be replayed
// through a fresh Aggregator in any consistent order reproducing the same
// result the live engine run reported, per spec.md §8's round-trip law.
func (a *Aggregator) Consume(evt ledger.Event) {
	a.eventCount++
	if evt.Time > a.maxTime {
		a.maxTime = evt.Time
	}

	switch evt.Type {
	case ledger.JobReleased:
		if evt.JobID == "" {
			return
		}
		a.jobRelease[evt.JobID] = evt.Time
		if d, ok := evt.Payload["absolute_deadline"].(float64); ok {
			a.jobDeadline[evt.JobID] = d
		}

	case ledger.SegmentStart:
		if key := segmentRuntimeKey(evt); key != "" && evt.CoreID != "" {
			a.running[key] = runningSpan{start: evt.Time, core: evt.CoreID}
		}

	case ledger.SegmentEnd:
		a.closeRunningSpan(evt)

	case ledger.Preempt:
		a.closeRunningSpan(evt)
		a.preemptCount++

	case ledger.Migrate:
		a.migrateCount++

	case ledger.DeadlineMiss:
		if evt.JobID == "" {
			return
		}
		a.deadlineMissJobs[evt.JobID] = true
		if abort, ok := evt.Payload["abort_on_miss"].(bool); ok && abort {
			a.abortedJobs[evt.JobID] = true
		}

	case ledger.JobComplete:
		if evt.JobID != "" {
			a.jobComplete[evt.JobID] = evt.Time
		}
	}
}

func (a *Aggregator) closeRunningSpan(evt ledger.Event) {
	key := segmentRuntimeKey(evt)
	if key == "" {
		return
	}
	span, ok := a.running[key]
	if !ok {
		return
	}
	delete(a.running, key)
	if dt := evt.Time - span.start; dt > 0 {
		a.coreBusy[span.core] += dt
	}
}

func segmentRuntimeKey(evt ledger.Event) string {
	if key, ok := evt.Payload["segment_key"].(string); ok && key != "" {
		return key
	}
	return evt.SegmentID
}

// Report summarizes everything consumed so far. coreIDs should list every
// core the platform declares, so a core that never ran still appears with
// utilization 0 rather than being silently absent.
func (a *Aggregator) Report(coreIDs []string) Report {
	var responseTimes, latenessValues []float64
	for jobID, completeTime := range a.jobComplete {
		if releaseTime, ok := a.jobRelease[jobID]; ok {
			responseTimes = append(responseTimes, completeTime-releaseTime)
		}
		if deadline, ok := a.jobDeadline[jobID]; ok {
			latenessValues = append(latenessValues, maxFloat(0, completeTime-deadline))
		}
	}

	denom := len(a.jobRelease)
	if denom == 0 {
		denom = 1
	}

	seen := make(map[string]bool, len(coreIDs))
	busy := make(map[string]float64, len(coreIDs))
	util := make(map[string]float64, len(coreIDs))
	for _, c := range coreIDs {
		seen[c] = true
		busy[c] = a.coreBusy[c]
		util[c] = utilizationOf(a.coreBusy[c], a.maxTime)
	}
	for c, b := range a.coreBusy {
		if seen[c] {
			continue
		}
		busy[c] = b
		util[c] = utilizationOf(b, a.maxTime)
	}

	return Report{
		JobsReleased:      len(a.jobRelease),
		JobsCompleted:     len(a.jobComplete),
		JobsAborted:       len(a.abortedJobs),
		DeadlineMissCount: len(a.deadlineMissJobs),
		DeadlineMissRatio: float64(len(a.deadlineMissJobs)) / float64(denom),
		EventCount:        a.eventCount,
		MaxTime:           a.maxTime,
		CoreBusyTime:      busy,
		CoreUtilization:   util,
		AvgResponseTime:   average(responseTimes),
		AvgLateness:       average(latenessValues),
		PreemptCount:      a.preemptCount,
		MigrateCount:      a.migrateCount,
	}
}

// Aggregate is a convenience one-shot replay over a full event slice,
// exercising the same Consume path a live subscriber would.
func Aggregate(events []ledger.Event, coreIDs []string) Report {
	a := NewAggregator()
	for _, evt := range events {
		a.Consume(evt)
	}
	return a.Report(coreIDs)
}

func utilizationOf(busy, maxTime float64) float64 {
	if maxTime <= 0 {
		return 0
	}
	return busy / maxTime
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
