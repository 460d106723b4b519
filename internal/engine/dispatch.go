package engine

import (
	"context"
	"sort"

	"github.com/rtossim/core/internal/etm"
	"github.com/rtossim/core/internal/ledger"
	"github.com/rtossim/core/internal/scheduler"
	"github.com/rtossim/core/model"
)

// applyDispatch attempts to hand a core to the segment a scheduling pass
// chose. It acquires every resource the segment still needs (skipping ones
// already held from a prior attempt), arms the core's projected finish
// time on success, or blocks the segment and leaves the core idle on
// denial, per spec.md §4.3 and §4.6.
func (e *Engine) applyDispatch(d scheduler.Decision) {
	seg := e.segments[d.SegmentKey]
	if seg == nil || seg.finished || e.aborted[seg.jobID] {
		return
	}
	core := e.cores[d.ToCore]
	if core == nil {
		return
	}

	if !e.acquireResources(seg, d.ToCore) {
		return
	}

	est, err := e.etmModel.Estimate(context.Background(), seg.remainingTime, core.speed, e.now, etm.Context{
		TaskID: seg.taskID, SubtaskID: seg.subtaskID, SegmentID: seg.segmentID, CoreID: d.ToCore,
	})
	if err != nil || est <= 0 {
		msg := "etm returned a non-positive estimate"
		if err != nil {
			msg = err.Error()
		}
		e.bus.Publish(ledger.Publish{
			Time: e.now, Type: ledger.ErrorEvent, JobID: seg.jobID, SegmentID: seg.segmentID, CorrelationID: seg.jobID,
			Payload: map[string]any{"error": msg, "stage": "etm"},
		})
		return
	}

	csOverhead := e.overheadModel.OnContextSwitch(seg.jobID, d.ToCore)
	migOverhead := 0.0
	if seg.runningOn != "" && seg.runningOn != d.ToCore {
		migOverhead = e.overheadModel.OnMigration(seg.jobID, seg.runningOn, d.ToCore)
	}
	e.now += csOverhead + migOverhead

	core.runningSegment = seg.key()
	core.runningSince = e.now
	core.hasRunningSince = true
	core.finishTime = e.now + est
	core.hasFinishTime = true
	seg.runningOn = d.ToCore
	if !seg.hasStartedAt {
		seg.startedAt = e.now
		seg.hasStartedAt = true
	}
	delete(e.ready, seg.key())

	e.bus.Publish(ledger.Publish{
		Time: e.now, Type: ledger.SegmentStart, JobID: seg.jobID, SegmentID: seg.segmentID, CoreID: d.ToCore, CorrelationID: seg.jobID,
		Payload: map[string]any{
			"segment_key":       seg.key(),
			"subtask_id":        seg.subtaskID,
			"wcet":              seg.wcet,
			"remaining_time":    seg.remainingTime,
			"execution_time":    est,
			"estimated_finish":  core.finishTime,
			"context_overhead":  csOverhead,
			"migration_overhead": migOverhead,
		},
	})
}

// acquireResources requests every resource seg still needs, in required
// order, skipping resources already recorded as held from an earlier
// attempt. On denial it rolls back whatever this attempt freshly acquired
// when the model's acquire policy is atomic_rollback, or leaves them held
// under legacy_sequential so a later redispatch resumes where it left off.
// It returns true only once every required resource is held.
func (e *Engine) acquireResources(seg *runtimeSegment, coreID string) bool {
	policy := e.spec.Scheduler.ResourceAcquirePolicy()
	var acquiredThisAttempt []string

	for _, resourceID := range seg.requiredResources {
		if e.held[seg.key()][resourceID] {
			continue
		}
		proto := e.protocolForResource(resourceID)
		if proto == nil {
			continue
		}
		result := proto.Request(seg.key(), resourceID, coreID, seg.effectivePriority)
		if len(result.PriorityUpdates) > 0 {
			e.applyPriorityUpdates(result.PriorityUpdates)
		}
		if !result.Granted {
			if policy == model.AcquireAtomicRollback {
				e.rollbackAcquired(seg, acquiredThisAttempt)
			}
			seg.blocked = true
			seg.waitingOn = resourceID
			delete(e.ready, seg.key())
			payload := map[string]any{
				"segment_key":             seg.key(),
				"resource_id":             resourceID,
				"reason":                  result.Reason,
				"resource_acquire_policy": string(policy),
			}
			for k, v := range result.Metadata {
				payload[k] = v
			}
			e.addDomainLabel(payload)
			e.bus.Publish(ledger.Publish{
				Time: e.now, Type: ledger.SegmentBlocked, JobID: seg.jobID, SegmentID: seg.segmentID, CoreID: coreID, CorrelationID: seg.jobID,
				Payload: payload,
			})
			return false
		}

		if e.held[seg.key()] == nil {
			e.held[seg.key()] = make(map[string]bool)
		}
		e.held[seg.key()][resourceID] = true
		acquiredThisAttempt = append(acquiredThisAttempt, resourceID)
		acquirePayload := map[string]any{"segment_key": seg.key(), "request_priority": seg.effectivePriority}
		for k, v := range result.Metadata {
			acquirePayload[k] = v
		}
		e.addDomainLabel(acquirePayload)
		e.bus.Publish(ledger.Publish{
			Time: e.now, Type: ledger.ResourceAcquire, JobID: seg.jobID, SegmentID: seg.segmentID, CoreID: coreID, ResourceID: resourceID, CorrelationID: seg.jobID,
			Payload: acquirePayload,
		})
	}
	return true
}

// rollbackAcquired releases every resource seg acquired during a failed
// atomic_rollback attempt, waking whoever that hands the resource to.
func (e *Engine) rollbackAcquired(seg *runtimeSegment, resourceIDs []string) {
	for i := len(resourceIDs) - 1; i >= 0; i-- {
		resourceID := resourceIDs[i]
		proto := e.protocolForResource(resourceID)
		if proto == nil {
			continue
		}
		result := proto.Release(seg.key(), resourceID)
		delete(e.held[seg.key()], resourceID)
		e.bus.Publish(ledger.Publish{
			Time: e.now, Type: ledger.ResourceRelease, JobID: seg.jobID, SegmentID: seg.segmentID, ResourceID: resourceID, CorrelationID: seg.jobID,
			Payload: map[string]any{"segment_key": seg.key(), "reason": "acquire_rollback"},
		})
		if len(result.PriorityUpdates) > 0 {
			e.applyPriorityUpdates(result.PriorityUpdates)
		}
		woken := append([]string(nil), result.Woken...)
		sort.Strings(woken)
		for _, w := range woken {
			e.wakeSegment(w, e.now)
		}
	}
}
