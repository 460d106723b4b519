package engine

import (
	"math"
	"sort"

	"github.com/rtossim/core/internal/ledger"
)

// completeFinishedSegments finishes every core whose armed finish time has
// arrived, in core-id order for determinism.
func (e *Engine) completeFinishedSegments(now float64) {
	for _, cid := range e.coreIDs {
		core := e.cores[cid]
		if !core.hasFinishTime || core.finishTime > now+timeEpsilon {
			continue
		}
		seg := e.segments[core.runningSegment]
		if seg == nil {
			core.hasFinishTime = false
			continue
		}
		e.finishSegment(seg, core, now)
	}
}

// finishSegment retires seg: releases every resource it still holds,
// clears the core, emits SegmentEnd, and cascades readiness to whatever
// comes next in its subtask or job graph.
func (e *Engine) finishSegment(seg *runtimeSegment, core *coreRuntime, now float64) {
	if core.hasRunningSince {
		e.etmModel.OnExec(seg.key(), core.id, now-core.runningSince)
	}
	core.runningSegment = ""
	core.hasRunningSince = false
	core.hasFinishTime = false
	seg.runningOn = ""
	seg.finished = true
	seg.remainingTime = 0
	delete(e.ready, seg.key())

	held := e.held[seg.key()]
	resourceIDs := make([]string, 0, len(held))
	for resourceID := range held {
		resourceIDs = append(resourceIDs, resourceID)
	}
	sort.Strings(resourceIDs)
	for _, resourceID := range resourceIDs {
		proto := e.protocolForResource(resourceID)
		if proto == nil {
			continue
		}
		result := proto.Release(seg.key(), resourceID)
		e.bus.Publish(ledger.Publish{
			Time: now, Type: ledger.ResourceRelease, JobID: seg.jobID, SegmentID: seg.segmentID, ResourceID: resourceID, CorrelationID: seg.jobID,
			Payload: map[string]any{"segment_key": seg.key()},
		})
		if len(result.PriorityUpdates) > 0 {
			e.applyPriorityUpdates(result.PriorityUpdates)
		}
		woken := append([]string(nil), result.Woken...)
		sort.Strings(woken)
		for _, w := range woken {
			e.wakeSegment(w, now)
		}
	}
	delete(e.held, seg.key())

	e.bus.Publish(ledger.Publish{
		Time: now, Type: ledger.SegmentEnd, JobID: seg.jobID, SegmentID: seg.segmentID, CoreID: core.id, CorrelationID: seg.jobID,
		Payload: map[string]any{"segment_key": seg.key(), "subtask_id": seg.subtaskID},
	})

	e.cascadeReadiness(seg, now)
}

// cascadeReadiness advances the subtask this segment belonged to (its next
// segment, if any), then the job's successor subtasks once every
// predecessor has completed, then the job itself once every subtask has.
func (e *Engine) cascadeReadiness(seg *runtimeSegment, now float64) {
	job := e.jobs[seg.jobID]
	if job == nil {
		return
	}
	sub := job.subtasks[seg.subtaskID]
	if sub == nil {
		return
	}

	idx := -1
	for i, k := range sub.segmentKeys {
		if k == seg.key() {
			idx = i
			break
		}
	}
	if idx >= 0 && idx < len(sub.segmentKeys)-1 {
		e.markReady(sub.segmentKeys[idx+1], now)
		return
	}

	sub.completed = true
	job.subtaskCompletion[sub.id] = true

	successors := append([]string(nil), sub.successors...)
	sort.Strings(successors)
	for _, succID := range successors {
		succ := job.subtasks[succID]
		if succ == nil || succ.completed || len(succ.segmentKeys) == 0 {
			continue
		}
		allDone := true
		for _, pred := range succ.predecessors {
			if !job.subtaskCompletion[pred] {
				allDone = false
				break
			}
		}
		if allDone {
			e.markReady(succ.segmentKeys[0], now)
		}
	}

	for _, sr := range job.subtasks {
		if !sr.completed {
			return
		}
	}
	job.completed = true

	payload := map[string]any{"task_id": job.taskID, "release_time": job.releaseTime}
	if job.hasAbsoluteDeadline {
		payload["absolute_deadline"] = job.absoluteDeadline
		payload["lateness"] = math.Max(0, now-job.absoluteDeadline)
	}
	payload["response_time"] = now - job.releaseTime
	e.bus.Publish(ledger.Publish{
		Time: now, Type: ledger.JobComplete, JobID: job.jobID, CorrelationID: job.jobID,
		Payload: payload,
	})
}
