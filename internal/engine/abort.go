package engine

import (
	"sort"

	"github.com/rtossim/core/internal/ledger"
)

// abortJob runs the abort cascade of spec.md §4.5: force-preempt whatever
// of this job is running (without requeueing it, since the job is dead),
// cancel every one of its segments from the protocol instances governing
// their resources, and release anything still held.
func (e *Engine) abortJob(jobID string, now float64) {
	job := e.jobs[jobID]
	if job == nil || job.completed || e.aborted[jobID] {
		return
	}
	e.aborted[jobID] = true

	for _, cid := range e.coreIDs {
		core := e.cores[cid]
		if core.runningSegment == "" {
			continue
		}
		seg := e.segments[core.runningSegment]
		if seg != nil && seg.jobID == jobID && !seg.finished {
			e.applyPreempt(seg, cid, "abort_on_miss")
		}
	}

	subtaskIDs := make([]string, 0, len(job.subtasks))
	for id := range job.subtasks {
		subtaskIDs = append(subtaskIDs, id)
	}
	sort.Strings(subtaskIDs)

	for _, id := range subtaskIDs {
		sub := job.subtasks[id]
		for _, segKey := range sub.segmentKeys {
			seg := e.segments[segKey]
			if seg == nil || seg.finished {
				continue
			}
			seg.finished = true
			delete(e.ready, segKey)
			e.cancelSegmentResources(seg, now)
		}
	}
}

// cancelSegmentResources drops seg's interest in (and ownership of) every
// resource it touches, one CancelSegment call per distinct protocol
// instance governing it, emitting a ResourceRelease for each resource it
// actually held.
func (e *Engine) cancelSegmentResources(seg *runtimeSegment, now float64) {
	held := e.held[seg.key()]
	for _, proto := range e.protocolsForSegment(seg) {
		var owned []string
		for resourceID := range held {
			if e.protocolForResource(resourceID) == proto {
				owned = append(owned, resourceID)
			}
		}
		sort.Strings(owned)

		result := proto.CancelSegment(seg.key())

		for _, resourceID := range owned {
			e.bus.Publish(ledger.Publish{
				Time: now, Type: ledger.ResourceRelease, JobID: seg.jobID, SegmentID: seg.segmentID, ResourceID: resourceID, CorrelationID: seg.jobID,
				Payload: map[string]any{"segment_key": seg.key(), "reason": "cancel_segment"},
			})
			delete(held, resourceID)
		}
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
}
