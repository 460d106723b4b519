package engine

import (
	"sort"

	"github.com/rtossim/core/internal/scheduler"
)

// buildSnapshot materializes the read-only view a Scheduler consults: every
// live ready segment (including whatever is currently running on a core,
// even if it has since left the ready set) plus per-core state. Segment
// order is by sorted key so repeated calls against identical state produce
// an identical snapshot.
func (e *Engine) buildSnapshot() scheduler.Snapshot {
	keys := make(map[string]bool, len(e.ready))
	for k := range e.ready {
		keys[k] = true
	}
	for _, cid := range e.coreIDs {
		if c := e.cores[cid]; c.runningSegment != "" {
			keys[c.runningSegment] = true
		}
	}

	sortedKeys := make([]string, 0, len(keys))
	for k := range keys {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)

	ready := make([]scheduler.ReadySegment, 0, len(sortedKeys))
	for _, k := range sortedKeys {
		seg, ok := e.segments[k]
		if !ok || seg.finished || seg.blocked {
			continue
		}
		if e.aborted[seg.jobID] {
			continue
		}
		ready = append(ready, scheduler.ReadySegment{
			SegmentKey:        k,
			JobID:             seg.jobID,
			SubtaskID:         seg.subtaskID,
			SegmentID:         seg.segmentID,
			EffectivePriority: seg.effectivePriority,
			AbsoluteDeadline:  seg.absoluteDeadline,
			Period:            seg.taskPeriod,
			ReleaseTime:       seg.releaseTime,
			MappingHint:       seg.mappingHint,
		})
	}

	cores := make([]scheduler.CoreState, 0, len(e.coreIDs))
	for _, cid := range e.coreIDs {
		c := e.cores[cid]
		cores = append(cores, scheduler.CoreState{
			CoreID:       cid,
			Running:      c.runningSegment,
			RunningSince: c.runningSince,
			FinishTime:   c.finishTime,
		})
	}

	return scheduler.Snapshot{Now: e.now, Ready: ready, Cores: cores}
}

// priorityDomainLabel names the scheduler's numeric priority domain per
// spec.md's glossary: "absolute_deadline" under EDF-family policies,
// "period" under RM-family, "" for anything else (a custom scheduler has
// no ceiling-compatible domain this engine can name).
func (e *Engine) priorityDomainLabel() string {
	switch schedulerFamily(e.schedulerName) {
	case familyEDF:
		return "absolute_deadline"
	case familyRM:
		return "period"
	default:
		return ""
	}
}

func (e *Engine) addDomainLabel(payload map[string]any) map[string]any {
	if label := e.priorityDomainLabel(); label != "" {
		payload["priority_domain"] = label
	}
	return payload
}
