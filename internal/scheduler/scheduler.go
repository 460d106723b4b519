// Package scheduler implements the pure priority-dispatch algorithm shared
// by every scheduling policy: given a snapshot of ready segments and core
// state, produce a deterministic set of Preempt/Migrate/Dispatch/Idle
// decisions with no side effects.
//
// Grounded on the shared dispatch algorithm in
// original_source/rtos_sim/schedulers/base.py, generalized into a Go
// interface implemented independently by edf.go and rm.go.
package scheduler

import "sort"

// DecisionAction names one kind of scheduling decision.
type DecisionAction string

const (
	ActionDispatch DecisionAction = "dispatch"
	ActionPreempt  DecisionAction = "preempt"
	ActionMigrate  DecisionAction = "migrate"
	ActionIdle     DecisionAction = "idle"
)

// Decision is one outcome of a scheduling pass.
type Decision struct {
	Action     DecisionAction
	JobID      string
	SegmentKey string
	FromCore   string
	ToCore     string
}

// ReadySegment is a read-only view of one segment eligible to run,
// including the segment currently running on a core (surfaced so the
// scheduler can decide to keep it running).
//
// EffectivePriority is the segment's current priority value in the active
// policy's signed domain (larger is higher priority; see model.SchedulerSpec
// and the protocol package for how it gets boosted by PIP/PCP). It is the
// primary sort key: a priority boost from a resource protocol must be able
// to change dispatch order, which a purely static (absolute_deadline,
// release_time, segment_key) tuple could not express. AbsoluteDeadline,
// Period, ReleaseTime and SegmentKey remain as deterministic tie-breakers
// in the order spec.md's policy descriptions list them.
type ReadySegment struct {
	SegmentKey        string
	JobID             string
	SubtaskID         string
	SegmentID         string
	EffectivePriority float64
	AbsoluteDeadline  float64
	Period            float64
	ReleaseTime       float64
	// MappingHint is the core id this segment is pinned to, or "" if the
	// segment may run on any core.
	MappingHint string
}

// CoreState is a read-only view of one core.
type CoreState struct {
	CoreID       string
	Running      string // segment key, or "" if idle
	RunningSince float64
	FinishTime   float64
}

// Snapshot is the complete, immutable view a Scheduler consults.
type Snapshot struct {
	Now   float64
	Ready []ReadySegment
	Cores []CoreState
}

// Scheduler is a pure function of (now, snapshot) to decisions. It must not
// retain or mutate the snapshot it is given.
type Scheduler interface {
	Name() string
	Schedule(snap Snapshot) []Decision
}

// LessFunc orders two candidates: true means a has strictly higher
// priority than b (should be preferred).
type LessFunc func(a, b ReadySegment) bool

// dispatch runs the shared base algorithm (spec.md §4.2) parameterized by
// a policy-specific priority comparator.
func dispatch(less LessFunc, snap Snapshot) []Decision {
	bySegKey := make(map[string]ReadySegment, len(snap.Ready))
	for _, r := range snap.Ready {
		bySegKey[r.SegmentKey] = r
	}

	cores := append([]CoreState(nil), snap.Cores...)
	sort.SliceStable(cores, func(i, j int) bool { return cores[i].CoreID < cores[j].CoreID })

	claimed := make(map[string]bool, len(snap.Ready))
	assigned := make(map[string]string, len(cores))

	for _, core := range cores {
		var candidates []ReadySegment
		for _, r := range snap.Ready {
			if claimed[r.SegmentKey] {
				continue
			}
			if r.MappingHint != "" && r.MappingHint != core.CoreID {
				continue
			}
			candidates = append(candidates, r)
		}
		if core.Running != "" && !claimed[core.Running] {
			if seg, ok := bySegKey[core.Running]; ok {
				found := false
				for _, c := range candidates {
					if c.SegmentKey == seg.SegmentKey {
						found = true
						break
					}
				}
				if !found {
					candidates = append(candidates, seg)
				}
			}
		}
		if len(candidates) == 0 {
			continue
		}
		sort.SliceStable(candidates, func(i, j int) bool { return less(candidates[i], candidates[j]) })
		best := candidates[0]
		assigned[core.CoreID] = best.SegmentKey
		claimed[best.SegmentKey] = true
	}

	runningCoreOf := func(segKey string) string {
		for _, c := range cores {
			if c.Running == segKey {
				return c.CoreID
			}
		}
		return ""
	}

	var decisions []Decision
	for _, core := range cores {
		chosenKey, hasChosen := assigned[core.CoreID]
		prior := core.Running

		if hasChosen {
			if prior != "" && prior != chosenKey {
				decisions = append(decisions, Decision{Action: ActionPreempt, SegmentKey: prior, FromCore: core.CoreID})
			}
			if prior != chosenKey {
				chosen := bySegKey[chosenKey]
				if fromCore := runningCoreOf(chosenKey); fromCore != "" && fromCore != core.CoreID {
					decisions = append(decisions, Decision{
						Action: ActionMigrate, JobID: chosen.JobID, SegmentKey: chosenKey,
						FromCore: fromCore, ToCore: core.CoreID,
					})
				}
				decisions = append(decisions, Decision{
					Action: ActionDispatch, JobID: chosen.JobID, SegmentKey: chosenKey, ToCore: core.CoreID,
				})
			}
		} else if prior == "" {
			decisions = append(decisions, Decision{Action: ActionIdle, ToCore: core.CoreID})
		}
		// prior != "" && !hasChosen: this segment was claimed by another
		// core's candidate search and is reported via that core's Migrate
		// decision; this core emits nothing further for it.
	}
	return decisions
}
