package engine

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"github.com/rtossim/core/internal/arrival"
	"github.com/rtossim/core/internal/ledger"
	"github.com/rtossim/core/internal/scheduler"
	"github.com/rtossim/core/model"
)

// advanceOnce runs exactly one pass of spec.md §4.4's tick loop: process due
// releases, check for deadline misses, consult the scheduler and apply its
// decisions, compute the next event time, advance the clock to it, re-check
// deadlines, and complete whatever finished along the way. It returns false
// once no further progress is possible (nothing left to release, run, or
// miss a deadline on) so Run/Step know to stop looping.
func (e *Engine) advanceOnce(horizon float64) bool {
	publishedBefore := e.bus.Stats().Published
	startNow := e.now

	e.processDueReleases(e.now)
	e.checkDeadlineMiss(e.now)
	e.runSchedulingPass()

	// Work-conserving safety net (spec.md §4.4 step 4, §9): a preempt and a
	// blocked dispatch in the same pass can leave a core idle with ready
	// work still pending. Keep re-running scheduling while that's true; a
	// pass that changes nothing ends the loop. This can't be gated on
	// nextEventTime being empty, since an active job's own deadline keeps
	// it non-empty even while a core it could run on sits idle.
	for e.anyCoreIdle() && len(e.ready) > 0 {
		publishedSoFar := e.bus.Stats().Published
		readySoFar := len(e.ready)
		e.runSchedulingPass()
		if e.bus.Stats().Published == publishedSoFar && len(e.ready) == readySoFar {
			break
		}
	}

	next, ok := e.nextEventTime()
	if !ok {
		return e.bus.Stats().Published > publishedBefore
	}

	if next > horizon {
		next = horizon
	}
	if next < e.now {
		next = e.now
	}
	e.now = next

	e.checkDeadlineMiss(e.now)
	e.completeFinishedSegments(e.now)

	return e.now > startNow || e.bus.Stats().Published > publishedBefore
}

// processDueReleases pops and materializes every release heap entry due at
// or before now (within deadlineEpsilon), in heap order, which is already
// (time, index, task_id) per spec.md §4.4.
func (e *Engine) processDueReleases(now float64) {
	for len(e.releases) > 0 && e.releases[0].time <= now+deadlineEpsilon {
		entry := heap.Pop(&e.releases).(releaseEntry)
		e.releaseJob(entry, entry.time)
	}
}

// releaseJob materializes one release: a new job, a fresh runtime segment
// per model segment, root subtasks marked ready, and — if the task
// releases again — the next entry pushed onto the release heap.
func (e *Engine) releaseJob(entry releaseEntry, releaseTime float64) {
	task := e.tasksByID[entry.taskID]
	if task == nil {
		return
	}
	jobID := fmt.Sprintf("%s@%d", entry.taskID, entry.index)
	priority := e.taskPriorityValue(task.Deadline, task.Period)

	job := &jobRuntime{
		jobID:             jobID,
		taskID:            entry.taskID,
		releaseTime:       releaseTime,
		task:              task,
		subtasks:          make(map[string]*subtaskRuntime, len(task.Subtasks)),
		subtaskCompletion: make(map[string]bool, len(task.Subtasks)),
	}
	if task.Deadline != nil {
		job.absoluteDeadline = releaseTime + *task.Deadline
		job.hasAbsoluteDeadline = true
	}

	for _, sub := range task.Subtasks {
		sr := &subtaskRuntime{
			id:           sub.ID,
			predecessors: append([]string(nil), sub.Predecessors...),
			successors:   append([]string(nil), sub.Successors...),
		}

		segsCopy := append([]model.SegmentSpec(nil), sub.Segments...)
		sort.Slice(segsCopy, func(i, j int) bool { return segsCopy[i].Index < segsCopy[j].Index })

		for _, seg := range segsCopy {
			rs := &runtimeSegment{
				taskID:            entry.taskID,
				jobID:             jobID,
				subtaskID:         sub.ID,
				segmentID:         seg.ID,
				index:             seg.Index,
				wcet:              seg.WCET,
				remainingTime:     seg.WCET,
				requiredResources: sortedCopy(seg.RequiredResources),
				preemptible:       seg.Preemptible,
				releaseTime:       releaseTime,
				basePriority:      priority,
				effectivePriority: priority,
			}
			if seg.MappingHint != nil {
				rs.mappingHint = *seg.MappingHint
			}
			if job.hasAbsoluteDeadline {
				rs.absoluteDeadline = job.absoluteDeadline
				rs.hasAbsoluteDeadline = true
			}
			if task.Period != nil {
				rs.taskPeriod = *task.Period
				rs.hasTaskPeriod = true
			}
			e.segments[rs.key()] = rs
			sr.segmentKeys = append(sr.segmentKeys, rs.key())
		}
		job.subtasks[sub.ID] = sr
	}
	e.jobs[jobID] = job

	deadlinePayload := map[string]any{"task_id": entry.taskID, "release_index": entry.index}
	if job.hasAbsoluteDeadline {
		deadlinePayload["absolute_deadline"] = job.absoluteDeadline
	}
	e.bus.Publish(ledger.Publish{
		Time: releaseTime, Type: ledger.JobReleased, JobID: jobID, CorrelationID: jobID,
		Payload: deadlinePayload,
	})

	var roots []string
	for id, sr := range job.subtasks {
		if len(sr.predecessors) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	for _, id := range roots {
		sr := job.subtasks[id]
		if len(sr.segmentKeys) == 0 {
			continue
		}
		e.markReady(sr.segmentKeys[0], releaseTime)
	}

	if next, ok := e.computeNextRelease(task, entry); ok {
		if next <= e.spec.Sim.Duration+deadlineEpsilon {
			idx := e.releaseIdx[entry.taskID]
			heap.Push(&e.releases, releaseEntry{time: next, index: idx, taskID: entry.taskID})
			e.releaseIdx[entry.taskID] = idx + 1
		}
	}
}

// sortedCopy returns resources in ascending order, satisfying spec.md §8's
// invariant that ResourceAcquire events precede a SegmentStart in ascending
// resource_id order.
func sortedCopy(resources []string) []string {
	out := append([]string(nil), resources...)
	sort.Strings(out)
	return out
}

// markReady flags segKey as ready and emits its SegmentReady event.
func (e *Engine) markReady(segKey string, now float64) {
	seg, ok := e.segments[segKey]
	if !ok {
		return
	}
	e.ready[segKey] = true
	e.bus.Publish(ledger.Publish{
		Time: now, Type: ledger.SegmentReady, JobID: seg.jobID, SegmentID: seg.segmentID, CorrelationID: seg.jobID,
		Payload: map[string]any{"segment_key": segKey, "subtask_id": seg.subtaskID},
	})
}

// wakeSegment flags a previously blocked segment ready again and emits
// SegmentUnblocked, skipping dead or aborted segments.
func (e *Engine) wakeSegment(segKey string, now float64) {
	seg, ok := e.segments[segKey]
	if !ok || seg.finished || e.aborted[seg.jobID] {
		return
	}
	seg.blocked = false
	seg.waitingOn = ""
	e.ready[segKey] = true
	e.bus.Publish(ledger.Publish{
		Time: now, Type: ledger.SegmentUnblocked, JobID: seg.jobID, SegmentID: seg.segmentID, CorrelationID: seg.jobID,
		Payload: map[string]any{"segment_key": segKey},
	})
}

// computeNextRelease returns the next release time for task, given the
// entry just processed, and whether it releases again at all. Fixed-period
// tasks simply add the period; tasks with a registered arrival generator
// ask it for the next interval; everything else is one-shot.
func (e *Engine) computeNextRelease(task *model.TaskGraphSpec, entry releaseEntry) (float64, bool) {
	if task.Period != nil {
		return entry.time + *task.Period, true
	}
	gen, ok := e.arrivalGens[task.ID]
	if !ok {
		return 0, false
	}
	params := e.arrivalParams[task.ID]
	interval, err := gen.NextInterval(arrival.Request{
		TaskID: task.ID, Now: e.now, CurrentRelease: entry.time,
		ReleaseIndex: entry.index + 1, Params: params, Rng: e.rng,
	})
	if err != nil {
		e.bus.Publish(ledger.Publish{
			Time: e.now, Type: ledger.ErrorEvent, JobID: fmt.Sprintf("%s@%d", task.ID, entry.index), CorrelationID: task.ID,
			Payload: map[string]any{"error": err.Error(), "stage": "arrival"},
		})
		return 0, false
	}
	if interval <= 0 {
		return 0, false
	}
	return entry.time + interval, true
}

// checkDeadlineMiss marks every active job whose absolute deadline has
// passed, firing DeadlineMiss and running the abort cascade when the task
// requests it. Jobs are visited in sorted id order for determinism.
func (e *Engine) checkDeadlineMiss(now float64) {
	ids := make([]string, 0, len(e.jobs))
	for id := range e.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		job := e.jobs[id]
		if job.completed || job.missedDeadline || e.aborted[id] {
			continue
		}
		if !job.hasAbsoluteDeadline || job.absoluteDeadline > now+deadlineEpsilon {
			continue
		}
		job.missedDeadline = true
		e.bus.Publish(ledger.Publish{
			Time: now, Type: ledger.DeadlineMiss, JobID: id, CorrelationID: id,
			Payload: map[string]any{"absolute_deadline": job.absoluteDeadline, "abort_on_miss": job.task.AbortOnMiss},
		})
		if job.task.AbortOnMiss {
			e.abortJob(id, now)
		}
	}
}

// anyCoreIdle reports whether at least one core is currently running
// nothing.
func (e *Engine) anyCoreIdle() bool {
	for _, c := range e.cores {
		if c.runningSegment == "" {
			return true
		}
	}
	return false
}

// nextEventTime is the minimum of the release heap's top, every core's
// projected finish time, and every active job's absolute_deadline+epsilon.
func (e *Engine) nextEventTime() (float64, bool) {
	best := math.Inf(1)
	found := false

	if len(e.releases) > 0 {
		best = e.releases[0].time
		found = true
	}
	for _, cid := range e.coreIDs {
		c := e.cores[cid]
		if c.hasFinishTime && (!found || c.finishTime < best) {
			best = c.finishTime
			found = true
		}
	}
	for _, job := range e.jobs {
		if job.completed || job.missedDeadline || e.aborted[job.jobID] || !job.hasAbsoluteDeadline {
			continue
		}
		t := job.absoluteDeadline + deadlineEpsilon
		if !found || t < best {
			best = t
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return best, true
}

// runSchedulingPass consults the scheduler against the current snapshot,
// charges its decision overhead to the clock, and applies the result.
func (e *Engine) runSchedulingPass() {
	if e.sched == nil {
		return
	}
	snap := e.buildSnapshot()
	decisions := e.sched.Schedule(snap)
	e.now += e.overheadModel.OnSchedule(e.sched.Name())
	e.applyDecisions(decisions)
}

// applyDecisions applies every Preempt, then every Migrate (bookkeeping
// only), then every Dispatch, per spec.md §4.4 step 3. A preempt that the
// engine refuses (segment not preemptible) also suppresses that core's
// corresponding migrate/dispatch this round, since the core never actually
// became free.
func (e *Engine) applyDecisions(decisions []scheduler.Decision) {
	var preempts, migrates, dispatches []scheduler.Decision
	for _, d := range decisions {
		switch d.Action {
		case scheduler.ActionPreempt:
			preempts = append(preempts, d)
		case scheduler.ActionMigrate:
			migrates = append(migrates, d)
		case scheduler.ActionDispatch:
			dispatches = append(dispatches, d)
		}
	}

	skippedCores := make(map[string]bool)
	for _, d := range preempts {
		seg := e.segments[d.SegmentKey]
		if seg == nil || seg.finished || e.aborted[seg.jobID] {
			continue
		}
		if !seg.preemptible {
			skippedCores[d.FromCore] = true
			continue
		}
		e.applyPreempt(seg, d.FromCore, "")
	}
	for _, d := range migrates {
		if skippedCores[d.ToCore] {
			continue
		}
		e.bus.Publish(ledger.Publish{
			Time: e.now, Type: ledger.Migrate, JobID: d.JobID, SegmentID: e.segmentIDOf(d.SegmentKey), CoreID: d.ToCore, CorrelationID: d.JobID,
			Payload: map[string]any{"from_core": d.FromCore, "to_core": d.ToCore},
		})
	}
	for _, d := range dispatches {
		if skippedCores[d.ToCore] {
			continue
		}
		e.applyDispatch(d)
	}
}

func (e *Engine) segmentIDOf(segKey string) string {
	if seg, ok := e.segments[segKey]; ok {
		return seg.segmentID
	}
	return ""
}

// applyPreempt stops seg wherever it is running, debits elapsed work from
// its remaining time, and requeues it unless it is finished or its job has
// been aborted. started_at is preserved across a preempt: it marks the
// segment's lifecycle start, not its current run (spec.md §9 open question).
func (e *Engine) applyPreempt(seg *runtimeSegment, coreID, reason string) {
	core := e.cores[coreID]
	if core != nil && core.hasRunningSince {
		elapsed := e.now - core.runningSince
		if elapsed > 0 {
			seg.remainingTime = math.Max(0, seg.remainingTime-elapsed*core.speed)
		}
		e.etmModel.OnExec(seg.key(), coreID, elapsed)
	}
	if core != nil {
		core.runningSegment = ""
		core.hasRunningSince = false
		core.hasFinishTime = false
	}
	seg.runningOn = ""
	if !seg.finished && !e.aborted[seg.jobID] {
		e.ready[seg.key()] = true
	}

	payload := map[string]any{"segment_key": seg.key()}
	if reason != "" {
		payload["reason"] = reason
	}
	e.bus.Publish(ledger.Publish{
		Time: e.now, Type: ledger.Preempt, JobID: seg.jobID, SegmentID: seg.segmentID, CoreID: coreID, CorrelationID: seg.jobID,
		Payload: payload,
	})
}
