package model

import "fmt"

// Validate checks every invariant in SPEC_FULL.md §1/spec.md §3 and
// returns the first violation found, wrapped with its path. A nil return
// means the model is safe to build an engine from.
func (m *ModelSpec) Validate() error {
	if err := m.validatePlatform(); err != nil {
		return err
	}
	coreByID := m.coreIndex()
	resourceByID, err := m.validateResources(coreByID)
	if err != nil {
		return err
	}
	if err := m.validateTasks(coreByID, resourceByID); err != nil {
		return err
	}
	if err := m.validateScheduler(); err != nil {
		return err
	}
	if err := m.validateSim(); err != nil {
		return err
	}
	return nil
}

func (m *ModelSpec) coreIndex() map[string]Core {
	idx := make(map[string]Core, len(m.Platform.Cores))
	for _, c := range m.Platform.Cores {
		idx[c.ID] = c
	}
	return idx
}

func (m *ModelSpec) validatePlatform() error {
	seenPT := make(map[string]struct{})
	countByType := make(map[string]int)
	for _, pt := range m.Platform.ProcessorTypes {
		if _, ok := seenPT[pt.ID]; ok {
			return failf("platform.processor_types", ErrDuplicateID, "%q", pt.ID)
		}
		seenPT[pt.ID] = struct{}{}
		if pt.CoreCount <= 0 {
			return failf("platform.processor_types["+pt.ID+"].core_count", ErrInvalidNumeric, "must be positive")
		}
	}
	seenCore := make(map[string]struct{})
	for _, c := range m.Platform.Cores {
		if _, ok := seenCore[c.ID]; ok {
			return failf("platform.cores", ErrDuplicateID, "%q", c.ID)
		}
		seenCore[c.ID] = struct{}{}
		if c.SpeedFactor <= 0 {
			return failf("platform.cores["+c.ID+"].speed_factor", ErrInvalidNumeric, "must be positive")
		}
		if _, ok := seenPT[c.ProcessorType]; !ok {
			return failf("platform.cores["+c.ID+"].processor_type", ErrUnknownID, "%q", c.ProcessorType)
		}
		countByType[c.ProcessorType]++
	}
	for _, pt := range m.Platform.ProcessorTypes {
		if countByType[pt.ID] != pt.CoreCount {
			return failf("platform.processor_types["+pt.ID+"].core_count", ErrTimingField,
				"declared %d but platform has %d cores of this type", pt.CoreCount, countByType[pt.ID])
		}
	}
	return nil
}

func (m *ModelSpec) validateResources(coreByID map[string]Core) (map[string]Resource, error) {
	byID := make(map[string]Resource, len(m.Resources))
	for _, r := range m.Resources {
		if _, ok := byID[r.ID]; ok {
			return nil, failf("resources", ErrDuplicateID, "%q", r.ID)
		}
		if _, ok := coreByID[r.BoundCoreID]; !ok {
			return nil, failf("resources["+r.ID+"].bound_core_id", ErrUnknownID, "%q", r.BoundCoreID)
		}
		switch r.Protocol {
		case ProtocolMutex, ProtocolPIP, ProtocolPCP:
		default:
			return nil, failf("resources["+r.ID+"].protocol", ErrUnknownEnum, "%q", r.Protocol)
		}
		byID[r.ID] = r
	}
	return byID, nil
}

func (m *ModelSpec) validateTasks(coreByID map[string]Core, resourceByID map[string]Resource) error {
	seenTask := make(map[string]struct{})
	multiCore := len(m.Platform.Cores) > 1
	for ti := range m.Tasks {
		task := &m.Tasks[ti]
		if _, ok := seenTask[task.ID]; ok {
			return failf("tasks", ErrDuplicateID, "%q", task.ID)
		}
		seenTask[task.ID] = struct{}{}

		switch task.Type {
		case TaskTimeDeterministic, TaskDynamicRT, TaskNonRT:
		default:
			return failf("tasks["+task.ID+"].type", ErrUnknownEnum, "%q", task.Type)
		}
		if task.Arrival < 0 {
			return failf("tasks["+task.ID+"].arrival", ErrInvalidNumeric, "must be >= 0")
		}
		if task.Type == TaskTimeDeterministic && task.Period == nil {
			return failf("tasks["+task.ID+"].period", ErrTimingField, "time_deterministic tasks require a period")
		}
		if task.Period != nil && *task.Period <= 0 {
			return failf("tasks["+task.ID+"].period", ErrInvalidNumeric, "must be positive")
		}
		if task.Type != TaskNonRT && task.Deadline == nil {
			return failf("tasks["+task.ID+"].deadline", ErrTimingField, "non-non_rt tasks require a relative deadline")
		}
		if task.Deadline != nil && *task.Deadline <= 0 {
			return failf("tasks["+task.ID+"].deadline", ErrInvalidNumeric, "must be positive")
		}
		if len(task.Subtasks) == 0 {
			return failf("tasks["+task.ID+"].subtasks", ErrInvalidNumeric, "must be non-empty")
		}

		resolvedHint, err := m.validateSubtasks(task, coreByID, resourceByID)
		if err != nil {
			return err
		}
		if task.Type == TaskTimeDeterministic && multiCore && resolvedHint == "" {
			return failf("tasks["+task.ID+"]", ErrTimingField,
				"time_deterministic task has no resolvable single-core hint on a multi-core platform")
		}
	}
	return nil
}

// validateSubtasks validates one task's subtask DAG and segment set, and
// returns the task's resolved single-core hint if every hinted segment
// agrees on one core ("" if no segment carries a hint).
func (m *ModelSpec) validateSubtasks(task *TaskGraphSpec, coreByID map[string]Core, resourceByID map[string]Resource) (string, error) {
	seenSubtask := make(map[string]struct{}, len(task.Subtasks))
	for i := range task.Subtasks {
		st := &task.Subtasks[i]
		if _, ok := seenSubtask[st.ID]; ok {
			return "", failf("tasks["+task.ID+"].subtasks", ErrDuplicateID, "%q", st.ID)
		}
		seenSubtask[st.ID] = struct{}{}
	}
	subtaskByID := make(map[string]*SubtaskSpec, len(task.Subtasks))
	for i := range task.Subtasks {
		subtaskByID[task.Subtasks[i].ID] = &task.Subtasks[i]
	}

	path := "tasks[" + task.ID + "]"
	for i := range task.Subtasks {
		st := &task.Subtasks[i]
		for _, p := range st.Predecessors {
			pred, ok := subtaskByID[p]
			if !ok {
				return "", failf(path+".subtasks["+st.ID+"].predecessors", ErrUnknownID, "%q", p)
			}
			if !contains(pred.Successors, st.ID) {
				return "", failf(path+".subtasks["+st.ID+"].predecessors", ErrTimingField,
					"%q does not list %q as a successor", p, st.ID)
			}
		}
		for _, s := range st.Successors {
			succ, ok := subtaskByID[s]
			if !ok {
				return "", failf(path+".subtasks["+st.ID+"].successors", ErrUnknownID, "%q", s)
			}
			if !contains(succ.Predecessors, st.ID) {
				return "", failf(path+".subtasks["+st.ID+"].successors", ErrTimingField,
					"%q does not list %q as a predecessor", s, st.ID)
			}
		}
	}

	if err := detectCycle(task.Subtasks); err != nil {
		return "", failf(path, ErrCycle, "%v", err)
	}

	resolvedHint := ""
	hintConflict := false
	for i := range task.Subtasks {
		st := &task.Subtasks[i]
		segPath := path + ".subtasks[" + st.ID + "]"
		if len(st.Segments) == 0 {
			return "", failf(segPath+".segments", ErrInvalidNumeric, "must be non-empty")
		}
		seenSeg := make(map[string]struct{}, len(st.Segments))
		expectedIdx := 1
		for si := range st.Segments {
			seg := &st.Segments[si]
			if _, ok := seenSeg[seg.ID]; ok {
				return "", failf(segPath+".segments", ErrDuplicateID, "%q", seg.ID)
			}
			seenSeg[seg.ID] = struct{}{}
			if seg.Index != expectedIdx {
				return "", failf(segPath+".segments["+seg.ID+"].index", ErrIndexGap,
					"expected %d, got %d", expectedIdx, seg.Index)
			}
			expectedIdx++
			if seg.WCET <= 0 {
				return "", failf(segPath+".segments["+seg.ID+"].wcet", ErrInvalidNumeric, "must be positive")
			}
			if seg.ACET != nil && *seg.ACET <= 0 {
				return "", failf(segPath+".segments["+seg.ID+"].acet", ErrInvalidNumeric, "must be positive")
			}
			if seg.MappingHint != nil {
				if _, ok := coreByID[*seg.MappingHint]; !ok {
					return "", failf(segPath+".segments["+seg.ID+"].mapping_hint", ErrUnknownID, "%q", *seg.MappingHint)
				}
			}

			boundCore := ""
			for _, rid := range seg.RequiredResources {
				r, ok := resourceByID[rid]
				if !ok {
					return "", failf(segPath+".segments["+seg.ID+"].required_resources", ErrUnknownID, "%q", rid)
				}
				if boundCore == "" {
					boundCore = r.BoundCoreID
				} else if boundCore != r.BoundCoreID {
					return "", failf(segPath+".segments["+seg.ID+"].required_resources", ErrResourceCore,
						"resource %q is bound to %q, conflicting with %q", rid, r.BoundCoreID, boundCore)
				}
			}
			if boundCore != "" {
				if seg.MappingHint != nil && *seg.MappingHint != boundCore {
					return "", failf(segPath+".segments["+seg.ID+"].mapping_hint", ErrResourceCore,
						"mapping_hint %q conflicts with required resources' bound core %q", *seg.MappingHint, boundCore)
				}
				seg.MappingHint = &boundCore
			}

			if seg.MappingHint != nil {
				if resolvedHint == "" {
					resolvedHint = *seg.MappingHint
				} else if resolvedHint != *seg.MappingHint {
					hintConflict = true
				}
			}
		}
	}
	if hintConflict {
		return "", nil
	}
	return resolvedHint, nil
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// detectCycle runs Kahn's algorithm over the predecessor/successor edges
// declared within one task's subtasks.
func detectCycle(subtasks []SubtaskSpec) error {
	indegree := make(map[string]int, len(subtasks))
	adj := make(map[string][]string, len(subtasks))
	for _, st := range subtasks {
		if _, ok := indegree[st.ID]; !ok {
			indegree[st.ID] = 0
		}
		for _, s := range st.Successors {
			adj[st.ID] = append(adj[st.ID], s)
			indegree[s]++
		}
	}
	queue := make([]string, 0, len(subtasks))
	for _, st := range subtasks {
		if indegree[st.ID] == 0 {
			queue = append(queue, st.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, s := range adj[n] {
			indegree[s]--
			if indegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	if visited != len(subtasks) {
		return fmt.Errorf("cycle detected among %d subtasks (only %d resolved by topological order)", len(subtasks), visited)
	}
	return nil
}

func (m *ModelSpec) validateScheduler() error {
	switch m.Scheduler.Name {
	case "edf", "earliest_deadline_first", "rm", "rate_monotonic", "fixed_priority":
	default:
		return failf("scheduler.name", ErrUnknownEnum, "%q", m.Scheduler.Name)
	}
	switch m.Scheduler.ResourceAcquirePolicy() {
	case AcquireLegacySequential, AcquireAtomicRollback:
	default:
		return failf("scheduler.params.resource_acquire_policy", ErrUnknownEnum, "%q", m.Scheduler.ResourceAcquirePolicy())
	}
	if m.Scheduler.EventIDMode() != EventIDModeDeterministic {
		return failf("scheduler.params.event_id_mode", ErrUnknownEnum,
			"%q is not a seed-stable event id scheme", m.Scheduler.EventIDMode())
	}
	return nil
}

func (m *ModelSpec) validateSim() error {
	if m.Sim.Duration <= 0 {
		return failf("sim.duration", ErrInvalidNumeric, "must be positive")
	}
	return nil
}

// IsEDF reports whether the scheduler spec selects an EDF-family policy.
func (s SchedulerSpec) IsEDF() bool {
	switch s.Name {
	case "edf", "earliest_deadline_first":
		return true
	}
	return false
}
