// Package model defines the validated input data model for a simulation
// run: platform topology, resources, task graphs, scheduler selection, and
// simulation parameters.
package model

// TaskType is the timing category of a task graph.
type TaskType string

const (
	TaskTimeDeterministic TaskType = "time_deterministic"
	TaskDynamicRT         TaskType = "dynamic_rt"
	TaskNonRT             TaskType = "non_rt"
)

// ProtocolKind names the resource-sharing protocol a resource selects.
type ProtocolKind string

const (
	ProtocolMutex ProtocolKind = "mutex"
	ProtocolPIP   ProtocolKind = "pip"
	ProtocolPCP   ProtocolKind = "pcp"
)

// AcquirePolicy selects how partial multi-resource acquisitions are
// handled when a later request in the sequence is denied.
type AcquirePolicy string

const (
	AcquireLegacySequential AcquirePolicy = "legacy_sequential"
	AcquireAtomicRollback   AcquirePolicy = "atomic_rollback"
)

// EventIDMode names the event-id derivation scheme. Only a seed-stable
// scheme is ever accepted; "deterministic" is currently the only value.
type EventIDMode string

const EventIDModeDeterministic EventIDMode = "deterministic"

// ProcessorType groups cores that share a declared core count.
type ProcessorType struct {
	ID        string `yaml:"id" json:"id"`
	CoreCount int    `yaml:"core_count" json:"core_count"`
}

// Core is one scheduling unit of the platform.
type Core struct {
	ID            string  `yaml:"id" json:"id"`
	SpeedFactor   float64 `yaml:"speed_factor" json:"speed_factor"`
	ProcessorType string  `yaml:"processor_type" json:"processor_type"`
}

// Platform is the full set of processor types and cores.
type Platform struct {
	ProcessorTypes []ProcessorType `yaml:"processor_types" json:"processor_types"`
	Cores          []Core          `yaml:"cores" json:"cores"`
}

// Resource is a serially-reusable resource bound to exactly one core.
type Resource struct {
	ID          string       `yaml:"id" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	BoundCoreID string       `yaml:"bound_core_id" json:"bound_core_id"`
	Protocol    ProtocolKind `yaml:"protocol" json:"protocol"`
}

// SegmentSpec is a contiguous, indivisible piece of a subtask's work.
type SegmentSpec struct {
	ID                string   `yaml:"id" json:"id"`
	Index             int      `yaml:"index" json:"index"`
	WCET              float64  `yaml:"wcet" json:"wcet"`
	ACET              *float64 `yaml:"acet,omitempty" json:"acet,omitempty"`
	MappingHint       *string  `yaml:"mapping_hint,omitempty" json:"mapping_hint,omitempty"`
	Preemptible       bool     `yaml:"preemptible" json:"preemptible"`
	RequiredResources []string `yaml:"required_resources,omitempty" json:"required_resources,omitempty"`
	// ReleaseOffsets supplements the model with deterministic intra-window
	// release offsets. It is carried on the model and through Encode/Decode
	// only; no arrival generator or engine code reads it.
	ReleaseOffsets []float64 `yaml:"release_offsets,omitempty" json:"release_offsets,omitempty"`
}

// SubtaskSpec is one DAG node of a task graph.
type SubtaskSpec struct {
	ID           string        `yaml:"id" json:"id"`
	Predecessors []string      `yaml:"predecessors,omitempty" json:"predecessors,omitempty"`
	Successors   []string      `yaml:"successors,omitempty" json:"successors,omitempty"`
	Segments     []SegmentSpec `yaml:"segments" json:"segments"`
}

// TaskGraphSpec is one task in the workload.
type TaskGraphSpec struct {
	ID          string        `yaml:"id" json:"id"`
	Type        TaskType      `yaml:"type" json:"type"`
	Period      *float64      `yaml:"period,omitempty" json:"period,omitempty"`
	Deadline    *float64      `yaml:"deadline,omitempty" json:"deadline,omitempty"`
	Arrival     float64       `yaml:"arrival" json:"arrival"`
	AbortOnMiss bool          `yaml:"abort_on_miss" json:"abort_on_miss"`
	Subtasks    []SubtaskSpec `yaml:"subtasks" json:"subtasks"`

	// Supplemented fields (SPEC_FULL.md §4), optional. For a dynamic_rt task
	// with ArrivalGenerator set, the engine copies MinInterArrival/MaxInterArrival into the
	// generator params that omit them; PhaseOffset is not read anywhere.
	PhaseOffset     float64  `yaml:"phase_offset,omitempty" json:"phase_offset,omitempty"`
	MinInterArrival *float64 `yaml:"min_inter_arrival,omitempty" json:"min_inter_arrival,omitempty"`
	MaxInterArrival *float64 `yaml:"max_inter_arrival,omitempty" json:"max_inter_arrival,omitempty"`

	// ArrivalGenerator names a registered internal/arrival generator used to
	// compute each successive release interval for a dynamic_rt task. Empty
	// means the task releases on a fixed period (TaskTimeDeterministic,
	// TaskNonRT) or exactly once (no period, no generator). When non-empty
	// and MinInterArrival/MaxInterArrival are set but ArrivalGeneratorParams
	// omits min_interval/max_interval, the engine fills them in from those
	// two fields before building the generator.
	ArrivalGenerator       string         `yaml:"arrival_generator,omitempty" json:"arrival_generator,omitempty"`
	ArrivalGeneratorParams map[string]any `yaml:"arrival_generator_params,omitempty" json:"arrival_generator_params,omitempty"`
}

// SchedulerSpec selects the scheduling policy and its parameters.
type SchedulerSpec struct {
	Name   string         `yaml:"name" json:"name"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// TieBreaker returns the configured tie_breaker param, if any.
func (s SchedulerSpec) TieBreaker() string {
	if v, ok := s.Params["tie_breaker"].(string); ok {
		return v
	}
	return ""
}

// AllowPreempt returns the configured allow_preempt param, defaulting true.
func (s SchedulerSpec) AllowPreempt() bool {
	if v, ok := s.Params["allow_preempt"].(bool); ok {
		return v
	}
	return true
}

// EventIDMode returns the configured event_id_mode param, defaulting to
// the deterministic scheme.
func (s SchedulerSpec) EventIDMode() EventIDMode {
	if v, ok := s.Params["event_id_mode"].(string); ok && v != "" {
		return EventIDMode(v)
	}
	return EventIDModeDeterministic
}

// ResourceAcquirePolicy returns the configured resource_acquire_policy
// param, defaulting to legacy_sequential.
func (s SchedulerSpec) ResourceAcquirePolicy() AcquirePolicy {
	if v, ok := s.Params["resource_acquire_policy"].(string); ok && v != "" {
		return AcquirePolicy(v)
	}
	return AcquireLegacySequential
}

// ETM returns the configured etm param, defaulting to "constant".
func (s SchedulerSpec) ETM() string {
	if v, ok := s.Params["etm"].(string); ok && v != "" {
		return v
	}
	return "constant"
}

// ETMParams returns the configured etm_params param.
func (s SchedulerSpec) ETMParams() map[string]any {
	if v, ok := s.Params["etm_params"].(map[string]any); ok {
		return v
	}
	return nil
}

// OverheadModel returns the configured overhead_model param, defaulting
// to "simple".
func (s SchedulerSpec) OverheadModel() string {
	if v, ok := s.Params["overhead_model"].(string); ok && v != "" {
		return v
	}
	return "simple"
}

// Overhead returns the configured overhead param.
func (s SchedulerSpec) Overhead() map[string]any {
	if v, ok := s.Params["overhead"].(map[string]any); ok {
		return v
	}
	return nil
}

// SimSpec carries simulation-level parameters.
type SimSpec struct {
	Duration float64 `yaml:"duration" json:"duration"`
	Seed     int64   `yaml:"seed" json:"seed"`
}

// ModelSpec is the complete, validated simulation input.
type ModelSpec struct {
	Platform  Platform        `yaml:"platform" json:"platform"`
	Resources []Resource      `yaml:"resources,omitempty" json:"resources,omitempty"`
	Tasks     []TaskGraphSpec `yaml:"tasks" json:"tasks"`
	Scheduler SchedulerSpec   `yaml:"scheduler" json:"scheduler"`
	Sim       SimSpec         `yaml:"sim" json:"sim"`
}
