// Package engine implements the deterministic, single-threaded discrete-event
// simulation core: a virtual-clock tick loop driven by a release heap,
// dispatching ready segments onto cores through a pluggable Scheduler and
// guarding shared resources through a pluggable Protocol.
//
// Grounded on original_source/rtos_sim/core/engine.py's SimEngine, with the
// SimPy coroutine/generator clock replaced by a plain virtual-time variable
// advanced directly between ticks — this module has no need for SimPy's
// process-scheduling machinery since there is exactly one driver of time.
package engine

import (
	"container/heap"
	"fmt"
	"math/rand"
	"sort"

	"github.com/rtossim/core/internal/arrival"
	"github.com/rtossim/core/internal/etm"
	"github.com/rtossim/core/internal/ledger"
	"github.com/rtossim/core/internal/overhead"
	"github.com/rtossim/core/internal/protocol"
	"github.com/rtossim/core/internal/scheduler"
	"github.com/rtossim/core/model"
)

const deadlineEpsilon = 1e-9
const timeEpsilon = 1e-12

// Engine is the simulation core. The zero value is not usable; construct
// with New.
type Engine struct {
	bus *ledger.Bus

	spec           *model.ModelSpec
	schedulerName  string
	sched          scheduler.Scheduler
	etmModel       etm.Model
	overheadModel  overhead.Model
	protocols      map[string]protocol.Protocol // resourceID -> instance
	distinctProtos []protocol.Protocol
	resources      map[string]model.Resource
	rng            *rand.Rand
	arrivalGens    map[string]arrival.Generator // taskID -> generator, for dynamic_rt tasks
	arrivalParams  map[string]map[string]any    // taskID -> merged params, reused on every NextInterval call

	cores   map[string]*coreRuntime
	coreIDs []string

	segments map[string]*runtimeSegment
	jobs     map[string]*jobRuntime
	ready    map[string]bool
	held     map[string]map[string]bool // segmentKey -> set of held resource ids
	aborted  map[string]bool

	releases      releaseHeap
	releaseIdx    map[string]int // taskID -> next release index to push
	tasksByID     map[string]*model.TaskGraphSpec

	now     float64
	paused  bool
	stopped bool
}

// New constructs an empty Engine publishing to bus.
func New(bus *ledger.Bus) *Engine {
	return &Engine{bus: bus}
}

// Events returns every event published so far, in publish order.
func (e *Engine) Events() []ledger.Event { return e.bus.Events() }

// Now returns the engine's current virtual time.
func (e *Engine) Now() float64 { return e.now }

// Build resets and configures the engine from spec, seeding the release
// heap with each task's first arrival.
func (e *Engine) Build(spec *model.ModelSpec) error {
	e.reset()
	e.spec = spec
	e.schedulerName = spec.Scheduler.Name

	sched, err := scheduler.Build(spec.Scheduler.Name, spec.Scheduler.Params)
	if err != nil {
		return fmt.Errorf("engine: build scheduler: %w", err)
	}
	e.sched = sched

	if err := e.setupProtocols(spec); err != nil {
		return err
	}

	etmModel, err := etm.Build(spec.Scheduler.ETM(), spec.Scheduler.ETMParams())
	if err != nil {
		return fmt.Errorf("engine: build etm: %w", err)
	}
	e.etmModel = etmModel

	overheadModel, err := overhead.Build(spec.Scheduler.OverheadModel(), spec.Scheduler.Overhead())
	if err != nil {
		return fmt.Errorf("engine: build overhead model: %w", err)
	}
	e.overheadModel = overheadModel

	e.rng = rand.New(rand.NewSource(spec.Sim.Seed))

	e.tasksByID = make(map[string]*model.TaskGraphSpec, len(spec.Tasks))
	e.arrivalGens = make(map[string]arrival.Generator)
	e.arrivalParams = make(map[string]map[string]any)
	for i := range spec.Tasks {
		task := &spec.Tasks[i]
		e.tasksByID[task.ID] = task
		if task.Type == model.TaskDynamicRT && task.ArrivalGenerator != "" {
			params := mergeArrivalParams(task)
			gen, err := arrival.Build(task.ArrivalGenerator, params)
			if err != nil {
				return fmt.Errorf("engine: build arrival generator for task %s: %w", task.ID, err)
			}
			e.arrivalGens[task.ID] = gen
			e.arrivalParams[task.ID] = params
		}
	}

	e.cores = make(map[string]*coreRuntime, len(spec.Platform.Cores))
	for _, core := range spec.Platform.Cores {
		e.cores[core.ID] = &coreRuntime{id: core.ID, speed: core.SpeedFactor}
		e.coreIDs = append(e.coreIDs, core.ID)
	}
	sort.Strings(e.coreIDs)

	e.releaseIdx = make(map[string]int, len(spec.Tasks))
	for _, task := range spec.Tasks {
		heap.Push(&e.releases, releaseEntry{time: task.Arrival, index: 0, taskID: task.ID})
		e.releaseIdx[task.ID] = 1
	}

	return nil
}

// mergeArrivalParams fills in min_interval/max_interval from the task's
// MinInterArrival/MaxInterArrival fields when the generator params don't
// already carry them, so a dynamic_rt task need only declare the bounds
// once.
func mergeArrivalParams(task *model.TaskGraphSpec) map[string]any {
	params := make(map[string]any, len(task.ArrivalGeneratorParams)+2)
	for k, v := range task.ArrivalGeneratorParams {
		params[k] = v
	}
	if _, ok := params["min_interval"]; !ok && task.MinInterArrival != nil {
		params["min_interval"] = *task.MinInterArrival
	}
	if _, ok := params["max_interval"]; !ok && task.MaxInterArrival != nil {
		params["max_interval"] = *task.MaxInterArrival
	}
	if _, ok := params["interval"]; !ok && task.MinInterArrival != nil {
		params["interval"] = *task.MinInterArrival
	}
	return params
}

// setupProtocols instantiates exactly one Protocol per distinct protocol
// tag present in spec.Resources, or a single default mutex if the model
// declares no resources at all.
func (e *Engine) setupProtocols(spec *model.ModelSpec) error {
	runtimeSpecs := e.buildResourceRuntimeSpecs(spec)
	e.protocols = make(map[string]protocol.Protocol, len(spec.Resources))
	e.resources = make(map[string]model.Resource, len(spec.Resources))
	for _, r := range spec.Resources {
		e.resources[r.ID] = r
	}

	if len(spec.Resources) == 0 {
		p, err := protocol.Build("mutex", nil)
		if err != nil {
			return fmt.Errorf("engine: build default mutex protocol: %w", err)
		}
		p.Configure(nil)
		switch schedulerFamily(spec.Scheduler.Name) {
		case familyEDF:
			p.SetPriorityDomain("absolute_deadline")
		case familyRM:
			p.SetPriorityDomain("period")
		}
		e.distinctProtos = []protocol.Protocol{p}
		return nil
	}

	grouped := make(map[string][]protocol.ResourceRuntimeSpec)
	var tags []string
	for _, r := range spec.Resources {
		tag := string(r.Protocol)
		if _, ok := grouped[tag]; !ok {
			tags = append(tags, tag)
		}
		grouped[tag] = append(grouped[tag], runtimeSpecs[r.ID])
	}
	sort.Strings(tags)

	domain := ""
	switch schedulerFamily(spec.Scheduler.Name) {
	case familyEDF:
		domain = "absolute_deadline"
	case familyRM:
		domain = "period"
	}

	for _, tag := range tags {
		p, err := protocol.Build(tag, nil)
		if err != nil {
			return fmt.Errorf("engine: build %s protocol: %w", tag, err)
		}
		p.Configure(grouped[tag])
		p.SetPriorityDomain(domain)
		e.distinctProtos = append(e.distinctProtos, p)
		for _, rs := range grouped[tag] {
			e.protocols[rs.ID] = p
		}
	}
	return nil
}

// buildResourceRuntimeSpecs computes each resource's priority ceiling: the
// highest task-priority value among tasks whose segments ever require it,
// floored to 0 if no task ever requires it.
func (e *Engine) buildResourceRuntimeSpecs(spec *model.ModelSpec) map[string]protocol.ResourceRuntimeSpec {
	ceilings := make(map[string]float64, len(spec.Resources))
	for _, r := range spec.Resources {
		ceilings[r.ID] = lowestPriorityValue
	}
	for _, task := range spec.Tasks {
		taskPriority := e.taskPriorityValue(task.Deadline, task.Period)
		for _, sub := range task.Subtasks {
			for _, seg := range sub.Segments {
				for _, resourceID := range seg.RequiredResources {
					if _, ok := ceilings[resourceID]; ok {
						if taskPriority > ceilings[resourceID] {
							ceilings[resourceID] = taskPriority
						}
					}
				}
			}
		}
	}

	out := make(map[string]protocol.ResourceRuntimeSpec, len(spec.Resources))
	for _, r := range spec.Resources {
		ceiling := ceilings[r.ID]
		if ceiling <= lowestPriorityValue+1e-6 {
			ceiling = 0
		}
		out[r.ID] = protocol.ResourceRuntimeSpec{
			ID:              r.ID,
			BoundCoreID:     r.BoundCoreID,
			CeilingPriority: ceiling,
		}
	}
	return out
}

func (e *Engine) protocolForResource(resourceID string) protocol.Protocol {
	if p, ok := e.protocols[resourceID]; ok {
		return p
	}
	if len(e.distinctProtos) > 0 {
		return e.distinctProtos[0]
	}
	return nil
}

// protocolsForSegment returns the distinct set of protocol instances
// governing any resource the segment requires, deduplicated by instance
// identity.
func (e *Engine) protocolsForSegment(seg *runtimeSegment) []protocol.Protocol {
	seen := make(map[protocol.Protocol]bool)
	var out []protocol.Protocol
	for _, resourceID := range seg.requiredResources {
		p := e.protocolForResource(resourceID)
		if p == nil || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (e *Engine) reset() {
	e.spec = nil
	e.sched = nil
	e.etmModel = nil
	e.overheadModel = nil
	e.protocols = nil
	e.distinctProtos = nil
	e.resources = nil
	e.rng = nil
	e.arrivalGens = nil
	e.arrivalParams = nil
	e.cores = make(map[string]*coreRuntime)
	e.coreIDs = nil
	e.segments = make(map[string]*runtimeSegment)
	e.jobs = make(map[string]*jobRuntime)
	e.ready = make(map[string]bool)
	e.held = make(map[string]map[string]bool)
	e.aborted = make(map[string]bool)
	e.releases = nil
	e.releaseIdx = make(map[string]int)
	e.tasksByID = make(map[string]*model.TaskGraphSpec)
	e.now = 0
	e.paused = false
	e.stopped = false
}

// Reset wipes all engine state back to its pre-Build condition. The ledger
// bus itself is left alone; callers that want a clean event history should
// construct a new Engine with a new Bus.
func (e *Engine) Reset() { e.reset() }

// Pause suspends Run at the next tick boundary.
func (e *Engine) Pause() { e.paused = true }

// Resume clears a prior Pause.
func (e *Engine) Resume() { e.paused = false }

// Stop halts Run/Step permanently; a subsequent Build is required to run
// again.
func (e *Engine) Stop() { e.stopped = true }

// Run advances the simulation until until (or the model's configured
// duration if until is nil) or until no further progress is possible.
func (e *Engine) Run(until *float64) error {
	if e.spec == nil {
		return ErrNotBuilt
	}
	horizon := e.spec.Sim.Duration
	if until != nil {
		horizon = *until
	}
	for e.now < horizon && !e.stopped && !e.paused {
		progressed := e.advanceOnce(horizon)
		if !progressed {
			break
		}
	}
	e.finalize()
	return nil
}

// Step advances by exactly one tick (delta nil) or until delta virtual-time
// units have elapsed.
func (e *Engine) Step(delta *float64) error {
	if e.spec == nil {
		return ErrNotBuilt
	}
	if e.stopped {
		return nil
	}
	if delta == nil {
		e.advanceOnce(e.spec.Sim.Duration)
		return nil
	}
	target := e.now + *delta
	for e.now < target && !e.stopped {
		if !e.advanceOnce(target) {
			break
		}
	}
	return nil
}

func (e *Engine) finalize() {
	e.checkDeadlineMiss(e.now)
	e.completeFinishedSegments(e.now)
}
