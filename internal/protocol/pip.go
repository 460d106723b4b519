package protocol

import (
	"sort"
	"sync"
)

type pipResource struct {
	boundCore string
	owner     string
	waiters   waitQueue
}

type pipSegment struct {
	base      float64
	effective float64
	held      map[string]struct{}
}

// PIP implements the Priority Inheritance Protocol: a resource's current
// owner temporarily inherits the highest priority among segments waiting on
// any resource it holds, preventing unbounded priority inversion. Grounded
// on protocols/pip.py.
type PIP struct {
	mu        sync.Mutex
	resources map[string]*pipResource
	segments  map[string]*pipSegment
	domain    string
}

func NewPIP() *PIP {
	return &PIP{resources: make(map[string]*pipResource), segments: make(map[string]*pipSegment)}
}

func (*PIP) Name() string { return "pip" }

func (p *PIP) SetPriorityDomain(domain string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.domain = domain
}

func (p *PIP) Configure(resources []ResourceRuntimeSpec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources = make(map[string]*pipResource, len(resources))
	for _, r := range resources {
		p.resources[r.ID] = &pipResource{boundCore: r.BoundCoreID}
	}
	p.segments = make(map[string]*pipSegment)
}

func (p *PIP) registerSegment(segmentKey string, priority float64) {
	if _, ok := p.segments[segmentKey]; ok {
		return
	}
	p.segments[segmentKey] = &pipSegment{base: priority, effective: priority, held: make(map[string]struct{})}
}

// recompute recalculates segmentKey's effective priority as the max of its
// base priority and the highest waiter priority on any resource it holds,
// returning a one-entry update map if the value actually changed.
func (p *PIP) recompute(segmentKey string) map[string]float64 {
	seg, ok := p.segments[segmentKey]
	if !ok {
		return nil
	}
	inherited := seg.base
	for resourceID := range seg.held {
		if m, any := p.resources[resourceID].waiters.maxPriority(); any && m > inherited {
			inherited = m
		}
	}
	prev := seg.effective
	seg.effective = inherited
	if !priorityChanged(prev, inherited) {
		return nil
	}
	return map[string]float64{segmentKey: inherited}
}

func (p *PIP) Request(segmentKey, resourceID, coreID string, priority float64) RequestResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[resourceID]
	if !ok {
		return RequestResult{Reason: "unknown_resource"}
	}
	if r.boundCore != coreID {
		return RequestResult{Reason: reasonBoundCoreViolation}
	}
	p.registerSegment(segmentKey, priority)

	if r.owner == "" {
		r.owner = segmentKey
		p.segments[segmentKey].held[resourceID] = struct{}{}
		return RequestResult{Granted: true, PriorityUpdates: p.recompute(segmentKey)}
	}
	if r.owner == segmentKey {
		return RequestResult{Granted: true, PriorityUpdates: p.recompute(segmentKey)}
	}

	r.waiters.enqueueOrBump(segmentKey, priority)
	updates := p.recompute(r.owner)
	return RequestResult{
		Reason:          reasonResourceBusy,
		PriorityUpdates: updates,
		Metadata:        map[string]any{"owner_segment": r.owner},
	}
}

func (p *PIP) Release(segmentKey, resourceID string) ReleaseResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseLocked(segmentKey, resourceID)
}

func (p *PIP) releaseLocked(segmentKey, resourceID string) ReleaseResult {
	r, ok := p.resources[resourceID]
	if !ok || r.owner != segmentKey {
		return ReleaseResult{}
	}
	r.owner = ""
	delete(p.segments[segmentKey].held, resourceID)

	var woken []string
	var updates map[string]float64
	if next, ok := r.waiters.popBest(); ok {
		r.owner = next
		p.segments[next].held[resourceID] = struct{}{}
		woken = append(woken, next)
		updates = mergeUpdates(updates, p.recompute(next))
	}
	updates = mergeUpdates(updates, p.recompute(segmentKey))
	return ReleaseResult{Woken: woken, PriorityUpdates: updates}
}

func (p *PIP) CancelSegment(segmentKey string) ReleaseResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.segments[segmentKey]; !ok {
		return ReleaseResult{}
	}

	resourceIDs := make([]string, 0, len(p.resources))
	for id := range p.resources {
		resourceIDs = append(resourceIDs, id)
	}
	sort.Strings(resourceIDs)

	affectedOwnerOrder := make([]string, 0)
	affectedOwners := make(map[string]struct{})
	for _, resourceID := range resourceIDs {
		r := p.resources[resourceID]
		if r.waiters.remove(segmentKey) && r.owner != "" && r.owner != segmentKey {
			if _, seen := affectedOwners[r.owner]; !seen {
				affectedOwners[r.owner] = struct{}{}
				affectedOwnerOrder = append(affectedOwnerOrder, r.owner)
			}
		}
	}

	var woken []string
	var updates map[string]float64
	var owned []string
	for _, resourceID := range resourceIDs {
		if p.resources[resourceID].owner == segmentKey {
			owned = append(owned, resourceID)
		}
	}
	for _, resourceID := range owned {
		result := p.releaseLocked(segmentKey, resourceID)
		woken = append(woken, result.Woken...)
		updates = mergeUpdates(updates, result.PriorityUpdates)
	}

	for _, owner := range affectedOwnerOrder {
		updates = mergeUpdates(updates, p.recompute(owner))
	}

	delete(p.segments, segmentKey)
	return ReleaseResult{Woken: dedupPreserveOrder(woken), PriorityUpdates: updates}
}
