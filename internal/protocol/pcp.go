package protocol

import (
	"sort"
	"sync"
)

type pcpResource struct {
	boundCore string
	ceiling   float64
	owner     string
	waiters   waitQueue
}

type pcpSegment struct {
	base      float64
	effective float64
	held      map[string]struct{}
}

type pcpDeferred struct {
	resourceID string
	priority   float64
}

// PCP implements the Priority Ceiling Protocol: a resource's ceiling is the
// highest priority of any task that may ever request it, and a request for
// a free resource is denied if the requester's priority does not exceed
// every ceiling among resources currently held by someone else. Grounded on
// protocols/pcp.py, with CancelSegment implemented fresh (see DESIGN.md)
// since the original leaves it as the abstract base's no-op, which would
// violate the abort-cascade invariant that an aborted segment ends up
// holding nothing and is referenced by no deferred ceiling block.
type PCP struct {
	mu       sync.Mutex
	res      map[string]*pcpResource
	segments map[string]*pcpSegment
	deferred map[string]pcpDeferred
	domain   string
}

func NewPCP() *PCP {
	return &PCP{
		res:      make(map[string]*pcpResource),
		segments: make(map[string]*pcpSegment),
		deferred: make(map[string]pcpDeferred),
	}
}

func (*PCP) Name() string { return "pcp" }

func (p *PCP) SetPriorityDomain(domain string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.domain = domain
}

func (p *PCP) Configure(resources []ResourceRuntimeSpec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.res = make(map[string]*pcpResource, len(resources))
	for _, r := range resources {
		p.res[r.ID] = &pcpResource{boundCore: r.BoundCoreID, ceiling: r.CeilingPriority}
	}
	p.segments = make(map[string]*pcpSegment)
	p.deferred = make(map[string]pcpDeferred)
}

func (p *PCP) registerSegment(segmentKey string, priority float64) {
	if _, ok := p.segments[segmentKey]; ok {
		return
	}
	p.segments[segmentKey] = &pcpSegment{base: priority, effective: priority, held: make(map[string]struct{})}
}

func (p *PCP) recompute(segmentKey string) map[string]float64 {
	seg, ok := p.segments[segmentKey]
	if !ok {
		return nil
	}
	effective := seg.base
	for resourceID := range seg.held {
		if c := p.res[resourceID].ceiling; c > effective {
			effective = c
		}
	}
	prev := seg.effective
	seg.effective = effective
	if !priorityChanged(prev, effective) {
		return nil
	}
	return map[string]float64{segmentKey: effective}
}

// systemCeiling returns the highest ceiling among resources currently owned
// by someone other than excluding, and false if nothing qualifies.
func (p *PCP) systemCeiling(excluding string) (float64, bool) {
	var current float64
	found := false
	for _, r := range p.res {
		if r.owner == "" || r.owner == excluding {
			continue
		}
		if !found || r.ceiling > current {
			current = r.ceiling
			found = true
		}
	}
	return current, found
}

func (p *PCP) Request(segmentKey, resourceID, coreID string, priority float64) RequestResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.res[resourceID]
	if !ok {
		return RequestResult{Reason: "unknown_resource"}
	}
	if r.boundCore != coreID {
		return RequestResult{Reason: reasonBoundCoreViolation}
	}
	p.registerSegment(segmentKey, priority)
	delete(p.deferred, segmentKey)

	if r.owner == "" {
		if sc, has := p.systemCeiling(segmentKey); has && priority <= sc+priorityEpsilon {
			p.deferred[segmentKey] = pcpDeferred{resourceID: resourceID, priority: priority}
			return RequestResult{
				Reason:   reasonSystemCeilingBlock,
				Metadata: map[string]any{"system_ceiling": sc},
			}
		}
		r.owner = segmentKey
		p.segments[segmentKey].held[resourceID] = struct{}{}
		return RequestResult{
			Granted:         true,
			PriorityUpdates: p.recompute(segmentKey),
			Metadata:        map[string]any{"ceiling_priority": r.ceiling},
		}
	}
	if r.owner == segmentKey {
		return RequestResult{Granted: true, PriorityUpdates: p.recompute(segmentKey)}
	}

	r.waiters.enqueueOrBump(segmentKey, priority)
	return RequestResult{Reason: reasonResourceBusy, Metadata: map[string]any{"owner_segment": r.owner}}
}

func (p *PCP) Release(segmentKey, resourceID string) ReleaseResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseLocked(segmentKey, resourceID)
}

func (p *PCP) releaseLocked(segmentKey, resourceID string) ReleaseResult {
	r, ok := p.res[resourceID]
	if !ok || r.owner != segmentKey {
		return ReleaseResult{}
	}
	delete(p.deferred, segmentKey)
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

	woken = append(woken, p.tryWakeCeilingBlockedLocked()...)
	updates = mergeUpdates(updates, p.recompute(segmentKey))
	return ReleaseResult{Woken: woken, PriorityUpdates: updates}
}

// tryWakeCeilingBlockedLocked retries every deferred ceiling-blocked
// request, in ascending segment-key order for determinism, waking those
// whose target resource is now free and whose priority now exceeds the
// recomputed system ceiling.
func (p *PCP) tryWakeCeilingBlockedLocked() []string {
	segmentKeys := make([]string, 0, len(p.deferred))
	for k := range p.deferred {
		segmentKeys = append(segmentKeys, k)
	}
	sort.Strings(segmentKeys)

	var woken []string
	for _, segmentKey := range segmentKeys {
		d, ok := p.deferred[segmentKey]
		if !ok {
			continue
		}
		target := p.res[d.resourceID]
		if target == nil || target.owner != "" {
			continue
		}
		sc, has := p.systemCeiling(segmentKey)
		if has && d.priority <= sc+priorityEpsilon {
			continue
		}
		delete(p.deferred, segmentKey)
		woken = append(woken, segmentKey)
	}
	return woken
}

func (p *PCP) CancelSegment(segmentKey string) ReleaseResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.segments[segmentKey]; !ok {
		return ReleaseResult{}
	}
	delete(p.deferred, segmentKey)

	resourceIDs := make([]string, 0, len(p.res))
	for id := range p.res {
		resourceIDs = append(resourceIDs, id)
	}
	sort.Strings(resourceIDs)

	affectedOwnerOrder := make([]string, 0)
	affectedOwners := make(map[string]struct{})
	for _, resourceID := range resourceIDs {
		r := p.res[resourceID]
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
		if p.res[resourceID].owner == segmentKey {
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
