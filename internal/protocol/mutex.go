package protocol

import "sync"

// mutexResource is the FIFO-ownership state for one resource under the
// plain mutex protocol.
type mutexResource struct {
	boundCore string
	owner     string
	waiters   []string
}

// Mutex is plain FIFO mutual exclusion with no priority boosting: the
// resource is granted to whoever requests it first among those waiting,
// in arrival order. Grounded on protocols/mutex.py.
type Mutex struct {
	mu        sync.Mutex
	resources map[string]*mutexResource
}

// NewMutex constructs an unconfigured Mutex protocol instance.
func NewMutex() *Mutex {
	return &Mutex{resources: make(map[string]*mutexResource)}
}

func (*Mutex) Name() string { return "mutex" }

func (*Mutex) SetPriorityDomain(string) {}

func (m *Mutex) Configure(resources []ResourceRuntimeSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = make(map[string]*mutexResource, len(resources))
	for _, r := range resources {
		m.resources[r.ID] = &mutexResource{boundCore: r.BoundCoreID}
	}
}

func (m *Mutex) Request(segmentKey, resourceID, coreID string, _ float64) RequestResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[resourceID]
	if !ok {
		return RequestResult{Reason: "unknown_resource"}
	}
	if r.boundCore != coreID {
		return RequestResult{Reason: reasonBoundCoreViolation}
	}
	if r.owner == "" {
		r.owner = segmentKey
		return RequestResult{Granted: true}
	}
	if r.owner == segmentKey {
		return RequestResult{Granted: true}
	}
	for _, w := range r.waiters {
		if w == segmentKey {
			return RequestResult{Reason: reasonResourceBusy}
		}
	}
	r.waiters = append(r.waiters, segmentKey)
	return RequestResult{Reason: reasonResourceBusy}
}

func (m *Mutex) Release(segmentKey, resourceID string) ReleaseResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseLocked(segmentKey, resourceID)
}

func (m *Mutex) releaseLocked(segmentKey, resourceID string) ReleaseResult {
	r, ok := m.resources[resourceID]
	if !ok || r.owner != segmentKey {
		return ReleaseResult{}
	}
	r.owner = ""
	if len(r.waiters) == 0 {
		return ReleaseResult{}
	}
	next := r.waiters[0]
	r.waiters = r.waiters[1:]
	r.owner = next
	return ReleaseResult{Woken: []string{next}}
}

func (m *Mutex) CancelSegment(segmentKey string) ReleaseResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	var woken []string
	for resourceID, r := range m.resources {
		filtered := r.waiters[:0:0]
		for _, w := range r.waiters {
			if w != segmentKey {
				filtered = append(filtered, w)
			}
		}
		r.waiters = filtered
		if r.owner == segmentKey {
			result := m.releaseLocked(segmentKey, resourceID)
			woken = append(woken, result.Woken...)
		}
	}
	return ReleaseResult{Woken: dedupPreserveOrder(woken)}
}
