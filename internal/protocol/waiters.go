package protocol

// waiter records one blocked segment's position in a resource's FIFO-ish
// wait queue, plus its highest recorded request priority. Shared by PIP and
// PCP, whose enqueue/best-waiter rules are identical (spec.md §4.3.3: "the
// same dedup/priority-max rule as PIP").
type waiter struct {
	order    int
	segment  string
	priority float64
}

// waitQueue is the per-resource FIFO+priority structure. The zero value is
// ready to use.
type waitQueue struct {
	items []waiter
	next  int
}

// enqueueOrBump adds segment to the queue, or if already present, raises its
// recorded priority to the max of the old and new value in place (keeping
// its original queue position).
func (q *waitQueue) enqueueOrBump(segment string, priority float64) {
	for i := range q.items {
		if q.items[i].segment == segment {
			if priority > q.items[i].priority {
				q.items[i].priority = priority
			}
			return
		}
	}
	q.items = append(q.items, waiter{order: q.next, segment: segment, priority: priority})
	q.next++
}

// remove drops segment from the queue if present, reporting whether
// anything was removed.
func (q *waitQueue) remove(segment string) bool {
	for i := range q.items {
		if q.items[i].segment == segment {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// popBest removes and returns the highest-priority waiter, ties broken by
// earliest enqueue order. Returns ("", false) on an empty queue.
func (q *waitQueue) popBest() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	best := 0
	for i := 1; i < len(q.items); i++ {
		if q.items[i].priority > q.items[best].priority {
			best = i
			continue
		}
		if q.items[i].priority == q.items[best].priority && q.items[i].order < q.items[best].order {
			best = i
		}
	}
	seg := q.items[best].segment
	q.items = append(q.items[:best], q.items[best+1:]...)
	return seg, true
}

// maxPriority reports the highest recorded priority among current waiters.
func (q *waitQueue) maxPriority() (float64, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	m := q.items[0].priority
	for _, w := range q.items[1:] {
		if w.priority > m {
			m = w.priority
		}
	}
	return m, true
}

func (q *waitQueue) empty() bool { return len(q.items) == 0 }
