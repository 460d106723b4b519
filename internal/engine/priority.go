package engine

import "strings"

// lowestPriorityValue is the floor used for tasks missing the field the
// active scheduling policy cares about (no deadline under EDF, no period
// under RM).
const lowestPriorityValue = -1e18

// taskPriorityValue maps a (deadline, period) pair into the scheduler's
// signed priority domain: larger is higher priority. EDF-family policies
// rank by negated deadline, RM-family policies by negated period; any other
// policy name (including a custom Scheduler plugged in externally) gets a
// flat 0, since priority in that case comes entirely from EffectivePriority
// boosts applied by resource protocols.
func (e *Engine) taskPriorityValue(deadline, period *float64) float64 {
	switch schedulerFamily(e.schedulerName) {
	case familyEDF:
		if deadline == nil {
			return lowestPriorityValue
		}
		return -*deadline
	case familyRM:
		if period == nil {
			return lowestPriorityValue
		}
		return -*period
	default:
		return 0
	}
}

type family int

const (
	familyNone family = iota
	familyEDF
	familyRM
)

func schedulerFamily(name string) family {
	switch strings.ToLower(name) {
	case "edf", "earliest_deadline_first":
		return familyEDF
	case "rm", "rate_monotonic", "fixed_priority":
		return familyRM
	default:
		return familyNone
	}
}

// applyPriorityUpdates writes a protocol's returned priority_updates into
// every live, unfinished segment's effective priority.
func (e *Engine) applyPriorityUpdates(updates map[string]float64) {
	for key, priority := range updates {
		seg, ok := e.segments[key]
		if !ok || seg.finished {
			continue
		}
		seg.effectivePriority = priority
	}
}
