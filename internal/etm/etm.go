// Package etm implements execution-time models: pluggable estimators of how
// long a segment actually takes to run on a given core, given its
// worst-case execution time and the core's speed factor.
package etm

import "context"

// Context carries the identifying fields a table-based model keys its
// lookup on. Only SegmentID and CoreID participate in the lookup per
// spec.md §4.7; the rest are carried for a future richer keying scheme but
// unused today.
type Context struct {
	TaskID    string
	SubtaskID string
	SegmentID string
	CoreID    string
}

// Model is the execution-time estimation plugin interface.
type Model interface {
	Name() string
	// Estimate returns the projected wall-clock execution time for a
	// segment with the given WCET on a core running at core_speed. Values
	// <= 0 are configuration errors the caller should treat as fatal.
	Estimate(ctx context.Context, wcet, coreSpeed, now float64, segCtx Context) (float64, error)
	// OnExec observes dt virtual-time units of execution progress, for
	// adaptive models. Built-ins ignore it.
	OnExec(segmentKey, coreID string, dt float64)
}
