// Package protocol implements the resource-acquisition protocols a segment's
// required resources are governed by: a plain FIFO mutex, Priority
// Inheritance (PIP) and Priority Ceiling (PCP). Every protocol shares the
// bound-core rule and the request/release/cancel result shapes; each owns
// exactly the resources whose model-level protocol tag selected it, and
// never shares state with another instance.
package protocol

import "math"

// priorityEpsilon is the tolerance below which two priority values are
// treated as unchanged, avoiding update-churn from floating point noise.
const priorityEpsilon = 1e-12

// RequestResult is returned by Protocol.Request.
type RequestResult struct {
	Granted         bool
	Reason          string
	PriorityUpdates map[string]float64
	Metadata        map[string]any
}

// ReleaseResult is returned by Protocol.Release and Protocol.CancelSegment.
type ReleaseResult struct {
	Woken           []string
	PriorityUpdates map[string]float64
	Metadata        map[string]any
}

// ResourceRuntimeSpec is the per-resource configuration a Protocol receives
// at build time, computed by the engine from the validated model.
type ResourceRuntimeSpec struct {
	ID              string
	BoundCoreID     string
	CeilingPriority float64
}

// Protocol is the resource-protocol extension point.
type Protocol interface {
	Name() string
	Configure(resources []ResourceRuntimeSpec)
	Request(segmentKey, resourceID, coreID string, priority float64) RequestResult
	Release(segmentKey, resourceID string) ReleaseResult
	CancelSegment(segmentKey string) ReleaseResult
	SetPriorityDomain(domain string)
}

const reasonBoundCoreViolation = "bound_core_violation"
const reasonResourceBusy = "resource_busy"
const reasonSystemCeilingBlock = "system_ceiling_block"

func priorityChanged(prev, next float64) bool {
	return math.Abs(prev-next) > priorityEpsilon
}

// dedupPreserveOrder removes repeated entries from woken lists while
// keeping the position of each value's first occurrence, per spec.md
// §4.3.2's cancel-path requirement.
func dedupPreserveOrder(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// mergeUpdates copies src into dst (dst is never nil after this call if src
// is non-empty).
func mergeUpdates(dst, src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]float64, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
