package engine

import (
	"github.com/rtossim/core/internal/arrival"
	"github.com/rtossim/core/internal/etm"
	"github.com/rtossim/core/internal/overhead"
	"github.com/rtossim/core/internal/protocol"
	"github.com/rtossim/core/internal/scheduler"
)

// strategies.go consolidates the primary extension point interfaces for
// easier discovery. Each one is implemented by the internal/ package of the
// same concern and exposed here only as a type alias, so embedders writing
// a custom Scheduler, Protocol, ETM, Overhead model, or Arrival generator
// implement against a single, documented surface instead of reaching into
// internal packages directly.

// Scheduler decides, on every scheduling pass, which ready segments run on
// which cores. Implementations must be pure: same (now, snapshot) in,
// same decisions out, no hidden state across calls beyond what Snapshot
// already carries.
type Scheduler = scheduler.Scheduler

// Protocol governs acquisition of a serially-reusable resource under a
// concurrency-control discipline (plain FIFO, priority inheritance, or
// priority ceiling).
type Protocol = protocol.Protocol

// ExecutionTimeModel maps a segment's remaining WCET and a core's speed
// factor onto a projected execution time, optionally consulting
// per-segment/per-core history.
type ExecutionTimeModel = etm.Model

// OverheadModel charges fixed or table-driven costs for context switches,
// migrations, and scheduling decisions.
type OverheadModel = overhead.Model

// ArrivalGenerator produces the inter-arrival interval for a dynamic_rt
// task's next release.
type ArrivalGenerator = arrival.Generator
