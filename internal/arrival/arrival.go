// Package arrival implements pluggable release-interval generators for
// tasks whose arrival process is not purely periodic. This is a
// supplemented feature (see SPEC_FULL.md §4): spec.md names an arrival
// registry as an extension point but does not describe concrete
// generators, so the four from the original engine are carried forward.
package arrival

import "math/rand"

// Request is the context a generator receives when asked for the next
// release interval for a task.
type Request struct {
	TaskID         string
	Now            float64
	CurrentRelease float64
	// ReleaseIndex is 1 for the first interval requested after the task's
	// initial arrival, 2 for the one after that, and so on.
	ReleaseIndex int
	Params       map[string]any
	Rng          *rand.Rand
}

// Generator produces the next release interval (always > 0) for a task's
// arrival process.
type Generator interface {
	Name() string
	NextInterval(req Request) (float64, error)
}
