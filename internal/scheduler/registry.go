package scheduler

import "github.com/rtossim/core/internal/registry"

var builtins = registry.New[Scheduler]()

func init() {
	edf := func(map[string]any) (Scheduler, error) { return NewEDF(), nil }
	rm := func(map[string]any) (Scheduler, error) { return NewRM(), nil }
	builtins.MustRegister("edf", edf)
	builtins.MustRegister("earliest_deadline_first", edf)
	builtins.MustRegister("rm", rm)
	builtins.MustRegister("rate_monotonic", rm)
	builtins.MustRegister("fixed_priority", rm)
}

// Build resolves name (case-insensitive) to a Scheduler. Unknown names
// fail the build per spec.md §6.
func Build(name string, params map[string]any) (Scheduler, error) {
	return builtins.Build(name, params)
}

// Names lists every registered scheduler name.
func Names() []string { return builtins.Names() }
