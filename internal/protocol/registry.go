package protocol

import "github.com/rtossim/core/internal/registry"

var builtins = registry.New[Protocol]()

func init() {
	builtins.MustRegister("mutex", func(map[string]any) (Protocol, error) { return NewMutex(), nil })
	builtins.MustRegister("pip", func(map[string]any) (Protocol, error) { return NewPIP(), nil })
	builtins.MustRegister("pcp", func(map[string]any) (Protocol, error) { return NewPCP(), nil })
}

// Build resolves name (case-insensitive) to a fresh Protocol instance.
func Build(name string, params map[string]any) (Protocol, error) {
	return builtins.Build(name, params)
}

// Names lists every registered protocol name.
func Names() []string { return builtins.Names() }
