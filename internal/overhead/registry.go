package overhead

import "github.com/rtossim/core/internal/registry"

var builtins = registry.New[Model]()

func init() {
	simple := func(params map[string]any) (Model, error) { return NewSimple(params), nil }
	builtins.MustRegister("simple", simple)
	builtins.MustRegister("default", simple)
}

// Build resolves name (case-insensitive) to a Model.
func Build(name string, params map[string]any) (Model, error) {
	return builtins.Build(name, params)
}

// Names lists every registered overhead model name.
func Names() []string { return builtins.Names() }
