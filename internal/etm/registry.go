package etm

import "github.com/rtossim/core/internal/registry"

var builtins = registry.New[Model]()

func init() {
	builtins.MustRegister("constant", func(map[string]any) (Model, error) { return NewConstant(), nil })
	builtins.MustRegister("table_based", func(params map[string]any) (Model, error) { return NewTableBased(params) })
}

// Build resolves name (case-insensitive) to a Model.
func Build(name string, params map[string]any) (Model, error) {
	return builtins.Build(name, params)
}

// Names lists every registered ETM name.
func Names() []string { return builtins.Names() }
