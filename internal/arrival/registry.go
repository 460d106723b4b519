package arrival

import "github.com/rtossim/core/internal/registry"

var builtins = registry.New[Generator]()

func init() {
	builtins.MustRegister("constant_interval", func(map[string]any) (Generator, error) { return ConstantInterval{}, nil })
	builtins.MustRegister("uniform_interval", func(map[string]any) (Generator, error) { return UniformInterval{}, nil })
	builtins.MustRegister("poisson_rate", func(map[string]any) (Generator, error) { return PoissonRate{}, nil })
	builtins.MustRegister("sequence", func(map[string]any) (Generator, error) { return Sequence{}, nil })
}

// Build resolves name (case-insensitive) to a Generator.
func Build(name string, params map[string]any) (Generator, error) {
	return builtins.Build(name, params)
}

// Names lists every registered arrival generator name.
func Names() []string { return builtins.Names() }
