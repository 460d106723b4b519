package engine

import "errors"

// ErrNotBuilt is returned by Run/Step when called before Build.
var ErrNotBuilt = errors.New("engine: Build must be called before Run or Step")
