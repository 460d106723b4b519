package etm

import (
	"context"
	"fmt"
)

// Constant estimates execution time as wcet/core_speed with no scaling.
// Grounded on etm/constant.py.
type Constant struct{}

func NewConstant() *Constant { return &Constant{} }

func (*Constant) Name() string { return "constant" }

func (*Constant) Estimate(_ context.Context, wcet, coreSpeed, _ float64, _ Context) (float64, error) {
	if coreSpeed <= 0 {
		return 0, fmt.Errorf("etm: core_speed must be > 0, got %g", coreSpeed)
	}
	t := wcet / coreSpeed
	if t <= 0 {
		return 0, fmt.Errorf("etm: estimate must be > 0, got %g", t)
	}
	return t, nil
}

func (*Constant) OnExec(string, string, float64) {}
