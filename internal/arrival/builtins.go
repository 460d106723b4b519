package arrival

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConstantInterval always returns a fixed interval from params.interval.
type ConstantInterval struct{}

func (ConstantInterval) Name() string { return "constant_interval" }

func (ConstantInterval) NextInterval(req Request) (float64, error) {
	interval, ok := paramFloat(req.Params, "interval")
	if !ok {
		return 0, fmt.Errorf("arrival: constant_interval requires numeric params.interval")
	}
	if interval <= 0 {
		return 0, fmt.Errorf("arrival: constant_interval requires params.interval > 0")
	}
	return interval, nil
}

// UniformInterval returns rng.Float64() scaled into [min_interval,
// max_interval].
type UniformInterval struct{}

func (UniformInterval) Name() string { return "uniform_interval" }

func (UniformInterval) NextInterval(req Request) (float64, error) {
	lower, lok := paramFloat(req.Params, "min_interval")
	upper, uok := paramFloat(req.Params, "max_interval")
	if !lok || !uok {
		return 0, fmt.Errorf("arrival: uniform_interval requires numeric params.min_interval and params.max_interval")
	}
	if lower <= 0 || upper <= 0 {
		return 0, fmt.Errorf("arrival: uniform_interval requires intervals > 0")
	}
	if upper < lower-1e-12 {
		return 0, fmt.Errorf("arrival: uniform_interval requires max_interval >= min_interval")
	}
	if req.Rng == nil {
		return 0, fmt.Errorf("arrival: uniform_interval requires a seeded rng")
	}
	return lower + req.Rng.Float64()*(upper-lower), nil
}

// PoissonRate returns an exponentially distributed interval with the given
// rate.
type PoissonRate struct{}

func (PoissonRate) Name() string { return "poisson_rate" }

func (PoissonRate) NextInterval(req Request) (float64, error) {
	rate, ok := paramFloat(req.Params, "rate")
	if !ok {
		return 0, fmt.Errorf("arrival: poisson_rate requires numeric params.rate")
	}
	if rate <= 0 {
		return 0, fmt.Errorf("arrival: poisson_rate requires params.rate > 0")
	}
	if req.Rng == nil {
		return 0, fmt.Errorf("arrival: poisson_rate requires a seeded rng")
	}
	interval := req.Rng.ExpFloat64() / rate
	if interval <= 0 {
		return 0, fmt.Errorf("arrival: poisson_rate produced a non-positive interval")
	}
	return interval, nil
}

// Sequence replays a fixed list of intervals, parsed from either a single
// number or a comma-separated string in params.sequence, repeating by
// default or holding the last value if params.repeat is false.
type Sequence struct{}

func (Sequence) Name() string { return "sequence" }

func (Sequence) NextInterval(req Request) (float64, error) {
	values, err := parseSequence(req.Params["sequence"])
	if err != nil {
		return 0, err
	}
	intervalIndex := req.ReleaseIndex - 1
	if intervalIndex < 0 {
		intervalIndex = 0
	}
	repeat := true
	if raw, ok := req.Params["repeat"]; ok {
		if b, ok := raw.(bool); ok {
			repeat = b
		}
	}
	if repeat {
		return values[intervalIndex%len(values)], nil
	}
	idx := intervalIndex
	if idx > len(values)-1 {
		idx = len(values) - 1
	}
	return values[idx], nil
}

func parseSequence(raw any) ([]float64, error) {
	switch v := raw.(type) {
	case float64:
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("arrival: sequence requires all intervals > 0")
		}
		return []float64{v}, nil
	case int:
		if v <= 0 {
			return nil, fmt.Errorf("arrival: sequence requires all intervals > 0")
		}
		return []float64{float64(v)}, nil
	case string:
		tokens := strings.Split(v, ",")
		values := make([]float64, 0, len(tokens))
		for _, tok := range tokens {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				return nil, fmt.Errorf("arrival: sequence requires non-empty params.sequence")
			}
			f, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("arrival: sequence: %w", err)
			}
			values = append(values, f)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("arrival: sequence requires non-empty params.sequence")
		}
		for _, f := range values {
			if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
				return nil, fmt.Errorf("arrival: sequence requires all intervals > 0")
			}
		}
		return values, nil
	default:
		return nil, fmt.Errorf("arrival: sequence requires params.sequence as a string or number")
	}
}

func paramFloat(params map[string]any, key string) (float64, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
