package etm

import (
	"context"
	"fmt"
	"strings"
)

// TableBased applies a configurable scale factor on top of wcet/core_speed,
// looked up by "{segment_id}@{core_id}" with a "{segment_id}@*" wildcard
// fall-through and a default scale otherwise. spec.md §4.7 describes this
// simpler key format; the original's longer task/subtask-qualified key list
// is not carried forward (see SPEC_FULL.md §5).
type TableBased struct {
	defaultScale float64
	scales       map[string]float64
}

// NewTableBased builds a TableBased model from scheduler.params.etm_params.
// table entries and default_scale must all be strictly positive.
func NewTableBased(params map[string]any) (*TableBased, error) {
	defaultScale := 1.0
	if raw, ok := params["default_scale"]; ok {
		v, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("etm: default_scale: %w", err)
		}
		defaultScale = v
	}
	if defaultScale <= 0 {
		return nil, fmt.Errorf("etm: default_scale must be > 0, got %g", defaultScale)
	}

	scales := make(map[string]float64)
	if rawTable, ok := params["table"]; ok {
		table, ok := rawTable.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("etm: table must be an object")
		}
		for rawKey, rawScale := range table {
			key := strings.TrimSpace(rawKey)
			if key == "" {
				return nil, fmt.Errorf("etm: table contains an empty key")
			}
			scale, err := toFloat(rawScale)
			if err != nil {
				return nil, fmt.Errorf("etm: table[%q]: %w", key, err)
			}
			if scale <= 0 {
				return nil, fmt.Errorf("etm: table[%q] must be > 0, got %g", key, scale)
			}
			scales[key] = scale
		}
	}
	return &TableBased{defaultScale: defaultScale, scales: scales}, nil
}

func (*TableBased) Name() string { return "table_based" }

func (m *TableBased) Estimate(_ context.Context, wcet, coreSpeed, _ float64, segCtx Context) (float64, error) {
	if coreSpeed <= 0 {
		return 0, fmt.Errorf("etm: core_speed must be > 0, got %g", coreSpeed)
	}
	baseline := wcet / coreSpeed
	scale := m.resolveScale(segCtx)
	t := baseline * scale
	if t <= 0 {
		return 0, fmt.Errorf("etm: estimate must be > 0, got %g", t)
	}
	return t, nil
}

func (m *TableBased) resolveScale(segCtx Context) float64 {
	if segCtx.SegmentID == "" {
		return m.defaultScale
	}
	core := segCtx.CoreID
	if core == "" {
		core = "*"
	}
	if scale, ok := m.scales[segCtx.SegmentID+"@"+core]; ok {
		return scale
	}
	if scale, ok := m.scales[segCtx.SegmentID+"@*"]; ok {
		return scale
	}
	return m.defaultScale
}

func (*TableBased) OnExec(string, string, float64) {}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
