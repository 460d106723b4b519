package etm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtossim/core/internal/etm"
)

func TestConstant_EstimatesWCETOverCoreSpeed(t *testing.T) {
	c := etm.NewConstant()
	v, err := c.Estimate(context.Background(), 10, 2, 0, etm.Context{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestConstant_RejectsZeroCoreSpeed(t *testing.T) {
	c := etm.NewConstant()
	_, err := c.Estimate(context.Background(), 10, 0, 0, etm.Context{})
	assert.Error(t, err)
}

func TestTableBased_UsesExactKeyMatch(t *testing.T) {
	m, err := etm.NewTableBased(map[string]any{
		"table": map[string]any{"seg0@c0": 2.0},
	})
	require.NoError(t, err)
	v, err := m.Estimate(context.Background(), 10, 1, 0, etm.Context{SegmentID: "seg0", CoreID: "c0"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
}

func TestTableBased_FallsThroughToWildcard(t *testing.T) {
	m, err := etm.NewTableBased(map[string]any{
		"table": map[string]any{"seg0@*": 3.0},
	})
	require.NoError(t, err)
	v, err := m.Estimate(context.Background(), 10, 1, 0, etm.Context{SegmentID: "seg0", CoreID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)
}

func TestTableBased_FallsBackToDefaultScale(t *testing.T) {
	m, err := etm.NewTableBased(map[string]any{"default_scale": 1.5})
	require.NoError(t, err)
	v, err := m.Estimate(context.Background(), 10, 1, 0, etm.Context{SegmentID: "unknown", CoreID: "c0"})
	require.NoError(t, err)
	assert.Equal(t, 15.0, v)
}

func TestTableBased_RejectsNonPositiveScale(t *testing.T) {
	_, err := etm.NewTableBased(map[string]any{
		"table": map[string]any{"seg0@c0": -1.0},
	})
	assert.Error(t, err)
}

func TestTableBased_RejectsNonPositiveDefaultScale(t *testing.T) {
	_, err := etm.NewTableBased(map[string]any{"default_scale": 0.0})
	assert.Error(t, err)
}

func TestBuild_UnknownNameFails(t *testing.T) {
	_, err := etm.Build("not_a_real_etm", nil)
	assert.Error(t, err)
}
