package overhead_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtossim/core/internal/overhead"
)

func TestSimple_DefaultsToZero(t *testing.T) {
	s := overhead.NewSimple(nil)
	assert.Zero(t, s.OnContextSwitch("j0", "c0"))
	assert.Zero(t, s.OnMigration("j0", "c0", "c1"))
	assert.Zero(t, s.OnSchedule("edf"))
}

func TestSimple_UsesConfiguredValues(t *testing.T) {
	s := overhead.NewSimple(map[string]any{"context_switch": 0.1, "migration": 0.5, "schedule": 0.01})
	assert.Equal(t, 0.1, s.OnContextSwitch("j0", "c0"))
	assert.Equal(t, 0.5, s.OnMigration("j0", "c0", "c1"))
	assert.Equal(t, 0.01, s.OnSchedule("edf"))
}

func TestSimple_ClampsNegativeToZero(t *testing.T) {
	s := overhead.NewSimple(map[string]any{"context_switch": -1.0})
	assert.Zero(t, s.OnContextSwitch("j0", "c0"))
}

func TestBuild_AliasesResolveToSimple(t *testing.T) {
	a, err := overhead.Build("simple", nil)
	require.NoError(t, err)
	b, err := overhead.Build("default", nil)
	require.NoError(t, err)
	assert.Equal(t, a.Name(), b.Name())
}

func TestBuild_UnknownNameFails(t *testing.T) {
	_, err := overhead.Build("not_a_real_overhead_model", nil)
	assert.Error(t, err)
}
