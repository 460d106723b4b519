package arrival_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtossim/core/internal/arrival"
)

func TestConstantInterval_ReturnsConfiguredValue(t *testing.T) {
	g := arrival.ConstantInterval{}
	v, err := g.NextInterval(arrival.Request{Params: map[string]any{"interval": 5.0}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestConstantInterval_RejectsMissingParam(t *testing.T) {
	g := arrival.ConstantInterval{}
	_, err := g.NextInterval(arrival.Request{})
	assert.Error(t, err)
}

func TestUniformInterval_StaysWithinBounds(t *testing.T) {
	g := arrival.UniformInterval{}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		v, err := g.NextInterval(arrival.Request{
			Params: map[string]any{"min_interval": 2.0, "max_interval": 4.0},
			Rng:    rng,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 2.0)
		assert.LessOrEqual(t, v, 4.0)
	}
}

func TestUniformInterval_IsDeterministicForFixedSeed(t *testing.T) {
	g := arrival.UniformInterval{}
	params := map[string]any{"min_interval": 1.0, "max_interval": 10.0}

	rngA := rand.New(rand.NewSource(42))
	a, err := g.NextInterval(arrival.Request{Params: params, Rng: rngA})
	require.NoError(t, err)

	rngB := rand.New(rand.NewSource(42))
	b, err := g.NextInterval(arrival.Request{Params: params, Rng: rngB})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestPoissonRate_RejectsNonPositiveRate(t *testing.T) {
	g := arrival.PoissonRate{}
	_, err := g.NextInterval(arrival.Request{Params: map[string]any{"rate": 0.0}, Rng: rand.New(rand.NewSource(1))})
	assert.Error(t, err)
}

func TestPoissonRate_ProducesPositiveInterval(t *testing.T) {
	g := arrival.PoissonRate{}
	v, err := g.NextInterval(arrival.Request{
		Params: map[string]any{"rate": 2.0},
		Rng:    rand.New(rand.NewSource(7)),
	})
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
}

func TestSequence_RepeatsByDefault(t *testing.T) {
	g := arrival.Sequence{}
	params := map[string]any{"sequence": "1,2,3"}
	v1, err := g.NextInterval(arrival.Request{Params: params, ReleaseIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v1)

	v4, err := g.NextInterval(arrival.Request{Params: params, ReleaseIndex: 4})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v4)
}

func TestSequence_HoldsLastValueWhenNotRepeating(t *testing.T) {
	g := arrival.Sequence{}
	params := map[string]any{"sequence": "1,2,3", "repeat": false}
	v5, err := g.NextInterval(arrival.Request{Params: params, ReleaseIndex: 5})
	require.NoError(t, err)
	assert.Equal(t, 3.0, v5)
}

func TestSequence_RejectsNonPositiveValues(t *testing.T) {
	g := arrival.Sequence{}
	_, err := g.NextInterval(arrival.Request{Params: map[string]any{"sequence": "1,-2,3"}, ReleaseIndex: 1})
	assert.Error(t, err)
}

func TestBuild_UnknownNameFails(t *testing.T) {
	_, err := arrival.Build("not_a_real_generator", nil)
	assert.Error(t, err)
}
