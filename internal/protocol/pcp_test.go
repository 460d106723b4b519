package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtossim/core/internal/protocol"
)

func newPCP(resources ...protocol.ResourceRuntimeSpec) *protocol.PCP {
	p := protocol.NewPCP()
	p.Configure(resources)
	return p
}

func TestPCP_GrantsWhenAboveSystemCeiling(t *testing.T) {
	p := newPCP(protocol.ResourceRuntimeSpec{ID: "r0", BoundCoreID: "c0", CeilingPriority: -5})
	res := p.Request("high", "r0", "c0", -1)
	assert.True(t, res.Granted)
	assert.Equal(t, -5.0, res.Metadata["ceiling_priority"])
}

func TestPCP_BlocksOnLowerFreeResourceCeiling(t *testing.T) {
	p := newPCP(
		protocol.ResourceRuntimeSpec{ID: "r0", BoundCoreID: "c0", CeilingPriority: -1},
		protocol.ResourceRuntimeSpec{ID: "r1", BoundCoreID: "c0", CeilingPriority: -5},
	)
	require.True(t, p.Request("high", "r0", "c0", -1).Granted)

	// low's priority (-10) does not exceed r0's ceiling (-1), which is held
	// by someone else, so even requesting the free r1 is ceiling-blocked.
	deny := p.Request("low", "r1", "c0", -10)
	require.False(t, deny.Granted)
	assert.Equal(t, "system_ceiling_block", deny.Reason)
	assert.Equal(t, -1.0, deny.Metadata["system_ceiling"])
}

func TestPCP_BusyResourceEnqueuesNoPriorityUpdate(t *testing.T) {
	p := newPCP(protocol.ResourceRuntimeSpec{ID: "r0", BoundCoreID: "c0", CeilingPriority: -1})
	require.True(t, p.Request("owner", "r0", "c0", -10).Granted)
	deny := p.Request("waiter", "r0", "c0", -1)
	require.False(t, deny.Granted)
	assert.Equal(t, "resource_busy", deny.Reason)
	assert.Equal(t, "owner", deny.Metadata["owner_segment"])
	assert.Empty(t, deny.PriorityUpdates)
}

func TestPCP_ReleaseWakesDeferredCeilingBlockedRequest(t *testing.T) {
	p := newPCP(
		protocol.ResourceRuntimeSpec{ID: "r0", BoundCoreID: "c0", CeilingPriority: -1},
		protocol.ResourceRuntimeSpec{ID: "r1", BoundCoreID: "c0", CeilingPriority: -5},
	)
	require.True(t, p.Request("high", "r0", "c0", -1).Granted)
	deny := p.Request("low", "r1", "c0", -10)
	require.Equal(t, "system_ceiling_block", deny.Reason)

	rel := p.Release("high", "r0")
	assert.Contains(t, rel.Woken, "low")
}

func TestPCP_CancelReleasesHeldAndClearsDeferredBlock(t *testing.T) {
	p := newPCP(
		protocol.ResourceRuntimeSpec{ID: "r0", BoundCoreID: "c0", CeilingPriority: -1},
		protocol.ResourceRuntimeSpec{ID: "r1", BoundCoreID: "c0", CeilingPriority: -5},
	)
	require.True(t, p.Request("high", "r0", "c0", -1).Granted)
	p.Request("low", "r1", "c0", -10)

	cancel := p.CancelSegment("high")
	assert.Contains(t, cancel.Woken, "low")

	// r0 must be free again after cancel.
	res := p.Request("another", "r0", "c0", -1)
	assert.True(t, res.Granted)
}

func TestPCP_BoundCoreViolation(t *testing.T) {
	p := newPCP(protocol.ResourceRuntimeSpec{ID: "r0", BoundCoreID: "c0"})
	res := p.Request("a", "r0", "c9", 0)
	assert.Equal(t, "bound_core_violation", res.Reason)
}
