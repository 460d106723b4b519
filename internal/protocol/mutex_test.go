package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtossim/core/internal/protocol"
)

func newMutexWithOneResource() *protocol.Mutex {
	m := protocol.NewMutex()
	m.Configure([]protocol.ResourceRuntimeSpec{{ID: "r0", BoundCoreID: "c0"}})
	return m
}

func TestMutex_GrantsFreeResource(t *testing.T) {
	m := newMutexWithOneResource()
	res := m.Request("j0:s0:seg0", "r0", "c0", 0)
	assert.True(t, res.Granted)
}

func TestMutex_BoundCoreViolation(t *testing.T) {
	m := newMutexWithOneResource()
	res := m.Request("j0:s0:seg0", "r0", "c1", 0)
	require.False(t, res.Granted)
	assert.Equal(t, "bound_core_violation", res.Reason)
}

func TestMutex_QueuesAndWakesFIFO(t *testing.T) {
	m := newMutexWithOneResource()
	require.True(t, m.Request("a", "r0", "c0", 0).Granted)

	deny1 := m.Request("b", "r0", "c0", 0)
	assert.False(t, deny1.Granted)
	assert.Equal(t, "resource_busy", deny1.Reason)

	deny2 := m.Request("c", "r0", "c0", 0)
	assert.False(t, deny2.Granted)

	rel := m.Release("a", "r0")
	require.Len(t, rel.Woken, 1)
	assert.Equal(t, "b", rel.Woken[0])

	rel2 := m.Release("b", "r0")
	require.Len(t, rel2.Woken, 1)
	assert.Equal(t, "c", rel2.Woken[0])
}

func TestMutex_DuplicateRequestDoesNotRequeue(t *testing.T) {
	m := newMutexWithOneResource()
	require.True(t, m.Request("a", "r0", "c0", 0).Granted)
	m.Request("b", "r0", "c0", 0)
	m.Request("b", "r0", "c0", 0)

	rel := m.Release("a", "r0")
	require.Len(t, rel.Woken, 1)
	assert.Equal(t, "b", rel.Woken[0])

	// b's second queued entry should not still be waiting.
	rel2 := m.Release("b", "r0")
	assert.Empty(t, rel2.Woken)
}

func TestMutex_CancelReleasesOwnedAndDequeuesWaiting(t *testing.T) {
	m := newMutexWithOneResource()
	require.True(t, m.Request("a", "r0", "c0", 0).Granted)
	m.Request("b", "r0", "c0", 0)

	cancel := m.CancelSegment("a")
	require.Len(t, cancel.Woken, 1)
	assert.Equal(t, "b", cancel.Woken[0])
}
