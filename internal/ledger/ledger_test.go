package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtossim/core/internal/ledger"
)

func TestPublish_AssignsIncreasingSeqAndStableEventID(t *testing.T) {
	b := ledger.NewBus()
	e0 := b.Publish(ledger.Publish{Time: 0, Type: ledger.JobReleased, CorrelationID: "t0@0"})
	e1 := b.Publish(ledger.Publish{Time: 1, Type: ledger.SegmentStart, CorrelationID: "t0@0"})

	assert.Equal(t, uint64(0), e0.Seq)
	assert.Equal(t, uint64(1), e1.Seq)
	assert.NotEqual(t, e0.EventID, e1.EventID)
}

func TestPublish_EventIDIsDeterministic(t *testing.T) {
	b1 := ledger.NewBus()
	b2 := ledger.NewBus()
	e1 := b1.Publish(ledger.Publish{Time: 3.5, Type: ledger.DeadlineMiss, CorrelationID: "t0@2"})
	e2 := b2.Publish(ledger.Publish{Time: 3.5, Type: ledger.DeadlineMiss, CorrelationID: "t0@2"})
	assert.Equal(t, e1.EventID, e2.EventID)
}

func TestSubscribe_ReceivesInPublishOrder(t *testing.T) {
	b := ledger.NewBus()
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(ledger.Publish{Time: 0, Type: ledger.JobReleased})
	b.Publish(ledger.Publish{Time: 1, Type: ledger.SegmentStart})

	first := <-sub.C()
	second := <-sub.C()
	assert.Equal(t, ledger.JobReleased, first.Type)
	assert.Equal(t, ledger.SegmentStart, second.Type)
}

func TestSubscribe_DropsWhenBufferFull(t *testing.T) {
	b := ledger.NewBus()
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 100; i++ {
		b.Publish(ledger.Publish{Time: float64(i), Type: ledger.SegmentReady})
	}
	stats := b.Stats()
	require.Greater(t, stats.Dropped, int64(0))
	assert.Equal(t, int64(100), stats.Published)
}

func TestEvents_SnapshotIsOrderedAndImmutable(t *testing.T) {
	b := ledger.NewBus()
	b.Publish(ledger.Publish{Time: 0, Type: ledger.JobReleased})
	b.Publish(ledger.Publish{Time: 1, Type: ledger.JobComplete})

	events := b.Events()
	require.Len(t, events, 2)
	assert.True(t, events[0].Time <= events[1].Time)
	assert.True(t, events[0].Seq < events[1].Seq)

	events[0].Type = ledger.ErrorEvent
	assert.Equal(t, ledger.JobReleased, b.Events()[0].Type)
}
