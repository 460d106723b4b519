package engine

import "github.com/rtossim/core/internal/ledger"

// recordRuntimeMetrics replays every ledger event published since the last
// call into the facade's ambient runtime gauges and span histogram. It runs
// after every Run and Step so interactive stepping gets a gauge reading per
// step and a batch Run gets one reading for the whole pass, the same
// replay-the-authoritative-log idiom Metrics() uses for the domain report.
//
// The running/ready counters are a best-effort approximation: a segment
// that the abort cascade finishes while still only ready, never blocked or
// dispatched, leaves no event pair to balance its readyCount increment.
// Ambient instrumentation tolerates that drift; the domain ledger itself
// is unaffected.
func (e *Engine) recordRuntimeMetrics() {
	events := e.inner.Events()
	start := e.observedSeq
	if start > len(events) {
		start = 0
	}
	for _, evt := range events[start:] {
		e.observeRuntimeEvent(evt)
	}
	e.observedSeq = len(events)
	e.runningGauge.Set(float64(e.runningCount))
	e.readyGauge.Set(float64(e.readyCount))
}

func (e *Engine) observeRuntimeEvent(evt ledger.Event) {
	switch evt.Type {
	case ledger.SegmentReady, ledger.SegmentUnblocked:
		e.readyCount++

	case ledger.SegmentBlocked:
		e.readyCount--

	case ledger.SegmentStart:
		e.readyCount--
		e.runningCount++
		if key, ok := evt.Payload["segment_key"].(string); ok {
			e.runningSince[key] = evt.Time
		}

	case ledger.SegmentEnd, ledger.Preempt:
		e.runningCount--
		if evt.Type == ledger.Preempt && evt.Payload["reason"] != "abort_on_miss" {
			// A plain scheduling preempt requeues the segment; an abort
			// cascade preempt finishes it instead (internal/engine/abort.go).
			e.readyCount++
		}
		key, _ := evt.Payload["segment_key"].(string)
		if key == "" {
			key = evt.SegmentID
		}
		if start, ok := e.runningSince[key]; ok {
			delete(e.runningSince, key)
			if span := evt.Time - start; span > 0 {
				e.segmentSpanHist.Observe(span)
			}
		}
	}
}
