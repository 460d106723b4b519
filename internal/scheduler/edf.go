package scheduler

// EDF implements earliest-deadline-first dispatch. Priority key per
// spec.md §4.2: (absolute_deadline, release_time, segment_key), read
// through the segment's current effective priority so a protocol-driven
// boost (PIP/PCP) can change dispatch order.
type EDF struct{}

func NewEDF() *EDF { return &EDF{} }

func (*EDF) Name() string { return "edf" }

func (e *EDF) Schedule(snap Snapshot) []Decision {
	return dispatch(e.less, snap)
}

func (*EDF) less(a, b ReadySegment) bool {
	if a.EffectivePriority != b.EffectivePriority {
		return a.EffectivePriority > b.EffectivePriority
	}
	if a.AbsoluteDeadline != b.AbsoluteDeadline {
		return a.AbsoluteDeadline < b.AbsoluteDeadline
	}
	if a.ReleaseTime != b.ReleaseTime {
		return a.ReleaseTime < b.ReleaseTime
	}
	return a.SegmentKey < b.SegmentKey
}
