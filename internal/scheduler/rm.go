package scheduler

// RM implements fixed-priority rate-monotonic dispatch. Priority key per
// spec.md §4.2: (period, absolute_deadline, release_time, segment_key),
// read through the segment's current effective priority so a
// protocol-driven boost (PIP/PCP) can change dispatch order.
type RM struct{}

func NewRM() *RM { return &RM{} }

func (*RM) Name() string { return "rm" }

func (r *RM) Schedule(snap Snapshot) []Decision {
	return dispatch(r.less, snap)
}

func (*RM) less(a, b ReadySegment) bool {
	if a.EffectivePriority != b.EffectivePriority {
		return a.EffectivePriority > b.EffectivePriority
	}
	if a.Period != b.Period {
		return a.Period < b.Period
	}
	if a.AbsoluteDeadline != b.AbsoluteDeadline {
		return a.AbsoluteDeadline < b.AbsoluteDeadline
	}
	if a.ReleaseTime != b.ReleaseTime {
		return a.ReleaseTime < b.ReleaseTime
	}
	return a.SegmentKey < b.SegmentKey
}
