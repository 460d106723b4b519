// Package overhead models the fixed time costs the engine charges to the
// clock around scheduling decisions: context switches, core migrations, and
// the scheduler's own decision cost.
package overhead

// Model is the overhead-charging extension point. All three hooks must
// return non-negative scalars; defaults are all zero. Grounded on
// overheads/base.py.
type Model interface {
	Name() string
	OnContextSwitch(jobID, coreID string) float64
	OnMigration(jobID, fromCore, toCore string) float64
	OnSchedule(schedulerName string) float64
}
