// Package engine is the public facade for a deterministic real-time
// task-set simulator. It composes a single-threaded discrete-event
// simulation core, a totally ordered event ledger, a pluggable scheduler
// and resource-protocol layer, and a domain metrics aggregator behind one
// programmatic entry point:
//
//	cfg := engine.Defaults()
//	e, err := engine.New(cfg)
//	if err != nil { ... }
//	spec, err := model.Decode(r, model.FormatYAML)
//	if err != nil { ... }
//	if err := e.Build(spec); err != nil { ... }
//	if err := e.Run(nil); err != nil { ... }
//	report := e.Metrics()
//
// Every run is reproducible: given the same ModelSpec and the same seed,
// the ledger's event sequence and the resulting Metrics report are
// bit-identical across executions, since the simulation core has no
// concurrency, no wall-clock dependency, and no randomness besides the
// single seeded generator driving dynamic task arrivals.
package engine
