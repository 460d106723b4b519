package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	internalengine "github.com/rtossim/core/internal/engine"
	"github.com/rtossim/core/internal/ledger"
	telemetrylogging "github.com/rtossim/core/internal/telemetry/logging"
	telemetrymetrics "github.com/rtossim/core/internal/telemetry/metrics"
	"github.com/rtossim/core/metrics"
	"github.com/rtossim/core/model"
)

// Engine composes the deterministic simulation core, its event ledger, the
// domain Metrics Aggregator, and ambient telemetry behind a single facade,
// the way the teacher's Engine composes its pipeline, resource manager, and
// telemetry subsystems behind one Start/Stop/Snapshot surface.
type Engine struct {
	cfg Config
	log telemetrylogging.Logger

	bus   *ledger.Bus
	inner *internalengine.Engine

	metricsProvider telemetrymetrics.Provider
	tickCounter     telemetrymetrics.Counter
	eventCounter    telemetrymetrics.Counter
	droppedCounter  telemetrymetrics.Counter
	runningGauge    telemetrymetrics.Gauge
	readyGauge      telemetrymetrics.Gauge
	segmentSpanHist telemetrymetrics.Histogram
	runTimer        func() telemetrymetrics.Timer

	spec *model.ModelSpec

	observedSeq  int
	runningSince map[string]float64
	runningCount int
	readyCount   int
}

// New constructs an Engine from cfg. The returned Engine has no model
// loaded yet; call Build before Run or Step.
func New(cfg Config) (*Engine, error) {
	bus := ledger.NewBus()
	e := &Engine{
		cfg:          cfg,
		log:          telemetrylogging.New(nil),
		bus:          bus,
		inner:        internalengine.New(bus),
		runningSince: make(map[string]float64),
	}
	e.metricsProvider = selectMetricsProvider(cfg)
	e.tickCounter = e.metricsProvider.NewCounter(telemetrymetrics.CounterOpts{CommonOpts: telemetrymetrics.CommonOpts{
		Namespace: "rtossim", Subsystem: "engine", Name: "ticks_total", Help: "Step calls made on the engine facade.",
	}})
	e.eventCounter = e.metricsProvider.NewCounter(telemetrymetrics.CounterOpts{CommonOpts: telemetrymetrics.CommonOpts{
		Namespace: "rtossim", Subsystem: "ledger", Name: "events_published_total", Help: "Events published to the ledger bus.",
	}})
	e.droppedCounter = e.metricsProvider.NewCounter(telemetrymetrics.CounterOpts{CommonOpts: telemetrymetrics.CommonOpts{
		Namespace: "rtossim", Subsystem: "ledger", Name: "events_dropped_total", Help: "Events dropped for a slow subscriber.",
	}})
	e.runningGauge = e.metricsProvider.NewGauge(telemetrymetrics.GaugeOpts{CommonOpts: telemetrymetrics.CommonOpts{
		Namespace: "rtossim", Subsystem: "engine", Name: "segments_running", Help: "Segments currently occupying a core, as of the last Run or Step call.",
	}})
	e.readyGauge = e.metricsProvider.NewGauge(telemetrymetrics.GaugeOpts{CommonOpts: telemetrymetrics.CommonOpts{
		Namespace: "rtossim", Subsystem: "engine", Name: "segments_ready", Help: "Segments ready to dispatch but not yet holding a core, as of the last Run or Step call.",
	}})
	e.segmentSpanHist = e.metricsProvider.NewHistogram(telemetrymetrics.HistogramOpts{CommonOpts: telemetrymetrics.CommonOpts{
		Namespace: "rtossim", Subsystem: "engine", Name: "segment_run_span", Help: "Simulated time a segment occupies a core per dispatch, in model time units, ended by completion or preemption.",
	}})
	e.runTimer = e.metricsProvider.NewTimer(telemetrymetrics.HistogramOpts{CommonOpts: telemetrymetrics.CommonOpts{
		Namespace: "rtossim", Subsystem: "engine", Name: "run_wall_seconds", Help: "Wall-clock time spent inside Run.",
	}})
	return e, nil
}

// selectMetricsProvider mirrors the teacher's backend-selection switch in
// engine/engine.go (prom/otel/noop), defaulting unknown values to prom.
func selectMetricsProvider(cfg Config) telemetrymetrics.Provider {
	if !cfg.MetricsEnabled {
		return telemetrymetrics.NewNoopProvider()
	}
	switch cfg.MetricsBackend {
	case "noop":
		return telemetrymetrics.NewNoopProvider()
	case "otel":
		return telemetrymetrics.NewOTelProvider(telemetrymetrics.OTelProviderOptions{ServiceName: "rtossim"})
	case "prom", "":
		return telemetrymetrics.NewPrometheusProvider(telemetrymetrics.PrometheusProviderOptions{})
	default:
		return telemetrymetrics.NewPrometheusProvider(telemetrymetrics.PrometheusProviderOptions{})
	}
}

// Build validates spec and configures the simulation core to run it. The
// ledger is not cleared: events from a prior run stay in Events, and
// Metrics replays them together with the new run's events.
func (e *Engine) Build(spec *model.ModelSpec) error {
	if spec == nil {
		return fmt.Errorf("engine: nil model spec")
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("engine: invalid model: %w", err)
	}
	if err := e.inner.Build(spec); err != nil {
		return err
	}
	e.spec = spec
	e.log.InfoCtx(context.Background(), "model built",
		"tasks", len(spec.Tasks), "cores", len(spec.Platform.Cores), "scheduler", spec.Scheduler.Name)
	return nil
}

// Run advances the simulation to completion (or until, if given), honoring
// Config.RunTimeout when set.
func (e *Engine) Run(until *float64) error {
	stop := e.runTimer()
	defer stop.ObserveDuration()
	defer e.recordRuntimeMetrics()
	if e.cfg.RunTimeout <= 0 {
		return e.inner.Run(until)
	}
	done := make(chan error, 1)
	go func() { done <- e.inner.Run(until) }()
	select {
	case err := <-done:
		return err
	case <-time.After(e.cfg.RunTimeout):
		e.inner.Stop()
		return fmt.Errorf("engine: run exceeded timeout of %s", e.cfg.RunTimeout)
	}
}

// Step advances by one tick (delta nil) or by delta virtual-time units.
func (e *Engine) Step(delta *float64) error {
	e.tickCounter.Inc(1)
	defer e.recordRuntimeMetrics()
	return e.inner.Step(delta)
}

// Pause, Resume, and Stop delegate directly to the simulation core.
func (e *Engine) Pause()  { e.inner.Pause() }
func (e *Engine) Resume() { e.inner.Resume() }
func (e *Engine) Stop()   { e.inner.Stop() }

// Reset rewinds the simulation core and this facade's runtime-metrics
// bookkeeping, so a rebuilt model's gauges and span histogram don't mix
// segment spans from the discarded run with the new one.
func (e *Engine) Reset() {
	e.inner.Reset()
	e.observedSeq = len(e.inner.Events())
	e.runningCount = 0
	e.readyCount = 0
	e.runningSince = make(map[string]float64)
	e.runningGauge.Set(0)
	e.readyGauge.Set(0)
}

// Now returns the engine's current virtual time.
func (e *Engine) Now() float64 { return e.inner.Now() }

// Events returns every event published so far, in publish order.
func (e *Engine) Events() []ledger.Event { return e.inner.Events() }

// Subscribe opens a live view onto newly published events. Close it when
// done to free the bus's per-subscriber buffer.
func (e *Engine) Subscribe() ledger.Subscription { return e.bus.Subscribe() }

// LedgerStats reports bus-level publish/drop counters, also reflected into
// ambient metrics on every call.
func (e *Engine) LedgerStats() ledger.Stats {
	stats := e.bus.Stats()
	e.eventCounter.Inc(float64(stats.Published))
	e.droppedCounter.Inc(float64(stats.Dropped))
	return stats
}

// Metrics replays the full event history through a fresh domain Metrics
// Aggregator and returns its report. Safe to call repeatedly; each call
// re-derives the report from the ledger rather than tracking running state,
// matching spec.md §8's round-trip law that replay reproduces the live
// report exactly.
func (e *Engine) Metrics() metrics.Report {
	var coreIDs []string
	if e.spec != nil {
		for _, c := range e.spec.Platform.Cores {
			coreIDs = append(coreIDs, c.ID)
		}
	}
	return metrics.Aggregate(e.inner.Events(), coreIDs)
}

// MetricsHandler returns the HTTP handler exposing ambient metrics
// (Prometheus backend only). Returns nil when metrics are disabled or the
// active backend doesn't expose one.
func (e *Engine) MetricsHandler() http.Handler {
	if e.metricsProvider == nil {
		return nil
	}
	if hp, ok := e.metricsProvider.(interface{ MetricsHandler() http.Handler }); ok {
		return hp.MetricsHandler()
	}
	return nil
}
