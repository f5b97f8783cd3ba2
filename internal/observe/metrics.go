// Package observe publishes the engine's runtime counters as OpenTelemetry
// metrics behind a Prometheus scrape endpoint.
//
// The audio path never touches an instrument: the engine keeps plain atomic
// counters, and this package reads them through observable instruments whose
// callback only runs when a scrape collects. The one synchronous instrument,
// the mix-duration histogram, records once per rendered block via
// [Metrics.InstrumentSource]. Tests should construct [Metrics] with a
// [sdkmetric.ManualReader]-backed provider for programmatic inspection.
package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/cwbudde/thock/engine"
)

// meterName is the instrumentation scope name used for all thock metrics.
const meterName = "github.com/cwbudde/thock"

// StatsFunc supplies the engine counter snapshot a collection observes.
// It is called from the exporter's collect path, never from the audio path.
type StatsFunc func() engine.Stats

// Metrics holds the OpenTelemetry instruments for the trigger and mix core.
// All observable values come from a single [StatsFunc] snapshot per
// collection, so counters scraped together are mutually consistent.
type Metrics struct {
	triggers  metric.Int64ObservableCounter
	steals    metric.Int64ObservableCounter
	finished  metric.Int64ObservableCounter
	released  metric.Int64ObservableCounter
	clips     metric.Int64ObservableCounter
	voices    metric.Int64ObservableGauge
	held      metric.Int64ObservableGauge
	underruns metric.Int64ObservableCounter

	mixDur   metric.Float64Histogram
	packLoad metric.Float64Histogram

	meter metric.Meter
	regs  []metric.Registration
}

// mixBuckets are histogram boundaries in seconds, sized against the block
// budget: a 10 ms device buffer must be mixed in well under 10 ms.
var mixBuckets = []float64{
	0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// loadBuckets are histogram boundaries in seconds for pack loading, which
// is file I/O plus variant rendering.
var loadBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates the instrument set on the given provider and registers
// one collection callback that reads stats. Returns an error if any
// instrument creation fails.
func NewMetrics(mp metric.MeterProvider, stats StatsFunc) (*Metrics, error) {
	if stats == nil {
		return nil, errors.New("observe: nil stats source")
	}

	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.triggers, err = m.Int64ObservableCounter("thock.triggers",
		metric.WithDescription("Total sounds triggered by key and mouse events."),
	); err != nil {
		return nil, err
	}
	if met.steals, err = m.Int64ObservableCounter("thock.steals",
		metric.WithDescription("Total voices stolen mid-playback to make room for a newer trigger."),
	); err != nil {
		return nil, err
	}
	if met.finished, err = m.Int64ObservableCounter("thock.finished",
		metric.WithDescription("Total voices that played their sample to completion."),
	); err != nil {
		return nil, err
	}
	if met.released, err = m.Int64ObservableCounter("thock.released",
		metric.WithDescription("Total key-up releases recorded by the router."),
	); err != nil {
		return nil, err
	}
	if met.clips, err = m.Int64ObservableCounter("thock.clips",
		metric.WithDescription("Total output samples hard-clipped at the mix bus."),
	); err != nil {
		return nil, err
	}
	if met.voices, err = m.Int64ObservableGauge("thock.voices.active",
		metric.WithDescription("Voice slots currently playing."),
	); err != nil {
		return nil, err
	}
	if met.held, err = m.Int64ObservableGauge("thock.keys.held",
		metric.WithDescription("Keys currently held down."),
	); err != nil {
		return nil, err
	}

	if met.mixDur, err = m.Float64Histogram("thock.mix.duration",
		metric.WithDescription("Time spent mixing one output block."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(mixBuckets...),
	); err != nil {
		return nil, err
	}
	if met.packLoad, err = m.Float64Histogram("thock.pack.load.duration",
		metric.WithDescription("Time spent loading and rendering a sound pack."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(loadBuckets...),
	); err != nil {
		return nil, err
	}

	reg, err := m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(met.triggers, int64(s.Triggers))
		o.ObserveInt64(met.steals, int64(s.Steals))
		o.ObserveInt64(met.finished, int64(s.Finished))
		o.ObserveInt64(met.released, int64(s.Released))
		o.ObserveInt64(met.clips, int64(s.Clips))
		o.ObserveInt64(met.voices, int64(s.ActiveVoices))
		o.ObserveInt64(met.held, int64(s.HeldKeys))
		return nil
	}, met.triggers, met.steals, met.finished, met.released, met.clips, met.voices, met.held)
	if err != nil {
		return nil, err
	}
	met.regs = append(met.regs, reg)

	return met, nil
}

// ObserveUnderruns registers a device underrun counter fed by f. Call it
// once the output backend is open; f is read only on collection.
func (m *Metrics) ObserveUnderruns(f func() uint64) error {
	var err error
	m.underruns, err = m.meter.Int64ObservableCounter("thock.device.underruns",
		metric.WithDescription("Total output blocks substituted with silence."),
	)
	if err != nil {
		return err
	}
	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.underruns, int64(f()))
		return nil
	}, m.underruns)
	if err != nil {
		return err
	}
	m.regs = append(m.regs, reg)
	return nil
}

// RecordPackLoad records one pack load-and-render duration.
func (m *Metrics) RecordPackLoad(ctx context.Context, d time.Duration) {
	m.packLoad.Record(ctx, d.Seconds())
}

// Close unregisters the collection callbacks. The instruments remain valid
// but stop producing data points.
func (m *Metrics) Close() error {
	var errs []error
	for _, reg := range m.regs {
		if err := reg.Unregister(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MixSource is the render entry point of the mix bus.
type MixSource interface {
	MixInto(dst []float32)
}

// InstrumentSource wraps src so that every rendered block records its mix
// time. The wrapper adds one histogram record per block, nothing per sample.
func (m *Metrics) InstrumentSource(src MixSource) MixSource {
	return &timedSource{src: src, hist: m.mixDur}
}

type timedSource struct {
	src  MixSource
	hist metric.Float64Histogram
}

func (t *timedSource) MixInto(dst []float32) {
	start := time.Now()
	t.src.MixInto(dst)
	t.hist.Record(context.Background(), time.Since(start).Seconds())
}
