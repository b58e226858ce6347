package main

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/scenewalk/scenewalk/internal/engine"
	"github.com/scenewalk/scenewalk/internal/loader"
)

const meterName = "github.com/scenewalk/scenewalk/cmd/scenewalk"

// registerEngineMetrics exports loop counters as observable instruments.
func registerEngineMetrics(m metric.Meter, eng *engine.Engine, pool *loader.Pool) error {
	frames, err := m.Int64ObservableCounter("scenewalk.engine.frames",
		metric.WithDescription("Frames rendered by the engine loop"))
	if err != nil {
		return err
	}
	queue, err := m.Int64ObservableGauge("scenewalk.engine.queue_length",
		metric.WithDescription("Events waiting for the engine loop"))
	if err != nil {
		return err
	}
	timers, err := m.Int64ObservableGauge("scenewalk.engine.pending_timers",
		metric.WithDescription("Scheduled timers not yet fired"))
	if err != nil {
		return err
	}
	loads, err := m.Int64ObservableGauge("scenewalk.loader.pending",
		metric.WithDescription("Asset loads waiting for a worker"))
	if err != nil {
		return err
	}

	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := eng.Status()
		o.ObserveInt64(frames, int64(eng.Frames()))
		o.ObserveInt64(queue, int64(st.QueueLen))
		o.ObserveInt64(timers, int64(st.PendingTimers))
		o.ObserveInt64(loads, int64(pool.Pending()))
		return nil
	}, frames, queue, timers, loads)
	return err
}
