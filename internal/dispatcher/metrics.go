package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/scenewalk/scenewalk/internal/dispatcher"

// instruments are the dispatcher's OTel metrics, tagged by command.
type instruments struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	latency   metric.Float64Histogram
}

func newInstruments(m metric.Meter, queueLen func() int) (*instruments, error) {
	var ins instruments
	var errs []error
	collect := func(err error, name string) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	var err error
	ins.processed, err = m.Int64Counter("scenewalk.dispatcher.processed",
		metric.WithDescription("Events handled by the engine loop"))
	collect(err, "processed counter")
	ins.dropped, err = m.Int64Counter("scenewalk.dispatcher.dropped",
		metric.WithDescription("Events rejected because the queue was full"))
	collect(err, "dropped counter")
	ins.latency, err = m.Float64Histogram("scenewalk.dispatcher.latency",
		metric.WithDescription("Time spent handling one event"), metric.WithUnit("ms"))
	collect(err, "latency histogram")

	_, err = m.Int64ObservableGauge("scenewalk.dispatcher.queued",
		metric.WithDescription("Events waiting for the next frame"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(queueLen()))
			return nil
		}))
	collect(err, "queue gauge")

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &ins, nil
}

func commandAttr(command string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("command", command))
}

func (i *instruments) drop(command string) {
	i.dropped.Add(context.Background(), 1, commandAttr(command))
}

func (i *instruments) handled(command string, took time.Duration) {
	ctx := context.Background()
	attr := commandAttr(command)
	i.processed.Add(ctx, 1, attr)
	i.latency.Record(ctx, float64(took.Microseconds())/1000, attr)
}
