package sim

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/flightcore/internal/sim"

type metrics struct {
	ticks    metric.Int64Counter
	duration metric.Float64Histogram
	dropped  metric.Int64Counter
}

func newMetrics(m metric.Meter) (*metrics, error) {
	if m == nil {
		m = otel.Meter(instrumentationName)
	}
	var (
		out metrics
		err error
	)
	out.ticks, err = m.Int64Counter("sim.ticks",
		metric.WithDescription("Fixed steps executed"))
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	out.duration, err = m.Float64Histogram("sim.step.duration",
		metric.WithDescription("Wall time spent in one fixed step"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating step histogram: %w", err)
	}
	out.dropped, err = m.Int64Counter("sim.telemetry.dropped",
		metric.WithDescription("Telemetry events the recorder could not take"))
	if err != nil {
		return nil, fmt.Errorf("creating drop counter: %w", err)
	}
	return &out, nil
}
