package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	slogctx "github.com/veqryn/slog-context"
)

const meterName = "auth-relay/session"

type meters struct {
	created   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	delivered metric.Int64Counter
	expired   metric.Int64Counter

	// active holds the session gauge callback until the manager is closed.
	active metric.Registration
}

func newMeters(provider metric.MeterProvider, sessions Repository) (*meters, error) {
	meter := provider.Meter(meterName, metric.WithInstrumentationVersion(otel.Version()))

	var (
		m   meters
		err error
	)

	counters := []struct {
		into        *metric.Int64Counter
		name        string
		description string
	}{
		{&m.created, "relay.sessions.created", "Login sessions created"},
		{&m.completed, "relay.sessions.completed", "Login sessions that received a token"},
		{&m.failed, "relay.sessions.failed", "Login sessions whose callback failed"},
		{&m.delivered, "relay.tokens.delivered", "Tokens handed to polling clients"},
		{&m.expired, "relay.sessions.expired", "Login sessions removed by the housekeeper"},
	}
	for _, c := range counters {
		*c.into, err = meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit("session"))
		if err != nil {
			return nil, err
		}
	}

	gauge, err := meter.Int64ObservableGauge(
		"relay.sessions.active",
		metric.WithDescription("Login sessions currently tracked"),
		metric.WithUnit("session"),
	)
	if err != nil {
		return nil, err
	}

	m.active, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		n, err := sessions.Count(ctx)
		if err != nil {
			slogctx.Warn(ctx, "Could not count sessions", "error", err)
			return nil
		}
		o.ObserveInt64(gauge, int64(n))
		return nil
	}, gauge)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
