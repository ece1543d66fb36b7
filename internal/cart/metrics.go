package cart

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "finitefield.org/mercadito/internal/cart"

var (
	metricsOnce sync.Once
	mutations   metric.Int64Counter
)

// recordMutation counts a persisted cart change. Without an installed meter
// provider the counter is a no-op.
func recordMutation(ctx context.Context, op string) {
	metricsOnce.Do(func() {
		counter, err := otel.GetMeterProvider().Meter(meterName).Int64Counter(
			"mercadito.cart.mutations",
			metric.WithDescription("Count of persisted cart mutations by operation"),
		)
		if err != nil {
			counter = noop.Int64Counter{}
		}
		mutations = counter
	})
	mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
