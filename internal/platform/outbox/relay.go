package outbox

import (
	"context"
	"log/slog"
	"time"

	"welfare/internal/platform/kafka"
	"welfare/pkg/platform/circuit"
)

type BatchStore interface {
	ProcessBatch(ctx context.Context, limit int, publish func(ctx context.Context, entries []Entry) error) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay polls the outbox and publishes pending entries keyed by aggregate
// id. Repeated broker failures open the breaker and pause publishing until
// its cooldown elapses.
type Relay struct {
	store     BatchStore
	publisher Publisher
	breaker   *circuit.Breaker
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

type RelayOption func(*Relay)

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func WithBreaker(b *circuit.Breaker) RelayOption {
	return func(r *Relay) {
		if b != nil {
			r.breaker = b
		}
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(store BatchStore, publisher Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		breaker:   circuit.New("outbox-relay"),
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "outbox relay started", "interval", r.interval, "batch_size", r.batchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
			}
		}
	}
}

// Drain publishes batches until one comes back short. It returns the number
// of entries published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.tick(ctx)
		total += n
		if err != nil || n < r.batchSize {
			return total, err
		}
	}
}

func (r *Relay) tick(ctx context.Context) (int, error) {
	if !r.breaker.Allow() {
		if r.metrics != nil {
			r.metrics.SkippedCircuitOpen.Inc()
		}
		return 0, nil
	}
	start := time.Now()
	n, err := r.store.ProcessBatch(ctx, r.batchSize, r.publish)
	if r.metrics != nil {
		r.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return 0, err
	}
	if r.metrics != nil {
		r.metrics.Published.Add(float64(n))
	}
	return n, nil
}

func (r *Relay) publish(ctx context.Context, entries []Entry) error {
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Headers: map[string]string{
				"event_type":     e.EventType,
				"aggregate_type": e.AggregateType,
				"outbox_id":      e.ID.String(),
			},
		})
	}

	if err := r.publisher.Publish(ctx, msgs...); err != nil {
		_, change := r.breaker.RecordFailure()
		if r.metrics != nil {
			r.metrics.PublishFailures.Inc()
		}
		if change.Opened {
			r.logger.ErrorContext(ctx, "outbox relay circuit opened", "breaker", r.breaker.Name(), "error", err)
			r.setBreakerGauge(true)
		}
		return err
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "outbox relay circuit closed", "breaker", r.breaker.Name())
		r.setBreakerGauge(false)
	}
	return nil
}

func (r *Relay) setBreakerGauge(open bool) {
	if r.metrics != nil {
		r.metrics.SetCircuitBreakerState(open)
	}
}
