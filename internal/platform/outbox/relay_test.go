package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"welfare/internal/platform/kafka"
	"welfare/pkg/platform/circuit"
)

type fakeBatchStore struct {
	mu      sync.Mutex
	pending []Entry
}

func (f *fakeBatchStore) ProcessBatch(ctx context.Context, limit int, publish func(context.Context, []Entry) error) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(limit, len(f.pending))
	if n == 0 {
		return 0, nil
	}
	batch := append([]Entry(nil), f.pending[:n]...)
	if err := publish(ctx, batch); err != nil {
		return 0, err
	}
	f.pending = f.pending[n:]
	return n, nil
}

type fakePublisher struct {
	fail error
	sent []kafka.Message
}

func (f *fakePublisher) Publish(_ context.Context, msgs ...kafka.Message) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

type RelaySuite struct {
	suite.Suite
	store     *fakeBatchStore
	publisher *fakePublisher
	now       time.Time
	relay     *Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.store = &fakeBatchStore{}
	s.publisher = &fakePublisher{}
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	breaker := circuit.New("test",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return s.now }),
	)
	s.relay = NewRelay(s.store, s.publisher,
		WithBreaker(breaker),
		WithBatchSize(2),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *RelaySuite) enqueue(n int) {
	for i := 0; i < n; i++ {
		s.store.pending = append(s.store.pending,
			NewEntry("survey", "survey-1", "survey.response_submitted", []byte(`{}`), s.now))
	}
}

func (s *RelaySuite) TestDrain() {
	s.Run("publishes every pending entry across batches", func() {
		s.enqueue(5)
		n, err := s.relay.Drain(context.Background())
		s.Require().NoError(err)
		s.Equal(5, n)
		s.Len(s.publisher.sent, 5)
		s.Empty(s.store.pending)
	})

	s.Run("keys records by aggregate and carries the event type", func() {
		msg := s.publisher.sent[0]
		s.Equal([]byte("survey-1"), msg.Key)
		s.Equal("survey.response_submitted", msg.Headers["event_type"])
		s.NotEmpty(msg.Headers["outbox_id"])
	})
}

func (s *RelaySuite) TestCircuitBreaker() {
	s.enqueue(1)
	s.publisher.fail = errors.New("broker down")

	_, err := s.relay.Drain(context.Background())
	s.Require().Error(err)
	_, err = s.relay.Drain(context.Background())
	s.Require().Error(err)

	s.Run("an open breaker skips publishing", func() {
		s.publisher.fail = nil
		n, err := s.relay.Drain(context.Background())
		s.Require().NoError(err)
		s.Zero(n)
		s.Len(s.store.pending, 1)
	})

	s.Run("publishing resumes after the cooldown", func() {
		s.now = s.now.Add(2 * time.Minute)
		n, err := s.relay.Drain(context.Background())
		s.Require().NoError(err)
		s.Equal(1, n)
		s.Empty(s.store.pending)
	})
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	relay := NewRelay(s.store, s.publisher, WithInterval(time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.store.mu.Lock()
	s.enqueue(3)
	s.store.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	s.Eventually(func() bool {
		s.store.mu.Lock()
		defer s.store.mu.Unlock()
		return len(s.store.pending) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	s.NoError(<-done)
}
