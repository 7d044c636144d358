package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"welfare/internal/platform/outbox"
	"welfare/internal/survey/models"
)

// MemorySink keeps envelopes in memory. Used when no outbox is configured
// and by tests.
type MemorySink struct {
	mu        sync.Mutex
	envelopes []Envelope
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(ctx context.Context, evts []models.Event) error {
	encoded := make([]Envelope, 0, len(evts))
	for _, e := range evts {
		env, err := Encode(ctx, e)
		if err != nil {
			return err
		}
		encoded = append(encoded, env)
	}
	s.mu.Lock()
	s.envelopes = append(s.envelopes, encoded...)
	s.mu.Unlock()
	return nil
}

// Envelopes returns a copy of everything published so far.
func (s *MemorySink) Envelopes() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.envelopes...)
}

// Types lists the event types in publication order.
func (s *MemorySink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.envelopes))
	for i, e := range s.envelopes {
		out[i] = e.Type
	}
	return out
}

type OutboxAppender interface {
	Append(ctx context.Context, entries ...outbox.Entry) error
}

// OutboxSink writes envelopes to the outbox. Called inside the save
// transaction, the rows commit or roll back with the aggregate.
type OutboxSink struct {
	outbox OutboxAppender
}

func NewOutboxSink(appender OutboxAppender) *OutboxSink {
	return &OutboxSink{outbox: appender}
}

func (s *OutboxSink) Publish(ctx context.Context, evts []models.Event) error {
	if len(evts) == 0 {
		return nil
	}
	entries := make([]outbox.Entry, 0, len(evts))
	for _, e := range evts {
		env, err := Encode(ctx, e)
		if err != nil {
			return err
		}
		body, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal %s envelope: %w", env.Type, err)
		}
		entries = append(entries, outbox.NewEntry(AggregateType, env.SurveyID, env.Type, body, env.OccurredAt))
	}
	return s.outbox.Append(ctx, entries...)
}
