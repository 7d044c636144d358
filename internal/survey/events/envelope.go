// Package events turns survey domain events into integration envelopes and
// delivers them to an in-memory sink or the transactional outbox.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"welfare/internal/survey/models"
	"welfare/pkg/requestcontext"
)

// AggregateType labels outbox rows written for surveys.
const AggregateType = "survey"

// Envelope is the wire form of one domain event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	SurveyID   string          `json:"survey_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	RequestID  string          `json:"request_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// Encode wraps e in an envelope, taking the request id from ctx.
func Encode(ctx context.Context, e models.Event) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", e.EventName(), err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       e.EventName(),
		SurveyID:   e.AggregateID().String(),
		OccurredAt: e.OccurredAt().UTC(),
		RequestID:  requestcontext.RequestID(ctx),
		Payload:    payload,
	}, nil
}
