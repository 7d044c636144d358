package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welfare/internal/platform/outbox"
	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
	"welfare/pkg/requestcontext"
)

var at = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingAppender struct {
	entries []outbox.Entry
}

func (r *recordingAppender) Append(_ context.Context, entries ...outbox.Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func TestEncode(t *testing.T) {
	surveyID := id.NewSurveyID()
	responseID := id.NewResponseID()
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")

	env, err := Encode(ctx, models.ResponseSubmittedEvent{
		SurveyID: surveyID, ResponseID: responseID, Participant: "member-1", AttemptNumber: 2, At: at,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventResponseSubmitted, env.Type)
	assert.Equal(t, surveyID.String(), env.SurveyID)
	assert.Equal(t, "req-1", env.RequestID)
	assert.True(t, env.OccurredAt.Equal(at))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, responseID.String(), payload["response_id"])
	assert.EqualValues(t, 2, payload["attempt_number"])
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	surveyID := id.NewSurveyID()
	require.NoError(t, sink.Publish(context.Background(), []models.Event{
		models.SurveyPublishedEvent{SurveyID: surveyID, At: at},
		models.SurveyStructureFrozenEvent{SurveyID: surveyID, StructureVersion: 2, At: at},
	}))
	assert.Equal(t, []string{models.EventSurveyPublished, models.EventSurveyStructureFrozen}, sink.Types())
	assert.Len(t, sink.Envelopes(), 2)
}

func TestOutboxSink(t *testing.T) {
	appender := &recordingAppender{}
	sink := NewOutboxSink(appender)
	surveyID := id.NewSurveyID()

	require.NoError(t, sink.Publish(context.Background(), nil))
	assert.Empty(t, appender.entries)

	require.NoError(t, sink.Publish(context.Background(), []models.Event{
		models.ResponseCancelledEvent{SurveyID: surveyID, ResponseID: id.NewResponseID(), At: at},
	}))
	require.Len(t, appender.entries, 1)
	entry := appender.entries[0]
	assert.Equal(t, AggregateType, entry.AggregateType)
	assert.Equal(t, surveyID.String(), entry.AggregateID)
	assert.Equal(t, models.EventResponseCancelled, entry.EventType)

	var env Envelope
	require.NoError(t, json.Unmarshal(entry.Payload, &env))
	assert.Equal(t, models.EventResponseCancelled, env.Type)
}
