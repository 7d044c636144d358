package models

import (
	"time"

	id "welfare/pkg/domain"
)

// Event names as they appear on the wire.
const (
	EventSurveyPublished         = "survey.published"
	EventSurveyStructureFrozen   = "survey.structure_frozen"
	EventSurveyStructureUnfrozen = "survey.structure_unfrozen"
	EventResponseStarted         = "survey.response_started"
	EventResponseSubmitted       = "survey.response_submitted"
	EventResponseCancelled       = "survey.response_cancelled"
	EventResponseExpired         = "survey.response_expired"
)

// Event is a fact raised by the Survey aggregate. Events accumulate on the
// aggregate until PullEvents drains them after a successful save.
type Event interface {
	EventName() string
	AggregateID() id.SurveyID
	OccurredAt() time.Time
}

type SurveyPublishedEvent struct {
	SurveyID id.SurveyID `json:"survey_id"`
	At       time.Time   `json:"at"`
}

func (e SurveyPublishedEvent) EventName() string        { return EventSurveyPublished }
func (e SurveyPublishedEvent) AggregateID() id.SurveyID { return e.SurveyID }
func (e SurveyPublishedEvent) OccurredAt() time.Time    { return e.At }

type SurveyStructureFrozenEvent struct {
	SurveyID         id.SurveyID `json:"survey_id"`
	StructureVersion int         `json:"structure_version"`
	At               time.Time   `json:"at"`
}

func (e SurveyStructureFrozenEvent) EventName() string        { return EventSurveyStructureFrozen }
func (e SurveyStructureFrozenEvent) AggregateID() id.SurveyID { return e.SurveyID }
func (e SurveyStructureFrozenEvent) OccurredAt() time.Time    { return e.At }

type SurveyStructureUnfrozenEvent struct {
	SurveyID         id.SurveyID `json:"survey_id"`
	StructureVersion int         `json:"structure_version"`
	At               time.Time   `json:"at"`
}

func (e SurveyStructureUnfrozenEvent) EventName() string        { return EventSurveyStructureUnfrozen }
func (e SurveyStructureUnfrozenEvent) AggregateID() id.SurveyID { return e.SurveyID }
func (e SurveyStructureUnfrozenEvent) OccurredAt() time.Time    { return e.At }

type ResponseStartedEvent struct {
	SurveyID      id.SurveyID       `json:"survey_id"`
	ResponseID    id.ResponseID     `json:"response_id"`
	Participant   id.ParticipantRef `json:"participant,omitempty"`
	AttemptNumber int               `json:"attempt_number"`
	At            time.Time         `json:"at"`
}

func (e ResponseStartedEvent) EventName() string        { return EventResponseStarted }
func (e ResponseStartedEvent) AggregateID() id.SurveyID { return e.SurveyID }
func (e ResponseStartedEvent) OccurredAt() time.Time    { return e.At }

// ResponseSubmittedEvent carries no participant for anonymous surveys.
type ResponseSubmittedEvent struct {
	SurveyID      id.SurveyID       `json:"survey_id"`
	ResponseID    id.ResponseID     `json:"response_id"`
	Participant   id.ParticipantRef `json:"participant,omitempty"`
	AttemptNumber int               `json:"attempt_number"`
	At            time.Time         `json:"at"`
}

func (e ResponseSubmittedEvent) EventName() string        { return EventResponseSubmitted }
func (e ResponseSubmittedEvent) AggregateID() id.SurveyID { return e.SurveyID }
func (e ResponseSubmittedEvent) OccurredAt() time.Time    { return e.At }

type ResponseCancelledEvent struct {
	SurveyID   id.SurveyID   `json:"survey_id"`
	ResponseID id.ResponseID `json:"response_id"`
	At         time.Time     `json:"at"`
}

func (e ResponseCancelledEvent) EventName() string        { return EventResponseCancelled }
func (e ResponseCancelledEvent) AggregateID() id.SurveyID { return e.SurveyID }
func (e ResponseCancelledEvent) OccurredAt() time.Time    { return e.At }

type ResponseExpiredEvent struct {
	SurveyID   id.SurveyID   `json:"survey_id"`
	ResponseID id.ResponseID `json:"response_id"`
	At         time.Time     `json:"at"`
}

func (e ResponseExpiredEvent) EventName() string        { return EventResponseExpired }
func (e ResponseExpiredEvent) AggregateID() id.SurveyID { return e.SurveyID }
func (e ResponseExpiredEvent) OccurredAt() time.Time    { return e.At }
