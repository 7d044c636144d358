package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "welfare/pkg/domain-errors"
)

// Typed identifiers keep survey, question, option and response ids from being
// swapped at call sites. All of them are UUIDs underneath.
type (
	SurveyID       uuid.UUID
	QuestionID     uuid.UUID
	OptionID       uuid.UUID
	ResponseID     uuid.UUID
	AnswerID       uuid.UUID
	AnswerOptionID uuid.UUID
)

func NewSurveyID() SurveyID             { return SurveyID(uuid.New()) }
func NewQuestionID() QuestionID         { return QuestionID(uuid.New()) }
func NewOptionID() OptionID             { return OptionID(uuid.New()) }
func NewResponseID() ResponseID         { return ResponseID(uuid.New()) }
func NewAnswerID() AnswerID             { return AnswerID(uuid.New()) }
func NewAnswerOptionID() AnswerOptionID { return AnswerOptionID(uuid.New()) }

func (id SurveyID) String() string       { return uuid.UUID(id).String() }
func (id QuestionID) String() string     { return uuid.UUID(id).String() }
func (id OptionID) String() string       { return uuid.UUID(id).String() }
func (id ResponseID) String() string     { return uuid.UUID(id).String() }
func (id AnswerID) String() string       { return uuid.UUID(id).String() }
func (id AnswerOptionID) String() string { return uuid.UUID(id).String() }

func (id SurveyID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id QuestionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id OptionID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ResponseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AnswerID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AnswerOptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps ids readable in JSON payloads.
func (id SurveyID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id QuestionID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id OptionID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id ResponseID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id AnswerID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id AnswerOptionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *SurveyID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *QuestionID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OptionID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ResponseID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AnswerID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AnswerOptionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseSurveyID parses a survey id from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed or the nil UUID.
func ParseSurveyID(s string) (SurveyID, error) {
	return parseUUID[SurveyID](s, "survey id")
}

func ParseQuestionID(s string) (QuestionID, error) {
	return parseUUID[QuestionID](s, "question id")
}

func ParseOptionID(s string) (OptionID, error) {
	return parseUUID[OptionID](s, "option id")
}

func ParseResponseID(s string) (ResponseID, error) {
	return parseUUID[ResponseID](s, "response id")
}

func ParseAnswerID(s string) (AnswerID, error) {
	return parseUUID[AnswerID](s, "answer id")
}

func ParseAnswerOptionID(s string) (AnswerOptionID, error) {
	return parseUUID[AnswerOptionID](s, "answer option id")
}

func parseUUID[T ~[16]byte](s, label string) (T, error) {
	var zero T
	if s == "" {
		return zero, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if !utf8.ValidString(s) {
		return zero, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return zero, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return zero, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return T(u), nil
}

// ParticipantRef is the opaque participant reference handed over by the
// membership collaborator. It is compared by value and never resolved here.
type ParticipantRef string

const maxParticipantRefLength = 128

// ParseParticipantRef trims and validates a participant reference.
func ParseParticipantRef(s string) (ParticipantRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "participant reference cannot be empty")
	}
	if len(s) > maxParticipantRefLength || !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid participant reference")
	}
	return ParticipantRef(s), nil
}

func (p ParticipantRef) String() string { return string(p) }

func (p ParticipantRef) IsNil() bool { return p == "" }
