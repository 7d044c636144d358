package models

import (
	"time"

	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	codes "welfare/pkg/platform/strings"
)

// SurveyRecord is the persisted form of a Survey aggregate. Stores serialise
// it as JSON (PostgreSQL, Redis) or BSON (MongoDB); ids are canonical strings.
type SurveyRecord struct {
	ID                  string              `json:"id" bson:"id"`
	Title               string              `json:"title" bson:"title"`
	Description         string              `json:"description,omitempty" bson:"description,omitempty"`
	State               SurveyState         `json:"state" bson:"state"`
	StartAt             *time.Time          `json:"start_at,omitempty" bson:"start_at,omitempty"`
	EndAt               *time.Time          `json:"end_at,omitempty" bson:"end_at,omitempty"`
	Anonymous           bool                `json:"anonymous" bson:"anonymous"`
	ParticipationPolicy ParticipationPolicy `json:"participation_policy" bson:"participation_policy"`
	Audience            *AudienceFilter     `json:"audience,omitempty" bson:"audience,omitempty"`
	StructureVersion    int                 `json:"structure_version" bson:"structure_version"`
	StructureFrozen     bool                `json:"structure_frozen" bson:"structure_frozen"`
	Features            []string            `json:"features,omitempty" bson:"features,omitempty"`
	Capabilities        []string            `json:"capabilities,omitempty" bson:"capabilities,omitempty"`
	Questions           []QuestionRecord    `json:"questions,omitempty" bson:"questions,omitempty"`
	Responses           []ResponseRecord    `json:"responses,omitempty" bson:"responses,omitempty"`
	CreatedAt           time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at" bson:"updated_at"`
	Version             int64               `json:"version" bson:"version"`
}

// QuestionRecord lists questions in insertion order.
type QuestionRecord struct {
	ID         string         `json:"id" bson:"id"`
	Kind       QuestionKind   `json:"kind" bson:"kind"`
	Text       string         `json:"text" bson:"text"`
	Order      int            `json:"order" bson:"order"`
	Required   bool           `json:"required" bson:"required"`
	RepeatKind RepeatKind     `json:"repeat_kind" bson:"repeat_kind"`
	MaxRepeats int            `json:"max_repeats,omitempty" bson:"max_repeats,omitempty"`
	Options    []OptionRecord `json:"options,omitempty" bson:"options,omitempty"`
}

type OptionRecord struct {
	ID     string `json:"id" bson:"id"`
	Text   string `json:"text" bson:"text"`
	Order  int    `json:"order" bson:"order"`
	Active bool   `json:"active" bson:"active"`
}

type ResponseRecord struct {
	ID             string              `json:"id" bson:"id"`
	Participant    string              `json:"participant" bson:"participant"`
	Demography     *DemographySnapshot `json:"demography,omitempty" bson:"demography,omitempty"`
	AttemptNumber  int                 `json:"attempt_number" bson:"attempt_number"`
	AttemptStatus  AttemptStatus       `json:"attempt_status" bson:"attempt_status"`
	Status         ResponseStatus      `json:"status" bson:"status"`
	StartedAt      time.Time           `json:"started_at" bson:"started_at"`
	UpdatedAt      time.Time           `json:"updated_at" bson:"updated_at"`
	SubmittedAt    *time.Time          `json:"submitted_at,omitempty" bson:"submitted_at,omitempty"`
	CanceledAt     *time.Time          `json:"canceled_at,omitempty" bson:"canceled_at,omitempty"`
	ExpiredAt      *time.Time          `json:"expired_at,omitempty" bson:"expired_at,omitempty"`
	CursorQuestion string              `json:"cursor_question,omitempty" bson:"cursor_question,omitempty"`
	CursorRepeat   int                 `json:"cursor_repeat,omitempty" bson:"cursor_repeat,omitempty"`
	Answers        []AnswerRecord      `json:"answers,omitempty" bson:"answers,omitempty"`
}

type AnswerRecord struct {
	ID          string               `json:"id" bson:"id"`
	QuestionID  string               `json:"question_id" bson:"question_id"`
	RepeatIndex int                  `json:"repeat_index" bson:"repeat_index"`
	Text        string               `json:"text,omitempty" bson:"text,omitempty"`
	Selected    []AnswerOptionRecord `json:"selected,omitempty" bson:"selected,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at" bson:"updated_at"`
}

type AnswerOptionRecord struct {
	ID         string `json:"id" bson:"id"`
	OptionID   string `json:"option_id" bson:"option_id"`
	OptionText string `json:"option_text" bson:"option_text"`
}

// Snapshot captures the aggregate's persistent state. Pending events are
// not part of it.
func (s *Survey) Snapshot() SurveyRecord {
	rec := SurveyRecord{
		ID:                  s.id.String(),
		Title:               s.title,
		Description:         s.description,
		State:               s.state,
		StartAt:             copyTime(s.startAt),
		EndAt:               copyTime(s.endAt),
		Anonymous:           s.anonymous,
		ParticipationPolicy: s.policy,
		Audience:            s.audience.clone(),
		StructureVersion:    s.structureVersion,
		StructureFrozen:     s.structureFrozen,
		Features:            s.Features(),
		Capabilities:        s.Capabilities(),
		CreatedAt:           s.createdAt,
		UpdatedAt:           s.updatedAt,
		Version:             s.version,
	}
	for _, q := range s.questions {
		qr := QuestionRecord{
			ID:         q.id.String(),
			Kind:       q.kind,
			Text:       q.text,
			Order:      q.order,
			Required:   q.required,
			RepeatKind: q.repeatPolicy.Kind(),
			MaxRepeats: q.repeatPolicy.MaxRepeats(),
		}
		for _, o := range q.options {
			qr.Options = append(qr.Options, OptionRecord{ID: o.id.String(), Text: o.text, Order: o.order, Active: o.active})
		}
		rec.Questions = append(rec.Questions, qr)
	}
	for _, r := range s.responses {
		rr := ResponseRecord{
			ID:            r.id.String(),
			Participant:   r.participant.String(),
			Demography:    r.demography.clone(),
			AttemptNumber: r.attemptNumber,
			AttemptStatus: r.attemptStatus,
			Status:        r.status,
			StartedAt:     r.startedAt,
			UpdatedAt:     r.updatedAt,
			SubmittedAt:   copyTime(r.submittedAt),
			CanceledAt:    copyTime(r.canceledAt),
			ExpiredAt:     copyTime(r.expiredAt),
		}
		if r.cursor.IsSet() {
			rr.CursorQuestion = r.cursor.QuestionID().String()
			rr.CursorRepeat = r.cursor.RepeatIndex()
		}
		for _, a := range r.answers {
			ar := AnswerRecord{
				ID:          a.id.String(),
				QuestionID:  a.questionID.String(),
				RepeatIndex: a.repeatIndex,
				Text:        a.text,
				UpdatedAt:   a.updatedAt,
			}
			for _, sel := range a.selected {
				ar.Selected = append(ar.Selected, AnswerOptionRecord{
					ID:         sel.id.String(),
					OptionID:   sel.optionID.String(),
					OptionText: sel.optionText,
				})
			}
			rr.Answers = append(rr.Answers, ar)
		}
		rec.Responses = append(rec.Responses, rr)
	}
	return rec
}

// RestoreSurvey rebuilds an aggregate from its persisted form.
func RestoreSurvey(rec SurveyRecord) (*Survey, error) {
	surveyID, err := id.ParseSurveyID(rec.ID)
	if err != nil {
		return nil, corrupt(err, "survey id")
	}
	if !rec.State.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInternal, "corrupt survey record: unknown state %q", rec.State)
	}
	s := &Survey{
		id:               surveyID,
		title:            rec.Title,
		description:      rec.Description,
		state:            rec.State,
		startAt:          copyTime(rec.StartAt),
		endAt:            copyTime(rec.EndAt),
		anonymous:        rec.Anonymous,
		policy:           rec.ParticipationPolicy,
		audience:         rec.Audience.clone(),
		structureVersion: rec.StructureVersion,
		structureFrozen:  rec.StructureFrozen,
		features:         codes.DedupeCodes(rec.Features),
		capabilities:     codes.DedupeCodes(rec.Capabilities),
		createdAt:        rec.CreatedAt,
		updatedAt:        rec.UpdatedAt,
		version:          rec.Version,
	}
	for _, qr := range rec.Questions {
		q, err := restoreQuestion(qr)
		if err != nil {
			return nil, err
		}
		s.attachQuestion(q)
	}
	for _, rr := range rec.Responses {
		r, err := restoreResponse(surveyID, rr)
		if err != nil {
			return nil, err
		}
		s.responses = append(s.responses, r)
	}
	return s, nil
}

func restoreQuestion(qr QuestionRecord) (*Question, error) {
	questionID, err := id.ParseQuestionID(qr.ID)
	if err != nil {
		return nil, corrupt(err, "question id")
	}
	policy, err := NewRepeatPolicy(qr.RepeatKind, qr.MaxRepeats)
	if err != nil {
		return nil, corrupt(err, "repeat policy")
	}
	q, err := NewQuestion(questionID, QuestionSpec{
		Kind:         qr.Kind,
		Text:         qr.Text,
		Order:        qr.Order,
		Required:     qr.Required,
		RepeatPolicy: policy,
	})
	if err != nil {
		return nil, corrupt(err, "question")
	}
	for _, or := range qr.Options {
		optionID, err := id.ParseOptionID(or.ID)
		if err != nil {
			return nil, corrupt(err, "option id")
		}
		q.options = append(q.options, QuestionOption{id: optionID, text: or.Text, order: or.Order, active: or.Active})
	}
	return q, nil
}

func restoreResponse(surveyID id.SurveyID, rr ResponseRecord) (*Response, error) {
	responseID, err := id.ParseResponseID(rr.ID)
	if err != nil {
		return nil, corrupt(err, "response id")
	}
	if !rr.AttemptStatus.IsValid() || !rr.Status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInternal, "corrupt survey record: response %s has unknown status", rr.ID)
	}
	r := &Response{
		id:            responseID,
		surveyID:      surveyID,
		participant:   id.ParticipantRef(rr.Participant),
		demography:    rr.Demography.clone(),
		attemptNumber: rr.AttemptNumber,
		attemptStatus: rr.AttemptStatus,
		status:        rr.Status,
		startedAt:     rr.StartedAt,
		updatedAt:     rr.UpdatedAt,
		submittedAt:   copyTime(rr.SubmittedAt),
		canceledAt:    copyTime(rr.CanceledAt),
		expiredAt:     copyTime(rr.ExpiredAt),
		cursor:        UnsetCursor(),
		index:         make(map[answerKey]*QuestionAnswer, len(rr.Answers)),
	}
	if rr.CursorQuestion != "" {
		questionID, err := id.ParseQuestionID(rr.CursorQuestion)
		if err != nil {
			return nil, corrupt(err, "cursor question id")
		}
		r.cursor = CursorAt(questionID, rr.CursorRepeat)
	}
	for _, ar := range rr.Answers {
		a, err := restoreAnswer(ar)
		if err != nil {
			return nil, err
		}
		key := answerKey{a.questionID, a.repeatIndex}
		if _, dup := r.index[key]; dup {
			return nil, dErrors.Newf(dErrors.CodeInternal, "corrupt survey record: duplicate answer for question %s repeat %d", a.questionID, a.repeatIndex)
		}
		r.answers = append(r.answers, a)
		r.index[key] = a
	}
	return r, nil
}

func restoreAnswer(ar AnswerRecord) (*QuestionAnswer, error) {
	answerID, err := id.ParseAnswerID(ar.ID)
	if err != nil {
		return nil, corrupt(err, "answer id")
	}
	questionID, err := id.ParseQuestionID(ar.QuestionID)
	if err != nil {
		return nil, corrupt(err, "answer question id")
	}
	a := &QuestionAnswer{
		id:          answerID,
		questionID:  questionID,
		repeatIndex: ar.RepeatIndex,
		text:        ar.Text,
		updatedAt:   ar.UpdatedAt,
	}
	for _, sr := range ar.Selected {
		selID, err := id.ParseAnswerOptionID(sr.ID)
		if err != nil {
			return nil, corrupt(err, "answer option id")
		}
		optionID, err := id.ParseOptionID(sr.OptionID)
		if err != nil {
			return nil, corrupt(err, "selected option id")
		}
		a.selected = append(a.selected, QuestionAnswerOption{id: selID, optionID: optionID, optionText: sr.OptionText})
	}
	return a, nil
}

func corrupt(err error, field string) error {
	return dErrors.Wrap(err, dErrors.CodeInternal, "corrupt survey record: "+field)
}
