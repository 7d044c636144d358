package models

import (
	"slices"
	"strings"
	"time"

	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	codes "welfare/pkg/platform/strings"
)

// SurveyState is the publication lifecycle of a survey.
type SurveyState string

const (
	SurveyDraft     SurveyState = "draft"
	SurveyPublished SurveyState = "published"
	SurveyCompleted SurveyState = "completed"
	SurveyArchived  SurveyState = "archived"
)

func (s SurveyState) IsValid() bool {
	switch s {
	case SurveyDraft, SurveyPublished, SurveyCompleted, SurveyArchived:
		return true
	}
	return false
}

func (s SurveyState) String() string {
	return string(s)
}

// Survey is the aggregate root for a survey, its questions and the
// responses collected for it. All mutation of questions, responses and
// answers goes through Survey or the child entity methods it hands out.
//
// Invariants:
//   - Title is non-empty
//   - State transitions: draft → published → completed → archived only
//   - A published survey has at least one question
//   - Every non-textual question has options; fixed four-choice questions have exactly 4
//   - Questions are added, removed or edited only while draft and not frozen
//   - Freezing and unfreezing happen only in draft and bump StructureVersion
//   - Titles, descriptions, features and capabilities are not edited while frozen
//   - Every response belongs to this survey; attempt numbers are 1-based per participant
//
// Survey is not safe for concurrent use. Persistence serialises writers with
// the optimistic version returned by Version.
type Survey struct {
	id               id.SurveyID
	title            string
	description      string
	state            SurveyState
	startAt          *time.Time
	endAt            *time.Time
	anonymous        bool
	policy           ParticipationPolicy
	audience         *AudienceFilter
	structureVersion int
	structureFrozen  bool
	features         []string
	capabilities     []string
	questions        []*Question
	nextQuestionSeq  int
	responses        []*Response
	createdAt        time.Time
	updatedAt        time.Time

	version int64
	events  []Event
}

// NewSurvey creates a draft survey.
func NewSurvey(surveyID id.SurveyID, title, description string, policy ParticipationPolicy, now time.Time) (*Survey, error) {
	if surveyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "survey id cannot be empty")
	}
	if strings.TrimSpace(title) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "survey title cannot be empty")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Survey{
		id:          surveyID,
		title:       title,
		description: description,
		state:       SurveyDraft,
		policy:      policy,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

func (s *Survey) ID() id.SurveyID                          { return s.id }
func (s *Survey) Title() string                            { return s.title }
func (s *Survey) Description() string                      { return s.description }
func (s *Survey) State() SurveyState                       { return s.state }
func (s *Survey) StartAt() *time.Time                      { return s.startAt }
func (s *Survey) EndAt() *time.Time                        { return s.endAt }
func (s *Survey) IsAnonymous() bool                        { return s.anonymous }
func (s *Survey) ParticipationPolicy() ParticipationPolicy { return s.policy }
func (s *Survey) Audience() *AudienceFilter                { return s.audience.clone() }
func (s *Survey) StructureVersion() int                    { return s.structureVersion }
func (s *Survey) IsStructureFrozen() bool                  { return s.structureFrozen }
func (s *Survey) Features() []string                       { return slices.Clone(s.features) }
func (s *Survey) Capabilities() []string                   { return slices.Clone(s.capabilities) }
func (s *Survey) CreatedAt() time.Time                     { return s.createdAt }
func (s *Survey) UpdatedAt() time.Time                     { return s.updatedAt }

// Version is the persistence version the aggregate was loaded at.
func (s *Survey) Version() int64 { return s.version }

// MarkPersisted records the version assigned by a successful save.
func (s *Survey) MarkPersisted(version int64) { s.version = version }

// PullEvents returns and clears the events raised since the last call.
func (s *Survey) PullEvents() []Event {
	events := s.events
	s.events = nil
	return events
}

func (s *Survey) raise(e Event) {
	s.events = append(s.events, e)
}

func (s *Survey) touch(now time.Time) {
	s.updatedAt = now
}

func (s *Survey) ensureDraft(action string) error {
	if s.state != SurveyDraft {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot %s: survey is %s", action, s.state)
	}
	return nil
}

func (s *Survey) ensureNotFrozen() error {
	if s.structureFrozen {
		return dErrors.New(dErrors.CodeInvariantViolation, "survey structure is frozen")
	}
	return nil
}

// ensureStructureEditable guards question and option edits.
func (s *Survey) ensureStructureEditable() error {
	if err := s.ensureDraft("edit survey structure"); err != nil {
		return err
	}
	return s.ensureNotFrozen()
}

func (s *Survey) ensureDetailsEditable() error {
	if s.state == SurveyArchived {
		return dErrors.New(dErrors.CodeInvariantViolation, "archived surveys cannot be edited")
	}
	return s.ensureNotFrozen()
}

func (s *Survey) UpdateTitle(title string, now time.Time) error {
	if err := s.ensureDetailsEditable(); err != nil {
		return err
	}
	if strings.TrimSpace(title) == "" {
		return dErrors.New(dErrors.CodeValidation, "survey title cannot be empty")
	}
	s.title = title
	s.touch(now)
	return nil
}

func (s *Survey) UpdateDescription(description string, now time.Time) error {
	if err := s.ensureDetailsEditable(); err != nil {
		return err
	}
	s.description = description
	s.touch(now)
	return nil
}

// SetSchedule sets the optional acceptance window. Either bound may be nil.
func (s *Survey) SetSchedule(startAt, endAt *time.Time, now time.Time) error {
	if err := s.ensureDraft("change schedule"); err != nil {
		return err
	}
	if startAt != nil && endAt != nil && !endAt.After(*startAt) {
		return dErrors.New(dErrors.CodeValidation, "survey end must be after its start")
	}
	s.startAt = copyTime(startAt)
	s.endAt = copyTime(endAt)
	s.touch(now)
	return nil
}

func (s *Survey) SetAnonymous(anonymous bool, now time.Time) error {
	if err := s.ensureDraft("change anonymity"); err != nil {
		return err
	}
	s.anonymous = anonymous
	s.touch(now)
	return nil
}

func (s *Survey) SetParticipationPolicy(policy ParticipationPolicy, now time.Time) error {
	if err := s.ensureDraft("change participation policy"); err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	s.policy = policy
	s.touch(now)
	return nil
}

// SetAudience replaces the audience filter; nil admits every participant.
func (s *Survey) SetAudience(filter *AudienceFilter, now time.Time) error {
	if err := s.ensureDraft("change audience"); err != nil {
		return err
	}
	s.audience = filter.clone()
	s.touch(now)
	return nil
}

// AddFeature links a feature code. Linking an already linked code is a no-op.
func (s *Survey) AddFeature(code string, now time.Time) error {
	return s.linkCode(&s.features, "feature", code, now)
}

func (s *Survey) RemoveFeature(code string, now time.Time) error {
	return s.unlinkCode(&s.features, "feature", code, now)
}

// AddCapability links a capability code. Linking an already linked code is a no-op.
func (s *Survey) AddCapability(code string, now time.Time) error {
	return s.linkCode(&s.capabilities, "capability", code, now)
}

func (s *Survey) RemoveCapability(code string, now time.Time) error {
	return s.unlinkCode(&s.capabilities, "capability", code, now)
}

func (s *Survey) linkCode(set *[]string, kind, code string, now time.Time) error {
	if err := s.ensureDetailsEditable(); err != nil {
		return err
	}
	normalized := codes.NormalizeCode(code)
	if normalized == "" {
		return dErrors.Newf(dErrors.CodeValidation, "%s code cannot be empty", kind)
	}
	if slices.Contains(*set, normalized) {
		return nil
	}
	*set = append(*set, normalized)
	s.touch(now)
	return nil
}

func (s *Survey) unlinkCode(set *[]string, kind, code string, now time.Time) error {
	if err := s.ensureDetailsEditable(); err != nil {
		return err
	}
	normalized := codes.NormalizeCode(code)
	i := slices.Index(*set, normalized)
	if i < 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "%s %q is not linked", kind, normalized)
	}
	*set = slices.Delete(*set, i, i+1)
	s.touch(now)
	return nil
}

// AddQuestion appends a question. Option counts are not checked here;
// Publish enforces them.
func (s *Survey) AddQuestion(spec QuestionSpec, now time.Time) (*Question, error) {
	if err := s.ensureStructureEditable(); err != nil {
		return nil, err
	}
	q, err := NewQuestion(id.NewQuestionID(), spec)
	if err != nil {
		return nil, err
	}
	s.attachQuestion(q)
	s.touch(now)
	return q, nil
}

func (s *Survey) attachQuestion(q *Question) {
	q.seq = s.nextQuestionSeq
	s.nextQuestionSeq++
	q.editable = s.ensureStructureEditable
	s.questions = append(s.questions, q)
}

func (s *Survey) RemoveQuestion(questionID id.QuestionID, now time.Time) error {
	if err := s.ensureStructureEditable(); err != nil {
		return err
	}
	i := slices.IndexFunc(s.questions, func(q *Question) bool { return q.id == questionID })
	if i < 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "question %s not found", questionID)
	}
	s.questions[i].editable = nil
	s.questions = slices.Delete(s.questions, i, i+1)
	s.touch(now)
	return nil
}

func (s *Survey) AddQuestionOption(questionID id.QuestionID, text string, order int, now time.Time) (QuestionOption, error) {
	q, err := s.Question(questionID)
	if err != nil {
		return QuestionOption{}, err
	}
	opt, err := q.AddOption(text, order)
	if err != nil {
		return QuestionOption{}, err
	}
	s.touch(now)
	return opt, nil
}

func (s *Survey) Question(questionID id.QuestionID) (*Question, error) {
	for _, q := range s.questions {
		if q.id == questionID {
			return q, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "question %s not found", questionID)
}

// Questions returns the questions in insertion order.
func (s *Survey) Questions() []*Question {
	return slices.Clone(s.questions)
}

// OrderedQuestions returns the questions sorted by Order, ties broken by
// insertion. The slice is rebuilt on every call.
func (s *Survey) OrderedQuestions() []*Question {
	ordered := slices.Clone(s.questions)
	slices.SortStableFunc(ordered, func(a, b *Question) int {
		if a.order != b.order {
			return a.order - b.order
		}
		return a.seq - b.seq
	})
	return ordered
}

// EnforceInvariants checks the structural rules a published survey must meet.
func (s *Survey) EnforceInvariants() error {
	if len(s.questions) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "published survey must have at least one question")
	}
	for _, q := range s.OrderedQuestions() {
		n := len(q.options)
		switch {
		case q.kind == QuestionTextual:
			continue
		case n == 0:
			return dErrors.Newf(dErrors.CodeInvariantViolation, "question %s has no options", q.id)
		case q.kind == QuestionFixedFourChoice && n != FixedFourOptionCount:
			return dErrors.Newf(dErrors.CodeInvariantViolation, "question %s must have exactly %d options", q.id, FixedFourOptionCount)
		case n < MinChoiceOptions || n > MaxChoiceOptions:
			return dErrors.Newf(dErrors.CodeInvariantViolation, "question %s must have between %d and %d options", q.id, MinChoiceOptions, MaxChoiceOptions)
		}
	}
	return nil
}

// Publish opens the survey for responses.
func (s *Survey) Publish(now time.Time) error {
	if err := s.ensureDraft("publish"); err != nil {
		return err
	}
	if s.startAt != nil && now.Before(*s.startAt) {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot publish before the survey start time")
	}
	if s.endAt != nil && !now.Before(*s.endAt) {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot publish after the survey end time")
	}
	if err := s.EnforceInvariants(); err != nil {
		return err
	}
	s.state = SurveyPublished
	s.touch(now)
	s.raise(SurveyPublishedEvent{SurveyID: s.id, At: now})
	return nil
}

func (s *Survey) Complete(now time.Time) error {
	if s.state != SurveyPublished {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "only published surveys can be completed, survey is %s", s.state)
	}
	s.state = SurveyCompleted
	s.touch(now)
	return nil
}

func (s *Survey) Archive(now time.Time) error {
	if s.state != SurveyCompleted {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "only completed surveys can be archived, survey is %s", s.state)
	}
	s.state = SurveyArchived
	s.touch(now)
	return nil
}

func (s *Survey) FreezeStructure(now time.Time) error {
	if err := s.ensureDraft("freeze structure"); err != nil {
		return err
	}
	if s.structureFrozen {
		return dErrors.New(dErrors.CodeInvariantViolation, "survey structure is already frozen")
	}
	s.structureFrozen = true
	s.structureVersion++
	s.touch(now)
	s.raise(SurveyStructureFrozenEvent{SurveyID: s.id, StructureVersion: s.structureVersion, At: now})
	return nil
}

func (s *Survey) UnfreezeStructure(now time.Time) error {
	if err := s.ensureDraft("unfreeze structure"); err != nil {
		return err
	}
	if !s.structureFrozen {
		return dErrors.New(dErrors.CodeInvariantViolation, "survey structure is not frozen")
	}
	s.structureFrozen = false
	s.structureVersion++
	s.touch(now)
	s.raise(SurveyStructureUnfrozenEvent{SurveyID: s.id, StructureVersion: s.structureVersion, At: now})
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
