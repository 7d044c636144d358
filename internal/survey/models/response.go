package models

import (
	"slices"
	"strings"
	"time"

	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
)

// AttemptStatus is the outcome of one participation attempt.
type AttemptStatus string

const (
	AttemptActive    AttemptStatus = "active"
	AttemptSubmitted AttemptStatus = "submitted"
	AttemptCanceled  AttemptStatus = "canceled"
	AttemptExpired   AttemptStatus = "expired"
)

func (s AttemptStatus) IsValid() bool {
	switch s {
	case AttemptActive, AttemptSubmitted, AttemptCanceled, AttemptExpired:
		return true
	}
	return false
}

func (s AttemptStatus) IsTerminal() bool {
	return s != AttemptActive
}

// ResponseStatus is the participant-facing progress of a response.
type ResponseStatus string

const (
	ResponseAnswering ResponseStatus = "answering"
	ResponseReviewing ResponseStatus = "reviewing"
	ResponseCompleted ResponseStatus = "completed"
	ResponseCancelled ResponseStatus = "cancelled"
	ResponseExpired   ResponseStatus = "expired"
)

func (s ResponseStatus) IsValid() bool {
	switch s {
	case ResponseAnswering, ResponseReviewing, ResponseCompleted, ResponseCancelled, ResponseExpired:
		return true
	}
	return false
}

type answerKey struct {
	questionID  id.QuestionID
	repeatIndex int
}

// Response is one participant's attempt at a survey. It is owned by the
// Survey aggregate and mutated only through it or through its own methods.
//
// Invariants:
//   - AttemptStatus is Active iff ResponseStatus is Answering or Reviewing
//   - At most one of SubmittedAt, CanceledAt, ExpiredAt is ever set
//   - Terminal transitions happen once and are irreversible
//   - Answers are unique per (questionID, repeatIndex) with repeatIndex >= 1
//   - AttemptNumber >= 1
type Response struct {
	id            id.ResponseID
	surveyID      id.SurveyID
	participant   id.ParticipantRef
	demography    *DemographySnapshot
	attemptNumber int
	attemptStatus AttemptStatus
	status        ResponseStatus
	startedAt     time.Time
	updatedAt     time.Time
	submittedAt   *time.Time
	canceledAt    *time.Time
	expiredAt     *time.Time
	cursor        Cursor

	answers []*QuestionAnswer
	index   map[answerKey]*QuestionAnswer
}

// NewResponse starts an Active attempt in the Answering status.
func NewResponse(
	responseID id.ResponseID,
	surveyID id.SurveyID,
	participant id.ParticipantRef,
	demography *DemographySnapshot,
	attemptNumber int,
	now time.Time,
) (*Response, error) {
	if responseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "response id cannot be empty")
	}
	if surveyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "survey id cannot be empty")
	}
	if participant.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "participant cannot be empty")
	}
	if attemptNumber < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "attempt number must be at least 1")
	}
	return &Response{
		id:            responseID,
		surveyID:      surveyID,
		participant:   participant,
		demography:    demography.clone(),
		attemptNumber: attemptNumber,
		attemptStatus: AttemptActive,
		status:        ResponseAnswering,
		startedAt:     now,
		updatedAt:     now,
		cursor:        UnsetCursor(),
		index:         make(map[answerKey]*QuestionAnswer),
	}, nil
}

func (r *Response) ID() id.ResponseID                 { return r.id }
func (r *Response) SurveyID() id.SurveyID             { return r.surveyID }
func (r *Response) ParticipantRef() id.ParticipantRef { return r.participant }
func (r *Response) Demography() *DemographySnapshot   { return r.demography.clone() }
func (r *Response) AttemptNumber() int                { return r.attemptNumber }
func (r *Response) AttemptStatus() AttemptStatus      { return r.attemptStatus }
func (r *Response) Status() ResponseStatus            { return r.status }
func (r *Response) StartedAt() time.Time              { return r.startedAt }
func (r *Response) UpdatedAt() time.Time              { return r.updatedAt }
func (r *Response) SubmittedAt() *time.Time           { return r.submittedAt }
func (r *Response) CanceledAt() *time.Time            { return r.canceledAt }
func (r *Response) ExpiredAt() *time.Time             { return r.expiredAt }
func (r *Response) Cursor() Cursor                    { return r.cursor }
func (r *Response) CurrentQuestionID() id.QuestionID  { return r.cursor.QuestionID() }
func (r *Response) CurrentRepeatIndex() int           { return r.cursor.RepeatIndex() }
func (r *Response) Participant() Participant {
	return Participant{Ref: r.participant, Demography: r.demography.clone()}
}

// LastActivityAt is the terminal timestamp if one is set, otherwise the
// last mutation time.
func (r *Response) LastActivityAt() time.Time {
	for _, t := range []*time.Time{r.submittedAt, r.canceledAt, r.expiredAt} {
		if t != nil {
			return *t
		}
	}
	return r.updatedAt
}

// CanBeModified reports whether answers and navigation may change.
func (r *Response) CanBeModified() bool {
	return r.status == ResponseAnswering || r.status == ResponseReviewing
}

func (r *Response) IsActive() bool {
	return r.attemptStatus == AttemptActive
}

func (r *Response) ensureModifiable() error {
	if !r.CanBeModified() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "response cannot be modified in status %s", r.status)
	}
	return nil
}

func (r *Response) touch(now time.Time) {
	r.updatedAt = now
}

// Answers returns the answer records in creation order.
func (r *Response) Answers() []*QuestionAnswer {
	return slices.Clone(r.answers)
}

func (r *Response) Answer(questionID id.QuestionID, repeatIndex int) (*QuestionAnswer, bool) {
	a, ok := r.index[answerKey{questionID, repeatIndex}]
	return a, ok
}

// HasAnswerForQuestion is true when any repeat instance of the question has content.
func (r *Response) HasAnswerForQuestion(questionID id.QuestionID) bool {
	for _, a := range r.answers {
		if a.questionID == questionID && a.HasAnswer() {
			return true
		}
	}
	return false
}

// SelectedOptionsForQuestion returns the selections recorded for one repeat instance.
func (r *Response) SelectedOptionsForQuestion(questionID id.QuestionID, repeatIndex int) []QuestionAnswerOption {
	a, ok := r.Answer(questionID, repeatIndex)
	if !ok {
		return nil
	}
	return a.SelectedOptions()
}

// AnsweredRepeatIndices returns, ascending, the repeat indices of the
// question that carry content.
func (r *Response) AnsweredRepeatIndices(questionID id.QuestionID) []int {
	var out []int
	for _, a := range r.answers {
		if a.questionID == questionID && a.HasAnswer() {
			out = append(out, a.repeatIndex)
		}
	}
	slices.Sort(out)
	return out
}

func (r *Response) AnsweredRepeatCount(questionID id.QuestionID) int {
	return len(r.AnsweredRepeatIndices(questionID))
}

// MaxAnsweredRepeatIndex returns the highest answered repeat index, or 1.
func (r *Response) MaxAnsweredRepeatIndex(questionID id.QuestionID) int {
	indices := r.AnsweredRepeatIndices(questionID)
	if len(indices) == 0 {
		return 1
	}
	return indices[len(indices)-1]
}

func (r *Response) findOrCreateAnswer(questionID id.QuestionID, repeatIndex int, now time.Time) *QuestionAnswer {
	key := answerKey{questionID, repeatIndex}
	if a, ok := r.index[key]; ok {
		return a
	}
	a := newQuestionAnswer(questionID, repeatIndex, now)
	r.answers = append(r.answers, a)
	r.index[key] = a
	return a
}

func validateAnswerTarget(questionID id.QuestionID, repeatIndex int) error {
	if questionID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "question id cannot be empty")
	}
	if repeatIndex < 1 {
		return dErrors.New(dErrors.CodeValidation, "repeat index must be at least 1")
	}
	return nil
}

func validateSelections(sels []OptionSelection) error {
	seen := make(map[id.OptionID]struct{}, len(sels))
	for _, sel := range sels {
		if sel.OptionID.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "option id cannot be empty")
		}
		if _, dup := seen[sel.OptionID]; dup {
			return dErrors.Newf(dErrors.CodeValidation, "option %s selected more than once", sel.OptionID)
		}
		seen[sel.OptionID] = struct{}{}
	}
	return nil
}

// SetQuestionAnswer upserts the answer for (questionID, repeatIndex). Blank
// text leaves the recorded text alone; a non-nil selection replaces the
// previous one. Repeating a call with the same arguments changes nothing.
func (r *Response) SetQuestionAnswer(
	questionID id.QuestionID,
	text *string,
	selections []OptionSelection,
	repeatIndex int,
	now time.Time,
) error {
	if err := r.ensureModifiable(); err != nil {
		return err
	}
	if err := validateAnswerTarget(questionID, repeatIndex); err != nil {
		return err
	}
	if err := validateSelections(selections); err != nil {
		return err
	}

	a := r.findOrCreateAnswer(questionID, repeatIndex, now)
	if text != nil && strings.TrimSpace(*text) != "" {
		a.setText(*text, now)
	}
	if selections != nil {
		a.replaceSelections(selections, now)
	}
	r.touch(now)
	return nil
}

// AddSelectedOptionWithText adds one selection to the answer, creating the
// answer if needed.
func (r *Response) AddSelectedOptionWithText(
	questionID id.QuestionID,
	optionID id.OptionID,
	optionText string,
	repeatIndex int,
	now time.Time,
) error {
	if err := r.ensureModifiable(); err != nil {
		return err
	}
	if err := validateAnswerTarget(questionID, repeatIndex); err != nil {
		return err
	}
	if optionID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "option id cannot be empty")
	}
	a := r.findOrCreateAnswer(questionID, repeatIndex, now)
	a.addSelection(OptionSelection{OptionID: optionID, Text: optionText}, now)
	r.touch(now)
	return nil
}

func (r *Response) RemoveSelectedOption(questionID id.QuestionID, optionID id.OptionID, repeatIndex int, now time.Time) error {
	if err := r.ensureModifiable(); err != nil {
		return err
	}
	if err := validateAnswerTarget(questionID, repeatIndex); err != nil {
		return err
	}
	a, ok := r.Answer(questionID, repeatIndex)
	if !ok || !a.removeSelection(optionID, now) {
		return dErrors.Newf(dErrors.CodeNotFound, "option %s is not selected for question %s", optionID, questionID)
	}
	r.touch(now)
	return nil
}

// UpdateSelectedOptions replaces the selection of one repeat instance.
func (r *Response) UpdateSelectedOptions(
	questionID id.QuestionID,
	selections []OptionSelection,
	repeatIndex int,
	now time.Time,
) error {
	if err := r.ensureModifiable(); err != nil {
		return err
	}
	if err := validateAnswerTarget(questionID, repeatIndex); err != nil {
		return err
	}
	if err := validateSelections(selections); err != nil {
		return err
	}
	a := r.findOrCreateAnswer(questionID, repeatIndex, now)
	a.replaceSelections(selections, now)
	r.touch(now)
	return nil
}

// ClearQuestionAnswer deletes one repeat instance's answer record.
func (r *Response) ClearQuestionAnswer(questionID id.QuestionID, repeatIndex int, now time.Time) error {
	if err := r.ensureModifiable(); err != nil {
		return err
	}
	key := answerKey{questionID, repeatIndex}
	a, ok := r.index[key]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "no answer for question %s repeat %d", questionID, repeatIndex)
	}
	delete(r.index, key)
	r.answers = slices.DeleteFunc(r.answers, func(x *QuestionAnswer) bool { return x == a })
	r.touch(now)
	return nil
}

// Submit finalises an active attempt.
func (r *Response) Submit(now time.Time) error {
	if r.attemptStatus != AttemptActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "only active attempts can be submitted")
	}
	r.attemptStatus = AttemptSubmitted
	r.status = ResponseCompleted
	r.submittedAt = &now
	r.touch(now)
	return nil
}

func (r *Response) Cancel(now time.Time) error {
	if r.attemptStatus != AttemptActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "only active attempts can be canceled")
	}
	r.attemptStatus = AttemptCanceled
	r.status = ResponseCancelled
	r.canceledAt = &now
	r.touch(now)
	return nil
}

func (r *Response) Expire(now time.Time) error {
	if r.attemptStatus != AttemptActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "only active attempts can be expired")
	}
	r.attemptStatus = AttemptExpired
	r.status = ResponseExpired
	r.expiredAt = &now
	r.touch(now)
	return nil
}

func (r *Response) StartReviewing(now time.Time) error {
	if r.status != ResponseAnswering {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot start reviewing from status %s", r.status)
	}
	r.status = ResponseReviewing
	r.touch(now)
	return nil
}

func (r *Response) ResumeAnswering(now time.Time) error {
	if r.status != ResponseReviewing {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot resume answering from status %s", r.status)
	}
	r.status = ResponseAnswering
	r.touch(now)
	return nil
}
