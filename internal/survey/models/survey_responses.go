package models

import (
	"slices"
	"time"

	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
)

// IsAcceptingResponses reports whether the survey is published and now lies
// within the optional [StartAt, EndAt] window.
func (s *Survey) IsAcceptingResponses(now time.Time) bool {
	if s.state != SurveyPublished {
		return false
	}
	if s.startAt != nil && now.Before(*s.startAt) {
		return false
	}
	if s.endAt != nil && now.After(*s.endAt) {
		return false
	}
	return true
}

// CanParticipantSubmit reports whether participant may start a new attempt.
func (s *Survey) CanParticipantSubmit(participant id.ParticipantRef, demography *DemographySnapshot, now time.Time) bool {
	if participant.IsNil() || !s.IsAcceptingResponses(now) {
		return false
	}
	if !s.audience.Matches(demography) {
		return false
	}
	previous := s.ResponsesFor(participant)
	var lastAttemptAt *time.Time
	if n := len(previous); n > 0 {
		t := previous[n-1].LastActivityAt()
		lastAttemptAt = &t
	}
	return s.policy.IsAttemptAllowed(len(previous)+1, lastAttemptAt, now)
}

// StartResponse creates the participant's next attempt and seeds its cursor
// at the first question.
func (s *Survey) StartResponse(participant id.ParticipantRef, demography *DemographySnapshot, now time.Time) (*Response, error) {
	if participant.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "participant cannot be empty")
	}
	if !s.CanParticipantSubmit(participant, demography, now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "participant cannot submit response")
	}
	attempt := len(s.ResponsesFor(participant)) + 1
	resp, err := NewResponse(id.NewResponseID(), s.id, participant, demography, attempt, now)
	if err != nil {
		return nil, err
	}
	if ordered := s.OrderedQuestions(); len(ordered) > 0 {
		if err := resp.NavigateToQuestion(ordered, id.QuestionID{}, 0, true); err != nil {
			return nil, err
		}
	}
	s.responses = append(s.responses, resp)
	s.touch(now)
	s.raise(ResponseStartedEvent{
		SurveyID:      s.id,
		ResponseID:    resp.id,
		Participant:   s.eventParticipant(participant),
		AttemptNumber: attempt,
		At:            now,
	})
	return resp, nil
}

func (s *Survey) eventParticipant(p id.ParticipantRef) id.ParticipantRef {
	if s.anonymous {
		return ""
	}
	return p
}

func (s *Survey) Response(responseID id.ResponseID) (*Response, error) {
	for _, r := range s.responses {
		if r.id == responseID {
			if r.surveyID != s.id {
				return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "response %s does not belong to survey %s", responseID, s.id)
			}
			return r, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "response %s not found", responseID)
}

// Responses returns all responses in start order.
func (s *Survey) Responses() []*Response {
	return slices.Clone(s.responses)
}

// ResponsesFor returns the participant's attempts in start order.
func (s *Survey) ResponsesFor(participant id.ParticipantRef) []*Response {
	var out []*Response
	for _, r := range s.responses {
		if r.participant == participant {
			out = append(out, r)
		}
	}
	return out
}

// answerTarget resolves the response and question for an answer mutation and
// checks the repeat index against the question's policy.
func (s *Survey) answerTarget(responseID id.ResponseID, questionID id.QuestionID, repeatIndex int) (*Response, *Question, error) {
	resp, err := s.Response(responseID)
	if err != nil {
		return nil, nil, err
	}
	q, err := s.Question(questionID)
	if err != nil {
		return nil, nil, err
	}
	if !q.ValidateRepeatIndex(repeatIndex) {
		return nil, nil, dErrors.Newf(dErrors.CodeValidation, "repeat index %d is not valid for question %s", repeatIndex, questionID)
	}
	return resp, q, nil
}

func (s *Survey) resolveSelections(q *Question, optionIDs []id.OptionID) ([]OptionSelection, error) {
	if optionIDs == nil {
		return nil, nil
	}
	sels := make([]OptionSelection, 0, len(optionIDs))
	for _, optionID := range optionIDs {
		text, err := q.OptionText(optionID)
		if err != nil {
			return nil, err
		}
		sels = append(sels, OptionSelection{OptionID: optionID, Text: text})
	}
	return sels, nil
}

// SetResponseAnswer records text and/or selected options for one repeat
// instance. A nil optionIDs leaves the existing selection untouched.
func (s *Survey) SetResponseAnswer(
	responseID id.ResponseID,
	questionID id.QuestionID,
	text *string,
	optionIDs []id.OptionID,
	repeatIndex int,
	now time.Time,
) error {
	resp, q, err := s.answerTarget(responseID, questionID, repeatIndex)
	if err != nil {
		return err
	}
	if optionIDs != nil {
		if err := q.ValidateSelectedOptions(optionIDs); err != nil {
			return err
		}
	}
	sels, err := s.resolveSelections(q, optionIDs)
	if err != nil {
		return err
	}
	if err := resp.SetQuestionAnswer(questionID, text, sels, repeatIndex, now); err != nil {
		return err
	}
	s.touch(now)
	return nil
}

// AddSelectedOptionToResponse selects one option. On single choice
// questions the new option replaces any previous selection.
func (s *Survey) AddSelectedOptionToResponse(
	responseID id.ResponseID,
	questionID id.QuestionID,
	optionID id.OptionID,
	repeatIndex int,
	now time.Time,
) error {
	resp, q, err := s.answerTarget(responseID, questionID, repeatIndex)
	if err != nil {
		return err
	}
	if q.kind == QuestionTextual {
		return dErrors.New(dErrors.CodeValidation, "textual questions do not accept selected options")
	}
	opt, ok := q.Option(optionID)
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "option %s not found on question %s", optionID, questionID)
	}
	if !opt.active {
		return dErrors.Newf(dErrors.CodeValidation, "option %s is not active", optionID)
	}

	if q.kind == QuestionSingleChoice {
		err = resp.UpdateSelectedOptions(questionID, []OptionSelection{{OptionID: optionID, Text: opt.text}}, repeatIndex, now)
	} else {
		err = resp.AddSelectedOptionWithText(questionID, optionID, opt.text, repeatIndex, now)
	}
	if err != nil {
		return err
	}
	s.touch(now)
	return nil
}

func (s *Survey) RemoveSelectedOptionFromResponse(
	responseID id.ResponseID,
	questionID id.QuestionID,
	optionID id.OptionID,
	repeatIndex int,
	now time.Time,
) error {
	resp, _, err := s.answerTarget(responseID, questionID, repeatIndex)
	if err != nil {
		return err
	}
	if err := resp.RemoveSelectedOption(questionID, optionID, repeatIndex, now); err != nil {
		return err
	}
	s.touch(now)
	return nil
}

// UpdateResponseWithSelectedOptions replaces the selection of one repeat instance.
func (s *Survey) UpdateResponseWithSelectedOptions(
	responseID id.ResponseID,
	questionID id.QuestionID,
	optionIDs []id.OptionID,
	repeatIndex int,
	now time.Time,
) error {
	resp, q, err := s.answerTarget(responseID, questionID, repeatIndex)
	if err != nil {
		return err
	}
	if err := q.ValidateSelectedOptions(optionIDs); err != nil {
		return err
	}
	sels, err := s.resolveSelections(q, optionIDs)
	if err != nil {
		return err
	}
	if sels == nil {
		sels = []OptionSelection{}
	}
	if err := resp.UpdateSelectedOptions(questionID, sels, repeatIndex, now); err != nil {
		return err
	}
	s.touch(now)
	return nil
}

func (s *Survey) ClearResponseAnswer(responseID id.ResponseID, questionID id.QuestionID, repeatIndex int, now time.Time) error {
	resp, err := s.Response(responseID)
	if err != nil {
		return err
	}
	if err := resp.ClearQuestionAnswer(questionID, repeatIndex, now); err != nil {
		return err
	}
	s.touch(now)
	return nil
}

func (s *Survey) GetOptionText(questionID id.QuestionID, optionID id.OptionID) (string, error) {
	q, err := s.Question(questionID)
	if err != nil {
		return "", err
	}
	return q.OptionText(optionID)
}

// GetQuestionOptionTexts resolves the text of every requested option.
func (s *Survey) GetQuestionOptionTexts(questionID id.QuestionID, optionIDs []id.OptionID) (map[id.OptionID]string, error) {
	q, err := s.Question(questionID)
	if err != nil {
		return nil, err
	}
	out := make(map[id.OptionID]string, len(optionIDs))
	for _, optionID := range optionIDs {
		text, err := q.OptionText(optionID)
		if err != nil {
			return nil, err
		}
		out[optionID] = text
	}
	return out, nil
}

// SubmitResponse completes an attempt once every required question has an
// answer in at least one repeat instance.
func (s *Survey) SubmitResponse(responseID id.ResponseID, now time.Time) error {
	resp, err := s.Response(responseID)
	if err != nil {
		return err
	}
	if !resp.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "only active attempts can be submitted")
	}
	for _, q := range s.OrderedQuestions() {
		if q.required && !resp.HasAnswerForQuestion(q.id) {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "response is not complete: question %s is unanswered", q.id)
		}
	}
	if err := resp.Submit(now); err != nil {
		return err
	}
	s.touch(now)
	s.raise(ResponseSubmittedEvent{
		SurveyID:      s.id,
		ResponseID:    resp.id,
		Participant:   s.eventParticipant(resp.participant),
		AttemptNumber: resp.attemptNumber,
		At:            now,
	})
	return nil
}

func (s *Survey) CancelResponse(responseID id.ResponseID, now time.Time) error {
	resp, err := s.Response(responseID)
	if err != nil {
		return err
	}
	if err := resp.Cancel(now); err != nil {
		return err
	}
	s.touch(now)
	s.raise(ResponseCancelledEvent{SurveyID: s.id, ResponseID: resp.id, At: now})
	return nil
}

func (s *Survey) ExpireResponse(responseID id.ResponseID, now time.Time) error {
	resp, err := s.Response(responseID)
	if err != nil {
		return err
	}
	if err := resp.Expire(now); err != nil {
		return err
	}
	s.touch(now)
	s.raise(ResponseExpiredEvent{SurveyID: s.id, ResponseID: resp.id, At: now})
	return nil
}

// ExpireStaleResponses expires every active response whose last activity is
// before cutoff and returns their ids.
func (s *Survey) ExpireStaleResponses(cutoff, now time.Time) []id.ResponseID {
	var expired []id.ResponseID
	for _, r := range s.responses {
		if !r.IsActive() || !r.updatedAt.Before(cutoff) {
			continue
		}
		if err := r.Expire(now); err != nil {
			continue
		}
		expired = append(expired, r.id)
		s.raise(ResponseExpiredEvent{SurveyID: s.id, ResponseID: r.id, At: now})
	}
	if len(expired) > 0 {
		s.touch(now)
	}
	return expired
}

func (s *Survey) StartResponseReview(responseID id.ResponseID, now time.Time) error {
	resp, err := s.Response(responseID)
	if err != nil {
		return err
	}
	if err := resp.StartReviewing(now); err != nil {
		return err
	}
	s.touch(now)
	return nil
}

func (s *Survey) ResumeResponseAnswering(responseID id.ResponseID, now time.Time) error {
	resp, err := s.Response(responseID)
	if err != nil {
		return err
	}
	if err := resp.ResumeAnswering(now); err != nil {
		return err
	}
	s.touch(now)
	return nil
}

func (s *Survey) NavigateResponseToNext(responseID id.ResponseID, now time.Time) (bool, error) {
	resp, err := s.Response(responseID)
	if err != nil {
		return false, err
	}
	moved, err := resp.NavigateToNext(s.OrderedQuestions())
	if err != nil {
		return false, err
	}
	if moved {
		resp.touch(now)
	}
	return moved, nil
}

// NavigateResponseToPrevious is rejected when the participation policy
// disallows back navigation.
func (s *Survey) NavigateResponseToPrevious(responseID id.ResponseID, now time.Time) (bool, error) {
	resp, err := s.Response(responseID)
	if err != nil {
		return false, err
	}
	if !s.policy.AllowBackNavigation {
		return false, dErrors.New(dErrors.CodeInvariantViolation, "back navigation is not allowed for this survey")
	}
	moved, err := resp.NavigateToPrevious(s.OrderedQuestions())
	if err != nil {
		return false, err
	}
	if moved {
		resp.touch(now)
	}
	return moved, nil
}

// NavigateResponseToQuestion jumps to questionID. Without back navigation,
// targets ordered before the current question are rejected.
func (s *Survey) NavigateResponseToQuestion(
	responseID id.ResponseID,
	questionID id.QuestionID,
	repeatIndex int,
	now time.Time,
) error {
	resp, err := s.Response(responseID)
	if err != nil {
		return err
	}
	ordered := s.OrderedQuestions()
	if !s.policy.AllowBackNavigation && resp.cursor.IsSet() {
		target := questionPosition(ordered, questionID)
		current := questionPosition(ordered, resp.cursor.QuestionID())
		if target >= 0 && current >= 0 && target < current {
			return dErrors.New(dErrors.CodeInvariantViolation, "back navigation is not allowed for this survey")
		}
	}
	if err := resp.NavigateToQuestion(ordered, questionID, repeatIndex, true); err != nil {
		return err
	}
	resp.touch(now)
	return nil
}

func (s *Survey) ResetResponseNavigation(responseID id.ResponseID, now time.Time) error {
	resp, err := s.Response(responseID)
	if err != nil {
		return err
	}
	if err := resp.ResetNavigation(s.OrderedQuestions()); err != nil {
		return err
	}
	resp.touch(now)
	return nil
}

// GetCurrentQuestionForResponse returns the question under the response's
// cursor. ok is false when the cursor is unset or its question was removed.
func (s *Survey) GetCurrentQuestionForResponse(responseID id.ResponseID) (q *Question, repeatIndex int, ok bool, err error) {
	resp, err := s.Response(responseID)
	if err != nil {
		return nil, 0, false, err
	}
	q, ok = resp.CurrentQuestion(s.OrderedQuestions())
	return q, resp.cursor.RepeatIndex(), ok, nil
}
