package service

import (
	"context"
	"time"

	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
)

// StartResponseCommand starts an attempt for a participant. Demography is
// snapshotted onto the response and checked against the survey audience.
type StartResponseCommand struct {
	SurveyID    id.SurveyID
	Participant id.ParticipantRef
	Demography  map[string]string
}

// AnswerCommand records the answer for one repeat instance of a question.
// A nil OptionIDs keeps the current selection; a nil Text keeps the text.
// A zero RepeatIndex addresses the first instance.
type AnswerCommand struct {
	SurveyID    id.SurveyID
	ResponseID  id.ResponseID
	QuestionID  id.QuestionID
	RepeatIndex int
	Text        *string
	OptionIDs   []id.OptionID
}

func (c AnswerCommand) repeatIndex() int {
	if c.RepeatIndex == 0 {
		return 1
	}
	return c.RepeatIndex
}

// Position is where a response's cursor points after a navigation request.
type Position struct {
	QuestionID  id.QuestionID
	RepeatIndex int
	Moved       bool
}

// CurrentQuestion is the question under the cursor with the answer recorded
// for the current repeat instance, if any.
type CurrentQuestion struct {
	Question    *models.Question
	RepeatIndex int
	Answer      *models.QuestionAnswer
}

func (s *Service) StartResponse(ctx context.Context, cmd StartResponseCommand) (id.ResponseID, error) {
	var responseID id.ResponseID
	_, err := s.mutate(ctx, "StartResponse", cmd.SurveyID, func(survey *models.Survey, now time.Time) error {
		var demography *models.DemographySnapshot
		if len(cmd.Demography) > 0 {
			demography = models.NewDemographySnapshot(cmd.Demography, now)
		}
		resp, err := survey.StartResponse(cmd.Participant, demography, now)
		if err != nil {
			return err
		}
		responseID = resp.ID()
		return nil
	})
	if err != nil {
		return id.ResponseID{}, err
	}
	if s.metrics != nil {
		s.metrics.ResponsesStarted.Inc()
	}
	s.logAudit(ctx, "survey_response_started", "survey_id", cmd.SurveyID, "response_id", responseID)
	return responseID, nil
}

// GetResponse returns one response of a survey.
func (s *Service) GetResponse(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) (*models.Response, error) {
	survey, err := s.load(ctx, "GetResponse", surveyID)
	if err != nil {
		return nil, err
	}
	return survey.Response(responseID)
}

func (s *Service) SetAnswer(ctx context.Context, cmd AnswerCommand) error {
	_, err := s.mutate(ctx, "SetAnswer", cmd.SurveyID, func(survey *models.Survey, now time.Time) error {
		return survey.SetResponseAnswer(cmd.ResponseID, cmd.QuestionID, cmd.Text, cmd.OptionIDs, cmd.repeatIndex(), now)
	})
	return err
}

func (s *Service) SelectOption(ctx context.Context, cmd AnswerCommand, optionID id.OptionID) error {
	_, err := s.mutate(ctx, "SelectOption", cmd.SurveyID, func(survey *models.Survey, now time.Time) error {
		return survey.AddSelectedOptionToResponse(cmd.ResponseID, cmd.QuestionID, optionID, cmd.repeatIndex(), now)
	})
	return err
}

func (s *Service) DeselectOption(ctx context.Context, cmd AnswerCommand, optionID id.OptionID) error {
	_, err := s.mutate(ctx, "DeselectOption", cmd.SurveyID, func(survey *models.Survey, now time.Time) error {
		return survey.RemoveSelectedOptionFromResponse(cmd.ResponseID, cmd.QuestionID, optionID, cmd.repeatIndex(), now)
	})
	return err
}

// ReplaceSelection sets the full selection of one repeat instance to cmd.OptionIDs.
func (s *Service) ReplaceSelection(ctx context.Context, cmd AnswerCommand) error {
	_, err := s.mutate(ctx, "ReplaceSelection", cmd.SurveyID, func(survey *models.Survey, now time.Time) error {
		return survey.UpdateResponseWithSelectedOptions(cmd.ResponseID, cmd.QuestionID, cmd.OptionIDs, cmd.repeatIndex(), now)
	})
	return err
}

func (s *Service) ClearAnswer(ctx context.Context, cmd AnswerCommand) error {
	_, err := s.mutate(ctx, "ClearAnswer", cmd.SurveyID, func(survey *models.Survey, now time.Time) error {
		return survey.ClearResponseAnswer(cmd.ResponseID, cmd.QuestionID, cmd.repeatIndex(), now)
	})
	return err
}

func (s *Service) NavigateNext(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) (Position, error) {
	return s.navigate(ctx, "NavigateNext", "next", surveyID, responseID, func(survey *models.Survey, now time.Time) (bool, error) {
		return survey.NavigateResponseToNext(responseID, now)
	})
}

func (s *Service) NavigatePrevious(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) (Position, error) {
	return s.navigate(ctx, "NavigatePrevious", "previous", surveyID, responseID, func(survey *models.Survey, now time.Time) (bool, error) {
		return survey.NavigateResponseToPrevious(responseID, now)
	})
}

// NavigateTo jumps to a question. repeatIndex 0 picks the next unanswered repeat.
func (s *Service) NavigateTo(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID, questionID id.QuestionID, repeatIndex int) (Position, error) {
	return s.navigate(ctx, "NavigateTo", "goto", surveyID, responseID, func(survey *models.Survey, now time.Time) (bool, error) {
		return true, survey.NavigateResponseToQuestion(responseID, questionID, repeatIndex, now)
	})
}

func (s *Service) ResetNavigation(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) (Position, error) {
	return s.navigate(ctx, "ResetNavigation", "reset", surveyID, responseID, func(survey *models.Survey, now time.Time) (bool, error) {
		return true, survey.ResetResponseNavigation(responseID, now)
	})
}

func (s *Service) navigate(
	ctx context.Context,
	op, direction string,
	surveyID id.SurveyID,
	responseID id.ResponseID,
	move func(survey *models.Survey, now time.Time) (bool, error),
) (Position, error) {
	var pos Position
	_, err := s.mutate(ctx, op, surveyID, func(survey *models.Survey, now time.Time) error {
		moved, err := move(survey, now)
		if err != nil {
			return err
		}
		resp, err := survey.Response(responseID)
		if err != nil {
			return err
		}
		pos = Position{QuestionID: resp.CurrentQuestionID(), RepeatIndex: resp.CurrentRepeatIndex(), Moved: moved}
		return nil
	})
	if err != nil {
		return Position{}, err
	}
	s.incNavigation(direction, pos.Moved)
	return pos, nil
}

// CurrentQuestion resolves the response cursor. ok is false when the cursor
// is unset or points at a removed question.
func (s *Service) CurrentQuestion(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) (CurrentQuestion, bool, error) {
	survey, err := s.load(ctx, "CurrentQuestion", surveyID)
	if err != nil {
		return CurrentQuestion{}, false, err
	}
	q, repeatIndex, ok, err := survey.GetCurrentQuestionForResponse(responseID)
	if err != nil || !ok {
		return CurrentQuestion{}, false, err
	}
	resp, err := survey.Response(responseID)
	if err != nil {
		return CurrentQuestion{}, false, err
	}
	cur := CurrentQuestion{Question: q, RepeatIndex: repeatIndex}
	if a, found := resp.Answer(q.ID(), repeatIndex); found {
		cur.Answer = a
	}
	return cur, true, nil
}

func (s *Service) StartReview(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) error {
	_, err := s.mutate(ctx, "StartReview", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.StartResponseReview(responseID, now)
	})
	return err
}

func (s *Service) ResumeAnswering(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) error {
	_, err := s.mutate(ctx, "ResumeAnswering", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.ResumeResponseAnswering(responseID, now)
	})
	return err
}

// SubmitResponse completes an attempt. Every required question needs an answer.
func (s *Service) SubmitResponse(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) error {
	if _, err := s.mutate(ctx, "SubmitResponse", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.SubmitResponse(responseID, now)
	}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ResponsesSubmitted.Inc()
	}
	s.logAudit(ctx, "survey_response_submitted", "survey_id", surveyID, "response_id", responseID)
	return nil
}

func (s *Service) CancelResponse(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) error {
	if _, err := s.mutate(ctx, "CancelResponse", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.CancelResponse(responseID, now)
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "survey_response_cancelled", "survey_id", surveyID, "response_id", responseID)
	return nil
}

// ExpireStaleResponses expires active responses of one survey idle since
// before cutoff and returns how many were expired.
func (s *Service) ExpireStaleResponses(ctx context.Context, surveyID id.SurveyID, cutoff time.Time) (int, error) {
	var expired []id.ResponseID
	_, err := s.mutate(ctx, "ExpireStaleResponses", surveyID, func(survey *models.Survey, now time.Time) error {
		expired = survey.ExpireStaleResponses(cutoff, now)
		if len(expired) == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n := len(expired); n > 0 {
		if s.metrics != nil {
			s.metrics.ResponsesExpired.Add(float64(n))
		}
		s.logAudit(ctx, "survey_responses_expired", "survey_id", surveyID, "count", n)
	}
	return len(expired), nil
}
