package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
)

type ResponseSuite struct {
	suite.Suite
	resp *Response
	qID  id.QuestionID
}

func TestResponseSuite(t *testing.T) {
	suite.Run(t, new(ResponseSuite))
}

func (s *ResponseSuite) SetupTest() {
	s.resp = mustResponse()
	s.qID = id.NewQuestionID()
}

func (s *ResponseSuite) TestNewResponse() {
	s.Equal(AttemptActive, s.resp.AttemptStatus())
	s.Equal(ResponseAnswering, s.resp.Status())
	s.False(s.resp.Cursor().IsSet())
	s.Equal(1, s.resp.CurrentRepeatIndex())

	_, err := NewResponse(id.NewResponseID(), id.NewSurveyID(), "", nil, 1, testNow)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = NewResponse(id.NewResponseID(), id.NewSurveyID(), "p", nil, 0, testNow)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ResponseSuite) TestSetQuestionAnswer() {
	opt1, opt2 := id.NewOptionID(), id.NewOptionID()

	s.Run("is idempotent for identical inputs", func() {
		sels := []OptionSelection{{OptionID: opt1, Text: "Rent"}, {OptionID: opt2, Text: "Food"}}
		s.Require().NoError(s.resp.SetQuestionAnswer(s.qID, strPtr("details"), sels, 1, testNow))
		first := snapshotAnswers(s.resp)

		s.Require().NoError(s.resp.SetQuestionAnswer(s.qID, strPtr("details"), sels, 1, testNow))
		s.Equal(first, snapshotAnswers(s.resp))
		s.Len(s.resp.Answers(), 1)
	})

	s.Run("blank text keeps the previous text", func() {
		s.Require().NoError(s.resp.SetQuestionAnswer(s.qID, strPtr("   "), nil, 1, testNow))
		a, ok := s.resp.Answer(s.qID, 1)
		s.Require().True(ok)
		s.Equal("details", a.Text())
		s.Len(a.SelectedOptions(), 2)
	})

	s.Run("non-nil selection replaces the previous one", func() {
		s.Require().NoError(s.resp.SetQuestionAnswer(s.qID, nil, []OptionSelection{{OptionID: opt2, Text: "Food"}}, 1, testNow))
		a, _ := s.resp.Answer(s.qID, 1)
		s.Equal([]id.OptionID{opt2}, a.SelectedOptionIDs())
	})

	s.Run("repeat instances are keyed separately", func() {
		s.Require().NoError(s.resp.SetQuestionAnswer(s.qID, strPtr("second"), nil, 2, testNow))
		s.Len(s.resp.Answers(), 2)
		s.Equal([]int{1, 2}, s.resp.AnsweredRepeatIndices(s.qID))
		s.Equal(2, s.resp.MaxAnsweredRepeatIndex(s.qID))
	})

	s.Run("rejects invalid targets before mutating", func() {
		before := snapshotAnswers(s.resp)
		s.True(dErrors.HasCode(s.resp.SetQuestionAnswer(id.QuestionID{}, strPtr("x"), nil, 1, testNow), dErrors.CodeValidation))
		s.True(dErrors.HasCode(s.resp.SetQuestionAnswer(s.qID, strPtr("x"), nil, 0, testNow), dErrors.CodeValidation))
		dup := []OptionSelection{{OptionID: opt1}, {OptionID: opt1}}
		s.True(dErrors.HasCode(s.resp.SetQuestionAnswer(s.qID, nil, dup, 1, testNow), dErrors.CodeValidation))
		s.Equal(before, snapshotAnswers(s.resp))
	})
}

func (s *ResponseSuite) TestSelectedOptions() {
	optID := id.NewOptionID()

	s.Run("added option is returned with its text", func() {
		s.Require().NoError(s.resp.AddSelectedOptionWithText(s.qID, optID, "Rent", 1, testNow))
		sels := s.resp.SelectedOptionsForQuestion(s.qID, 1)
		s.Require().Len(sels, 1)
		s.Equal(optID, sels[0].OptionID())
		s.Equal("Rent", sels[0].OptionText())
		s.True(s.resp.HasAnswerForQuestion(s.qID))
	})

	s.Run("adding twice keeps one selection", func() {
		s.Require().NoError(s.resp.AddSelectedOptionWithText(s.qID, optID, "Rent", 1, testNow))
		s.Len(s.resp.SelectedOptionsForQuestion(s.qID, 1), 1)
	})

	s.Run("remove clears the selection", func() {
		s.Require().NoError(s.resp.RemoveSelectedOption(s.qID, optID, 1, testNow))
		s.Empty(s.resp.SelectedOptionsForQuestion(s.qID, 1))
		s.False(s.resp.HasAnswerForQuestion(s.qID))
	})

	s.Run("removing an unselected option is not found", func() {
		err := s.resp.RemoveSelectedOption(s.qID, optID, 1, testNow)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("update replaces the selection", func() {
		other := id.NewOptionID()
		s.Require().NoError(s.resp.UpdateSelectedOptions(s.qID, []OptionSelection{{OptionID: other, Text: "Food"}}, 1, testNow))
		s.Equal([]id.OptionID{other}, mustAnswer(s.resp, s.qID, 1).SelectedOptionIDs())
	})
}

func (s *ResponseSuite) TestClearQuestionAnswer() {
	s.Require().NoError(s.resp.SetQuestionAnswer(s.qID, strPtr("a"), nil, 1, testNow))
	s.Require().NoError(s.resp.ClearQuestionAnswer(s.qID, 1, testNow))
	_, ok := s.resp.Answer(s.qID, 1)
	s.False(ok)
	s.Empty(s.resp.Answers())
	s.True(dErrors.HasCode(s.resp.ClearQuestionAnswer(s.qID, 1, testNow), dErrors.CodeNotFound))
}

func (s *ResponseSuite) TestLifecycle() {
	later := testNow.Add(time.Hour)

	s.Run("submit is terminal and one-way", func() {
		r := mustResponse()
		s.Require().NoError(r.Submit(later))
		s.Equal(AttemptSubmitted, r.AttemptStatus())
		s.Equal(ResponseCompleted, r.Status())
		s.Equal(later, *r.SubmittedAt())
		s.Nil(r.CanceledAt())
		s.Nil(r.ExpiredAt())

		for _, op := range []func(time.Time) error{r.Submit, r.Cancel, r.Expire} {
			err := op(later)
			s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		}
		s.Equal(ResponseCompleted, r.Status())
	})

	s.Run("cancel and expire set their own outcome", func() {
		c := mustResponse()
		s.Require().NoError(c.Cancel(later))
		s.Equal(AttemptCanceled, c.AttemptStatus())
		s.Equal(ResponseCancelled, c.Status())

		e := mustResponse()
		s.Require().NoError(e.Expire(later))
		s.Equal(AttemptExpired, e.AttemptStatus())
		s.Equal(ResponseExpired, e.Status())
		s.Equal(later, e.LastActivityAt())
	})

	s.Run("terminal responses cannot be modified", func() {
		r := mustResponse()
		s.Require().NoError(r.Cancel(later))
		err := r.SetQuestionAnswer(s.qID, strPtr("late"), nil, 1, later)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Empty(r.Answers())
	})

	s.Run("review toggles only between answering and reviewing", func() {
		r := mustResponse()
		s.Error(r.ResumeAnswering(later))
		s.Require().NoError(r.StartReviewing(later))
		s.Equal(ResponseReviewing, r.Status())
		s.True(r.CanBeModified())
		s.Error(r.StartReviewing(later))
		s.Require().NoError(r.ResumeAnswering(later))
		s.Equal(ResponseAnswering, r.Status())

		s.Require().NoError(r.StartReviewing(later))
		s.Require().NoError(r.Submit(later))
		s.Error(r.ResumeAnswering(later))
	})
}

func mustAnswer(r *Response, q id.QuestionID, repeat int) *QuestionAnswer {
	a, ok := r.Answer(q, repeat)
	if !ok {
		panic("answer missing")
	}
	return a
}

type answerView struct {
	ID       id.AnswerID
	Repeat   int
	Text     string
	Selected []QuestionAnswerOption
}

func snapshotAnswers(r *Response) []answerView {
	var out []answerView
	for _, a := range r.Answers() {
		out = append(out, answerView{ID: a.ID(), Repeat: a.RepeatIndex(), Text: a.Text(), Selected: a.SelectedOptions()})
	}
	return out
}
