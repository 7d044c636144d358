package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
)

type NavigationSuite struct {
	suite.Suite
	resp *Response
}

func TestNavigationSuite(t *testing.T) {
	suite.Run(t, new(NavigationSuite))
}

func (s *NavigationSuite) SetupTest() {
	s.resp = mustResponse()
}

func (s *NavigationSuite) answer(q *Question, repeat int) {
	s.Require().NoError(s.resp.SetQuestionAnswer(q.ID(), strPtr("answer"), nil, repeat, testNow))
}

func (s *NavigationSuite) assertAt(q *Question, repeat int) {
	s.T().Helper()
	s.True(s.resp.Cursor().IsSet())
	s.Equal(q.ID(), s.resp.CurrentQuestionID())
	s.Equal(repeat, s.resp.CurrentRepeatIndex())
}

func (s *NavigationSuite) TestDetermineNextRepeatIndex() {
	s.Run("non-repeatable questions always use 1", func() {
		q := standalone(textual("Name", 0))
		s.answer(q, 1)
		s.Equal(1, s.resp.DetermineNextRepeatIndex(q))
	})

	s.Run("fixed policy returns first gap then the maximum", func() {
		q := standalone(QuestionSpec{Kind: QuestionTextual, Text: "Child", RepeatPolicy: mustFixed(3)})
		s.Equal(1, s.resp.DetermineNextRepeatIndex(q))
		s.answer(q, 1)
		s.Equal(2, s.resp.DetermineNextRepeatIndex(q))
		s.answer(q, 3)
		s.Equal(2, s.resp.DetermineNextRepeatIndex(q))
		s.answer(q, 2)
		s.Equal(3, s.resp.DetermineNextRepeatIndex(q))
	})

	s.Run("unbounded policy returns first gap or one past the max", func() {
		q := standalone(QuestionSpec{Kind: QuestionTextual, Text: "Vehicle", RepeatPolicy: UnboundedRepeat()})
		s.Equal(1, s.resp.DetermineNextRepeatIndex(q))
		s.answer(q, 1)
		s.answer(q, 3)
		s.Equal(2, s.resp.DetermineNextRepeatIndex(q))
		s.answer(q, 2)
		s.Equal(4, s.resp.DetermineNextRepeatIndex(q))
	})

	s.Run("answers without content do not count", func() {
		q := standalone(QuestionSpec{Kind: QuestionTextual, Text: "Pet", RepeatPolicy: UnboundedRepeat()})
		s.Require().NoError(s.resp.SetQuestionAnswer(q.ID(), strPtr(" "), nil, 1, testNow))
		s.Equal(1, s.resp.DetermineNextRepeatIndex(q))
	})
}

// Fixed(3) question followed by a plain question.
func (s *NavigationSuite) TestFixedRepeatAdvance() {
	repeating := standalone(QuestionSpec{Kind: QuestionTextual, Text: "Child", Order: 0, RepeatPolicy: mustFixed(3)})
	after := standalone(textual("Income", 1))
	ordered := []*Question{repeating, after}

	s.Require().NoError(s.resp.NavigateToQuestion(ordered, id.QuestionID{}, 0, true))
	s.assertAt(repeating, 1)

	for repeat := 1; repeat <= 2; repeat++ {
		s.answer(repeating, repeat)
		moved, err := s.resp.NavigateToNext(ordered)
		s.Require().NoError(err)
		s.True(moved)
		s.assertAt(repeating, repeat+1)
	}

	s.answer(repeating, 3)
	s.False(repeating.CanAddMoreRepeats(s.resp.AnsweredRepeatCount(repeating.ID())))
	moved, err := s.resp.NavigateToNext(ordered)
	s.Require().NoError(err)
	s.True(moved)
	s.assertAt(after, 1)
}

func (s *NavigationSuite) TestUnansweredRepeatableMovesOn() {
	repeating := standalone(QuestionSpec{Kind: QuestionTextual, Text: "Vehicle", RepeatPolicy: UnboundedRepeat()})
	after := standalone(textual("Income", 1))
	ordered := []*Question{repeating, after}

	s.Require().NoError(s.resp.NavigateToQuestion(ordered, repeating.ID(), 0, true))
	moved, err := s.resp.NavigateToNext(ordered)
	s.Require().NoError(err)
	s.True(moved)
	s.assertAt(after, 1)
}

// Out-of-order gaps below the cursor are skipped, not revisited.
func (s *NavigationSuite) TestOutOfOrderGapIsNotRevisited() {
	repeating := standalone(QuestionSpec{Kind: QuestionTextual, Text: "Vehicle", RepeatPolicy: UnboundedRepeat()})
	after := standalone(textual("Income", 1))
	ordered := []*Question{repeating, after}

	s.answer(repeating, 1)
	s.answer(repeating, 3)
	s.Require().NoError(s.resp.NavigateToQuestion(ordered, repeating.ID(), 3, true))

	moved, err := s.resp.NavigateToNext(ordered)
	s.Require().NoError(err)
	s.True(moved)
	s.assertAt(after, 1)
}

func (s *NavigationSuite) TestPrevious() {
	first := standalone(textual("Name", 0))
	repeating := standalone(QuestionSpec{Kind: QuestionTextual, Text: "Child", Order: 1, RepeatPolicy: mustFixed(3)})
	ordered := []*Question{first, repeating}

	s.Run("unset cursor jumps to the last question's highest answered repeat", func() {
		s.answer(repeating, 1)
		s.answer(repeating, 2)
		moved, err := s.resp.NavigateToPrevious(ordered)
		s.Require().NoError(err)
		s.True(moved)
		s.assertAt(repeating, 2)
	})

	s.Run("steps down through repeats before leaving the question", func() {
		moved, err := s.resp.NavigateToPrevious(ordered)
		s.Require().NoError(err)
		s.True(moved)
		s.assertAt(repeating, 1)

		moved, err = s.resp.NavigateToPrevious(ordered)
		s.Require().NoError(err)
		s.True(moved)
		s.assertAt(first, 1)
	})

	s.Run("stays put at the first question", func() {
		moved, err := s.resp.NavigateToPrevious(ordered)
		s.Require().NoError(err)
		s.False(moved)
		s.assertAt(first, 1)
	})
}

func (s *NavigationSuite) TestRemovedQuestionFallsBack() {
	gone := standalone(textual("Removed", 0))
	a := standalone(textual("A", 1))
	b := standalone(textual("B", 2))
	s.Require().NoError(s.resp.NavigateToQuestion([]*Question{gone, a, b}, gone.ID(), 0, true))

	moved, err := s.resp.NavigateToNext([]*Question{a, b})
	s.Require().NoError(err)
	s.True(moved)
	s.assertAt(a, 1)

	s.Require().NoError(s.resp.NavigateToQuestion([]*Question{gone, a, b}, gone.ID(), 0, true))
	moved, err = s.resp.NavigateToPrevious([]*Question{a, b})
	s.Require().NoError(err)
	s.True(moved)
	s.assertAt(b, 1)
}

func (s *NavigationSuite) TestNavigateToQuestion() {
	a := standalone(textual("A", 0))
	b := standalone(QuestionSpec{Kind: QuestionTextual, Text: "B", Order: 1, RepeatPolicy: mustFixed(2)})
	ordered := []*Question{a, b}

	s.Run("zero id targets first or last", func() {
		s.Require().NoError(s.resp.NavigateToQuestion(ordered, id.QuestionID{}, 0, true))
		s.assertAt(a, 1)
		s.Require().NoError(s.resp.NavigateToQuestion(ordered, id.QuestionID{}, 0, false))
		s.assertAt(b, 1)
	})

	s.Run("unknown id falls back like a zero id", func() {
		s.Require().NoError(s.resp.NavigateToQuestion(ordered, id.NewQuestionID(), 0, false))
		s.assertAt(b, 1)
	})

	s.Run("explicit repeat index is honoured when valid", func() {
		s.Require().NoError(s.resp.NavigateToQuestion(ordered, b.ID(), 2, true))
		s.assertAt(b, 2)
	})

	s.Run("invalid repeat index is forced to 1", func() {
		s.Require().NoError(s.resp.NavigateToQuestion(ordered, b.ID(), 5, true))
		s.assertAt(b, 1)
		s.Require().NoError(s.resp.NavigateToQuestion(ordered, id.QuestionID{}, 3, true))
		s.assertAt(a, 1)
	})

	s.Run("omitted repeat index resolves the next unanswered repeat", func() {
		s.answer(b, 1)
		s.Require().NoError(s.resp.NavigateToQuestion(ordered, b.ID(), 0, true))
		s.assertAt(b, 2)
	})
}

func (s *NavigationSuite) TestPreconditions() {
	q := standalone(textual("A", 0))

	s.Run("empty question list is a validation error", func() {
		_, err := s.resp.NavigateToNext(nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.resp.NavigateToPrevious(nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.True(dErrors.HasCode(s.resp.NavigateToQuestion(nil, q.ID(), 1, true), dErrors.CodeValidation))
		s.True(dErrors.HasCode(s.resp.ResetNavigation(nil), dErrors.CodeValidation))
	})

	s.Run("terminal responses cannot navigate", func() {
		s.Require().NoError(s.resp.Submit(testNow))
		_, err := s.resp.NavigateToNext([]*Question{q})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.False(s.resp.Cursor().IsSet())
	})
}

func TestNavigation_NextTerminatesOverPlainQuestions(t *testing.T) {
	for n := 1; n <= 6; n++ {
		ordered := make([]*Question, n)
		for i := range ordered {
			ordered[i] = standalone(textual("Q", i))
		}
		resp := mustResponse()
		require.NoError(t, resp.NavigateToQuestion(ordered, id.QuestionID{}, 0, true))

		moves := 0
		for {
			moved, err := resp.NavigateToNext(ordered)
			require.NoError(t, err)
			if !moved {
				break
			}
			moves++
			require.LessOrEqual(t, moves, n, "navigation did not terminate")
		}
		assert.Equal(t, n-1, moves)
		assert.Equal(t, ordered[n-1].ID(), resp.CurrentQuestionID())

		moved, err := resp.NavigateToNext(ordered)
		require.NoError(t, err)
		assert.False(t, moved)
		assert.Equal(t, ordered[n-1].ID(), resp.CurrentQuestionID())
	}
}

func TestNavigation_NextThenPreviousReturnsToLastVisitedRepeat(t *testing.T) {
	plain := standalone(textual("Name", 0))
	repeating := standalone(QuestionSpec{Kind: QuestionTextual, Text: "Child", Order: 1, RepeatPolicy: UnboundedRepeat()})
	tail := standalone(textual("Notes", 2))
	ordered := []*Question{plain, repeating, tail}

	resp := mustResponse()
	require.NoError(t, resp.NavigateToQuestion(ordered, id.QuestionID{}, 0, true))

	// Walk forward answering as we go and check each step is undone by Previous.
	for step := 0; step < 6; step++ {
		q, ok := resp.CurrentQuestion(ordered)
		require.True(t, ok)
		require.NoError(t, resp.SetQuestionAnswer(q.ID(), strPtr("x"), nil, resp.CurrentRepeatIndex(), testNow))
		fromQ, fromRepeat := resp.CurrentQuestionID(), resp.CurrentRepeatIndex()

		moved, err := resp.NavigateToNext(ordered)
		require.NoError(t, err)
		if !moved {
			break
		}
		toQ, toRepeat := resp.CurrentQuestionID(), resp.CurrentRepeatIndex()

		back, err := resp.NavigateToPrevious(ordered)
		require.NoError(t, err)
		require.True(t, back)
		assert.Equal(t, fromQ, resp.CurrentQuestionID(), "step %d", step)
		assert.Equal(t, fromRepeat, resp.CurrentRepeatIndex(), "step %d", step)

		require.NoError(t, resp.NavigateToQuestion(ordered, toQ, toRepeat, true))
		if toQ == repeating.ID() && toRepeat == 3 {
			require.NoError(t, resp.NavigateToQuestion(ordered, tail.ID(), 0, true))
		}
	}
}

func TestCursor(t *testing.T) {
	c := UnsetCursor()
	assert.False(t, c.IsSet())
	assert.True(t, c.QuestionID().IsNil())
	assert.Equal(t, 1, c.RepeatIndex())

	qID := id.NewQuestionID()
	c = CursorAt(qID, 0)
	assert.True(t, c.IsSet())
	assert.Equal(t, qID, c.QuestionID())
	assert.Equal(t, 1, c.RepeatIndex())
}
