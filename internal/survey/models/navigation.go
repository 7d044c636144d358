package models

import (
	"slices"

	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
)

// Navigation operates over the survey's questions as ordered by
// Survey.OrderedQuestions. The list is supplied on every call so structure
// edits are picked up without invalidation. Apart from the two precondition
// errors, failures fall back to the first or last question rather than error.

func (r *Response) ensureNavigable(ordered []*Question) error {
	if len(ordered) == 0 {
		return dErrors.New(dErrors.CodeValidation, "survey has no questions to navigate")
	}
	return r.ensureModifiable()
}

func questionPosition(ordered []*Question, questionID id.QuestionID) int {
	if questionID.IsNil() {
		return -1
	}
	return slices.IndexFunc(ordered, func(q *Question) bool { return q.id == questionID })
}

// DetermineNextRepeatIndex returns the first unanswered repeat index of q.
// Bounded policies return the maximum when every index is answered;
// unbounded policies return one past the highest answered index.
func (r *Response) DetermineNextRepeatIndex(q *Question) int {
	if !q.IsRepeatable() {
		return 1
	}
	answered := make(map[int]struct{})
	for _, i := range r.AnsweredRepeatIndices(q.id) {
		answered[i] = struct{}{}
	}
	if maxIndex, bounded := q.repeatPolicy.MaxRepeatIndex(); bounded {
		for i := 1; i <= maxIndex; i++ {
			if _, ok := answered[i]; !ok {
				return i
			}
		}
		return maxIndex
	}
	if len(answered) == 0 {
		return 1
	}
	maxAnswered := r.MaxAnsweredRepeatIndex(q.id)
	for i := 1; i <= maxAnswered+1; i++ {
		if _, ok := answered[i]; !ok {
			return i
		}
	}
	return maxAnswered + 1
}

// NavigateToQuestion moves the cursor to questionID. A zero questionID, or one
// not in ordered, targets the first question when isFirst is set and the last
// otherwise. repeatIndex 0 selects the next unanswered repeat; an index the
// target question does not accept is replaced by 1.
func (r *Response) NavigateToQuestion(ordered []*Question, questionID id.QuestionID, repeatIndex int, isFirst bool) error {
	if err := r.ensureNavigable(ordered); err != nil {
		return err
	}

	var target *Question
	if pos := questionPosition(ordered, questionID); pos >= 0 {
		target = ordered[pos]
	} else if isFirst {
		target = ordered[0]
	} else {
		target = ordered[len(ordered)-1]
	}

	idx := repeatIndex
	if idx == 0 {
		idx = r.DetermineNextRepeatIndex(target)
	}
	if !target.ValidateRepeatIndex(idx) {
		idx = 1
	}
	r.cursor = CursorAt(target.id, idx)
	return nil
}

// NavigateToNext advances to the next repeat of the current question when one
// is available, otherwise to the next question. It reports whether the cursor
// moved.
func (r *Response) NavigateToNext(ordered []*Question) (bool, error) {
	if err := r.ensureNavigable(ordered); err != nil {
		return false, err
	}

	pos := questionPosition(ordered, r.cursor.QuestionID())
	if !r.cursor.IsSet() || pos < 0 {
		first := ordered[0]
		r.cursor = CursorAt(first.id, r.DetermineNextRepeatIndex(first))
		return true, nil
	}

	current := ordered[pos]
	if current.IsRepeatable() && current.CanAddMoreRepeats(r.AnsweredRepeatCount(current.id)) {
		// Strictly greater: an out-of-order gap below the cursor is not revisited.
		if next := r.DetermineNextRepeatIndex(current); next > r.cursor.RepeatIndex() {
			r.cursor = CursorAt(current.id, next)
			return true, nil
		}
	}

	if pos < len(ordered)-1 {
		following := ordered[pos+1]
		r.cursor = CursorAt(following.id, r.DetermineNextRepeatIndex(following))
		return true, nil
	}
	return false, nil
}

// NavigateToPrevious steps back one repeat of the current question, or to
// the highest answered repeat of the previous question. It reports whether
// the cursor moved.
func (r *Response) NavigateToPrevious(ordered []*Question) (bool, error) {
	if err := r.ensureNavigable(ordered); err != nil {
		return false, err
	}

	pos := questionPosition(ordered, r.cursor.QuestionID())
	if !r.cursor.IsSet() || pos < 0 {
		last := ordered[len(ordered)-1]
		r.cursor = CursorAt(last.id, r.MaxAnsweredRepeatIndex(last.id))
		return true, nil
	}

	current := ordered[pos]
	cur := r.cursor.RepeatIndex()
	if current.IsRepeatable() && cur > 1 && current.ValidateRepeatIndex(cur-1) {
		r.cursor = CursorAt(current.id, cur-1)
		return true, nil
	}

	if pos > 0 {
		previous := ordered[pos-1]
		r.cursor = CursorAt(previous.id, r.MaxAnsweredRepeatIndex(previous.id))
		return true, nil
	}
	return false, nil
}

// CurrentQuestion resolves the cursor against ordered.
func (r *Response) CurrentQuestion(ordered []*Question) (*Question, bool) {
	pos := questionPosition(ordered, r.cursor.QuestionID())
	if !r.cursor.IsSet() || pos < 0 {
		return nil, false
	}
	return ordered[pos], true
}

// ResetNavigation moves the cursor to the first question at its next
// unanswered repeat.
func (r *Response) ResetNavigation(ordered []*Question) error {
	if err := r.ensureNavigable(ordered); err != nil {
		return err
	}
	first := ordered[0]
	r.cursor = CursorAt(first.id, r.DetermineNextRepeatIndex(first))
	return nil
}
