package models

import (
	"slices"
	"strings"
	"time"

	id "welfare/pkg/domain"
)

// OptionSelection pairs a selected option with the option text resolved by
// the survey at selection time.
type OptionSelection struct {
	OptionID id.OptionID
	Text     string
}

// QuestionAnswerOption records one selected option. Text is a snapshot, so
// later edits to the option do not change recorded answers.
type QuestionAnswerOption struct {
	id         id.AnswerOptionID
	optionID   id.OptionID
	optionText string
}

func (o QuestionAnswerOption) ID() id.AnswerOptionID { return o.id }
func (o QuestionAnswerOption) OptionID() id.OptionID { return o.optionID }
func (o QuestionAnswerOption) OptionText() string    { return o.optionText }

// QuestionAnswer is the answer to one repeat instance of a question.
// (questionID, repeatIndex) is unique within a response.
type QuestionAnswer struct {
	id          id.AnswerID
	questionID  id.QuestionID
	repeatIndex int
	text        string
	selected    []QuestionAnswerOption
	updatedAt   time.Time
}

func newQuestionAnswer(questionID id.QuestionID, repeatIndex int, now time.Time) *QuestionAnswer {
	return &QuestionAnswer{
		id:          id.NewAnswerID(),
		questionID:  questionID,
		repeatIndex: repeatIndex,
		updatedAt:   now,
	}
}

func (a *QuestionAnswer) ID() id.AnswerID           { return a.id }
func (a *QuestionAnswer) QuestionID() id.QuestionID { return a.questionID }
func (a *QuestionAnswer) RepeatIndex() int          { return a.repeatIndex }
func (a *QuestionAnswer) Text() string              { return a.text }
func (a *QuestionAnswer) UpdatedAt() time.Time      { return a.updatedAt }

// SelectedOptions returns a copy of the selections in selection order.
func (a *QuestionAnswer) SelectedOptions() []QuestionAnswerOption {
	return slices.Clone(a.selected)
}

func (a *QuestionAnswer) SelectedOptionIDs() []id.OptionID {
	out := make([]id.OptionID, len(a.selected))
	for i, s := range a.selected {
		out[i] = s.optionID
	}
	return out
}

// HasAnswer is true when the answer carries non-blank text or a selection.
func (a *QuestionAnswer) HasAnswer() bool {
	return strings.TrimSpace(a.text) != "" || len(a.selected) > 0
}

func (a *QuestionAnswer) HasSelected(optionID id.OptionID) bool {
	return a.selectedIndex(optionID) >= 0
}

func (a *QuestionAnswer) selectedIndex(optionID id.OptionID) int {
	return slices.IndexFunc(a.selected, func(s QuestionAnswerOption) bool { return s.optionID == optionID })
}

func (a *QuestionAnswer) setText(text string, now time.Time) {
	a.text = text
	a.updatedAt = now
}

// addSelection selects optionID, refreshing the text snapshot if it is
// already selected.
func (a *QuestionAnswer) addSelection(sel OptionSelection, now time.Time) {
	if i := a.selectedIndex(sel.OptionID); i >= 0 {
		a.selected[i].optionText = sel.Text
	} else {
		a.selected = append(a.selected, QuestionAnswerOption{
			id:         id.NewAnswerOptionID(),
			optionID:   sel.OptionID,
			optionText: sel.Text,
		})
	}
	a.updatedAt = now
}

func (a *QuestionAnswer) removeSelection(optionID id.OptionID, now time.Time) bool {
	i := a.selectedIndex(optionID)
	if i < 0 {
		return false
	}
	a.selected = slices.Delete(a.selected, i, i+1)
	a.updatedAt = now
	return true
}

// replaceSelections swaps the selection set. Options selected before and
// after keep their record id so replaying the same selection is a no-op.
func (a *QuestionAnswer) replaceSelections(sels []OptionSelection, now time.Time) {
	next := make([]QuestionAnswerOption, 0, len(sels))
	for _, sel := range sels {
		rec := QuestionAnswerOption{id: id.NewAnswerOptionID(), optionID: sel.OptionID, optionText: sel.Text}
		if i := a.selectedIndex(sel.OptionID); i >= 0 {
			rec.id = a.selected[i].id
		}
		next = append(next, rec)
	}
	a.selected = next
	a.updatedAt = now
}
