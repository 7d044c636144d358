package models

import (
	id "welfare/pkg/domain"
)

// Cursor is a response's navigation position: either unset or at a
// (question, repeat index) pair.
type Cursor struct {
	set         bool
	questionID  id.QuestionID
	repeatIndex int
}

func UnsetCursor() Cursor {
	return Cursor{}
}

// CursorAt positions the cursor. Repeat indices below 1 are stored as 1.
func CursorAt(questionID id.QuestionID, repeatIndex int) Cursor {
	if repeatIndex < 1 {
		repeatIndex = 1
	}
	return Cursor{set: true, questionID: questionID, repeatIndex: repeatIndex}
}

func (c Cursor) IsSet() bool {
	return c.set
}

// QuestionID returns the current question; the zero id when unset.
func (c Cursor) QuestionID() id.QuestionID {
	return c.questionID
}

// RepeatIndex returns the current repeat index, 1 when unset.
func (c Cursor) RepeatIndex() int {
	if !c.set || c.repeatIndex < 1 {
		return 1
	}
	return c.repeatIndex
}
