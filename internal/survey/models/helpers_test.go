package models

import (
	"time"

	id "welfare/pkg/domain"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func mustDraft(title string) *Survey {
	s, err := NewSurvey(id.NewSurveyID(), title, "", DefaultParticipationPolicy(), testNow)
	if err != nil {
		panic(err)
	}
	return s
}

func mustAddQuestion(s *Survey, spec QuestionSpec) *Question {
	q, err := s.AddQuestion(spec, testNow)
	if err != nil {
		panic(err)
	}
	return q
}

func mustAddOptions(q *Question, texts ...string) []QuestionOption {
	out := make([]QuestionOption, 0, len(texts))
	for i, text := range texts {
		opt, err := q.AddOption(text, i)
		if err != nil {
			panic(err)
		}
		out = append(out, opt)
	}
	return out
}

func mustFixed(n int) RepeatPolicy {
	p, err := FixedRepeat(n)
	if err != nil {
		panic(err)
	}
	return p
}

// standalone builds detached questions for response-level tests.
func standalone(spec QuestionSpec) *Question {
	q, err := NewQuestion(id.NewQuestionID(), spec)
	if err != nil {
		panic(err)
	}
	return q
}

func textual(text string, order int) QuestionSpec {
	return QuestionSpec{Kind: QuestionTextual, Text: text, Order: order}
}

func mustResponse() *Response {
	r, err := NewResponse(id.NewResponseID(), id.NewSurveyID(), "member-1", nil, 1, testNow)
	if err != nil {
		panic(err)
	}
	return r
}
