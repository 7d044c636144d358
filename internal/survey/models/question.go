package models

import (
	"slices"
	"strings"

	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
)

// QuestionKind determines how a question is answered and how many options it carries.
type QuestionKind string

const (
	QuestionTextual         QuestionKind = "textual"
	QuestionFixedFourChoice QuestionKind = "fixed_four_choice"
	QuestionSingleChoice    QuestionKind = "single_choice"
	QuestionMultiChoice     QuestionKind = "multi_choice"
)

// Option-count bounds per kind.
const (
	FixedFourOptionCount = 4
	MinChoiceOptions     = 2
	MaxChoiceOptions     = 25
)

func (k QuestionKind) IsValid() bool {
	switch k {
	case QuestionTextual, QuestionFixedFourChoice, QuestionSingleChoice, QuestionMultiChoice:
		return true
	}
	return false
}

func (k QuestionKind) String() string {
	return string(k)
}

// IsChoice reports whether answers are made by selecting options.
func (k QuestionKind) IsChoice() bool {
	return k.IsValid() && k != QuestionTextual
}

// QuestionSpec carries the attributes of a question to be added to a survey.
type QuestionSpec struct {
	Kind         QuestionKind
	Text         string
	Order        int
	Required     bool
	RepeatPolicy RepeatPolicy
}

func (s QuestionSpec) Validate() error {
	if !s.Kind.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown question kind %q", s.Kind)
	}
	if strings.TrimSpace(s.Text) == "" {
		return dErrors.New(dErrors.CodeValidation, "question text cannot be empty")
	}
	if s.Order < 0 {
		return dErrors.New(dErrors.CodeValidation, "question order cannot be negative")
	}
	return nil
}

// QuestionOption is one selectable choice of a question.
type QuestionOption struct {
	id     id.OptionID
	text   string
	order  int
	active bool
}

func (o QuestionOption) ID() id.OptionID { return o.id }
func (o QuestionOption) Text() string    { return o.text }
func (o QuestionOption) Order() int      { return o.order }
func (o QuestionOption) IsActive() bool  { return o.active }

// Question is an entity owned by a Survey.
//
// Invariants:
//   - Kind is fixed at creation
//   - Textual questions have no options
//   - FixedFourChoice questions never exceed 4 options
//   - SingleChoice and MultiChoice questions never exceed 25 options
//   - Mutations succeed only while the owning survey allows structure edits
type Question struct {
	id           id.QuestionID
	kind         QuestionKind
	text         string
	order        int
	required     bool
	repeatPolicy RepeatPolicy
	options      []QuestionOption

	// seq is the insertion position within the survey; it breaks order ties.
	seq int
	// editable is supplied by the owning survey.
	editable func() error
}

// NewQuestion builds a detached question. Surveys create questions through
// AddQuestion, which also attaches the structure-edit guard.
func NewQuestion(questionID id.QuestionID, spec QuestionSpec) (*Question, error) {
	if questionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "question id cannot be empty")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Question{
		id:           questionID,
		kind:         spec.Kind,
		text:         spec.Text,
		order:        spec.Order,
		required:     spec.Required,
		repeatPolicy: spec.RepeatPolicy,
	}, nil
}

func (q *Question) ID() id.QuestionID          { return q.id }
func (q *Question) Kind() QuestionKind         { return q.kind }
func (q *Question) Text() string               { return q.text }
func (q *Question) Order() int                 { return q.order }
func (q *Question) IsRequired() bool           { return q.required }
func (q *Question) RepeatPolicy() RepeatPolicy { return q.repeatPolicy }

// Options returns a copy of the options in insertion order.
func (q *Question) Options() []QuestionOption {
	return slices.Clone(q.options)
}

func (q *Question) Option(optionID id.OptionID) (QuestionOption, bool) {
	i := q.optionIndex(optionID)
	if i < 0 {
		return QuestionOption{}, false
	}
	return q.options[i], true
}

func (q *Question) OptionText(optionID id.OptionID) (string, error) {
	opt, ok := q.Option(optionID)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeNotFound, "option %s not found on question %s", optionID, q.id)
	}
	return opt.text, nil
}

func (q *Question) optionIndex(optionID id.OptionID) int {
	return slices.IndexFunc(q.options, func(o QuestionOption) bool { return o.id == optionID })
}

func (q *Question) ensureEditable() error {
	if q.editable == nil {
		return nil
	}
	return q.editable()
}

// AddOption appends a new option and returns it.
func (q *Question) AddOption(text string, order int) (QuestionOption, error) {
	if err := q.ensureEditable(); err != nil {
		return QuestionOption{}, err
	}
	if q.kind == QuestionTextual {
		return QuestionOption{}, dErrors.New(dErrors.CodeInvariantViolation, "cannot add options to textual questions")
	}
	if strings.TrimSpace(text) == "" {
		return QuestionOption{}, dErrors.New(dErrors.CodeValidation, "option text cannot be empty")
	}
	if order < 0 {
		return QuestionOption{}, dErrors.New(dErrors.CodeValidation, "option order cannot be negative")
	}
	if q.kind == QuestionFixedFourChoice && len(q.options) >= FixedFourOptionCount {
		return QuestionOption{}, dErrors.New(dErrors.CodeInvariantViolation, "fixed four-choice questions cannot have more than 4 options")
	}
	if len(q.options) >= MaxChoiceOptions {
		return QuestionOption{}, dErrors.Newf(dErrors.CodeInvariantViolation, "choice questions cannot have more than %d options", MaxChoiceOptions)
	}
	opt := QuestionOption{id: id.NewOptionID(), text: text, order: order, active: true}
	q.options = append(q.options, opt)
	return opt, nil
}

func (q *Question) UpdateOptionText(optionID id.OptionID, text string) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return dErrors.New(dErrors.CodeValidation, "option text cannot be empty")
	}
	i := q.optionIndex(optionID)
	if i < 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "option %s not found on question %s", optionID, q.id)
	}
	q.options[i].text = text
	return nil
}

func (q *Question) ActivateOption(optionID id.OptionID) error {
	return q.setOptionActive(optionID, true)
}

func (q *Question) DeactivateOption(optionID id.OptionID) error {
	return q.setOptionActive(optionID, false)
}

func (q *Question) setOptionActive(optionID id.OptionID, active bool) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	i := q.optionIndex(optionID)
	if i < 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "option %s not found on question %s", optionID, q.id)
	}
	q.options[i].active = active
	return nil
}

func (q *Question) UpdateText(text string) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return dErrors.New(dErrors.CodeValidation, "question text cannot be empty")
	}
	q.text = text
	return nil
}

func (q *Question) UpdateOrder(order int) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	if order < 0 {
		return dErrors.New(dErrors.CodeValidation, "question order cannot be negative")
	}
	q.order = order
	return nil
}

func (q *Question) SetRequired(required bool) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	q.required = required
	return nil
}

func (q *Question) SetRepeatPolicy(policy RepeatPolicy) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	q.repeatPolicy = policy
	return nil
}

// HasValidOptions reports whether the option count satisfies the kind's bounds.
func (q *Question) HasValidOptions() bool {
	n := len(q.options)
	switch q.kind {
	case QuestionTextual:
		return n == 0
	case QuestionFixedFourChoice:
		return n == FixedFourOptionCount
	default:
		return n >= MinChoiceOptions && n <= MaxChoiceOptions
	}
}

// ValidateSelectedOptions checks a selection against this question's options.
func (q *Question) ValidateSelectedOptions(optionIDs []id.OptionID) error {
	if q.kind == QuestionTextual {
		if len(optionIDs) > 0 {
			return dErrors.New(dErrors.CodeValidation, "textual questions do not accept selected options")
		}
		return nil
	}
	seen := make(map[id.OptionID]struct{}, len(optionIDs))
	for _, optionID := range optionIDs {
		if _, dup := seen[optionID]; dup {
			return dErrors.Newf(dErrors.CodeValidation, "option %s selected more than once", optionID)
		}
		seen[optionID] = struct{}{}
		opt, ok := q.Option(optionID)
		if !ok {
			return dErrors.Newf(dErrors.CodeValidation, "option %s does not belong to question %s", optionID, q.id)
		}
		if !opt.active {
			return dErrors.Newf(dErrors.CodeValidation, "option %s is not active", optionID)
		}
	}
	if q.kind == QuestionSingleChoice && len(optionIDs) > 1 {
		return dErrors.New(dErrors.CodeValidation, "single choice questions accept at most one option")
	}
	if q.required && len(optionIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "required question needs at least one selected option")
	}
	return nil
}

func (q *Question) ValidateRepeatIndex(i int) bool {
	return q.repeatPolicy.IsValidRepeatIndex(i)
}

func (q *Question) CanAddMoreRepeats(answeredCount int) bool {
	return q.repeatPolicy.CanAddMoreRepeats(answeredCount)
}

func (q *Question) IsRepeatable() bool {
	return q.repeatPolicy.IsRepeatable()
}
