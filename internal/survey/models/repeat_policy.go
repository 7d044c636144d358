package models

import (
	dErrors "welfare/pkg/domain-errors"
)

// RepeatKind selects how many times a question may be answered within one response.
type RepeatKind string

const (
	RepeatNone      RepeatKind = "none"
	RepeatFixed     RepeatKind = "fixed"
	RepeatUnbounded RepeatKind = "unbounded"
)

// IsValid checks if the repeat kind is one of the supported values.
func (k RepeatKind) IsValid() bool {
	switch k {
	case RepeatNone, RepeatFixed, RepeatUnbounded:
		return true
	}
	return false
}

func (k RepeatKind) String() string {
	return string(k)
}

// RepeatPolicy is a value object describing the repeat instances a question
// accepts. The zero value behaves as RepeatNone.
//
// Invariants:
//   - MaxRepeats >= 1 when Kind is RepeatFixed
//   - MaxRepeats is ignored for the other kinds
type RepeatPolicy struct {
	kind       RepeatKind
	maxRepeats int
}

// NoRepeat returns the policy for questions answered exactly once.
func NoRepeat() RepeatPolicy {
	return RepeatPolicy{kind: RepeatNone}
}

// FixedRepeat returns a policy allowing repeat indices 1..max.
func FixedRepeat(maxRepeats int) (RepeatPolicy, error) {
	if maxRepeats < 1 {
		return RepeatPolicy{}, dErrors.New(dErrors.CodeValidation, "fixed repeat policy requires max repeats of at least 1")
	}
	return RepeatPolicy{kind: RepeatFixed, maxRepeats: maxRepeats}, nil
}

// UnboundedRepeat returns a policy accepting any repeat index >= 1.
func UnboundedRepeat() RepeatPolicy {
	return RepeatPolicy{kind: RepeatUnbounded}
}

// NewRepeatPolicy builds a policy from its persisted parts.
func NewRepeatPolicy(kind RepeatKind, maxRepeats int) (RepeatPolicy, error) {
	switch kind {
	case "", RepeatNone:
		return NoRepeat(), nil
	case RepeatFixed:
		return FixedRepeat(maxRepeats)
	case RepeatUnbounded:
		return UnboundedRepeat(), nil
	}
	return RepeatPolicy{}, dErrors.Newf(dErrors.CodeValidation, "unknown repeat kind %q", kind)
}

func (p RepeatPolicy) Kind() RepeatKind {
	if p.kind == "" {
		return RepeatNone
	}
	return p.kind
}

// MaxRepeats returns the configured maximum; zero unless the kind is RepeatFixed.
func (p RepeatPolicy) MaxRepeats() int {
	if p.Kind() != RepeatFixed {
		return 0
	}
	return p.maxRepeats
}

func (p RepeatPolicy) IsRepeatable() bool {
	return p.Kind() != RepeatNone
}

// IsValidRepeatIndex reports whether i addresses an allowed repeat instance.
func (p RepeatPolicy) IsValidRepeatIndex(i int) bool {
	if i < 1 {
		return false
	}
	switch p.Kind() {
	case RepeatFixed:
		return i <= p.maxRepeats
	case RepeatUnbounded:
		return true
	default:
		return i == 1
	}
}

// CanAddMoreRepeats reports whether another repeat instance may be answered
// given how many are answered already.
func (p RepeatPolicy) CanAddMoreRepeats(answeredCount int) bool {
	switch p.Kind() {
	case RepeatFixed:
		return answeredCount < p.maxRepeats
	case RepeatUnbounded:
		return true
	default:
		return answeredCount < 1
	}
}

// MaxRepeatIndex returns the highest valid repeat index. ok is false for
// unbounded policies.
func (p RepeatPolicy) MaxRepeatIndex() (int, bool) {
	switch p.Kind() {
	case RepeatFixed:
		return p.maxRepeats, true
	case RepeatUnbounded:
		return 0, false
	default:
		return 1, true
	}
}
