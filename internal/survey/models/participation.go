package models

import (
	"maps"
	"slices"
	"strings"
	"time"

	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
)

// ParticipationPolicy governs how often a participant may attempt a survey.
//
// Invariants:
//   - MaxAttempts >= 0 (0 means unlimited)
//   - CooldownSeconds >= 0
//   - MaxAttempts > 1 requires AllowMultipleSubmissions
type ParticipationPolicy struct {
	MaxAttempts              int  `json:"max_attempts" bson:"max_attempts"`
	AllowMultipleSubmissions bool `json:"allow_multiple_submissions" bson:"allow_multiple_submissions"`
	CooldownSeconds          int  `json:"cooldown_seconds" bson:"cooldown_seconds"`
	AllowBackNavigation      bool `json:"allow_back_navigation" bson:"allow_back_navigation"`
}

// DefaultParticipationPolicy allows a single attempt with back navigation.
func DefaultParticipationPolicy() ParticipationPolicy {
	return ParticipationPolicy{
		MaxAttempts:              1,
		AllowMultipleSubmissions: false,
		CooldownSeconds:          0,
		AllowBackNavigation:      true,
	}
}

func (p ParticipationPolicy) Validate() error {
	if p.MaxAttempts < 0 {
		return dErrors.New(dErrors.CodeValidation, "max attempts cannot be negative")
	}
	if p.CooldownSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "cooldown seconds cannot be negative")
	}
	if p.MaxAttempts > 1 && !p.AllowMultipleSubmissions {
		return dErrors.New(dErrors.CodeValidation, "max attempts above 1 requires multiple submissions to be allowed")
	}
	return nil
}

func (p ParticipationPolicy) Cooldown() time.Duration {
	return time.Duration(p.CooldownSeconds) * time.Second
}

// IsAttemptAllowed reports whether attempt number attempt may start at now.
// lastAttemptAt is the last activity of the participant's previous attempt,
// or nil on a first attempt.
func (p ParticipationPolicy) IsAttemptAllowed(attempt int, lastAttemptAt *time.Time, now time.Time) bool {
	if attempt < 1 {
		return false
	}
	if attempt > 1 && !p.AllowMultipleSubmissions {
		return false
	}
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return false
	}
	if p.CooldownSeconds > 0 && lastAttemptAt != nil && now.Before(lastAttemptAt.Add(p.Cooldown())) {
		return false
	}
	return true
}

// DemographySnapshot is a copy of participant attributes captured when an
// attempt starts. Later membership changes do not alter it.
type DemographySnapshot struct {
	Attributes map[string]string `json:"attributes,omitempty" bson:"attributes,omitempty"`
	CapturedAt time.Time         `json:"captured_at" bson:"captured_at"`
}

// NewDemographySnapshot copies attrs, trimming keys and dropping blank ones.
func NewDemographySnapshot(attrs map[string]string, capturedAt time.Time) *DemographySnapshot {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(v)
	}
	return &DemographySnapshot{Attributes: out, CapturedAt: capturedAt}
}

func (d *DemographySnapshot) Attribute(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d.Attributes[key]
	return v, ok
}

func (d *DemographySnapshot) clone() *DemographySnapshot {
	if d == nil {
		return nil
	}
	return &DemographySnapshot{Attributes: maps.Clone(d.Attributes), CapturedAt: d.CapturedAt}
}

// Participant identifies who answers a response. The reference is opaque and
// compared by equality only.
type Participant struct {
	Ref        id.ParticipantRef
	Demography *DemographySnapshot
}

// AudienceFilter restricts which participants may start a response. Every
// attribute listed must be present in the participant's demography with one
// of the allowed values. An empty filter admits everyone.
type AudienceFilter struct {
	Criteria map[string][]string `json:"criteria" bson:"criteria"`
}

// NewAudienceFilter validates and copies criteria.
func NewAudienceFilter(criteria map[string][]string) (*AudienceFilter, error) {
	out := make(map[string][]string, len(criteria))
	for k, values := range criteria {
		key := strings.TrimSpace(k)
		if key == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "audience attribute name cannot be empty")
		}
		allowed := make([]string, 0, len(values))
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" && !slices.Contains(allowed, v) {
				allowed = append(allowed, v)
			}
		}
		if len(allowed) == 0 {
			return nil, dErrors.Newf(dErrors.CodeValidation, "audience attribute %q has no allowed values", key)
		}
		out[key] = allowed
	}
	return &AudienceFilter{Criteria: out}, nil
}

func (f *AudienceFilter) IsEmpty() bool {
	return f == nil || len(f.Criteria) == 0
}

// Matches reports whether the demography snapshot satisfies every criterion.
func (f *AudienceFilter) Matches(demography *DemographySnapshot) bool {
	if f.IsEmpty() {
		return true
	}
	for key, allowed := range f.Criteria {
		v, ok := demography.Attribute(key)
		if !ok || !slices.Contains(allowed, v) {
			return false
		}
	}
	return true
}

func (f *AudienceFilter) clone() *AudienceFilter {
	if f == nil {
		return nil
	}
	out := make(map[string][]string, len(f.Criteria))
	for k, v := range f.Criteria {
		out[k] = slices.Clone(v)
	}
	return &AudienceFilter{Criteria: out}
}
