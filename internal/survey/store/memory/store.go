// Package memory keeps survey aggregates in process memory for development
// and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
)

// InMemory stores snapshots, so callers never share aggregate state with
// the store or with each other.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.SurveyID]models.SurveyRecord
}

func New() *InMemory {
	return &InMemory{records: make(map[id.SurveyID]models.SurveyRecord)}
}

func (s *InMemory) Create(_ context.Context, survey *models.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[survey.ID()]; exists {
		return fmt.Errorf("survey %s: %w", survey.ID(), sentinel.ErrAlreadyExists)
	}
	rec := survey.Snapshot()
	rec.Version = 1
	s.records[survey.ID()] = rec
	survey.MarkPersisted(1)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, surveyID id.SurveyID) (*models.Survey, error) {
	s.mu.RLock()
	rec, ok := s.records[surveyID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("survey %s: %w", surveyID, sentinel.ErrNotFound)
	}
	return models.RestoreSurvey(rec)
}

func (s *InMemory) Save(_ context.Context, survey *models.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[survey.ID()]
	if !ok {
		return fmt.Errorf("survey %s: %w", survey.ID(), sentinel.ErrNotFound)
	}
	if stored.Version != survey.Version() {
		return fmt.Errorf("survey %s at version %d, stored %d: %w",
			survey.ID(), survey.Version(), stored.Version, sentinel.ErrConflict)
	}
	next := stored.Version + 1
	rec := survey.Snapshot()
	rec.Version = next
	s.records[survey.ID()] = rec
	survey.MarkPersisted(next)
	return nil
}

// ListIDsByState returns matching ids ordered by their string form.
func (s *InMemory) ListIDsByState(_ context.Context, states ...models.SurveyState) ([]id.SurveyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []id.SurveyID
	for surveyID, rec := range s.records {
		if slices.Contains(states, rec.State) {
			out = append(out, surveyID)
		}
	}
	slices.SortFunc(out, func(a, b id.SurveyID) int {
		switch as, bs := a.String(), b.String(); {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	})
	return out, nil
}
