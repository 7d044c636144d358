package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newSurvey(title string) *models.Survey {
	survey, err := models.NewSurvey(id.NewSurveyID(), title, "", models.DefaultParticipationPolicy(), now)
	s.Require().NoError(err)
	return survey
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	survey := s.newSurvey("Intake")
	s.Require().NoError(s.store.Create(s.ctx, survey))
	s.Equal(int64(1), survey.Version())

	s.Run("returns an independent copy", func() {
		found, err := s.store.FindByID(s.ctx, survey.ID())
		s.Require().NoError(err)
		s.Equal("Intake", found.Title())
		s.Require().NoError(found.UpdateTitle("Changed", now))

		again, err := s.store.FindByID(s.ctx, survey.ID())
		s.Require().NoError(err)
		s.Equal("Intake", again.Title())
	})

	s.Run("duplicate create is rejected", func() {
		s.ErrorIs(s.store.Create(s.ctx, survey), sentinel.ErrAlreadyExists)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, id.NewSurveyID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestSaveOptimisticConcurrency() {
	survey := s.newSurvey("Intake")
	s.Require().NoError(s.store.Create(s.ctx, survey))

	first, err := s.store.FindByID(s.ctx, survey.ID())
	s.Require().NoError(err)
	second, err := s.store.FindByID(s.ctx, survey.ID())
	s.Require().NoError(err)

	s.Require().NoError(first.UpdateTitle("First", now))
	s.Require().NoError(s.store.Save(s.ctx, first))
	s.Equal(int64(2), first.Version())

	s.Require().NoError(second.UpdateTitle("Second", now))
	s.ErrorIs(s.store.Save(s.ctx, second), sentinel.ErrConflict)

	stored, err := s.store.FindByID(s.ctx, survey.ID())
	s.Require().NoError(err)
	s.Equal("First", stored.Title())

	s.ErrorIs(s.store.Save(s.ctx, s.newSurvey("never created")), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListIDsByState() {
	draft := s.newSurvey("draft")
	s.Require().NoError(s.store.Create(s.ctx, draft))

	published := s.newSurvey("published")
	_, err := published.AddQuestion(models.QuestionSpec{Kind: models.QuestionTextual, Text: "Q"}, now)
	s.Require().NoError(err)
	s.Require().NoError(published.Publish(now))
	s.Require().NoError(s.store.Create(s.ctx, published))

	ids, err := s.store.ListIDsByState(s.ctx, models.SurveyPublished)
	s.Require().NoError(err)
	s.Equal([]id.SurveyID{published.ID()}, ids)

	ids, err = s.store.ListIDsByState(s.ctx, models.SurveyDraft, models.SurveyPublished)
	s.Require().NoError(err)
	s.Len(ids, 2)
}
