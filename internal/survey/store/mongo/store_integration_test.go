//go:build integration

package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"welfare/internal/survey/models"
	surveymongo "welfare/internal/survey/store/mongo"
	id "welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
	"welfare/pkg/testutil/containers"
)

const database = "welfare_test"

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type MongoStoreSuite struct {
	suite.Suite
	mongo *containers.MongoContainer
	store *surveymongo.MongoStore
}

func TestMongoStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MongoStoreSuite))
}

func (s *MongoStoreSuite) SetupSuite() {
	s.mongo = containers.GetManager().GetMongo(s.T())
}

func (s *MongoStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.mongo.DropDatabase(ctx, database))
	s.store = surveymongo.New(s.mongo.Client.Database(database))
	s.Require().NoError(s.store.EnsureIndexes(ctx))
}

func (s *MongoStoreSuite) newSurvey() *models.Survey {
	survey, err := models.NewSurvey(id.NewSurveyID(), "Intake", "Household intake", models.DefaultParticipationPolicy(), now)
	s.Require().NoError(err)
	_, err = survey.AddQuestion(models.QuestionSpec{Kind: models.QuestionTextual, Text: "Name", Required: true}, now)
	s.Require().NoError(err)
	return survey
}

func (s *MongoStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	survey := s.newSurvey()
	s.Require().NoError(survey.Publish(now))
	_, err := survey.StartResponse("household-1", models.NewDemographySnapshot(map[string]string{"region": "north"}, now), now)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Create(ctx, survey))

	found, err := s.store.FindByID(ctx, survey.ID())
	s.Require().NoError(err)
	s.Equal(survey.Snapshot(), found.Snapshot())

	s.ErrorIs(s.store.Create(ctx, survey), sentinel.ErrAlreadyExists)

	_, err = s.store.FindByID(ctx, id.NewSurveyID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MongoStoreSuite) TestSaveIsVersionChecked() {
	ctx := context.Background()
	survey := s.newSurvey()
	s.Require().NoError(s.store.Create(ctx, survey))

	stale, err := s.store.FindByID(ctx, survey.ID())
	s.Require().NoError(err)

	s.Require().NoError(survey.UpdateTitle("Renamed", now))
	s.Require().NoError(s.store.Save(ctx, survey))
	s.Equal(int64(2), survey.Version())

	s.Require().NoError(stale.UpdateTitle("Lost update", now))
	s.ErrorIs(s.store.Save(ctx, stale), sentinel.ErrConflict)

	s.ErrorIs(s.store.Save(ctx, s.newSurvey()), sentinel.ErrNotFound)
}

func (s *MongoStoreSuite) TestListIDsByState() {
	ctx := context.Background()
	draft := s.newSurvey()
	s.Require().NoError(s.store.Create(ctx, draft))
	published := s.newSurvey()
	s.Require().NoError(published.Publish(now))
	s.Require().NoError(s.store.Create(ctx, published))

	ids, err := s.store.ListIDsByState(ctx, models.SurveyPublished)
	s.Require().NoError(err)
	s.Equal([]id.SurveyID{published.ID()}, ids)
}
