package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"welfare/internal/survey/models"
	"welfare/internal/survey/store/memory"
	id "welfare/pkg/domain"
	"welfare/pkg/platform/circuit"
	"welfare/pkg/platform/sentinel"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// UnreachableRedisSuite checks that the cache degrades to the backend when
// Redis cannot be reached.
type UnreachableRedisSuite struct {
	suite.Suite
	backend *memory.InMemory
	breaker *circuit.Breaker
	store   *Store
}

func TestUnreachableRedisSuite(t *testing.T) {
	suite.Run(t, new(UnreachableRedisSuite))
}

func (s *UnreachableRedisSuite) SetupTest() {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	s.T().Cleanup(func() { _ = client.Close() })

	s.backend = memory.New()
	s.breaker = circuit.New("test-cache", circuit.WithFailureThreshold(2))
	s.store = New(s.backend, client, time.Minute,
		WithBreaker(s.breaker),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *UnreachableRedisSuite) TestFallsThroughToBackend() {
	ctx := context.Background()
	survey, err := models.NewSurvey(id.NewSurveyID(), "Intake", "", models.DefaultParticipationPolicy(), now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, survey))

	found, err := s.store.FindByID(ctx, survey.ID())
	s.Require().NoError(err)
	s.Equal("Intake", found.Title())

	s.Run("breaker opens after repeated failures", func() {
		s.True(s.breaker.IsOpen())
	})

	s.Run("writes still reach the backend", func() {
		s.Require().NoError(found.UpdateTitle("Renamed", now))
		s.Require().NoError(s.store.Save(ctx, found))
		again, err := s.backend.FindByID(ctx, survey.ID())
		s.Require().NoError(err)
		s.Equal("Renamed", again.Title())
	})

	s.Run("backend errors pass through", func() {
		_, err := s.store.FindByID(ctx, id.NewSurveyID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
