//go:build integration

package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"welfare/internal/platform/outbox"
	"welfare/internal/platform/postgres"
	"welfare/internal/survey/events"
	"welfare/internal/survey/models"
	"welfare/internal/survey/service"
	surveypg "welfare/internal/survey/store/postgres"
	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	"welfare/pkg/requestcontext"
	"welfare/pkg/testutil/containers"
)

// OutboxFlowSuite runs the service over Postgres with events written to the
// outbox in the same transaction as the aggregate.
type OutboxFlowSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	outbox   *outbox.PostgresStore
	service  *service.Service
	ctx      context.Context
}

func TestOutboxFlowSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxFlowSuite))
}

func (s *OutboxFlowSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.outbox = outbox.NewPostgresStore(s.postgres.DB)

	svc, err := service.New(surveypg.New(s.postgres.DB),
		service.WithTxRunner(postgres.NewTxRunner(s.postgres.DB)),
		service.WithEventSink(events.NewOutboxSink(s.outbox)),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.service = svc
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func (s *OutboxFlowSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "surveys", "outbox"))
}

func (s *OutboxFlowSuite) pending() int {
	n, err := s.outbox.CountPending(context.Background())
	s.Require().NoError(err)
	return n
}

func (s *OutboxFlowSuite) TestEventsCommitWithTheAggregate() {
	survey, err := s.service.CreateSurvey(s.ctx, service.CreateSurveyCommand{Title: "Intake"})
	s.Require().NoError(err)
	questionID, err := s.service.AddQuestion(s.ctx, survey.ID(),
		models.QuestionSpec{Kind: models.QuestionTextual, Text: "Name", Required: true})
	s.Require().NoError(err)
	s.Zero(s.pending())

	s.Require().NoError(s.service.Publish(s.ctx, survey.ID()))
	s.Equal(1, s.pending())

	responseID, err := s.service.StartResponse(s.ctx, service.StartResponseCommand{
		SurveyID:    survey.ID(),
		Participant: id.ParticipantRef("household-1"),
	})
	s.Require().NoError(err)

	text := "Ada"
	s.Require().NoError(s.service.SetAnswer(s.ctx, service.AnswerCommand{
		SurveyID: survey.ID(), ResponseID: responseID, QuestionID: questionID, RepeatIndex: 1, Text: &text,
	}))
	s.Require().NoError(s.service.SubmitResponse(s.ctx, survey.ID(), responseID))
	s.Equal(3, s.pending())

	s.Run("failed mutation writes nothing", func() {
		err := s.service.SubmitResponse(s.ctx, survey.ID(), responseID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal(3, s.pending())
	})

	stored, err := s.service.GetSurvey(s.ctx, survey.ID())
	s.Require().NoError(err)
	resp, err := stored.Response(responseID)
	s.Require().NoError(err)
	s.Equal(models.ResponseCompleted, resp.Status())
}
