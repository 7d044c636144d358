package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"welfare/internal/survey/models"
	"welfare/internal/survey/service/mocks"
	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	"welfare/pkg/platform/sentinel"
	"welfare/pkg/requestcontext"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	sink    *mocks.MockEventSink
	tx      *mocks.MockTxRunner
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.sink = mocks.NewMockEventSink(s.ctrl)
	s.tx = mocks.NewMockTxRunner(s.ctrl)
	s.tx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()

	svc, err := New(s.store,
		WithEventSink(s.sink),
		WithTxRunner(s.tx),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMaxSaveRetries(2),
	)
	s.Require().NoError(err)
	s.service = svc
	s.ctx = requestcontext.WithTime(context.Background(), testNow)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// draftRecord returns a snapshot of a draft survey with one textual question,
// so every FindByID can hand out a fresh aggregate.
func (s *ServiceSuite) draftRecord() models.SurveyRecord {
	survey, err := models.NewSurvey(id.NewSurveyID(), "Intake", "", models.DefaultParticipationPolicy(), testNow)
	s.Require().NoError(err)
	_, err = survey.AddQuestion(models.QuestionSpec{Kind: models.QuestionTextual, Text: "Name", Required: true}, testNow)
	s.Require().NoError(err)
	survey.PullEvents()
	survey.MarkPersisted(3)
	return survey.Snapshot()
}

func (s *ServiceSuite) surveyID(rec models.SurveyRecord) id.SurveyID {
	surveyID, err := id.ParseSurveyID(rec.ID)
	s.Require().NoError(err)
	return surveyID
}

func (s *ServiceSuite) loads(rec models.SurveyRecord) *gomock.Call {
	return s.store.EXPECT().FindByID(gomock.Any(), s.surveyID(rec)).
		DoAndReturn(func(context.Context, id.SurveyID) (*models.Survey, error) {
			return models.RestoreSurvey(rec)
		})
}

func (s *ServiceSuite) TestNew() {
	s.Run("store is required", func() {
		_, err := New(nil)
		s.Require().Error(err)
	})

	s.Run("nil options keep the defaults", func() {
		svc, err := New(s.store, WithEventSink(nil), WithTxRunner(nil), WithTracer(nil), WithMaxSaveRetries(-1))
		s.Require().NoError(err)
		s.Equal(defaultMaxSaveRetries, svc.maxSaveRetries)
		s.NotNil(svc.events)
		s.NotNil(svc.tx)
	})
}

func (s *ServiceSuite) TestPublishSavesAndEmitsEvents() {
	rec := s.draftRecord()
	s.loads(rec)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, survey *models.Survey) error {
			s.Equal(int64(3), survey.Version())
			s.Equal(models.SurveyPublished, survey.State())
			return nil
		})
	s.sink.EXPECT().Publish(gomock.Any(), gomock.Len(1)).
		DoAndReturn(func(_ context.Context, evts []models.Event) error {
			s.Equal(models.EventSurveyPublished, evts[0].EventName())
			return nil
		})

	s.Require().NoError(s.service.Publish(s.ctx, s.surveyID(rec)))
}

func (s *ServiceSuite) TestConflictIsRetried() {
	rec := s.draftRecord()

	s.Run("succeeds on a later attempt", func() {
		s.loads(rec).Times(2)
		gomock.InOrder(
			s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(fmt.Errorf("stale: %w", sentinel.ErrConflict)),
			s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
		)
		s.sink.EXPECT().Publish(gomock.Any(), gomock.Len(1)).Return(nil).Times(1)

		s.Require().NoError(s.service.Publish(s.ctx, s.surveyID(rec)))
	})

	s.Run("gives up after the retry budget", func() {
		s.loads(rec).Times(3)
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict).Times(3)

		err := s.service.Publish(s.ctx, s.surveyID(rec))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestStoreErrorsAreTranslated() {
	surveyID := id.NewSurveyID()

	s.Run("not found", func() {
		s.store.EXPECT().FindByID(gomock.Any(), surveyID).Return(nil, fmt.Errorf("survey %s: %w", surveyID, sentinel.ErrNotFound))
		_, err := s.service.GetSurvey(s.ctx, surveyID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unexpected failure", func() {
		s.store.EXPECT().FindByID(gomock.Any(), surveyID).Return(nil, errors.New("connection reset"))
		err := s.service.Archive(s.ctx, surveyID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("deadline", func() {
		s.store.EXPECT().FindByID(gomock.Any(), surveyID).Return(nil, context.DeadlineExceeded)
		_, err := s.service.GetSurvey(s.ctx, surveyID)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("duplicate create", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyExists)
		_, err := s.service.CreateSurvey(s.ctx, CreateSurveyCommand{Title: "Intake"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("nil survey id never reaches the store", func() {
		_, err := s.service.GetSurvey(s.ctx, id.SurveyID{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		err = s.service.Publish(s.ctx, id.SurveyID{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestAggregateErrorsSkipSave() {
	survey, err := models.NewSurvey(id.NewSurveyID(), "Empty", "", models.DefaultParticipationPolicy(), testNow)
	s.Require().NoError(err)
	rec := survey.Snapshot()
	s.loads(rec)

	err = s.service.Publish(s.ctx, s.surveyID(rec))
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestEventSinkFailureFailsTheOperation() {
	rec := s.draftRecord()
	s.loads(rec)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))

	err := s.service.Publish(s.ctx, s.surveyID(rec))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestMutationWithoutEventsSkipsSink() {
	rec := s.draftRecord()
	s.loads(rec)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	title := "Renamed"
	survey, err := s.service.UpdateDetails(s.ctx, s.surveyID(rec), DetailsUpdate{Title: &title})
	s.Require().NoError(err)
	s.Equal("Renamed", survey.Title())
}

func (s *ServiceSuite) TestExpireWithNothingStaleDoesNotSave() {
	rec := s.draftRecord()
	s.loads(rec)

	n, err := s.service.ExpireStaleResponses(s.ctx, s.surveyID(rec), testNow)
	s.Require().NoError(err)
	s.Zero(n)
}
