// Package service is the application layer of the survey module: it loads a
// Survey aggregate, applies one mutation, saves it under optimistic
// concurrency and hands the raised events to the event sink.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"welfare/internal/survey/metrics"
	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	"welfare/pkg/platform/sentinel"
	"welfare/pkg/requestcontext"
)

const defaultMaxSaveRetries = 3

// errUnchanged lets a mutation report that nothing needs saving.
var errUnchanged = errors.New("survey unchanged")

// Service orchestrates survey authoring and response handling.
type Service struct {
	store          Store
	events         EventSink
	tx             TxRunner
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	maxSaveRetries int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		if sink != nil {
			s.events = sink
		}
	}
}

// WithTxRunner makes the save and the event publication atomic.
func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMaxSaveRetries bounds how often a conflicting save is retried.
func WithMaxSaveRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxSaveRetries = n
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("survey store is required")
	}
	s := &Service{
		store:          store,
		events:         discardSink{},
		tx:             passthroughTx{},
		logger:         slog.Default(),
		tracer:         otel.Tracer("welfare/internal/survey/service"),
		maxSaveRetries: defaultMaxSaveRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// mutation is applied to a freshly loaded aggregate. It may run more than
// once when a concurrent save wins.
type mutation func(survey *models.Survey, now time.Time) error

// mutate runs load, fn, save and publish in one transaction, retrying the
// whole closure on version conflicts.
func (s *Service) mutate(ctx context.Context, op string, surveyID id.SurveyID, fn mutation) (*models.Survey, error) {
	ctx, span := s.startSpan(ctx, op, attribute.String("survey.id", surveyID.String()))
	defer span.End()
	defer s.observe(op, time.Now())

	if surveyID.IsNil() {
		return nil, s.fail(span, dErrors.New(dErrors.CodeValidation, "survey id is required"))
	}

	now := requestcontext.Now(ctx)
	for attempt := 0; ; attempt++ {
		var saved *models.Survey
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			survey, err := s.store.FindByID(ctx, surveyID)
			if err != nil {
				return err
			}
			if err := fn(survey, now); err != nil {
				if errors.Is(err, errUnchanged) {
					saved = survey
					return nil
				}
				return err
			}
			pending := survey.PullEvents()
			if err := s.store.Save(ctx, survey); err != nil {
				return err
			}
			if len(pending) > 0 {
				if err := s.events.Publish(ctx, pending); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish survey events")
				}
			}
			saved = survey
			return nil
		})
		if err == nil {
			return saved, nil
		}
		if errors.Is(err, sentinel.ErrConflict) && attempt < s.maxSaveRetries {
			s.incSaveConflict()
			s.logger.WarnContext(ctx, "survey save conflict, retrying",
				"survey_id", surveyID,
				"operation", op,
				"attempt", attempt+1,
			)
			continue
		}
		return nil, s.fail(span, translate(err))
	}
}

// load reads an aggregate without saving it.
func (s *Service) load(ctx context.Context, op string, surveyID id.SurveyID) (*models.Survey, error) {
	ctx, span := s.startSpan(ctx, op, attribute.String("survey.id", surveyID.String()))
	defer span.End()
	defer s.observe(op, time.Now())

	if surveyID.IsNil() {
		return nil, s.fail(span, dErrors.New(dErrors.CodeValidation, "survey id is required"))
	}
	survey, err := s.store.FindByID(ctx, surveyID)
	if err != nil {
		return nil, s.fail(span, translate(err))
	}
	return survey, nil
}

// translate maps store sentinels onto coded domain errors. Coded errors
// from the aggregate pass through unchanged.
func translate(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "survey not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "survey was modified concurrently, retry the operation")
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.New(dErrors.CodeConflict, "survey already exists")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "survey operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "survey store failure")
	}
}

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "survey."+op, trace.WithAttributes(attrs...))
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, time.Since(start))
	}
}

func (s *Service) incSaveConflict() {
	if s.metrics != nil {
		s.metrics.SaveConflicts.Inc()
	}
}

func (s *Service) incNavigation(direction string, moved bool) {
	if s.metrics != nil {
		s.metrics.IncNavigation(direction, moved)
	}
}
