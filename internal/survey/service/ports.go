package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Store,EventSink,TxRunner

import (
	"context"

	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
)

// Store persists Survey aggregates under optimistic concurrency.
//
// Errors are pkg/platform/sentinel values, possibly wrapped:
//   - Create: ErrAlreadyExists when the id is taken
//   - FindByID: ErrNotFound
//   - Save: ErrNotFound, or ErrConflict when the stored version differs from
//     survey.Version(). On success the store calls survey.MarkPersisted.
type Store interface {
	Create(ctx context.Context, survey *models.Survey) error
	FindByID(ctx context.Context, surveyID id.SurveyID) (*models.Survey, error)
	Save(ctx context.Context, survey *models.Survey) error
	ListIDsByState(ctx context.Context, states ...models.SurveyState) ([]id.SurveyID, error)
}

// EventSink receives the events pulled from an aggregate after a successful save.
type EventSink interface {
	Publish(ctx context.Context, events []models.Event) error
}

// TxRunner scopes a save and its event publication to one unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// passthroughTx runs fn directly; used when the store is not transactional.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type discardSink struct{}

func (discardSink) Publish(context.Context, []models.Event) error { return nil }
