// Package mongo persists survey aggregates as MongoDB documents. Each
// document embeds the full survey record next to the version used for
// optimistic concurrency.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
)

const collectionName = "surveys"

type surveyDocument struct {
	ID        string              `bson:"_id"`
	State     models.SurveyState  `bson:"state"`
	Version   int64               `bson:"version"`
	Document  models.SurveyRecord `bson:"document"`
	UpdatedAt time.Time           `bson:"updated_at"`
}

func toDocument(rec models.SurveyRecord) surveyDocument {
	return surveyDocument{
		ID:        rec.ID,
		State:     rec.State,
		Version:   rec.Version,
		Document:  rec,
		UpdatedAt: rec.UpdatedAt,
	}
}

type MongoStore struct {
	collection *mongo.Collection
}

func New(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(collectionName)}
}

// EnsureIndexes creates the state index used by ListIDsByState.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "state", Value: 1}},
		Options: options.Index().SetName("surveys_state"),
	})
	if err != nil {
		return fmt.Errorf("create survey indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, survey *models.Survey) error {
	rec := survey.Snapshot()
	rec.Version = 1
	if _, err := s.collection.InsertOne(ctx, toDocument(rec)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("survey %s: %w", rec.ID, sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("insert survey: %w", err)
	}
	survey.MarkPersisted(1)
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, surveyID id.SurveyID) (*models.Survey, error) {
	var doc surveyDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": surveyID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("survey %s: %w", surveyID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find survey: %w", err)
	}
	rec := doc.Document
	rec.Version = doc.Version
	return models.RestoreSurvey(rec)
}

// Save replaces the document only when its version still matches
// survey.Version().
func (s *MongoStore) Save(ctx context.Context, survey *models.Survey) error {
	next := survey.Version() + 1
	rec := survey.Snapshot()
	rec.Version = next

	res, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": rec.ID, "version": survey.Version()},
		toDocument(rec),
	)
	if err != nil {
		return fmt.Errorf("replace survey: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := s.collection.CountDocuments(ctx, bson.M{"_id": rec.ID}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("check survey: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("survey %s: %w", rec.ID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("survey %s at version %d: %w", rec.ID, survey.Version(), sentinel.ErrConflict)
	}
	survey.MarkPersisted(next)
	return nil
}

func (s *MongoStore) ListIDsByState(ctx context.Context, states ...models.SurveyState) ([]id.SurveyID, error) {
	cursor, err := s.collection.Find(ctx,
		bson.M{"state": bson.M{"$in": states}},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	out := make([]id.SurveyID, 0, len(rows))
	for _, row := range rows {
		surveyID, err := id.ParseSurveyID(row.ID)
		if err != nil {
			return nil, fmt.Errorf("parse survey id: %w", err)
		}
		out = append(out, surveyID)
	}
	return out, nil
}
