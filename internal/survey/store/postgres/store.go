// Package postgres persists survey aggregates as JSONB documents guarded by a
// version column.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
	txcontext "welfare/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore joins the caller's transaction when one is carried in ctx.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, survey *models.Survey) error {
	rec := survey.Snapshot()
	rec.Version = 1
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode survey: %w", err)
	}
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO surveys (id, state, version, document, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, string(rec.State), rec.Version, doc, rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("survey %s: %w", rec.ID, sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("insert survey: %w", err)
	}
	survey.MarkPersisted(1)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, surveyID id.SurveyID) (*models.Survey, error) {
	var (
		doc     []byte
		version int64
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT document, version FROM surveys WHERE id = $1
	`, surveyID.String()).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("survey %s: %w", surveyID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find survey: %w", err)
	}
	var rec models.SurveyRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode survey %s: %w", surveyID, err)
	}
	rec.Version = version
	return models.RestoreSurvey(rec)
}

// Save writes the aggregate only when the stored version still matches
// survey.Version().
func (s *PostgresStore) Save(ctx context.Context, survey *models.Survey) error {
	next := survey.Version() + 1
	rec := survey.Snapshot()
	rec.Version = next
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode survey: %w", err)
	}

	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE surveys
		SET state = $3, version = $4, document = $5, updated_at = $6
		WHERE id = $1 AND version = $2
	`, rec.ID, survey.Version(), string(rec.State), next, doc, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update survey: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update survey: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM surveys WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check survey: %w", err)
		}
		if !exists {
			return fmt.Errorf("survey %s: %w", rec.ID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("survey %s at version %d: %w", rec.ID, survey.Version(), sentinel.ErrConflict)
	}
	survey.MarkPersisted(next)
	return nil
}

func (s *PostgresStore) ListIDsByState(ctx context.Context, states ...models.SurveyState) ([]id.SurveyID, error) {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id FROM surveys WHERE state = ANY($1) ORDER BY id
	`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	defer rows.Close()

	var out []id.SurveyID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan survey id: %w", err)
		}
		surveyID, err := id.ParseSurveyID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse survey id: %w", err)
		}
		out = append(out, surveyID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	return out, nil
}
