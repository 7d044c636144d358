// Package cache puts a Redis read-through cache in front of a survey store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
	"welfare/pkg/platform/circuit"
	"welfare/pkg/platform/sentinel"
	txcontext "welfare/pkg/platform/tx"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "welfare_survey_cache_lookups_total",
		Help: "Survey cache lookups by result",
	}, []string{"result"})

	cacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "welfare_survey_cache_writes_total",
		Help: "Survey cache writes by result",
	}, []string{"result"})
)

const keyPrefix = "survey:"

// putScript stores a survey hash unless Redis already holds the same or a
// newer version. KEYS[1] key; ARGV version, document, ttl in milliseconds.
var putScript = redis.NewScript(`
local cached = tonumber(redis.call('HGET', KEYS[1], 'version'))
if cached and cached >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'doc', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// Backend is the store being cached.
type Backend interface {
	Create(ctx context.Context, survey *models.Survey) error
	FindByID(ctx context.Context, surveyID id.SurveyID) (*models.Survey, error)
	Save(ctx context.Context, survey *models.Survey) error
	ListIDsByState(ctx context.Context, states ...models.SurveyState) ([]id.SurveyID, error)
}

// Store serves FindByID from Redis. Each survey is cached as a hash holding
// its version and JSON document, and a write never replaces a newer version.
//
// Save drops the cached copy straight away and caches the saved survey once
// the surrounding transaction commits, so a reader that filled the cache
// from the previous committed version in between is overwritten. Conflicts
// and missing surveys evict. Redis failures fall through to the backend, and
// repeated failures open a breaker that bypasses Redis until it cools down.
type Store struct {
	next    Backend
	client  redis.Cmdable
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Store) {
		if b != nil {
			s.breaker = b
		}
	}
}

func New(next Backend, client redis.Cmdable, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		next:    next,
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("survey-cache"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(surveyID string) string { return keyPrefix + surveyID }

func (s *Store) Create(ctx context.Context, survey *models.Survey) error {
	if err := s.next.Create(ctx, survey); err != nil {
		return err
	}
	s.evict(ctx, survey.ID().String())
	return nil
}

func (s *Store) FindByID(ctx context.Context, surveyID id.SurveyID) (*models.Survey, error) {
	if survey, ok := s.lookup(ctx, surveyID); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return survey, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	survey, err := s.next.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, survey.Snapshot())
	return survey, nil
}

func (s *Store) Save(ctx context.Context, survey *models.Survey) error {
	err := s.next.Save(ctx, survey)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrNotFound) {
			s.evict(ctx, survey.ID().String())
		}
		return err
	}

	rec := survey.Snapshot()
	s.evict(ctx, rec.ID)
	txcontext.AfterCommit(ctx, func(ctx context.Context) {
		ctx = context.WithoutCancel(ctx)
		if !s.put(ctx, rec) {
			s.evict(ctx, rec.ID)
		}
	})
	return nil
}

func (s *Store) ListIDsByState(ctx context.Context, states ...models.SurveyState) ([]id.SurveyID, error) {
	return s.next.ListIDsByState(ctx, states...)
}

func (s *Store) lookup(ctx context.Context, surveyID id.SurveyID) (*models.Survey, bool) {
	if !s.breaker.Allow() {
		return nil, false
	}
	raw, err := s.client.HGet(ctx, key(surveyID.String()), "doc").Bytes()
	if errors.Is(err, redis.Nil) {
		s.recordSuccess(ctx)
		return nil, false
	}
	if err != nil {
		s.recordFailure(ctx, "get", err)
		return nil, false
	}
	s.recordSuccess(ctx)

	var rec models.SurveyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.WarnContext(ctx, "dropping undecodable cached survey", "survey_id", surveyID, "error", err)
		s.evict(ctx, surveyID.String())
		return nil, false
	}
	survey, err := models.RestoreSurvey(rec)
	if err != nil {
		s.logger.WarnContext(ctx, "dropping corrupt cached survey", "survey_id", surveyID, "error", err)
		s.evict(ctx, surveyID.String())
		return nil, false
	}
	return survey, true
}

func (s *Store) fill(ctx context.Context, rec models.SurveyRecord) {
	if !s.breaker.Allow() {
		return
	}
	s.put(ctx, rec)
}

// put reports false only when Redis could not be written; a write skipped
// because a newer version is cached counts as success.
func (s *Store) put(ctx context.Context, rec models.SurveyRecord) bool {
	raw, err := json.Marshal(rec)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode survey for cache", "survey_id", rec.ID, "error", err)
		return false
	}
	stored, err := putScript.Run(ctx, s.client, []string{key(rec.ID)}, rec.Version, raw, s.ttl.Milliseconds()).Int()
	if err != nil {
		s.recordFailure(ctx, "put", err)
		return false
	}
	s.recordSuccess(ctx)
	if stored == 0 {
		cacheWrites.WithLabelValues("superseded").Inc()
		s.logger.DebugContext(ctx, "newer survey already cached", "survey_id", rec.ID, "version", rec.Version)
		return true
	}
	cacheWrites.WithLabelValues("stored").Inc()
	return true
}

func (s *Store) evict(ctx context.Context, surveyID string) {
	if err := s.client.Del(ctx, key(surveyID)).Err(); err != nil {
		s.recordFailure(ctx, "del", err)
		return
	}
	s.recordSuccess(ctx)
}

func (s *Store) recordFailure(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, "survey cache unavailable", "op", op, "error", err)
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "survey cache bypassed until redis recovers", "breaker", s.breaker.Name())
	}
}

func (s *Store) recordSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "survey cache restored", "breaker", s.breaker.Name())
	}
}
