package service

import (
	"context"
	"log/slog"
	"time"

	"welfare/internal/survey/models"
	"welfare/pkg/requestcontext"
)

// Sweeper periodically expires responses that stayed active longer than
// the configured TTL on published surveys.
type Sweeper struct {
	svc      *Service
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(svc *Service, ttl, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{svc: svc, ttl: ttl, interval: interval, logger: logger}
}

// Run sweeps every interval until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "response expiry sweeper started", "ttl", w.ttl, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "response expiry sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "response expiry sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce expires stale responses across every survey that can hold
// responses, including completed and archived ones whose attempts were left
// open, and returns the total expired. A failing survey is logged and skipped.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	cutoff := now.Add(-w.ttl)

	ids, err := w.svc.store.ListIDsByState(ctx, models.SurveyPublished, models.SurveyCompleted, models.SurveyArchived)
	if err != nil {
		return 0, translate(err)
	}
	total := 0
	for _, surveyID := range ids {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := w.svc.ExpireStaleResponses(ctx, surveyID, cutoff)
		if err != nil {
			w.logger.WarnContext(ctx, "failed to expire responses", "survey_id", surveyID, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}
