package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the survey module.
type Metrics struct {
	ResponsesStarted   prometheus.Counter
	ResponsesSubmitted prometheus.Counter
	ResponsesExpired   prometheus.Counter
	NavigationMoves    *prometheus.CounterVec
	SaveConflicts      prometheus.Counter
	OperationDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		ResponsesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_survey_responses_started_total",
			Help: "Total number of survey response attempts started",
		}),
		ResponsesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_survey_responses_submitted_total",
			Help: "Total number of survey responses submitted",
		}),
		ResponsesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_survey_responses_expired_total",
			Help: "Total number of survey responses expired by the sweeper",
		}),
		NavigationMoves: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "welfare_survey_navigation_moves_total",
			Help: "Navigation requests by direction and whether the cursor moved",
		}, []string{"direction", "moved"}),
		SaveConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_survey_save_conflicts_total",
			Help: "Optimistic concurrency conflicts hit while saving surveys",
		}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "welfare_survey_operation_duration_seconds",
			Help:    "Duration of survey service operations including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncNavigation(direction string, moved bool) {
	m.NavigationMoves.WithLabelValues(direction, strconv.FormatBool(moved)).Inc()
}

func (m *Metrics) ObserveOperation(operation string, elapsed time.Duration) {
	m.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
