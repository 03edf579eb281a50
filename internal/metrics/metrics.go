package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aliskhannn/photo-blur/internal/model"
)

const defaultNamespace = "photo_blur"

// Recorder exports blur task metrics to Prometheus.
type Recorder struct {
	taskDuration *prometheus.HistogramVec
	tasksTotal   *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// NewRecorder registers the task metrics on reg. A nil reg uses a fresh
// registry, which keeps tests independent of the global one.
func NewRecorder(namespace string, reg *prometheus.Registry) (*Recorder, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time spent running blur tasks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Blur tasks by outcome and failure kind.",
		}, []string{"outcome", "failure"}),
		gatherer: reg,
	}

	if err := reg.Register(r.taskDuration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register task duration: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("register task duration: unexpected collector %T", are.ExistingCollector)
		}
		r.taskDuration = existing
	}

	if err := reg.Register(r.tasksTotal); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register tasks total: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register tasks total: unexpected collector %T", are.ExistingCollector)
		}
		r.tasksTotal = existing
	}

	return r, nil
}

// RecordTask tracks a finished task. err is the task failure, if any.
func (r *Recorder) RecordTask(duration time.Duration, err error) {
	if r == nil {
		return
	}

	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
	}

	r.taskDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	r.tasksTotal.WithLabelValues(outcome, model.FailureKind(err)).Inc()
}

// Handler serves the registered metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
