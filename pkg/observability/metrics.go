package observability

import (
	"context"
	"fmt"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	Iterations     *prometheus.CounterVec
	Actions        *prometheus.CounterVec
	Faults         *prometheus.CounterVec
	BytesSent      prometheus.Counter
	BytesReceived  prometheus.Counter
	ActionDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Iterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crackle_iterations_total",
				Help: "Total number of finished iterations by outcome",
			},
			[]string{"outcome"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crackle_actions_total",
				Help: "Total number of executed actions by type",
			},
			[]string{"type", "status"},
		),
		Faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crackle_faults_total",
				Help: "Total number of faults by category",
			},
			[]string{"category"},
		),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crackle_bytes_sent_total",
			Help: "Bytes serialized and sent to the target",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crackle_bytes_received_total",
			Help: "Bytes consumed by the cracker",
		}),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crackle_action_duration_seconds",
				Help:    "Duration of action executions",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"type"},
		),
	}

	for _, c := range []prometheus.Collector{m.Iterations, m.Actions, m.Faults, m.BytesSent, m.BytesReceived, m.ActionDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnIterationEnd: func(ctx context.Context, e *domain.IterationEvent) {
			outcome := string(e.Outcome)
			if e.Outcome == domain.CategoryNone {
				outcome = "ok"
			}
			m.Iterations.WithLabelValues(outcome).Inc()
		},
		OnActionEnd: func(ctx context.Context, e *domain.ActionEvent) {
			status := "ok"
			if e.Err != nil {
				status = "error"
			}
			m.Actions.WithLabelValues(string(e.Kind), status).Inc()
			m.BytesSent.Add(float64(e.Sent))
			m.BytesReceived.Add(float64(e.Received))
			m.ActionDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
		},
		OnFault: func(ctx context.Context, f *domain.Fault) {
			m.Faults.WithLabelValues(string(f.Category)).Inc()
		},
	}
}
