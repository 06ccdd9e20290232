package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/sri-comprobantes/internal/application/billing"
)

// PrometheusSink cuenta las etapas de emisión por estado y mide su duración.
type PrometheusSink struct {
	stageCount    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewPrometheusSink registra las métricas en reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		stageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sri_emision_stage_total",
				Help: "Etapas de emisión terminadas, por etapa y estado.",
			},
			[]string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sri_emision_stage_duration_seconds",
				Help:    "Duración de cada etapa de emisión.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 3, 10, 30, 60},
			},
			[]string{"stage"},
		),
	}
	for _, c := range []prometheus.Collector{s.stageCount, s.stageDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusSink) StageCompleted(_ context.Context, ev billing.StageEvent) {
	s.stageCount.WithLabelValues(string(ev.Stage), ev.Status).Inc()
	s.stageDuration.WithLabelValues(string(ev.Stage)).Observe(ev.Duration.Seconds())
}
