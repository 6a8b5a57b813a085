package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: общее кол-во dApp-запросов
	RequestsTotal *prometheus.CounterVec

	// Итоги гонок одобрения: approved / denied / dismissed
	VerdictsTotal *prometheus.CounterVec

	// Latency: от создания запроса до вердикта (включая человека)
	ApprovalDuration *prometheus.HistogramVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Saturation: окна одобрения, ждущие решения прямо сейчас
	PendingSurfaces prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "broker_requests_total",
			Help: "Total number of dApp capability requests.",
		}, []string{"op", "origin"}),

		VerdictsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "broker_verdicts_total",
			Help: "Approval race outcomes.",
		}, []string{"kind", "outcome"}), // outcome: approved, denied, dismissed

		ApprovalDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name: "broker_approval_duration_seconds",
			Help: "Time from request creation to final verdict.",
			// Решает человек: хвост до минут
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "broker_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: invalid_param, no_permission, rejection, execution

		PendingSurfaces: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "broker_pending_surfaces",
			Help: "Approval surfaces currently awaiting a human decision.",
		}),
	}
}
