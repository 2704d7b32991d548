package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskminer"

// Metrics — Prometheus метрики жизненного цикла tasks.
//
// Все методы безопасны для nil-получателя: компоненты, созданные
// без метрик (например, в тестах), просто ничего не публикуют.
type Metrics struct {
	accepted    prometheus.Counter
	rejected    *prometheus.CounterVec
	finished    *prometheus.CounterVec
	timeouts    prometheus.Counter
	running     prometheus.Gauge
	duration    prometheus.Histogram
	reclaimed   prometheus.Counter
	submissions *prometheus.CounterVec
	polls       prometheus.Counter
	httpReqs    *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		accepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_accepted_total",
			Help:      "Total task init requests accepted by mining actors",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total task init requests rejected by mining actors",
		}, []string{"reason"}),
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Total tasks that reached a terminal status",
		}, []string{"status"}),
		timeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_timeout_total",
			Help:      "Total tasks killed after exceeding max running time",
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_running",
			Help:      "Tasks currently in RUNNING status",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time from acceptance to terminal status",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
		reclaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_reclaimed_total",
			Help:      "Total terminal task records removed by the retention policy",
		}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_submissions_total",
			Help:      "Task init requests sent by the controller, by outcome",
		}, []string{"outcome"}),
		polls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_status_polls_total",
			Help:      "Task status requests sent by the controller",
		}),
		httpReqs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_http_requests_total",
			Help:      "Total HTTP requests handled by the API",
		}, []string{"method", "status"}),
	}
}

// TaskAccepted фиксирует принятие task.
func (m *Metrics) TaskAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.running.Inc()
}

// TaskRejected фиксирует отказ с причиной (короткий код, не текст ошибки).
func (m *Metrics) TaskRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// TaskFinished фиксирует переход task в финальный статус.
func (m *Metrics) TaskFinished(status string, d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.finished.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
	if timedOut {
		m.timeouts.Inc()
	}
}

// TasksReclaimed фиксирует удаление записей политикой хранения.
func (m *Metrics) TasksReclaimed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reclaimed.Add(float64(n))
}

// Submission фиксирует отправку TaskInitRequest контроллером.
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// StatusPoll фиксирует отправку TaskStatusRequest контроллером.
func (m *Metrics) StatusPoll() {
	if m == nil {
		return
	}
	m.polls.Inc()
}

// HTTPRequest фиксирует обработанный HTTP запрос.
func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpReqs.WithLabelValues(method, statusClass(status)).Inc()
}

// statusClass сворачивает HTTP-код в класс (2xx, 4xx, 5xx).
func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
