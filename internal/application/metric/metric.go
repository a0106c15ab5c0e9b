package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - время обработки запросов
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - количество ошибок
	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Общее количество HTTP ошибок",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики - количество активных соединений
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	// Чат - принятые сообщения по отправителю
	chatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Количество принятых сообщений чата",
		},
		[]string{"sender"},
	)

	chatMessageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_failures_total",
			Help: "Количество неподтверждённых сообщений чата",
		},
		[]string{"code"},
	)

	chatActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "Количество активных сессий в памяти",
		},
	)

	// Звонки - завершения по причине
	callsEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calls_ended_total",
			Help: "Количество завершённых звонков по причине",
		},
		[]string{"reason"},
	)

	callsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calls_started_total",
			Help: "Количество начатых звонков по типу",
		},
		[]string{"call_type"},
	)

	callDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "call_duration_seconds",
			Help:    "Длительность соединённой части звонка",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	iceCandidatesBufferedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ice_candidates_buffered_total",
			Help: "Количество ICE кандидатов, отложенных до установки remote description",
		},
	)
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())

	// Записываем ошибки (статус >= 400)
	if status >= 400 {
		httpErrorsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	}
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func RecordChatMessage(sender string) {
	chatMessagesTotal.WithLabelValues(sender).Inc()
}

func RecordChatMessageFailure(code string) {
	chatMessageFailuresTotal.WithLabelValues(code).Inc()
}

func IncrementActiveSessions() {
	chatActiveSessions.Inc()
}

func DecrementActiveSessions() {
	chatActiveSessions.Dec()
}

func RecordCallStarted(callType string) {
	callsStartedTotal.WithLabelValues(callType).Inc()
}

// RecordCallEnded учитывает завершение; нулевая длительность значит, что звонок не соединился
func RecordCallEnded(reason string, duration time.Duration) {
	callsEndedTotal.WithLabelValues(reason).Inc()

	if duration > 0 {
		callDuration.Observe(duration.Seconds())
	}
}

func AddICECandidatesBuffered(n int) {
	iceCandidatesBufferedTotal.Add(float64(n))
}
