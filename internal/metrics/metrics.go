package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Results used as label values
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

var (
	// httpRequests counts served requests by method, route pattern and status code
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_http_requests_total",
		Help: "Total number of served HTTP requests",
	}, []string{"method", "route", "code"})

	// httpDuration tracks request latency by route pattern
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contacts_http_request_duration_seconds",
		Help:    "Histogram of HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// authEvents counts auth operations (login, refresh, logout, ...) by result
	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_auth_events_total",
		Help: "Total number of authentication events",
	}, []string{"event", "result"})

	// mailMessages counts outgoing emails by kind and result
	mailMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_mail_messages_total",
		Help: "Total number of outgoing emails by kind and result",
	}, []string{"kind", "result"})

	// mailQueueDepth is the number of messages waiting for a worker
	mailQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contacts_mail_queue_depth",
		Help: "Number of emails waiting in the dispatch queue",
	})
)

func RecordHTTPRequest(method string, route string, code int, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func RecordAuthEvent(event string, err error) {
	authEvents.WithLabelValues(event, result(err)).Inc()
}

func RecordMail(kind string, result string) {
	mailMessages.WithLabelValues(kind, result).Inc()
}

func SetMailQueueDepth(depth int) {
	mailQueueDepth.Set(float64(depth))
}

// Handler exposes metrics of the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	if err != nil {
		return ResultFailed
	}
	return ResultOK
}
