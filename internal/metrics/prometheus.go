package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const namespace = "contrastkit"

// Metrics holds the service collectors. Create one per registry.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	RateLimitedTotal      prometheus.Counter
	SessionTokensMinted   prometheus.Counter
	AuthFailuresTotal     *prometheus.CounterVec
	StripeWebhookEvents   *prometheus.CounterVec
	WidgetServedTotal     *prometheus.CounterVec
	UpstreamRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		}),
		SessionTokensMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_tokens_minted_total",
			Help:      "Total number of session tokens minted.",
		}),
		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected bearer tokens by cause.",
		}, []string{"cause"}),
		StripeWebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhook_events_total",
			Help:      "Stripe webhook deliveries by event type and outcome.",
		}, []string{"type", "outcome"}),
		WidgetServedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_served_total",
			Help:      "Widget script responses by variant.",
		}, []string{"variant"}),
		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls to Webflow and Stripe by upstream and outcome.",
		}, []string{"upstream", "outcome"}),
	}

	if reg == nil {
		return m
	}

	for _, c := range []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RateLimitedTotal,
		m.SessionTokensMinted,
		m.AuthFailuresTotal,
		m.StripeWebhookEvents,
		m.WidgetServedTotal,
		m.UpstreamRequestsTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}

	return m
}

// Upstream records the outcome of a call to an external API.
func (m *Metrics) Upstream(upstream string, err error) {
	if m == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequestsTotal.WithLabelValues(upstream, outcome).Inc()
}

// RegisterSize exposes the current size of an in-process table, such as the
// memory KV store or the rate-limit windows, as a gauge.
func RegisterSize(reg prometheus.Registerer, name, help string, size func() int) {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(size()) })

	if err := reg.Register(gauge); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
	}
}
