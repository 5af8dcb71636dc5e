package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Counters are created eagerly so instrumented code can use them before
// (or without) registration.
var (
	AuthorizationsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tiktok_authorizations_started_total",
		Help: "Total number of authorization redirects issued.",
	})
	TokenExchangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tiktok_token_exchanges_total",
		Help: "Token endpoint calls by grant type and result.",
	}, []string{"grant_type", "result"})
	TokenValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tiktok_token_validations_total",
		Help: "Token validations by result.",
	}, []string{"result"})
	APICallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tiktok_api_calls_total",
		Help: "Open API calls by endpoint and result.",
	}, []string{"endpoint", "result"})
	WebhookEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tiktok_webhook_events_total",
		Help: "Total number of webhook events received.",
	})
)

// InitCustomMetrics registers the counters with reg. It should be called once
// at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	collectors := map[string]prometheus.Collector{
		"AuthorizationsStartedTotal": AuthorizationsStartedTotal,
		"TokenExchangesTotal":        TokenExchangesTotal,
		"TokenValidationsTotal":      TokenValidationsTotal,
		"APICallsTotal":              APICallsTotal,
		"WebhookEventsTotal":         WebhookEventsTotal,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
