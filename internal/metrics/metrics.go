// Package metrics holds the Prometheus collectors of the broker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	TokenCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenbroker_token_cache_hits_total",
		Help: "Stored access tokens served without calling the provider.",
	})
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenbroker_token_refreshes_total",
		Help: "Refresh-token exchanges with the OAuth provider.",
	}, []string{"result"})
	TokenAuthorizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenbroker_token_authorizations_total",
		Help: "Authorization-code exchanges with the OAuth provider.",
	}, []string{"result"})
	StoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenbroker_store_write_failures_total",
		Help: "Token records that could not be persisted after a successful exchange.",
	})
	StoreLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenbroker_store_lookup_failures_total",
		Help: "Token store lookups that failed for reasons other than not-found.",
	})
	UpstreamResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenbroker_upstream_responses_total",
		Help: "Resource API responses relayed, by route and status code.",
	}, []string{"route", "code"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
