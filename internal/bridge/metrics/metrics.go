package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the bridge's hot paths: authentication attempts by path and
// outcome, and the machine-to-machine token cache.
type Metrics struct {
	AuthAttempts          *prometheus.CounterVec
	TokenCacheHits        prometheus.Counter
	TokenCacheMisses      prometheus.Counter
	TokenExchangeDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		AuthAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldlink_auth_attempts_total",
			Help: "Authentication attempts by path (delegated, direct) and outcome",
		}, []string{"path", "outcome"}),
		TokenCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldlink_token_cache_hits_total",
			Help: "Machine-to-machine token cache hits",
		}),
		TokenCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldlink_token_cache_misses_total",
			Help: "Machine-to-machine token cache misses (triggers a client-credentials exchange)",
		}),
		TokenExchangeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldlink_token_exchange_duration_seconds",
			Help:    "Duration of OAuth2 client-credentials exchanges",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveAuth records one finished authentication attempt.
func (m *Metrics) ObserveAuth(path, outcome string) {
	m.AuthAttempts.WithLabelValues(path, outcome).Inc()
}

// TokenCacheHit implements the token cache's metrics hook.
func (m *Metrics) TokenCacheHit() { m.TokenCacheHits.Inc() }

// TokenCacheMiss implements the token cache's metrics hook.
func (m *Metrics) TokenCacheMiss() { m.TokenCacheMisses.Inc() }

// ObserveTokenExchange implements the token cache's metrics hook.
func (m *Metrics) ObserveTokenExchange(start time.Time) {
	m.TokenExchangeDuration.Observe(time.Since(start).Seconds())
}
