package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Resolutions     *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	ProviderSeconds *prometheus.HistogramVec
	QuotaSkips      *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	ActiveLookups   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Resolutions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_resolutions_total",
			Help: "Total number of resolution requests by direction and outcome.",
		}, []string{"direction", "outcome"}),
		ProviderErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_provider_errors_total",
			Help: "Total number of errors received from geocoding provider APIs.",
		}, []string{"provider"}),
		ProviderSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geocoding_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider APIs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		QuotaSkips: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_quota_skips_total",
			Help: "Total number of provider invocations skipped due to exhausted daily quota.",
		}, []string{"provider"}),
		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_cache_lookups_total",
			Help: "Total number of result cache lookups by direction and result.",
		}, []string{"direction", "result"}),
		ActiveLookups: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geocoding_active_lookups",
			Help: "Current number of in-flight resolution requests.",
		}),
	}
}
