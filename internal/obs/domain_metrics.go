package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingCalculationsTotal counts price calculations by document kind and outcome.
	PricingCalculationsTotal *prometheus.CounterVec
	// CurrencyFallbackTotal counts conversions that degraded to the base currency.
	CurrencyFallbackTotal *prometheus.CounterVec
	// SettingsCacheTotal counts currency settings cache lookups by result (hit, miss, error).
	SettingsCacheTotal *prometheus.CounterVec
	// SettingsRefreshTotal counts settings refresh runs by result.
	SettingsRefreshTotal *prometheus.CounterVec
	// DocumentsRenderedTotal counts rendered documents by format.
	DocumentsRenderedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
// Only the first call has any effect.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingCalculationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_calculations_total",
			Help:      "Count of price calculations by document kind and result.",
		}, []string{"kind", "result"}))
		CurrencyFallbackTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "currency_fallback_total",
			Help:      "Count of display conversions that fell back to the base currency.",
		}, []string{"reason"}))
		SettingsCacheTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_cache_total",
			Help:      "Count of currency settings cache lookups by result.",
		}, []string{"result"}))
		SettingsRefreshTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_refresh_total",
			Help:      "Count of currency settings refresh runs by result.",
		}, []string{"result"}))
		DocumentsRenderedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_rendered_total",
			Help:      "Count of rendered pricing documents by format.",
		}, []string{"format"}))
	})
}

// The helpers below are no-ops until MustRegisterDomainMetrics has run, so packages can record
// metrics unconditionally.

// ObservePricing records a price calculation outcome.
func ObservePricing(kind, result string) {
	incVec(PricingCalculationsTotal, kind, result)
}

// ObserveCurrencyFallback records a degraded display conversion.
func ObserveCurrencyFallback(reason string) {
	incVec(CurrencyFallbackTotal, reason)
}

// ObserveSettingsCache records a settings cache lookup result.
func ObserveSettingsCache(result string) {
	incVec(SettingsCacheTotal, result)
}

// ObserveSettingsRefresh records a settings refresh result.
func ObserveSettingsRefresh(result string) {
	incVec(SettingsRefreshTotal, result)
}

// ObserveDocumentRendered records a rendered document.
func ObserveDocumentRendered(format string) {
	incVec(DocumentsRenderedTotal, format)
}

func incVec(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}
