// Package metrics регистрирует prometheus-метрики бота.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DownloadsTotal считает загрузки историй по тарифу и исходу.
	DownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storygram_downloads_total",
			Help: "Total number of story downloads",
		},
		[]string{"tier", "outcome"},
	)

	// FloodWaitRetries считает повторы загрузок после FLOOD_WAIT.
	FloodWaitRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storygram_floodwait_retries_total",
			Help: "Total number of download retries caused by rate limiting",
		},
	)

	// CodeRedemptions считает активации кодов по исходу.
	CodeRedemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storygram_code_redemptions_total",
			Help: "Total number of subscription code redemption attempts",
		},
		[]string{"outcome"},
	)

	// ActiveSessions показывает размер активной ротации пула сессий.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storygram_active_sessions",
			Help: "Current number of sessions in the pool rotation",
		},
	)

	// ActiveDownloads показывает количество загрузок в полёте.
	ActiveDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storygram_active_downloads",
			Help: "Current number of in-flight downloads",
		},
	)
)

func init() {
	prometheus.MustRegister(
		DownloadsTotal,
		FloodWaitRetries,
		CodeRedemptions,
		ActiveSessions,
		ActiveDownloads,
	)
}
