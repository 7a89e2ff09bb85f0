package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func requestsCounter() *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ludoarena_rate_limiter_requests_total",
		Help: "Total requests seen by the rate limiter, labeled by route.",
	}, []string{"endpoint"})
}

func blockedCounter() *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ludoarena_rate_limiter_blocked_total",
		Help: "Total requests blocked by the rate limiter, labeled by route.",
	}, []string{"endpoint"})
}
