package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// SessionsStarted counts established sessions by kind (session vs remember-me).
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_sessions_started_total",
		Help: "Total number of established sessions by kind",
	}, []string{"kind"})

	// ResetTokenFailures counts password reset token rejections by reason.
	ResetTokenFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_reset_token_failures_total",
		Help: "Total number of rejected password reset tokens by reason",
	}, []string{"reason"})
)

// InitMetrics creates the Prometheus HTTP middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware wraps the Prometheus middleware as a fiber.Handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
