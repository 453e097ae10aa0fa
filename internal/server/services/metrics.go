package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Operation names used as metric labels.
const (
	opLogin                 = "login"
	opRegister              = "register"
	opLogout                = "logout"
	opRequestPasswordReset  = "request_password_reset"
	opCompletePasswordReset = "complete_password_reset"
)

// Metrics counts authentication operations by outcome and times them.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Total number of authentication operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_operation_duration_seconds",
				Help:    "Duration of authentication operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Operations)
		reg.MustRegister(m.Duration)
	}

	return m
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	m.Operations.WithLabelValues(operation, outcome(err)).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// outcome maps an operation result to a low-cardinality label value.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrConflict):
		return "conflict"
	case errors.Is(err, common.ErrValidation):
		return "validation"
	case errors.Is(err, common.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, common.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return "invalid_reset_token"
	case errors.Is(err, common.ErrSamePassword):
		return "same_password"
	case errors.Is(err, common.ErrDependencyUnavailable):
		return "dependency_unavailable"
	default:
		return "error"
	}
}
