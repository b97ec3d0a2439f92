package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics holds Prometheus metrics for a service
type Metrics struct {
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec
	DBConnPoolStats  *prometheus.GaugeVec
	Resolutions      *prometheus.CounterVec
	Imports          *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance registered on reg
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metargb",
				Subsystem: serviceName,
				Name:      "requests_total",
				Help:      "Total number of requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "metargb",
				Subsystem: serviceName,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "metargb",
				Subsystem: serviceName,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
			[]string{"method"},
		),
		DBConnPoolStats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "metargb",
				Subsystem: serviceName,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"stat"},
		),
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metargb",
				Subsystem: serviceName,
				Name:      "attachment_resolutions_total",
				Help:      "Image field resolutions by outcome",
			},
			[]string{"outcome"}, // found, not_found, error
		),
		Imports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metargb",
				Subsystem: serviceName,
				Name:      "attachment_imports_total",
				Help:      "Remote attachment imports by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveResolution records the outcome of one field resolution
func (m *Metrics) ObserveResolution(id uint64, err error) {
	if m == nil {
		return
	}
	outcome := "found"
	switch {
	case err != nil:
		outcome = "error"
	case id == 0:
		outcome = "not_found"
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// ObserveImport records the result label of one import
func (m *Metrics) ObserveImport(result string) {
	if m == nil {
		return
	}
	m.Imports.WithLabelValues(result).Inc()
}

// UnaryServerInterceptor returns a new unary server interceptor for metrics
func UnaryServerInterceptor(metrics *Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		method := info.FullMethod

		metrics.RequestsInFlight.WithLabelValues(method).Inc()
		defer metrics.RequestsInFlight.WithLabelValues(method).Dec()

		start := time.Now()
		defer func() {
			metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		}()

		resp, err := handler(ctx, req)

		statusCode := "ok"
		if err != nil {
			st, _ := status.FromError(err)
			statusCode = st.Code().String()
		}
		metrics.RequestCounter.WithLabelValues(method, statusCode).Inc()

		return resp, err
	}
}

// RecordDBPoolStats records database connection pool statistics
func (m *Metrics) RecordDBPoolStats(stats sql.DBStats) {
	m.DBConnPoolStats.WithLabelValues("open").Set(float64(stats.OpenConnections))
	m.DBConnPoolStats.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(stats.Idle))
	m.DBConnPoolStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
	m.DBConnPoolStats.WithLabelValues("wait_duration_ms").Set(float64(stats.WaitDuration.Milliseconds()))
}

// CollectDBPoolStats samples db every interval until ctx is done
func (m *Metrics) CollectDBPoolStats(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RecordDBPoolStats(db.Stats())
		}
	}
}
