package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postbook_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postbook_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// InvariantViolations counts detected consistency defects by kind
	// (counter_underflow, counter_increment_failed, counter_drift).
	InvariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postbook_invariant_violations_total",
		Help: "Total number of detected data consistency violations",
	}, []string{"kind"})

	// CountersRepaired counts post_count values rewritten by recount or reconcile.
	CountersRepaired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postbook_counters_repaired_total",
		Help: "Total number of account post counters repaired",
	})

	// CoordinatorOperations counts coordinator operations by name and outcome code.
	CoordinatorOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postbook_coordinator_operations_total",
		Help: "Total number of coordinator operations by outcome",
	}, []string{"operation", "outcome"})
)

const (
	ViolationCounterUnderflow       = "counter_underflow"
	ViolationCounterIncrementFailed = "counter_increment_failed"
	ViolationCounterDrift           = "counter_drift"
)

// RecordInvariantViolation increments the violation counter for kind.
func RecordInvariantViolation(kind string) {
	InvariantViolations.WithLabelValues(kind).Inc()
}

// RecordCoordinatorOperation records the outcome of a coordinator call.
// An empty outcome is recorded as "ok".
func RecordCoordinatorOperation(operation, outcome string) {
	if outcome == "" {
		outcome = "ok"
	}
	CoordinatorOperations.WithLabelValues(operation, outcome).Inc()
}

// DatabaseMetrics is a GORM plugin recording query latency per operation and table.
type DatabaseMetrics struct{}

const startTimeKey = "postbook:query_start"

// NewDatabaseMetrics returns a new DatabaseMetrics plugin.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// Name implements gorm.Plugin.
func (*DatabaseMetrics) Name() string {
	return "postbook:metrics"
}

// Initialize implements gorm.Plugin by registering before/after callbacks.
func (m *DatabaseMetrics) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("metrics:before_create", m.before); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("metrics:after_create", m.after("create")); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("metrics:before_query", m.before); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("metrics:after_query", m.after("query")); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("metrics:before_update", m.before); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("metrics:after_update", m.after("update")); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("metrics:before_delete", m.before); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("metrics:after_delete", m.after("delete")); err != nil {
		return err
	}
	if err := db.Callback().Raw().Before("gorm:raw").Register("metrics:before_raw", m.before); err != nil {
		return err
	}
	return db.Callback().Raw().After("gorm:raw").Register("metrics:after_raw", m.after("raw"))
}

func (*DatabaseMetrics) before(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func (m *DatabaseMetrics) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		m.ObserveQuery(operation, table, start)
	}
}

// ObserveQuery records the latency of a database query.
func (*DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
