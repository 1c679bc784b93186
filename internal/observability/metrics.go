package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	httpDurationHistogram     *prometheus.HistogramVec
	transitionCounter         *prometheus.CounterVec
	insufficientFundsCounter  *prometheus.CounterVec
	lockWaitHistogram         prometheus.Histogram
	lockTimeoutCounter        prometheus.Counter
	ledgerImbalanceCounter    prometheus.Counter
	idempotencyCounter        *prometheus.CounterVec
	workerRunCounter          *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transaction_transitions_total",
			Help: "Transaction lifecycle transitions and their outcomes",
		}, []string{"action", "outcome"})

		insufficientFundsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insufficient_funds_total",
			Help: "Settlements refused for lack of available funds",
		}, []string{"currency"})

		lockWaitHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "account_lock_wait_seconds",
			Help:    "Time spent acquiring per-account locks",
			Buckets: prometheus.DefBuckets,
		})

		lockTimeoutCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "account_lock_timeouts_total",
			Help: "Lock acquisitions abandoned on timeout",
		})

		ledgerImbalanceCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Number of times the integrity sweep found a nonzero net position",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			transitionCounter,
			insufficientFundsCounter,
			lockWaitHistogram,
			lockTimeoutCounter,
			ledgerImbalanceCounter,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTransition(action, outcome string) {
	if transitionCounter == nil {
		return
	}
	transitionCounter.WithLabelValues(action, outcome).Inc()
}

func IncrementInsufficientFunds(currency string) {
	if insufficientFundsCounter == nil {
		return
	}
	insufficientFundsCounter.WithLabelValues(currency).Inc()
}

func ObserveLockWait(duration time.Duration) {
	if lockWaitHistogram == nil {
		return
	}
	lockWaitHistogram.Observe(duration.Seconds())
}

func IncrementLockTimeout() {
	if lockTimeoutCounter == nil {
		return
	}
	lockTimeoutCounter.Inc()
}

func IncrementLedgerImbalance() {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
