package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockmanch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mockmanch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WalletOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockmanch_wallet_operations_total",
			Help: "Wallet debits and credits by outcome",
		},
		[]string{"kind", "reason", "outcome"},
	)

	WalletTokensMoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockmanch_wallet_tokens_total",
			Help: "Tokens debited or credited",
		},
		[]string{"kind"},
	)

	WalletsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mockmanch_wallets_created_total",
			Help: "Wallets created with a welcome grant",
		},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockmanch_purchases_total",
			Help: "Token purchases by plan and outcome",
		},
		[]string{"plan", "outcome"},
	)

	GateOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockmanch_charge_gate_outcomes_total",
			Help: "Charge gate decisions by service",
		},
		[]string{"service", "outcome"},
	)

	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockmanch_ai_requests_total",
			Help: "Calls to the AI microservice",
		},
		[]string{"endpoint", "outcome"},
	)

	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mockmanch_ai_request_duration_seconds",
			Help:    "AI microservice call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)

	LedgerEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockmanch_ledger_events_total",
			Help: "Ledger events by delivery outcome",
		},
		[]string{"outcome"},
	)

	RoomEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockmanch_room_events_total",
			Help: "Room membership events",
		},
		[]string{"event"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordWalletOperation counts one debit or credit attempt. amount is only
// added to the token counter when outcome is "ok".
func RecordWalletOperation(kind, reason, outcome string, amount int) {
	WalletOperationsTotal.WithLabelValues(kind, reason, outcome).Inc()
	if outcome == "ok" && amount > 0 {
		WalletTokensMoved.WithLabelValues(kind).Add(float64(amount))
	}
}

func RecordWalletCreated() {
	WalletsCreatedTotal.Inc()
}

func RecordPurchase(plan, outcome string) {
	PurchasesTotal.WithLabelValues(plan, outcome).Inc()
}

func RecordGateOutcome(service, outcome string) {
	GateOutcomesTotal.WithLabelValues(service, outcome).Inc()
}

func RecordAIRequest(endpoint, outcome string, duration float64) {
	AIRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	AIRequestDuration.WithLabelValues(endpoint).Observe(duration)
}

func RecordLedgerEvents(outcome string, n int) {
	LedgerEventsTotal.WithLabelValues(outcome).Add(float64(n))
}

func RecordRoomEvent(event string) {
	RoomEventsTotal.WithLabelValues(event).Inc()
}
