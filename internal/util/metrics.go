package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	}, []string{"payment_method"})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of rejected order submissions",
	}, []string{"reason"})

	OrderTotalMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_total_mismatch_total",
		Help: "Orders whose submitted total differs from the item snapshot sum",
	})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_changes_total",
		Help: "Total number of order status updates",
	}, []string{"status"})

	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_total",
		Help: "Stock reservation attempts by outcome",
	}, []string{"outcome"})

	ReservationsSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_settled_total",
		Help: "Reservations committed or released",
	}, []string{"result", "reason"})

	InventoryReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_reserve_latency_seconds",
		Help:    "Latency of inventory reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	LowStockEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_events_total",
		Help: "Total number of low-stock transitions observed",
	})

	ProductMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_mutations_total",
		Help: "Admin product create/update/delete operations",
	}, []string{"op"})

	AuthAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Login and registration attempts by result",
	}, []string{"kind", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
