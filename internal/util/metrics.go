package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_added_total",
		Help: "Total number of successful add-to-cart operations",
	})

	CartOperationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_failed_total",
		Help: "Total number of rejected cart operations",
	}, []string{"operation", "reason"})

	DiscountedItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_discounted_items_total",
		Help: "Total number of cart lines that received a discount",
	})

	CheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Total number of orders created by checkout",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	OrderValue = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_value",
		Help:    "Order totals at checkout",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	StockReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reserve_latency_seconds",
		Help:    "Latency of stock reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	StockReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of failed stock reservations",
	}, []string{"reason"})

	StockReleasedUnitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_released_units_total",
		Help: "Total number of stock units returned by cancellations and deletions",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of applied order status transitions",
	}, []string{"from", "to"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected order status transitions",
	}, []string{"reason"})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_deleted_total",
		Help: "Total number of deleted orders",
	})

	EventsPublishFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Total number of domain events that could not be published",
	}, []string{"event_type"})

	PublisherBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "event_publisher_breaker_state",
		Help: "Event publisher circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})

	MirrorDeltasAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_mirror_deltas_applied_total",
		Help: "Total number of stock deltas applied to the inventory mirror",
	})

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
