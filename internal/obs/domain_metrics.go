package obs

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values for ShipmentMetrics.Processed.
const (
	ResultPriced  = "priced"
	ResultIgnored = "ignored"
)

// ShipmentMetrics groups Prometheus collectors for shipment pricing.
type ShipmentMetrics struct {
	// Processed counts processed input lines by result.
	Processed *prometheus.CounterVec
	// DiscountMinor sums granted discounts in minor currency units.
	DiscountMinor *prometheus.CounterVec
	// Free counts shipments whose whole price was discounted.
	Free *prometheus.CounterVec
}

// NewShipmentMetrics registers and returns shipment collectors on reg (default registerer when nil).
func NewShipmentMetrics(namespace string, reg prometheus.Registerer) *ShipmentMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &ShipmentMetrics{
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipments_processed_total",
			Help:      "Count of processed shipment records by outcome.",
		}, []string{"result"}),
		DiscountMinor: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipment_discount_minor_total",
			Help:      "Sum of granted shipment discounts in minor currency units.",
		}, []string{"provider", "size"}),
		Free: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipments_free_total",
			Help:      "Count of shipments discounted to a zero price.",
		}, []string{"provider", "size"}),
	}
	m.Processed = mustRegisterCounterVec(reg, m.Processed)
	m.DiscountMinor = mustRegisterCounterVec(reg, m.DiscountMinor)
	m.Free = mustRegisterCounterVec(reg, m.Free)
	return m
}

func mustRegisterCounterVec(reg prometheus.Registerer, counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register shipment metric: %w", err))
	}
	return counter
}
