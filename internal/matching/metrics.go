package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_passes_total",
		Help: "Total number of dispatch worker passes",
	})

	offersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_placed_total",
		Help: "Total number of offers placed to drivers",
	})

	offersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_expired_total",
		Help: "Total number of offers that timed out",
	})

	offersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_accepted_total",
		Help: "Total number of offers accepted by drivers",
	})

	offersDeclined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_declined_total",
		Help: "Total number of offers declined by drivers",
	})

	ridesCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_rides_cancelled_total",
		Help: "Total number of system-cancelled rides by reason",
	}, []string{"reason"})

	selectorMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_selector_misses_total",
		Help: "Dispatch passes where no candidate fell inside the search radius",
	})
)
