package matching

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/config"
	"github.com/cityhail/dispatch/pkg/eventbus"
	"github.com/cityhail/dispatch/pkg/logger"
)

const eventSource = "dispatch"

// Engine owns the three dispatch loops and the driver accept/decline
// actions. A single Engine runs per process; concurrent instances stay
// correct through row locking but will contend on the same rides.
type Engine struct {
	store  Store
	bus    Bus
	events EventPublisher // nil when the event bus is disabled
	cfg    config.DispatchConfig

	// now is the engine clock, overridable in tests.
	now func() time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewEngine assembles an engine. bus and events may both be nil; the
// engine then runs the state machine without push or event delivery.
func NewEngine(store Store, bus Bus, events EventPublisher, cfg config.DispatchConfig) *Engine {
	return &Engine{
		store:  store,
		bus:    bus,
		events: events,
		cfg:    cfg,
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// WithNow overrides the engine clock (useful for tests).
func (e *Engine) WithNow(now func() time.Time) {
	e.now = now
}

// Start launches the dispatch, expiry and cleanup loops. Each loop runs an
// immediate first pass, then ticks at its configured interval until ctx is
// cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	logger.Info("starting dispatch engine",
		zap.Duration("dispatch_interval", e.cfg.DispatchInterval),
		zap.Duration("expiry_interval", e.cfg.ExpiryInterval),
		zap.Duration("cleanup_interval", e.cfg.CleanupInterval),
		zap.Duration("offer_timeout", e.cfg.OfferTimeout),
		zap.Float64("base_radius_km", e.cfg.BaseRadiusKm),
		zap.Float64("radius_increment_km", e.cfg.RadiusIncrementKm),
	)

	e.wg.Add(3)
	go e.runLoop(ctx, "dispatch", e.cfg.DispatchInterval, e.dispatchPass)
	go e.runLoop(ctx, "expiry", e.cfg.ExpiryInterval, e.expiryPass)
	go e.runLoop(ctx, "cleanup", e.cfg.CleanupInterval, e.cleanupPass)
}

// Stop requests shutdown and waits for the loops to drain.
func (e *Engine) Stop() {
	close(e.done)
	e.wg.Wait()
	logger.Info("dispatch engine stopped")
}

func (e *Engine) runLoop(ctx context.Context, name string, interval time.Duration, pass func(context.Context)) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	pass(ctx)

	for {
		select {
		case <-ticker.C:
			pass(ctx)
		case <-ctx.Done():
			logger.Info("dispatch loop stopped", zap.String("loop", name))
			return
		case <-e.done:
			logger.Info("dispatch loop shutdown requested", zap.String("loop", name))
			return
		}
	}
}

// searchRadius is the adaptive radius for the ride's current attempt count.
func (e *Engine) searchRadius(attempts int) float64 {
	return SearchRadius(e.cfg.BaseRadiusKm, e.cfg.RadiusIncrementKm, attempts)
}

// publish sends a lifecycle event, logging failures instead of propagating
// them: dispatch outcomes are already committed by the time events go out.
func (e *Engine) publish(ctx context.Context, subject string, data interface{}) {
	if e.events == nil {
		return
	}

	event, err := eventbus.NewEvent(subject, eventSource, data)
	if err != nil {
		logger.Warn("failed to build event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := e.events.Publish(ctx, subject, event); err != nil {
		logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
