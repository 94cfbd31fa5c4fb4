package worker

import (
	"context"
	"time"

	"forest-fashion/internal/broker"
	"forest-fashion/internal/service"
	"forest-fashion/internal/util"

	"go.uber.org/zap"
)

// MessageSource delivers bus messages to a handler until ctx is done.
// *broker.Consumer satisfies it.
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// OrderEventsWorker feeds store events from the bus into the saga.
type OrderEventsWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrderEventsWorker creates a new order events worker
func NewOrderEventsWorker(source MessageSource, saga *service.SagaOrchestrator) *OrderEventsWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderStatusChanged(saga.HandleOrderStatusChanged)
	eventHandler.OnStockLow(saga.HandleStockLow)

	return &OrderEventsWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled.
func (w *OrderEventsWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order events worker")
	return w.source.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderEventsWorker) Stop() error {
	w.logger.Info("Stopping order events worker")
	return w.source.Close()
}

// Locker is a lease shared between server instances.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Expirer releases overdue reservations.
type Expirer interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

const sweepLockKey = "reservation-sweeper"

// ReservationSweeper periodically releases cart holds nobody ordered. Only
// the instance holding the lock sweeps on a given tick.
type ReservationSweeper struct {
	inventory Expirer
	locker    Locker
	interval  time.Duration
	logger    *zap.Logger
}

// NewReservationSweeper creates a sweeper ticking every interval.
func NewReservationSweeper(inventory Expirer, locker Locker, interval time.Duration) *ReservationSweeper {
	return &ReservationSweeper{
		inventory: inventory,
		locker:    locker,
		interval:  interval,
		logger:    util.GetLogger(),
	}
}

// Start sweeps on every tick until ctx is cancelled.
func (s *ReservationSweeper) Start(ctx context.Context) {
	s.logger.Info("Starting reservation sweeper", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping reservation sweeper")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("Reservation sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce runs a single sweep if the lock is free and returns how many
// reservations were released.
func (s *ReservationSweeper) SweepOnce(ctx context.Context) (int, error) {
	acquired, err := s.locker.AcquireLock(ctx, sweepLockKey, s.interval)
	if err != nil {
		return 0, err
	}
	if !acquired {
		s.logger.Debug("Reservation sweep skipped, lock held elsewhere")
		return 0, nil
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.Background(), sweepLockKey); err != nil {
			s.logger.Warn("Failed to release sweep lock", zap.Error(err))
		}
	}()

	released, err := s.inventory.ReleaseExpired(ctx)
	if err != nil {
		return released, err
	}
	if released > 0 {
		s.logger.Info("Expired reservations released", zap.Int("count", released))
	}
	return released, nil
}
