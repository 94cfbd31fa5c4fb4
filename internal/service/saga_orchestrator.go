package service

import (
	"context"
	"fmt"

	"forest-fashion/internal/models"
	"forest-fashion/internal/util"

	"go.uber.org/zap"
)

// SagaOrchestrator reacts to store events: it settles an order's stock
// reservations when the order ships, is delivered or is cancelled.
type SagaOrchestrator struct {
	events    EventLog
	inventory *InventoryService
	logger    *zap.Logger
}

// NewSagaOrchestrator creates a new saga orchestrator
func NewSagaOrchestrator(events EventLog, inventory *InventoryService) *SagaOrchestrator {
	return &SagaOrchestrator{
		events:    events,
		inventory: inventory,
		logger:    util.GetLogger(),
	}
}

// HandleOrderStatusChanged commits or releases the order's reservations.
func (so *SagaOrchestrator) HandleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	ctx, span := util.StartSpan(ctx, "SagaOrchestrator.HandleOrderStatusChanged")
	defer span.End()

	processed, err := so.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		so.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	so.logger.Info("Handling order status change",
		zap.String("order_id", event.OrderID),
		zap.String("from", event.PreviousStatus),
		zap.String("to", event.Status))

	if err := so.inventory.SettleOrder(ctx, event.OrderID, event.Status); err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to settle reservations: %w", err)
	}

	if err := so.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		so.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// HandleStockLow raises a restock warning once per event.
func (so *SagaOrchestrator) HandleStockLow(ctx context.Context, event *models.StockLowEvent) error {
	processed, err := so.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		return nil
	}

	so.logger.Warn("Low stock",
		zap.String("product_id", event.ProductID),
		zap.String("color", event.Color),
		zap.String("size", event.Size),
		zap.Int("available", event.Available),
		zap.Int("threshold", event.Threshold))

	if err := so.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		so.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}
