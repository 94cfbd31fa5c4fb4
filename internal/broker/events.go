package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"forest-fashion/internal/models"
	"forest-fashion/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishProductEvent publishes PRODUCT_CREATED, PRODUCT_UPDATED or PRODUCT_DELETED
func (ep *EventPublisher) PublishProductEvent(ctx context.Context, event *models.ProductEvent) error {
	return ep.producer.PublishEvent(ctx, "product-"+event.ProductID, event.EventType, event)
}

// PublishOrderPlaced publishes ORDER_PLACED
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event.EventType, event)
}

// PublishOrderStatusChanged publishes ORDER_STATUS_CHANGED
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event.EventType, event)
}

// PublishStockLow publishes STOCK_LOW
func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	return ep.producer.PublishEvent(ctx, "product-"+event.ProductID, event.EventType, event)
}

// ErrMalformedEvent marks messages that can never be decoded. Consumers
// skip them instead of retrying.
var ErrMalformedEvent = errors.New("malformed event")

// EventHandler handles incoming events
type EventHandler struct {
	onOrderStatusChanged func(context.Context, *models.OrderStatusChangedEvent) error
	onStockLow           func(context.Context, *models.StockLowEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderStatusChanged registers a handler for ORDER_STATUS_CHANGED events
func (eh *EventHandler) OnOrderStatusChanged(handler func(context.Context, *models.OrderStatusChangedEvent) error) {
	eh.onOrderStatusChanged = handler
}

// OnStockLow registers a handler for STOCK_LOW events
func (eh *EventHandler) OnStockLow(handler func(context.Context, *models.StockLowEvent) error) {
	eh.onStockLow = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: base event: %v", ErrMalformedEvent, err)
	}

	logger := util.GetLogger().With(
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))
	logger.Debug("Handling event")

	switch baseEvent.EventType {
	case models.EventTypeOrderStatusChanged:
		if eh.onOrderStatusChanged != nil {
			var event models.OrderStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: ORDER_STATUS_CHANGED: %v", ErrMalformedEvent, err)
			}
			return eh.onOrderStatusChanged(ctx, &event)
		}

	case models.EventTypeStockLow:
		if eh.onStockLow != nil {
			var event models.StockLowEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: STOCK_LOW: %v", ErrMalformedEvent, err)
			}
			return eh.onStockLow(ctx, &event)
		}

	default:
		logger.Debug("Unhandled event type")
	}

	return nil
}
