package models

import "time"

// Event types
const (
	EventTypeProductCreated     = "PRODUCT_CREATED"
	EventTypeProductUpdated     = "PRODUCT_UPDATED"
	EventTypeProductDeleted     = "PRODUCT_DELETED"
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeStockLow           = "STOCK_LOW"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductEvent published on admin product changes
type ProductEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Status    string `json:"status,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

// OrderPlacedEvent published when an order is persisted
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id,omitempty"`
	Total         string          `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Items         []OrderItemData `json:"items"`
	Reservations  []string        `json:"reservations,omitempty"`
}

// OrderStatusChangedEvent published when an admin moves an order along
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID        string `json:"order_id"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
}

// StockLowEvent published when a size drops to or below its threshold
type StockLowEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Available int    `json:"available"`
	Threshold int    `json:"threshold"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}
