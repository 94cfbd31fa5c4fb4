package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment methods
const (
	PaymentMethodCashOnDelivery = "cash_on_delivery"
	PaymentMethodVodafoneCash   = "vodafone_cash"
	PaymentMethodVisa           = "visa"
)

// Payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

var (
	OrderStatuses   = []string{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled}
	PaymentMethods  = []string{PaymentMethodCashOnDelivery, PaymentMethodVodafoneCash, PaymentMethodVisa}
	PaymentStatuses = []string{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed}
)

// Order is a customer order. Items and address are snapshots taken at
// submit time, not live references.
type Order struct {
	ID              string          `db:"id" json:"id"`
	UserID          *string         `db:"user_id" json:"userId,omitempty"`
	Items           OrderItems      `db:"items" json:"items"`
	Total           decimal.Decimal `db:"total" json:"total"`
	Status          string          `db:"status" json:"status"`
	PaymentMethod   string          `db:"payment_method" json:"paymentMethod"`
	PaymentStatus   string          `db:"payment_status" json:"paymentStatus"`
	ShippingAddress ShippingAddress `db:"shipping_address" json:"shippingAddress"`
	Notes           string          `db:"notes" json:"notes"`
	IdempotencyKey  *string         `db:"idempotency_key" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// OrderItem is the denormalized line snapshot.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
}

type OrderItems []OrderItem

// Subtotal sums price times quantity over the items.
func (it OrderItems) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range it {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
}

// OrderView is an order with customer and product data attached for display.
type OrderView struct {
	Order
	Customer *UserSummary    `json:"user,omitempty"`
	Items    []OrderItemView `json:"items"`
}

type OrderItemView struct {
	OrderItem
	Product *ProductSummary `json:"product,omitempty"`
}

// Reservation statuses
const (
	ReservationHeld      = "held"
	ReservationCommitted = "committed"
	ReservationReleased  = "released"
)

// Reservation is a quantity held against one variant size.
type Reservation struct {
	Token     string     `db:"token" json:"token"`
	ProductID string     `db:"product_id" json:"productId"`
	Color     string     `db:"color" json:"color"`
	Size      string     `db:"size" json:"size"`
	Quantity  int        `db:"quantity" json:"quantity"`
	Status    string     `db:"status" json:"status"`
	OrderID   *string    `db:"order_id" json:"orderId,omitempty"`
	ExpiresAt *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// DashboardStats is the admin dashboard aggregate.
type DashboardStats struct {
	TotalProducts int             `json:"totalProducts"`
	TotalOrders   int             `json:"totalOrders"`
	TotalUsers    int             `json:"totalUsers"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	RecentOrders  []OrderView     `json:"recentOrders"`
	TopProducts   []TopProduct    `json:"topProducts"`
}

// TopProduct is a product ranked by ordered quantity.
type TopProduct struct {
	ProductID string  `db:"product_id" json:"productId"`
	Count     int     `db:"count" json:"count"`
	Product   Product `db:"-" json:"product"`
}
