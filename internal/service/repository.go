package service

import (
	"context"
	"time"

	"forest-fashion/internal/models"
	"forest-fashion/internal/redisclient"

	"github.com/shopspring/decimal"
)

// The repositories below are implemented by *store.Store.

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	// UpdateProduct runs apply against the locked current row and stores
	// its result.
	UpdateProduct(ctx context.Context, id string, apply func(current *models.Product) (*models.Product, error)) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListVariantProducts(ctx context.Context) ([]models.Product, error)
}

type ReservationRepository interface {
	ReserveStockTx(ctx context.Context, r *models.Reservation) (models.SizeStock, error)
	ReleaseReservationTx(ctx context.Context, token string) (*models.Reservation, *models.SizeStock, error)
	CommitReservationTx(ctx context.Context, token string) (*models.Reservation, *models.SizeStock, error)
	AttachReservations(ctx context.Context, orderID string, tokens []string) error
	GetReservation(ctx context.Context, token string) (*models.Reservation, error)
	GetReservationsByOrder(ctx context.Context, orderID string) ([]models.Reservation, error)
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context, userID *string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status, paymentStatus string) (*models.Order, error)
	FixLegacyOrders(ctx context.Context) (int64, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	UpdateUserPassword(ctx context.Context, userID, hash string) error
	AdminExists(ctx context.Context) (bool, error)
	ReplacePasswordReset(ctx context.Context, r *models.PasswordReset) error
	GetPasswordReset(ctx context.Context, token string) (*models.PasswordReset, error)
	DeletePasswordReset(ctx context.Context, token string) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error
}

type ContactRepository interface {
	CreateContact(ctx context.Context, c *models.Contact) error
	ListContacts(ctx context.Context) ([]models.Contact, error)
	UpdateContactStatus(ctx context.Context, id, status string) (*models.Contact, error)
}

type NewsletterRepository interface {
	GetSubscription(ctx context.Context, email string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	SetSubscribed(ctx context.Context, email string, subscribed bool) error
}

type StatsRepository interface {
	CountProducts(ctx context.Context) (int, error)
	CountOrders(ctx context.Context) (int, error)
	CountUsers(ctx context.Context) (int, error)
	Revenue(ctx context.Context) (decimal.Decimal, error)
	RecentOrders(ctx context.Context, limit int) ([]models.Order, error)
	TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error)
}

// EventLog records consumed events so redeliveries are skipped.
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// EventPublisher is implemented by *broker.EventPublisher.
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event *models.ProductEvent) error
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}

// StockMirror is the Redis fast path in front of reservations, implemented
// by *redisclient.Client.
type StockMirror interface {
	ReserveStock(ctx context.Context, productID, field string, quantity int) (redisclient.GateResult, error)
	ReleaseStock(ctx context.Context, productID, field string, quantity int) error
	SyncProductStock(ctx context.Context, productID string, available map[string]int) error
	DeleteProductStock(ctx context.Context, productID string) error
}

// IdempotencyCache remembers which order an idempotency key produced.
type IdempotencyCache interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	SetIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error
}

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID string
	Email  string
	Role   string
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}
