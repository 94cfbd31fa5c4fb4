package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"forest-fashion/internal/models"
	"forest-fashion/internal/store"
	"forest-fashion/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderOptions are the checkout rules.
type OrderOptions struct {
	// StockEnforcement reserves variant stock before an order is stored.
	StockEnforcement bool
	IdempotencyTTL   time.Duration
	// HoldTTL bounds checkout holds until the order claims them, so a submit
	// that dies before attaching leaves them to the sweeper.
	HoldTTL          time.Duration
}

const defaultHoldTTL = 15 * time.Minute

// OrderService handles order business logic
type OrderService struct {
	orders      OrderRepository
	products    ProductRepository
	users       UserRepository
	inventory   *InventoryService
	idempotency IdempotencyCache
	publisher   EventPublisher
	opts        OrderOptions
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderRepository,
	products ProductRepository,
	users UserRepository,
	inventory *InventoryService,
	idempotency IdempotencyCache,
	publisher EventPublisher,
	opts OrderOptions,
) *OrderService {
	if opts.HoldTTL <= 0 {
		opts.HoldTTL = defaultHoldTTL
	}
	return &OrderService{
		orders:      orders,
		products:    products,
		users:       users,
		inventory:   inventory,
		idempotency: idempotency,
		publisher:   publisher,
		opts:        opts,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// SubmitOrderRequest represents a checkout submission
type SubmitOrderRequest struct {
	Items           []models.OrderItem      `json:"items"`
	Total           decimal.NullDecimal     `json:"total"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                  `json:"paymentMethod"`
	Notes           string                  `json:"notes"`
	IdempotencyKey  string                  `json:"idempotencyKey,omitempty"`
	// Reservations are cart hold tokens; each covers the item it matches
	// instead of a new reservation.
	Reservations    []string                `json:"reservations,omitempty"`
}

func (r *SubmitOrderRequest) validate() error {
	if len(r.Items) == 0 || !r.Total.Valid || r.Total.Decimal.IsZero() ||
		r.ShippingAddress == nil || r.PaymentMethod == "" {
		return invalid("", "Missing required fields")
	}
	if !oneOf(r.PaymentMethod, models.PaymentMethods) {
		return invalid("paymentMethod", "Invalid payment method")
	}
	for i, item := range r.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return invalid(fmt.Sprintf("items[%d]", i), "Each item needs a product and a positive quantity")
		}
	}
	return nil
}

// Submit stores an order. Cart holds passed in req.Reservations cover the
// items they match; remaining items of variant products are reserved. If
// any item cannot be covered nothing is stored and every hold taken by this
// call is released. Cart holds are left as they were. The bool reports whether a new order was created, as
// opposed to replaying an earlier one for the same idempotency key.
func (s *OrderService) Submit(ctx context.Context, caller Caller, req *SubmitOrderRequest) (*models.OrderView, bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Submit")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, false, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", existing.ID))
			view, err := s.view(ctx, existing)
			return view, false, err
		}
	}

	if subtotal := models.OrderItems(req.Items).Subtotal(); !subtotal.Equal(req.Total.Decimal) {
		util.OrderTotalMismatchTotal.Inc()
		s.logger.Warn("Submitted total differs from item sum",
			zap.String("total", req.Total.Decimal.String()),
			zap.String("item_sum", subtotal.String()))
	}

	claimed, err := s.claimHolds(ctx, req.Items, req.Reservations)
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, false, err
	}

	fresh, err := s.reserveItems(ctx, req.Items, claimed)
	if err != nil {
		util.RecordError(span, err)
		return nil, false, err
	}
	tokens := append(claimedTokens(claimed), fresh...)

	order := &models.Order{
		ID:              uuid.New().String(),
		Items:           req.Items,
		Total:           req.Total.Decimal,
		Status:          models.OrderStatusPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		ShippingAddress: *req.ShippingAddress,
		Notes:           req.Notes,
	}
	if caller.UserID != "" {
		order.UserID = &caller.UserID
	}
	if req.IdempotencyKey != "" {
		order.IdempotencyKey = &req.IdempotencyKey
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.releaseAll(ctx, fresh, "order_failed")
		if errors.Is(err, store.ErrDuplicate) && order.IdempotencyKey != nil {
			// lost a race against the same key
			existing, ferr := s.orders.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if ferr == nil && existing != nil {
				view, verr := s.view(ctx, existing)
				return view, false, verr
			}
		}
		util.OrdersRejectedTotal.WithLabelValues("db_error").Inc()
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.inventory.Attach(ctx, order.ID, tokens); err != nil {
		s.logger.Error("Failed to attach reservations", zap.String("order_id", order.ID), zap.Error(err))
	}
	if order.IdempotencyKey != nil {
		if err := s.idempotency.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to cache idempotency key", zap.Error(err))
		}
	}

	util.OrdersCreatedTotal.WithLabelValues(order.PaymentMethod).Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("payment_method", order.PaymentMethod),
		zap.Int("reservations", len(tokens)),
		zap.Int("cart_holds", len(claimed)))

	s.publishPlaced(ctx, order, tokens)

	view, err := s.view(ctx, order)
	return view, true, err
}

func (s *OrderService) findByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	orderID, err := s.idempotency.GetIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency cache unavailable", zap.Error(err))
	}
	if orderID != "" {
		order, err := s.orders.GetOrderByID(ctx, orderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return s.orders.GetOrderByIdempotencyKey(ctx, key)
}

// claimHolds matches each cart hold token to one order item with the same
// product, color, size and quantity. It returns item index -> token.
func (s *OrderService) claimHolds(ctx context.Context, items []models.OrderItem, tokens []string) (map[int]string, error) {
	claimed := make(map[int]string, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		if seen[token] {
			return nil, invalid("reservations", "Reservation listed twice")
		}
		seen[token] = true

		r, err := s.inventory.Lookup(ctx, token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, invalid("reservations", "Reservation not found")
			}
			return nil, err
		}
		if r.Status != models.ReservationHeld || r.OrderID != nil ||
			(r.ExpiresAt != nil && !r.ExpiresAt.After(s.inventory.now())) {
			return nil, invalid("reservations", "Reservation is no longer held")
		}

		match := -1
		for i, item := range items {
			if _, taken := claimed[i]; taken {
				continue
			}
			if item.ProductID == r.ProductID && item.Color == r.Color &&
				item.Size == r.Size && item.Quantity == r.Quantity {
				match = i
				break
			}
		}
		if match < 0 {
			return nil, invalid("reservations", "Reservation does not match any order item")
		}
		claimed[match] = token
	}
	return claimed, nil
}

func claimedTokens(claimed map[int]string) []string {
	tokens := make([]string, 0, len(claimed))
	for _, token := range claimed {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// reserveItems holds stock for every item of a variant product not already
// covered by a cart hold and returns the new reservation tokens. Legacy
// products and unknown product ids carry no counters and are only
// snapshotted.
func (s *OrderService) reserveItems(ctx context.Context, items []models.OrderItem, claimed map[int]string) ([]string, error) {
	if !s.opts.StockEnforcement {
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	for i, item := range items {
		if _, ok := claimed[i]; !ok {
			ids = append(ids, item.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load order products: %w", err)
	}
	tracked := make(map[string]bool, len(products))
	for _, p := range products {
		tracked[p.ID] = len(p.Variants) > 0
	}

	tokens := make([]string, 0, len(items))
	for i, item := range items {
		if _, ok := claimed[i]; ok || !tracked[item.ProductID] {
			continue
		}
		r, err := s.inventory.Reserve(ctx, ReserveRequest{
			ProductID: item.ProductID,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
		}, s.opts.HoldTTL)
		if err != nil {
			s.releaseAll(ctx, tokens, "order_rejected")
			util.OrdersRejectedTotal.WithLabelValues("out_of_stock").Inc()
			return nil, fmt.Errorf("%s (%s/%s): %w", item.Name, item.Color, item.Size, err)
		}
		tokens = append(tokens, r.Token)
	}
	return tokens, nil
}

// releaseAll is the compensation for a failed submit.
func (s *OrderService) releaseAll(ctx context.Context, tokens []string, reason string) {
	for _, token := range tokens {
		if _, err := s.inventory.Release(ctx, token, reason); err != nil {
			s.logger.Error("Failed to compensate reservation",
				zap.String("token", token),
				zap.Error(err))
		}
	}
}

func (s *OrderService) publishPlaced(ctx context.Context, order *models.Order, tokens []string) {
	items := make([]models.OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = models.OrderItemData{
			ProductID: item.ProductID,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.Price.String(),
		}
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: s.now(),
		},
		OrderID:       order.ID,
		Total:         order.Total.String(),
		PaymentMethod: order.PaymentMethod,
		Items:         items,
		Reservations:  tokens,
	}
	if order.UserID != nil {
		event.UserID = *order.UserID
	}

	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish ORDER_PLACED event", zap.Error(err))
	}
}

// List returns every order for admins and the caller's own orders otherwise,
// newest first.
func (s *OrderService) List(ctx context.Context, caller Caller) ([]models.OrderView, error) {
	var userID *string
	if !caller.IsAdmin() {
		userID = &caller.UserID
	}
	orders, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.populate(ctx, orders)
}

// Get returns one order. Non-admins only see their own orders.
func (s *OrderService) Get(ctx context.Context, caller Caller, id string) (*models.OrderView, error) {
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, orNotFound(err, "Order not found")
	}
	if !caller.IsAdmin() && (order.UserID == nil || *order.UserID != caller.UserID) {
		return nil, notFound("Order not found")
	}
	return s.view(ctx, order)
}

// UpdateStatus sets the order status and/or payment status. A status change
// is announced on the bus, whose consumer settles the reservations; if the
// announcement fails they are settled here.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status, paymentStatus string) (*models.OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if status != "" && !oneOf(status, models.OrderStatuses) {
		return nil, invalid("status", "Invalid status")
	}
	if paymentStatus != "" && !oneOf(paymentStatus, models.PaymentStatuses) {
		return nil, invalid("paymentStatus", "Invalid payment status")
	}

	previous, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, orNotFound(err, "Order not found")
	}

	order, err := s.orders.UpdateOrderStatus(ctx, id, status, paymentStatus)
	if err != nil {
		util.RecordError(span, err)
		return nil, orNotFound(err, "Order not found")
	}

	if status != "" && status != previous.Status {
		util.OrderStatusChangesTotal.WithLabelValues(status).Inc()
		s.logger.Info("Order status changed",
			zap.String("order_id", id),
			zap.String("from", previous.Status),
			zap.String("to", status))

		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: s.now(),
			},
			OrderID:        id,
			PreviousStatus: previous.Status,
			Status:         order.Status,
			PaymentStatus:  order.PaymentStatus,
		}
		if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish ORDER_STATUS_CHANGED event, settling inline", zap.Error(err))
			if err := s.inventory.SettleOrder(ctx, id, order.Status); err != nil {
				s.logger.Error("Failed to settle reservations", zap.String("order_id", id), zap.Error(err))
			}
		}
	}

	return s.view(ctx, order)
}

// FixLegacyOrders fills missing payment fields with cash on delivery and
// pending.
func (s *OrderService) FixLegacyOrders(ctx context.Context) (int64, error) {
	n, err := s.orders.FixLegacyOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("fix legacy orders: %w", err)
	}
	if n > 0 {
		s.logger.Info("Legacy orders updated", zap.Int64("count", n))
	}
	return n, nil
}

func (s *OrderService) view(ctx context.Context, order *models.Order) (*models.OrderView, error) {
	views, err := s.populate(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// populate attaches customer and product summaries to orders.
func (s *OrderService) populate(ctx context.Context, orders []models.Order) ([]models.OrderView, error) {
	return populateOrders(ctx, s.users, s.products, orders)
}

func populateOrders(ctx context.Context, users UserRepository, products ProductRepository, orders []models.Order) ([]models.OrderView, error) {
	userIDs := make([]string, 0, len(orders))
	productIDs := make([]string, 0)
	seenUser := map[string]bool{}
	seenProduct := map[string]bool{}
	for _, o := range orders {
		if o.UserID != nil && !seenUser[*o.UserID] {
			seenUser[*o.UserID] = true
			userIDs = append(userIDs, *o.UserID)
		}
		for _, item := range o.Items {
			if !seenProduct[item.ProductID] {
				seenProduct[item.ProductID] = true
				productIDs = append(productIDs, item.ProductID)
			}
		}
	}

	userList, err := users.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load order customers: %w", err)
	}
	customers := make(map[string]*models.UserSummary, len(userList))
	for _, u := range userList {
		customers[u.ID] = &models.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	}

	productList, err := products.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load order products: %w", err)
	}
	summaries := make(map[string]*models.ProductSummary, len(productList))
	for _, p := range productList {
		summaries[p.ID] = &models.ProductSummary{ID: p.ID, Name: p.Name, Images: p.Images}
	}

	views := make([]models.OrderView, len(orders))
	for i, o := range orders {
		view := models.OrderView{Order: o, Items: make([]models.OrderItemView, len(o.Items))}
		if o.UserID != nil {
			view.Customer = customers[*o.UserID]
		}
		for j, item := range o.Items {
			view.Items[j] = models.OrderItemView{OrderItem: item, Product: summaries[item.ProductID]}
		}
		views[i] = view
	}
	return views, nil
}
