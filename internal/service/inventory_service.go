package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forest-fashion/internal/models"
	"forest-fashion/internal/redisclient"
	"forest-fashion/internal/stock"
	"forest-fashion/internal/store"
	"forest-fashion/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const sweepBatchSize = 100

// InventoryService owns variant stock reservations. Postgres decides every
// reservation under a row lock; the Redis mirror only turns away requests
// it already knows cannot be covered.
type InventoryService struct {
	reservations ReservationRepository
	products     ProductRepository
	mirror       StockMirror
	publisher    EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	reservations ReservationRepository,
	products ProductRepository,
	mirror StockMirror,
	publisher EventPublisher,
) *InventoryService {
	return &InventoryService{
		reservations: reservations,
		products:     products,
		mirror:       mirror,
		publisher:    publisher,
		logger:       util.GetLogger(),
		now:          time.Now,
	}
}

// ReserveRequest asks for quantity of one color/size of a product.
type ReserveRequest struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// Reserve holds stock for the request. With a positive ttl the hold expires
// and is released by the sweeper unless an order claims it first.
func (s *InventoryService) Reserve(ctx context.Context, req ReserveRequest, ttl time.Duration) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Reserve",
		attribute.String("product_id", req.ProductID),
		attribute.String("variant", stock.Key(req.Color, req.Size)),
		attribute.Int("quantity", req.Quantity))
	defer span.End()

	start := time.Now()
	defer func() {
		util.InventoryReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if req.ProductID == "" || req.Color == "" || req.Size == "" {
		return nil, invalid("productId", "productId, color and size are required")
	}
	if req.Quantity <= 0 {
		return nil, invalid("quantity", "quantity must be positive")
	}

	field := stock.Key(req.Color, req.Size)
	gated := false
	switch res, err := s.mirror.ReserveStock(ctx, req.ProductID, field, req.Quantity); {
	case err != nil:
		s.logger.Warn("Stock mirror unavailable, using database only",
			zap.String("product_id", req.ProductID), zap.Error(err))
	case res == redisclient.GateRejected:
		util.ReservationsTotal.WithLabelValues("rejected_fast").Inc()
		return nil, fmt.Errorf("%w: %s %s", ErrOutOfStock, req.ProductID, field)
	case res == redisclient.GateAccepted:
		gated = true
	}

	r := &models.Reservation{
		Token:     uuid.New().String(),
		ProductID: req.ProductID,
		Color:     req.Color,
		Size:      req.Size,
		Quantity:  req.Quantity,
	}
	if ttl > 0 {
		expires := s.now().Add(ttl)
		r.ExpiresAt = &expires
	}

	entry, err := s.reservations.ReserveStockTx(ctx, r)
	if err != nil {
		if gated {
			if rerr := s.mirror.ReleaseStock(ctx, req.ProductID, field, req.Quantity); rerr != nil {
				s.logger.Error("Failed to release stock gate", zap.Error(rerr))
			}
		}
		util.RecordError(span, err)
		return nil, s.reserveError(ctx, req, err)
	}

	if !gated {
		s.resync(ctx, req.ProductID)
	}

	util.ReservationsTotal.WithLabelValues("reserved").Inc()
	s.logger.Info("Stock reserved",
		zap.String("token", r.Token),
		zap.String("product_id", r.ProductID),
		zap.String("variant", field),
		zap.Int("quantity", r.Quantity))

	s.checkLow(ctx, r.ProductID, r.Color, entry)
	return r, nil
}

func (s *InventoryService) reserveError(ctx context.Context, req ReserveRequest, err error) error {
	switch {
	case errors.Is(err, stock.ErrInsufficient), errors.Is(err, stock.ErrUnavailable):
		util.ReservationsTotal.WithLabelValues("rejected").Inc()
		// the mirror let it through, so it is stale
		s.resync(ctx, req.ProductID)
		return fmt.Errorf("%w: %v", ErrOutOfStock, err)
	case errors.Is(err, stock.ErrInvalidQuantity):
		return invalid("quantity", "quantity must be positive")
	case errors.Is(err, store.ErrNotFound):
		util.ReservationsTotal.WithLabelValues("not_found").Inc()
		return notFound("Product not found")
	default:
		util.ReservationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("reserve stock: %w", err)
	}
}

// Release returns a held reservation to available stock. Releasing an
// already settled token is a no-op.
func (s *InventoryService) Release(ctx context.Context, token, reason string) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Release", attribute.String("token", token))
	defer span.End()

	r, entry, err := s.reservations.ReleaseReservationTx(ctx, token)
	if err != nil {
		util.RecordError(span, err)
		return nil, orNotFound(err, "Reservation not found")
	}
	if entry == nil {
		return r, nil
	}

	if err := s.mirror.ReleaseStock(ctx, r.ProductID, stock.Key(r.Color, r.Size), r.Quantity); err != nil {
		s.logger.Warn("Failed to release mirrored stock", zap.String("token", token), zap.Error(err))
	}
	util.ReservationsSettledTotal.WithLabelValues(models.ReservationReleased, reason).Inc()
	s.logger.Info("Reservation released", zap.String("token", token), zap.String("reason", reason))
	return r, nil
}

// Commit turns a held reservation into a sale. The mirror tracks available
// stock, which a commit leaves unchanged.
func (s *InventoryService) Commit(ctx context.Context, token, reason string) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Commit", attribute.String("token", token))
	defer span.End()

	r, entry, err := s.reservations.CommitReservationTx(ctx, token)
	if err != nil {
		util.RecordError(span, err)
		return nil, orNotFound(err, "Reservation not found")
	}
	if entry == nil {
		return r, nil
	}

	util.ReservationsSettledTotal.WithLabelValues(models.ReservationCommitted, reason).Inc()
	s.logger.Info("Reservation committed", zap.String("token", token), zap.String("reason", reason))
	return r, nil
}

// Lookup returns the reservation behind a token.
func (s *InventoryService) Lookup(ctx context.Context, token string) (*models.Reservation, error) {
	r, err := s.reservations.GetReservation(ctx, token)
	if err != nil {
		return nil, orNotFound(err, "Reservation not found")
	}
	return r, nil
}

// Attach hands held reservations over to an order; they no longer expire.
func (s *InventoryService) Attach(ctx context.Context, orderID string, tokens []string) error {
	return s.reservations.AttachReservations(ctx, orderID, tokens)
}

// SettleOrder applies an order status to the order's reservations: shipped
// and delivered commit them, cancelled releases them. Other statuses leave
// them held.
func (s *InventoryService) SettleOrder(ctx context.Context, orderID, status string) error {
	var settle func(context.Context, string, string) (*models.Reservation, error)
	switch status {
	case models.OrderStatusShipped, models.OrderStatusDelivered:
		settle = s.Commit
	case models.OrderStatusCancelled:
		settle = s.Release
	default:
		return nil
	}

	reservations, err := s.reservations.GetReservationsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load reservations of order %s: %w", orderID, err)
	}

	var errs []error
	for _, r := range reservations {
		if r.Status != models.ReservationHeld {
			continue
		}
		if _, err := settle(ctx, r.Token, "order_"+status); err != nil {
			errs = append(errs, fmt.Errorf("settle %s: %w", r.Token, err))
		}
	}
	return errors.Join(errs...)
}

// ReleaseExpired releases cart holds past their expiry that no order
// claimed, and returns how many were released.
func (s *InventoryService) ReleaseExpired(ctx context.Context) (int, error) {
	expired, err := s.reservations.ListExpiredReservations(ctx, s.now(), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	released := 0
	for _, r := range expired {
		if _, err := s.Release(ctx, r.Token, "expired"); err != nil {
			s.logger.Error("Failed to release expired reservation", zap.String("token", r.Token), zap.Error(err))
			continue
		}
		released++
	}
	return released, nil
}

// SyncProduct rebuilds the mirror entry of one product.
func (s *InventoryService) SyncProduct(ctx context.Context, p *models.Product) error {
	if len(p.Variants) == 0 {
		return s.mirror.DeleteProductStock(ctx, p.ID)
	}
	return s.mirror.SyncProductStock(ctx, p.ID, stock.AvailabilityByKey(p.Variants))
}

// ForgetProduct drops the mirror entry of a deleted product.
func (s *InventoryService) ForgetProduct(ctx context.Context, productID string) error {
	return s.mirror.DeleteProductStock(ctx, productID)
}

// SyncAll rebuilds the mirror for every variant product.
func (s *InventoryService) SyncAll(ctx context.Context) (int, error) {
	products, err := s.products.ListVariantProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list variant products: %w", err)
	}
	for i := range products {
		if err := s.SyncProduct(ctx, &products[i]); err != nil {
			return i, fmt.Errorf("sync product %s: %w", products[i].ID, err)
		}
	}
	return len(products), nil
}

func (s *InventoryService) resync(ctx context.Context, productID string) {
	p, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		s.logger.Warn("Failed to load product for stock sync", zap.String("product_id", productID), zap.Error(err))
		return
	}
	if err := s.SyncProduct(ctx, p); err != nil {
		s.logger.Warn("Failed to sync stock mirror", zap.String("product_id", productID), zap.Error(err))
	}
}

func (s *InventoryService) checkLow(ctx context.Context, productID, color string, entry models.SizeStock) {
	level := stock.SizeLevel(entry)
	if !level.IsLow {
		return
	}

	util.LowStockEventsTotal.Inc()
	event := &models.StockLowEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockLow,
			Timestamp: s.now(),
		},
		ProductID: productID,
		Color:     color,
		Size:      entry.Size,
		Available: level.Available,
		Threshold: level.Threshold,
	}
	if err := s.publisher.PublishStockLow(ctx, event); err != nil {
		s.logger.Error("Failed to publish STOCK_LOW event", zap.Error(err))
	}
}
