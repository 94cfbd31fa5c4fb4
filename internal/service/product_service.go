package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"forest-fashion/internal/models"
	"forest-fashion/internal/stock"
	"forest-fashion/internal/store"
	"forest-fashion/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductService handles the catalogue and the admin product editor.
type ProductService struct {
	products  ProductRepository
	inventory *InventoryService
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewProductService creates a new product service
func NewProductService(products ProductRepository, inventory *InventoryService, publisher EventPublisher) *ProductService {
	return &ProductService{
		products:  products,
		inventory: inventory,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// NewProductView attaches the derived stock figures to a product.
func NewProductView(p models.Product) models.ProductView {
	return models.ProductView{
		Product:        p,
		TotalStock:     stock.TotalStock(&p),
		AvailableStock: stock.AvailableStock(&p),
		InStock:        stock.IsInStock(&p),
	}
}

// ImagesFromUploads turns uploaded files into data URL images; the first is
// the primary one.
func ImagesFromUploads(productName string, uploads []Upload) []models.Image {
	images := make([]models.Image, 0, len(uploads))
	for i, u := range uploads {
		images = append(images, models.Image{
			URL:       "data:" + u.MIME + ";base64," + base64.StdEncoding.EncodeToString(u.Data),
			AltText:   fmt.Sprintf("%s - Image %d", productName, i+1),
			IsPrimary: i == 0,
			Order:     i,
		})
	}
	return images
}

func (s *ProductService) List(ctx context.Context, filter models.ProductFilter) ([]models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.List")
	defer span.End()

	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	views := make([]models.ProductView, len(products))
	for i, p := range products {
		views[i] = NewProductView(p)
	}
	return views, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*models.ProductView, error) {
	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, orNotFound(err, "Product not found")
	}
	view := NewProductView(*p)
	return &view, nil
}

// StockLevel reports the stock of one size/color. An unknown combination
// comes back as out of stock together with stock.ErrUnavailable.
func (s *ProductService) StockLevel(ctx context.Context, id, size, color string) (stock.Level, error) {
	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return stock.Level{}, orNotFound(err, "Product not found")
	}
	return stock.StockLevel(p, size, color)
}

// Create validates the draft and persists the product.
func (s *ProductService) Create(ctx context.Context, draft ProductDraft, actorID string) (*models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	p, err := draft.Validate(s.now())
	if err != nil {
		return nil, err
	}
	p.ID = uuid.New().String()
	if actorID != "" {
		p.CreatedBy = &actorID
		p.LastModifiedBy = &actorID
	}

	if err := s.products.CreateProduct(ctx, p); err != nil {
		util.RecordError(span, err)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: sku %s already exists", ErrConflict, p.SKU)
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	util.ProductMutationsTotal.WithLabelValues("create").Inc()
	s.logger.Info("Product created",
		zap.String("product_id", p.ID),
		zap.String("sku", p.SKU),
		zap.Int("images", len(p.Images)),
		zap.Int("variants", len(p.Variants)))

	s.afterChange(ctx, p, models.EventTypeProductCreated, actorID)
	view := NewProductView(*p)
	return &view, nil
}

// Update applies an edit form to an existing product.
func (s *ProductService) Update(ctx context.Context, id string, draft ProductDraft, actorID string) (*models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update")
	defer span.End()

	var sku string
	p, err := s.products.UpdateProduct(ctx, id, func(current *models.Product) (*models.Product, error) {
		p, err := draft.ApplyTo(current, s.now())
		if err != nil {
			return nil, err
		}
		// reserved belongs to open reservations, never to the form
		if err := stock.CarryReserved(current.Variants, p.Variants); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if actorID != "" {
			p.LastModifiedBy = &actorID
		}
		sku = p.SKU
		return p, nil
	})
	if err != nil {
		util.RecordError(span, err)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: sku %s already exists", ErrConflict, sku)
		}
		return nil, orNotFound(err, "Product not found")
	}

	util.ProductMutationsTotal.WithLabelValues("update").Inc()
	s.logger.Info("Product updated", zap.String("product_id", p.ID), zap.Int("images", len(p.Images)))

	s.afterChange(ctx, p, models.EventTypeProductUpdated, actorID)
	view := NewProductView(*p)
	return &view, nil
}

// Delete removes the product. Orders keep their item snapshots.
func (s *ProductService) Delete(ctx context.Context, id, actorID string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return orNotFound(err, "Product not found")
	}

	util.ProductMutationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("Product deleted", zap.String("product_id", id))

	if err := s.inventory.ForgetProduct(ctx, id); err != nil {
		s.logger.Warn("Failed to drop stock mirror", zap.String("product_id", id), zap.Error(err))
	}
	s.publish(ctx, &models.ProductEvent{ProductID: id, ActorID: actorID}, models.EventTypeProductDeleted)
	return nil
}

func (s *ProductService) afterChange(ctx context.Context, p *models.Product, eventType, actorID string) {
	if err := s.inventory.SyncProduct(ctx, p); err != nil {
		s.logger.Warn("Failed to sync stock mirror", zap.String("product_id", p.ID), zap.Error(err))
	}
	s.publish(ctx, &models.ProductEvent{
		ProductID: p.ID,
		SKU:       p.SKU,
		Status:    p.Status,
		ActorID:   actorID,
	}, eventType)
}

func (s *ProductService) publish(ctx context.Context, event *models.ProductEvent, eventType string) {
	event.BaseEvent = models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: s.now(),
	}
	if err := s.publisher.PublishProductEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish product event", zap.String("event_type", eventType), zap.Error(err))
	}
}
