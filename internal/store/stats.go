package store

import (
	"context"

	"forest-fashion/internal/models"

	"github.com/shopspring/decimal"
)

// CountProducts counts every product regardless of status.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM products")
	return n, err
}

func (s *Store) CountOrders(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM orders")
	return n, err
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users")
	return n, err
}

// Revenue sums order totals, leaving out cancelled orders.
func (s *Store) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(total), 0) FROM orders WHERE status <> $1", models.OrderStatusCancelled)
	return total, err
}

// RecentOrders returns the newest orders.
func (s *Store) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT $1", limit)
	return orders, err
}

// TopProducts ranks products by ordered quantity across all order items.
// Items whose product no longer exists are not counted.
func (s *Store) TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error) {
	var ranked []models.TopProduct
	err := s.db.SelectContext(ctx, &ranked, `
		SELECT item->>'productId' AS product_id, SUM((item->>'quantity')::int) AS count
		FROM orders, jsonb_array_elements(orders.items) AS item
		WHERE EXISTS (SELECT 1 FROM products p WHERE p.id::text = item->>'productId')
		GROUP BY item->>'productId'
		ORDER BY count DESC, product_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ProductID
	}
	products, err := s.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]models.TopProduct, 0, len(ranked))
	for _, r := range ranked {
		if p, ok := byID[r.ProductID]; ok {
			r.Product = p
			out = append(out, r)
		}
	}
	return out, nil
}
