package store

import (
	"context"
	"database/sql"

	"forest-fashion/internal/models"
)

const orderColumns = `id, user_id, items, total, status, payment_method, payment_status,
	shipping_address, notes, idempotency_key, created_at, updated_at`

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, user_id, items, total, status, payment_method, payment_status,
			shipping_address, notes, idempotency_key)
		VALUES (:id, :user_id, :items, :total, :status, :payment_method, :payment_status,
			:shipping_address, :notes, :idempotency_key)
		RETURNING created_at, updated_at`

	rows, err := s.db.NamedQueryContext(ctx, query, order)
	if err != nil {
		return translate(err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
			return err
		}
	}
	return translate(rows.Err())
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key. It returns
// nil, nil when no order carries the key.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders newest first, restricted to one user when
// userID is set.
func (s *Store) ListOrders(ctx context.Context, userID *string) ([]models.Order, error) {
	orders := []models.Order{}
	var err error
	if userID != nil {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", *userID)
	} else {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	}
	return orders, err
}

// UpdateOrderStatus sets status and/or payment status. Empty values leave
// the column unchanged.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status, paymentStatus string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET
			status = COALESCE(NULLIF($1, ''), status),
			payment_status = COALESCE(NULLIF($2, ''), payment_status),
			updated_at = NOW()
		WHERE id = $3
		RETURNING `+orderColumns,
		status, paymentStatus, orderID)
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FixLegacyOrders fills in payment fields on orders created before they
// existed and returns how many rows changed.
func (s *Store) FixLegacyOrders(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			payment_method = CASE WHEN payment_method = '' THEN $1 ELSE payment_method END,
			payment_status = CASE WHEN payment_status = '' THEN $2 ELSE payment_status END,
			updated_at = NOW()
		WHERE payment_method = '' OR payment_status = ''`,
		models.PaymentMethodCashOnDelivery, models.PaymentStatusPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
