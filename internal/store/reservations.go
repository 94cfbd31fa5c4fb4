package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forest-fashion/internal/models"
	"forest-fashion/internal/stock"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const reservationColumns = `token, product_id, color, size, quantity, status, order_id,
	expires_at, created_at, updated_at`

// ReserveStockTx locks the product row, moves the quantity into reserved on
// the matching variant size and records the reservation, all in one
// transaction. It returns the size entry after the change.
func (s *Store) ReserveStockTx(ctx context.Context, r *models.Reservation) (models.SizeStock, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.SizeStock{}, err
	}
	defer tx.Rollback()

	variants, err := lockVariants(ctx, tx, r.ProductID)
	if err != nil {
		return models.SizeStock{}, err
	}

	entry, err := stock.Reserve(variants, r.Color, r.Size, r.Quantity)
	if err != nil {
		return entry, err
	}

	if err := writeVariants(ctx, tx, r.ProductID, variants); err != nil {
		return entry, err
	}

	r.Status = models.ReservationHeld
	err = tx.GetContext(ctx, r, `
		INSERT INTO reservations (token, product_id, color, size, quantity, status, order_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+reservationColumns,
		r.Token, r.ProductID, r.Color, r.Size, r.Quantity, r.Status, r.OrderID, r.ExpiresAt)
	if err != nil {
		return entry, translate(err)
	}

	return entry, tx.Commit()
}

// ReleaseReservationTx returns a held reservation to available stock. A
// reservation that is already settled is returned as is with a nil entry.
func (s *Store) ReleaseReservationTx(ctx context.Context, token string) (*models.Reservation, *models.SizeStock, error) {
	return s.settle(ctx, token, models.ReservationReleased, stock.Release)
}

// CommitReservationTx turns a held reservation into a sale.
func (s *Store) CommitReservationTx(ctx context.Context, token string) (*models.Reservation, *models.SizeStock, error) {
	return s.settle(ctx, token, models.ReservationCommitted, stock.Commit)
}

type settleFunc func(models.Variants, string, string, int) (models.SizeStock, error)

func (s *Store) settle(ctx context.Context, token, final string, apply settleFunc) (*models.Reservation, *models.SizeStock, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var r models.Reservation
	err = tx.GetContext(ctx, &r,
		"SELECT "+reservationColumns+" FROM reservations WHERE token = $1 FOR UPDATE", token)
	if err != nil {
		return nil, nil, translate(err)
	}
	if r.Status != models.ReservationHeld {
		return &r, nil, nil
	}

	var entry *models.SizeStock
	variants, err := lockVariants(ctx, tx, r.ProductID)
	switch {
	case errors.Is(err, ErrNotFound):
		// product deleted since the hold; only the reservation changes
	case err != nil:
		return nil, nil, err
	default:
		updated, err := apply(variants, r.Color, r.Size, r.Quantity)
		if err != nil && !errors.Is(err, stock.ErrUnavailable) {
			return nil, nil, err
		}
		if err == nil {
			if err := writeVariants(ctx, tx, r.ProductID, variants); err != nil {
				return nil, nil, err
			}
			entry = &updated
		}
	}

	err = tx.GetContext(ctx, &r, `
		UPDATE reservations SET status = $1, updated_at = NOW()
		WHERE token = $2
		RETURNING `+reservationColumns, final, token)
	if err != nil {
		return nil, nil, err
	}

	return &r, entry, tx.Commit()
}

func lockVariants(ctx context.Context, tx *sqlx.Tx, productID string) (models.Variants, error) {
	var variants models.Variants
	err := translate(tx.GetContext(ctx, &variants,
		"SELECT variants FROM products WHERE id = $1 FOR UPDATE", productID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return variants, nil
}

func writeVariants(ctx context.Context, tx *sqlx.Tx, productID string, variants models.Variants) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE products SET variants = $1, updated_at = NOW() WHERE id = $2",
		variants, productID)
	if err != nil {
		return fmt.Errorf("failed to update variants: %w", err)
	}
	return nil
}

// AttachReservations links held reservations to an order and clears their
// expiry, so the sweeper leaves them alone. Reservations already attached to
// an order are not moved.
func (s *Store) AttachReservations(ctx context.Context, orderID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET order_id = $1, expires_at = NULL, updated_at = NOW()
		WHERE token = ANY($2) AND status = $3 AND order_id IS NULL`,
		orderID, pq.Array(tokens), models.ReservationHeld)
	return err
}

// GetReservation retrieves a reservation by token
func (s *Store) GetReservation(ctx context.Context, token string) (*models.Reservation, error) {
	var r models.Reservation
	err := s.db.GetContext(ctx, &r, "SELECT "+reservationColumns+" FROM reservations WHERE token = $1", token)
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

// GetReservationsByOrder lists every reservation attached to an order.
func (s *Store) GetReservationsByOrder(ctx context.Context, orderID string) ([]models.Reservation, error) {
	reservations := []models.Reservation{}
	err := s.db.SelectContext(ctx, &reservations,
		"SELECT "+reservationColumns+" FROM reservations WHERE order_id = $1 ORDER BY created_at", orderID)
	return reservations, err
}

// ListExpiredReservations returns held cart reservations, not attached to
// any order, whose expiry has passed.
func (s *Store) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	reservations := []models.Reservation{}
	err := s.db.SelectContext(ctx, &reservations, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = $1 AND order_id IS NULL AND expires_at IS NOT NULL AND expires_at <= $2
		ORDER BY expires_at
		LIMIT $3`,
		models.ReservationHeld, now, limit)
	return reservations, err
}
