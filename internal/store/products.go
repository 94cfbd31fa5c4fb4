package store

import (
	"context"
	"fmt"
	"strings"

	"forest-fashion/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, description, full_description, price, sale_price, category,
	subcategory, brand, sku, images, variants, materials, care, weight, dimensions, tags,
	meta_title, meta_description, status, featured, is_digital, legacy_sizes, legacy_colors,
	in_stock, created_by, last_modified_by, created_at, updated_at`

// CreateProduct inserts a product. The caller assigns the ID and timestamps.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (:id, :name, :description, :full_description, :price, :sale_price, :category,
			:subcategory, :brand, :sku, :images, :variants, :materials, :care, :weight, :dimensions,
			:tags, :meta_title, :meta_description, :status, :featured, :is_digital, :legacy_sizes,
			:legacy_colors, :in_stock, :created_by, :last_modified_by, :created_at, :updated_at)`

	_, err := s.db.NamedExecContext(ctx, query, p)
	return translate(err)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs. Missing and
// malformed IDs are silently skipped.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	ids = uuidsOnly(ids)
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ListProducts returns products newest first. Discontinued products are
// left out unless the filter names a status or asks for all of them.
func (s *Store) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" && f.Category != "all" {
		conds = append(conds, "category = "+arg(f.Category))
	}
	switch {
	case f.Status != "" && f.Status != "all":
		conds = append(conds, "status = "+arg(f.Status))
	case !f.AllStatuses:
		conds = append(conds, "status <> "+arg(models.ProductStatusDiscontinued))
	}
	if f.Featured != nil {
		conds = append(conds, "featured = "+arg(*f.Featured))
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// UpdateProduct locks the product row, hands the current document to apply
// and writes back what apply returns, all in one transaction. Reservations
// take the same lock, so reserved counters cannot change between apply
// reading them and the write. Errors from apply are returned unchanged.
func (s *Store) UpdateProduct(ctx context.Context, id string, apply func(current *models.Product) (*models.Product, error)) (*models.Product, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current models.Product
	err = tx.GetContext(ctx, &current,
		"SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, translate(err)
	}

	p, err := apply(&current)
	if err != nil {
		return nil, err
	}
	p.ID = current.ID

	query := `
		UPDATE products SET
			name = :name, description = :description, full_description = :full_description,
			price = :price, sale_price = :sale_price, category = :category,
			subcategory = :subcategory, brand = :brand, sku = :sku, images = :images,
			variants = :variants, materials = :materials, care = :care, weight = :weight,
			dimensions = :dimensions, tags = :tags, meta_title = :meta_title,
			meta_description = :meta_description, status = :status, featured = :featured,
			is_digital = :is_digital, legacy_sizes = :legacy_sizes, legacy_colors = :legacy_colors,
			in_stock = :in_stock, last_modified_by = :last_modified_by, updated_at = :updated_at
		WHERE id = :id`

	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return nil, translate(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct hard-deletes a product. Orders keep their item snapshots.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

// ListVariantProducts returns every product carrying variant counters, used
// to rebuild the stock mirror.
func (s *Store) ListVariantProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE jsonb_array_length(variants) > 0 ORDER BY id")
	return products, err
}

// uuidsOnly drops ids that cannot match a uuid column, such as ids carried
// over from the old document store.
func uuidsOnly(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
