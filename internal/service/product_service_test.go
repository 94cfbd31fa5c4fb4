package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"forest-fashion/internal/models"
	"forest-fashion/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var draftTime = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func validDraft() ProductDraft {
	return ProductDraft{
		Name:        "Moss Cargo Pants",
		Description: "Relaxed fit cargo pants",
		Price:       "899.5",
		Category:    "pants",
		Variants:    `[{"color":"Olive","sizes":[{"size":"M","quantity":8},{"size":"L","quantity":2,"lowStockThreshold":1}]}]`,
		Tags:        "cargo, outdoor,,  forest ",
		Featured:    "true",
	}
}

func requireValidation(t *testing.T, err error) *ValidationError {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve
}

func TestDraftValidateDefaults(t *testing.T) {
	p, err := validDraft().Validate(draftTime)
	require.NoError(t, err)

	assert.Equal(t, "899.5", p.Price.String())
	assert.Equal(t, models.DefaultBrand, p.Brand)
	assert.Equal(t, models.ProductStatusActive, p.Status)
	assert.Equal(t, "Moss Cargo Pants", p.MetaTitle)
	assert.Equal(t, "Relaxed fit cargo pants", p.MetaDescription)
	assert.True(t, p.Featured)
	assert.False(t, p.IsDigital)
	assert.Equal(t, []string{"cargo", "outdoor", "forest"}, []string(p.Tags))
	assert.False(t, p.SalePrice.Valid)

	require.Len(t, p.Variants, 1)
	assert.Equal(t, models.DefaultLowStockThreshold, p.Variants[0].Sizes[0].LowStockThreshold)
	assert.Equal(t, 1, p.Variants[0].Sizes[1].LowStockThreshold)

	assert.Regexp(t, regexp.MustCompile(`^FOREST-1715333400000-[0-9A-Z]{5}$`), p.SKU)
}

func TestGenerateSKUConcurrent(t *testing.T) {
	sku := regexp.MustCompile(`^FOREST-1715333400000-[0-9A-Z]{5}$`)

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for g := range results {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				results[g] = append(results[g], GenerateSKU("forest", draftTime))
			}
		}(g)
	}
	wg.Wait()

	for _, batch := range results {
		require.Len(t, batch, 200)
		for _, s := range batch {
			assert.Regexp(t, sku, s)
		}
	}
}

func TestDraftValidateRequiredFields(t *testing.T) {
	for _, field := range []string{"name", "description", "price", "category"} {
		t.Run(field, func(t *testing.T) {
			d := validDraft()
			switch field {
			case "name":
				d.Name = " "
			case "description":
				d.Description = ""
			case "price":
				d.Price = ""
			case "category":
				d.Category = ""
			}
			_, err := d.Validate(draftTime)
			assert.Equal(t, field, requireValidation(t, err).Field)
		})
	}
}

func TestDraftRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ProductDraft)
		field  string
	}{
		{"malformed variants", func(d *ProductDraft) { d.Variants = `[{"color":` }, "variants"},
		{"price not a number", func(d *ProductDraft) { d.Price = "cheap" }, "price"},
		{"negative price", func(d *ProductDraft) { d.Price = "-5" }, "price"},
		{"sale above price", func(d *ProductDraft) { d.SalePrice = "1000" }, "salePrice"},
		{"unknown status", func(d *ProductDraft) { d.Status = "archived" }, "status"},
		{"over reserved", func(d *ProductDraft) {
			d.Variants = `[{"color":"Olive","sizes":[{"size":"M","quantity":1,"reserved":2}]}]`
		}, "variants[0].sizes[0].reserved"},
		{"negative quantity", func(d *ProductDraft) {
			d.Variants = `[{"color":"Olive","sizes":[{"size":"M","quantity":-1}]}]`
		}, "variants[0].sizes[0].quantity"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)
			_, err := d.Validate(draftTime)
			assert.Equal(t, tc.field, requireValidation(t, err).Field)
		})
	}

	d := validDraft()
	d.Variants = "not json"
	_, err := d.Validate(draftTime)
	assert.Equal(t, "Invalid variants format", requireValidation(t, err).Message)
}

func TestDraftDimensions(t *testing.T) {
	d := validDraft()
	d.Dimensions = `{"length":30,"width":20}`
	p, err := d.Validate(draftTime)
	require.NoError(t, err)
	require.NotNil(t, p.Dimensions.Length)
	assert.Equal(t, 30.0, *p.Dimensions.Length)
	assert.Nil(t, p.Dimensions.Height)

	edit := ProductDraft{Dimensions: "{broken"}
	updated, err := edit.ApplyTo(p, draftTime)
	require.NoError(t, err)
	assert.Equal(t, p.Dimensions, updated.Dimensions)
}

func TestDraftKeepsSinglePrimaryImage(t *testing.T) {
	d := validDraft()
	d.Images = []models.Image{
		{URL: "a.jpg"},
		{URL: "b.jpg", IsPrimary: true},
		{URL: "c.jpg", IsPrimary: true},
	}
	p, err := d.Validate(draftTime)
	require.NoError(t, err)

	primaries := 0
	for i, img := range p.Images {
		assert.Equal(t, i, img.Order)
		if img.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
	assert.True(t, p.Images[1].IsPrimary)

	d.Images = []models.Image{{URL: "a.jpg"}, {URL: "b.jpg"}}
	p, err = d.Validate(draftTime)
	require.NoError(t, err)
	assert.True(t, p.Images[0].IsPrimary)
}

func TestDraftApplyTo(t *testing.T) {
	existing, err := validDraft().Validate(draftTime)
	require.NoError(t, err)

	later := draftTime.Add(time.Hour)
	updated, err := ProductDraft{Price: "750", Status: models.ProductStatusDraft}.ApplyTo(existing, later)
	require.NoError(t, err)

	assert.Equal(t, existing.Name, updated.Name)
	assert.Equal(t, existing.SKU, updated.SKU)
	assert.Equal(t, existing.Variants, updated.Variants)
	assert.Equal(t, "750", updated.Price.String())
	assert.Equal(t, models.ProductStatusDraft, updated.Status)
	assert.False(t, updated.Featured)
	assert.Equal(t, later, updated.UpdatedAt)

	_, err = ProductDraft{SalePrice: "2000"}.ApplyTo(existing, later)
	assert.Equal(t, "salePrice", requireValidation(t, err).Field)
}

func TestImagesFromUploads(t *testing.T) {
	images := ImagesFromUploads("Moss Cargo Pants", []Upload{
		{MIME: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		{MIME: "image/jpeg", Data: []byte{0xff, 0xd8}},
	})

	require.Len(t, images, 2)
	assert.True(t, strings.HasPrefix(images[0].URL, "data:image/png;base64,"))
	assert.Equal(t, "Moss Cargo Pants - Image 2", images[1].AltText)
	assert.True(t, images[0].IsPrimary)
	assert.False(t, images[1].IsPrimary)
}

func TestProductLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	created, err := f.products.Create(ctx, validDraft(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 10, created.TotalStock)
	assert.Equal(t, 10, created.AvailableStock)
	assert.True(t, created.InStock)
	assert.Equal(t, "admin-1", *created.CreatedBy)

	mirror, err := f.redis.GetProductStock(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Olive|M": 8, "Olive|L": 2}, mirror)

	d := validDraft()
	d.SKU = created.SKU
	_, err = f.products.Create(ctx, d, "admin-1")
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := f.products.Update(ctx, created.ID, ProductDraft{Name: "Moss Cargo Pants II"}, "admin-2")
	require.NoError(t, err)
	assert.Equal(t, "Moss Cargo Pants II", updated.Name)
	assert.Equal(t, "admin-2", *updated.LastModifiedBy)

	level, err := f.products.StockLevel(ctx, created.ID, "L", "Olive")
	require.NoError(t, err)
	assert.Equal(t, 2, level.Available)
	assert.False(t, level.IsLow)

	_, err = f.products.StockLevel(ctx, created.ID, "XL", "Olive")
	assert.ErrorIs(t, err, stock.ErrUnavailable)

	require.NoError(t, f.products.Delete(ctx, created.ID, "admin-1"))
	_, err = f.products.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, f.mr.Exists("stock:"+created.ID))

	assert.ErrorIs(t, f.products.Delete(ctx, created.ID, "admin-1"), ErrNotFound)
	assert.Equal(t, []string{
		models.EventTypeProductCreated,
		models.EventTypeProductUpdated,
		models.EventTypeProductDeleted,
	}, f.publisher.Types())
}

func TestUpdateKeepsReservedCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seed(t, hoodie("p1", 10))

	_, err := f.inventory.Reserve(ctx, ReserveRequest{ProductID: "p1", Color: "Black", Size: "M", Quantity: 4}, time.Minute)
	require.NoError(t, err)

	_, err = f.products.Update(ctx, "p1", ProductDraft{Name: "Shadow Hoodie II"}, "admin-1")
	require.NoError(t, err)
	got := f.product(t, "p1")
	assert.Equal(t, "Shadow Hoodie II", got.Name)
	assert.Equal(t, 4, sizeM(got).Reserved)

	// the form cannot reset what open reservations hold
	_, err = f.products.Update(ctx, "p1", ProductDraft{
		Variants: `[{"color":"Black","sizes":[{"size":"M","quantity":20,"reserved":0},{"size":"L","quantity":3,"reserved":2}]}]`,
	}, "admin-1")
	require.NoError(t, err)
	got = f.product(t, "p1")
	assert.Equal(t, 20, sizeM(got).Quantity)
	assert.Equal(t, 4, sizeM(got).Reserved)
	assert.Equal(t, 0, got.Variants[0].Sizes[1].Reserved)

	_, err = f.products.Update(ctx, "p1", ProductDraft{
		Variants: `[{"color":"Olive","sizes":[{"size":"M","quantity":5}]}]`,
	}, "admin-1")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "Black", f.product(t, "p1").Variants[0].Color)
}

// reservingProducts reserves stock just before each product update, the way
// a checkout racing an admin edit would.
type reservingProducts struct {
	ProductRepository
	inventory *InventoryService
	t         *testing.T
}

func (r reservingProducts) UpdateProduct(ctx context.Context, id string, apply func(*models.Product) (*models.Product, error)) (*models.Product, error) {
	_, err := r.inventory.Reserve(ctx, ReserveRequest{ProductID: id, Color: "Black", Size: "M", Quantity: 4}, time.Minute)
	require.NoError(r.t, err)
	return r.ProductRepository.UpdateProduct(ctx, id, apply)
}

func TestUpdateDoesNotEraseConcurrentReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seed(t, hoodie("p1", 10))

	products := NewProductService(reservingProducts{ProductRepository: f.store, inventory: f.inventory, t: t}, f.inventory, f.publisher)
	view, err := products.Update(ctx, "p1", ProductDraft{Name: "Shadow Hoodie II"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 6, view.AvailableStock)
	assert.Equal(t, 4, sizeM(f.product(t, "p1")).Reserved)

	mirror, err := f.redis.GetProductStock(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Black|M": 6}, mirror)
}

func TestListProductsFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	gone := hoodie("p2", 3)
	gone.Status = models.ProductStatusDiscontinued
	pants := hoodie("p3", 3)
	pants.Category = "pants"
	pants.Featured = true
	f.seed(t, hoodie("p1", 3), gone, pants)

	all, err := f.products.List(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	// newest first
	assert.Equal(t, "p3", all[0].ID)

	hoodies, err := f.products.List(ctx, models.ProductFilter{Category: "hoodies"})
	require.NoError(t, err)
	assert.Len(t, hoodies, 1)

	everything, err := f.products.List(ctx, models.ProductFilter{Category: "all", AllStatuses: true})
	require.NoError(t, err)
	assert.Len(t, everything, 3)

	featured := true
	top, err := f.products.List(ctx, models.ProductFilter{Featured: &featured, Limit: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "p3", top[0].ID)
}
