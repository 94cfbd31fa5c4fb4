package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product statuses
const (
	ProductStatusActive       = "active"
	ProductStatusInactive     = "inactive"
	ProductStatusDraft        = "draft"
	ProductStatusDiscontinued = "discontinued"
)

const (
	DefaultBrand             = "FOREST"
	DefaultLowStockThreshold = 5
)

// ProductStatuses lists every accepted product status.
var ProductStatuses = []string{
	ProductStatusActive,
	ProductStatusInactive,
	ProductStatusDraft,
	ProductStatusDiscontinued,
}

// Product is a catalogue entry. Images, variants and dimensions are nested
// documents persisted as JSONB.
type Product struct {
	ID              string              `db:"id" json:"id"`
	Name            string              `db:"name" json:"name" validate:"required"`
	Description     string              `db:"description" json:"description" validate:"required"`
	FullDescription string              `db:"full_description" json:"fullDescription"`
	Price           decimal.Decimal     `db:"price" json:"price"`
	SalePrice       decimal.NullDecimal `db:"sale_price" json:"salePrice"`
	Category        string              `db:"category" json:"category" validate:"required"`
	Subcategory     string              `db:"subcategory" json:"subcategory"`
	Brand           string              `db:"brand" json:"brand"`
	SKU             string              `db:"sku" json:"sku" validate:"required"`
	Images          Images              `db:"images" json:"images"`
	Variants        Variants            `db:"variants" json:"variants" validate:"dive"`
	Materials       string              `db:"materials" json:"materials"`
	Care            string              `db:"care" json:"care"`
	Weight          decimal.NullDecimal `db:"weight" json:"weight"`
	Dimensions      Dimensions          `db:"dimensions" json:"dimensions"`
	Tags            pq.StringArray      `db:"tags" json:"tags"`
	MetaTitle       string              `db:"meta_title" json:"metaTitle"`
	MetaDescription string              `db:"meta_description" json:"metaDescription"`
	Status          string              `db:"status" json:"status" validate:"oneof=active inactive draft discontinued"`
	Featured        bool                `db:"featured" json:"featured"`
	IsDigital       bool                `db:"is_digital" json:"isDigital"`

	// Legacy flat shape, still present on older documents.
	LegacySizes  pq.StringArray `db:"legacy_sizes" json:"sizes,omitempty"`
	LegacyColors pq.StringArray `db:"legacy_colors" json:"colors,omitempty"`
	LegacyStock  bool           `db:"in_stock" json:"-"`

	CreatedBy      *string   `db:"created_by" json:"createdBy,omitempty"`
	LastModifiedBy *string   `db:"last_modified_by" json:"lastModifiedBy,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Image is one product picture.
type Image struct {
	URL       string `json:"url" validate:"required"`
	AltText   string `json:"altText"`
	IsPrimary bool   `json:"isPrimary"`
	Order     int    `json:"order"`
}

type Images []Image

// Variant groups the sizes available in one color.
type Variant struct {
	Color     string      `json:"color" validate:"required"`
	ColorCode string      `json:"colorCode,omitempty"`
	Sizes     []SizeStock `json:"sizes" validate:"dive"`
}

type Variants []Variant

// SizeStock carries the counters for one size of a variant.
type SizeStock struct {
	Size              string `json:"size" validate:"required"`
	Quantity          int    `json:"quantity" validate:"gte=0"`
	Reserved          int    `json:"reserved" validate:"gte=0,ltefield=Quantity"`
	LowStockThreshold int    `json:"lowStockThreshold" validate:"gte=0"`
}

// Available is quantity minus reserved.
func (s SizeStock) Available() int {
	return s.Quantity - s.Reserved
}

type Dimensions struct {
	Length *float64 `json:"length,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category string
	Status   string
	// AllStatuses disables the default exclusion of discontinued products.
	AllStatuses bool
	Featured    *bool
	Limit       int
}

// ProductView is a product with its derived stock figures.
type ProductView struct {
	Product
	TotalStock     int  `json:"totalStock"`
	AvailableStock int  `json:"availableStock"`
	InStock        bool `json:"inStock"`
}

// ProductSummary is the slice of a product embedded in order responses.
type ProductSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Images Images `json:"images"`
}
