package service

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"forest-fashion/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ProductDraft is the admin product form as submitted: every field is the raw
// string value. Uploads become data URL images named after the product;
// Images is used when there are none. Nothing is persisted until Validate or
// ApplyTo produced a product.
type ProductDraft struct {
	Name            string
	Description     string
	FullDescription string
	Price           string
	SalePrice       string
	Category        string
	Subcategory     string
	Brand           string
	SKU             string
	Variants        string
	Materials       string
	Care            string
	Weight          string
	Dimensions      string
	Tags            string
	MetaTitle       string
	MetaDescription string
	Status          string
	Featured        string
	IsDigital       string

	Uploads []Upload
	Images  []models.Image
}

// Upload is one uploaded image file.
type Upload struct {
	MIME string
	Data []byte
}

// variantInput mirrors models.Variant with an optional threshold, so an
// absent lowStockThreshold can fall back to the default.
type variantInput struct {
	Color     string `json:"color"`
	ColorCode string `json:"colorCode"`
	Sizes     []struct {
		Size              string `json:"size"`
		Quantity          int    `json:"quantity"`
		Reserved          int    `json:"reserved"`
		LowStockThreshold *int   `json:"lowStockThreshold"`
	} `json:"sizes"`
}

const skuAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateSKU builds {BRAND}-{unix millis}-{5 random base36 chars}. It is
// safe for concurrent use.
func GenerateSKU(brand string, now time.Time) string {
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = skuAlphabet[rand.Intn(len(skuAlphabet))]
	}
	return fmt.Sprintf("%s-%d-%s", strings.ToUpper(brand), now.UnixMilli(), suffix)
}

// Validate turns a create form into a product ready to persist.
func (d ProductDraft) Validate(now time.Time) (*models.Product, error) {
	for _, f := range []struct{ name, value string }{
		{"name", d.Name},
		{"description", d.Description},
		{"price", d.Price},
		{"category", d.Category},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, invalid(f.name, f.name+" is required")
		}
	}

	p := &models.Product{
		Name:            strings.TrimSpace(d.Name),
		Description:     d.Description,
		FullDescription: d.FullDescription,
		Category:        strings.TrimSpace(d.Category),
		Subcategory:     d.Subcategory,
		Brand:           orDefault(d.Brand, models.DefaultBrand),
		Materials:       d.Materials,
		Care:            d.Care,
		Tags:            splitTags(d.Tags),
		MetaTitle:       orDefault(d.MetaTitle, d.Name),
		MetaDescription: orDefault(d.MetaDescription, d.Description),
		Status:          orDefault(d.Status, models.ProductStatusActive),
		Featured:        d.Featured == "true",
		IsDigital:       d.IsDigital == "true",
		Images:          normalizeImages(d.images(strings.TrimSpace(d.Name))),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var err error
	if p.Price, err = parsePrice("price", d.Price); err != nil {
		return nil, err
	}
	if p.SalePrice, err = parseOptionalPrice("salePrice", d.SalePrice); err != nil {
		return nil, err
	}
	if p.Weight, err = parseOptionalPrice("weight", d.Weight); err != nil {
		return nil, err
	}
	if d.Variants != "" {
		if p.Variants, err = decodeVariants(d.Variants); err != nil {
			return nil, err
		}
	}
	p.Dimensions = decodeDimensions(d.Dimensions, models.Dimensions{})

	p.SKU = strings.TrimSpace(d.SKU)
	if p.SKU == "" {
		p.SKU = GenerateSKU(p.Brand, now)
	}

	if err := checkProduct(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyTo overlays an edit form on an existing product. Empty fields keep
// the current value; featured and isDigital always come from the form and
// new uploads replace the image list.
func (d ProductDraft) ApplyTo(existing *models.Product, now time.Time) (*models.Product, error) {
	p := *existing

	p.Name = orDefault(d.Name, p.Name)
	p.Description = orDefault(d.Description, p.Description)
	p.FullDescription = orDefault(d.FullDescription, p.FullDescription)
	p.Category = orDefault(d.Category, p.Category)
	p.Subcategory = orDefault(d.Subcategory, p.Subcategory)
	p.Brand = orDefault(d.Brand, p.Brand)
	p.Materials = orDefault(d.Materials, p.Materials)
	p.Care = orDefault(d.Care, p.Care)
	p.MetaTitle = orDefault(d.MetaTitle, p.MetaTitle)
	p.MetaDescription = orDefault(d.MetaDescription, p.MetaDescription)
	p.Status = orDefault(d.Status, p.Status)
	p.Featured = d.Featured == "true"
	p.IsDigital = d.IsDigital == "true"
	p.UpdatedAt = now

	if strings.TrimSpace(d.Tags) != "" {
		p.Tags = splitTags(d.Tags)
	}
	if images := d.images(p.Name); len(images) > 0 {
		p.Images = normalizeImages(images)
	}

	var err error
	if d.Price != "" {
		if p.Price, err = parsePrice("price", d.Price); err != nil {
			return nil, err
		}
	}
	if d.SalePrice != "" {
		if p.SalePrice, err = parseOptionalPrice("salePrice", d.SalePrice); err != nil {
			return nil, err
		}
	}
	if d.Weight != "" {
		if p.Weight, err = parseOptionalPrice("weight", d.Weight); err != nil {
			return nil, err
		}
	}
	if d.Variants != "" {
		if p.Variants, err = decodeVariants(d.Variants); err != nil {
			return nil, err
		}
	}
	p.Dimensions = decodeDimensions(d.Dimensions, p.Dimensions)

	if err := checkProduct(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d ProductDraft) images(productName string) []models.Image {
	if len(d.Uploads) > 0 {
		return ImagesFromUploads(productName, d.Uploads)
	}
	return d.Images
}

func checkProduct(p *models.Product) error {
	if !oneOf(p.Status, models.ProductStatuses) {
		return invalid("status", "Invalid status")
	}
	if p.SalePrice.Valid && p.SalePrice.Decimal.GreaterThan(p.Price) {
		return invalid("salePrice", "salePrice cannot exceed price")
	}
	return checkStruct(p)
}

func parsePrice(field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, invalid(field, field+" must be a number")
	}
	if !v.IsPositive() {
		return decimal.Zero, invalid(field, field+" must be positive")
	}
	return v.Round(2), nil
}

func parseOptionalPrice(field, raw string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := parsePrice(field, raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

// decodeVariants rejects malformed JSON instead of storing an empty list.
func decodeVariants(raw string) (models.Variants, error) {
	var in []variantInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, invalid("variants", "Invalid variants format")
	}

	out := make(models.Variants, 0, len(in))
	for _, v := range in {
		variant := models.Variant{Color: strings.TrimSpace(v.Color), ColorCode: v.ColorCode}
		for _, s := range v.Sizes {
			threshold := models.DefaultLowStockThreshold
			if s.LowStockThreshold != nil {
				threshold = *s.LowStockThreshold
			}
			variant.Sizes = append(variant.Sizes, models.SizeStock{
				Size:              strings.TrimSpace(s.Size),
				Quantity:          s.Quantity,
				Reserved:          s.Reserved,
				LowStockThreshold: threshold,
			})
		}
		out = append(out, variant)
	}
	return out, nil
}

// decodeDimensions falls back to the previous value on malformed input.
func decodeDimensions(raw string, previous models.Dimensions) models.Dimensions {
	if strings.TrimSpace(raw) == "" {
		return previous
	}
	var d models.Dimensions
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return previous
	}
	return d
}

// normalizeImages renumbers the images and keeps a single primary: the first
// flagged one, or the first image when none is.
func normalizeImages(images []models.Image) models.Images {
	if len(images) == 0 {
		return models.Images{}
	}
	out := make(models.Images, len(images))
	primary := -1
	for i, img := range images {
		if img.IsPrimary && primary < 0 {
			primary = i
		}
		img.IsPrimary = false
		img.Order = i
		out[i] = img
	}
	if primary < 0 {
		primary = 0
	}
	out[primary].IsPrimary = true
	return out
}

func splitTags(raw string) pq.StringArray {
	tags := pq.StringArray{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
