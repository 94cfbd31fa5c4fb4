// Package stock derives stock figures from product documents and applies
// reservation arithmetic to variant counters. Nothing here touches storage.
package stock

import (
	"errors"
	"fmt"

	"forest-fashion/internal/models"
)

var (
	// ErrUnavailable means the product has no such color/size combination.
	ErrUnavailable = errors.New("stock: color/size combination unavailable")
	// ErrInsufficient means the combination exists but cannot cover the request.
	ErrInsufficient = errors.New("stock: insufficient available quantity")
	// ErrInvalidQuantity rejects non-positive reservation quantities.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrReservedRemoved rejects an edit that drops a size with units still
	// reserved.
	ErrReservedRemoved = errors.New("stock: size with reserved units removed")
)

// Level is the stock state of one color/size combination.
type Level struct {
	Available int  `json:"available"`
	Threshold int  `json:"threshold"`
	IsLow     bool `json:"isLow"`
	IsOut     bool `json:"isOut"`
	// Legacy is set for flat products, which carry no counters.
	Legacy bool `json:"legacy,omitempty"`
}

// TotalStock sums quantity over every variant size.
func TotalStock(p *models.Product) int {
	shape, ok := models.NormalizeShape(p).(models.VariantShape)
	if !ok {
		return 0
	}
	total := 0
	for _, v := range shape.Variants {
		for _, s := range v.Sizes {
			total += s.Quantity
		}
	}
	return total
}

// ReservedStock sums reserved over every variant size.
func ReservedStock(p *models.Product) int {
	shape, ok := models.NormalizeShape(p).(models.VariantShape)
	if !ok {
		return 0
	}
	reserved := 0
	for _, v := range shape.Variants {
		for _, s := range v.Sizes {
			reserved += s.Reserved
		}
	}
	return reserved
}

// AvailableStock sums quantity minus reserved over every variant size.
func AvailableStock(p *models.Product) int {
	return TotalStock(p) - ReservedStock(p)
}

// IsInStock reports positive availability, or the stored flag for legacy
// products.
func IsInStock(p *models.Product) bool {
	switch shape := models.NormalizeShape(p).(type) {
	case models.LegacyShape:
		return shape.InStock
	default:
		return AvailableStock(p) > 0
	}
}

// SizeLevel computes the level of a single size entry.
func SizeLevel(s models.SizeStock) Level {
	available := s.Available()
	return Level{
		Available: available,
		Threshold: s.LowStockThreshold,
		IsOut:     available <= 0,
		IsLow:     available > 0 && available <= s.LowStockThreshold,
	}
}

// StockLevel finds the variant by color and the entry by size. Callers must
// treat ErrUnavailable as out of stock.
func StockLevel(p *models.Product, size, color string) (Level, error) {
	switch shape := models.NormalizeShape(p).(type) {
	case models.VariantShape:
		vi, si, err := locate(shape.Variants, color, size)
		if err != nil {
			return Level{IsOut: true}, err
		}
		return SizeLevel(shape.Variants[vi].Sizes[si]), nil
	case models.LegacyShape:
		if !contains(shape.Sizes, size) || (len(shape.Colors) > 0 && !contains(shape.Colors, color)) {
			return Level{IsOut: true, Legacy: true}, ErrUnavailable
		}
		return Level{IsOut: !shape.InStock, Legacy: true}, nil
	default:
		return Level{IsOut: true}, ErrUnavailable
	}
}

// Reserve moves qty of the matching size into reserved and returns the
// updated entry. The slice is modified in place.
func Reserve(variants models.Variants, color, size string, qty int) (models.SizeStock, error) {
	if qty <= 0 {
		return models.SizeStock{}, ErrInvalidQuantity
	}
	vi, si, err := locate(variants, color, size)
	if err != nil {
		return models.SizeStock{}, err
	}
	entry := &variants[vi].Sizes[si]
	if entry.Available() < qty {
		return *entry, fmt.Errorf("%w: %s/%s has %d, requested %d", ErrInsufficient, color, size, entry.Available(), qty)
	}
	entry.Reserved += qty
	return *entry, nil
}

// Release returns qty from reserved to available. Reserved never drops
// below zero.
func Release(variants models.Variants, color, size string, qty int) (models.SizeStock, error) {
	vi, si, err := locate(variants, color, size)
	if err != nil {
		return models.SizeStock{}, err
	}
	entry := &variants[vi].Sizes[si]
	entry.Reserved -= qty
	if entry.Reserved < 0 {
		entry.Reserved = 0
	}
	return *entry, nil
}

// Commit turns a reservation into a sale: quantity and reserved both drop.
func Commit(variants models.Variants, color, size string, qty int) (models.SizeStock, error) {
	vi, si, err := locate(variants, color, size)
	if err != nil {
		return models.SizeStock{}, err
	}
	entry := &variants[vi].Sizes[si]
	entry.Quantity -= qty
	entry.Reserved -= qty
	if entry.Quantity < 0 {
		entry.Quantity = 0
	}
	if entry.Reserved < 0 {
		entry.Reserved = 0
	}
	return *entry, nil
}

// CarryReserved copies the reserved counts of current onto edited, which
// replaces current. Reserved is owned by reservations, so whatever edited
// carried is overwritten. Sizes new in edited start at zero.
func CarryReserved(current, edited models.Variants) error {
	reserved := make(map[string]int)
	for _, v := range current {
		for _, s := range v.Sizes {
			if s.Reserved > 0 {
				reserved[Key(v.Color, s.Size)] = s.Reserved
			}
		}
	}

	kept := make(map[string]bool, len(reserved))
	for vi := range edited {
		for si := range edited[vi].Sizes {
			entry := &edited[vi].Sizes[si]
			key := Key(edited[vi].Color, entry.Size)
			entry.Reserved = reserved[key]
			kept[key] = true
		}
	}

	for key, n := range reserved {
		if !kept[key] {
			return fmt.Errorf("%w: %s has %d reserved", ErrReservedRemoved, key, n)
		}
	}
	return nil
}

// AvailabilityByKey flattens variants into Key(color, size) -> available.
func AvailabilityByKey(variants models.Variants) map[string]int {
	out := make(map[string]int)
	for _, v := range variants {
		for _, s := range v.Sizes {
			out[Key(v.Color, s.Size)] = s.Available()
		}
	}
	return out
}

// Key identifies one color/size combination.
func Key(color, size string) string {
	return color + "|" + size
}

func locate(variants []models.Variant, color, size string) (int, int, error) {
	for vi := range variants {
		if variants[vi].Color != color {
			continue
		}
		for si := range variants[vi].Sizes {
			if variants[vi].Sizes[si].Size == size {
				return vi, si, nil
			}
		}
	}
	return -1, -1, fmt.Errorf("%w: %s/%s", ErrUnavailable, color, size)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
