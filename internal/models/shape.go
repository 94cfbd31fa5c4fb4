package models

// Shape is the normalized stock layout of a product: either the legacy flat
// sizes/colors/inStock form or the per-variant counters.
type Shape interface {
	isShape()
}

// LegacyShape is the original flat product representation.
type LegacyShape struct {
	Sizes   []string
	Colors  []string
	InStock bool
}

// VariantShape carries per-color, per-size counters.
type VariantShape struct {
	Variants []Variant
}

func (LegacyShape) isShape()  {}
func (VariantShape) isShape() {}

// NormalizeShape decides once which layout a stored product uses. Any
// variant data wins over the legacy fields.
func NormalizeShape(p *Product) Shape {
	if len(p.Variants) > 0 {
		return VariantShape{Variants: p.Variants}
	}
	return LegacyShape{
		Sizes:   p.LegacySizes,
		Colors:  p.LegacyColors,
		InStock: p.LegacyStock,
	}
}
