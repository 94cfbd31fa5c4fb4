package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantsColumnRoundTrip(t *testing.T) {
	in := Variants{
		{Color: "Black", ColorCode: "#000000", Sizes: []SizeStock{
			{Size: "M", Quantity: 10, Reserved: 3, LowStockThreshold: 5},
			{Size: "L", Quantity: 2, Reserved: 0, LowStockThreshold: 1},
		}},
	}

	raw, err := in.Value()
	require.NoError(t, err)

	var out Variants
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)

	var fromString Variants
	require.NoError(t, fromString.Scan(string(raw.([]byte))))
	assert.Equal(t, in, fromString)
}

func TestNilCollectionsStoreEmptyArrays(t *testing.T) {
	v, err := Variants(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	im, err := Images(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), im)
}

func TestScanNullKeepsZeroValue(t *testing.T) {
	var d Dimensions
	require.NoError(t, d.Scan(nil))
	assert.Nil(t, d.Length)

	var v Variants
	assert.Error(t, v.Scan(42))
}

func TestNormalizeShape(t *testing.T) {
	legacy := &Product{LegacySizes: []string{"M"}, LegacyColors: []string{"Green"}, LegacyStock: true}
	shape, ok := NormalizeShape(legacy).(LegacyShape)
	require.True(t, ok)
	assert.True(t, shape.InStock)
	assert.Equal(t, []string{"M"}, shape.Sizes)

	mixed := &Product{
		LegacySizes: []string{"M"},
		Variants:    Variants{{Color: "Black", Sizes: []SizeStock{{Size: "M", Quantity: 1}}}},
	}
	_, ok = NormalizeShape(mixed).(VariantShape)
	assert.True(t, ok)
}

func TestOrderItemsSubtotal(t *testing.T) {
	items := OrderItems{
		{Price: decimal.RequireFromString("49.99"), Quantity: 2},
		{Price: decimal.RequireFromString("10.00"), Quantity: 1},
	}
	assert.True(t, decimal.RequireFromString("109.98").Equal(items.Subtotal()))
}
