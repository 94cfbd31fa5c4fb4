package stock

import (
	"testing"

	"forest-fashion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blackM(quantity, reserved int) *models.Product {
	return &models.Product{
		Variants: models.Variants{{
			Color: "Black",
			Sizes: []models.SizeStock{{Size: "M", Quantity: quantity, Reserved: reserved, LowStockThreshold: 5}},
		}},
	}
}

func TestAvailableStockScenario(t *testing.T) {
	p := blackM(10, 3)

	assert.Equal(t, 10, TotalStock(p))
	assert.Equal(t, 7, AvailableStock(p))
	assert.True(t, IsInStock(p))

	level, err := StockLevel(p, "M", "Black")
	require.NoError(t, err)
	assert.Equal(t, 7, level.Available)
	assert.False(t, level.IsLow)
	assert.False(t, level.IsOut)

	p = blackM(10, 6)
	level, err = StockLevel(p, "M", "Black")
	require.NoError(t, err)
	assert.Equal(t, 4, level.Available)
	assert.True(t, level.IsLow)
}

func TestAvailableIsTotalMinusReserved(t *testing.T) {
	p := &models.Product{
		Variants: models.Variants{
			{Color: "Black", Sizes: []models.SizeStock{
				{Size: "S", Quantity: 4, Reserved: 1},
				{Size: "M", Quantity: 9, Reserved: 9},
			}},
			{Color: "Olive", Sizes: []models.SizeStock{
				{Size: "L", Quantity: 2, Reserved: 0},
			}},
		},
	}

	assert.Equal(t, 15, TotalStock(p))
	assert.Equal(t, 10, ReservedStock(p))
	assert.Equal(t, TotalStock(p)-ReservedStock(p), AvailableStock(p))
}

func TestSizeLevelBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		entry     models.SizeStock
		wantLow   bool
		wantOut   bool
		available int
	}{
		{"plenty", models.SizeStock{Quantity: 20, Reserved: 0, LowStockThreshold: 5}, false, false, 20},
		{"at threshold", models.SizeStock{Quantity: 5, Reserved: 0, LowStockThreshold: 5}, true, false, 5},
		{"one left", models.SizeStock{Quantity: 3, Reserved: 2, LowStockThreshold: 5}, true, false, 1},
		{"exhausted", models.SizeStock{Quantity: 3, Reserved: 3, LowStockThreshold: 5}, false, true, 0},
		{"over reserved", models.SizeStock{Quantity: 1, Reserved: 3, LowStockThreshold: 5}, false, true, -2},
		{"zero threshold", models.SizeStock{Quantity: 1, Reserved: 0, LowStockThreshold: 0}, false, false, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			level := SizeLevel(tc.entry)
			assert.Equal(t, tc.available, level.Available)
			assert.Equal(t, tc.wantLow, level.IsLow)
			assert.Equal(t, tc.wantOut, level.IsOut)
			assert.Equal(t, level.Available <= 0, level.IsOut)
		})
	}
}

func TestStockLevelUnknownCombination(t *testing.T) {
	p := blackM(10, 0)

	level, err := StockLevel(p, "XL", "Black")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, level.IsOut)

	_, err = StockLevel(p, "M", "White")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLegacyProducts(t *testing.T) {
	p := &models.Product{
		LegacySizes:  []string{"S", "M"},
		LegacyColors: []string{"Green"},
		LegacyStock:  true,
	}

	assert.Equal(t, 0, TotalStock(p))
	assert.True(t, IsInStock(p))

	level, err := StockLevel(p, "M", "Green")
	require.NoError(t, err)
	assert.True(t, level.Legacy)
	assert.False(t, level.IsOut)

	_, err = StockLevel(p, "XL", "Green")
	assert.ErrorIs(t, err, ErrUnavailable)

	p.LegacyStock = false
	assert.False(t, IsInStock(p))
}

func TestReserveReleaseCommit(t *testing.T) {
	variants := blackM(10, 0).Variants

	entry, err := Reserve(variants, "Black", "M", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, entry.Reserved)
	assert.Equal(t, 4, variants[0].Sizes[0].Reserved)

	_, err = Reserve(variants, "Black", "M", 7)
	assert.ErrorIs(t, err, ErrInsufficient)
	assert.Equal(t, 4, variants[0].Sizes[0].Reserved)

	entry, err = Commit(variants, "Black", "M", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, entry.Quantity)
	assert.Equal(t, 1, entry.Reserved)

	entry, err = Release(variants, "Black", "M", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.Reserved)

	_, err = Reserve(variants, "Black", "M", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = Reserve(variants, "Red", "M", 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAvailabilityByKey(t *testing.T) {
	p := blackM(10, 3)
	assert.Equal(t, map[string]int{"Black|M": 7}, AvailabilityByKey(p.Variants))
}

func TestCarryReserved(t *testing.T) {
	current := blackM(10, 4).Variants

	edited := models.Variants{
		{Color: "Black", Sizes: []models.SizeStock{
			{Size: "M", Quantity: 20, Reserved: 0},
			{Size: "L", Quantity: 5, Reserved: 3},
		}},
	}
	require.NoError(t, CarryReserved(current, edited))
	assert.Equal(t, 20, edited[0].Sizes[0].Quantity)
	assert.Equal(t, 4, edited[0].Sizes[0].Reserved)
	assert.Equal(t, 0, edited[0].Sizes[1].Reserved)

	// same slice, as when the edit leaves variants alone
	require.NoError(t, CarryReserved(current, current))
	assert.Equal(t, 4, current[0].Sizes[0].Reserved)

	dropped := models.Variants{{Color: "Olive", Sizes: []models.SizeStock{{Size: "M", Quantity: 3}}}}
	assert.ErrorIs(t, CarryReserved(current, dropped), ErrReservedRemoved)

	assert.NoError(t, CarryReserved(blackM(10, 0).Variants, dropped))
}
