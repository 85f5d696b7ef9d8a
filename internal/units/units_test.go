package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirepoix/souschef/internal/domain"
)

func TestParseSystem(t *testing.T) {
	sys, err := ParseSystem("metric")
	require.NoError(t, err)
	assert.Equal(t, domain.UnitsMetric, sys)

	sys, err = ParseSystem(" Imperial ")
	require.NoError(t, err)
	assert.Equal(t, domain.UnitsImperial, sys)

	_, err = ParseSystem("cubits")
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	tests := []struct {
		amount     float64
		unit       string
		to         domain.UnitSystem
		wantAmount float64
		wantUnit   string
	}{
		{500, "g", domain.UnitsImperial, 17.64, "oz"},
		{1, "kg", domain.UnitsImperial, 2.2, "lb"},
		{250, "ml", domain.UnitsImperial, 8.45, "fl oz"},
		{2.2, "lb", domain.UnitsMetric, 1, "kg"},
		{500, "g", domain.UnitsMetric, 500, "g"}, // already metric
	}
	for _, tt := range tests {
		amount, unit := Convert(tt.amount, tt.unit, tt.to)
		assert.InDelta(t, tt.wantAmount, amount, 0.05, "%v %s", tt.amount, tt.unit)
		assert.Equal(t, tt.wantUnit, unit)
	}
}

func TestConvertUnknownUnitPassesThrough(t *testing.T) {
	amount, unit := Convert(3, "cloves", domain.UnitsImperial)
	assert.Equal(t, 3.0, amount)
	assert.Equal(t, "cloves", unit)
}

func TestConvertRoundTripTolerance(t *testing.T) {
	amount, unit := Convert(500, "g", domain.UnitsImperial)
	back, unit2 := Convert(amount, unit, domain.UnitsMetric)
	assert.Equal(t, "g", unit2)
	assert.InDelta(t, 500, back, 1.0)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "2", Format(2.0))
	assert.Equal(t, "2.5", Format(2.50))
	assert.Equal(t, "0.25", Format(0.25))
	assert.Equal(t, "0", Format(0))
}
