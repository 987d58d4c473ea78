package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    Quantity
		wantErr bool
	}{
		{"12", NewQuantity(12), false},
		{"12.5", Quantity(125_000), false},
		{"-3.25", Quantity(-32_500), false},
		{".5", Quantity(5_000), false},
		{"1.123456", Quantity(11_234), false},
		{"+7", NewQuantity(7), false},
		{"1.5e2", NewQuantity(150), false},
		{"922337203685477.5807", Quantity(math.MaxInt64), false},
		{"", 0, true},
		{"abc", 0, true},
		{"--5", 0, true},
		{"+-5", 0, true},
		{"1.-5", 0, true},
		{"1.5.5", 0, true},
		{"1e", 0, true},
		{".", 0, true},
		{"2000000000000000", 0, true},
		{"-2000000000000000", 0, true},
		{"922337203685477.5808", 0, true},
		{"1e20", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuantity_JSON(t *testing.T) {
	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`"8"`), &q))
	assert.Equal(t, NewQuantity(8), q)

	require.NoError(t, json.Unmarshal([]byte(`2.5`), &q))
	b, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t, "2.5000", string(b))

	assert.Error(t, json.Unmarshal([]byte(`2000000000000000`), &q))
	assert.Error(t, json.Unmarshal([]byte(`"--5"`), &q))
}

func TestQuantity_Decimal(t *testing.T) {
	q := Quantity(125_000)
	assert.True(t, q.Decimal().Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, q, NewQuantityFromDecimal(q.Decimal()))
	assert.Equal(t, NewQuantity(3), NewQuantity(8).Sub(NewQuantity(5)))
}

func TestLineTotal(t *testing.T) {
	total := LineTotal(NewQuantity(3), MustMoney("2.555"))
	assert.Equal(t, "7.67", total.StringFixed(2))
}

func TestParseCost(t *testing.T) {
	_, err := ParseCost("-1")
	assert.Error(t, err)
	_, err = ParseCost("x")
	assert.Error(t, err)
	c, err := ParseCost(" 4.20 ")
	require.NoError(t, err)
	assert.Equal(t, "4.2", c.String())
}
