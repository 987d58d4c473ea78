package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/registers/stock"
)

func TestRowRule_Check(t *testing.T) {
	row := &Row{
		Product:        ProductRef{Code: "prod-x"},
		Lot:            &stock.Lot{Code: "L1", Cost: nullCost("2.50")},
		TheoreticalQty: types.NewQuantity(10),
		CountedQty:     types.NewQuantity(4),
	}

	tests := []struct {
		expr string
		ok   bool
	}{
		{"delta >= -10.0", true},
		{"delta > -5.0", false},
		{"unit_cost < 3.0 && !new_lot", true},
		{"lot_code.startsWith('L') && product_code == 'prod-x'", true},
		{"counted == theoretical", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rule, err := CompileRowRule(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, rule.String())

			err = rule.Check(row)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.True(t, apperror.HasCode(err, CodeRowRuleViolation))
		})
	}
}

func TestCompileRowRule_Rejects(t *testing.T) {
	for _, expr := range []string{"counted +", "counted + 1.0", "unknown > 1.0", "'text'"} {
		_, err := CompileRowRule(expr)
		assert.Error(t, err, expr)
	}
}

func TestRowRule_Hook(t *testing.T) {
	rule, err := CompileRowRule("counted > 0.0")
	require.NoError(t, err)

	good := &Row{Product: ProductRef{Code: "a"}, CountedQty: types.NewQuantity(1)}
	bad := &Row{Product: ProductRef{Code: "b"}}
	hook := rule.Hook()

	assert.NoError(t, hook(context.Background(), &Snapshot{Rows: []*Row{good}}))
	err = hook(context.Background(), &Snapshot{Rows: []*Row{good, bad}})
	require.Error(t, err)
	ae, _ := apperror.AsAppError(err)
	assert.Equal(t, "b", ae.Detail("productCode"))
}
