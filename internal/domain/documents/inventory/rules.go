package inventory

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"pharmastock/internal/domain"
)

// RowRule is a boolean CEL expression every row must satisfy at validate.
// Variables: theoretical, counted, delta, unit_cost (double), product_code,
// lot_code (string) and new_lot (bool).
type RowRule struct {
	expr string
	prg  cel.Program
}

// CompileRowRule parses and type-checks expr.
func CompileRowRule(expr string) (*RowRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("theoretical", cel.DoubleType),
		cel.Variable("counted", cel.DoubleType),
		cel.Variable("delta", cel.DoubleType),
		cel.Variable("unit_cost", cel.DoubleType),
		cel.Variable("product_code", cel.StringType),
		cel.Variable("lot_code", cel.StringType),
		cel.Variable("new_lot", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("row rule env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile row rule: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("row rule must be boolean, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("row rule program: %w", err)
	}
	return &RowRule{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (r *RowRule) String() string {
	return r.expr
}

// Check evaluates the rule for one row.
func (r *RowRule) Check(row *Row) error {
	cost, _ := row.UnitCost().Float64()
	out, _, err := r.prg.Eval(map[string]any{
		"theoretical":  row.TheoreticalQty.Float64(),
		"counted":      row.CountedQty.Float64(),
		"delta":        row.Delta().Float64(),
		"unit_cost":    cost,
		"product_code": row.Product.Code,
		"lot_code":     row.LotCode(),
		"new_lot":      row.NewLot,
	})
	if err != nil {
		return fmt.Errorf("evaluate row rule: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool || !ok {
		return NewRowRuleViolation(row, r.expr)
	}
	return nil
}

// Hook adapts the rule to a BeforeValidate hook.
func (r *RowRule) Hook() domain.Hook[*Snapshot] {
	return func(_ context.Context, snap *Snapshot) error {
		for _, row := range snap.Rows {
			if err := r.Check(row); err != nil {
				return err
			}
		}
		return nil
	}
}
