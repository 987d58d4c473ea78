// Package catalog_repo provides PostgreSQL implementations of the read-only
// catalogs: products, movement types, suppliers and wards.
package catalog_repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/infrastructure/storage/postgres"
)

// baseRepo holds the select plumbing shared by catalog tables.
type baseRepo[T any] struct {
	txm     *postgres.TxManager
	table   string
	entity  string
	columns []string
	order   string
}

func newBaseRepo[T any](txm *postgres.TxManager, table, entity, order string) baseRepo[T] {
	return baseRepo[T]{
		txm:     txm,
		table:   table,
		entity:  entity,
		columns: postgres.ExtractDBColumns[T](),
		order:   order,
	}
}

func (r *baseRepo[T]) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *baseRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.columns...).From(r.table)
}

// getOne returns the single row matching pred, or NotFound naming key.
func (r *baseRepo[T]) getOne(ctx context.Context, pred squirrel.Sqlizer, key any) (*T, error) {
	sql, args, err := r.baseSelect().Where(pred).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var item T
	err = pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &item, sql, args...)
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound(r.entity, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.entity, err)
	}
	return &item, nil
}

func (r *baseRepo[T]) list(ctx context.Context, pred squirrel.Sqlizer) ([]T, error) {
	q := r.baseSelect().OrderBy(r.order)
	if pred != nil {
		q = q.Where(pred)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	items := []T{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.entity, err)
	}
	return items, nil
}

func (r *baseRepo[T]) count(ctx context.Context) (int, error) {
	sql, args, err := r.builder().Select("COUNT(*)").From(r.table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.entity, err)
	}
	return n, nil
}

// upsert inserts data or overwrites the row sharing conflictCol.
func (r *baseRepo[T]) upsert(ctx context.Context, data map[string]any, conflictCol string) error {
	set := make([]string, 0, len(data))
	for col := range data {
		if col != conflictCol && col != "id" {
			set = append(set, col+" = EXCLUDED."+col)
		}
	}
	sort.Strings(set)

	suffix := "ON CONFLICT (" + conflictCol + ") DO NOTHING"
	if len(set) > 0 {
		suffix = "ON CONFLICT (" + conflictCol + ") DO UPDATE SET " + strings.Join(set, ", ")
	}
	sql, args, err := r.builder().Insert(r.table).SetMap(data).Suffix(suffix).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", r.entity, err)
	}
	return nil
}
