package document_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/documents/inventory"
)

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "inventory_date DESC", false},
		{"reference", "reference ASC", false},
		{"+status", "status ASC", false},
		{"-created_at", "created_at DESC", false},
		{"- reference", "reference DESC", false},
		{"reference; DROP TABLE inv_sessions", "", true},
		{"-user_name", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOrderBy(tt.in, "inventory_date DESC", sessionOrderColumns)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyListFilter(t *testing.T) {
	from := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC)

	q := applyListFilter(builder().Select("id").From(sessionsTable), inventory.ListFilter{
		Statuses: []inventory.Status{inventory.StatusDraft, inventory.StatusValidated},
		Type:     inventory.TypeWard,
		DateFrom: &from,
		DateTo:   &to,
	})
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id FROM inv_sessions WHERE deletion_mark = $1 AND status IN ($2,$3) AND inventory_type = $4 "+
			"AND inventory_date >= $5 AND inventory_date < $6",
		sql)
	assert.Equal(t, []any{
		false, inventory.StatusDraft, inventory.StatusValidated, inventory.TypeWard,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}, args)
}

func TestApplyListFilter_IncludeDeleted(t *testing.T) {
	f := inventory.ListFilter{}
	f.IncludeDeleted = true
	sql, args, err := applyListFilter(builder().Select("id").From(sessionsTable), f).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM inv_sessions", sql)
	assert.Empty(t, args)
}

func TestListQuery_GroupsRowsByProduct(t *testing.T) {
	sessionID := id.New()
	sql, args, err := listQuery(sessionID).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM inv_rows r JOIN cat_products p ON p.id = r.product_id LEFT JOIN stk_lots l ON l.code = r.lot_code")
	assert.Contains(t, sql, "WHERE r.session_id = $1")
	assert.Contains(t, sql, "ORDER BY MIN(r.seq) OVER (PARTITION BY r.product_id), r.seq")
	assert.Equal(t, []any{sessionID}, args)
}

func TestRowRecord_ToRow(t *testing.T) {
	code := "L-42"
	due := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := rowRecord{
		ID:          id.New(),
		SessionID:   id.New(),
		ProductID:   id.New(),
		ProductCode: "P1",
		Description: "PARACETAMOL 500",
		LotCode:     &code,
		LotDue:      &due,
		LockVersion: 3,
	}
	r := rec.toRow()
	assert.Equal(t, rec.ID, r.Handle)
	assert.True(t, r.Persisted())
	assert.Equal(t, 3, r.Lock)
	require.True(t, r.HasLot())
	assert.Equal(t, "L-42", r.Lot.Code)
	assert.Equal(t, due, r.Lot.DueDate)
	assert.Equal(t, rec.ProductID, r.Lot.ProductID)

	rec.LotCode = nil
	assert.False(t, rec.toRow().HasLot())
}
