package inventory

import (
	"time"

	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
)

const (
	newLotMarker = "N"
	autoLotLabel = "AUTO"
)

// RowView is the flat projection of a row for tables and exports.
type RowView struct {
	Handle             id.ID          `json:"handle"`
	ID                 *id.ID         `json:"id,omitempty"`
	ProductCode        string         `json:"productCode"`
	ProductDescription string         `json:"productDescription"`
	NewLot             string         `json:"newLot"`
	LotCode            string         `json:"lotCode"`
	DueDate            *time.Time     `json:"dueDate,omitempty"`
	TheoreticalQty     types.Quantity `json:"theoreticalQty"`
	CountedQty         types.Quantity `json:"countedQty"`
	UnitCost           types.Money    `json:"unitCost"`
	Total              types.Money    `json:"total"`
	Dirty              bool           `json:"dirty,omitempty"`
}

// Project maps a row to its view.
func Project(r *Row) RowView {
	v := RowView{
		Handle:             r.Handle,
		ProductCode:        r.Product.Code,
		ProductDescription: r.Product.Description,
		TheoreticalQty:     r.TheoreticalQty,
		CountedQty:         r.CountedQty,
		UnitCost:           r.UnitCost(),
		Total:              r.Total(),
	}
	if r.Persisted() {
		rowID := r.ID
		v.ID = &rowID
	}
	if r.NewLot {
		v.NewLot = newLotMarker
	}
	if r.HasLot() {
		v.LotCode = r.Lot.Code
		if r.Lot.IsAuto() {
			v.LotCode = autoLotLabel
		}
		due := r.Lot.DueDate
		v.DueDate = &due
	}
	return v
}

// ProjectSet maps every row of ws in order.
func ProjectSet(ws *WorkingSet) []RowView {
	views := make([]RowView, 0, ws.Len())
	for _, r := range ws.Rows() {
		v := Project(r)
		v.Dirty = ws.IsDirty(r.Handle)
		views = append(views, v)
	}
	return views
}

// ProjectRows maps stored rows.
func ProjectRows(rows []*Row) []RowView {
	views := make([]RowView, 0, len(rows))
	for _, r := range rows {
		views = append(views, Project(r))
	}
	return views
}
