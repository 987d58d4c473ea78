package inventory

import (
	"sort"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/registers/stock"
)

type lotOp int

const (
	lotKeep lotOp = iota
	lotCreate
	lotUpdate
)

// WorkingSet is the row list owned by one edit context, together with the
// changes that save has to persist. Save commits it wholesale.
type WorkingSet struct {
	rows []*Row

	// pendingDeletes holds ids of persisted rows dropped from the list.
	pendingDeletes []id.ID
	// superseded maps a persisted row id to the session-owned lot it was bound to.
	superseded map[id.ID]*stock.Lot
	// orphaned are session-owned lots of persisted rows removed from the list.
	orphaned []*stock.Lot

	dirty  map[id.ID]bool
	lotOps map[id.ID]lotOp
	reset  bool
}

// NewWorkingSet wraps rows loaded from storage.
func NewWorkingSet(rows []*Row) *WorkingSet {
	ws := &WorkingSet{}
	ws.clearTrackers()
	for _, r := range rows {
		if id.IsNil(r.Handle) {
			r.Handle = r.ID
		}
		ws.rows = append(ws.rows, r)
	}
	return ws
}

func (ws *WorkingSet) clearTrackers() {
	ws.pendingDeletes = nil
	ws.superseded = make(map[id.ID]*stock.Lot)
	ws.orphaned = nil
	ws.dirty = make(map[id.ID]bool)
	ws.lotOps = make(map[id.ID]lotOp)
	ws.reset = false
}

// Rows returns the rows in display order. The slice must not be modified.
func (ws *WorkingSet) Rows() []*Row {
	return ws.rows
}

// Len returns the number of rows.
func (ws *WorkingSet) Len() int {
	return len(ws.rows)
}

// Row returns the row addressed by handle.
func (ws *WorkingSet) Row(handle id.ID) (*Row, error) {
	for _, r := range ws.rows {
		if r.Handle == handle {
			return r, nil
		}
	}
	return nil, apperror.NewNotFound("inventory row", handle.String())
}

// Contains reports whether a row with key is present.
func (ws *WorkingSet) Contains(k RowKey) bool {
	for _, r := range ws.rows {
		if r.Key() == k {
			return true
		}
	}
	return false
}

// ProductRows returns the rows counting productCode.
func (ws *WorkingSet) ProductRows(productCode string) []*Row {
	var out []*Row
	for _, r := range ws.rows {
		if r.Product.Code == productCode {
			out = append(out, r)
		}
	}
	return out
}

// ProductCount returns the number of distinct products represented.
func (ws *WorkingSet) ProductCount() int {
	seen := make(map[string]struct{}, len(ws.rows))
	for _, r := range ws.rows {
		seen[r.Product.Code] = struct{}{}
	}
	return len(seen)
}

// insertGrouped places r right after the last row of the same product, or
// at the end when the product is not present yet.
func (ws *WorkingSet) insertGrouped(r *Row) {
	if id.IsNil(r.Handle) {
		r.Handle = id.New()
	}
	ws.dirty[r.Handle] = true

	last := -1
	for i, existing := range ws.rows {
		if existing.Product.Code == r.Product.Code {
			last = i
		}
	}
	if last < 0 || last == len(ws.rows)-1 {
		ws.rows = append(ws.rows, r)
		return
	}
	ws.rows = append(ws.rows, nil)
	copy(ws.rows[last+2:], ws.rows[last+1:])
	ws.rows[last+1] = r
}

func (ws *WorkingSet) markDirty(r *Row) {
	ws.dirty[r.Handle] = true
}

func (ws *WorkingSet) setLotOp(r *Row, op lotOp) {
	if ws.lotOps[r.Handle] == lotCreate && op == lotUpdate {
		return
	}
	ws.lotOps[r.Handle] = op
}

// supersede queues the stored session-owned lot of a persisted row for
// deletion. Only the first lot replaced since the last save is stored.
func (ws *WorkingSet) supersede(r *Row, old *stock.Lot) {
	if _, ok := ws.superseded[r.ID]; ok {
		return
	}
	ws.superseded[r.ID] = old.Clone()
}

// restoreSuperseded takes back a queued lot when the row is bound to its code
// again. It reports whether the lot was found.
func (ws *WorkingSet) restoreSuperseded(r *Row, code string) bool {
	old, ok := ws.superseded[r.ID]
	if !ok || old.Code != code {
		return false
	}
	delete(ws.superseded, r.ID)
	return true
}

// drop removes rows from the list and queues the persisted ones for deletion.
func (ws *WorkingSet) drop(handles map[id.ID]bool) int {
	kept := ws.rows[:0]
	removed := 0
	for _, r := range ws.rows {
		if !handles[r.Handle] {
			kept = append(kept, r)
			continue
		}
		removed++
		ws.forget(r)
	}
	for i := len(kept); i < len(ws.rows); i++ {
		ws.rows[i] = nil
	}
	ws.rows = kept
	return removed
}

func (ws *WorkingSet) forget(r *Row) {
	delete(ws.dirty, r.Handle)
	delete(ws.lotOps, r.Handle)
	if !r.Persisted() {
		return
	}
	ws.pendingDeletes = append(ws.pendingDeletes, r.ID)
	if old, ok := ws.superseded[r.ID]; ok {
		ws.orphaned = append(ws.orphaned, old)
		delete(ws.superseded, r.ID)
	}
	if r.NewLot && r.HasLot() && !r.Lot.IsAuto() {
		ws.orphaned = append(ws.orphaned, r.Lot.Clone())
	}
}

// clear empties the list. Every persisted row is scheduled for deletion.
func (ws *WorkingSet) clear() {
	for _, r := range ws.rows {
		ws.forget(r)
	}
	ws.rows = nil
	ws.reset = true
}

// HasRowChanges reports whether any row, lot or deletion waits to be saved.
func (ws *WorkingSet) HasRowChanges() bool {
	return ws.reset ||
		len(ws.dirty) > 0 ||
		len(ws.pendingDeletes) > 0 ||
		len(ws.superseded) > 0 ||
		len(ws.orphaned) > 0
}

// IsDirty reports whether the row addressed by handle changed since the last save.
func (ws *WorkingSet) IsDirty(handle id.ID) bool {
	return ws.dirty[handle]
}

// cloneRows returns deep copies for a save attempt.
func (ws *WorkingSet) cloneRows() []*Row {
	out := make([]*Row, len(ws.rows))
	for i, r := range ws.rows {
		out[i] = r.Clone()
	}
	return out
}

// commit adopts the rows written by a successful save and forgets all
// pending changes.
func (ws *WorkingSet) commit(rows []*Row) {
	ws.rows = rows
	ws.clearTrackers()
}

// lotsToDelete returns the superseded and orphaned lots not bound to any
// remaining row.
func (ws *WorkingSet) lotsToDelete(rows []*Row) []string {
	bound := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.HasLot() {
			bound[r.Lot.Code] = true
		}
	}
	var codes []string
	seen := make(map[string]bool)
	add := func(l *stock.Lot) {
		if l == nil || l.IsAuto() || bound[l.Code] || seen[l.Code] {
			return
		}
		seen[l.Code] = true
		codes = append(codes, l.Code)
	}
	for _, l := range ws.superseded {
		add(l)
	}
	for _, l := range ws.orphaned {
		add(l)
	}
	sort.Strings(codes)
	return codes
}
