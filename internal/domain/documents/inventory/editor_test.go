package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
)

func TestEditorRegistry(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	reg := NewEditorRegistry(10 * time.Minute)
	reg.clock = func() time.Time { return now }

	sess := NewSession(Header{Reference: "INV-1", Type: TypeMain}, "pharmacist")
	stale := &EditContext{ID: id.New(), Set: NewWorkingSet(nil)}
	active := &EditContext{ID: id.New(), Session: sess, Header: sess.Header, Set: NewWorkingSet(nil)}
	reg.Add(stale)
	reg.Add(active)
	require.Equal(t, 2, reg.Len())

	editID, ok := reg.EditOf(sess.ID)
	require.True(t, ok)
	assert.Equal(t, active.ID, editID)

	now = now.Add(8 * time.Minute)
	require.NoError(t, reg.With(active.ID, func(ec *EditContext) error { return nil }))

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, reg.Sweep(context.Background()))
	assert.Equal(t, 1, reg.Len())

	err := reg.With(stale.ID, func(*EditContext) error { return nil })
	assert.True(t, apperror.IsNotFound(err))

	boom := errors.New("boom")
	assert.ErrorIs(t, reg.With(active.ID, func(*EditContext) error { return boom }), boom)

	assert.Equal(t, 1, reg.RemoveSession(sess.ID))
	assert.False(t, reg.Remove(active.ID))
	assert.Zero(t, reg.Len())
}

func TestEditContext_UnsavedChanges(t *testing.T) {
	h := newHarness(t, plainSettings())
	ec := h.open("INV-EDIT")
	assert.Equal(t, id.Nil, ec.SessionID())
	assert.Equal(t, Status(""), ec.Status())
	assert.True(t, ec.HasUnsavedChanges())

	h.add(ec, "prod-x")
	_, err := h.svc.Save(h.ctx, ec)
	require.NoError(t, err)
	assert.False(t, ec.HasUnsavedChanges())
	assert.Equal(t, StatusDraft, ec.Status())

	hdr := ec.Header
	hdr.Comment = "recount shelf B"
	require.NoError(t, h.svc.SetHeader(h.ctx, ec, hdr))
	assert.True(t, ec.HasUnsavedChanges())
}
