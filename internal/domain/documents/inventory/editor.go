package inventory

import (
	"context"
	"sync"
	"time"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/pkg/logger"
)

// EditContext is one operator's open edit of a session. Session is nil
// until the first save creates it.
type EditContext struct {
	ID      id.ID
	Session *Session
	Header  Header
	Set     *WorkingSet
	User    string

	mu       sync.Mutex
	lastUsed time.Time
}

// SessionID returns the edited session id or id.Nil for an unsaved session.
func (ec *EditContext) SessionID() id.ID {
	if ec.Session == nil {
		return id.Nil
	}
	return ec.Session.ID
}

// Status returns the edited session's status, "" while unsaved.
func (ec *EditContext) Status() Status {
	if ec.Session == nil {
		return ""
	}
	return ec.Session.Status
}

// HasUnsavedChanges reports pending header or row edits.
func (ec *EditContext) HasUnsavedChanges() bool {
	if ec.Session == nil {
		return true
	}
	return !ec.Session.Header.Equal(ec.Header) || ec.Set.HasRowChanges()
}

// EditorRegistry keeps open edit contexts in memory and evicts idle ones.
type EditorRegistry struct {
	mu    sync.Mutex
	edits map[id.ID]*EditContext
	ttl   time.Duration
	clock func() time.Time
}

// NewEditorRegistry creates a registry evicting edits idle for ttl.
func NewEditorRegistry(ttl time.Duration) *EditorRegistry {
	return &EditorRegistry{
		edits: make(map[id.ID]*EditContext),
		ttl:   ttl,
		clock: time.Now,
	}
}

// Add registers ec.
func (r *EditorRegistry) Add(ec *EditContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ec.lastUsed = r.clock()
	r.edits[ec.ID] = ec
}

// With runs fn with the edit locked. Unknown edits are NotFound.
func (r *EditorRegistry) With(editID id.ID, fn func(ec *EditContext) error) error {
	r.mu.Lock()
	ec, ok := r.edits[editID]
	if ok {
		ec.lastUsed = r.clock()
	}
	r.mu.Unlock()
	if !ok {
		return apperror.NewNotFound("inventory edit", editID.String())
	}

	ec.mu.Lock()
	defer ec.mu.Unlock()
	return fn(ec)
}

// Remove closes an edit.
func (r *EditorRegistry) Remove(editID id.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.edits[editID]
	delete(r.edits, editID)
	return ok
}

// RemoveSession closes every edit of sessionID.
func (r *EditorRegistry) RemoveSession(sessionID id.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, ec := range r.edits {
		if ec.SessionID() == sessionID {
			delete(r.edits, key)
			n++
		}
	}
	return n
}

// EditOf returns the open edit of sessionID, if any.
func (r *EditorRegistry) EditOf(sessionID id.ID) (id.ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, ec := range r.edits {
		if ec.SessionID() == sessionID {
			return key, true
		}
	}
	return id.Nil, false
}

// Len returns the number of open edits.
func (r *EditorRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.edits)
}

// Sweep evicts edits idle longer than the TTL.
func (r *EditorRegistry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.clock().Add(-r.ttl)
	n := 0
	for key, ec := range r.edits {
		if ec.lastUsed.Before(cutoff) {
			delete(r.edits, key)
			n++
		}
	}
	if n > 0 {
		logger.Debug(ctx, "evicted idle inventory edits", "count", n)
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (r *EditorRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
