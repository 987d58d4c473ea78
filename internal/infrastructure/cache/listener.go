// Package cache keeps catalog lookups in Redis and drops them when PostgreSQL
// announces a catalog change through LISTEN/NOTIFY.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pharmastock/pkg/logger"
)

// CatalogChannel is the NOTIFY channel fired by the catalog table triggers.
// The payload is the table name.
const CatalogChannel = "catalog_changed"

// InvalidationListener is called for every notification.
type InvalidationListener func(ctx context.Context, channel, payload string)

// Listener holds a dedicated connection on LISTEN and fans notifications out
// to registered listeners. It reconnects until stopped.
type Listener struct {
	pool     *pgxpool.Pool
	channels []string

	listeners   []InvalidationListener
	listenersMu sync.RWMutex

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool

	retryDelay time.Duration
}

// NewListener creates a listener for channels.
func NewListener(pool *pgxpool.Pool, channels ...string) *Listener {
	if len(channels) == 0 {
		channels = []string{CatalogChannel}
	}
	return &Listener{pool: pool, channels: channels, retryDelay: time.Second}
}

// OnNotify registers fn. Register before Start.
func (l *Listener) OnNotify(fn InvalidationListener) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Start launches the listen loop. Calling it twice is a no-op.
func (l *Listener) Start(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop()
	logger.Info(l.ctx, "catalog listener started", "channels", l.channels)
}

// Stop ends the loop and waits for it.
func (l *Listener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	cancel()
	l.wg.Wait()
	logger.Info(context.Background(), "catalog listener stopped")
}

func (l *Listener) listenSQL() string {
	var b strings.Builder
	for _, ch := range l.channels {
		fmt.Fprintf(&b, "LISTEN %s;", ch)
	}
	return b.String()
}

func (l *Listener) listenLoop() {
	defer l.wg.Done()

	for l.ctx.Err() == nil {
		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil {
				logger.Error(l.ctx, "acquire connection for LISTEN failed", "error", err)
				l.sleep()
			}
			continue
		}

		if _, err := conn.Exec(l.ctx, l.listenSQL()); err != nil {
			logger.Error(l.ctx, "LISTEN failed", "error", err)
			conn.Release()
			l.sleep()
			continue
		}

		// Anything cached while disconnected may be stale.
		l.dispatch("", "reconnect")
		l.wait(conn)
		// The session still holds LISTEN registrations.
		conn.Hijack().Close(context.Background())
	}
}

func (l *Listener) sleep() {
	select {
	case <-l.ctx.Done():
	case <-time.After(l.retryDelay):
	}
}

func (l *Listener) wait(conn *pgxpool.Conn) {
	for {
		n, err := conn.Conn().WaitForNotification(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil {
				logger.Warn(l.ctx, "catalog listener connection lost", "error", err)
			}
			return
		}
		logger.Debug(l.ctx, "received notification", "channel", n.Channel, "payload", n.Payload)
		l.dispatch(n.Channel, n.Payload)
	}
}

// dispatch calls every listener in turn; a panicking listener does not stop the others.
func (l *Listener) dispatch(channel, payload string) {
	l.listenersMu.RLock()
	listeners := append([]InvalidationListener(nil), l.listeners...)
	l.listenersMu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(l.ctx, "invalidation listener panic recovered", "channel", channel, "panic", r)
				}
			}()
			fn(l.ctx, channel, payload)
		}()
	}
}
