package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/domain/documents/inventory"
	"pharmastock/internal/infrastructure/http/v1/dto"
	"pharmastock/pkg/logger"
)

// EventsHandler streams domain events as server-sent events.
type EventsHandler struct {
	*BaseHandler
	bus       *inventory.EventBus
	buffer    int
	heartbeat time.Duration
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(base *BaseHandler, bus *inventory.EventBus) *EventsHandler {
	return &EventsHandler{BaseHandler: base, bus: bus, buffer: 64, heartbeat: 25 * time.Second}
}

// Stream handles GET /events?sessionId=
func (h *EventsHandler) Stream(c *gin.Context) {
	var filter *string
	if raw := c.Query("sessionId"); raw != "" {
		sid, err := dto.ParseID(raw, "sessionId")
		if err != nil {
			h.Error(c, err)
			return
		}
		s := sid.String()
		filter = &s
	}

	events, cancel := h.bus.Subscribe(h.buffer)
	defer cancel()

	ctx := c.Request.Context()
	logger.Debug(ctx, "event stream opened", "subscribers", h.bus.Subscribers())

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case e, ok := <-events:
			if !ok {
				return false
			}
			if filter != nil && e.SessionID.String() != *filter {
				return true
			}
			c.SSEvent(string(e.Kind), e)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
