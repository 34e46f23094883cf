package telephony

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	headerEventSecret = "X-Event-Secret"
	maxEventBodyBytes = 64 << 10
)

// Publisher is the producing side of the bus.
type Publisher interface {
	Publish(ctx context.Context, ev CallEvent) int
}

// IngestHandler accepts events pushed by the telephony event bus over HTTP,
// normalizes them, and republishes them in-process.
//
// No session logic here; malformed events are answered 400 and dropped.
type IngestHandler struct {
	Bus Publisher

	// Secret, when set, must match the X-Event-Secret header.
	Secret string

	Now func() time.Time
}

func (h IngestHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Bus == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "event bus not configured"})
		return
	}
	if h.Secret != "" {
		got := c.GetHeader(headerEventSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid event secret"})
			return
		}
	}

	name := EventName(c.Param("name"))
	if !name.Valid() {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown event"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	ev, err := ParseEvent(name, body, h.Now())
	if err != nil {
		log.Debug("telephony event dropped", "event", name, "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	delivered := h.Bus.Publish(c.Request.Context(), ev)
	log.Debug("telephony event published", "event", name, "call_id", ev.CallID, "handlers", delivered)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
