package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/middleware"
)

// Streamer upgrades a request into a live event stream.
type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, types []events.Type) error
}

// EventsHandler serves the websocket event stream to notification collaborators.
type EventsHandler struct {
	stream Streamer
}

// NewEventsHandler creates a new EventsHandler instance.
func NewEventsHandler(stream Streamer) *EventsHandler {
	return &EventsHandler{stream: stream}
}

// Stream handles GET /api/v1/events/stream?types=a,b.
// The upgrader writes its own error response when the handshake fails.
func (h *EventsHandler) Stream(c *gin.Context) {
	var types []events.Type
	for _, t := range strings.Split(c.Query("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, events.Type(t))
		}
	}

	if err := h.stream.Serve(c.Writer, c.Request, types); err != nil {
		if log := middleware.GetLogger(c); log != nil {
			log.Warn("Event stream rejected", map[string]interface{}{
				"error": err.Error(),
			})
		}
		c.Abort()
	}
}
