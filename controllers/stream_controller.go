package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shantanubawankar/Stockpricetracker/middleware"
	"github.com/shantanubawankar/Stockpricetracker/services"
)

// StreamController serves the per-user live event stream
type StreamController struct {
	registry *services.StreamRegistry
}

func NewStreamController(registry *services.StreamRegistry) *StreamController {
	return &StreamController{registry: registry}
}

// Stream opens the long-lived server-sent event stream. Events are typed
// frames: connected once on open, then quote and alert frames produced by
// the session's polling task.
// GET /api/stream
func (sc *StreamController) Stream(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	session := sc.registry.Open(userID)
	defer sc.registry.Close(session)

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case <-session.Done():
			return
		case ev := <-session.Events():
			c.SSEvent(ev.Type, ev.Data)
			c.Writer.Flush()
		}
	}
}
