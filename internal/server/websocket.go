package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Sakenfor/pixsim7-sub008/internal/events"
	"github.com/Sakenfor/pixsim7-sub008/internal/logger"
)

// eventStreamBuffer is the per-client event queue; slow clients drop events
// rather than stalling the bus.
const eventStreamBuffer = 64

// writeWait bounds each WebSocket write.
const writeWait = 5 * time.Second

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Allow connections without origin header (e.g., CLI tools)
		if origin == "" {
			return true
		}

		// The launcher serves local UIs only
		allowedOrigins := []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
			"http://[::1]",
			"https://[::1]",
		}
		for _, allowed := range allowedOrigins {
			if strings.HasPrefix(origin, allowed) {
				return true
			}
		}

		logger.WithFields(logger.Fields{
			"origin": origin,
			"remote": r.RemoteAddr,
		}).Warn("WebSocket connection rejected - invalid origin")
		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEventsWS streams every bus event to the client as JSON, filtered by
// an optional pattern query parameter (default "*").
func (s *Server) handleEventsWS(c echo.Context) error {
	pattern := c.QueryParam("pattern")
	if pattern == "" {
		pattern = "*"
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	queue := make(chan events.Event, eventStreamBuffer)
	sub := s.deps.Bus.Subscribe(pattern, func(event events.Event) {
		select {
		case queue <- event:
		default:
			// Client is behind; dropping beats blocking the bus.
		}
	})
	defer s.deps.Bus.Unsubscribe(sub)

	// Reader goroutine: we ignore client messages but need the read loop
	// to observe disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case event := <-queue:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(event); err != nil {
				return nil
			}
		}
	}
}
