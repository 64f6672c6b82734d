package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/events"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

const (
	wsWriteTimeout = 10 * time.Second

	// wsPongQueue bounds pending pong replies.
	wsPongQueue = 8
)

// pongMessage answers any inbound text frame.
var pongMessage = map[string]string{"type": "pong"}

// WSHandler upgrades /ws/scheduler sessions and pushes job events.
// Sessions are stateless: no replay, clients re-subscribe on
// reconnect.
type WSHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   logger.Interface
}

// NewWSHandler creates a websocket handler.
func NewWSHandler(bus *events.Bus, log logger.Interface) *WSHandler {
	return &WSHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		logger: log.WithComponent("api.ws"),
	}
}

// Handle serves one websocket session.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	pongs := make(chan struct{}, wsPongQueue)
	done := make(chan struct{})

	// Reader: any inbound text elicits a pong; a read error ends the
	// session.
	go func() {
		defer close(done)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-pongs:
			if writeErr := h.write(conn, pongMessage); writeErr != nil {
				return
			}
		case event, ok := <-sub.C():
			if !ok {
				// Dropped by the bus for falling behind.
				return
			}
			if writeErr := h.write(conn, event); writeErr != nil {
				return
			}
		}
	}
}

func (h *WSHandler) write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
