package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// WSHandler upgrades authenticated requests to hub connections
type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewWSHandler creates a WSHandler. Origins are not checked; the JWT is the credential.
func NewWSHandler(hub *realtime.Hub, log *logrus.Entry) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Connect serves GET /ws
func (h *WSHandler) Connect(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.WithError(err).WithField("user_id", currentUserID).Debug("websocket upgrade failed")
		return nil
	}

	ctx := c.Request().Context()
	client := realtime.NewClient(h.hub, conn, currentUserID)
	h.hub.Attach(ctx, client)
	client.Serve(ctx)
	return nil
}
