package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The panel is served from anywhere the operator points a browser at
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades the request and streams hub broadcasts to it
func WebSocketHandler(hub *Hub, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithField("component", "websocket").WithError(err).Error("Failed to upgrade connection to WebSocket")
			return
		}

		client := hub.NewClient(uuid.New().String())
		hub.Register(client)

		go writePump(client, conn, log)
		go readPump(client, conn, log)
	}
}

// readPump reads until the peer goes away. Incoming messages are ignored.
func readPump(client *Client, conn *websocket.Conn, log logrus.FieldLogger) {
	defer func() {
		client.Hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithFields(logrus.Fields{
					"component": "websocket",
					"client":    client.ID,
				}).WithError(err).Warn("WebSocket read error")
			}
			return
		}
	}
}

// writePump sends hub messages, one per frame, and keeps the connection alive
func writePump(client *Client, conn *websocket.Conn, log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithFields(logrus.Fields{
					"component": "websocket",
					"client":    client.ID,
				}).WithError(err).Warn("WebSocket write failed")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
