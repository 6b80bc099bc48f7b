package ws

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/easelhq/easel/backend/internal/ratelimit"
	"github.com/easelhq/easel/backend/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024

	// Cursor relays above this rate are dropped, not disconnected
	cursorPerSecond = 60
	cursorBurst     = 120
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	handler       *session.Handler
	send          chan []byte
	id            string
	cursorLimiter *ratelimit.Limiter
}

func ServeWs(hub *Hub, handler *session.Handler, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	client := &Client{
		hub:           hub,
		conn:          conn,
		handler:       handler,
		send:          make(chan []byte, 512),
		id:            uuid.New().String(),
		cursorLimiter: ratelimit.NewLimiter(cursorPerSecond, cursorBurst),
	}

	hub.register(client)

	go client.writePump()
	go client.readPump()
}

func (c *Client) ID() string {
	return c.id
}

// Send queues one event for this connection. Never blocks; a full buffer
// means the frame is dropped and reported to the caller.
func (c *Client) Send(event string, data any) error {
	payload, err := encodeEvent(event, data)
	if err != nil {
		return err
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return fmt.Errorf("send buffer full for client %s", c.id)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.handler.Disconnect(c)
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		ev, err := session.DecodeInbound(message)
		if err != nil {
			log.Printf("Invalid message from client %s: %v", c.id, err)
			continue
		}

		if _, isCursor := ev.(session.CursorMove); isCursor && !c.cursorLimiter.Allow() {
			continue
		}

		c.handler.Handle(c, ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
