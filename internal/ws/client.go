package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/support-chat-backend/internal/service"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256

	// inbound events per second per connection, with a small burst
	inboundRate  = 10
	inboundBurst = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one live duplex connection. Identity is fixed at upgrade time
// from the verified session; inbound payload sender fields are never used to
// change it. roomID is owned by the hub and only touched under its lock.
type Client struct {
	ID       string
	Identity service.Identity

	hub     *Hub
	conn    *websocket.Conn
	roomID  uint64
	send    chan []byte
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

// Serve upgrades an authenticated request to a websocket connection. The
// auth middleware must have stored uid and role in the echo context.
func Serve(hub *Hub, gw *Gateway) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, _ := c.Get("uid").(string)
		role, _ := c.Get("role").(string)
		if uid == "" || role == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			log.Printf("[ws] stage=upgrade_fail uid=%s err=%v", uid, err)
			return nil
		}

		client := &Client{
			ID:       uuid.NewString(),
			Identity: service.Identity{UID: uid, Role: role},
			hub:      hub,
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
			limiter:  rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		}

		hub.Register(client)
		go client.writePump()
		go client.readPump(gw)
		return nil
	}
}

// push queues data for the write pump without blocking. A full buffer means
// the client is too slow; the event is dropped and the connection's ping
// cycle will eventually tear it down if it is truly stuck.
func (c *Client) push(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend shuts the outbound queue exactly once; later pushes become
// no-ops instead of panicking on a closed channel.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump(gw *Gateway) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] conn=%s uid=%s stage=read_err err=%v", c.ID, c.Identity.UID, err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			gw.sendError(c, "validation", "malformed event")
			continue
		}
		if !c.limiter.Allow() {
			gw.sendError(c, "rate_limited", "too many events")
			continue
		}
		gw.Dispatch(c, msg)
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
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
