package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

const (
	pingInterval = 15 * time.Second
	sendBuffer   = 64
)

// Client is one websocket connection. seat is the human player it controls,
// or -1, and is guarded by Hub.seatsMu.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	seat int
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		seat: -1,
	}
}

// writeLoop drains send until it is closed, pinging in between.
func (c *Client) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func encode(msg Msg) []byte {
	b, _ := json.Marshal(msg)
	return b
}
