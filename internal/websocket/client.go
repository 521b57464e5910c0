package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// TopicAuthorizer reports whether userID may subscribe to topic.
type TopicAuthorizer func(ctx context.Context, userID int64, topic string) bool

// control is a message sent by the browser.
type control struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// Client represents a single WebSocket connection owned by one user.
type Client struct {
	hub       *Hub
	conn      *ws.Conn
	send      chan []byte
	userID    int64
	topics    map[string]struct{}
	authorize TopicAuthorizer
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, userID int64, authorize TopicAuthorizer) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		userID:    userID,
		authorize: authorize,
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters, which also
// ends every topic subscription.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump handles subscribe/unsubscribe requests until the connection closes.
func (c *Client) readPump(ctx context.Context) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != ws.MessageText {
			continue
		}
		c.handleControl(ctx, data)
	}
}

func (c *Client) handleControl(ctx context.Context, data []byte) {
	var m control
	if err := json.Unmarshal(data, &m); err != nil || m.Topic == "" {
		return
	}
	switch m.Action {
	case "subscribe":
		if c.authorize != nil && !c.authorize(ctx, c.userID, m.Topic) {
			c.reply(Message{Type: "subscribe_denied", Topic: m.Topic})
			return
		}
		c.hub.Subscribe(c, m.Topic)
		c.reply(Message{Type: "subscribed", Topic: m.Topic})
	case "unsubscribe":
		c.hub.Unsubscribe(c, m.Topic)
	}
}

// reply sends a message to this client only, via the hub's delivery path.
func (c *Client) reply(msg Message) {
	c.hub.deliver(msg, func() map[*Client]struct{} {
		if _, ok := c.hub.clients[c]; !ok {
			return nil
		}
		return map[*Client]struct{}{c: {}}
	})
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
