package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/pkg/serverutils"
	"devotion-guide-be/internal/service"
	"devotion-guide-be/pkg/guide/protocol"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

// Client serves guide sessions over one websocket connection. Each text
// frame from the peer is a suggestion request; each event goes back as one
// text frame. One session runs at a time per connection.
type Client struct {
	Conn   *websocket.Conn
	UserID uuid.UUID
	Send   chan []byte

	guide  service.IGuideService
	logger logger.ILogger
	busy   atomic.Bool
}

// errorFrame reports a request that never started streaming.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServeWs blocks until the peer disconnects.
func ServeWs(c *websocket.Conn, userID uuid.UUID, guide service.IGuideService, log logger.ILogger) {
	client := &Client{Conn: c, UserID: userID, Send: make(chan []byte, 16), guide: guide, logger: log}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.writePump(ctx)
	client.readPump(ctx)
}

// readPump reads requests until the connection fails.
func (c *Client) readPump(ctx context.Context) {
	defer c.Conn.Close()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WEBSOCKET", "Connection closed unexpectedly", map[string]interface{}{
					"user_id": c.UserID.String(),
					"error":   err.Error(),
				})
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var req dto.SuggestionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(ctx, errorFrame{Type: "error", Message: "request must be a JSON object"})
			continue
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			c.reply(ctx, errorFrame{Type: "error", Message: err.Error()})
			continue
		}
		if !c.busy.CompareAndSwap(false, true) {
			c.reply(ctx, errorFrame{Type: "error", Message: "a session is already streaming on this connection"})
			continue
		}
		go c.stream(ctx, &req)
	}
}

func (c *Client) stream(ctx context.Context, req *dto.SuggestionRequest) {
	defer c.busy.Store(false)

	s, err := c.guide.Start(ctx, c.UserID, req)
	if err != nil {
		c.reply(ctx, errorFrame{Type: "error", Message: err.Error()})
		return
	}
	for ev := range s.Events() {
		line, err := protocol.Encode(ev)
		if err != nil {
			continue
		}
		c.send(ctx, bytes.TrimRight(line, "\n"))
	}
	_, _ = s.Wait()
}

func (c *Client) reply(ctx context.Context, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.send(ctx, b)
}

func (c *Client) send(ctx context.Context, b []byte) {
	select {
	case c.Send <- b:
	case <-ctx.Done():
	}
}

// writePump owns all writes to the connection.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
