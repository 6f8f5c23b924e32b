package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messenger-service/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

var (
	errClosed       = errors.New("connection closed")
	errSlowConsumer = errors.New("send buffer full")
)

// Client is one live websocket connection. It implements presence.Conn.
type Client struct {
	info ConnInfo
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{
		info: info,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string     { return c.info.ConnID }
func (c *Client) UserID() string { return c.info.UserID }

// Send queues event for the write pump. It never blocks: a full buffer drops the event.
func (c *Client) Send(event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errClosed
	default:
		return errSlowConsumer
	}
}

// Close stops the write pump, which then closes the socket. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// readPump feeds inbound frames to dispatch until the socket fails. It returns the error that
// ended the loop.
func (c *Client) readPump(dispatch func(inbound)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			_ = c.Send(models.NewEvent(models.EventError, errorPayload{Error: "malformed event", Code: "VALIDATION_FAILED"}))
			continue
		}
		dispatch(in)
	}
}
