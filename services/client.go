package services

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tuanpham2xx3/LOTOTET-sub000/utils/logger"
)

// Event is the wire frame: a named event with a JSON payload and an
// optional acknowledgement id echoed back on the reply.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AckID   int64           `json:"ackId,omitempty"`
}

// Client is one websocket connection. The socket id is transport-scoped;
// player identity survives it across reconnects.
//
// The send channel is never closed: shutdown is signalled on done, and
// writePump is the sole owner of the connection teardown. Senders race
// freely against Close without a panic window.
type Client struct {
	socketID string
	ip       string
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func (c *Client) SocketID() string {
	return c.socketID
}

// Close signals shutdown. Idempotent and safe against concurrent sends.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// trySend queues a frame unless the client is closed or the buffer is
// full. Reports whether the frame was accepted.
func (c *Client) trySend(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Emit queues a named event for this socket, dropping it if the client is
// gone or the send buffer is full rather than blocking the caller.
func (c *Client) Emit(name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("[Client %s] encode %s: %v", c.socketID, name, err)
		return
	}
	frame, _ := json.Marshal(Event{Name: name, Payload: data})
	if !c.trySend(frame) {
		logger.Warnf("[Client %s] dropping %s", c.socketID, name)
	}
}

// Ack answers a request that carried an ackId.
func (c *Client) Ack(ackID int64, payload interface{}) {
	if ackID == 0 {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("[Client %s] encode ack: %v", c.socketID, err)
		return
	}
	frame, _ := json.Marshal(Event{Name: "ack", Payload: data, AckID: ackID})
	if !c.trySend(frame) {
		logger.Warnf("[Client %s] dropping ack %d", c.socketID, ackID)
	}
}

func (c *Client) readPump(d *Dispatcher) {
	defer func() {
		d.HandleDisconnect(c)
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("[Client %s] disconnected normally", c.socketID)
			} else {
				logger.Debugf("[Client %s] read error: %v", c.socketID, err)
			}
			return
		}

		func(msg []byte) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("[Client %s] recovered from panic: %v", c.socketID, r)
				}
			}()

			var ev Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				logger.Debugf("[Client %s] invalid frame: %v", c.socketID, err)
				c.Emit(EventError, &Error{Code: CodeValidation, Message: "malformed event frame"})
				return
			}
			d.Dispatch(c, ev)
		}(message)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debugf("[Client %s] write error: %v", c.socketID, err)
				return
			}
		}
	}
}
