package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/programs"
	"github.com/antibyte/retrocalc/pkg/session"
	"github.com/antibyte/retrocalc/pkg/shared"
)

// Connection settings come from the [Network] section.
func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 64) * 1024)
}

func getSendBuffer() int {
	return configuration.GetInt("Network", "send_buffer", 64)
}

func getTickInterval() time.Duration {
	return configuration.GetDuration("Server", "tick_interval", 50*time.Millisecond)
}

// name given to programs sent as raw source
const sourceProgramName = "SOURCE"

var newline = []byte{'\n'}

// Client is one websocket bound to a calculator session.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	handler   *Handler
	session   *session.Session
	sessionID string
	ipAddress string
	shutdown  chan struct{}
	closeOnce sync.Once
}

func newClient(h *Handler, conn *websocket.Conn, s *session.Session, ipAddress string) *Client {
	return &Client{
		conn:      conn,
		send:      make(chan []byte, getSendBuffer()),
		handler:   h,
		session:   s,
		sessionID: s.ID,
		ipAddress: ipAddress,
		shutdown:  make(chan struct{}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.shutdown) })
}

// Send queues a message for the write pump. Messages are dropped when the
// client has fallen behind; the next frame carries the full state anyway.
func (c *Client) Send(msg shared.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WebSocketError("failed to marshal message type %d: %v", msg.Type, err)
		return
	}
	select {
	case <-c.shutdown:
	case c.send <- data:
	default:
		logger.WebSocketWarn("send buffer full for session %s, dropping message type %d", c.sessionID, msg.Type)
	}
}

// readPump decodes client messages until the connection fails or the
// client is shut down.
func (c *Client) readPump(detach func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.WebSocketError("panic in readPump for session %s: %v", c.sessionID, r)
		}
		c.close()
		c.handler.clients.RemoveClient(c)
		detach()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				logger.WebSocketWarn("unexpected close for session %s: %v", c.sessionID, err)
			} else {
				logger.WebSocketDebug("connection closed for session %s: %v", c.sessionID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))

		var msg shared.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.WebSocketWarn("malformed message from %s: %v", c.ipAddress, err)
			c.Send(shared.NewError("malformed message"))
			continue
		}
		if err := msg.Validate(); err != nil {
			logger.WebSocketWarn("rejected message from %s: %v", c.ipAddress, err)
			c.Send(shared.NewError("%v", err))
			continue
		}
		c.session.Touch()
		c.handleMessage(&msg)
	}
}

func (c *Client) handleMessage(msg *shared.Message) {
	calc := c.session.Calc
	switch msg.Type {
	case shared.MessageTypeKeepalive:
	case shared.MessageTypeKeyDown:
		calc.KeyDown(msg.Code)
	case shared.MessageTypeKeyUp:
		calc.KeyUp(msg.Code, msg.Key)
	case shared.MessageTypeLoad:
		if !c.allowLoad() {
			return
		}
		c.loadStored(msg.Name)
	case shared.MessageTypeSource:
		if !c.allowLoad() {
			return
		}
		if err := calc.Load(sourceProgramName, msg.Source); err != nil {
			c.Send(shared.NewError("%v", err))
			return
		}
		c.Send(shared.Message{Type: shared.MessageTypeLoaded, Name: sourceProgramName})
	}
}

func (c *Client) allowLoad() bool {
	limit := configuration.GetInt("Network", "max_loads_per_minute", 30)
	if c.handler.clients.Allow("load", c.ipAddress, limit, time.Minute) {
		return true
	}
	c.Send(shared.NewError("too many requests"))
	return false
}

func (c *Client) loadStored(name string) {
	if c.handler.programs == nil {
		c.Send(shared.NewError("program library unavailable"))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := c.handler.programs.Get(ctx, name)
	switch {
	case errors.Is(err, programs.ErrNotFound), errors.Is(err, programs.ErrInvalidName):
		c.Send(shared.NewError("%v", err))
		return
	case err != nil:
		logger.WebSocketError("loading %s for session %s: %v", name, c.sessionID, err)
		c.Send(shared.NewError("could not load %s", name))
		return
	}
	if err := c.session.Calc.Load(p.Name, p.Source); err != nil {
		c.Send(shared.NewError("%v", err))
		return
	}
	c.Send(shared.Message{Type: shared.MessageTypeLoaded, Name: p.Name})
}

// runClock ticks the calculator and pushes a frame whenever its version
// moves.
func (c *Client) runClock(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	calc := c.session.Calc
	snap := calc.Snapshot()
	sent := snap.Version
	c.Send(shared.NewFrame(snap))
	for {
		select {
		case <-c.shutdown:
			return
		case <-ticker.C:
			calc.Tick()
			if calc.Version() == sent {
				continue
			}
			snap := calc.Snapshot()
			sent = snap.Version
			c.Send(shared.NewFrame(snap))
		}
	}
}

// writePump writes queued messages, joining whatever is buffered into one
// websocket frame separated by newlines, and keeps the connection alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.close()
				return
			}
			w.Write(message)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WebSocketWarn("ping to session %s failed: %v", c.sessionID, err)
				c.close()
				return
			}
		case <-c.shutdown:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
