package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
)

// Socket timings for dashboard connections. pingPeriod stays below pongWait
// so a healthy peer never hits the read deadline.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512 << 10 // base64 dispatcher audio
	sendBuffer     = 256
)

// NewUpgrader accepts the given browser origins; "*" or none allows all.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// AudioSink takes dispatcher audio arriving on a subscriber socket.
type AudioSink interface {
	IngestDispatcherAudio(callerNumber, audio string) error
}

// Client is a middleman between a dashboard websocket connection and the hub.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	topic string

	sink      AudioSink
	validator *MessageValidator
	logger    *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ Subscriber = (*Client)(nil)

// ServeClient registers conn on topic, greets it and starts its pumps.
// sink may be nil for sockets that never carry audio.
func ServeClient(hub *Hub, conn *websocket.Conn, topic string, greeting any, sink AudioSink, logger *zap.Logger) *Client {
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		topic:     topic,
		sink:      sink,
		validator: NewMessageValidator(),
		logger:    logger.With(zap.String("component", "subscriber"), zap.String("topic", topic)),
	}

	hub.AddSubscriber(topic, client)
	client.sendJSON(greeting)

	go client.writePump()
	go client.readPump()

	return client
}

// Send queues payload for the write pump. It fails instead of blocking
// when the client cannot keep up, and the client is then closed.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, ErrSubscriberClosed)
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.closed = true
		close(c.send)
		return fmt.Errorf("%w: send buffer full", domain.ErrDelivery)
	}
}

func (c *Client) sendJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	if err := c.Send(payload); err != nil {
		c.logger.Warn("Failed to queue message", zap.Error(err))
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump feeds dashboard messages to processMessage until the socket
// fails, then unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveSubscriber(c.topic, c)
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Subscriber socket closed unexpectedly", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			c.logger.Debug("Ignoring non-text frame", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump drains the send buffer and keeps the peer alive with pings.
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
				// closed by readPump or by an overflowing Send
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Subscriber write failed", zap.Error(err))
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

// processMessage handles one message from the dashboard
func (c *Client) processMessage(message []byte) {
	msg, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Failed to parse message", zap.Error(err))
		c.sendJSON(newKeepalive())
		return
	}

	switch msg.Type {
	case ClientAudio:
		if c.sink == nil {
			c.logger.Warn("Audio on a socket that does not carry audio")
			return
		}
		callerNumber := msg.CallerNumber
		if callerNumber == "" {
			callerNumber = c.topic
		}
		if err := c.sink.IngestDispatcherAudio(callerNumber, msg.Audio); err != nil {
			c.logger.Debug("Dispatcher audio rejected", zap.Error(err))
		}
	default:
		c.sendJSON(newKeepalive())
	}
}
