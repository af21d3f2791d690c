package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types on the /api/v1/ws socket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Channels a client can subscribe to.
const (
	// ChannelResponse carries every classified camera response,
	// unsolicited ones included.
	ChannelResponse = "camera.response"

	// ChannelEvent carries preset and scan events.
	ChannelEvent = "camera.event"
)

const (
	wsSendBuffer = 256

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is WSMessage as read from a client, with the payload left raw
// until the type is known.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are policed by the cors middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	channels map[string]bool
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBuffer),
		done:     make(chan struct{}),
		channels: make(map[string]bool),
	}
	s.hub.add(c)
	go c.writeLoop()
	go c.readLoop()
}

// stop ends both loops. Safe to call more than once.
func (c *wsClient) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// queue hands data to the write loop, dropping it when the client is gone
// or too slow to keep up.
func (c *wsClient) queue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
	}
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

func (c *wsClient) readLoop() {
	defer c.hub.remove(c)

	if n := c.hub.cfg.MaxMessageSize; n > 0 {
		c.conn.SetReadLimit(int64(n))
	}
	ping, grace := c.hub.keepalive()
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(ping + grace))
	}
	//nolint:errcheck // a failed deadline surfaces on the next read
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		//nolint:errcheck // as above
		extend()
		c.handle(data)
	}
}

func (c *wsClient) writeLoop() {
	ping, grace := c.hub.keepalive()
	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	write := func(kind int, data []byte) bool {
		//nolint:errcheck // a failed deadline surfaces on the write
		c.conn.SetWriteDeadline(time.Now().Add(grace))
		return c.conn.WriteMessage(kind, data) == nil
	}

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if !write(websocket.TextMessage, data) {
				c.stop()
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				c.stop()
				return
			}
		}
	}
}

func (c *wsClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if err := json.Unmarshal(req.Payload, &sub); err != nil {
			c.reply(req.ID, WSTypeError, errorPayload("invalid "+req.Type+" payload"))
			return
		}
		on := req.Type == WSTypeSubscribe
		c.mu.Lock()
		for _, ch := range sub.Channels {
			if on {
				c.channels[ch] = true
			} else {
				delete(c.channels, ch)
			}
		}
		c.mu.Unlock()
		c.reply(req.ID, WSTypeResponse, map[string]any{req.Type + "d": sub.Channels})
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func (c *wsClient) reply(id, kind string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      kind,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.queue(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
