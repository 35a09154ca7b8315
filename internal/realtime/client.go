package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// ClientOptions tune a connection's pumps.
type ClientOptions struct {
	SendQueueSize int
	WriteTimeout  time.Duration
	PongTimeout   time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 32
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	return o
}

// Client is one live websocket connection. Its lifecycle is
// connected -> joined(rooms...) -> disconnected; room membership is
// transient and dies with the connection.
type Client struct {
	ID     string
	Claims *models.JWTClaims

	hub    *Hub
	conn   *websocket.Conn
	out    chan []byte
	done   chan struct{}
	opts   ClientOptions
	logger *zap.Logger

	// rooms this connection joined; guarded by hub.mu.
	rooms map[string]struct{}
}

// NewClient registers a connection with the hub and announces its id so the
// browser can route upload progress to itself.
func NewClient(hub *Hub, conn *websocket.Conn, claims *models.JWTClaims, opts ClientOptions, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	c := &Client{
		ID:     uuid.NewString(),
		Claims: claims,
		hub:    hub,
		conn:   conn,
		out:    make(chan []byte, opts.SendQueueSize),
		done:   make(chan struct{}),
		opts:   opts,
		logger: logger,
		rooms:  make(map[string]struct{}),
	}
	hub.register(c)
	c.send(EventConnected, ConnectedPayload{SocketID: c.ID})
	return c
}

// send marshals and enqueues an event, dropping it when the client's queue
// is full. Slow consumers lose events instead of stalling the sender.
func (c *Client) send(event string, data interface{}) {
	msg, err := encode(event, data)
	if err != nil {
		c.logger.Warn("failed to encode realtime event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.out <- msg:
	default:
	}
}

// Run services the connection until it closes, then removes it from the hub
// and every room it joined.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed unexpectedly", zap.String("connection_id", c.ID), zap.Error(err))
			}
			return
		}
		c.dispatch(raw)
	}
}

// dispatch routes one inbound envelope. Malformed or unauthorized events are
// dropped; a bad client message must never take the hub down.
func (c *Client) dispatch(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Debug("dropping malformed realtime message", zap.String("connection_id", c.ID))
		return
	}

	switch env.Event {
	case EventJoinSession:
		var p JoinSessionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.MaterialID == "" || p.CourseID == "" {
			return
		}
		c.hub.Join(c, RoomKey(p.MaterialID, p.CourseID))

	case EventSlideChange:
		if !c.canPresent() {
			return
		}
		var p SlideChangePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.MaterialID == "" || p.CourseID == "" {
			return
		}
		c.hub.BroadcastPage(RoomKey(p.MaterialID, p.CourseID), c.ID, p.Page)

	case EventLaser:
		if !c.canPresent() {
			return
		}
		var p LaserPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.MaterialID == "" || p.CourseID == "" {
			return
		}
		c.hub.BroadcastPointer(RoomKey(p.MaterialID, p.CourseID), c.ID,
			LaserPointPayload{Show: p.Show, X: p.X, Y: p.Y})
	}
}

func (c *Client) canPresent() bool {
	if c.Claims == nil {
		return false
	}
	return c.Claims.Role == models.RoleInstructor || c.Claims.Role == models.RoleSuperAdmin
}

func (c *Client) writePump() {
	pingInterval := c.opts.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
