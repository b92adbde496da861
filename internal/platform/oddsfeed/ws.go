package oddsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharpline/valuebot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// UpdateHandler receives the flattened content of one odds frame.
type UpdateHandler func(source domain.Source, ev domain.EventRecord, updates []QuoteUpdate, quotedAt time.Time)

// DisconnectHandler is called once per connection loss, before the client
// starts its reconnect backoff.
type DisconnectHandler func(source domain.Source, err error)

// ClientConfig configures one feed connection.
type ClientConfig struct {
	URL    string
	APIKey string
	Source domain.Source
	Sports []string
	Bookie string
}

// Client is a WebSocket client for one odds feed. It manages the connection
// lifecycle, re-subscribes after reconnects, and dispatches parsed frames to
// registered handlers.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	handlerMu    sync.RWMutex
	updateHs     []UpdateHandler
	disconnectHs []DisconnectHandler

	done chan struct{}
}

// NewClient creates a feed client. Connect must be called before frames flow.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		logger: logger.With(
			slog.String("component", "oddsfeed"),
			slog.String("source", string(cfg.Source))),
		done: make(chan struct{}),
	}
}

// OnUpdate registers a handler for parsed odds frames.
func (c *Client) OnUpdate(h UpdateHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.updateHs = append(c.updateHs, h)
}

// OnDisconnect registers a handler called on every connection loss.
func (c *Client) OnDisconnect(h DisconnectHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.disconnectHs = append(c.disconnectHs, h)
}

// Connect establishes the WebSocket connection and sends the subscription.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("oddsfeed: %w", domain.ErrFeedDisconnected)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("oddsfeed: connect %s: %w", c.cfg.Source, err)
	}
	c.conn = conn

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readLoop()
	go c.pingLoop()

	if err := c.subscribeLocked(); err != nil {
		return fmt.Errorf("oddsfeed: subscribe: %w", err)
	}
	c.logger.Info("feed connected", slog.String("url", c.cfg.URL))
	return nil
}

// Close shuts down the connection and stops the loops.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return c.conn.Close()
	}
	return nil
}

// subscribeLocked sends the subscription command. Caller must hold c.mu.
func (c *Client) subscribeLocked() error {
	cmd := subscribeCommand{
		Type:   "subscribe",
		APIKey: c.cfg.APIKey,
		Sports: c.cfg.Sports,
		Bookie: c.cfg.Bookie,
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames until disconnect, then hands off to reconnect.
func (c *Client) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.logger.Warn("feed disconnected", slog.Any("error", err))
			c.handlerMu.RLock()
			hs := c.disconnectHs
			c.handlerMu.RUnlock()
			for _, h := range hs {
				h(c.cfg.Source, err)
			}

			c.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		c.handleFrame(raw)
	}
}

// pingLoop keeps the connection alive.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame parses one frame and dispatches it. Unparseable frames are
// dropped.
func (c *Client) handleFrame(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "odds":
		ev, updates := ToUpdates(&msg)
		if len(updates) == 0 {
			return
		}
		quotedAt := msg.QuoteTime(time.Now())

		c.handlerMu.RLock()
		hs := c.updateHs
		c.handlerMu.RUnlock()
		for _, h := range hs {
			h(c.cfg.Source, ev, updates, quotedAt)
		}

	case "error":
		c.logger.Error("feed error frame", slog.String("message", msg.Error))
	}
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the client is closed.
func (c *Client) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-c.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		c.logger.Warn("reconnect failed", slog.Any("error", err), slog.Duration("next_in", delay))

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
