package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BioHazard786/meshcall/internal/dns"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var (
	ErrNotConnected     = errors.New("signaling: not connected")
	ErrAlreadyConnected = errors.New("signaling: already connected")
	ErrConnectionLost   = errors.New("signaling: connection lost")
)

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer Authorization header on the upgrade
// request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger used for dropped frames and connection events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// Client manages the WebSocket connection to the signaling server. A Client
// connects once; create a new one for every session.
type Client struct {
	serverURL string
	token     string
	dialer    *websocket.Dialer
	logger    *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	outgoing  chan []byte
	done      chan struct{}
	writeDone chan struct{}
	closing   bool
	closeOnce sync.Once
}

// NewClient creates a new signaling client for serverURL.
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: serverURL,
		logger:    slog.Default(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			NetDialContext:   dns.DialContext,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "signaling")
	return c
}

// Connect dials the server and starts the read and write pumps. Decoded
// signals are delivered to recv from the read pump.
func (c *Client) Connect(ctx context.Context, recv Receiver) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil || c.closing {
		return ErrAlreadyConnected
	}

	var header http.Header
	if c.token != "" {
		header = http.Header{}
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.serverURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to %s: %w (status %s)", c.serverURL, err, resp.Status)
		}
		return fmt.Errorf("failed to connect to %s: %w", c.serverURL, err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.conn = conn
	c.outgoing = make(chan []byte, sendBuffer)
	c.done = make(chan struct{})
	c.writeDone = make(chan struct{})

	go c.readPump(conn, recv)
	go c.writePump(conn)

	c.logger.Debug("connected", "url", c.serverURL)
	return nil
}

// Send encodes s and queues it for the write pump.
func (c *Client) Send(s Signal) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	c.mu.Lock()
	outgoing, done := c.outgoing, c.done
	c.mu.Unlock()
	if outgoing == nil {
		return ErrNotConnected
	}

	select {
	case <-done:
		return ErrNotConnected
	default:
	}

	select {
	case outgoing <- data:
		return nil
	case <-done:
		return ErrNotConnected
	}
}

// Disconnect sends a close frame and tears the connection down. Calling it
// more than once, or before Connect, is harmless.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closing = true
	writeDone := c.writeDone
	c.mu.Unlock()

	if writeDone == nil {
		return nil
	}

	c.shutdown()

	select {
	case <-writeDone:
	case <-time.After(2 * writeWait):
		return fmt.Errorf("signaling: timed out closing connection")
	}
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// readPump reads frames until the connection fails or is closed.
func (c *Client) readPump(conn *websocket.Conn, recv Receiver) {
	defer c.shutdown()

	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosing() {
				c.logger.Debug("read pump stopped", "error", err)
				return
			}
			c.logger.Warn("connection lost", "error", err)
			recv.OnTransportError(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			return
		}
		if msgType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", "type", msgType)
			continue
		}
		handleFrame(c.logger, recv, data)
	}
}

// writePump writes queued frames and sends periodic pings.
func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		conn.Close()
		close(c.writeDone)
	}()

	for {
		select {
		case data := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.shutdown()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			// Flush what was queued before the close, then say goodbye.
			for {
				select {
				case data := <-c.outgoing:
					conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
