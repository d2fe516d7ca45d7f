// Package console streams rendered debug reports to browser clients over
// WebSocket. Reports for requests that never reach a browser (API calls,
// redirects, XHR) can still be inspected there.
package console

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/kbdebug/internal/logging"
)

// MessageTypeReport marks a rendered report.
const MessageTypeReport = "report"

// Message is the JSON payload sent to console clients.
type Message struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Path      string    `json:"path,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn         *websocket.Conn
	send         chan []byte
	lastActivity atomic.Int64
}

// Manager owns the console clients. A single hub goroutine registers,
// unregisters and fans out messages; the clients map is only written there.
type Manager struct {
	clients      map[*websocket.Conn]*client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *client
	unregister chan *websocket.Conn

	originPatterns []string
	logger         logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	hubDone      chan struct{}
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
}

// Options configures a Manager.
type Options struct {
	// OriginPatterns are passed to websocket.Accept. Empty allows same-origin
	// requests only.
	OriginPatterns []string
	Logger         logging.Logger
}

// NewManager creates a manager and starts its hub.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		clients:        make(map[*websocket.Conn]*client),
		broadcast:      make(chan []byte, 256),
		register:       make(chan *client, 32),
		unregister:     make(chan *websocket.Conn, 32),
		originPatterns: opts.OriginPatterns,
		logger:         logger.WithComponent("console"),
		ctx:            ctx,
		cancel:         cancel,
		hubDone:        make(chan struct{}),
	}

	go m.runHub()
	return m
}

// HandleWebSocket upgrades the request and registers the client.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if m.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  m.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already written the response.
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	c.lastActivity.Store(time.Now().UnixNano())

	select {
	case m.register <- c:
	case <-m.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	default:
		m.logger.Warn(r.Context(), nil, "Console registration queue full, rejecting client")
		_ = conn.Close(websocket.StatusTryAgainLater, "Server busy")
		return
	}

	go m.writeToClient(c)
	m.readFromClient(c)
}

func (m *Manager) runHub() {
	defer close(m.hubDone)

	for {
		select {
		case c := <-m.register:
			m.clientsMutex.Lock()
			m.clients[c.conn] = c
			count := len(m.clients)
			m.clientsMutex.Unlock()
			m.logger.Debug(m.ctx, "Console client connected", "clients", count)

		case conn := <-m.unregister:
			m.removeClient(conn)

		case message := <-m.broadcast:
			m.fanOut(message)

		case <-m.ctx.Done():
			m.clientsMutex.Lock()
			for conn, c := range m.clients {
				close(c.send)
				delete(m.clients, conn)
			}
			m.clientsMutex.Unlock()
			return
		}
	}
}

func (m *Manager) removeClient(conn *websocket.Conn) {
	m.clientsMutex.Lock()
	c, ok := m.clients[conn]
	if ok {
		delete(m.clients, conn)
		close(c.send)
	}
	count := len(m.clients)
	m.clientsMutex.Unlock()

	if ok {
		m.logger.Debug(m.ctx, "Console client disconnected", "clients", count)
	}
}

func (m *Manager) fanOut(message []byte) {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	for conn, c := range m.clients {
		select {
		case c.send <- message:
		default:
			// Slow client: drop it rather than stall every other client.
			go m.queueUnregister(conn)
		}
	}
}

func (m *Manager) queueUnregister(conn *websocket.Conn) {
	select {
	case m.unregister <- conn:
	case <-m.ctx.Done():
	}
}

// readFromClient drains client frames so control frames are processed. The
// console ignores client payloads.
func (m *Manager) readFromClient(c *client) {
	defer m.queueUnregister(c.conn)

	for {
		_, _, err := c.conn.Read(m.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && m.ctx.Err() == nil {
				m.logger.Debug(m.ctx, "Console read ended", "error", err.Error())
			}
			return
		}
		c.lastActivity.Store(time.Now().UnixNano())
	}
}

func (m *Manager) writeToClient(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				m.logger.Debug(m.ctx, "Console write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Broadcast queues msg for every connected client. It never blocks; when the
// queue is full the message is dropped.
func (m *Manager) Broadcast(msg Message) {
	if m.isShutdown.Load() {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error(m.ctx, err, "Failed to marshal console message")
		return
	}

	select {
	case m.broadcast <- data:
	case <-m.ctx.Done():
	default:
		m.logger.Warn(m.ctx, nil, "Console broadcast queue full, dropping message", "request_id", msg.RequestID)
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

// Shutdown stops the hub and disconnects every client.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.isShutdown.Store(true)
		m.cancel()
	})

	select {
	case <-m.hubDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown reports whether Shutdown has been called.
func (m *Manager) IsShutdown() bool {
	return m.isShutdown.Load()
}
