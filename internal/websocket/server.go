package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/metrics"
	"arbix/internal/types"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type MessageType string

const (
	MessageTypeSnapshot     MessageType = "snapshot"
	MessageTypeSubscribed   MessageType = "subscribed"
	MessageTypeUnsubscribed MessageType = "unsubscribed"
	MessageTypeError        MessageType = "error"
)

const writeWait = 5 * time.Second

// ClientMessage represents messages sent from client to server
type ClientMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// SnapshotMessage carries the latest cross-venue state of one token
type SnapshotMessage struct {
	Type      MessageType           `json:"type"`
	Token     string                `json:"token"`
	Data      *aggregation.Snapshot `json:"data"`
	Timestamp int64                 `json:"timestamp"`
}

// ControlMessage acknowledges subscriptions or reports an error
type ControlMessage struct {
	Type    MessageType `json:"type"`
	Token   string      `json:"token,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SnapshotProvider exposes the latest snapshot of every tracked token
type SnapshotProvider interface {
	Snapshots() []*aggregation.Snapshot
}

type client struct {
	conn *websocket.Conn
	// mu serializes writes and guards subs so acks and pushes stay ordered
	mu   sync.Mutex
	subs map[string]bool
}

func (c *client) write(v interface{}) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// wants reports whether the client should receive the token (must be called with mu held)
func (c *client) wants(key string) bool {
	return len(c.subs) == 0 || c.subs[key]
}

type Server struct {
	provider   SnapshotProvider
	interval   time.Duration
	upgrader   websocket.Upgrader
	clients    map[*client]bool
	clientsMux sync.RWMutex
	metrics    *metrics.Registry
}

// NewServer creates a push server; m may be nil
func NewServer(provider SnapshotProvider, interval time.Duration, m *metrics.Registry) *Server {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Server{
		provider: provider,
		interval: interval,
		clients:  make(map[*client]bool),
		metrics:  m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run pushes snapshots to connected clients on every tick until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.push()
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	return len(s.clients)
}

// HandleWebSocket upgrades the request and serves one client
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "websocket").Msg("upgrade failed")
		return
	}

	c := &client{conn: conn, subs: make(map[string]bool)}
	s.addClient(c)
	log.Info().Str("component", "websocket").Str("remote", r.RemoteAddr).Msg("client connected")

	defer func() {
		s.removeClient(c)
		conn.Close()
		log.Info().Str("component", "websocket").Str("remote", r.RemoteAddr).Msg("client disconnected")
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			s.reply(c, ControlMessage{Type: MessageTypeError, Message: "invalid message"})
			continue
		}

		s.handleClientMessage(c, clientMsg)
	}
}

func (s *Server) handleClientMessage(c *client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe", "unsubscribe":
		token, err := types.ParseTokenKey(msg.Token)
		if err != nil {
			s.reply(c, ControlMessage{Type: MessageTypeError, Token: msg.Token, Message: err.Error()})
			return
		}
		key := token.Key()

		c.mu.Lock()
		ack := MessageTypeSubscribed
		if msg.Type == "subscribe" {
			c.subs[key] = true
		} else {
			delete(c.subs, key)
			ack = MessageTypeUnsubscribed
		}
		err = c.write(ControlMessage{Type: ack, Token: key})
		c.mu.Unlock()

		if err != nil {
			log.Debug().Err(err).Str("component", "websocket").Msg("ack write failed")
		}
	default:
		s.reply(c, ControlMessage{Type: MessageTypeError, Message: "unknown message type: " + msg.Type})
	}
}

func (s *Server) reply(c *client, msg ControlMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(msg); err != nil {
		log.Debug().Err(err).Str("component", "websocket").Msg("reply write failed")
	}
}

func (s *Server) push() {
	s.clientsMux.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMux.RUnlock()

	if len(clients) == 0 {
		return
	}

	timestamp := time.Now().UnixMilli()
	snapshots := s.provider.Snapshots()
	messages := make([]SnapshotMessage, 0, len(snapshots))
	for _, snap := range snapshots {
		messages = append(messages, SnapshotMessage{
			Type:      MessageTypeSnapshot,
			Token:     snap.Token.Key(),
			Data:      snap,
			Timestamp: timestamp,
		})
	}

	for _, c := range clients {
		if err := s.send(c, messages); err != nil {
			log.Debug().Err(err).Str("component", "websocket").Msg("write failed, dropping client")
			s.removeClient(c)
			c.conn.Close()
		}
	}
}

func (s *Server) send(c *client, messages []SnapshotMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, msg := range messages {
		if !c.wants(msg.Token) {
			continue
		}
		if err := c.write(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) addClient(c *client) {
	s.clientsMux.Lock()
	s.clients[c] = true
	s.clientsMux.Unlock()
	if s.metrics != nil {
		s.metrics.WSClients.Inc()
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMux.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.clientsMux.Unlock()
	if ok && s.metrics != nil {
		s.metrics.WSClients.Dec()
	}
}

func (s *Server) closeAll() {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	for c := range s.clients {
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
	}
}
