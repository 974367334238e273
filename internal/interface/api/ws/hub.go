package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"liveTTS/internal/app/events"
	"liveTTS/internal/domain"
)

const writeTimeout = 5 * time.Second

// Envelope frames every WebSocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends one event to every connected client. Clients that fail a
// write are dropped.
func (s *Server) Broadcast(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("ws: encode %s: %w", event, err)
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("ws: encode envelope: %w", err)
	}

	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			s.logger.Debug("removing client after write error", "err", err)
			s.removeClient(c)
		}
	}
	return nil
}

// Forward relays every topic in events.ClientTopics from bus to the
// connected clients until ctx ends.
func (s *Server) Forward(ctx context.Context, bus interface {
	Subscribe(topic string) (<-chan any, func())
}) {
	var wg sync.WaitGroup
	for _, topic := range events.ClientTopics {
		ch, unsubscribe := bus.Subscribe(topic)
		wg.Add(1)
		go func(topic string, ch <-chan any, unsubscribe func()) {
			defer wg.Done()
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-ch:
					if !ok {
						return
					}
					if err := s.Broadcast(topic, payload); err != nil {
						s.logger.Warn("broadcast failed", "topic", topic, "err", err)
					}
				}
			}
		}(topic, ch, unsubscribe)
	}
	wg.Wait()
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "err", err)
		return
	}
	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("client connected", "remote", r.RemoteAddr, "clients", count)

	go s.readLoop(ctx, client)
}

func (s *Server) readLoop(ctx context.Context, client *wsClient) {
	defer func() {
		s.removeClient(client)
		s.logger.Info("client disconnected", "clients", s.ClientCount())
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read failed", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := s.dispatch(data); err != nil {
			s.logger.Debug("ignored client message", "err", err)
		}
	}
}

// dispatch handles client events. Only tts:speak is accepted.
func (s *Server) dispatch(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("ws: decode envelope: %w", err)
	}
	if env.Event != events.TopicTTSSpeak {
		return fmt.Errorf("ws: unsupported event %q", env.Event)
	}

	var req domain.SpeakRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return fmt.Errorf("ws: decode speak request: %w", err)
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return fmt.Errorf("ws: empty speak text")
	}
	req.Source = domain.SourceSocket
	req.TeamLevel = clampTeamLevel(req.TeamLevel)
	if req.Username == "" {
		req.Username = "overlay"
	}

	if s.bus != nil {
		s.bus.Publish(events.TopicTTSSpeak, req)
	}
	return nil
}

func (s *Server) removeClient(c *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()
	for c := range clients {
		c.conn.Close()
	}
}

func clampTeamLevel(level int) int {
	switch {
	case level < 0:
		return 0
	case level > 4:
		return 4
	}
	return level
}
