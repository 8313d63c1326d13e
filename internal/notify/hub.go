package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kdimtricp/shottime/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 256
)

type client struct {
	conn       *websocket.Conn
	id         string
	send       chan Event
	permission models.PermissionState
	closeOnce  sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans events out to the connected dashboards. It also acts as the
// ToneEmitter and, using the permission each dashboard reports, as a
// SystemNotifier.
type Hub struct {
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	clients     map[string]*client
	subscribers map[chan Event]struct{}
	welcome     func() any
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:     make(map[string]*client),
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel of published events for non-websocket
// consumers such as server-sent events. Call cancel when done.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, sendBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// SetWelcome sets the payload sent to each client right after it connects.
func (h *Hub) SetWelcome(fn func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.welcome = fn
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[EVENTS] websocket upgrade failed: %v", err)
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.New().String()
	}

	c := &client{
		conn:       conn,
		id:         clientID,
		send:       make(chan Event, sendBuffer),
		permission: models.PermissionPrompt,
	}

	h.mu.RLock()
	welcome := h.welcome
	h.mu.RUnlock()

	ev := NewEvent(EventWelcome, nil)
	ev.ClientID = clientID
	if welcome != nil {
		ev.Payload = welcome()
	}
	c.send <- ev

	h.mu.Lock()
	if old, ok := h.clients[clientID]; ok {
		old.close()
	}
	h.clients[clientID] = c
	h.mu.Unlock()

	log.Printf("[EVENTS] client connected: %s", clientID)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
	}
	c.close()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		log.Printf("[EVENTS] client disconnected: %s", c.id)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[EVENTS] websocket error for %s: %v", c.id, err)
			}
			return
		}

		switch msg.Type {
		case "permission":
			var state models.PermissionState
			if err := json.Unmarshal(msg.Payload, &state); err != nil {
				log.Printf("[EVENTS] bad permission payload from %s: %v", c.id, err)
				continue
			}
			h.setPermission(c, state)
		case "ping":
			h.mu.RLock()
			if h.clients[c.id] == c {
				h.sendTo(c, Event{Type: EventPong, ClientID: c.id, Timestamp: time.Now().Unix()})
			}
			h.mu.RUnlock()
		default:
			log.Printf("[EVENTS] unknown message type from %s: %s", c.id, msg.Type)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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

func (h *Hub) setPermission(c *client, state models.PermissionState) {
	switch state {
	case models.PermissionGranted, models.PermissionDenied, models.PermissionPrompt:
	default:
		return
	}
	h.mu.Lock()
	c.permission = state
	h.mu.Unlock()
	log.Printf("[EVENTS] client %s notification permission: %s", c.id, state)
}

// sendTo never blocks; a client that cannot keep up misses the event.
// Callers hold h.mu so the channel cannot be closed underneath them.
func (h *Hub) sendTo(c *client, ev Event) {
	select {
	case c.send <- ev:
	default:
		log.Printf("[EVENTS] dropping %s for slow client %s", ev.Type, c.id)
	}
}

func (h *Hub) Publish(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().Unix()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.sendTo(c, ev)
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) PlayTone(ctx context.Context, tone models.Tone) {
	if !tone.Valid() {
		log.Printf("[EVENTS] dropping unknown tone %q", tone)
		return
	}
	h.Publish(NewEvent(EventTone, map[string]any{"tone": tone}))
}

// Permission is granted when any connected dashboard has granted it.
func (h *Hub) Permission() models.PermissionState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return models.PermissionPrompt
	}
	state := models.PermissionDenied
	for _, c := range h.clients {
		switch c.permission {
		case models.PermissionGranted:
			return models.PermissionGranted
		case models.PermissionPrompt:
			state = models.PermissionPrompt
		}
	}
	return state
}

func (h *Hub) Notify(ctx context.Context, n Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, c := range h.clients {
		if c.permission != models.PermissionGranted {
			continue
		}
		h.sendTo(c, NewEvent(EventNotification, n))
		sent++
	}
	if sent == 0 {
		return ErrNotificationsBlocked
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}
