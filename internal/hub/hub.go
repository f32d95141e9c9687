// Package hub tracks live connections and their channel memberships and
// delivers encoded frames to them.
package hub

import (
	"sort"
	"sync"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

type Hub struct {
	clients  map[string]*Client             // clientID -> client
	users    map[string]map[string]*Client  // userID -> clientID -> client
	channels map[string]map[string]*Client  // key -> clientID -> client
	joined   map[string]map[string]struct{} // clientID -> keys
	mu       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		users:    make(map[string]map[string]*Client),
		channels: make(map[string]map[string]*Client),
		joined:   make(map[string]map[string]struct{}),
	}
}

// Register adds c and reports whether it is the user's first live
// connection.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	h.joined[c.ID] = make(map[string]struct{})
	conns, ok := h.users[c.UserID]
	if !ok {
		conns = make(map[string]*Client)
		h.users[c.UserID] = conns
	}
	conns[c.ID] = c

	l := log.L()
	l.Debug().Str(log.FieldConnID, c.ID).Str(log.FieldUserID, c.UserID).Msg("client registered")
	return len(conns) == 1
}

// Unregister removes c from every channel and closes its send buffer.
// It reports whether c was the user's last live connection. Calling it
// for an unknown client is a no-op returning false.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) bool {
	if _, ok := h.clients[c.ID]; !ok {
		return false
	}

	h.unsubscribeAllLocked(c)
	delete(h.joined, c.ID)
	delete(h.clients, c.ID)

	last := false
	if conns, ok := h.users[c.UserID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(h.users, c.UserID)
			last = true
		}
	}
	c.close()

	l := log.L()
	l.Debug().Str(log.FieldConnID, c.ID).Str(log.FieldUserID, c.UserID).Msg("client unregistered")
	return last
}

// Subscribe adds c to channel key. It is idempotent and ignores
// unregistered clients.
func (h *Hub) Subscribe(c *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribeLocked(c, key)
}

// subscribeLocked reports whether c was newly added to key.
func (h *Hub) subscribeLocked(c *Client, key string) bool {
	keys, ok := h.joined[c.ID]
	if !ok {
		return false
	}
	if _, ok := keys[key]; ok {
		return false
	}
	members, ok := h.channels[key]
	if !ok {
		members = make(map[string]*Client)
		h.channels[key] = members
	}
	members[c.ID] = c
	keys[key] = struct{}{}
	return true
}

// Unsubscribe removes c from channel key. It is idempotent.
func (h *Hub) Unsubscribe(c *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(c.ID, key)
}

func (h *Hub) unsubscribeLocked(clientID, key string) {
	if members, ok := h.channels[key]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.channels, key)
		}
	}
	if keys, ok := h.joined[clientID]; ok {
		delete(keys, key)
	}
}

// UnsubscribeAll removes c from every channel.
func (h *Hub) UnsubscribeAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeAllLocked(c)
}

func (h *Hub) unsubscribeAllLocked(c *Client) {
	for key := range h.joined[c.ID] {
		h.unsubscribeLocked(c.ID, key)
	}
}

// SubscribeUser subscribes every live connection of userID to key.
func (h *Hub) SubscribeUser(userID, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.users[userID] {
		h.subscribeLocked(c, key)
	}
}

// SubscribeUserWith subscribes every live connection of userID to key.
// Connections that were not already members of key are also subscribed
// to each of with; existing members keep their current companions.
func (h *Hub) SubscribeUserWith(userID, key string, with ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.users[userID] {
		if !h.subscribeLocked(c, key) {
			continue
		}
		for _, k := range with {
			h.subscribeLocked(c, k)
		}
	}
}

// UnsubscribeUser removes every live connection of userID from each of keys.
func (h *Hub) UnsubscribeUser(userID string, keys ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.users[userID] {
		for _, key := range keys {
			h.unsubscribeLocked(id, key)
		}
	}
}

// Close forcibly unsubscribes everyone from key.
func (h *Hub) Close(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.channels[key] {
		h.unsubscribeLocked(id, key)
	}
	delete(h.channels, key)
}

// Publish delivers ev to every current member of key and returns how
// many members it reached.
func (h *Hub) Publish(key string, ev domain.Event) int {
	data, err := EncodeEvent(ev)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldEvent, ev.Name).Msg("failed to encode event")
		return 0
	}

	h.mu.RLock()
	members := h.channels[key]
	targets := make([]*Client, 0, len(members))
	for _, c := range members {
		targets = append(targets, c)
	}
	delivered, slow := h.deliverLocked(targets, data)
	h.mu.RUnlock()

	h.evict(slow)
	return delivered
}

// Broadcast delivers ev to every live connection except exclude.
func (h *Hub) Broadcast(ev domain.Event, exclude string) int {
	data, err := EncodeEvent(ev)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldEvent, ev.Name).Msg("failed to encode event")
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		if id != exclude {
			targets = append(targets, c)
		}
	}
	delivered, slow := h.deliverLocked(targets, data)
	h.mu.RUnlock()

	h.evict(slow)
	return delivered
}

// Send delivers a pre-encoded frame to c. It reports false if c is no
// longer registered or was evicted for a full buffer.
func (h *Hub) Send(c *Client, data []byte) bool {
	h.mu.RLock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.RUnlock()
		return false
	}
	delivered, slow := h.deliverLocked([]*Client{c}, data)
	h.mu.RUnlock()

	h.evict(slow)
	return delivered == 1
}

// deliverLocked enqueues data without blocking. Callers hold at least the
// read lock, so no target can be closed concurrently.
func (h *Hub) deliverLocked(targets []*Client, data []byte) (int, []*Client) {
	var slow []*Client
	delivered := 0
	for _, c := range targets {
		select {
		case c.Send <- data:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	return delivered, slow
}

func (h *Hub) evict(slow []*Client) {
	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range slow {
		l := log.L()
		l.Warn().Str(log.FieldConnID, c.ID).Str(log.FieldUserID, c.UserID).Msg("evicting slow client")
		h.unregisterLocked(c)
	}
}

// Connections returns the live connections of userID.
func (h *Hub) Connections(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Client, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		out = append(out, c)
	}
	return out
}

// ConnectionCount returns the number of live connections of userID.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// ConnectedUsers returns the ids of users with at least one connection.
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.users))
	for id := range h.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsSubscribed reports whether c is a member of key.
func (h *Hub) IsSubscribed(c *Client, key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[key][c.ID]
	return ok
}

// Members returns the client ids subscribed to key.
func (h *Hub) Members(key string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.channels[key]))
	for id := range h.channels[key] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Channels returns the keys c is subscribed to.
func (h *Hub) Channels(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.joined[c.ID]))
	for key := range h.joined[c.ID] {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// SubscribedUsers returns the ids of users with at least one connection
// subscribed to key.
func (h *Hub) SubscribedUsers(key string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{}, len(h.channels[key]))
	out := make([]string, 0, len(h.channels[key]))
	for _, c := range h.channels[key] {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		out = append(out, c.UserID)
	}
	sort.Strings(out)
	return out
}
