package websocket

import (
	"errors"
	"sync"
)

var errRegistryClosed = errors.New("registry closed")

// Registry maps a user id to the single client currently allowed to receive that
// user's routed frames. It never blocks on I/O while holding its lock.
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]*Client
	closed  bool
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[int64]*Client)}
}

// Register makes c the live client of its user and returns the client it replaced,
// if any. Last writer wins. A drained registry accepts no more clients.
func (r *Registry) Register(c *Client) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errRegistryClosed
	}
	prev := r.clients[c.userID]
	r.clients[c.userID] = c
	if prev == c {
		return nil, nil
	}
	return prev, nil
}

func (r *Registry) Lookup(userID int64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[userID]
	return c, ok
}

// Unregister removes c only while it is still the registered client of its user, so
// a late close of a replaced socket cannot evict the newer one.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.clients[c.userID]; ok && cur == c {
		delete(r.clients, c.userID)
		return true
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Drain empties the registry, closes it to new registrations and returns the
// clients it held.
func (r *Registry) Drain() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	clients := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		clients = append(clients, c)
		delete(r.clients, id)
	}
	return clients
}
