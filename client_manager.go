// client_manager.go
package main

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientManager is the registry of live clients. Snapshots share the read
// lock; add and remove take the write lock.
type ClientManager struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// Client represents a single accepted connection.
type Client struct {
	id    string
	seq   uint64
	relay *Relay

	socket  transport
	send    chan []byte
	done    chan struct{} // closed once the client is torn down
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce   sync.Once
	connectedAt time.Time
}

func newClientManager() *ClientManager {
	return &ClientManager{clients: make(map[*Client]struct{})}
}

// add registers c. There is no upper bound on membership.
func (m *ClientManager) add(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c] = struct{}{}
}

// remove unregisters c. Removing a client that is not registered is a no-op.
func (m *ClientManager) remove(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, c)
}

// snapshot returns the registered clients in accept order. The slice is a
// copy; callers may iterate it and write to its members without holding
// any registry lock.
func (m *ClientManager) snapshot() []*Client {
	m.mu.RLock()
	snapshot := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		snapshot = append(snapshot, c)
	}
	m.mu.RUnlock()

	slices.SortFunc(snapshot, func(a, b *Client) int { return cmp.Compare(a.seq, b.seq) })
	return snapshot
}

func (m *ClientManager) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *ClientManager) contains(c *Client) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[c]
	return ok
}
