package gateway

import (
	"sync"
	"time"
)

// ClientRegistry tracks every live websocket connection by client id.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client)}
}

func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()
}

func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	delete(r.clients, clientID)
	r.mu.Unlock()
}

// Snapshot copies out the current connections. authenticatedOnly skips
// clients still mid-handshake, which is what the broadcaster wants.
func (r *ClientRegistry) Snapshot(authenticatedOnly bool) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if authenticatedOnly && !c.Authenticated {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Touch records activity on a connection.
func (r *ClientRegistry) Touch(clientID string) {
	r.mu.Lock()
	if c, ok := r.clients[clientID]; ok {
		c.LastActivity = time.Now()
	}
	r.mu.Unlock()
}
