package terminal

import (
	"sync"
	"time"

	"github.com/antibyte/retrocalc/pkg/logger"
)

// ClientManager tracks the websocket attached to each session and the
// per-IP request windows used for rate limiting.
type ClientManager struct {
	clients  map[string]*Client     // sessionID -> Client
	requests map[string][]time.Time // "kind|ip" -> request times
	mu       sync.RWMutex
	now      func() time.Time
}

// NewClientManager returns an empty manager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients:  make(map[string]*Client),
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// AddClient attaches client to its session and returns the connection it
// replaced, if any. A session has at most one live websocket.
func (cm *ClientManager) AddClient(client *Client) (previous *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	previous = cm.clients[client.sessionID]
	cm.clients[client.sessionID] = client
	logger.WebSocketDebug("client %s added for session %s", client.ipAddress, client.sessionID)
	return previous
}

// RemoveClient detaches client unless a newer connection already replaced it.
func (cm *ClientManager) RemoveClient(client *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.clients[client.sessionID] == client {
		delete(cm.clients, client.sessionID)
		logger.WebSocketDebug("client removed for session %s", client.sessionID)
	}
}

// GetClient returns the websocket attached to a session.
func (cm *ClientManager) GetClient(sessionID string) (*Client, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.clients[sessionID]
	return c, ok
}

// GetClientCount returns the number of attached websockets.
func (cm *ClientManager) GetClientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// CloseAll shuts down every attached websocket.
func (cm *ClientManager) CloseAll() {
	cm.mu.Lock()
	clients := make([]*Client, 0, len(cm.clients))
	for id, c := range cm.clients {
		clients = append(clients, c)
		delete(cm.clients, id)
	}
	cm.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// Allow records a request of the given kind from ipAddress and reports
// whether it stays within limit requests per window. A limit of zero or less
// disables the check.
func (cm *ClientManager) Allow(kind, ipAddress string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return true
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := cm.now()
	cutoff := now.Add(-window)
	key := kind + "|" + ipAddress
	valid := cm.requests[key][:0]
	for _, t := range cm.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= limit {
		cm.requests[key] = valid
		logger.WebSocketWarn("rate limit for %s exceeded by %s (%d in %v)", kind, ipAddress, len(valid), window)
		return false
	}
	cm.requests[key] = append(valid, now)
	return true
}

// PruneRequests drops request windows that have gone quiet.
func (cm *ClientManager) PruneRequests(window time.Duration) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cutoff := cm.now().Add(-window)
	for key, times := range cm.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(cm.requests, key)
		}
	}
}
