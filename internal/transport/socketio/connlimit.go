package socketio

import (
	"net"
	"strings"
	"sync"
)

// ConnectionLimiter caps concurrent remote listeners. Loopback clients (the
// kiosk UI on the device itself) are never limited. When a new remote client
// exceeds the cap, the oldest remote client is evicted.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	// remote client IDs, oldest first
	externalClients []string
	// clientID -> remote host
	connections map[string]string
}

// NewConnectionLimiter creates a limiter that allows up to maxExternal remote
// clients. A non-positive maxExternal disables the cap.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal:     maxExternal,
		externalClients: make([]string, 0),
		connections:     make(map[string]string),
	}
}

// TryAdd registers a new connection and returns the ID of any evicted client.
func (cl *ConnectionLimiter) TryAdd(clientID, remoteAddr string) (allowed bool, evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.connections[clientID]; exists {
		return true, ""
	}

	host := hostOf(remoteAddr)
	cl.connections[clientID] = host

	if isLocalIP(host) {
		return true, ""
	}

	cl.externalClients = append(cl.externalClients, clientID)

	if cl.maxExternal > 0 && len(cl.externalClients) > cl.maxExternal {
		evictedID = cl.externalClients[0]
		cl.externalClients = cl.externalClients[1:]
		delete(cl.connections, evictedID)
		return true, evictedID
	}

	return true, ""
}

// Remove unregisters a connection when a client disconnects.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	host, exists := cl.connections[clientID]
	if !exists {
		return
	}

	delete(cl.connections, clientID)

	if isLocalIP(host) {
		return
	}

	for i, id := range cl.externalClients {
		if id == clientID {
			cl.externalClients = append(cl.externalClients[:i], cl.externalClients[i+1:]...)
			break
		}
	}
}

// Count returns the number of tracked connections.
func (cl *ConnectionLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.connections)
}

// hostOf strips an optional port and IPv4-mapped prefix.
func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return strings.TrimPrefix(addr, "::ffff:")
}

// isLocalIP reports whether host is a loopback address.
func isLocalIP(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
