// Package hub fans admitted-record notifications out to feed subscribers.
package hub

import "sync"

const (
	// AllSources is the subscription key that receives every source's events.
	AllSources = ""
	// SendBuffer is how many messages may queue for one subscriber before
	// it is dropped.
	SendBuffer = 64
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one subscriber. SourceID selects which source's events it
// receives; AllSources means every source.
type Connection struct {
	SourceID string
	Writer   Writer

	send chan []byte
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

// Register adds conn and starts its writer goroutine, which runs until
// conn is unregistered or a write fails.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.send = make(chan []byte, SendBuffer)
	if h.connections[conn.SourceID] == nil {
		h.connections[conn.SourceID] = make(map[*Connection]struct{})
	}
	h.connections[conn.SourceID][conn] = struct{}{}
	go h.writeLoop(conn, conn.send)
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.SourceID]
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.SourceID)
	}
	close(conn.send)
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.connections {
		n += len(set)
	}
	return n
}

// Broadcast queues message for the subscribers of sourceID and for every
// AllSources subscriber. It never waits on a subscriber: one whose queue
// is full is closed and dropped.
func (h *Hub) Broadcast(sourceID string, message []byte) {
	var full []*Connection

	h.mu.RLock()
	full = enqueue(h.connections[sourceID], message, full)
	if sourceID != AllSources {
		full = enqueue(h.connections[AllSources], message, full)
	}
	h.mu.RUnlock()

	for _, c := range full {
		h.drop(c)
	}
}

func enqueue(set map[*Connection]struct{}, message []byte, full []*Connection) []*Connection {
	for c := range set {
		select {
		case c.send <- message:
		default:
			full = append(full, c)
		}
	}
	return full
}

func (h *Hub) writeLoop(conn *Connection, send <-chan []byte) {
	for message := range send {
		if err := conn.Writer.Write(message); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) drop(conn *Connection) {
	_ = conn.Writer.Close()
	h.Unregister(conn)
}
