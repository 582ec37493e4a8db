package kds

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is a live client connection as the registry and dispatcher see it.
// Send is best-effort: it must not block on socket I/O, and an error means
// the connection is unusable and will be evicted.
type Conn interface {
	ID() uuid.UUID
	Send(payload []byte) error
	Close() error
}

type subscription struct {
	conn    Conn
	board   Board
	station string
}

// Registry tracks live connections and the station each one is subscribed
// to. It exclusively owns the subscription mapping; the transport layer owns
// the sockets.
type Registry struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*subscription
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[uuid.UUID]*subscription)}
}

// Register adds a connection under the sentinel station.
func (r *Registry) Register(conn Conn, board Board) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[conn.ID()] = &subscription{conn: conn, board: board, station: StationNone}
}

// Subscribe points the connection at a station. Idempotent; a no-op for
// connections that were never registered or already unregistered.
func (r *Registry) Subscribe(conn Conn, station string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[conn.ID()]; ok {
		sub.station = station
	}
}

// Unregister removes all trace of the connection.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, conn.ID())
}

// StationOf returns the connection's current subscription, or the sentinel
// station when unknown.
func (r *Registry) StationOf(conn Conn) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sub, ok := r.subs[conn.ID()]; ok {
		return sub.station
	}
	return StationNone
}

// SubscribersOf returns a point-in-time copy of the connections subscribed
// to the station on the given board. The dispatcher iterates the copy, so a
// concurrent unregistration never corrupts a broadcast pass.
func (r *Registry) SubscribersOf(board Board, station string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []Conn
	for _, sub := range r.subs {
		if sub.board == board && sub.station == station {
			conns = append(conns, sub.conn)
		}
	}
	return conns
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
