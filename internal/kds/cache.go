package kds

import "sync"

type boardKey struct {
	board   Board
	station string
}

// SnapshotCache holds the last known snapshot per (board, station).
// Replace swaps a whole entry under the write lock, so a concurrent Get
// observes either the previous or the new snapshot in full, never a mix.
// Entries are created lazily and never evicted; the station set is small
// and operator-controlled.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[boardKey]Snapshot
	known   map[string]struct{}
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[boardKey]Snapshot),
		known:   make(map[string]struct{}),
	}
}

// Get returns the last snapshot for the station, or an empty snapshot if it
// was never refreshed. It never blocks on I/O and never triggers a refresh.
func (c *SnapshotCache) Get(board Board, station string) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if snap, ok := c.entries[boardKey{board, station}]; ok {
		return snap
	}
	return EmptySnapshot()
}

// Has reports whether the station was ever refreshed on the given board.
func (c *SnapshotCache) Has(board Board, station string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[boardKey{board, station}]
	return ok
}

// Replace atomically swaps the full entry for the station.
func (c *SnapshotCache) Replace(board Board, station string, snap Snapshot) {
	if snap.Tickets == nil {
		snap.Tickets = []Ticket{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[boardKey{board, station}] = snap
	c.known[station] = struct{}{}
}

// Stations lists every station that has ever been refreshed, on any board.
func (c *SnapshotCache) Stations() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stations := make([]string, 0, len(c.known))
	for s := range c.known {
		stations = append(stations, s)
	}
	return stations
}
