package kds

import (
	"context"
	"encoding/json"

	"github.com/appetiteclub/apt"
)

type broadcastRequest struct {
	board   Board
	station string
	all     bool
}

// Hub is the broadcast dispatcher. A single hub goroutine consumes the
// request queue and performs every broadcast pass, so workers (the change
// listener, per-connection command handling) never touch dispatch state
// directly; they post a request and move on.
type Hub struct {
	registry *Registry
	cache    *SnapshotCache
	logger   apt.Logger

	requests chan broadcastRequest
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(registry *Registry, cache *SnapshotCache, logger apt.Logger) *Hub {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Hub{
		registry: registry,
		cache:    cache,
		logger:   logger,
		requests: make(chan broadcastRequest, 64),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.run(runCtx)
	return nil
}

func (h *Hub) Stop(ctx context.Context) error {
	if h.cancel != nil {
		h.cancel()
	}
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// ScheduleBroadcast queues one broadcast pass for a station's board.
func (h *Hub) ScheduleBroadcast(board Board, station string) {
	select {
	case h.requests <- broadcastRequest{board: board, station: station}:
	case <-h.done:
	}
}

// ScheduleBroadcastAll queues a broadcast pass covering every cached
// station on both boards.
func (h *Hub) ScheduleBroadcastAll() {
	select {
	case h.requests <- broadcastRequest{all: true}:
	case <-h.done:
	}
}

// SendSnapshot sends the current cache entry for a station to one
// connection only. Channel handoff makes this safe from any goroutine.
func (h *Hub) SendSnapshot(conn Conn, board Board, station string) {
	payload, err := h.payload(board, station)
	if err != nil {
		h.logger.Errorf("cannot encode snapshot for %s/%s: %v", board, station, err)
		return
	}
	if err := conn.Send(payload); err != nil {
		h.evict(conn, err)
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case req := <-h.requests:
			if req.all {
				h.broadcastAll()
			} else {
				h.broadcast(req.board, req.station)
			}
		case <-ctx.Done():
			return
		}
	}
}

// broadcast sends the current snapshot for a station to every registered
// subscriber of that board. Failed sends evict the connection; delivery to
// the remaining subscribers is unaffected.
func (h *Hub) broadcast(board Board, station string) {
	subscribers := h.registry.SubscribersOf(board, station)
	if len(subscribers) == 0 {
		return
	}

	payload, err := h.payload(board, station)
	if err != nil {
		h.logger.Errorf("cannot encode snapshot for %s/%s: %v", board, station, err)
		return
	}

	for _, conn := range subscribers {
		if err := conn.Send(payload); err != nil {
			h.evict(conn, err)
		}
	}
}

func (h *Hub) broadcastAll() {
	for _, station := range h.cache.Stations() {
		h.broadcast(BoardPrep, station)
		h.broadcast(BoardDelivery, station)
	}
}

func (h *Hub) payload(board Board, station string) ([]byte, error) {
	snap := h.cache.Get(board, station)
	if board == BoardDelivery {
		return json.Marshal(struct {
			Tickets []Ticket `json:"tickets"`
		}{Tickets: snap.Tickets})
	}
	if snap.Summary == nil {
		snap.Summary = []SummaryLine{}
	}
	return json.Marshal(struct {
		Tickets []Ticket      `json:"tickets"`
		Summary []SummaryLine `json:"summary"`
	}{Tickets: snap.Tickets, Summary: snap.Summary})
}

// evict treats a failed send as an implicit disconnect: the connection is
// removed from the registry and closed, never retried.
func (h *Hub) evict(conn Conn, err error) {
	h.logger.Infof("evicting client %s after send failure: %v", conn.ID(), err)
	h.registry.Unregister(conn)
	conn.Close()
}
