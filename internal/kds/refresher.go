package kds

import (
	"context"

	"github.com/appetiteclub/apt"
)

// Refresher re-reads station state from the store and replaces cache
// entries wholesale. Derivation of ticket status happens here, in one
// place, regardless of which board the rows came from.
type Refresher struct {
	store  Store
	cache  *SnapshotCache
	logger apt.Logger
}

func NewRefresher(store Store, cache *SnapshotCache, logger apt.Logger) *Refresher {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Refresher{store: store, cache: cache, logger: logger}
}

// RefreshBoard rebuilds one board's entry for a station. Store failures are
// logged and produce empty lists; the cache still gets a full, valid entry.
func (r *Refresher) RefreshBoard(ctx context.Context, board Board, station string) {
	switch board {
	case BoardDelivery:
		tickets, err := r.store.FetchDeliveryTickets(ctx, station)
		if err != nil {
			r.logger.Errorf("cannot fetch delivery tickets for %s: %v", station, err)
			tickets = []Ticket{}
		}
		deriveStatuses(tickets)
		r.cache.Replace(BoardDelivery, station, Snapshot{Tickets: tickets})
	default:
		tickets, err := r.store.FetchTickets(ctx, station)
		if err != nil {
			r.logger.Errorf("cannot fetch tickets for %s: %v", station, err)
			tickets = []Ticket{}
		}
		summary, err := r.store.FetchSummary(ctx, station)
		if err != nil {
			r.logger.Errorf("cannot fetch summary for %s: %v", station, err)
			summary = []SummaryLine{}
		}
		deriveStatuses(tickets)
		r.cache.Replace(BoardPrep, station, Snapshot{Tickets: tickets, Summary: summary})
	}
}

// RefreshStation rebuilds both boards for one station.
func (r *Refresher) RefreshStation(ctx context.Context, station string) {
	r.RefreshBoard(ctx, BoardPrep, station)
	r.RefreshBoard(ctx, BoardDelivery, station)
}

// RefreshAll rebuilds every known station. The store is the source of
// truth, so this is always a full re-read, never a partial invalidation.
func (r *Refresher) RefreshAll(ctx context.Context) {
	for _, station := range r.cache.Stations() {
		r.RefreshStation(ctx, station)
	}
}

func deriveStatuses(tickets []Ticket) {
	for i := range tickets {
		tickets[i].Status = DeriveTicketStatus(tickets[i].Items)
	}
}
