package kds

import "context"

// Store is the backing-store boundary. Business rules (status transitions,
// cancellation, recall bookkeeping) live in the store's own procedures; this
// service only invokes them and re-reads the resulting rows.
//
// Fetch calls return typed errors; the refresher degrades them to empty
// snapshots so backend trouble never reaches a client as an error. Mutation
// calls are fire-and-log: the command processor logs a failure and carries
// on, because the follow-up refresh re-reads whatever state the store
// actually committed.
type Store interface {
	FetchTickets(ctx context.Context, station string) ([]Ticket, error)
	FetchSummary(ctx context.Context, station string) ([]SummaryLine, error)
	FetchDeliveryTickets(ctx context.Context, station string) ([]Ticket, error)
	FetchDeliveredTickets(ctx context.Context, station string) ([]Ticket, error)

	ApplyItemUpdate(ctx context.Context, ticketID int64, itemCode, billID string) error
	CancelTicket(ctx context.Context, ticketID int64) error
	AcknowledgeItem(ctx context.Context, ticketID int64, itemCode, billID string) error
	MarkDelivered(ctx context.Context, ticketID int64, itemCode, billID string) error
	RecallItem(ctx context.Context, ticketID int64, itemCode, billID string) error
}
