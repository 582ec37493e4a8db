package event

import (
	"encoding/json"
	"time"
)

const (
	KDSTicketsTopic  = "kds.tickets"
	KDSPrintTopic    = "kds.print"
	POSChangesTopic  = "pos.kds.changes"
	POSChangesStream = "KDS_CHANGES"

	EventTicketMutated  = "kds.ticket.mutated"
	EventPrintRequested = "kds.print.requested"
)

// TicketMutationEvent is published after a display command mutates the
// backing store, so other services can react without polling it.
type TicketMutationEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Action     string    `json:"action"`
	Station    string    `json:"station"`
	TicketID   int64     `json:"ticket_id"`
	BillID     string    `json:"bill_id,omitempty"`
	ItemCode   string    `json:"item_code,omitempty"`
}

// PrintJobEvent carries a fully-resolved ticket (already filtered to the
// items worth printing) for the physical print bridge.
type PrintJobEvent struct {
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Station    string          `json:"station"`
	TicketID   int64           `json:"ticket_id"`
	Ticket     json.RawMessage `json:"ticket"`
}
