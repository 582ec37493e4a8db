package kds

import "time"

// Board identifies which display variant a connection is showing.
type Board string

const (
	// BoardPrep is the main kitchen board: pending tickets plus a food summary.
	BoardPrep Board = "prep"
	// BoardDelivery is the expeditor board tracking which items left the pass.
	BoardDelivery Board = "delivery"
)

// StationNone is the subscription a connection holds before it sends
// init_station.
const StationNone = "NONE"

// ItemStatus is the item-level lifecycle state as reported by the store.
type ItemStatus string

const (
	ItemPending   ItemStatus = "Pending"
	ItemReady     ItemStatus = "Ready"
	ItemDelivered ItemStatus = "Delivered"
)

// ItemStatusFromCode maps the store's numeric status column to its wire name.
// Unknown codes degrade to Pending.
func ItemStatusFromCode(code int) ItemStatus {
	switch code {
	case 1:
		return ItemReady
	case 2:
		return ItemDelivered
	default:
		return ItemPending
	}
}

// TicketStatus is the derived aggregate of a ticket's item states,
// numeric on the wire (0 pending, 1 partially ready, 2 delivered).
type TicketStatus int

const (
	TicketPending        TicketStatus = 0
	TicketPartiallyReady TicketStatus = 1
	TicketDelivered      TicketStatus = 2
)

type Item struct {
	Code     string     `json:"code"`
	Name     string     `json:"name"`
	Quantity int        `json:"qty"`
	Status   ItemStatus `json:"status"`
	Ready    bool       `json:"ready"`
}

// Ticket is one kitchen order (KOT) as last read from the store. Tickets are
// immutable snapshots: a refresh produces new values, never patches old ones.
type Ticket struct {
	ID         int64        `json:"id"`
	BillID     string       `json:"bill_id"`
	Station    string       `json:"station"`
	TableLabel string       `json:"table_label"`
	CreatedAt  time.Time    `json:"created_at"`
	Comments   string       `json:"comments,omitempty"`
	Cancelled  bool         `json:"cancelled"`
	Status     TicketStatus `json:"ticketstatus"`
	Items      []Item       `json:"items"`
}

type SummaryLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"qty"`
}

// Snapshot is the wholesale-replaced view of one station's board.
type Snapshot struct {
	Tickets []Ticket
	Summary []SummaryLine
}

// EmptySnapshot is what a never-refreshed station serves: empty lists,
// not nulls, so clients always render a valid board.
func EmptySnapshot() Snapshot {
	return Snapshot{Tickets: []Ticket{}, Summary: []SummaryLine{}}
}

// DeriveTicketStatus folds item ready flags into the ticket status.
// A ticket with no items is always pending; "all ready" requires at least
// one item so an empty list never counts as delivered.
func DeriveTicketStatus(items []Item) TicketStatus {
	if len(items) == 0 {
		return TicketPending
	}
	ready := 0
	for _, it := range items {
		if it.Ready {
			ready++
		}
	}
	switch {
	case ready == 0:
		return TicketPending
	case ready == len(items):
		return TicketDelivered
	default:
		return TicketPartiallyReady
	}
}
