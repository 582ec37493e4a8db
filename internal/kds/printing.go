package kds

import (
	"context"
	"encoding/json"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/kds/pkg/event"
)

// Printer is the physical-print hook. When the expeditor marks items
// delivered, the ticket (filtered to its ready items) is offered to the
// requesting display for local printing and published for the print bridge.
// Every failure here is logged and non-fatal.
type Printer struct {
	cache     *SnapshotCache
	publisher events.Publisher
	logger    apt.Logger
}

func NewPrinter(cache *SnapshotCache, publisher events.Publisher, logger apt.Logger) *Printer {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Printer{cache: cache, publisher: publisher, logger: logger}
}

// PrintReady resolves the ticket from the freshly refreshed delivery
// snapshot, keeps only ready items, and dispatches the print job. Nothing
// happens when the ticket is gone or has no ready items.
func (p *Printer) PrintReady(ctx context.Context, conn Conn, station string, ticketID int64) {
	snap := p.cache.Get(BoardDelivery, station)

	var ticket *Ticket
	for i := range snap.Tickets {
		if snap.Tickets[i].ID == ticketID {
			ticket = &snap.Tickets[i]
			break
		}
	}
	if ticket == nil {
		return
	}

	ready := make([]Item, 0, len(ticket.Items))
	for _, item := range ticket.Items {
		if item.Ready {
			ready = append(ready, item)
		}
	}
	if len(ready) == 0 {
		return
	}

	printable := *ticket
	printable.Items = ready

	payload, err := json.Marshal(struct {
		Action string `json:"action"`
		Ticket Ticket `json:"ticket"`
	}{Action: "print_ticket", Ticket: printable})
	if err != nil {
		p.logger.Errorf("cannot encode print command for ticket %d: %v", ticketID, err)
		return
	}
	if err := conn.Send(payload); err != nil {
		p.logger.Errorf("cannot send print command for ticket %d: %v", ticketID, err)
	}

	p.publishJob(ctx, station, printable)
}

func (p *Printer) publishJob(ctx context.Context, station string, ticket Ticket) {
	if p.publisher == nil {
		return
	}
	raw, err := json.Marshal(ticket)
	if err != nil {
		p.logger.Errorf("cannot encode print job for ticket %d: %v", ticket.ID, err)
		return
	}
	job := event.PrintJobEvent{
		EventType:  event.EventPrintRequested,
		OccurredAt: time.Now(),
		Station:    station,
		TicketID:   ticket.ID,
		Ticket:     raw,
	}
	data, err := json.Marshal(job)
	if err != nil {
		p.logger.Errorf("cannot encode print job event: %v", err)
		return
	}
	if err := p.publisher.Publish(ctx, event.KDSPrintTopic, data); err != nil {
		p.logger.Errorf("cannot publish print job for ticket %d: %v", ticket.ID, err)
	}
}
