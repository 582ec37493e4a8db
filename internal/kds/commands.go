package kds

import (
	"context"
	"encoding/json"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/kds/pkg/event"
)

// ActionKind enumerates every command a display can issue. The set is
// closed: decoding happens once at the socket boundary and Execute matches
// exhaustively, so adding an action is a compile-visible change.
type ActionKind string

const (
	ActionInitStation      ActionKind = "init_station"
	ActionToggleItem       ActionKind = "toggle_item"
	ActionCancelTicket     ActionKind = "cancel_ticket"
	ActionAcknowledgeItems ActionKind = "acknowledge_items"
	ActionRecallItem       ActionKind = "recall_item"
	ActionToggleTicket     ActionKind = "toggle_ticket"
	ActionInitRecall       ActionKind = "init_recall"
)

type ActionItem struct {
	Code string `json:"code"`
}

// Action is a decoded client command. Fields not used by a given kind are
// left at their zero value; each handler validates what it needs.
type Action struct {
	Kind     ActionKind   `json:"action"`
	Station  string       `json:"station"`
	TicketID int64        `json:"ticket_id"`
	BillID   string       `json:"bill_id"`
	ItemCode string       `json:"item_code"`
	Items    []ActionItem `json:"items"`
	Print    *bool        `json:"print"`
}

func DecodeAction(data []byte) (Action, error) {
	var act Action
	if err := json.Unmarshal(data, &act); err != nil {
		return Action{}, err
	}
	return act, nil
}

// CommandProcessor turns client actions into store mutations followed by a
// synchronous cache refresh, so every broadcast a command schedules already
// reflects that command's own write.
type CommandProcessor struct {
	store     Store
	cache     *SnapshotCache
	refresher *Refresher
	registry  *Registry
	hub       *Hub
	publisher events.Publisher
	printer   *Printer
	logger    apt.Logger
}

func NewCommandProcessor(
	store Store,
	cache *SnapshotCache,
	refresher *Refresher,
	registry *Registry,
	hub *Hub,
	publisher events.Publisher,
	printer *Printer,
	logger apt.Logger,
) *CommandProcessor {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &CommandProcessor{
		store:     store,
		cache:     cache,
		refresher: refresher,
		registry:  registry,
		hub:       hub,
		publisher: publisher,
		printer:   printer,
		logger:    logger,
	}
}

// Execute runs one client action. Malformed actions (missing required
// identifiers) are logged no-ops; no store call is attempted for them.
func (p *CommandProcessor) Execute(ctx context.Context, conn Conn, board Board, act Action) {
	switch act.Kind {
	case ActionInitStation:
		p.initStation(ctx, conn, board, act)
	case ActionToggleItem:
		p.toggleItem(ctx, conn, board, act)
	case ActionCancelTicket:
		p.cancelTicket(ctx, conn, board, act)
	case ActionAcknowledgeItems:
		p.acknowledgeItems(ctx, conn, board, act)
	case ActionRecallItem:
		p.recallItem(ctx, conn, act)
	case ActionToggleTicket:
		p.toggleTicket(ctx, conn, act)
	case ActionInitRecall:
		p.initRecall(ctx, conn, act)
	default:
		p.logger.Infof("ignoring unknown action %q", act.Kind)
	}
}

func (p *CommandProcessor) initStation(ctx context.Context, conn Conn, board Board, act Action) {
	if act.Station == "" {
		p.logger.Info("init_station without a station name, ignoring")
		return
	}
	p.registry.Subscribe(conn, act.Station)
	if !p.cache.Has(board, act.Station) {
		p.refresher.RefreshBoard(ctx, board, act.Station)
	}
	p.hub.SendSnapshot(conn, board, act.Station)
	p.logger.Infof("client %s initialized on %s station %q", conn.ID(), board, act.Station)
}

func (p *CommandProcessor) toggleItem(ctx context.Context, conn Conn, board Board, act Action) {
	if act.TicketID == 0 || act.BillID == "" || act.ItemCode == "" {
		p.logger.Info("toggle_item missing ticket_id, bill_id or item_code, ignoring")
		return
	}
	if err := p.store.ApplyItemUpdate(ctx, act.TicketID, act.ItemCode, act.BillID); err != nil {
		p.logger.Errorf("item update failed for ticket %d item %s: %v", act.TicketID, act.ItemCode, err)
	}
	station := p.registry.StationOf(conn)
	p.refresher.RefreshBoard(ctx, board, station)
	p.hub.ScheduleBroadcast(board, station)
	p.publishMutation(ctx, act, station)
}

func (p *CommandProcessor) cancelTicket(ctx context.Context, conn Conn, board Board, act Action) {
	if act.TicketID == 0 {
		p.logger.Info("cancel_ticket without a ticket_id, ignoring")
		return
	}
	if err := p.store.CancelTicket(ctx, act.TicketID); err != nil {
		p.logger.Errorf("cancel failed for ticket %d: %v", act.TicketID, err)
	}
	station := p.registry.StationOf(conn)
	p.refresher.RefreshBoard(ctx, board, station)
	p.hub.ScheduleBroadcast(board, station)
	p.publishMutation(ctx, act, station)
}

func (p *CommandProcessor) acknowledgeItems(ctx context.Context, conn Conn, board Board, act Action) {
	if act.TicketID == 0 || act.BillID == "" {
		p.logger.Info("acknowledge_items missing ticket_id or bill_id, ignoring")
		return
	}
	if len(act.Items) == 0 {
		p.logger.Infof("acknowledge_items for ticket %d carries no items, ignoring", act.TicketID)
		return
	}
	for _, item := range act.Items {
		if item.Code == "" {
			continue
		}
		if err := p.store.AcknowledgeItem(ctx, act.TicketID, item.Code, act.BillID); err != nil {
			p.logger.Errorf("acknowledge failed for ticket %d item %s: %v", act.TicketID, item.Code, err)
		}
	}
	station := p.registry.StationOf(conn)
	p.refresher.RefreshBoard(ctx, board, station)
	p.hub.ScheduleBroadcast(board, station)
	p.publishMutation(ctx, act, station)
}

// recallItem pulls a delivered item back onto the boards. Recall changes the
// delivered/undelivered split server-wide, so every station is refreshed and
// re-broadcast, and the requesting screen gets a fresh delivered list.
func (p *CommandProcessor) recallItem(ctx context.Context, conn Conn, act Action) {
	if act.TicketID == 0 || act.ItemCode == "" || act.BillID == "" {
		p.logger.Info("recall_item missing ticket_id, item_code or bill_id, ignoring")
		return
	}
	if err := p.store.RecallItem(ctx, act.TicketID, act.ItemCode, act.BillID); err != nil {
		p.logger.Errorf("recall failed for ticket %d item %s: %v", act.TicketID, act.ItemCode, err)
	}
	p.refresher.RefreshAll(ctx)
	p.hub.ScheduleBroadcastAll()
	station := p.registry.StationOf(conn)
	p.replyDelivered(ctx, conn, station)
	p.publishMutation(ctx, act, station)
}

func (p *CommandProcessor) toggleTicket(ctx context.Context, conn Conn, act Action) {
	if act.TicketID == 0 || act.BillID == "" {
		p.logger.Info("toggle_ticket missing ticket_id or bill_id, ignoring")
		return
	}
	if len(act.Items) == 0 {
		p.logger.Infof("toggle_ticket for ticket %d carries no items, ignoring", act.TicketID)
		return
	}
	for _, item := range act.Items {
		if item.Code == "" {
			continue
		}
		if err := p.store.MarkDelivered(ctx, act.TicketID, item.Code, act.BillID); err != nil {
			p.logger.Errorf("delivered mark failed for ticket %d item %s: %v", act.TicketID, item.Code, err)
		}
	}

	station := p.registry.StationOf(conn)
	p.refresher.RefreshStation(ctx, station)
	p.hub.ScheduleBroadcast(BoardDelivery, station)
	p.hub.ScheduleBroadcast(BoardPrep, station)
	p.replyDelivered(ctx, conn, station)

	if act.Print == nil || *act.Print {
		p.printer.PrintReady(ctx, conn, station, act.TicketID)
	}
	p.publishMutation(ctx, act, station)
}

func (p *CommandProcessor) initRecall(ctx context.Context, conn Conn, act Action) {
	if act.Station == "" {
		p.logger.Info("init_recall without a station name, ignoring")
		return
	}
	p.registry.Subscribe(conn, act.Station)
	p.replyDelivered(ctx, conn, act.Station)
}

// replyDelivered sends the delivered-ticket list for a station to one
// connection. Delivered tickets are fetched on demand and never cached.
func (p *CommandProcessor) replyDelivered(ctx context.Context, conn Conn, station string) {
	delivered, err := p.store.FetchDeliveredTickets(ctx, station)
	if err != nil {
		p.logger.Errorf("cannot fetch delivered tickets for %s: %v", station, err)
		delivered = []Ticket{}
	}
	deriveStatuses(delivered)
	payload, err := json.Marshal(struct {
		DeliveredTickets []Ticket `json:"delivered_tickets"`
	}{DeliveredTickets: delivered})
	if err != nil {
		p.logger.Errorf("cannot encode delivered tickets for %s: %v", station, err)
		return
	}
	if err := conn.Send(payload); err != nil {
		p.hub.evict(conn, err)
	}
}

func (p *CommandProcessor) publishMutation(ctx context.Context, act Action, station string) {
	if p.publisher == nil {
		return
	}
	evt := event.TicketMutationEvent{
		EventType:  event.EventTicketMutated,
		OccurredAt: time.Now(),
		Action:     string(act.Kind),
		Station:    station,
		TicketID:   act.TicketID,
		BillID:     act.BillID,
		ItemCode:   act.ItemCode,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Errorf("cannot encode mutation event: %v", err)
		return
	}
	if err := p.publisher.Publish(ctx, event.KDSTicketsTopic, data); err != nil {
		p.logger.Errorf("cannot publish mutation event: %v", err)
	}
}
