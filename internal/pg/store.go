package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/kds/internal/kds"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reaches the POS database exclusively through its stored functions;
// schema and business rules stay on the database side. Every call checks a
// connection out of the pool for its own duration only, so a slow store
// call never blocks another command's worker.
type Store struct {
	pool   *pgxpool.Pool
	logger apt.Logger
	config *apt.Config
}

func NewStore(config *apt.Config, logger apt.Logger) *Store {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Store{logger: logger, config: config}
}

func (s *Store) Start(ctx context.Context) error {
	url, _ := s.config.GetString("db.pg.url")
	if url == "" {
		url = "postgres://localhost:5432/pos"
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("cannot create Postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("cannot ping Postgres: %w", err)
	}

	s.pool = pool
	s.logger.Infof("Connected to Postgres: %s", url)
	return nil
}

func (s *Store) Stop(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("Disconnected from Postgres")
	}
	return nil
}

const ticketColumns = `ticket_id, bill_id, table_label, created_at, comments, cancelled,
       item_code, item_name, qty, item_status, ready`

func (s *Store) FetchTickets(ctx context.Context, station string) ([]kds.Ticket, error) {
	return s.fetchTicketRows(ctx, station,
		`SELECT `+ticketColumns+` FROM kds_board_rows($1)`)
}

func (s *Store) FetchDeliveryTickets(ctx context.Context, station string) ([]kds.Ticket, error) {
	return s.fetchTicketRows(ctx, station,
		`SELECT `+ticketColumns+` FROM kds_delivery_rows($1)`)
}

func (s *Store) FetchDeliveredTickets(ctx context.Context, station string) ([]kds.Ticket, error) {
	return s.fetchTicketRows(ctx, station,
		`SELECT `+ticketColumns+` FROM kds_delivered_rows($1)`)
}

func (s *Store) FetchSummary(ctx context.Context, station string) ([]kds.SummaryLine, error) {
	rows, err := s.pool.Query(ctx, `SELECT item_name, qty FROM kds_summary($1)`, station)
	if err != nil {
		return nil, fmt.Errorf("cannot query summary for %s: %w", station, err)
	}
	defer rows.Close()

	summary := []kds.SummaryLine{}
	for rows.Next() {
		var line kds.SummaryLine
		if err := rows.Scan(&line.Name, &line.Quantity); err != nil {
			return nil, fmt.Errorf("cannot scan summary row: %w", err)
		}
		summary = append(summary, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summary rows failed: %w", err)
	}
	return summary, nil
}

func (s *Store) ApplyItemUpdate(ctx context.Context, ticketID int64, itemCode, billID string) error {
	return s.exec(ctx, `SELECT kds_accept_item($1, $2, $3)`, ticketID, itemCode, billID)
}

func (s *Store) CancelTicket(ctx context.Context, ticketID int64) error {
	return s.exec(ctx, `SELECT kds_cancel_ticket($1)`, ticketID)
}

func (s *Store) AcknowledgeItem(ctx context.Context, ticketID int64, itemCode, billID string) error {
	return s.exec(ctx, `SELECT kds_accept_item($1, $2, $3)`, ticketID, itemCode, billID)
}

func (s *Store) MarkDelivered(ctx context.Context, ticketID int64, itemCode, billID string) error {
	return s.exec(ctx, `SELECT kds_mark_delivered($1, $2, $3)`, ticketID, itemCode, billID)
}

func (s *Store) RecallItem(ctx context.Context, ticketID int64, itemCode, billID string) error {
	return s.exec(ctx, `SELECT kds_recall_item($1, $2, $3)`, ticketID, itemCode, billID)
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) error {
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("store call failed: %w", err)
	}
	return nil
}

// fetchTicketRows folds item rows into tickets, one ticket per KOT number,
// preserving the store's return order for tickets and items alike.
func (s *Store) fetchTicketRows(ctx context.Context, station, sql string) ([]kds.Ticket, error) {
	rows, err := s.pool.Query(ctx, sql, station)
	if err != nil {
		return nil, fmt.Errorf("cannot query tickets for %s: %w", station, err)
	}
	defer rows.Close()

	tickets, err := scanTicketRows(rows, station)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func scanTicketRows(rows pgx.Rows, station string) ([]kds.Ticket, error) {
	var order []int64
	byID := make(map[int64]*kds.Ticket)

	for rows.Next() {
		var (
			ticketID   int64
			billID     *string
			tableLabel *string
			createdAt  *time.Time
			comments   *string
			cancelled  bool
			itemCode   *string
			itemName   string
			qty        int
			itemStatus int
			ready      bool
		)
		if err := rows.Scan(&ticketID, &billID, &tableLabel, &createdAt, &comments,
			&cancelled, &itemCode, &itemName, &qty, &itemStatus, &ready); err != nil {
			return nil, fmt.Errorf("cannot scan ticket row: %w", err)
		}

		ticket, ok := byID[ticketID]
		if !ok {
			ticket = &kds.Ticket{
				ID:         ticketID,
				BillID:     deref(billID),
				Station:    station,
				TableLabel: deref(tableLabel),
				Comments:   deref(comments),
				Cancelled:  cancelled,
				Items:      []kds.Item{},
			}
			if createdAt != nil {
				ticket.CreatedAt = *createdAt
			}
			byID[ticketID] = ticket
			order = append(order, ticketID)
		}

		ticket.Items = append(ticket.Items, kds.Item{
			Code:     deref(itemCode),
			Name:     itemName,
			Quantity: qty,
			Status:   kds.ItemStatusFromCode(itemStatus),
			Ready:    ready,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ticket rows failed: %w", err)
	}

	tickets := make([]kds.Ticket, 0, len(order))
	for _, id := range order {
		tickets = append(tickets, *byID[id])
	}
	return tickets, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
