package kds

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// MockStore is a test double for Store. Defaults return empty data and nil
// errors; per-call func fields override behavior. Every call is recorded.
type MockStore struct {
	mu    sync.Mutex
	calls map[string]int

	FetchTicketsFunc          func(ctx context.Context, station string) ([]Ticket, error)
	FetchSummaryFunc          func(ctx context.Context, station string) ([]SummaryLine, error)
	FetchDeliveryTicketsFunc  func(ctx context.Context, station string) ([]Ticket, error)
	FetchDeliveredTicketsFunc func(ctx context.Context, station string) ([]Ticket, error)
	ApplyItemUpdateFunc       func(ctx context.Context, ticketID int64, itemCode, billID string) error
	CancelTicketFunc          func(ctx context.Context, ticketID int64) error
	AcknowledgeItemFunc       func(ctx context.Context, ticketID int64, itemCode, billID string) error
	MarkDeliveredFunc         func(ctx context.Context, ticketID int64, itemCode, billID string) error
	RecallItemFunc            func(ctx context.Context, ticketID int64, itemCode, billID string) error
}

func NewMockStore() *MockStore {
	return &MockStore{calls: make(map[string]int)}
}

func (m *MockStore) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
}

// Calls returns how many times the given operation was invoked. Fetch
// operations are keyed with the station, e.g. "fetch_tickets:Kitchen1".
func (m *MockStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockStore) FetchTickets(ctx context.Context, station string) ([]Ticket, error) {
	m.record("fetch_tickets:" + station)
	if m.FetchTicketsFunc != nil {
		return m.FetchTicketsFunc(ctx, station)
	}
	return []Ticket{}, nil
}

func (m *MockStore) FetchSummary(ctx context.Context, station string) ([]SummaryLine, error) {
	m.record("fetch_summary:" + station)
	if m.FetchSummaryFunc != nil {
		return m.FetchSummaryFunc(ctx, station)
	}
	return []SummaryLine{}, nil
}

func (m *MockStore) FetchDeliveryTickets(ctx context.Context, station string) ([]Ticket, error) {
	m.record("fetch_delivery:" + station)
	if m.FetchDeliveryTicketsFunc != nil {
		return m.FetchDeliveryTicketsFunc(ctx, station)
	}
	return []Ticket{}, nil
}

func (m *MockStore) FetchDeliveredTickets(ctx context.Context, station string) ([]Ticket, error) {
	m.record("fetch_delivered:" + station)
	if m.FetchDeliveredTicketsFunc != nil {
		return m.FetchDeliveredTicketsFunc(ctx, station)
	}
	return []Ticket{}, nil
}

func (m *MockStore) ApplyItemUpdate(ctx context.Context, ticketID int64, itemCode, billID string) error {
	m.record("apply_item_update")
	if m.ApplyItemUpdateFunc != nil {
		return m.ApplyItemUpdateFunc(ctx, ticketID, itemCode, billID)
	}
	return nil
}

func (m *MockStore) CancelTicket(ctx context.Context, ticketID int64) error {
	m.record("cancel_ticket")
	if m.CancelTicketFunc != nil {
		return m.CancelTicketFunc(ctx, ticketID)
	}
	return nil
}

func (m *MockStore) AcknowledgeItem(ctx context.Context, ticketID int64, itemCode, billID string) error {
	m.record("acknowledge_item")
	if m.AcknowledgeItemFunc != nil {
		return m.AcknowledgeItemFunc(ctx, ticketID, itemCode, billID)
	}
	return nil
}

func (m *MockStore) MarkDelivered(ctx context.Context, ticketID int64, itemCode, billID string) error {
	m.record("mark_delivered")
	if m.MarkDeliveredFunc != nil {
		return m.MarkDeliveredFunc(ctx, ticketID, itemCode, billID)
	}
	return nil
}

func (m *MockStore) RecallItem(ctx context.Context, ticketID int64, itemCode, billID string) error {
	m.record("recall_item")
	if m.RecallItemFunc != nil {
		return m.RecallItemFunc(ctx, ticketID, itemCode, billID)
	}
	return nil
}

// MockPublisher records published messages.
type MockPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[topic] = append(m.messages[topic], msg)
	return nil
}

func (m *MockPublisher) Published(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[topic])
}

// fakeConn is an in-memory Conn that records payloads and can be told to
// fail sends.
type fakeConn struct {
	id      uuid.UUID
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (c *fakeConn) ID() uuid.UUID {
	return c.id
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.sent = append(c.sent, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) LastSent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
