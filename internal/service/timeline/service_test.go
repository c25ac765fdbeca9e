package timeline

import (
	"context"
	"testing"

	"support-desk-backend/internal/model"
)

type memoryRepository struct {
	customers  map[string]model.CustomerItem
	activities []model.ActivityItem
	sessions   []model.ChatSessionItem
	tickets    []model.TicketItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{customers: make(map[string]model.CustomerItem)}
}

func (m *memoryRepository) GetCustomer(ctx context.Context, customerID string) (model.CustomerItem, error) {
	customer, ok := m.customers[customerID]
	if !ok {
		return model.CustomerItem{}, ErrNotFound
	}
	return customer, nil
}

func (m *memoryRepository) ListCustomerActivities(ctx context.Context, customerID string) ([]model.ActivityItem, error) {
	out := make([]model.ActivityItem, 0)
	for _, a := range m.activities {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepository) ListCustomerSessions(ctx context.Context, customerID string) ([]model.ChatSessionItem, error) {
	out := make([]model.ChatSessionItem, 0)
	for _, s := range m.sessions {
		if s.CustomerID == customerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryRepository) ListCustomerTickets(ctx context.Context, customerID string) ([]model.TicketItem, error) {
	out := make([]model.TicketItem, 0)
	for _, t := range m.tickets {
		if t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryRepository) ListAllActivities(ctx context.Context) ([]model.ActivityItem, error) {
	return m.activities, nil
}

func TestCustomerTimelineDeduplicatesByReference(t *testing.T) {
	repo := newMemoryRepository()
	repo.customers["cust-1"] = model.CustomerItem{CustomerID: "cust-1", Email: "a@x.com"}

	// sess-1 has a recorded activity; sess-2 does not and must be
	// synthesized exactly once.
	repo.sessions = []model.ChatSessionItem{
		{SessionID: "sess-1", CustomerID: "cust-1", Status: model.SessionStatusClosed, StartedAt: "2024-03-01T10:00:00Z"},
		{SessionID: "sess-2", CustomerID: "cust-1", Status: model.SessionStatusActive, StartedAt: "2024-03-01T11:00:00Z"},
	}
	repo.activities = []model.ActivityItem{
		{ActivityID: "act-1", CustomerID: "cust-1", ActivityType: model.ActivityTypeChat, ReferenceID: "sess-1", Description: "Chat session started", CreatedAt: "2024-03-01T10:00:00Z"},
	}
	repo.tickets = []model.TicketItem{
		{TicketID: "tick-1", TicketNumber: "TK-00001", CustomerID: "cust-1", Subject: "Billing", Status: model.TicketStatusOpen, CreatedAt: "2024-03-01T12:00:00Z"},
	}

	service := NewWithRepository(repo)
	entries, err := service.CustomerTimeline(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}

	seen := make(map[string]int)
	for _, e := range entries {
		seen[e.ReferenceID]++
	}
	for ref, n := range seen {
		if n != 1 {
			t.Fatalf("reference %s appears %d times", ref, n)
		}
	}

	// Newest first: ticket (12:00), sess-2 (11:00), sess-1 (10:00).
	if entries[0].ReferenceID != "tick-1" || entries[1].ReferenceID != "sess-2" || entries[2].ReferenceID != "sess-1" {
		t.Fatalf("entries out of order: %+v", entries)
	}
}

func TestCustomerTimelineUnknownCustomer(t *testing.T) {
	service := NewWithRepository(newMemoryRepository())

	_, err := service.CustomerTimeline(context.Background(), "missing")
	svcErr, ok := err.(*Error)
	if !ok || svcErr.Code != ErrorCodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestCustomerStats(t *testing.T) {
	repo := newMemoryRepository()
	repo.customers["cust-1"] = model.CustomerItem{CustomerID: "cust-1"}
	repo.sessions = []model.ChatSessionItem{
		{SessionID: "sess-1", CustomerID: "cust-1", Status: model.SessionStatusActive, StartedAt: "2024-03-01T10:00:00Z"},
		{SessionID: "sess-2", CustomerID: "cust-1", Status: model.SessionStatusClosed, StartedAt: "2024-02-01T10:00:00Z"},
	}
	repo.tickets = []model.TicketItem{
		{TicketID: "tick-1", CustomerID: "cust-1", Status: model.TicketStatusOpen, CreatedAt: "2024-03-02T10:00:00Z"},
		{TicketID: "tick-2", CustomerID: "cust-1", Status: model.TicketStatusResolved, CreatedAt: "2024-01-01T10:00:00Z"},
	}

	service := NewWithRepository(repo)
	stats, err := service.CustomerStats(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	if stats.TotalChats != 2 || stats.ActiveChats != 1 {
		t.Fatalf("unexpected chat counts: %+v", stats)
	}
	if stats.TotalTickets != 2 || stats.OpenTickets != 1 {
		t.Fatalf("unexpected ticket counts: %+v", stats)
	}
	if stats.LastContactAt != "2024-03-02T10:00:00Z" {
		t.Fatalf("unexpected lastContactAt %q", stats.LastContactAt)
	}
}

func TestRecentTimelineCapsAtLimit(t *testing.T) {
	repo := newMemoryRepository()
	repo.activities = []model.ActivityItem{
		{ActivityID: "a1", CustomerID: "c1", ActivityType: model.ActivityTypeChat, ReferenceID: "s1", CreatedAt: "2024-03-01T10:00:00Z"},
		{ActivityID: "a2", CustomerID: "c2", ActivityType: model.ActivityTypeTicketCreated, ReferenceID: "t1", CreatedAt: "2024-03-01T11:00:00Z"},
		{ActivityID: "a3", CustomerID: "c1", ActivityType: model.ActivityTypeTicketUpdated, ReferenceID: "t1", CreatedAt: "2024-03-01T12:00:00Z"},
	}

	service := NewWithRepository(repo)
	entries, err := service.RecentTimeline(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent timeline failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EntryID != "a3" || entries[1].EntryID != "a2" {
		t.Fatalf("entries out of order: %+v", entries)
	}
}
