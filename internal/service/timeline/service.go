package timeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/model"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeInternal   ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Entry is one row on a customer's history. Entries either come straight
// from the recorded activities or are synthesized from a session or ticket
// that no activity references yet.
type Entry struct {
	EntryID     string             `json:"entryId"`
	CustomerID  string             `json:"customerId"`
	Type        model.ActivityType `json:"type"`
	ReferenceID string             `json:"referenceId"`
	Description string             `json:"description"`
	OccurredAt  string             `json:"occurredAt"`
}

type Stats struct {
	CustomerID    string `json:"customerId"`
	TotalChats    int    `json:"totalChats"`
	ActiveChats   int    `json:"activeChats"`
	TotalTickets  int    `json:"totalTickets"`
	OpenTickets   int    `json:"openTickets"`
	LastContactAt string `json:"lastContactAt,omitempty"`
}

type Service struct {
	repo Repository
}

func New(db *database.Database) *Service {
	return &Service{repo: NewDynamoRepository(db)}
}

func NewWithRepository(repo Repository) *Service {
	return &Service{repo: repo}
}

// CustomerTimeline merges recorded activities with the customer's sessions
// and tickets into one descending history. Activities are authoritative: a
// session or ticket only contributes a synthesized entry when no activity
// references it, so nothing shows up twice.
func (s *Service) CustomerTimeline(ctx context.Context, customerID string) ([]Entry, error) {
	if customerID == "" {
		return nil, newError(ErrorCodeValidation, "customerId is required", nil)
	}

	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrorCodeNotFound, "customer not found", err)
		}
		return nil, newError(ErrorCodeInternal, "failed to look up customer", err)
	}

	activities, err := s.repo.ListCustomerActivities(ctx, customerID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list activities", err)
	}

	referenced := make(map[string]bool, len(activities))
	entries := make([]Entry, 0, len(activities))
	for _, a := range activities {
		referenced[a.ReferenceID] = true
		entries = append(entries, Entry{
			EntryID:     a.ActivityID,
			CustomerID:  a.CustomerID,
			Type:        a.ActivityType,
			ReferenceID: a.ReferenceID,
			Description: a.Description,
			OccurredAt:  a.CreatedAt,
		})
	}

	sessions, err := s.repo.ListCustomerSessions(ctx, customerID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list chat sessions", err)
	}
	for _, session := range sessions {
		if referenced[session.SessionID] {
			continue
		}
		entries = append(entries, Entry{
			EntryID:     "session-" + session.SessionID,
			CustomerID:  customerID,
			Type:        model.ActivityTypeChat,
			ReferenceID: session.SessionID,
			Description: "Chat session started",
			OccurredAt:  session.StartedAt,
		})
	}

	tickets, err := s.repo.ListCustomerTickets(ctx, customerID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list tickets", err)
	}
	for _, ticket := range tickets {
		if referenced[ticket.TicketID] {
			continue
		}
		entries = append(entries, Entry{
			EntryID:     "ticket-" + ticket.TicketID,
			CustomerID:  customerID,
			Type:        model.ActivityTypeTicketCreated,
			ReferenceID: ticket.TicketID,
			Description: fmt.Sprintf("Ticket %s created: %s", ticket.TicketNumber, ticket.Subject),
			OccurredAt:  ticket.CreatedAt,
		})
	}

	sortEntriesNewestFirst(entries)
	return entries, nil
}

func (s *Service) CustomerStats(ctx context.Context, customerID string) (Stats, error) {
	if customerID == "" {
		return Stats{}, newError(ErrorCodeValidation, "customerId is required", nil)
	}

	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Stats{}, newError(ErrorCodeNotFound, "customer not found", err)
		}
		return Stats{}, newError(ErrorCodeInternal, "failed to look up customer", err)
	}

	sessions, err := s.repo.ListCustomerSessions(ctx, customerID)
	if err != nil {
		return Stats{}, newError(ErrorCodeInternal, "failed to list chat sessions", err)
	}
	tickets, err := s.repo.ListCustomerTickets(ctx, customerID)
	if err != nil {
		return Stats{}, newError(ErrorCodeInternal, "failed to list tickets", err)
	}

	stats := Stats{
		CustomerID:   customerID,
		TotalChats:   len(sessions),
		TotalTickets: len(tickets),
	}

	var last time.Time
	for _, session := range sessions {
		if session.Status == model.SessionStatusActive {
			stats.ActiveChats++
		}
		if t := parseTime(session.StartedAt); t.After(last) {
			last = t
		}
	}
	for _, ticket := range tickets {
		if ticket.Status == model.TicketStatusOpen || ticket.Status == model.TicketStatusInProgress {
			stats.OpenTickets++
		}
		if t := parseTime(ticket.CreatedAt); t.After(last) {
			last = t
		}
	}
	if !last.IsZero() {
		stats.LastContactAt = last.Format(time.RFC3339Nano)
	}

	return stats, nil
}

// RecentTimeline is the cross-customer activity feed for the agent
// dashboard, newest first, capped at limit.
func (s *Service) RecentTimeline(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	activities, err := s.repo.ListAllActivities(ctx)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list activities", err)
	}

	entries := make([]Entry, 0, len(activities))
	for _, a := range activities {
		entries = append(entries, Entry{
			EntryID:     a.ActivityID,
			CustomerID:  a.CustomerID,
			Type:        a.ActivityType,
			ReferenceID: a.ReferenceID,
			Description: a.Description,
			OccurredAt:  a.CreatedAt,
		})
	}

	sortEntriesNewestFirst(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func sortEntriesNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt > entries[j].OccurredAt
	})
}

func parseTime(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
