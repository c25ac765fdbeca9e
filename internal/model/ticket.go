package model

import "fmt"

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

func ValidTicketPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// FormatTicketNumber renders a counter value as the human-readable,
// zero-padded ticket number.
func FormatTicketNumber(n int64) string {
	return fmt.Sprintf("TK-%05d", n)
}

type TicketItem struct {
	TicketID      string         `dynamodbav:"ticketId"`
	TicketNumber  string         `dynamodbav:"ticketNumber"`
	CustomerID    string         `dynamodbav:"customerId"`
	ChatSessionID string         `dynamodbav:"chatSessionId,omitempty"`
	Subject       string         `dynamodbav:"subject"`
	Description   string         `dynamodbav:"description"`
	Status        TicketStatus   `dynamodbav:"status"`
	Priority      TicketPriority `dynamodbav:"priority"`
	AssignedTo    string         `dynamodbav:"assignedTo,omitempty"`
	CreatedAt     string         `dynamodbav:"createdAt"`
	UpdatedAt     string         `dynamodbav:"updatedAt"`
	ResolvedAt    string         `dynamodbav:"resolvedAt,omitempty"`
}

type TicketCommentItem struct {
	CommentID  string `dynamodbav:"commentId"`
	TicketID   string `dynamodbav:"ticketId"`
	UserID     string `dynamodbav:"userId"`
	Comment    string `dynamodbav:"comment"`
	IsInternal bool   `dynamodbav:"isInternal"`
	CreatedAt  string `dynamodbav:"createdAt"`
}

// ChatTicketLinkItem claims a chat session for exactly one ticket. The row
// is written with a conditional put on sessionId, so the second conversion
// attempt fails at the storage layer.
type ChatTicketLinkItem struct {
	SessionID string `dynamodbav:"sessionId"`
	TicketID  string `dynamodbav:"ticketId"`
	CreatedAt string `dynamodbav:"createdAt"`
}

type CounterItem struct {
	CounterName  string `dynamodbav:"counterName"`
	CounterValue int64  `dynamodbav:"counterValue"`
}
