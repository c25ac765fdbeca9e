package model

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

type SenderType string

const (
	SenderTypeCustomer SenderType = "customer"
	SenderTypeAgent    SenderType = "agent"
)

type CustomerItem struct {
	CustomerID string `dynamodbav:"customerId"`
	Email      string `dynamodbav:"email"`
	Name       string `dynamodbav:"name"`
	Phone      string `dynamodbav:"phone,omitempty"`
	Company    string `dynamodbav:"company,omitempty"`
	CreatedAt  string `dynamodbav:"createdAt"`
	UpdatedAt  string `dynamodbav:"updatedAt"`
}

type ChatSessionItem struct {
	SessionID  string        `dynamodbav:"sessionId"`
	CustomerID string        `dynamodbav:"customerId"`
	AgentID    string        `dynamodbav:"agentId,omitempty"`
	Status     SessionStatus `dynamodbav:"status"`
	StartedAt  string        `dynamodbav:"startedAt"`
	EndedAt    string        `dynamodbav:"endedAt,omitempty"`
}

type ChatMessageItem struct {
	MessageID  string     `dynamodbav:"messageId"`
	SessionID  string     `dynamodbav:"sessionId"`
	SenderType SenderType `dynamodbav:"senderType"`
	SenderID   string     `dynamodbav:"senderId"`
	Content    string     `dynamodbav:"content"`
	SentAt     string     `dynamodbav:"sentAt"`
	// Seq orders messages that share a sentAt timestamp by insertion.
	Seq int64 `dynamodbav:"seq"`
}

type ActivityType string

const (
	ActivityTypeChat             ActivityType = "chat"
	ActivityTypeTicketCreated    ActivityType = "ticket_created"
	ActivityTypeSessionConverted ActivityType = "session_converted"
	ActivityTypeTicketUpdated    ActivityType = "ticket_updated"
)

type ActivityItem struct {
	ActivityID   string       `dynamodbav:"activityId"`
	CustomerID   string       `dynamodbav:"customerId"`
	ActivityType ActivityType `dynamodbav:"activityType"`
	ReferenceID  string       `dynamodbav:"referenceId"`
	Description  string       `dynamodbav:"description"`
	CreatedAt    string       `dynamodbav:"createdAt"`
}
