package ticket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/messaging"
	"support-desk-backend/internal/model"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeConflict   ErrorCode = "conflict"
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

type CreateParams struct {
	CustomerID  string
	Subject     string
	Description string
	Priority    model.TicketPriority
	CreatedBy   string
}

type ConvertParams struct {
	SessionID string
	Subject   string
	Priority  model.TicketPriority
	AgentID   string
}

// UpdateParams carries a partial update; nil fields are left untouched.
type UpdateParams struct {
	Subject     *string
	Description *string
	Status      *model.TicketStatus
	Priority    *model.TicketPriority
	AssignedTo  *string
}

type ListFilter struct {
	Status     model.TicketStatus
	Priority   model.TicketPriority
	AssignedTo string
}

type Service struct {
	repo Repository
	bus  messaging.Publisher
	now  func() time.Time
}

func New(db *database.Database, bus messaging.Publisher) *Service {
	return NewWithRepository(NewDynamoRepository(db), bus, time.Now)
}

func NewWithRepository(repo Repository, bus messaging.Publisher, now func() time.Time) *Service {
	if bus == nil {
		bus = messaging.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		bus:  bus,
		now:  now,
	}
}

// Create opens a ticket directly, without a backing chat session.
func (s *Service) Create(ctx context.Context, params CreateParams) (model.TicketItem, error) {
	subject := strings.TrimSpace(params.Subject)
	if subject == "" {
		return model.TicketItem{}, newError(ErrorCodeValidation, "subject is required", nil)
	}
	if params.CustomerID == "" {
		return model.TicketItem{}, newError(ErrorCodeValidation, "customerId is required", nil)
	}

	priority := params.Priority
	if priority == "" {
		priority = model.TicketPriorityMedium
	}
	if !model.ValidTicketPriority(priority) {
		return model.TicketItem{}, newError(ErrorCodeValidation, fmt.Sprintf("invalid priority %q", priority), nil)
	}

	customer, err := s.repo.GetCustomer(ctx, params.CustomerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.TicketItem{}, newError(ErrorCodeNotFound, "customer not found", err)
		}
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to look up customer", err)
	}

	number, err := s.repo.NextTicketNumber(ctx)
	if err != nil {
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to allocate ticket number", err)
	}

	nowStr := s.now().UTC().Format(time.RFC3339Nano)
	ticket := model.TicketItem{
		TicketID:     uuid.NewString(),
		TicketNumber: model.FormatTicketNumber(number),
		CustomerID:   customer.CustomerID,
		Subject:      subject,
		Description:  strings.TrimSpace(params.Description),
		Status:       model.TicketStatusOpen,
		Priority:     priority,
		AssignedTo:   params.CreatedBy,
		CreatedAt:    nowStr,
		UpdatedAt:    nowStr,
	}
	if err := s.repo.SaveTicket(ctx, ticket); err != nil {
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to store ticket", err)
	}

	if err := s.recordActivity(ctx, ticket.CustomerID, model.ActivityTypeTicketCreated, ticket.TicketID,
		fmt.Sprintf("Ticket %s created: %s", ticket.TicketNumber, ticket.Subject), nowStr); err != nil {
		return model.TicketItem{}, err
	}

	s.publish(messaging.RoutingKeyTicketCreated, ticket)
	return ticket, nil
}

// ConvertSession turns a chat session into a ticket exactly once. The
// session is claimed with a conditional write before the ticket is built,
// so of two concurrent conversions one wins and the other gets a conflict.
// An active session is force-closed as part of the conversion.
func (s *Service) ConvertSession(ctx context.Context, params ConvertParams) (model.TicketItem, error) {
	if params.SessionID == "" {
		return model.TicketItem{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}

	priority := params.Priority
	if priority == "" {
		priority = model.TicketPriorityMedium
	}
	if !model.ValidTicketPriority(priority) {
		return model.TicketItem{}, newError(ErrorCodeValidation, fmt.Sprintf("invalid priority %q", priority), nil)
	}

	session, err := s.repo.GetSession(ctx, params.SessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.TicketItem{}, newError(ErrorCodeNotFound, "chat session not found", err)
		}
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to fetch chat session", err)
	}

	customer, err := s.repo.GetCustomer(ctx, session.CustomerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.TicketItem{}, newError(ErrorCodeNotFound, "customer not found", err)
		}
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to look up customer", err)
	}

	nowStr := s.now().UTC().Format(time.RFC3339Nano)
	ticketID := uuid.NewString()

	link := model.ChatTicketLinkItem{
		SessionID: session.SessionID,
		TicketID:  ticketID,
		CreatedAt: nowStr,
	}
	if err := s.repo.ClaimSessionLink(ctx, link); err != nil {
		if errors.Is(err, ErrSessionAlreadyLinked) {
			return model.TicketItem{}, newError(ErrorCodeConflict, "chat session has already been converted to a ticket", err)
		}
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to claim chat session", err)
	}

	messages, err := s.repo.ListSessionMessages(ctx, session.SessionID)
	if err != nil {
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to load chat transcript", err)
	}

	subject := strings.TrimSpace(params.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Chat with %s", customerLabel(customer))
	}

	number, err := s.repo.NextTicketNumber(ctx)
	if err != nil {
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to allocate ticket number", err)
	}

	assignedTo := params.AgentID
	if assignedTo == "" {
		assignedTo = session.AgentID
	}

	ticket := model.TicketItem{
		TicketID:      ticketID,
		TicketNumber:  model.FormatTicketNumber(number),
		CustomerID:    customer.CustomerID,
		ChatSessionID: session.SessionID,
		Subject:       subject,
		Description:   buildTranscript(messages),
		Status:        model.TicketStatusOpen,
		Priority:      priority,
		AssignedTo:    assignedTo,
		CreatedAt:     nowStr,
		UpdatedAt:     nowStr,
	}
	if err := s.repo.SaveTicket(ctx, ticket); err != nil {
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to store ticket", err)
	}

	if session.Status == model.SessionStatusActive {
		if err := s.repo.CloseSession(ctx, session.SessionID, nowStr); err != nil {
			return model.TicketItem{}, newError(ErrorCodeInternal, "failed to close chat session", err)
		}
	}

	// The conversion gets its own activity type so the timeline can tell
	// it apart from tickets opened directly.
	if err := s.recordActivity(ctx, customer.CustomerID, model.ActivityTypeSessionConverted, ticket.TicketID,
		fmt.Sprintf("Chat session converted to ticket %s", ticket.TicketNumber), nowStr); err != nil {
		return model.TicketItem{}, err
	}

	s.publish(messaging.RoutingKeySessionConverted, struct {
		SessionID string `json:"sessionId"`
		TicketID  string `json:"ticketId"`
		Number    string `json:"ticketNumber"`
	}{session.SessionID, ticket.TicketID, ticket.TicketNumber})

	return ticket, nil
}

func (s *Service) Get(ctx context.Context, ticketID string) (model.TicketItem, error) {
	if ticketID == "" {
		return model.TicketItem{}, newError(ErrorCodeValidation, "ticketId is required", nil)
	}

	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.TicketItem{}, newError(ErrorCodeNotFound, "ticket not found", err)
		}
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to fetch ticket", err)
	}
	return ticket, nil
}

func (s *Service) GetByNumber(ctx context.Context, ticketNumber string) (model.TicketItem, error) {
	ticketNumber = strings.TrimSpace(ticketNumber)
	if ticketNumber == "" {
		return model.TicketItem{}, newError(ErrorCodeValidation, "ticketNumber is required", nil)
	}

	ticket, err := s.repo.GetTicketByNumber(ctx, ticketNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.TicketItem{}, newError(ErrorCodeNotFound, "ticket not found", err)
		}
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to fetch ticket", err)
	}
	return ticket, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]model.TicketItem, error) {
	tickets, err := s.repo.ListTickets(ctx)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list tickets", err)
	}

	filtered := make([]model.TicketItem, 0, len(tickets))
	for _, t := range tickets {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.AssignedTo != "" && t.AssignedTo != filter.AssignedTo {
			continue
		}
		filtered = append(filtered, t)
	}

	sortTicketsNewestFirst(filtered)
	return filtered, nil
}

func (s *Service) CustomerTickets(ctx context.Context, customerID string) ([]model.TicketItem, error) {
	if customerID == "" {
		return nil, newError(ErrorCodeValidation, "customerId is required", nil)
	}

	tickets, err := s.repo.ListCustomerTickets(ctx, customerID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list customer tickets", err)
	}

	sortTicketsNewestFirst(tickets)
	return tickets, nil
}

// Update applies a partial update. A status change is recorded on the
// customer timeline; entering resolved or closed stamps resolvedAt, and
// reopening clears it.
func (s *Service) Update(ctx context.Context, ticketID string, params UpdateParams) (model.TicketItem, error) {
	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return model.TicketItem{}, err
	}

	previousStatus := ticket.Status
	nowStr := s.now().UTC().Format(time.RFC3339Nano)

	if params.Subject != nil {
		subject := strings.TrimSpace(*params.Subject)
		if subject == "" {
			return model.TicketItem{}, newError(ErrorCodeValidation, "subject cannot be empty", nil)
		}
		ticket.Subject = subject
	}
	if params.Description != nil {
		ticket.Description = strings.TrimSpace(*params.Description)
	}
	if params.Priority != nil {
		if !model.ValidTicketPriority(*params.Priority) {
			return model.TicketItem{}, newError(ErrorCodeValidation, fmt.Sprintf("invalid priority %q", *params.Priority), nil)
		}
		ticket.Priority = *params.Priority
	}
	if params.AssignedTo != nil {
		ticket.AssignedTo = *params.AssignedTo
	}
	if params.Status != nil {
		if !model.ValidTicketStatus(*params.Status) {
			return model.TicketItem{}, newError(ErrorCodeValidation, fmt.Sprintf("invalid status %q", *params.Status), nil)
		}
		ticket.Status = *params.Status
		switch ticket.Status {
		case model.TicketStatusResolved, model.TicketStatusClosed:
			if ticket.ResolvedAt == "" {
				ticket.ResolvedAt = nowStr
			}
		default:
			ticket.ResolvedAt = ""
		}
	}

	ticket.UpdatedAt = nowStr
	if err := s.repo.SaveTicket(ctx, ticket); err != nil {
		return model.TicketItem{}, newError(ErrorCodeInternal, "failed to store ticket", err)
	}

	if ticket.Status != previousStatus {
		if err := s.recordActivity(ctx, ticket.CustomerID, model.ActivityTypeTicketUpdated, ticket.TicketID,
			fmt.Sprintf("Ticket %s status changed from %s to %s", ticket.TicketNumber, previousStatus, ticket.Status), nowStr); err != nil {
			return model.TicketItem{}, err
		}
	}

	return ticket, nil
}

func (s *Service) AddComment(ctx context.Context, ticketID, userID, comment string, isInternal bool) (model.TicketCommentItem, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return model.TicketCommentItem{}, newError(ErrorCodeValidation, "comment is required", nil)
	}
	if userID == "" {
		return model.TicketCommentItem{}, newError(ErrorCodeValidation, "userId is required", nil)
	}

	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return model.TicketCommentItem{}, err
	}

	item := model.TicketCommentItem{
		CommentID:  uuid.NewString(),
		TicketID:   ticket.TicketID,
		UserID:     userID,
		Comment:    comment,
		IsInternal: isInternal,
		CreatedAt:  s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.repo.CreateComment(ctx, item); err != nil {
		return model.TicketCommentItem{}, newError(ErrorCodeInternal, "failed to store comment", err)
	}
	return item, nil
}

func (s *Service) Comments(ctx context.Context, ticketID string) ([]model.TicketCommentItem, error) {
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}

	comments, err := s.repo.ListComments(ctx, ticketID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list comments", err)
	}
	return comments, nil
}

func (s *Service) Delete(ctx context.Context, ticketID string) error {
	if _, err := s.Get(ctx, ticketID); err != nil {
		return err
	}
	if err := s.repo.DeleteTicket(ctx, ticketID); err != nil {
		return newError(ErrorCodeInternal, "failed to delete ticket", err)
	}
	return nil
}

func (s *Service) recordActivity(ctx context.Context, customerID string, activityType model.ActivityType, referenceID, description, createdAt string) error {
	activity := model.ActivityItem{
		ActivityID:   uuid.NewString(),
		CustomerID:   customerID,
		ActivityType: activityType,
		ReferenceID:  referenceID,
		Description:  description,
		CreatedAt:    createdAt,
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return newError(ErrorCodeInternal, "failed to record activity", err)
	}
	return nil
}

// publish is best-effort; a broker outage must not fail the write path.
func (s *Service) publish(routingKey string, payload interface{}) {
	if err := s.bus.Publish(routingKey, payload); err != nil {
		log.Printf("publish %s failed: %v", routingKey, err)
	}
}

// buildTranscript renders the chat history in the fixed line format the
// rest of the platform parses: "[sentAt] Sender: content".
func buildTranscript(messages []model.ChatMessageItem) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.SentAt, senderLabel(m.SenderType), m.Content)
	}
	return b.String()
}

func senderLabel(senderType model.SenderType) string {
	if senderType == model.SenderTypeAgent {
		return "Agent"
	}
	return "Customer"
}

func customerLabel(customer model.CustomerItem) string {
	if customer.Name != "" {
		return customer.Name
	}
	return customer.Email
}

func sortTicketsNewestFirst(tickets []model.TicketItem) {
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt > tickets[j].CreatedAt
	})
}
