package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/model"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation_error"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeInvalidState ErrorCode = "invalid_state"
	ErrorCodeInternal     ErrorCode = "internal_error"
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

type StartResult struct {
	Session       model.ChatSessionItem
	Customer      model.CustomerItem
	IsNewCustomer bool
}

type SaveMessageParams struct {
	SessionID  string
	SenderType model.SenderType
	SenderID   string
	Content    string
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		now:  now,
	}
}

// Start opens a fresh active session for the customer with the given
// email, creating the customer record when this is their first contact.
// Returning customers always get a new session; prior closed sessions are
// never reopened.
func (s *Service) Start(ctx context.Context, customerEmail, customerName string) (StartResult, error) {
	email := normalizeEmail(customerEmail)
	name := strings.TrimSpace(customerName)

	if email == "" {
		return StartResult{}, newError(ErrorCodeValidation, "customer email is required", nil)
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	isNewCustomer := false
	customer, err := s.repo.GetCustomerByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return StartResult{}, newError(ErrorCodeInternal, "failed to look up customer", err)
		}
		customer = model.CustomerItem{
			CustomerID: uuid.NewString(),
			Email:      email,
			Name:       name,
			CreatedAt:  nowStr,
			UpdatedAt:  nowStr,
		}
		if err := s.repo.CreateCustomer(ctx, customer); err != nil {
			return StartResult{}, newError(ErrorCodeInternal, "failed to create customer", err)
		}
		isNewCustomer = true
	}

	session := model.ChatSessionItem{
		SessionID:  uuid.NewString(),
		CustomerID: customer.CustomerID,
		Status:     model.SessionStatusActive,
		StartedAt:  nowStr,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return StartResult{}, newError(ErrorCodeInternal, "failed to create chat session", err)
	}

	activity := model.ActivityItem{
		ActivityID:   uuid.NewString(),
		CustomerID:   customer.CustomerID,
		ActivityType: model.ActivityTypeChat,
		ReferenceID:  session.SessionID,
		Description:  "Chat session started",
		CreatedAt:    nowStr,
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return StartResult{}, newError(ErrorCodeInternal, "failed to record activity", err)
	}

	return StartResult{
		Session:       session,
		Customer:      customer,
		IsNewCustomer: isNewCustomer,
	}, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return model.ChatSessionItem{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "chat session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to fetch chat session", err)
	}
	return session, nil
}

// SaveMessage persists one message into an active session. The caller is
// responsible for rate limiting before calling this.
func (s *Service) SaveMessage(ctx context.Context, params SaveMessageParams) (model.ChatMessageItem, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return model.ChatMessageItem{}, newError(ErrorCodeValidation, "message content is required", nil)
	}
	if params.SenderID == "" {
		return model.ChatMessageItem{}, newError(ErrorCodeValidation, "senderId is required", nil)
	}
	if params.SenderType != model.SenderTypeCustomer && params.SenderType != model.SenderTypeAgent {
		return model.ChatMessageItem{}, newError(ErrorCodeValidation, "senderType must be customer or agent", nil)
	}

	session, err := s.GetSession(ctx, params.SessionID)
	if err != nil {
		return model.ChatMessageItem{}, err
	}

	if session.Status != model.SessionStatusActive {
		return model.ChatMessageItem{}, newError(ErrorCodeInvalidState, "chat session is closed", nil)
	}

	seq, err := s.repo.NextMessageSeq(ctx)
	if err != nil {
		return model.ChatMessageItem{}, newError(ErrorCodeInternal, "failed to sequence message", err)
	}

	message := model.ChatMessageItem{
		MessageID:  uuid.NewString(),
		SessionID:  session.SessionID,
		SenderType: params.SenderType,
		SenderID:   params.SenderID,
		Content:    content,
		SentAt:     s.now().UTC().Format(time.RFC3339Nano),
		Seq:        seq,
	}
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return model.ChatMessageItem{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	return message, nil
}

// AssignAgent records the handling agent on the session. Assignment to a
// closed session is accepted and recorded; it has no further effect since
// messaging is already shut.
func (s *Service) AssignAgent(ctx context.Context, sessionID, agentID string) (model.ChatSessionItem, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return model.ChatSessionItem{}, newError(ErrorCodeValidation, "agentId is required", nil)
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return model.ChatSessionItem{}, err
	}

	if err := s.repo.UpdateSessionAgent(ctx, session.SessionID, agentID); err != nil {
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to assign agent", err)
	}

	session.AgentID = agentID
	return session, nil
}

// Close transitions the session to closed. Closing an already-closed
// session is a no-op that reports success; the original endedAt stands.
func (s *Service) Close(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return model.ChatSessionItem{}, err
	}

	if session.Status == model.SessionStatusClosed {
		return session, nil
	}

	endedAt := s.now().UTC().Format(time.RFC3339Nano)
	if err := s.repo.CloseSession(ctx, session.SessionID, endedAt); err != nil {
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to close chat session", err)
	}

	activity := model.ActivityItem{
		ActivityID:   uuid.NewString(),
		CustomerID:   session.CustomerID,
		ActivityType: model.ActivityTypeChat,
		ReferenceID:  session.SessionID,
		Description:  "Chat session ended",
		CreatedAt:    endedAt,
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to record activity", err)
	}

	session.Status = model.SessionStatusClosed
	session.EndedAt = endedAt
	return session, nil
}

// History returns the session transcript in chronological order, ties on
// sentAt broken by insertion sequence. Available for closed sessions too.
func (s *Service) History(ctx context.Context, sessionID string) ([]model.ChatMessageItem, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list messages", err)
	}
	return messages, nil
}

func (s *Service) ActiveSessions(ctx context.Context) ([]model.ChatSessionItem, error) {
	sessions, err := s.repo.ListActiveSessions(ctx)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list active sessions", err)
	}
	return sessions, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
