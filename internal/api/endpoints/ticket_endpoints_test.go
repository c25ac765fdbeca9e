package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"support-desk-backend/internal/api"
	internaljwt "support-desk-backend/internal/jwt"
	"support-desk-backend/internal/dto"
	"support-desk-backend/internal/model"
	"support-desk-backend/internal/queue"
	ticketservice "support-desk-backend/internal/service/ticket"
)

var (
	serverOnce sync.Once
	testServer *api.APIServer
)

// testAPIServer is shared between tests: the Prometheus collectors it
// registers are keyed by listen address and must only register once.
func testAPIServer() *api.APIServer {
	serverOnce.Do(func() {
		queueManager := queue.NewRequestQueueManager(10, 1)
		testServer = api.NewAPIServer(":0", queueManager, nil, nil, nil, nil)
	})
	return testServer
}

type memoryTicketRepository struct {
	mu        sync.Mutex
	customers map[string]model.CustomerItem
	sessions  map[string]model.ChatSessionItem
	messages  map[string][]model.ChatMessageItem
	links     map[string]model.ChatTicketLinkItem
	tickets   map[string]model.TicketItem
	comments  map[string][]model.TicketCommentItem
	counter   int64
}

func newMemoryTicketRepository() *memoryTicketRepository {
	return &memoryTicketRepository{
		customers: make(map[string]model.CustomerItem),
		sessions:  make(map[string]model.ChatSessionItem),
		messages:  make(map[string][]model.ChatMessageItem),
		links:     make(map[string]model.ChatTicketLinkItem),
		tickets:   make(map[string]model.TicketItem),
		comments:  make(map[string][]model.TicketCommentItem),
	}
}

func (m *memoryTicketRepository) GetCustomer(ctx context.Context, customerID string) (model.CustomerItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[customerID]
	if !ok {
		return model.CustomerItem{}, ticketservice.ErrNotFound
	}
	return customer, nil
}

func (m *memoryTicketRepository) GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ChatSessionItem{}, ticketservice.ErrNotFound
	}
	return session, nil
}

func (m *memoryTicketRepository) CloseSession(ctx context.Context, sessionID, endedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return ticketservice.ErrNotFound
	}
	session.Status = model.SessionStatusClosed
	session.EndedAt = endedAt
	m.sessions[sessionID] = session
	return nil
}

func (m *memoryTicketRepository) ListSessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ChatMessageItem, len(m.messages[sessionID]))
	copy(out, m.messages[sessionID])
	return out, nil
}

func (m *memoryTicketRepository) ClaimSessionLink(ctx context.Context, link model.ChatTicketLinkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.links[link.SessionID]; exists {
		return ticketservice.ErrSessionAlreadyLinked
	}
	m.links[link.SessionID] = link
	return nil
}

func (m *memoryTicketRepository) NextTicketNumber(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return m.counter, nil
}

func (m *memoryTicketRepository) SaveTicket(ctx context.Context, ticket model.TicketItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[ticket.TicketID] = ticket
	return nil
}

func (m *memoryTicketRepository) GetTicket(ctx context.Context, ticketID string) (model.TicketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[ticketID]
	if !ok {
		return model.TicketItem{}, ticketservice.ErrNotFound
	}
	return ticket, nil
}

func (m *memoryTicketRepository) GetTicketByNumber(ctx context.Context, ticketNumber string) (model.TicketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ticket := range m.tickets {
		if ticket.TicketNumber == ticketNumber {
			return ticket, nil
		}
	}
	return model.TicketItem{}, ticketservice.ErrNotFound
}

func (m *memoryTicketRepository) ListTickets(ctx context.Context) ([]model.TicketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tickets := make([]model.TicketItem, 0, len(m.tickets))
	for _, ticket := range m.tickets {
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (m *memoryTicketRepository) ListCustomerTickets(ctx context.Context, customerID string) ([]model.TicketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tickets := make([]model.TicketItem, 0)
	for _, ticket := range m.tickets {
		if ticket.CustomerID == customerID {
			tickets = append(tickets, ticket)
		}
	}
	return tickets, nil
}

func (m *memoryTicketRepository) DeleteTicket(ctx context.Context, ticketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tickets, ticketID)
	return nil
}

func (m *memoryTicketRepository) CreateComment(ctx context.Context, comment model.TicketCommentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[comment.TicketID] = append(m.comments[comment.TicketID], comment)
	return nil
}

func (m *memoryTicketRepository) ListComments(ctx context.Context, ticketID string) ([]model.TicketCommentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TicketCommentItem, len(m.comments[ticketID]))
	copy(out, m.comments[ticketID])
	return out, nil
}

func (m *memoryTicketRepository) CreateActivity(ctx context.Context, activity model.ActivityItem) error {
	return nil
}

func setupTicketTestHandler(t *testing.T) (http.Handler, *memoryTicketRepository) {
	t.Helper()

	repo := newMemoryTicketRepository()
	service := ticketservice.NewWithRepository(repo, nil, func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	server := testAPIServer()

	ticketEndpoints := NewTicketEndpoints(service, nil, "/api")
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tickets", server.MakeHTTPHandleFunc(ticketEndpoints.Tickets))
	mux.HandleFunc("/api/tickets/", server.MakeHTTPHandleFunc(ticketEndpoints.TicketByID))
	mux.HandleFunc("/api/tickets/number/", server.MakeHTTPHandleFunc(ticketEndpoints.TicketByNumber))

	return mux, repo
}

func TestCreateTicketEndpoint(t *testing.T) {
	handler, repo := setupTicketTestHandler(t)
	repo.customers["cust-1"] = model.CustomerItem{CustomerID: "cust-1", Email: "a@x.com"}

	body, _ := json.Marshal(dto.CreateTicketRequest{
		CustomerID: "cust-1",
		Subject:    "Billing question",
		Priority:   "high",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.TicketResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TicketNumber != "TK-00001" || resp.Status != "open" || resp.Priority != "high" {
		t.Fatalf("unexpected ticket %+v", resp)
	}
}

func TestCreateTicketUnknownCustomerReturns404(t *testing.T) {
	handler, _ := setupTicketTestHandler(t)

	body, _ := json.Marshal(dto.CreateTicketRequest{CustomerID: "ghost", Subject: "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetTicketByNumberEndpoint(t *testing.T) {
	handler, repo := setupTicketTestHandler(t)
	repo.tickets["tick-1"] = model.TicketItem{
		TicketID:     "tick-1",
		TicketNumber: "TK-00042",
		CustomerID:   "cust-1",
		Subject:      "Billing",
		Status:       model.TicketStatusOpen,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tickets/number/TK-00042", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.TicketResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TicketID != "tick-1" {
		t.Fatalf("unexpected ticket %+v", resp)
	}
}

func TestUpdateTicketStatusEndpoint(t *testing.T) {
	handler, repo := setupTicketTestHandler(t)
	repo.customers["cust-1"] = model.CustomerItem{CustomerID: "cust-1"}
	repo.tickets["tick-1"] = model.TicketItem{
		TicketID:     "tick-1",
		TicketNumber: "TK-00001",
		CustomerID:   "cust-1",
		Subject:      "Billing",
		Status:       model.TicketStatusOpen,
		Priority:     model.TicketPriorityMedium,
	}

	status := "resolved"
	body, _ := json.Marshal(dto.UpdateTicketRequest{Status: &status})
	req := httptest.NewRequest(http.MethodPatch, "/api/tickets/tick-1", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.TicketResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "resolved" || resp.ResolvedAt == "" {
		t.Fatalf("expected resolved with timestamp, got %+v", resp)
	}
}

func TestAddCommentRequiresAgentToken(t *testing.T) {
	handler, repo := setupTicketTestHandler(t)
	repo.tickets["tick-1"] = model.TicketItem{TicketID: "tick-1", CustomerID: "cust-1"}

	body, _ := json.Marshal(dto.AddCommentRequest{Comment: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/tick-1/comments", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	internaljwt.SetRoleSecret(internaljwt.RoleAgent, "jwt-test-secret")
	token, err := internaljwt.CreateToken(internaljwt.AgentIdentity{
		AgentID: "agent-7",
		Email:   "agent@desk.io",
		Name:    "Agent",
	}, internaljwt.RoleAgent, time.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/tickets/tick-1/comments", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.TicketCommentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != "agent-7" {
		t.Fatalf("comment should carry the agent id, got %+v", resp)
	}
}
