package ticket

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"support-desk-backend/internal/messaging"
	"support-desk-backend/internal/model"
)

type memoryRepository struct {
	mu        sync.Mutex
	customers map[string]model.CustomerItem
	sessions  map[string]model.ChatSessionItem
	messages  map[string][]model.ChatMessageItem
	links     map[string]model.ChatTicketLinkItem
	tickets   map[string]model.TicketItem
	comments  map[string][]model.TicketCommentItem
	activity  []model.ActivityItem
	counter   int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		customers: make(map[string]model.CustomerItem),
		sessions:  make(map[string]model.ChatSessionItem),
		messages:  make(map[string][]model.ChatMessageItem),
		links:     make(map[string]model.ChatTicketLinkItem),
		tickets:   make(map[string]model.TicketItem),
		comments:  make(map[string][]model.TicketCommentItem),
	}
}

func (m *memoryRepository) GetCustomer(ctx context.Context, customerID string) (model.CustomerItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[customerID]
	if !ok {
		return model.CustomerItem{}, ErrNotFound
	}
	return customer, nil
}

func (m *memoryRepository) GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ChatSessionItem{}, ErrNotFound
	}
	return session, nil
}

func (m *memoryRepository) CloseSession(ctx context.Context, sessionID, endedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.Status = model.SessionStatusClosed
	session.EndedAt = endedAt
	m.sessions[sessionID] = session
	return nil
}

func (m *memoryRepository) ListSessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ChatMessageItem, len(m.messages[sessionID]))
	copy(out, m.messages[sessionID])
	return out, nil
}

func (m *memoryRepository) ClaimSessionLink(ctx context.Context, link model.ChatTicketLinkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.links[link.SessionID]; exists {
		return ErrSessionAlreadyLinked
	}
	m.links[link.SessionID] = link
	return nil
}

func (m *memoryRepository) NextTicketNumber(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return m.counter, nil
}

func (m *memoryRepository) SaveTicket(ctx context.Context, ticket model.TicketItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[ticket.TicketID] = ticket
	return nil
}

func (m *memoryRepository) GetTicket(ctx context.Context, ticketID string) (model.TicketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[ticketID]
	if !ok {
		return model.TicketItem{}, ErrNotFound
	}
	return ticket, nil
}

func (m *memoryRepository) GetTicketByNumber(ctx context.Context, ticketNumber string) (model.TicketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ticket := range m.tickets {
		if ticket.TicketNumber == ticketNumber {
			return ticket, nil
		}
	}
	return model.TicketItem{}, ErrNotFound
}

func (m *memoryRepository) ListTickets(ctx context.Context) ([]model.TicketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tickets := make([]model.TicketItem, 0, len(m.tickets))
	for _, ticket := range m.tickets {
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (m *memoryRepository) ListCustomerTickets(ctx context.Context, customerID string) ([]model.TicketItem, error) {
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

func (m *memoryRepository) DeleteTicket(ctx context.Context, ticketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tickets, ticketID)
	return nil
}

func (m *memoryRepository) CreateComment(ctx context.Context, comment model.TicketCommentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[comment.TicketID] = append(m.comments[comment.TicketID], comment)
	return nil
}

func (m *memoryRepository) ListComments(ctx context.Context, ticketID string) ([]model.TicketCommentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TicketCommentItem, len(m.comments[ticketID]))
	copy(out, m.comments[ticketID])
	return out, nil
}

func (m *memoryRepository) CreateActivity(ctx context.Context, activity model.ActivityItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, activity)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == routingKey {
			n++
		}
	}
	return n
}

var _ messaging.Publisher = (*recordingPublisher)(nil)

func seedCustomer(repo *memoryRepository) model.CustomerItem {
	customer := model.CustomerItem{
		CustomerID: "cust-1",
		Email:      "a@x.com",
		Name:       "Alice",
	}
	repo.customers[customer.CustomerID] = customer
	return customer
}

func seedSession(repo *memoryRepository, customer model.CustomerItem, contents ...string) model.ChatSessionItem {
	session := model.ChatSessionItem{
		SessionID:  "sess-1",
		CustomerID: customer.CustomerID,
		Status:     model.SessionStatusActive,
		StartedAt:  "2024-03-01T11:00:00Z",
	}
	repo.sessions[session.SessionID] = session
	for i, c := range contents {
		repo.messages[session.SessionID] = append(repo.messages[session.SessionID], model.ChatMessageItem{
			MessageID:  c,
			SessionID:  session.SessionID,
			SenderType: model.SenderTypeCustomer,
			SenderID:   customer.CustomerID,
			Content:    c,
			SentAt:     "2024-03-01T11:00:00Z",
			Seq:        int64(i + 1),
		})
	}
	return session
}

func newTestService(repo *memoryRepository, bus messaging.Publisher) *Service {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewWithRepository(repo, bus, func() time.Time { return base })
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	repo := newMemoryRepository()
	bus := &recordingPublisher{}
	service := newTestService(repo, bus)
	customer := seedCustomer(repo)
	ctx := context.Background()

	first, err := service.Create(ctx, CreateParams{CustomerID: customer.CustomerID, Subject: "Billing"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := service.Create(ctx, CreateParams{CustomerID: customer.CustomerID, Subject: "Login"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if first.TicketNumber != "TK-00001" || second.TicketNumber != "TK-00002" {
		t.Fatalf("expected TK-00001 then TK-00002, got %s and %s", first.TicketNumber, second.TicketNumber)
	}
	if first.Status != model.TicketStatusOpen || first.Priority != model.TicketPriorityMedium {
		t.Fatalf("expected open/medium defaults, got %s/%s", first.Status, first.Priority)
	}
	if got := bus.count(messaging.RoutingKeyTicketCreated); got != 2 {
		t.Fatalf("expected 2 ticket.created events, got %d", got)
	}
}

func TestCreateUnknownCustomer(t *testing.T) {
	service := newTestService(newMemoryRepository(), &recordingPublisher{})

	_, err := service.Create(context.Background(), CreateParams{CustomerID: "nope", Subject: "x"})
	svcErr, ok := err.(*Error)
	if !ok || svcErr.Code != ErrorCodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestConvertSessionBuildsTranscriptAndClosesSession(t *testing.T) {
	repo := newMemoryRepository()
	bus := &recordingPublisher{}
	service := newTestService(repo, bus)
	customer := seedCustomer(repo)
	session := seedSession(repo, customer, "hello", "my order is missing")
	ctx := context.Background()

	ticket, err := service.ConvertSession(ctx, ConvertParams{SessionID: session.SessionID, AgentID: "agent-7"})
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	if ticket.ChatSessionID != session.SessionID {
		t.Fatalf("ticket should reference the session, got %q", ticket.ChatSessionID)
	}
	if ticket.Subject != "Chat with Alice" {
		t.Fatalf("unexpected default subject %q", ticket.Subject)
	}
	if ticket.TicketNumber != "TK-00001" {
		t.Fatalf("unexpected ticket number %q", ticket.TicketNumber)
	}

	lines := strings.Split(strings.TrimRight(ticket.Description, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 transcript lines, got %d: %q", len(lines), ticket.Description)
	}
	if !strings.HasSuffix(lines[0], "Customer: hello") || !strings.HasSuffix(lines[1], "Customer: my order is missing") {
		t.Fatalf("transcript out of order: %q", lines)
	}
	if !strings.HasPrefix(lines[0], "[2024-03-01T11:00:00Z]") {
		t.Fatalf("transcript line missing timestamp prefix: %q", lines[0])
	}

	stored := repo.sessions[session.SessionID]
	if stored.Status != model.SessionStatusClosed || stored.EndedAt == "" {
		t.Fatalf("conversion should force-close the session, got %+v", stored)
	}
	if got := bus.count(messaging.RoutingKeySessionConverted); got != 1 {
		t.Fatalf("expected 1 conversion event, got %d", got)
	}
}

func TestConvertSessionDefaultsAssigneeToSessionAgent(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, &recordingPublisher{})
	customer := seedCustomer(repo)
	session := seedSession(repo, customer, "hi")
	session.AgentID = "agent-3"
	repo.sessions[session.SessionID] = session
	ctx := context.Background()

	ticket, err := service.ConvertSession(ctx, ConvertParams{SessionID: session.SessionID})
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if ticket.AssignedTo != "agent-3" {
		t.Fatalf("expected the session agent as assignee, got %q", ticket.AssignedTo)
	}

	converted := 0
	for _, a := range repo.activity {
		if a.ActivityType == model.ActivityTypeSessionConverted {
			converted++
		}
	}
	if converted != 1 {
		t.Fatalf("expected 1 conversion activity, got %d", converted)
	}
}

func TestConvertSessionExactlyOnce(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, &recordingPublisher{})
	customer := seedCustomer(repo)
	session := seedSession(repo, customer, "hi")
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = service.ConvertSession(ctx, ConvertParams{SessionID: session.SessionID})
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		svcErr, ok := err.(*Error)
		if !ok || svcErr.Code != ErrorCodeConflict {
			t.Fatalf("unexpected error: %v", err)
		}
		conflicted++
	}
	if succeeded != 1 || conflicted != attempts-1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d conflicts", succeeded, conflicted)
	}
	if len(repo.tickets) != 1 {
		t.Fatalf("expected one ticket, got %d", len(repo.tickets))
	}
}

func TestConvertUnknownSession(t *testing.T) {
	service := newTestService(newMemoryRepository(), &recordingPublisher{})

	_, err := service.ConvertSession(context.Background(), ConvertParams{SessionID: "missing"})
	svcErr, ok := err.(*Error)
	if !ok || svcErr.Code != ErrorCodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestUpdateStatusStampsAndClearsResolvedAt(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, &recordingPublisher{})
	customer := seedCustomer(repo)
	ctx := context.Background()

	ticket, err := service.Create(ctx, CreateParams{CustomerID: customer.CustomerID, Subject: "Billing"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resolved := model.TicketStatusResolved
	updated, err := service.Update(ctx, ticket.TicketID, UpdateParams{Status: &resolved})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ResolvedAt == "" {
		t.Fatal("resolving should stamp resolvedAt")
	}

	open := model.TicketStatusOpen
	reopened, err := service.Update(ctx, ticket.TicketID, UpdateParams{Status: &open})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.ResolvedAt != "" {
		t.Fatal("reopening should clear resolvedAt")
	}

	statusChanges := 0
	for _, a := range repo.activity {
		if a.ActivityType == model.ActivityTypeTicketUpdated {
			statusChanges++
		}
	}
	if statusChanges != 2 {
		t.Fatalf("expected 2 status-change activities, got %d", statusChanges)
	}
}

func TestListFilters(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, &recordingPublisher{})
	customer := seedCustomer(repo)
	ctx := context.Background()

	if _, err := service.Create(ctx, CreateParams{CustomerID: customer.CustomerID, Subject: "a", Priority: model.TicketPriorityHigh}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	low, err := service.Create(ctx, CreateParams{CustomerID: customer.CustomerID, Subject: "b", Priority: model.TicketPriorityLow})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := service.List(ctx, ListFilter{Priority: model.TicketPriorityLow})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 1 || got[0].TicketID != low.TicketID {
		t.Fatalf("expected only the low-priority ticket, got %+v", got)
	}
}

func TestCommentsRoundTrip(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, &recordingPublisher{})
	customer := seedCustomer(repo)
	ctx := context.Background()

	ticket, err := service.Create(ctx, CreateParams{CustomerID: customer.CustomerID, Subject: "Billing"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := service.AddComment(ctx, ticket.TicketID, "agent-7", "looking into it", true); err != nil {
		t.Fatalf("add comment failed: %v", err)
	}

	comments, err := service.Comments(ctx, ticket.TicketID)
	if err != nil {
		t.Fatalf("comments failed: %v", err)
	}
	if len(comments) != 1 || comments[0].Comment != "looking into it" || !comments[0].IsInternal {
		t.Fatalf("unexpected comments %+v", comments)
	}
}
