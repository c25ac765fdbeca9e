package ticket

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound = errors.New("ticket repository: not found")

	// ErrSessionAlreadyLinked reports that another conversion already
	// claimed the chat session.
	ErrSessionAlreadyLinked = errors.New("ticket repository: session already linked to a ticket")
)

type Repository interface {
	GetCustomer(ctx context.Context, customerID string) (model.CustomerItem, error)
	GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error)
	CloseSession(ctx context.Context, sessionID, endedAt string) error
	ListSessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessageItem, error)
	ClaimSessionLink(ctx context.Context, link model.ChatTicketLinkItem) error
	NextTicketNumber(ctx context.Context) (int64, error)
	SaveTicket(ctx context.Context, ticket model.TicketItem) error
	GetTicket(ctx context.Context, ticketID string) (model.TicketItem, error)
	GetTicketByNumber(ctx context.Context, ticketNumber string) (model.TicketItem, error)
	ListTickets(ctx context.Context) ([]model.TicketItem, error)
	ListCustomerTickets(ctx context.Context, customerID string) ([]model.TicketItem, error)
	DeleteTicket(ctx context.Context, ticketID string) error
	CreateComment(ctx context.Context, comment model.TicketCommentItem) error
	ListComments(ctx context.Context, ticketID string) ([]model.TicketCommentItem, error)
	CreateActivity(ctx context.Context, activity model.ActivityItem) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetCustomer(ctx context.Context, customerID string) (model.CustomerItem, error) {
	var customer model.CustomerItem
	err := r.db.Client.GetItem(
		ctx,
		model.CustomersTable,
		map[string]types.AttributeValue{
			"customerId": &types.AttributeValueMemberS{Value: customerID},
		},
		&customer,
	)
	if err != nil {
		if isNotFound(err) {
			return model.CustomerItem{}, ErrNotFound
		}
		return model.CustomerItem{}, err
	}
	return customer, nil
}

func (r *DynamoRepository) GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	var session model.ChatSessionItem
	err := r.db.Client.GetItem(
		ctx,
		model.ChatSessionsTable,
		map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
		&session,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ChatSessionItem{}, ErrNotFound
		}
		return model.ChatSessionItem{}, err
	}
	return session, nil
}

func (r *DynamoRepository) CloseSession(ctx context.Context, sessionID, endedAt string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.ChatSessionsTable,
		map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
		"SET #status = :closed, #endedAt = :endedAt",
		map[string]types.AttributeValue{
			":closed":  &types.AttributeValueMemberS{Value: string(model.SessionStatusClosed)},
			":endedAt": &types.AttributeValueMemberS{Value: endedAt},
		},
		map[string]string{
			"#status":  "status",
			"#endedAt": "endedAt",
		},
		nil,
	)
}

func (r *DynamoRepository) ListSessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessageItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.ChatMessagesTable,
		aws.String("bySession"),
		"sessionId = :sessionId",
		map[string]types.AttributeValue{
			":sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
	)
	if err != nil {
		return nil, err
	}

	messages := make([]model.ChatMessageItem, 0, len(items))
	for _, item := range items {
		var message model.ChatMessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		ti := parseTime(messages[i].SentAt)
		tj := parseTime(messages[j].SentAt)
		if ti.Equal(tj) {
			return messages[i].Seq < messages[j].Seq
		}
		return ti.Before(tj)
	})

	return messages, nil
}

func (r *DynamoRepository) ClaimSessionLink(ctx context.Context, link model.ChatTicketLinkItem) error {
	err := r.db.Client.PutItemIfNotExists(ctx, model.ChatTicketLinksTable, link, "sessionId")
	if errors.Is(err, database.ErrConditionalCheckFailed) {
		return ErrSessionAlreadyLinked
	}
	return err
}

func (r *DynamoRepository) NextTicketNumber(ctx context.Context) (int64, error) {
	return r.db.Client.IncrementCounter(
		ctx,
		model.CountersTable,
		map[string]types.AttributeValue{
			"counterName": &types.AttributeValueMemberS{Value: model.TicketNumberCounter},
		},
		"counterValue",
	)
}

func (r *DynamoRepository) SaveTicket(ctx context.Context, ticket model.TicketItem) error {
	return r.db.Client.PutItem(ctx, model.TicketsTable, ticket)
}

func (r *DynamoRepository) GetTicket(ctx context.Context, ticketID string) (model.TicketItem, error) {
	var ticket model.TicketItem
	err := r.db.Client.GetItem(
		ctx,
		model.TicketsTable,
		map[string]types.AttributeValue{
			"ticketId": &types.AttributeValueMemberS{Value: ticketID},
		},
		&ticket,
	)
	if err != nil {
		if isNotFound(err) {
			return model.TicketItem{}, ErrNotFound
		}
		return model.TicketItem{}, err
	}
	return ticket, nil
}

func (r *DynamoRepository) GetTicketByNumber(ctx context.Context, ticketNumber string) (model.TicketItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.TicketsTable,
		aws.String("byNumber"),
		"ticketNumber = :ticketNumber",
		map[string]types.AttributeValue{
			":ticketNumber": &types.AttributeValueMemberS{Value: ticketNumber},
		},
		nil,
		nil,
	)
	if err != nil {
		return model.TicketItem{}, err
	}
	if len(items) == 0 {
		return model.TicketItem{}, ErrNotFound
	}

	var ticket model.TicketItem
	if err := attributevalue.UnmarshalMap(items[0], &ticket); err != nil {
		return model.TicketItem{}, err
	}
	return ticket, nil
}

func (r *DynamoRepository) ListTickets(ctx context.Context) ([]model.TicketItem, error) {
	items, err := r.db.Client.ScanItems(ctx, model.TicketsTable, "", nil, nil)
	if err != nil {
		return nil, err
	}
	return unmarshalTickets(items)
}

func (r *DynamoRepository) ListCustomerTickets(ctx context.Context, customerID string) ([]model.TicketItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.TicketsTable,
		aws.String("byCustomer"),
		"customerId = :customerId",
		map[string]types.AttributeValue{
			":customerId": &types.AttributeValueMemberS{Value: customerID},
		},
	)
	if err != nil {
		return nil, err
	}
	return unmarshalTickets(items)
}

func (r *DynamoRepository) DeleteTicket(ctx context.Context, ticketID string) error {
	return r.db.Client.DeleteItem(
		ctx,
		model.TicketsTable,
		map[string]types.AttributeValue{
			"ticketId": &types.AttributeValueMemberS{Value: ticketID},
		},
	)
}

func (r *DynamoRepository) CreateComment(ctx context.Context, comment model.TicketCommentItem) error {
	return r.db.Client.PutItem(ctx, model.TicketCommentsTable, comment)
}

func (r *DynamoRepository) ListComments(ctx context.Context, ticketID string) ([]model.TicketCommentItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.TicketCommentsTable,
		aws.String("byTicket"),
		"ticketId = :ticketId",
		map[string]types.AttributeValue{
			":ticketId": &types.AttributeValueMemberS{Value: ticketID},
		},
	)
	if err != nil {
		return nil, err
	}

	comments := make([]model.TicketCommentItem, 0, len(items))
	for _, item := range items {
		var comment model.TicketCommentItem
		if err := attributevalue.UnmarshalMap(item, &comment); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}

	sort.Slice(comments, func(i, j int) bool {
		return parseTime(comments[i].CreatedAt).Before(parseTime(comments[j].CreatedAt))
	})

	return comments, nil
}

func (r *DynamoRepository) CreateActivity(ctx context.Context, activity model.ActivityItem) error {
	return r.db.Client.PutItem(ctx, model.ActivitiesTable, activity)
}

func unmarshalTickets(items []map[string]types.AttributeValue) ([]model.TicketItem, error) {
	tickets := make([]model.TicketItem, 0, len(items))
	for _, item := range items {
		var ticket model.TicketItem
		if err := attributevalue.UnmarshalMap(item, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
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
