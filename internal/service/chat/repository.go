package chat

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

var ErrNotFound = errors.New("chat repository: not found")

type Repository interface {
	GetCustomerByEmail(ctx context.Context, email string) (model.CustomerItem, error)
	CreateCustomer(ctx context.Context, customer model.CustomerItem) error
	CreateSession(ctx context.Context, session model.ChatSessionItem) error
	GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error)
	UpdateSessionAgent(ctx context.Context, sessionID, agentID string) error
	CloseSession(ctx context.Context, sessionID, endedAt string) error
	ListActiveSessions(ctx context.Context) ([]model.ChatSessionItem, error)
	NextMessageSeq(ctx context.Context) (int64, error)
	CreateMessage(ctx context.Context, message model.ChatMessageItem) error
	ListMessages(ctx context.Context, sessionID string) ([]model.ChatMessageItem, error)
	CreateActivity(ctx context.Context, activity model.ActivityItem) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetCustomerByEmail(ctx context.Context, email string) (model.CustomerItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.CustomersTable,
		aws.String("byEmail"),
		"email = :email",
		map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
		nil,
		nil,
	)
	if err != nil {
		return model.CustomerItem{}, err
	}
	if len(items) == 0 {
		return model.CustomerItem{}, ErrNotFound
	}

	var customer model.CustomerItem
	if err := attributevalue.UnmarshalMap(items[0], &customer); err != nil {
		return model.CustomerItem{}, err
	}
	return customer, nil
}

func (r *DynamoRepository) CreateCustomer(ctx context.Context, customer model.CustomerItem) error {
	return r.db.Client.PutItem(ctx, model.CustomersTable, customer)
}

func (r *DynamoRepository) CreateSession(ctx context.Context, session model.ChatSessionItem) error {
	return r.db.Client.PutItem(ctx, model.ChatSessionsTable, session)
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

func (r *DynamoRepository) UpdateSessionAgent(ctx context.Context, sessionID, agentID string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.ChatSessionsTable,
		map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
		"SET #agentId = :agentId",
		map[string]types.AttributeValue{
			":agentId": &types.AttributeValueMemberS{Value: agentID},
		},
		map[string]string{
			"#agentId": "agentId",
		},
		nil,
	)
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

func (r *DynamoRepository) ListActiveSessions(ctx context.Context) ([]model.ChatSessionItem, error) {
	items, err := r.db.Client.ScanItems(
		ctx,
		model.ChatSessionsTable,
		"#status = :active",
		map[string]types.AttributeValue{
			":active": &types.AttributeValueMemberS{Value: string(model.SessionStatusActive)},
		},
		map[string]string{
			"#status": "status",
		},
	)
	if err != nil {
		return nil, err
	}

	sessions := make([]model.ChatSessionItem, 0, len(items))
	for _, item := range items {
		var session model.ChatSessionItem
		if err := attributevalue.UnmarshalMap(item, &session); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt > sessions[j].StartedAt
	})

	return sessions, nil
}

func (r *DynamoRepository) NextMessageSeq(ctx context.Context) (int64, error) {
	return r.db.Client.IncrementCounter(
		ctx,
		model.CountersTable,
		map[string]types.AttributeValue{
			"counterName": &types.AttributeValueMemberS{Value: "messageSeq"},
		},
		"counterValue",
	)
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.ChatMessageItem) error {
	return r.db.Client.PutItem(ctx, model.ChatMessagesTable, message)
}

func (r *DynamoRepository) ListMessages(ctx context.Context, sessionID string) ([]model.ChatMessageItem, error) {
	scanForward := true
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ChatMessagesTable,
		aws.String("bySession"),
		"sessionId = :sessionId",
		map[string]types.AttributeValue{
			":sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
		nil,
		&scanForward,
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

func (r *DynamoRepository) CreateActivity(ctx context.Context, activity model.ActivityItem) error {
	return r.db.Client.PutItem(ctx, model.ActivitiesTable, activity)
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
