package timeline

import (
	"context"
	"errors"
	"strings"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("timeline repository: not found")

type Repository interface {
	GetCustomer(ctx context.Context, customerID string) (model.CustomerItem, error)
	ListCustomerActivities(ctx context.Context, customerID string) ([]model.ActivityItem, error)
	ListCustomerSessions(ctx context.Context, customerID string) ([]model.ChatSessionItem, error)
	ListCustomerTickets(ctx context.Context, customerID string) ([]model.TicketItem, error)
	ListAllActivities(ctx context.Context) ([]model.ActivityItem, error)
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
		if strings.Contains(err.Error(), "item not found") {
			return model.CustomerItem{}, ErrNotFound
		}
		return model.CustomerItem{}, err
	}
	return customer, nil
}

func (r *DynamoRepository) ListCustomerActivities(ctx context.Context, customerID string) ([]model.ActivityItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.ActivitiesTable,
		aws.String("byCustomer"),
		"customerId = :customerId",
		map[string]types.AttributeValue{
			":customerId": &types.AttributeValueMemberS{Value: customerID},
		},
	)
	if err != nil {
		return nil, err
	}

	activities := make([]model.ActivityItem, 0, len(items))
	for _, item := range items {
		var activity model.ActivityItem
		if err := attributevalue.UnmarshalMap(item, &activity); err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

func (r *DynamoRepository) ListCustomerSessions(ctx context.Context, customerID string) ([]model.ChatSessionItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.ChatSessionsTable,
		aws.String("byCustomer"),
		"customerId = :customerId",
		map[string]types.AttributeValue{
			":customerId": &types.AttributeValueMemberS{Value: customerID},
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
	return sessions, nil
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

func (r *DynamoRepository) ListAllActivities(ctx context.Context) ([]model.ActivityItem, error) {
	items, err := r.db.Client.ScanItems(ctx, model.ActivitiesTable, "", nil, nil)
	if err != nil {
		return nil, err
	}

	activities := make([]model.ActivityItem, 0, len(items))
	for _, item := range items {
		var activity model.ActivityItem
		if err := attributevalue.UnmarshalMap(item, &activity); err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, nil
}
