package customer

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

var ErrNotFound = errors.New("customer repository: not found")

type Repository interface {
	GetCustomer(ctx context.Context, customerID string) (model.CustomerItem, error)
	GetCustomerByEmail(ctx context.Context, email string) (model.CustomerItem, error)
	SaveCustomer(ctx context.Context, customer model.CustomerItem) error
	ListCustomers(ctx context.Context) ([]model.CustomerItem, error)
	DeleteCustomer(ctx context.Context, customerID string) error
	CountCustomerSessions(ctx context.Context, customerID string) (int, error)
	CountCustomerTickets(ctx context.Context, customerID string) (int, error)
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

func (r *DynamoRepository) SaveCustomer(ctx context.Context, customer model.CustomerItem) error {
	return r.db.Client.PutItem(ctx, model.CustomersTable, customer)
}

func (r *DynamoRepository) ListCustomers(ctx context.Context) ([]model.CustomerItem, error) {
	items, err := r.db.Client.ScanItems(ctx, model.CustomersTable, "", nil, nil)
	if err != nil {
		return nil, err
	}

	customers := make([]model.CustomerItem, 0, len(items))
	for _, item := range items {
		var customer model.CustomerItem
		if err := attributevalue.UnmarshalMap(item, &customer); err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

func (r *DynamoRepository) DeleteCustomer(ctx context.Context, customerID string) error {
	return r.db.Client.DeleteItem(
		ctx,
		model.CustomersTable,
		map[string]types.AttributeValue{
			"customerId": &types.AttributeValueMemberS{Value: customerID},
		},
	)
}

func (r *DynamoRepository) CountCustomerSessions(ctx context.Context, customerID string) (int, error) {
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
		return 0, err
	}
	return len(items), nil
}

func (r *DynamoRepository) CountCustomerTickets(ctx context.Context, customerID string) (int, error) {
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
		return 0, err
	}
	return len(items), nil
}
