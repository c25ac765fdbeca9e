package customer

import (
	"context"
	"errors"
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
	Email   string
	Name    string
	Phone   string
	Company string
}

// UpdateParams carries a partial update; nil fields are left untouched.
// Email is immutable once set, it identifies the customer to the chat
// widget.
type UpdateParams struct {
	Name    *string
	Phone   *string
	Company *string
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

func (s *Service) Create(ctx context.Context, params CreateParams) (model.CustomerItem, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return model.CustomerItem{}, newError(ErrorCodeValidation, "email is required", nil)
	}
	if !strings.Contains(email, "@") {
		return model.CustomerItem{}, newError(ErrorCodeValidation, "email is invalid", nil)
	}

	if _, err := s.repo.GetCustomerByEmail(ctx, email); err == nil {
		return model.CustomerItem{}, newError(ErrorCodeConflict, "customer with this email already exists", nil)
	} else if !errors.Is(err, ErrNotFound) {
		return model.CustomerItem{}, newError(ErrorCodeInternal, "failed to look up customer", err)
	}

	nowStr := s.now().UTC().Format(time.RFC3339Nano)
	customer := model.CustomerItem{
		CustomerID: uuid.NewString(),
		Email:      email,
		Name:       strings.TrimSpace(params.Name),
		Phone:      strings.TrimSpace(params.Phone),
		Company:    strings.TrimSpace(params.Company),
		CreatedAt:  nowStr,
		UpdatedAt:  nowStr,
	}
	if err := s.repo.SaveCustomer(ctx, customer); err != nil {
		return model.CustomerItem{}, newError(ErrorCodeInternal, "failed to store customer", err)
	}

	if err := s.bus.Publish(messaging.RoutingKeyCustomerRegistered, customer); err != nil {
		log.Printf("publish %s failed: %v", messaging.RoutingKeyCustomerRegistered, err)
	}

	return customer, nil
}

func (s *Service) Get(ctx context.Context, customerID string) (model.CustomerItem, error) {
	if customerID == "" {
		return model.CustomerItem{}, newError(ErrorCodeValidation, "customerId is required", nil)
	}

	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.CustomerItem{}, newError(ErrorCodeNotFound, "customer not found", err)
		}
		return model.CustomerItem{}, newError(ErrorCodeInternal, "failed to fetch customer", err)
	}
	return customer, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (model.CustomerItem, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return model.CustomerItem{}, newError(ErrorCodeValidation, "email is required", nil)
	}

	customer, err := s.repo.GetCustomerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.CustomerItem{}, newError(ErrorCodeNotFound, "customer not found", err)
		}
		return model.CustomerItem{}, newError(ErrorCodeInternal, "failed to fetch customer", err)
	}
	return customer, nil
}

func (s *Service) List(ctx context.Context) ([]model.CustomerItem, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list customers", err)
	}

	sort.Slice(customers, func(i, j int) bool {
		return customers[i].CreatedAt > customers[j].CreatedAt
	})
	return customers, nil
}

func (s *Service) Update(ctx context.Context, customerID string, params UpdateParams) (model.CustomerItem, error) {
	customer, err := s.Get(ctx, customerID)
	if err != nil {
		return model.CustomerItem{}, err
	}

	if params.Name != nil {
		customer.Name = strings.TrimSpace(*params.Name)
	}
	if params.Phone != nil {
		customer.Phone = strings.TrimSpace(*params.Phone)
	}
	if params.Company != nil {
		customer.Company = strings.TrimSpace(*params.Company)
	}

	customer.UpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	if err := s.repo.SaveCustomer(ctx, customer); err != nil {
		return model.CustomerItem{}, newError(ErrorCodeInternal, "failed to store customer", err)
	}
	return customer, nil
}

// Delete removes a customer record. A customer with any chat or ticket
// history is kept, the history references would dangle otherwise.
func (s *Service) Delete(ctx context.Context, customerID string) error {
	if _, err := s.Get(ctx, customerID); err != nil {
		return err
	}

	sessions, err := s.repo.CountCustomerSessions(ctx, customerID)
	if err != nil {
		return newError(ErrorCodeInternal, "failed to count chat sessions", err)
	}
	tickets, err := s.repo.CountCustomerTickets(ctx, customerID)
	if err != nil {
		return newError(ErrorCodeInternal, "failed to count tickets", err)
	}
	if sessions > 0 || tickets > 0 {
		return newError(ErrorCodeConflict, "customer has chat or ticket history and cannot be deleted", nil)
	}

	if err := s.repo.DeleteCustomer(ctx, customerID); err != nil {
		return newError(ErrorCodeInternal, "failed to delete customer", err)
	}
	return nil
}
