package dto

import "support-desk-backend/internal/model"

type CreateCustomerRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

type UpdateCustomerRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
}

type CustomerResponse struct {
	CustomerID string `json:"customerId"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Company    string `json:"company,omitempty"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

func NewCustomerResponse(customer model.CustomerItem) CustomerResponse {
	return CustomerResponse{
		CustomerID: customer.CustomerID,
		Email:      customer.Email,
		Name:       customer.Name,
		Phone:      customer.Phone,
		Company:    customer.Company,
		CreatedAt:  customer.CreatedAt,
		UpdatedAt:  customer.UpdatedAt,
	}
}

func NewCustomerResponses(customers []model.CustomerItem) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, NewCustomerResponse(c))
	}
	return out
}
