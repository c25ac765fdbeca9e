package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/dto"
	customerservice "support-desk-backend/internal/service/customer"
	ticketservice "support-desk-backend/internal/service/ticket"
	timelineservice "support-desk-backend/internal/service/timeline"
)

type CustomerEndpoints interface {
	Customers(http.ResponseWriter, *http.Request) error
	CustomerByID(http.ResponseWriter, *http.Request) error
	RecentTimeline(http.ResponseWriter, *http.Request) error
}

type CustomerPaths struct {
	CustomersPath  string
	CustomerPrefix string
	TimelinePath   string
}

type customerEndpoints struct {
	customers *customerservice.Service
	tickets   *ticketservice.Service
	timeline  *timelineservice.Service
	paths     CustomerPaths
}

func NewCustomerEndpoints(customers *customerservice.Service, tickets *ticketservice.Service, timeline *timelineservice.Service, prefix string) CustomerEndpoints {
	base := strings.TrimRight(prefix, "/")
	return &customerEndpoints{
		customers: customers,
		tickets:   tickets,
		timeline:  timeline,
		paths: CustomerPaths{
			CustomersPath:  base + "/customers",
			CustomerPrefix: base + "/customers/",
			TimelinePath:   base + "/timeline/recent",
		},
	}
}

func (h *customerEndpoints) Customers(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleListCustomers,
		http.MethodPost: h.handleCreateCustomer,
	})
}

func (h *customerEndpoints) CustomerByID(w http.ResponseWriter, r *http.Request) error {
	remainder, err := pathAfter(r.URL.Path, h.paths.CustomerPrefix)
	if err != nil {
		return err
	}

	segments := strings.Split(remainder, "/")
	customerID := segments[0]
	if customerID == "" {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Customer not found",
			ErrorLog:   fmt.Errorf("customer id missing in path"),
		}
	}

	if len(segments) == 1 {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:    h.handleGetCustomer(customerID),
			http.MethodPatch:  h.handleUpdateCustomer(customerID),
			http.MethodDelete: h.handleDeleteCustomer(customerID),
		})
	}

	switch segments[1] {
	case "timeline":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleCustomerTimeline(customerID),
		})
	case "stats":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleCustomerStats(customerID),
		})
	case "tickets":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleCustomerTickets(customerID),
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("unknown customer sub-resource %s", segments[1]),
		}
	}
}

func (h *customerEndpoints) RecentTimeline(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			entries, err := h.timeline.RecentTimeline(r.Context(), limit)
			if err != nil {
				return mapTimelineError(err)
			}
			return api.WriteJSON(w, http.StatusOK, entries)
		},
	})
}

func (h *customerEndpoints) handleListCustomers(w http.ResponseWriter, r *http.Request) error {
	if email := strings.TrimSpace(r.URL.Query().Get("email")); email != "" {
		customer, err := h.customers.FindByEmail(r.Context(), email)
		if err != nil {
			return mapCustomerError(err)
		}
		return api.WriteJSON(w, http.StatusOK, []dto.CustomerResponse{dto.NewCustomerResponse(customer)})
	}

	customers, err := h.customers.List(r.Context())
	if err != nil {
		return mapCustomerError(err)
	}
	return api.WriteJSON(w, http.StatusOK, dto.NewCustomerResponses(customers))
}

func (h *customerEndpoints) handleCreateCustomer(w http.ResponseWriter, r *http.Request) error {
	var req dto.CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode create customer request: %w", err),
		}
	}

	customer, err := h.customers.Create(r.Context(), customerservice.CreateParams{
		Email:   req.Email,
		Name:    req.Name,
		Phone:   req.Phone,
		Company: req.Company,
	})
	if err != nil {
		return mapCustomerError(err)
	}
	return api.WriteJSON(w, http.StatusCreated, dto.NewCustomerResponse(customer))
}

func (h *customerEndpoints) handleGetCustomer(customerID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		customer, err := h.customers.Get(r.Context(), customerID)
		if err != nil {
			return mapCustomerError(err)
		}
		return api.WriteJSON(w, http.StatusOK, dto.NewCustomerResponse(customer))
	}
}

func (h *customerEndpoints) handleUpdateCustomer(customerID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req dto.UpdateCustomerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid request payload",
				ErrorLog:   fmt.Errorf("decode update customer request: %w", err),
			}
		}

		customer, err := h.customers.Update(r.Context(), customerID, customerservice.UpdateParams{
			Name:    req.Name,
			Phone:   req.Phone,
			Company: req.Company,
		})
		if err != nil {
			return mapCustomerError(err)
		}
		return api.WriteJSON(w, http.StatusOK, dto.NewCustomerResponse(customer))
	}
}

func (h *customerEndpoints) handleDeleteCustomer(customerID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := h.customers.Delete(r.Context(), customerID); err != nil {
			return mapCustomerError(err)
		}
		return api.WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Customer deleted"})
	}
}

func (h *customerEndpoints) handleCustomerTimeline(customerID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		entries, err := h.timeline.CustomerTimeline(r.Context(), customerID)
		if err != nil {
			return mapTimelineError(err)
		}
		return api.WriteJSON(w, http.StatusOK, entries)
	}
}

func (h *customerEndpoints) handleCustomerStats(customerID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		stats, err := h.timeline.CustomerStats(r.Context(), customerID)
		if err != nil {
			return mapTimelineError(err)
		}
		return api.WriteJSON(w, http.StatusOK, stats)
	}
}

func (h *customerEndpoints) handleCustomerTickets(customerID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		tickets, err := h.tickets.CustomerTickets(r.Context(), customerID)
		if err != nil {
			return mapTicketError(err)
		}
		return api.WriteJSON(w, http.StatusOK, dto.NewTicketResponses(tickets))
	}
}

func mapCustomerError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*customerservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("customer service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case customerservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case customerservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	case customerservice.ErrorCodeConflict:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}

func mapTimelineError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*timelineservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("timeline service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case timelineservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case timelineservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}
