package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/dto"
	"support-desk-backend/internal/jwt"
	"support-desk-backend/internal/model"
	ticketservice "support-desk-backend/internal/service/ticket"
	"support-desk-backend/internal/websocket"
)

type TicketEndpoints interface {
	Tickets(http.ResponseWriter, *http.Request) error
	TicketByID(http.ResponseWriter, *http.Request) error
	TicketByNumber(http.ResponseWriter, *http.Request) error
}

type TicketPaths struct {
	TicketsPath  string
	TicketPrefix string
	NumberPrefix string
}

type ticketEndpoints struct {
	service  *ticketservice.Service
	notifier *websocket.Notifier
	paths    TicketPaths
}

func NewTicketEndpoints(service *ticketservice.Service, notifier *websocket.Notifier, prefix string) TicketEndpoints {
	base := strings.TrimRight(prefix, "/")
	return &ticketEndpoints{
		service:  service,
		notifier: notifier,
		paths: TicketPaths{
			TicketsPath:  base + "/tickets",
			TicketPrefix: base + "/tickets/",
			NumberPrefix: base + "/tickets/number/",
		},
	}
}

func (h *ticketEndpoints) Tickets(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleListTickets,
		http.MethodPost: h.handleCreateTicket,
	})
}

func (h *ticketEndpoints) TicketByID(w http.ResponseWriter, r *http.Request) error {
	remainder, err := pathAfter(r.URL.Path, h.paths.TicketPrefix)
	if err != nil {
		return err
	}

	segments := strings.Split(remainder, "/")
	ticketID := segments[0]
	if ticketID == "" {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Ticket not found",
			ErrorLog:   fmt.Errorf("ticket id missing in path"),
		}
	}

	if len(segments) == 1 {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:    h.handleGetTicket(ticketID),
			http.MethodPatch:  h.handleUpdateTicket(ticketID),
			http.MethodDelete: h.handleDeleteTicket(ticketID),
		})
	}

	if segments[1] == "comments" {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:  h.handleListComments(ticketID),
			http.MethodPost: h.handleAddComment(ticketID),
		})
	}

	return &HTTPError{
		StatusCode: http.StatusNotFound,
		Message:    "Not found",
		ErrorLog:   fmt.Errorf("unknown ticket sub-resource %s", segments[1]),
	}
}

func (h *ticketEndpoints) TicketByNumber(w http.ResponseWriter, r *http.Request) error {
	number, err := pathAfter(r.URL.Path, h.paths.NumberPrefix)
	if err != nil {
		return err
	}

	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			ticket, err := h.service.GetByNumber(r.Context(), number)
			if err != nil {
				return mapTicketError(err)
			}
			return api.WriteJSON(w, http.StatusOK, dto.NewTicketResponse(ticket))
		},
	})
}

func (h *ticketEndpoints) handleListTickets(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	tickets, err := h.service.List(r.Context(), ticketservice.ListFilter{
		Status:     model.TicketStatus(query.Get("status")),
		Priority:   model.TicketPriority(query.Get("priority")),
		AssignedTo: query.Get("assignedTo"),
	})
	if err != nil {
		return mapTicketError(err)
	}
	return api.WriteJSON(w, http.StatusOK, dto.NewTicketResponses(tickets))
}

func (h *ticketEndpoints) handleCreateTicket(w http.ResponseWriter, r *http.Request) error {
	var req dto.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode create ticket request: %w", err),
		}
	}

	ticket, err := h.service.Create(r.Context(), ticketservice.CreateParams{
		CustomerID:  req.CustomerID,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    model.TicketPriority(req.Priority),
		CreatedBy:   agentIDFromRequest(r),
	})
	if err != nil {
		return mapTicketError(err)
	}

	if h.notifier != nil {
		h.notifier.NotifyTicketCreated(ticket)
	}
	return api.WriteJSON(w, http.StatusCreated, dto.NewTicketResponse(ticket))
}

func (h *ticketEndpoints) handleGetTicket(ticketID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		ticket, err := h.service.Get(r.Context(), ticketID)
		if err != nil {
			return mapTicketError(err)
		}
		return api.WriteJSON(w, http.StatusOK, dto.NewTicketResponse(ticket))
	}
}

func (h *ticketEndpoints) handleUpdateTicket(ticketID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req dto.UpdateTicketRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid request payload",
				ErrorLog:   fmt.Errorf("decode update ticket request: %w", err),
			}
		}

		before, err := h.service.Get(r.Context(), ticketID)
		if err != nil {
			return mapTicketError(err)
		}

		params := ticketservice.UpdateParams{
			Subject:     req.Subject,
			Description: req.Description,
			AssignedTo:  req.AssignedTo,
		}
		if req.Status != nil {
			status := model.TicketStatus(*req.Status)
			params.Status = &status
		}
		if req.Priority != nil {
			priority := model.TicketPriority(*req.Priority)
			params.Priority = &priority
		}

		ticket, err := h.service.Update(r.Context(), ticketID, params)
		if err != nil {
			return mapTicketError(err)
		}

		if h.notifier != nil {
			if ticket.Status != before.Status {
				h.notifier.NotifyTicketStatusChanged(ticket)
			}
			if ticket.AssignedTo != before.AssignedTo {
				h.notifier.NotifyTicketAssigned(ticket)
			}
		}
		return api.WriteJSON(w, http.StatusOK, dto.NewTicketResponse(ticket))
	}
}

func (h *ticketEndpoints) handleDeleteTicket(ticketID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := h.service.Delete(r.Context(), ticketID); err != nil {
			return mapTicketError(err)
		}
		return api.WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Ticket deleted"})
	}
}

func (h *ticketEndpoints) handleListComments(ticketID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		comments, err := h.service.Comments(r.Context(), ticketID)
		if err != nil {
			return mapTicketError(err)
		}
		return api.WriteJSON(w, http.StatusOK, dto.NewTicketCommentResponses(comments))
	}
}

func (h *ticketEndpoints) handleAddComment(ticketID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req dto.AddCommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid request payload",
				ErrorLog:   fmt.Errorf("decode add comment request: %w", err),
			}
		}

		userID := agentIDFromRequest(r)
		if userID == "" {
			return &HTTPError{
				StatusCode: http.StatusUnauthorized,
				Message:    "Unauthorized",
				ErrorLog:   fmt.Errorf("add comment without agent identity"),
			}
		}

		comment, err := h.service.AddComment(r.Context(), ticketID, userID, req.Comment, req.IsInternal)
		if err != nil {
			return mapTicketError(err)
		}

		if h.notifier != nil {
			if ticket, err := h.service.Get(r.Context(), ticketID); err == nil {
				h.notifier.NotifyNewComment(ticket, comment)
			}
		}
		return api.WriteJSON(w, http.StatusCreated, dto.NewTicketCommentResponse(comment))
	}
}

// agentIDFromRequest recovers the agent identity from the bearer token.
// Routes behind ValidateAgentJWT always carry one; elsewhere it is
// best-effort and may be empty.
func agentIDFromRequest(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if !strings.HasPrefix(token, "Bearer ") {
		return ""
	}
	identity, err := jwt.ParseAgentIdentity(token[len("Bearer "):])
	if err != nil {
		return ""
	}
	return identity.AgentID
}

func mapTicketError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*ticketservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("ticket service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case ticketservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case ticketservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	case ticketservice.ErrorCodeConflict:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}
