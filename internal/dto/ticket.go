package dto

import "support-desk-backend/internal/model"

type CreateTicketRequest struct {
	CustomerID  string `json:"customerId"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type ConvertSessionRequest struct {
	Subject    string `json:"subject"`
	Priority   string `json:"priority"`
	AssignedTo string `json:"assignedTo"`
}

type UpdateTicketRequest struct {
	Subject     *string `json:"subject"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	AssignedTo  *string `json:"assignedTo"`
}

type AddCommentRequest struct {
	Comment    string `json:"comment"`
	IsInternal bool   `json:"isInternal"`
}

type TicketResponse struct {
	TicketID      string `json:"ticketId"`
	TicketNumber  string `json:"ticketNumber"`
	CustomerID    string `json:"customerId"`
	ChatSessionID string `json:"chatSessionId,omitempty"`
	Subject       string `json:"subject"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	AssignedTo    string `json:"assignedTo,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
	ResolvedAt    string `json:"resolvedAt,omitempty"`
}

type TicketCommentResponse struct {
	CommentID  string `json:"commentId"`
	TicketID   string `json:"ticketId"`
	UserID     string `json:"userId"`
	Comment    string `json:"comment"`
	IsInternal bool   `json:"isInternal"`
	CreatedAt  string `json:"createdAt"`
}

func NewTicketResponse(ticket model.TicketItem) TicketResponse {
	return TicketResponse{
		TicketID:      ticket.TicketID,
		TicketNumber:  ticket.TicketNumber,
		CustomerID:    ticket.CustomerID,
		ChatSessionID: ticket.ChatSessionID,
		Subject:       ticket.Subject,
		Description:   ticket.Description,
		Status:        string(ticket.Status),
		Priority:      string(ticket.Priority),
		AssignedTo:    ticket.AssignedTo,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
		ResolvedAt:    ticket.ResolvedAt,
	}
}

func NewTicketResponses(tickets []model.TicketItem) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, NewTicketResponse(t))
	}
	return out
}

func NewTicketCommentResponse(comment model.TicketCommentItem) TicketCommentResponse {
	return TicketCommentResponse{
		CommentID:  comment.CommentID,
		TicketID:   comment.TicketID,
		UserID:     comment.UserID,
		Comment:    comment.Comment,
		IsInternal: comment.IsInternal,
		CreatedAt:  comment.CreatedAt,
	}
}

func NewTicketCommentResponses(comments []model.TicketCommentItem) []TicketCommentResponse {
	out := make([]TicketCommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, NewTicketCommentResponse(c))
	}
	return out
}
