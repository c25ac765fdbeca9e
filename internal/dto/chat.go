package dto

import "support-desk-backend/internal/model"

type StartChatResponse struct {
	Session       ChatSessionResponse `json:"session"`
	Customer      CustomerResponse    `json:"customer"`
	IsNewCustomer bool                `json:"isNewCustomer"`
}

type SendMessageRequest struct {
	SessionID  string `json:"sessionId"`
	SenderID   string `json:"senderId"`
	SenderType string `json:"senderType"`
	Content    string `json:"content"`
}

type ChatHistoryResponse struct {
	SessionID string                `json:"sessionId"`
	Messages  []ChatMessageResponse `json:"messages"`
}

type AssignAgentRequest struct {
	AgentID string `json:"agentId"`
}

type ChatSessionResponse struct {
	SessionID  string `json:"sessionId"`
	CustomerID string `json:"customerId"`
	AgentID    string `json:"agentId,omitempty"`
	Status     string `json:"status"`
	StartedAt  string `json:"startedAt"`
	EndedAt    string `json:"endedAt,omitempty"`
}

type ChatMessageResponse struct {
	MessageID  string `json:"messageId"`
	SessionID  string `json:"sessionId"`
	SenderType string `json:"senderType"`
	SenderID   string `json:"senderId"`
	Content    string `json:"content"`
	SentAt     string `json:"sentAt"`
}

func NewChatSessionResponse(session model.ChatSessionItem) ChatSessionResponse {
	return ChatSessionResponse{
		SessionID:  session.SessionID,
		CustomerID: session.CustomerID,
		AgentID:    session.AgentID,
		Status:     string(session.Status),
		StartedAt:  session.StartedAt,
		EndedAt:    session.EndedAt,
	}
}

func NewChatMessageResponse(message model.ChatMessageItem) ChatMessageResponse {
	return ChatMessageResponse{
		MessageID:  message.MessageID,
		SessionID:  message.SessionID,
		SenderType: string(message.SenderType),
		SenderID:   message.SenderID,
		Content:    message.Content,
		SentAt:     message.SentAt,
	}
}

func NewChatMessageResponses(messages []model.ChatMessageItem) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, NewChatMessageResponse(m))
	}
	return out
}

func NewChatSessionResponses(sessions []model.ChatSessionItem) []ChatSessionResponse {
	out := make([]ChatSessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, NewChatSessionResponse(s))
	}
	return out
}
