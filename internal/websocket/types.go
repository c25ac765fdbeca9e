package websocket

import "encoding/json"

// Inbound events.
const (
	EventStartChat   = "startChat"
	EventSendMessage = "sendMessage"
	EventJoinSession = "joinSession"
	EventCloseChat   = "closeChat"
	EventTyping      = "typing"
	EventSubscribe   = "subscribe"
)

// Outbound events.
const (
	EventChatStarted    = "chatStarted"
	EventChatHistory    = "chatHistory"
	EventNewChatSession = "newChatSession"
	EventNewMessage     = "newMessage"
	EventAgentJoined    = "agentJoined"
	EventChatClosed     = "chatClosed"
	EventUserTyping     = "userTyping"
	EventSubscribed     = "subscribed"
	EventNotification   = "notification"
	EventError          = "error"
)

const ErrorCodeRateLimited = "RATE_LIMIT_EXCEEDED"

// Envelope is the wire frame: every message in both directions is an
// event name plus a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, payload interface{}) (*Envelope, error) {
	if payload == nil {
		return &Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Data: data}, nil
}

type StartChatPayload struct {
	Email string `json:"customerEmail"`
	Name  string `json:"customerName"`
}

type SendMessagePayload struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

type JoinSessionPayload struct {
	SessionID string `json:"sessionId"`
}

type CloseChatPayload struct {
	SessionID string `json:"sessionId"`
}

type TypingPayload struct {
	SessionID string `json:"sessionId"`
	IsTyping  bool   `json:"isTyping"`
	UserName  string `json:"userName"`
}

type SubscribePayload struct {
	AgentID string `json:"agentId"`
}

type SubscribedPayload struct {
	AgentID string `json:"agentId"`
}

type AgentJoinedPayload struct {
	SessionID string `json:"sessionId"`
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName,omitempty"`
}

type UserTypingPayload struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
	IsTyping  bool   `json:"isTyping"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
