package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"support-desk-backend/internal/dto"
	"support-desk-backend/internal/env"
	"support-desk-backend/internal/jwt"
	"support-desk-backend/internal/model"
	"support-desk-backend/internal/ratelimit"
	"support-desk-backend/internal/service/chat"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	upgrader    websocket.Upgrader
	redisClient *redis.Client
)

func init() {
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:     env.Get(env.ChatRedisURL),
		Password: env.Get(env.ChatRedisPass),
		DB:       0,
	})
}

type Handler struct {
	hub         *Hub
	chats       *chat.Service
	limiter     *ratelimit.Limiter
	notifier    *Notifier
	redisClient *redis.Client

	subscribedMu sync.Mutex
	subscribed   map[string]bool
}

func NewHandler(hub *Hub, chats *chat.Service, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		hub:         hub,
		chats:       chats,
		limiter:     limiter,
		notifier:    NewHubNotifier(hub),
		redisClient: redisClient,
		subscribed:  make(map[string]bool),
	}
}

// ServeChat upgrades a customer connection. The customer identifies
// itself with the startChat event after connecting.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	client := newClient(conn, uuid.NewString())
	h.hub.Register(client)

	go client.keepAlive()
	go client.writeMessages()
	go h.readLoop(client)
}

// ServeAgent upgrades an agent connection. The agent token rides in the
// "token" query parameter and must verify before the upgrade happens;
// verified agents land in the shared agents room.
func (h *Handler) ServeAgent(w http.ResponseWriter, r *http.Request) {
	identity, err := jwt.ParseAgentIdentity(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	client := newClient(conn, uuid.NewString())
	client.AgentID = identity.AgentID
	client.AgentName = identity.Name
	h.hub.Register(client)
	h.hub.JoinRoom(RoomAgents, client)
	h.ensureSubscribed(RoomAgents)

	go client.keepAlive()
	go client.writeMessages()
	go h.readLoop(client)
}

func (h *Handler) readLoop(client *WSClient) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in readLoop: %v", r)
		}

		if client.done != nil {
			close(client.done)
		}
		h.hub.Unregister(client)
		log.Printf("Client %s disconnected", client.ID)
	}()

	client.Conn.SetReadLimit(512 * 1024)

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				if closeErr.Code == websocket.CloseNormalClosure ||
					closeErr.Code == websocket.CloseGoingAway ||
					closeErr.Code == websocket.CloseNoStatusReceived {
					break
				}
			}
			log.Printf("Error reading message from client %s: %v", client.ID, err)
			break
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.sendError(client, "bad_request", "message is not a valid event envelope")
			continue
		}
		h.dispatch(client, &envelope)
	}
}

func (h *Handler) dispatch(client *WSClient, envelope *Envelope) {
	switch envelope.Event {
	case EventStartChat:
		h.handleStartChat(client, envelope.Data)
	case EventSendMessage:
		h.handleSendMessage(client, envelope.Data)
	case EventJoinSession:
		h.handleJoinSession(client, envelope.Data)
	case EventCloseChat:
		h.handleCloseChat(client, envelope.Data)
	case EventTyping:
		h.handleTyping(client, envelope.Data)
	case EventSubscribe:
		h.handleSubscribe(client, envelope.Data)
	default:
		h.sendError(client, "bad_request", "unknown event "+envelope.Event)
	}
}

func (h *Handler) handleStartChat(client *WSClient, data json.RawMessage) {
	var payload StartChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(client, "bad_request", "invalid startChat payload")
		return
	}

	result, err := h.chats.Start(context.Background(), payload.Email, payload.Name)
	if err != nil {
		h.sendServiceError(client, err)
		return
	}

	client.CustomerID = result.Customer.CustomerID
	client.SessionID = result.Session.SessionID
	h.hub.JoinRoom(RoomForCustomer(result.Customer.CustomerID), client)
	h.hub.JoinRoom(RoomForSession(result.Session.SessionID), client)
	h.ensureSubscribed(RoomForCustomer(result.Customer.CustomerID))
	h.ensureSubscribed(RoomForSession(result.Session.SessionID))

	h.reply(client, EventChatStarted, dto.StartChatResponse{
		Session:       dto.NewChatSessionResponse(result.Session),
		Customer:      dto.NewCustomerResponse(result.Customer),
		IsNewCustomer: result.IsNewCustomer,
	})

	h.broadcast(RoomAgents, EventNewChatSession, dto.StartChatResponse{
		Session:       dto.NewChatSessionResponse(result.Session),
		Customer:      dto.NewCustomerResponse(result.Customer),
		IsNewCustomer: result.IsNewCustomer,
	})
	h.notifier.NotifyNewChatSession(result.Session, result.Customer)
}

func (h *Handler) handleSendMessage(client *WSClient, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(client, "bad_request", "invalid sendMessage payload")
		return
	}

	sessionID := payload.SessionID
	if sessionID == "" {
		sessionID = client.SessionID
	}

	senderType := model.SenderTypeCustomer
	senderID := client.CustomerID
	if client.AgentID != "" {
		senderType = model.SenderTypeAgent
		senderID = client.AgentID
	}
	if senderID == "" {
		h.sendError(client, "bad_request", "start a chat before sending messages")
		return
	}

	if !h.limiter.Allow(senderID, sessionID) {
		incRateLimited()
		h.sendError(client, ErrorCodeRateLimited, "Too many messages, slow down")
		return
	}

	message, err := h.chats.SaveMessage(context.Background(), chat.SaveMessageParams{
		SessionID:  sessionID,
		SenderType: senderType,
		SenderID:   senderID,
		Content:    payload.Content,
	})
	if err != nil {
		h.sendServiceError(client, err)
		return
	}

	h.broadcast(RoomForSession(sessionID), EventNewMessage, dto.NewChatMessageResponse(message))
}

func (h *Handler) handleJoinSession(client *WSClient, data json.RawMessage) {
	if client.AgentID == "" {
		h.sendError(client, "unauthorized", "only agents can join sessions")
		return
	}

	var payload JoinSessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(client, "bad_request", "invalid joinSession payload")
		return
	}

	session, err := h.chats.AssignAgent(context.Background(), payload.SessionID, client.AgentID)
	if err != nil {
		h.sendServiceError(client, err)
		return
	}

	h.hub.JoinRoom(RoomForSession(session.SessionID), client)
	h.ensureSubscribed(RoomForSession(session.SessionID))

	h.broadcast(RoomForSession(session.SessionID), EventAgentJoined, AgentJoinedPayload{
		SessionID: session.SessionID,
		AgentID:   client.AgentID,
		AgentName: client.AgentName,
	})

	// The joining agent gets the conversation so far.
	messages, err := h.chats.History(context.Background(), session.SessionID)
	if err != nil {
		h.sendServiceError(client, err)
		return
	}
	h.reply(client, EventChatHistory, dto.ChatHistoryResponse{
		SessionID: session.SessionID,
		Messages:  dto.NewChatMessageResponses(messages),
	})
}

func (h *Handler) handleCloseChat(client *WSClient, data json.RawMessage) {
	var payload CloseChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(client, "bad_request", "invalid closeChat payload")
		return
	}

	sessionID := payload.SessionID
	if sessionID == "" {
		sessionID = client.SessionID
	}

	session, err := h.chats.Close(context.Background(), sessionID)
	if err != nil {
		h.sendServiceError(client, err)
		return
	}

	h.broadcast(RoomForSession(session.SessionID), EventChatClosed, dto.NewChatSessionResponse(session))
}

// Typing indicators are fan-out only, nothing is persisted.
func (h *Handler) handleTyping(client *WSClient, data json.RawMessage) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(client, "bad_request", "invalid typing payload")
		return
	}

	sessionID := payload.SessionID
	if sessionID == "" {
		sessionID = client.SessionID
	}

	userName := payload.UserName
	if userName == "" {
		userName = client.AgentName
	}

	h.broadcast(RoomForSession(sessionID), EventUserTyping, UserTypingPayload{
		SessionID: sessionID,
		UserName:  userName,
		IsTyping:  payload.IsTyping,
	})
}

// handleSubscribe binds an agent connection for targeted notifications.
// The agent id must match the identity the token carried.
func (h *Handler) handleSubscribe(client *WSClient, data json.RawMessage) {
	if client.AgentID == "" {
		h.sendError(client, "unauthorized", "only agents can subscribe to notifications")
		return
	}

	var payload SubscribePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.AgentID == "" {
		h.sendError(client, "bad_request", "invalid subscribe payload")
		return
	}
	if payload.AgentID != client.AgentID {
		h.sendError(client, "unauthorized", "cannot subscribe on behalf of another agent")
		return
	}

	room := RoomForAgent(payload.AgentID)
	h.hub.JoinRoom(room, client)
	h.ensureSubscribed(room)
	h.reply(client, EventSubscribed, SubscribedPayload{AgentID: payload.AgentID})
}

func (h *Handler) reply(client *WSClient, event string, payload interface{}) {
	envelope, err := NewEnvelope(event, payload)
	if err != nil {
		log.Printf("Error building %s envelope: %v", event, err)
		return
	}
	if err := h.hub.SendTo(client.ID, envelope); err != nil {
		log.Printf("Error delivering %s to client %s: %v", event, client.ID, err)
	}
}

func (h *Handler) broadcast(roomID, event string, payload interface{}) {
	envelope, err := NewEnvelope(event, payload)
	if err != nil {
		log.Printf("Error building %s envelope: %v", event, err)
		return
	}
	h.hub.Broadcast(roomID, envelope)
}

func (h *Handler) sendError(client *WSClient, code, message string) {
	h.reply(client, EventError, ErrorPayload{Code: code, Message: message})
}

func (h *Handler) sendServiceError(client *WSClient, err error) {
	if svcErr, ok := err.(*chat.Error); ok {
		h.sendError(client, string(svcErr.Code), svcErr.Message)
		return
	}
	h.sendError(client, "internal_error", "something went wrong")
}

// ensureSubscribed starts a Redis subscription for the room exactly
// once. The REST process publishes into these channels; the bridge
// re-broadcasts into the local hub.
func (h *Handler) ensureSubscribed(roomID string) {
	h.subscribedMu.Lock()
	already := h.subscribed[roomID]
	if !already {
		h.subscribed[roomID] = true
	}
	h.subscribedMu.Unlock()

	if already {
		return
	}
	go h.subscribeToRoomChannel(roomID)
}

func (h *Handler) subscribeToRoomChannel(roomID string) {
	log.Printf("Subscribing to Redis channel: %s", roomID)
	subscriber := h.redisClient.Subscribe(context.Background(), roomID)
	defer subscriber.Close()

	ch := subscriber.Channel()
	for msg := range ch {
		var envelope Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			log.Printf("Dropping malformed bridge message on %s: %v", roomID, err)
			continue
		}
		h.hub.Broadcast(roomID, &envelope)
	}
	log.Printf("Unsubscribed from Redis channel: %s", roomID)
}
