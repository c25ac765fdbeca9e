package endpoints

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/dto"
	"support-desk-backend/internal/model"
	chatservice "support-desk-backend/internal/service/chat"
	ticketservice "support-desk-backend/internal/service/ticket"
	"support-desk-backend/internal/websocket"
)

type ChatEndpoints interface {
	Sessions(http.ResponseWriter, *http.Request) error
	SessionByID(http.ResponseWriter, *http.Request) error
	CustomerWebsocket(http.ResponseWriter, *http.Request) error
	AgentWebsocket(http.ResponseWriter, *http.Request) error
}

type ChatPaths struct {
	SessionsPath  string
	SessionPrefix string
}

type chatEndpoints struct {
	chats    *chatservice.Service
	tickets  *ticketservice.Service
	handler  *websocket.Handler
	notifier *websocket.Notifier
	paths    ChatPaths
}

func NewChatEndpoints(chats *chatservice.Service, tickets *ticketservice.Service, handler *websocket.Handler, notifier *websocket.Notifier, prefix string) ChatEndpoints {
	base := strings.TrimRight(prefix, "/")
	return &chatEndpoints{
		chats:    chats,
		tickets:  tickets,
		handler:  handler,
		notifier: notifier,
		paths: ChatPaths{
			SessionsPath:  base + "/chat/sessions",
			SessionPrefix: base + "/chat/sessions/",
		},
	}
}

func (h *chatEndpoints) Sessions(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListActiveSessions,
	})
}

// SessionByID multiplexes /chat/sessions/{id} and its sub-resources.
func (h *chatEndpoints) SessionByID(w http.ResponseWriter, r *http.Request) error {
	remainder, err := pathAfter(r.URL.Path, h.paths.SessionPrefix)
	if err != nil {
		return err
	}

	segments := strings.Split(remainder, "/")
	sessionID := segments[0]
	if sessionID == "" {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Session not found",
			ErrorLog:   fmt.Errorf("chat session id missing in path"),
		}
	}

	if len(segments) == 1 {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleGetSession(sessionID),
		})
	}

	switch segments[1] {
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleListMessages(sessionID),
		})
	case "close":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleCloseSession(sessionID),
		})
	case "assign":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleAssignAgent(sessionID),
		})
	case "convert":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleConvertSession(sessionID),
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("unknown chat session sub-resource %s", segments[1]),
		}
	}
}

func (h *chatEndpoints) CustomerWebsocket(w http.ResponseWriter, r *http.Request) error {
	h.handler.ServeChat(w, r)
	return nil
}

func (h *chatEndpoints) AgentWebsocket(w http.ResponseWriter, r *http.Request) error {
	h.handler.ServeAgent(w, r)
	return nil
}

func (h *chatEndpoints) handleListActiveSessions(w http.ResponseWriter, r *http.Request) error {
	sessions, err := h.chats.ActiveSessions(r.Context())
	if err != nil {
		return h.chatError(err)
	}
	return api.WriteJSON(w, http.StatusOK, dto.NewChatSessionResponses(sessions))
}

func (h *chatEndpoints) handleGetSession(sessionID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		session, err := h.chats.GetSession(r.Context(), sessionID)
		if err != nil {
			return h.chatError(err)
		}
		return api.WriteJSON(w, http.StatusOK, dto.NewChatSessionResponse(session))
	}
}

func (h *chatEndpoints) handleListMessages(sessionID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		messages, err := h.chats.History(r.Context(), sessionID)
		if err != nil {
			return h.chatError(err)
		}
		return api.WriteJSON(w, http.StatusOK, dto.NewChatMessageResponses(messages))
	}
}

func (h *chatEndpoints) handleCloseSession(sessionID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		session, err := h.chats.Close(r.Context(), sessionID)
		if err != nil {
			return h.chatError(err)
		}

		h.broadcastToSession(session.SessionID, websocket.EventChatClosed, dto.NewChatSessionResponse(session))
		return api.WriteJSON(w, http.StatusOK, dto.NewChatSessionResponse(session))
	}
}

func (h *chatEndpoints) handleAssignAgent(sessionID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req dto.AssignAgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid request payload",
				ErrorLog:   fmt.Errorf("decode assign agent request: %w", err),
			}
		}

		session, err := h.chats.AssignAgent(r.Context(), sessionID, req.AgentID)
		if err != nil {
			return h.chatError(err)
		}

		h.broadcastToSession(session.SessionID, websocket.EventAgentJoined, websocket.AgentJoinedPayload{
			SessionID: session.SessionID,
			AgentID:   session.AgentID,
		})
		return api.WriteJSON(w, http.StatusOK, dto.NewChatSessionResponse(session))
	}
}

func (h *chatEndpoints) handleConvertSession(sessionID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		// The request body is optional; subject and priority fall back
		// to conversion defaults.
		var req dto.ConvertSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid request payload",
				ErrorLog:   fmt.Errorf("decode convert session request: %w", err),
			}
		}

		ticket, err := h.tickets.ConvertSession(r.Context(), ticketservice.ConvertParams{
			SessionID: sessionID,
			Subject:   req.Subject,
			Priority:  model.TicketPriority(req.Priority),
			AgentID:   req.AssignedTo,
		})
		if err != nil {
			return h.ticketError(err)
		}

		if h.notifier != nil {
			h.notifier.NotifyTicketCreated(ticket)
		}
		h.broadcastToSession(sessionID, websocket.EventChatClosed, dto.NewTicketResponse(ticket))
		return api.WriteJSON(w, http.StatusCreated, dto.NewTicketResponse(ticket))
	}
}

// broadcastToSession pushes an event through the Redis bridge so the
// websocket process can fan it out to connected clients.
func (h *chatEndpoints) broadcastToSession(sessionID, event string, payload interface{}) {
	if err := websocket.Publish(websocket.RoomForSession(sessionID), event, payload); err != nil {
		log.Printf("broadcast %s to session %s failed: %v", event, sessionID, err)
	}
}

func (h *chatEndpoints) chatError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*chatservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("chat service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case chatservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeInvalidState:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}

func (h *chatEndpoints) ticketError(err error) error {
	return mapTicketError(err)
}
